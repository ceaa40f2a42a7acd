// Copyright © 2025 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package pmbus

import (
	"fmt"

	"github.com/platinasystems/i2c"
)

// I2cBus is a Bus on the Linux /dev/i2c-INDEX SMBus adapter.
type I2cBus struct {
	Index int

	bus  i2c.Bus
	open bool
	addr uint8
}

func (b *I2cBus) Init(addr uint8) error {
	if !b.open {
		if err := b.bus.Open(b.Index); err != nil {
			return &Error{"open", addr, 0, err}
		}
		b.open = true
	}
	if err := b.bus.ForceSlaveAddress(int(addr)); err != nil {
		return &Error{"init", addr, 0, err}
	}
	b.addr = addr
	return nil
}

func (b *I2cBus) Read(addr, reg uint8, data []byte) error {
	size, err := smbusSize(len(data))
	if err != nil {
		return &Error{"read", addr, reg, err}
	}
	if err = b.selected(addr); err != nil {
		return err
	}
	sd := smbusPack(size, data)
	if err = b.bus.Read(reg, size, &sd); err != nil {
		return &Error{"read", addr, reg, err}
	}
	smbusUnpack(size, &sd, data)
	return nil
}

func (b *I2cBus) Write(addr, reg uint8, data []byte) error {
	size, err := smbusSize(len(data))
	if err != nil {
		return &Error{"write", addr, reg, err}
	}
	if err = b.selected(addr); err != nil {
		return err
	}
	sd := smbusPack(size, data)
	if err = b.bus.Write(reg, size, &sd); err != nil {
		return &Error{"write", addr, reg, err}
	}
	return nil
}

func (b *I2cBus) Close() error {
	if !b.open {
		return nil
	}
	b.open = false
	return b.bus.Close()
}

func (b *I2cBus) selected(addr uint8) error {
	if b.open && b.addr == addr {
		return nil
	}
	return b.Init(addr)
}

func smbusSize(n int) (i2c.SMBusSize, error) {
	switch {
	case n == 1:
		return i2c.ByteData, nil
	case n == 2:
		return i2c.WordData, nil
	case n > 2 && n <= i2c.BlockMax:
		return i2c.I2CBlockData, nil
	}
	return 0, fmt.Errorf("%d bytes: unsupported transfer size", n)
}

// smbusPack returns the ioctl data of a transfer. Byte and word data are
// little endian from sd[0]; block data has its length in sd[0], which a
// block read also needs.
func smbusPack(size i2c.SMBusSize, data []byte) (sd i2c.SMBusData) {
	if size == i2c.I2CBlockData {
		sd[0] = uint8(len(data))
		copy(sd[1:], data)
	} else {
		copy(sd[:], data)
	}
	return
}

func smbusUnpack(size i2c.SMBusSize, sd *i2c.SMBusData, data []byte) {
	if size == i2c.I2CBlockData {
		copy(data, sd[1:])
	} else {
		copy(data, sd[:])
	}
}
