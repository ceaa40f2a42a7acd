// Copyright © 2025 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package regulator

import (
	"fmt"
	"time"

	"github.com/platinasystems/vreg/internal/pmbus"
)

// VoutSettle is 100us to flush the bus transmit plus 150us to cover a
// 0.65V to 0.95V step with 50us of margin.
const VoutSettle = 250 * time.Microsecond

// Device is the regulator of one Rail.
type Device struct {
	Rail
	Bus   pmbus.Bus
	Delay pmbus.Delay
}

func New(bus pmbus.Bus, delay pmbus.Delay, rail Rail) *Device {
	return &Device{Rail: rail, Bus: bus, Delay: delay}
}

// ReadIout returns the output current in A.
func (d *Device) ReadIout() (float64, error) {
	v, err := d.word(pmbus.ReadIout)
	return pmbus.DecodeLinear11(v), err
}

// ReadPout returns the output power in W.
func (d *Device) ReadPout() (float64, error) {
	v, err := d.word(pmbus.ReadPout)
	return pmbus.DecodeLinear11(v), err
}

// Vout returns the output voltage in mV. Unlike current and power, this
// register has the fixed 0.5mV/LSB format of VOUT_COMMAND.
func (d *Device) Vout() (float64, error) {
	v, err := d.word(pmbus.ReadVout)
	return pmbus.DecodeVout(v), err
}

// SetVout commands the output voltage in mV then blocks for VoutSettle.
// The caller mustn't command the rail again before this returns.
func (d *Device) SetVout(mv float64) error {
	code, err := pmbus.EncodeVout(mv)
	if err != nil {
		return fmt.Errorf("%v: %w", d.Rail, err)
	}
	if err = d.Bus.Init(d.Address); err != nil {
		return err
	}
	data := []byte{uint8(code), uint8(code >> 8)}
	if err = d.Bus.Write(d.Address, pmbus.VoutCommand, data); err != nil {
		return err
	}
	d.Delay.Wait(VoutSettle)
	return nil
}

// Init issues the rail's configuration writes in order, aborting at the
// first failure. The regulator may be left partially configured.
func (d *Device) Init() error {
	if err := d.Bus.Init(d.Address); err != nil {
		return err
	}
	for i, w := range d.InitSeq {
		if err := d.Bus.Write(d.Address, w.Reg, w.Data); err != nil {
			return fmt.Errorf("%v init step %d: %w", d.Rail, i, err)
		}
	}
	return nil
}

func (d *Device) word(reg uint8) (uint16, error) {
	var b [2]byte
	if err := d.Bus.Init(d.Address); err != nil {
		return 0, err
	}
	if err := d.Bus.Read(d.Address, reg, b[:]); err != nil {
		return 0, err
	}
	return uint16(b[1])<<8 | uint16(b[0]), nil
}

// Init configures each device in order, stopping at the first failure.
func Init(devs ...*Device) error {
	for _, d := range devs {
		if err := d.Init(); err != nil {
			return err
		}
	}
	return nil
}
