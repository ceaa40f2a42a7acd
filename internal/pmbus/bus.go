// Copyright © 2025 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package pmbus

import (
	"errors"
	"fmt"
	"time"
)

var ErrBus = errors.New("bus transaction failed")

// Bus is a byte oriented, register addressed transactional bus master.
// Multi-byte data is little endian on the wire. Callers must not overlap
// transactions on the same Bus.
type Bus interface {
	// Init selects the device for the following transactions.
	Init(addr uint8) error
	Read(addr, reg uint8, data []byte) error
	Write(addr, reg uint8, data []byte) error
}

// Delay blocks for the given settle time.
type Delay func(time.Duration)

// Wait blocks for d with the given Delay, or time.Sleep if nil.
func (f Delay) Wait(d time.Duration) {
	if f == nil {
		time.Sleep(d)
		return
	}
	f(d)
}

// Error is returned by Bus implementations for a failed transaction. It
// matches ErrBus with errors.Is and unwraps to the driver error.
type Error struct {
	Op   string
	Addr uint8
	Reg  uint8
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("pmbus %s %#x.%#02x: %v", e.Op, e.Addr, e.Reg, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == ErrBus }
