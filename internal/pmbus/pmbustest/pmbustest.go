// Copyright © 2025 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package pmbustest provides a recording pmbus.Bus for tests.
package pmbustest

import (
	"errors"
	"fmt"
	"time"

	"github.com/platinasystems/vreg/internal/pmbus"
)

var ErrNak = errors.New("nak")

// Event is one bus transaction or settle delay.
type Event struct {
	Op    string // init, read, write, or delay
	Addr  uint8
	Reg   uint8
	Data  []byte
	Delay time.Duration
}

func (e Event) String() string {
	if e.Op == "delay" {
		return fmt.Sprint("delay ", e.Delay)
	}
	return fmt.Sprintf("%s %#x.%#02x % x", e.Op, e.Addr, e.Reg, e.Data)
}

type key struct{ addr, reg uint8 }

// Bus keeps written data by device address and register so that a later
// read returns it. Unwritten registers read as zero.
type Bus struct {
	Events []Event

	regs      map[key][]byte
	readFail  map[key]error
	writeFail map[key]error
	initFail  map[uint8]error
}

func New() *Bus {
	return &Bus{
		regs:      make(map[key][]byte),
		readFail:  make(map[key]error),
		writeFail: make(map[key]error),
		initFail:  make(map[uint8]error),
	}
}

// Set preloads a register without recording an event.
func (b *Bus) Set(addr, reg uint8, data ...byte) {
	b.regs[key{addr, reg}] = append([]byte{}, data...)
}

func (b *Bus) Get(addr, reg uint8) []byte { return b.regs[key{addr, reg}] }

// FailRead has reads of the register fail with ErrNak.
func (b *Bus) FailRead(addr, reg uint8) { b.readFail[key{addr, reg}] = ErrNak }

// FailWrite has writes of the register fail with ErrNak.
func (b *Bus) FailWrite(addr, reg uint8) { b.writeFail[key{addr, reg}] = ErrNak }

// FailInit has selection of the device fail with ErrNak.
func (b *Bus) FailInit(addr uint8) { b.initFail[addr] = ErrNak }

func (b *Bus) Init(addr uint8) error {
	b.Events = append(b.Events, Event{Op: "init", Addr: addr})
	if err := b.initFail[addr]; err != nil {
		return &pmbus.Error{Op: "init", Addr: addr, Err: err}
	}
	return nil
}

func (b *Bus) Read(addr, reg uint8, data []byte) error {
	k := key{addr, reg}
	if err := b.readFail[k]; err != nil {
		b.Events = append(b.Events, Event{Op: "read", Addr: addr, Reg: reg})
		return &pmbus.Error{Op: "read", Addr: addr, Reg: reg, Err: err}
	}
	for i := range data {
		data[i] = 0
	}
	copy(data, b.regs[k])
	b.Events = append(b.Events, Event{
		Op:   "read",
		Addr: addr,
		Reg:  reg,
		Data: append([]byte{}, data...),
	})
	return nil
}

func (b *Bus) Write(addr, reg uint8, data []byte) error {
	k := key{addr, reg}
	b.Events = append(b.Events, Event{
		Op:   "write",
		Addr: addr,
		Reg:  reg,
		Data: append([]byte{}, data...),
	})
	if err := b.writeFail[k]; err != nil {
		return &pmbus.Error{Op: "write", Addr: addr, Reg: reg, Err: err}
	}
	b.regs[k] = append([]byte{}, data...)
	return nil
}

// Delay records a settle delay instead of blocking; use it as a
// pmbus.Delay.
func (b *Bus) Delay(d time.Duration) {
	b.Events = append(b.Events, Event{Op: "delay", Delay: d})
}

// Ops returns the events of the given kind.
func (b *Bus) Ops(op string) []Event {
	var events []Event
	for _, e := range b.Events {
		if e.Op == op {
			events = append(events, e)
		}
	}
	return events
}

// Transactions returns all events other than init and delay.
func (b *Bus) Transactions() []Event {
	var events []Event
	for _, e := range b.Events {
		if e.Op == "read" || e.Op == "write" {
			events = append(events, e)
		}
	}
	return events
}

func (b *Bus) Reset() { b.Events = b.Events[:0] }
