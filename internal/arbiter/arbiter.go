// Copyright © 2025 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package arbiter tracks and switches the source that commands the output
// voltage of an AVS capable rail.
package arbiter

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/platinasystems/vreg/internal/pmbus"
	"github.com/platinasystems/vreg/internal/regulator"
)

// SwitchSettle is the time to flush the OPERATION write.
const SwitchSettle = 100 * time.Microsecond

var (
	ErrInvalidSource = errors.New("invalid vout control source")
	ErrNoAvs         = errors.New("no avs bus")
)

// Avs is the alternate path to command the rail voltage.
type Avs interface {
	WriteVoltage(rail uint8, mv float64) error
	ReadVoltage(rail uint8) (float64, error)
}

// Arbiter owns the OPERATION register of Device. Nothing else may write
// it, or the tracked source won't match the regulator.
type Arbiter struct {
	Device *regulator.Device
	Avs    Avs

	mutex  sync.Mutex
	source pmbus.ControlSource
}

// New returns an Arbiter that assumes the regulator default source,
// VOUT_COMMAND.
func New(dev *regulator.Device, avs Avs) *Arbiter {
	return &Arbiter{Device: dev, Avs: avs}
}

// Source returns the tracked control source.
func (a *Arbiter) Source() pmbus.ControlSource {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.source
}

// Switch hands the output voltage to target. The tracked source changes
// only after the OPERATION write and settle delay complete; a switch to the
// current source is still written.
func (a *Arbiter) Switch(target pmbus.ControlSource) error {
	if !target.Valid() {
		return fmt.Errorf("%v: %w", target, ErrInvalidSource)
	}
	a.mutex.Lock()
	defer a.mutex.Unlock()

	d := a.Device
	if err := d.Bus.Init(d.Address); err != nil {
		return err
	}
	var b [pmbus.OperationSize]byte
	if err := d.Bus.Read(d.Address, pmbus.Operation, b[:]); err != nil {
		return err
	}
	// have the regulator copy the commanded voltage across the handoff
	op := pmbus.Op(b[0]).
		WithTransitionControl(true).
		WithSource(target)
	b[0] = uint8(op)
	if err := d.Bus.Write(d.Address, pmbus.Operation, b[:]); err != nil {
		return err
	}
	d.Delay.Wait(SwitchSettle)
	a.source = target
	return nil
}

// SetVout commands the rail through the tracked source.
func (a *Arbiter) SetVout(mv float64) error {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	if a.source == pmbus.SourceAvs {
		if a.Avs == nil {
			return fmt.Errorf("%v: %w", a.Device.Rail, ErrNoAvs)
		}
		return a.Avs.WriteVoltage(a.Device.AvsRail, mv)
	}
	return a.Device.SetVout(mv)
}

// Vout returns READ_VOUT, the output voltage whichever source drives it.
func (a *Arbiter) Vout() (float64, error) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.Device.Vout()
}

// AvsVout returns the voltage read through the AVS bus.
func (a *Arbiter) AvsVout() (float64, error) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	if a.Avs == nil {
		return 0, fmt.Errorf("%v: %w", a.Device.Rail, ErrNoAvs)
	}
	return a.Avs.ReadVoltage(a.Device.AvsRail)
}
