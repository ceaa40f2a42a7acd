// Copyright © 2025 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package pmbus

import (
	"errors"
	"fmt"
)

// ControlSource selects which command drives the regulator output voltage.
type ControlSource uint8

const (
	SourceVoutCommand ControlSource = iota
	SourceVoutMarginLow
	SourceVoutMarginHigh
	SourceAvs
)

var ErrSource = errors.New("invalid control source")

var sourceNames = []string{
	SourceVoutCommand:    "vout_command",
	SourceVoutMarginLow:  "margin_low",
	SourceVoutMarginHigh: "margin_high",
	SourceAvs:            "avs",
}

func (s ControlSource) Valid() bool { return s <= SourceAvs }

func (s ControlSource) String() string {
	if !s.Valid() {
		return fmt.Sprintf("source(%d)", uint8(s))
	}
	return sourceNames[s]
}

// ParseControlSource accepts the name or number of a source.
func ParseControlSource(s string) (ControlSource, error) {
	for i, name := range sourceNames {
		if s == name || s == fmt.Sprint(i) {
			return ControlSource(i), nil
		}
	}
	return 0, fmt.Errorf("%q: %w", s, ErrSource)
}

// Op is the OPERATION register.
//
//	bit 7		on/off state
//	bit 6		turn off behaviour
//	bits 5:4	voltage command source
//	bits 3:2	margin fault response
//	bit 1		transition control
//	bit 0		reserved
type Op uint8

const (
	opTransitionControl Op = 1 << 1
	opMarginFaultShift     = 2
	opMarginFaultMask   Op = 3 << opMarginFaultShift
	opSourceShift          = 4
	opSourceMask        Op = 3 << opSourceShift
	opTurnOffBehaviour  Op = 1 << 6
	opOn                Op = 1 << 7
)

// TransitionControl is set to have the regulator copy the commanded
// voltage from the old source to the new on a source change.
func (op Op) TransitionControl() bool {
	return op&opTransitionControl != 0
}

func (op Op) WithTransitionControl(set bool) Op {
	if set {
		return op | opTransitionControl
	}
	return op &^ opTransitionControl
}

func (op Op) Source() ControlSource {
	return ControlSource((op & opSourceMask) >> opSourceShift)
}

// WithSource replaces the source field; only the low two bits of s fit.
func (op Op) WithSource(s ControlSource) Op {
	return op&^opSourceMask | Op(s)<<opSourceShift&opSourceMask
}

func (op Op) MarginFaultResponse() uint8 {
	return uint8((op & opMarginFaultMask) >> opMarginFaultShift)
}

func (op Op) TurnOffBehaviour() bool { return op&opTurnOffBehaviour != 0 }
func (op Op) On() bool               { return op&opOn != 0 }

func (op Op) String() string {
	onoff := "off"
	if op.On() {
		onoff = "on"
	}
	return fmt.Sprintf("%s source %s transition %t margin %d",
		onoff, op.Source(), op.TransitionControl(),
		op.MarginFaultResponse())
}
