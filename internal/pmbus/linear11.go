// Copyright © 2025 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package pmbus provides the command codes, data formats and bus
// transactions used to manage PMBus voltage regulators.
package pmbus

import "math"

// Linear11 is the PMBus LINEAR11 telemetry format, a 5-bit two's complement
// exponent in bits 15:11 and an 11-bit mantissa in bits 10:0.
type Linear11 uint16

// Exponent returns the sign extended exponent.
func (v Linear11) Exponent() int {
	n := int(v>>11) & 0x1f
	if n&0x10 != 0 {
		n -= 0x20
	}
	return n
}

// Mantissa is an unsigned magnitude; the regulators don't report negative
// telemetry so the mantissa is not sign extended.
func (v Linear11) Mantissa() uint16 { return uint16(v) & 0x7ff }

func (v Linear11) Float() float64 {
	return math.Ldexp(float64(v.Mantissa()), v.Exponent())
}

// DecodeLinear11 returns mantissa * 2^exponent of the raw register value.
func DecodeLinear11(raw uint16) float64 { return Linear11(raw).Float() }
