// Copyright © 2025 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package pmbus

import (
	"errors"
	"fmt"
	"math"
)

// VoutLsb is the millivolt resolution of VOUT_COMMAND and READ_VOUT.
const VoutLsb = 0.5

var ErrVoutRange = errors.New("vout out of range")

// EncodeVout returns the VOUT_COMMAND code of the given millivolts,
// round(2 * mv). Values that don't fit the 16-bit field are rejected.
func EncodeVout(mv float64) (uint16, error) {
	code := math.Round(mv / VoutLsb)
	if math.IsNaN(code) || code < 0 || code > math.MaxUint16 {
		return 0, fmt.Errorf("%v mV: %w", mv, ErrVoutRange)
	}
	return uint16(code), nil
}

// DecodeVout returns the millivolts of a VOUT_COMMAND or READ_VOUT code.
func DecodeVout(code uint16) float64 { return float64(code) * VoutLsb }
