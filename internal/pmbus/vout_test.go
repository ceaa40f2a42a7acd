// Copyright © 2025 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package pmbus

import (
	"errors"
	"math"
	"testing"
)

func TestEncodeVout(t *testing.T) {
	for _, x := range []struct {
		mv   float64
		code uint16
	}{
		{0, 0},
		{650, 1300},
		{800, 1600},
		{800.2, 1600},
		{800.3, 1601},
		{950, 1900},
		{32767.5, 0xffff},
	} {
		code, err := EncodeVout(x.mv)
		if err != nil {
			t.Errorf("EncodeVout(%v): %v", x.mv, err)
		} else if code != x.code {
			t.Errorf("EncodeVout(%v) = %d [expected %d]",
				x.mv, code, x.code)
		}
	}
}

func TestEncodeVoutRange(t *testing.T) {
	for _, mv := range []float64{
		-1,
		32768,
		math.NaN(),
		math.Inf(1),
		math.Inf(-1),
	} {
		if _, err := EncodeVout(mv); !errors.Is(err, ErrVoutRange) {
			t.Errorf("EncodeVout(%v) returned %v [expected %v]",
				mv, err, ErrVoutRange)
		}
	}
}

func TestVoutRoundTrip(t *testing.T) {
	for mv := 650.0; mv <= 950.0; mv += 0.1 {
		code, err := EncodeVout(mv)
		if err != nil {
			t.Fatal(err)
		}
		if d := math.Abs(DecodeVout(code) - mv); d > VoutLsb {
			t.Errorf("%v mV round trip to %v mV", mv, DecodeVout(code))
		}
	}
}

func TestDecodeVout(t *testing.T) {
	if mv := DecodeVout(1600); mv != 800 {
		t.Errorf("DecodeVout(1600) = %v [expected 800]", mv)
	}
	if mv := DecodeVout(1601); mv != 800.5 {
		t.Errorf("DecodeVout(1601) = %v [expected 800.5]", mv)
	}
}
