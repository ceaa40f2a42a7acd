// Copyright © 2025 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package regulator provides access to the PMBus voltage regulator of each
// rail.
package regulator

import "fmt"

// Write is one step of a rail's configuration sequence.
type Write struct {
	Reg  uint8
	Data []byte
}

// Rail is the static configuration of a regulated output.
type Rail struct {
	Name    string
	Address uint8
	// InitSeq writes are issued in order; a later write may depend on
	// an earlier one.
	InitSeq []Write
	// Avs rails may also be commanded through the AVS bus at
	// AvsRail.
	Avs     bool
	AvsRail uint8
}

func (r Rail) String() string {
	return fmt.Sprintf("%s@%#x", r.Name, r.Address)
}
