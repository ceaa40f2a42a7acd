// Copyright © 2025 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package pmbus

// PMBus command codes
const (
	Operation   = 0x01 // OPERATION
	VoutCommand = 0x21 // VOUT_COMMAND
	ReadVout    = 0x8b // READ_VOUT
	ReadIout    = 0x8c // READ_IOUT
	ReadPout    = 0x96 // READ_POUT
)

// Data byte size of each command
const (
	OperationSize   = 1
	VoutCommandSize = 2
	ReadVoutSize    = 2
	ReadIoutSize    = 2
	ReadPoutSize    = 2
)
