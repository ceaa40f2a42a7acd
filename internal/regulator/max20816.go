// Copyright © 2025 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package regulator

// MAX20816 addresses
const (
	VcoreAddr  = 0x64
	VcoremAddr = 0x65
)

var Vcore = Rail{
	Name:    "vcore",
	Address: VcoreAddr,
	InitSeq: []Write{
		{0xb0, []byte{0x15, 0x09, 0x3c, 0x08, 0x0a, 0x02, 0x0f, 0x00,
			0x11, 0x00, 0x00, 0x00, 0x00, 0x41, 0x03, 0x00,
			0x00, 0x0f, 0x0d, 0x0a, 0x00, 0x00}},
		{0xca, []byte{0x04, 0x78, 0x3c, 0x0f, 0x00}},
		{0xcb, []byte{0x05, 0x50, 0x0e, 0x64, 0x28, 0x00}},
		{0xd3, []byte{0x00}},
		{0x38, []byte{0x08, 0x00}},
		{0x39, []byte{0x0c, 0x00}},
		{0xe7, []byte{0x01}},
	},
	Avs:     true,
	AvsRail: 0,
}

var Vcorem = Rail{
	Name:    "vcorem",
	Address: VcoremAddr,
	InitSeq: []Write{
		{0xb0, []byte{0x0f, 0x19, 0x2b, 0x08, 0x17, 0x07, 0x0f, 0x00,
			0x09, 0x63, 0x09, 0x00, 0x00, 0x3f, 0x3d, 0x3a}},
		{0x38, []byte{0x08, 0x00}},
		{0x39, []byte{0x0c, 0x00}},
		{0xe7, []byte{0x10}},
	},
}

// Blackhole are the core rails in initialization order.
var Blackhole = []Rail{Vcore, Vcorem}
