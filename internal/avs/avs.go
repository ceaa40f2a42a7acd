// Copyright © 2025 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package avs provides 32-bit AVSBus frames and voltage commands.
//
// Master frame:
//
//	31:30	start code, 01
//	29:28	command, 00 write and commit, 01 write and hold, 11 read
//	27	command group, 0 for AVSBus
//	26:23	command data type, 0000 for voltage
//	22:19	rail select
//	18:3	command data
//	2:0	CRC
//
// Slave frame:
//
//	31:30	slave ack, 00 for good CRC and action taken
//	29	0
//	28:24	status response
//	23:8	command data
//	7:3	reserved, 11111
//	2:0	CRC
package avs

import (
	"errors"
	"fmt"
	"math"
)

const (
	CmdWriteCommit uint8 = 0
	CmdWriteHold   uint8 = 1
	CmdRead        uint8 = 3
)

const TypeVoltage uint8 = 0

const startCode = 1

var (
	ErrCRC   = errors.New("avs crc mismatch")
	ErrNack  = errors.New("avs nack")
	ErrRange = errors.New("avs voltage out of range")
)

// Crc3 returns the x^3+x+1 CRC of frame bits 31:3.
func Crc3(frame uint32) uint8 {
	var crc uint32
	for i := 31; i >= 3; i-- {
		bit := frame >> uint(i) & 1
		msb := crc >> 2 & 1
		crc = crc << 1 & 7
		if bit^msb != 0 {
			crc ^= 3
		}
	}
	return uint8(crc)
}

// Frame is a master frame.
type Frame uint32

func NewFrame(cmd, typ, rail uint8, data uint16) Frame {
	v := uint32(startCode)<<30 |
		uint32(cmd&3)<<28 |
		uint32(typ&0xf)<<23 |
		uint32(rail&0xf)<<19 |
		uint32(data)<<3
	return Frame(v | uint32(Crc3(v)))
}

func (f Frame) Cmd() uint8   { return uint8(f >> 28 & 3) }
func (f Frame) Type() uint8  { return uint8(f >> 23 & 0xf) }
func (f Frame) Rail() uint8  { return uint8(f >> 19 & 0xf) }
func (f Frame) Data() uint16 { return uint16(f >> 3) }
func (f Frame) Valid() bool  { return uint8(f&7) == Crc3(uint32(f)) }

// Response is a slave frame.
type Response uint32

// NewResponse is the slave side of a transfer.
func NewResponse(ack, status uint8, data uint16) Response {
	v := uint32(ack&3)<<30 |
		uint32(status&0x1f)<<24 |
		uint32(data)<<8 |
		0x1f<<3
	return Response(v | uint32(Crc3(v)))
}

func (r Response) Ack() uint8    { return uint8(r >> 30) }
func (r Response) Status() uint8 { return uint8(r >> 24 & 0x1f) }
func (r Response) Data() uint16  { return uint16(r >> 8) }
func (r Response) Valid() bool   { return uint8(r&7) == Crc3(uint32(r)) }

// Transceiver sends a master frame and returns the slave's response to it.
type Transceiver interface {
	Transfer(frame uint32) (uint32, error)
}

// Bus commands rail voltages in mV.
type Bus struct {
	Transceiver
}

func (b *Bus) WriteVoltage(rail uint8, mv float64) error {
	v := math.Round(mv)
	if math.IsNaN(v) || v < 0 || v > math.MaxUint16 {
		return fmt.Errorf("rail %d %v mV: %w", rail, mv, ErrRange)
	}
	_, err := b.do(NewFrame(CmdWriteCommit, TypeVoltage, rail, uint16(v)))
	return err
}

func (b *Bus) ReadVoltage(rail uint8) (float64, error) {
	r, err := b.do(NewFrame(CmdRead, TypeVoltage, rail, 0xffff))
	if err != nil {
		return 0, err
	}
	return float64(r.Data()), nil
}

func (b *Bus) do(f Frame) (Response, error) {
	rx, err := b.Transfer(uint32(f))
	if err != nil {
		return 0, fmt.Errorf("avs rail %d: %w", f.Rail(), err)
	}
	r := Response(rx)
	if !r.Valid() {
		return r, fmt.Errorf("avs rail %d %#08x: %w", f.Rail(), rx, ErrCRC)
	}
	if r.Ack() != 0 {
		return r, fmt.Errorf("avs rail %d ack %d status %#x: %w",
			f.Rail(), r.Ack(), r.Status(), ErrNack)
	}
	return r, nil
}
