// Copyright © 2025 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package vcmd dispatches voltage command messages to the regulators and
// the control source arbiter.
package vcmd

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/platinasystems/log"
	"github.com/platinasystems/vreg/internal/arbiter"
	"github.com/platinasystems/vreg/internal/pmbus"
	"github.com/platinasystems/vreg/internal/regulator"
)

// Message types
const (
	MsgSetVoltage        uint32 = 0x112
	MsgGetVoltage        uint32 = 0x113
	MsgSwitchVoutControl uint32 = 0x114
)

// Handler return codes
const (
	CodeOK             uint8 = 0
	CodeUnknownRail    uint8 = 1
	CodeUnknownMessage uint8 = 2
	CodeFailure        uint8 = 3
)

var ErrUnknownRail = errors.New("unknown rail")

// Request data[0] is reserved for the message type; the handlers take
// their arguments from data[1:].
type Request struct {
	Code uint32
	Data [8]uint32
}

// Response data[0] is the handler return code.
type Response struct {
	Data [8]uint32
}

type Handler func(code uint32, req *Request, rsp *Response) uint8

type voltager interface {
	SetVout(mv float64) error
	Vout() (float64, error)
}

// Service serializes all requests; only one bus transaction, plus its
// settle delay, is in flight at a time.
type Service struct {
	mutex    sync.Mutex
	rails    map[uint8]voltager
	devs     map[uint8]*regulator.Device
	names    map[uint8]string
	arbiter  *arbiter.Arbiter
	handlers map[uint32]Handler
}

// New returns a Service for the given devices. The device of an AVS
// capable rail owned by arb is commanded through arb.
func New(arb *arbiter.Arbiter, devs ...*regulator.Device) *Service {
	s := &Service{
		rails:    make(map[uint8]voltager),
		devs:     make(map[uint8]*regulator.Device),
		names:    make(map[uint8]string),
		arbiter:  arb,
		handlers: make(map[uint32]Handler),
	}
	for _, d := range devs {
		s.rails[d.Address] = d
		s.devs[d.Address] = d
		s.names[d.Address] = d.Name
		if arb != nil && d.Avs && arb.Device.Address == d.Address {
			s.rails[d.Address] = arb
		}
	}
	s.Register(MsgSetVoltage, s.setVoltageHandler)
	s.Register(MsgGetVoltage, s.getVoltageHandler)
	s.Register(MsgSwitchVoutControl, s.switchVoutControlHandler)
	return s
}

// Register the handler of a message type, replacing any other.
func (s *Service) Register(code uint32, h Handler) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.handlers[code] = h
}

// Rails returns the configured rail addresses in order.
func (s *Service) Rails() []uint8 {
	addrs := make([]uint8, 0, len(s.rails))
	for addr := range s.rails {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	return addrs
}

// RailByName returns the address of the named rail.
func (s *Service) RailByName(name string) (uint8, bool) {
	for addr, n := range s.names {
		if n == name {
			return addr, true
		}
	}
	return 0, false
}

func (s *Service) Name(addr uint8) string { return s.names[addr] }

func (s *Service) SetVoltage(addr uint8, mv float64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	v, found := s.rails[addr]
	if !found {
		return fmt.Errorf("%#x: %w", addr, ErrUnknownRail)
	}
	return v.SetVout(mv)
}

func (s *Service) GetVoltage(addr uint8) (float64, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	v, found := s.rails[addr]
	if !found {
		return 0, fmt.Errorf("%#x: %w", addr, ErrUnknownRail)
	}
	return v.Vout()
}

// ReadIout returns the rail's output current in A.
func (s *Service) ReadIout(addr uint8) (float64, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	d, found := s.devs[addr]
	if !found {
		return 0, fmt.Errorf("%#x: %w", addr, ErrUnknownRail)
	}
	return d.ReadIout()
}

// ReadPout returns the rail's output power in W.
func (s *Service) ReadPout(addr uint8) (float64, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	d, found := s.devs[addr]
	if !found {
		return 0, fmt.Errorf("%#x: %w", addr, ErrUnknownRail)
	}
	return d.ReadPout()
}

func (s *Service) SwitchControlSource(target pmbus.ControlSource) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.arbiter == nil {
		return fmt.Errorf("%v: %w", target, arbiter.ErrNoAvs)
	}
	return s.arbiter.Switch(target)
}

// ControlSource returns the tracked source of the arbitrated rail.
func (s *Service) ControlSource() (pmbus.ControlSource, bool) {
	if s.arbiter == nil {
		return 0, false
	}
	return s.arbiter.Source(), true
}

// Dispatch runs the handler registered for req.Code and records its return
// code in rsp.Data[0].
func (s *Service) Dispatch(req *Request, rsp *Response) uint8 {
	s.mutex.Lock()
	h, found := s.handlers[req.Code]
	s.mutex.Unlock()
	code := CodeUnknownMessage
	if found {
		code = h(req.Code, req, rsp)
	} else {
		logf("err", "message %#x: unknown", req.Code)
	}
	rsp.Data[0] = uint32(code)
	return code
}

func (s *Service) setVoltageHandler(code uint32, req *Request, rsp *Response) uint8 {
	addr := req.Data[1]
	mv := float64(req.Data[2])
	if addr > 0xff {
		return failed(code, fmt.Errorf("%#x: %w", addr, ErrUnknownRail))
	}
	return failed(code, s.SetVoltage(uint8(addr), mv))
}

func (s *Service) getVoltageHandler(code uint32, req *Request, rsp *Response) uint8 {
	addr := req.Data[1]
	if addr > 0xff {
		return failed(code, fmt.Errorf("%#x: %w", addr, ErrUnknownRail))
	}
	mv, err := s.GetVoltage(uint8(addr))
	if err == nil {
		rsp.Data[1] = uint32(mv)
	}
	return failed(code, err)
}

func (s *Service) switchVoutControlHandler(code uint32, req *Request, rsp *Response) uint8 {
	v := req.Data[1]
	if v > uint32(pmbus.SourceAvs) {
		return failed(code, fmt.Errorf("%d: %w", v,
			arbiter.ErrInvalidSource))
	}
	return failed(code, s.SwitchControlSource(pmbus.ControlSource(v)))
}

func failed(code uint32, err error) uint8 {
	switch {
	case err == nil:
		return CodeOK
	case errors.Is(err, ErrUnknownRail):
		logf("err", "message %#x: %v", code, err)
		return CodeUnknownRail
	default:
		logf("err", "message %#x: %v", code, err)
		return CodeFailure
	}
}

var logPrint = func(args ...interface{}) { log.Print(args...) }

func logf(pri, format string, args ...interface{}) {
	logPrint(pri, fmt.Sprintf(format, args...))
}
