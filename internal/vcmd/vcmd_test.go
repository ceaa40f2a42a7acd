// Copyright © 2025 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package vcmd

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"testing"

	"github.com/platinasystems/vreg/internal/arbiter"
	"github.com/platinasystems/vreg/internal/pmbus"
	"github.com/platinasystems/vreg/internal/pmbus/pmbustest"
	"github.com/platinasystems/vreg/internal/regulator"
)

var logged []string

func TestMain(m *testing.M) {
	logPrint = func(args ...interface{}) {
		logged = append(logged, fmt.Sprint(args...))
	}
	os.Exit(m.Run())
}

type fakeAvs struct{ mv []float64 }

func (f *fakeAvs) WriteVoltage(rail uint8, mv float64) error {
	f.mv = append(f.mv, mv)
	return nil
}

func (f *fakeAvs) ReadVoltage(rail uint8) (float64, error) { return 0, nil }

func newTestService() (*Service, *pmbustest.Bus, *fakeAvs) {
	bus := pmbustest.New()
	avs := &fakeAvs{}
	vcore := regulator.New(bus, bus.Delay, regulator.Vcore)
	vcorem := regulator.New(bus, bus.Delay, regulator.Vcorem)
	arb := arbiter.New(vcore, avs)
	return New(arb, vcore, vcorem), bus, avs
}

func request(code uint32, data ...uint32) *Request {
	req := &Request{Code: code}
	req.Data[0] = code
	copy(req.Data[1:], data)
	return req
}

func TestSetVoltage(t *testing.T) {
	s, bus, _ := newTestService()
	var rsp Response
	code := s.Dispatch(request(MsgSetVoltage, regulator.VcoreAddr, 800), &rsp)
	if code != CodeOK || rsp.Data[0] != uint32(CodeOK) {
		t.Fatalf("SET_VOLTAGE returned %d, rsp %v", code, rsp.Data)
	}
	expect := []pmbustest.Event{
		{
			Op:   "write",
			Addr: regulator.VcoreAddr,
			Reg:  pmbus.VoutCommand,
			Data: []byte{0x40, 0x06},
		},
	}
	if writes := bus.Ops("write"); !reflect.DeepEqual(writes, expect) {
		t.Errorf("writes %v [expected %v]", writes, expect)
	}
	if delays := bus.Ops("delay"); len(delays) != 1 ||
		delays[0].Delay != regulator.VoutSettle {
		t.Errorf("delays %v [expected %v]", delays, regulator.VoutSettle)
	}
	b := bus.Get(regulator.VcoreAddr, pmbus.VoutCommand)
	if vout := uint16(b[1])<<8 | uint16(b[0]); vout != 1600 {
		t.Errorf("VOUT_COMMAND %d [expected 1600]", vout)
	}
}

func TestGetVoltage(t *testing.T) {
	s, bus, _ := newTestService()
	bus.Set(regulator.VcoremAddr, pmbus.ReadVout, 0xdc, 0x05)
	var rsp Response
	code := s.Dispatch(request(MsgGetVoltage, regulator.VcoremAddr), &rsp)
	if code != CodeOK {
		t.Fatalf("GET_VOLTAGE returned %d", code)
	}
	if rsp.Data[1] != 750 {
		t.Errorf("GET_VOLTAGE %d mV [expected 750]", rsp.Data[1])
	}
}

func TestUnknownRail(t *testing.T) {
	s, bus, _ := newTestService()
	logged = nil
	for _, req := range []*Request{
		request(MsgSetVoltage, 0x66, 800),
		request(MsgGetVoltage, 0x66),
		request(MsgSetVoltage, 0x100+regulator.VcoreAddr, 800),
		request(MsgGetVoltage, 0x100+regulator.VcoremAddr),
	} {
		var rsp Response
		if code := s.Dispatch(req, &rsp); code != CodeUnknownRail {
			t.Errorf("%#x %#x returned %d [expected %d]",
				req.Code, req.Data[1], code, CodeUnknownRail)
		}
		if rsp.Data[0] != uint32(CodeUnknownRail) {
			t.Errorf("rsp %v", rsp.Data)
		}
	}
	if len(bus.Events) != 0 {
		t.Errorf("unexpected events %v", bus.Events)
	}
	if len(logged) != 4 || !strings.HasPrefix(logged[0], "err") {
		t.Errorf("logged %q", logged)
	}
}

func TestSwitchVoutControl(t *testing.T) {
	s, bus, avs := newTestService()
	var rsp Response
	req := request(MsgSwitchVoutControl, uint32(pmbus.SourceAvs))
	if code := s.Dispatch(req, &rsp); code != CodeOK {
		t.Fatalf("SWITCH_VOUT_CONTROL returned %d", code)
	}
	if src, ok := s.ControlSource(); !ok || src != pmbus.SourceAvs {
		t.Errorf("source %v, %t", src, ok)
	}
	bus.Reset()

	s.Dispatch(request(MsgSetVoltage, regulator.VcoreAddr, 780), &rsp)
	s.Dispatch(request(MsgSetVoltage, regulator.VcoremAddr, 760), &rsp)
	if !reflect.DeepEqual(avs.mv, []float64{780}) {
		t.Errorf("avs writes %v [expected 780]", avs.mv)
	}
	writes := bus.Ops("write")
	if len(writes) != 1 || writes[0].Addr != regulator.VcoremAddr {
		t.Errorf("PMBus writes %v [expected vcorem only]", writes)
	}
}

func TestSwitchVoutControlInvalid(t *testing.T) {
	s, bus, _ := newTestService()
	for _, v := range []uint32{4, 0x103} {
		var rsp Response
		req := request(MsgSwitchVoutControl, v)
		if code := s.Dispatch(req, &rsp); code != CodeFailure {
			t.Errorf("SWITCH_VOUT_CONTROL %#x returned %d", v, code)
		}
	}
	if len(bus.Events) != 0 {
		t.Errorf("unexpected events %v", bus.Events)
	}
	if src, _ := s.ControlSource(); src != pmbus.SourceVoutCommand {
		t.Errorf("source %v", src)
	}
}

func TestBusFailure(t *testing.T) {
	s, bus, _ := newTestService()
	bus.FailWrite(regulator.VcoreAddr, pmbus.VoutCommand)
	bus.FailRead(regulator.VcoremAddr, pmbus.ReadVout)
	bus.FailWrite(regulator.VcoreAddr, pmbus.Operation)
	for _, req := range []*Request{
		request(MsgSetVoltage, regulator.VcoreAddr, 800),
		request(MsgGetVoltage, regulator.VcoremAddr),
		request(MsgSwitchVoutControl, uint32(pmbus.SourceAvs)),
	} {
		var rsp Response
		if code := s.Dispatch(req, &rsp); code != CodeFailure {
			t.Errorf("%#x returned %d [expected %d]",
				req.Code, code, CodeFailure)
		}
		if rsp.Data[1] != 0 {
			t.Errorf("%#x rsp %v", req.Code, rsp.Data)
		}
	}
	if src, _ := s.ControlSource(); src != pmbus.SourceVoutCommand {
		t.Errorf("source %v after failed switch", src)
	}
}

func TestUnknownMessage(t *testing.T) {
	s, bus, _ := newTestService()
	var rsp Response
	if code := s.Dispatch(request(0x99), &rsp); code != CodeUnknownMessage {
		t.Errorf("unknown message returned %d", code)
	}
	if len(bus.Events) != 0 {
		t.Errorf("unexpected events %v", bus.Events)
	}
}

func TestRegister(t *testing.T) {
	s, _, _ := newTestService()
	s.Register(0x99, func(code uint32, req *Request, rsp *Response) uint8 {
		rsp.Data[1] = req.Data[1] + 1
		return CodeOK
	})
	var rsp Response
	if code := s.Dispatch(request(0x99, 41), &rsp); code != CodeOK ||
		rsp.Data[1] != 42 {
		t.Errorf("returned %d, rsp %v", code, rsp.Data)
	}
}

func TestRails(t *testing.T) {
	s, _, _ := newTestService()
	expect := []uint8{regulator.VcoreAddr, regulator.VcoremAddr}
	if rails := s.Rails(); !reflect.DeepEqual(rails, expect) {
		t.Errorf("rails % x [expected % x]", rails, expect)
	}
	if addr, found := s.RailByName("vcorem"); !found ||
		addr != regulator.VcoremAddr {
		t.Errorf("RailByName(vcorem) = %#x, %t", addr, found)
	}
	if _, found := s.RailByName("vddio"); found {
		t.Error("RailByName(vddio) found")
	}
}

func TestTelemetry(t *testing.T) {
	s, bus, _ := newTestService()
	bus.Set(regulator.VcoreAddr, pmbus.ReadIout, 0x64, 0xf0)
	bus.Set(regulator.VcoreAddr, pmbus.ReadPout, 0x2c, 0xf9)
	if a, err := s.ReadIout(regulator.VcoreAddr); err != nil || a != 25 {
		t.Errorf("ReadIout() = %v, %v [expected 25]", a, err)
	}
	if w, err := s.ReadPout(regulator.VcoreAddr); err != nil || w != 150 {
		t.Errorf("ReadPout() = %v, %v [expected 150]", w, err)
	}
	if _, err := s.ReadIout(0x66); !errors.Is(err, ErrUnknownRail) {
		t.Errorf("ReadIout(0x66) returned %v", err)
	}
}
