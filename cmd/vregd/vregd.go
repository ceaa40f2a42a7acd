// Copyright © 2025 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package vregd provides the voltage regulator daemon. It commands the core
// rail voltages on request through rpc and redis, and publishes their
// telemetry.
package vregd

import (
	"fmt"
	"net/rpc"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/platinasystems/atsock"
	"github.com/platinasystems/flags"
	"github.com/platinasystems/log"
	"github.com/platinasystems/parms"
	"github.com/platinasystems/redis"
	"github.com/platinasystems/redis/publisher"
	"github.com/platinasystems/redis/rpc/args"
	"github.com/platinasystems/redis/rpc/reply"
	"github.com/platinasystems/vreg/internal/arbiter"
	"github.com/platinasystems/vreg/internal/avs"
	"github.com/platinasystems/vreg/internal/pmbus"
	"github.com/platinasystems/vreg/internal/regulator"
	"github.com/platinasystems/vreg/internal/vcmd"
)

const Name = "vregd"

const (
	// PMBus master
	DefaultBus      = 1
	DefaultInterval = 10 * time.Second
)

// The platform Init may replace these before Main.
var (
	Rails = regulator.Blackhole

	// Avs transfers AVS bus frames of the arbitrated rail; without it,
	// the rail is only commanded through PMBus.
	Avs avs.Transceiver
)

type Command struct {
	Info
	Init func()
	init sync.Once
}

type Info struct {
	mutex sync.Mutex
	rpc   *atsock.RpcServer
	pub   *publisher.Publisher
	svc   *vcmd.Service
	arb   *arbiter.Arbiter
	last  map[string]string

	stop     chan struct{}
	stopInit sync.Once
	stopOnce sync.Once
}

type config struct {
	bus      int
	interval time.Duration
	init     bool
	avs      bool
}

func (*Command) String() string { return Name }

func (*Command) Usage() string {
	return Name + " [-bus INDEX] [-interval SECONDS] [-no-init] [-avs]"
}

func (c *Command) Main(args ...string) error {
	if c.Init != nil {
		c.init.Do(c.Init)
	}
	stop := c.stopped()

	flag, args := flags.New(args, "-no-init", "-avs")
	parm, args := parms.New(args, "-bus", "-interval")
	if len(args) > 0 {
		return fmt.Errorf("%v: unexpected", args)
	}
	cfg, err := newConfig(parm.ByName["-bus"], parm.ByName["-interval"],
		flag.ByName["-no-init"], flag.ByName["-avs"])
	if err != nil {
		return err
	}

	if err = redis.IsReady(); err != nil {
		return err
	}

	bus := &pmbus.I2cBus{Index: cfg.bus}
	defer bus.Close()

	if err = c.setup(Rails, bus, nil, Avs, cfg); err != nil {
		return err
	}

	if c.pub, err = publisher.New(); err != nil {
		return err
	}
	defer c.pub.Close()
	if c.rpc, err = atsock.NewRpcServer(Name); err != nil {
		return err
	}
	defer c.rpc.Close()
	rpc.Register(&c.Info)
	err = redis.Assign(redis.DefaultHash+":vreg.", Name, "Info")
	if err != nil {
		return err
	}
	logf("info", "i2c-%d rails %v source %v", cfg.bus, Rails,
		c.arbitrated())

	return c.run(stop, cfg.interval)
}

// run publishes telemetry every interval until stop is closed.
func (c *Command) run(stop <-chan struct{}, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return nil
		case <-t.C:
			c.update()
		}
	}
}

// Close stops Main, even one that has yet to reach its polling loop. Main
// closes its rpc server and publisher on return.
func (c *Command) Close() error {
	c.stopOnce.Do(func() { close(c.stopped()) })
	return nil
}

func (i *Info) stopped() chan struct{} {
	i.stopInit.Do(func() { i.stop = make(chan struct{}) })
	return i.stop
}

func newConfig(bus, interval string, noInit, startAvs bool) (config, error) {
	cfg := config{
		bus:      DefaultBus,
		interval: DefaultInterval,
		init:     !noInit,
		avs:      startAvs,
	}
	if len(bus) > 0 {
		n, err := strconv.Atoi(bus)
		if err != nil || n < 0 {
			return cfg, fmt.Errorf("-bus %s: invalid", bus)
		}
		cfg.bus = n
	}
	if len(interval) > 0 {
		n, err := strconv.Atoi(interval)
		if err != nil || n <= 0 {
			return cfg, fmt.Errorf("-interval %s: invalid", interval)
		}
		cfg.interval = time.Duration(n) * time.Second
	}
	return cfg, nil
}

// setup the regulator of each rail; the first AVS capable rail is owned by
// the arbiter.
func (i *Info) setup(rails []regulator.Rail, bus pmbus.Bus,
	delay pmbus.Delay, t avs.Transceiver, cfg config) error {
	if cfg.avs && t == nil {
		return fmt.Errorf("-avs: %w", arbiter.ErrNoAvs)
	}
	var devs []*regulator.Device
	var arb *arbiter.Arbiter
	for _, rail := range rails {
		d := regulator.New(bus, delay, rail)
		devs = append(devs, d)
		if rail.Avs && arb == nil {
			var a arbiter.Avs
			if t != nil {
				a = &avs.Bus{Transceiver: t}
			}
			arb = arbiter.New(d, a)
		}
	}
	if cfg.init {
		if err := regulator.Init(devs...); err != nil {
			logf("err", "init: %v", err)
			return err
		}
	}
	i.arb = arb
	i.svc = vcmd.New(arb, devs...)
	i.last = make(map[string]string)
	if cfg.avs {
		err := i.svc.SwitchControlSource(pmbus.SourceAvs)
		if err != nil {
			logf("err", "switch to avs: %v", err)
			return err
		}
	}
	return nil
}

func (i *Info) arbitrated() string {
	if src, ok := i.svc.ControlSource(); ok {
		return src.String()
	}
	return "n/a"
}

// update publishes the telemetry of every rail; a failed read is logged and
// the rest are still published. It returns the first error.
func (i *Info) update() error {
	i.mutex.Lock()
	defer i.mutex.Unlock()

	var first error
	failed := func(err error) {
		logf("err", "%v", err)
		if first == nil {
			first = err
		}
	}
	for _, addr := range i.svc.Rails() {
		mv, err := i.svc.GetVoltage(addr)
		if err != nil {
			failed(err)
			continue
		}
		i.changed("vreg."+i.svc.Name(addr)+".vout.mV", ffmt(mv))
	}
	if i.arb == nil {
		return first
	}
	d := i.arb.Device
	if a, err := i.svc.ReadIout(d.Address); err != nil {
		failed(err)
	} else {
		i.changed("vreg."+d.Name+".iout.A", ffmt(a))
	}
	if w, err := i.svc.ReadPout(d.Address); err != nil {
		failed(err)
	} else {
		i.changed("vreg."+d.Name+".pout.W", ffmt(w))
	}
	i.changed("vreg.vout.source", i.arbitrated())
	return first
}

// Dispatch a SET_VOLTAGE, GET_VOLTAGE, or SWITCH_VOUT_CONTROL message.
func (i *Info) Dispatch(req vcmd.Request, rsp *vcmd.Response) error {
	i.svc.Dispatch(&req, rsp)
	return nil
}

func (i *Info) Hset(args args.Hset, reply *reply.Hset) error {
	err := i.set(args.Field, string(args.Value))
	if err == nil {
		*reply = 1
	}
	return err
}

func (i *Info) set(field, value string) error {
	switch {
	case field == "vreg.vout.source":
		src, err := pmbus.ParseControlSource(value)
		if err != nil {
			return err
		}
		if err = i.svc.SwitchControlSource(src); err != nil {
			return err
		}
		logf("info", "vout source %v", src)
		value = src.String()
	case strings.HasPrefix(field, "vreg.") &&
		strings.HasSuffix(field, ".vout.mV"):
		name := strings.TrimSuffix(strings.TrimPrefix(field, "vreg."),
			".vout.mV")
		addr, found := i.svc.RailByName(name)
		if !found {
			return fmt.Errorf("cannot hset: %s: %w", field,
				vcmd.ErrUnknownRail)
		}
		mv, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%s: %s: invalid millivolts", field, value)
		}
		if err = i.svc.SetVoltage(addr, mv); err != nil {
			return err
		}
		value = ffmt(mv)
	default:
		return fmt.Errorf("cannot hset: %s", field)
	}
	i.mutex.Lock()
	defer i.mutex.Unlock()
	i.changed(field, value)
	return nil
}

// changed publishes the value if it differs from the last published.
func (i *Info) changed(key, value string) {
	if i.last[key] == value {
		return
	}
	i.last[key] = value
	if i.pub != nil {
		i.pub.Print(key, ": ", value)
	}
}

func ffmt(v float64) string { return strconv.FormatFloat(v, 'f', 3, 64) }

var logPrint = func(args ...interface{}) { log.Print(args...) }

func logf(pri, format string, args ...interface{}) {
	logPrint(pri, fmt.Sprintf(format, args...))
}
