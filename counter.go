// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

// Package counter schedules two independent timing abstractions on top of
// a single free-running hardware counter with one comparator: a periodic
// top (reload) event that fires every period ticks indefinitely, and a
// one-shot alarm that fires once at an absolute tick position. Both share
// the one "set target, interrupt on match" primitive and the 2^32 wrap
// boundary, so the controller's job is picking, after every configuration
// change and every match, the candidate the register reaches first.
package counter

import (
	"errors"
	"sync"
	"time"
)

const NAME = "counter"

var BuildTags []string

// Channels is the number of alarm channels the controller supports.
const Channels = 1

// A TopHandlerF is the callback called each time the top (reload) event
// fires. It runs in interrupt context with the controller unlocked, so it
// may call configuration operations (e.g. re-arm an alarm).
type TopHandlerF func(c *Counter, arg interface{})

// An AlarmHandlerF is the callback called when the alarm fires. ch is the
// alarm channel and ticks the register value observed at the match.
// It runs in interrupt context with the controller unlocked.
type AlarmHandlerF func(c *Counter, ch uint8, ticks Ticks, arg interface{})

// ResetPolicy selects what SetTopValue does with the running register.
type ResetPolicy uint8

const (
	// ResetAlways resets the register to 0 before arming the new period.
	ResetAlways ResetPolicy = iota
	// NoReset keeps the current register value; if the new period has
	// already elapsed (value >= period) the operation fails with
	// ErrTooLate and the register is left untouched.
	NoReset
	// ResetWhenLate keeps the current register value, but if the new
	// period has already elapsed the register is reset to 0; the
	// operation still fails with ErrTooLate.
	ResetWhenLate
)

// TopConfig describes the periodic top (reload) event.
// A period equal to TopValue or a nil handler disables the top behavior:
// the configuration is stored but no top event ever fires.
type TopConfig struct {
	Ticks  Ticks // reload period
	F      TopHandlerF
	Arg    interface{} // opaque handler parameter
	Policy ResetPolicy
}

// AlarmConfig describes a one-shot alarm.
// Ticks is either an absolute tick position or, if Absolute is false, an
// offset from the register value at SetAlarm time; it is normalized to an
// absolute position when the alarm is armed.
type AlarmConfig struct {
	Ticks    Ticks
	Absolute bool
	F        AlarmHandlerF
	Arg      interface{} // opaque handler parameter
}

// Counter is the controller for one hardware counter. It owns the per
// timer state (top + alarm) and the retarget decisions; the register
// itself is reached only through the HardwareCounter capability.
//
// All configuration operations and the match handler serialize on an
// internal lock; this is the explicit equivalent of running read-modify-
// write sequences with the match interrupt masked. Handlers themselves are
// invoked with the lock released.
type Counter struct {
	opLock sync.Mutex // operations lock, see above
	hw     HardwareCounter

	top     TopConfig
	topSet  bool  // top is set _and_ enabled (period != TopValue, handler present)
	lastTop Ticks // register value at which the current top epoch began
	nextTop Ticks // absolute position of the next top event (may wrap)

	alarm        AlarmConfig // alarm.Ticks always absolute once stored
	alarmPending bool
}

// New initializes a controller for the passed hardware counter, with td as
// the duration of one tick. It programs the device tick period, arms the
// idle wraparound watch (target = TopValue) and connects the match handler.
// The register is left stopped; call Start().
func New(hw HardwareCounter, td time.Duration) (*Counter, error) {
	if td <= 0 {
		return nil, errors.New("counter.New: tick duration too small")
	} else if td > (time.Hour * 24) {
		// probably an error
		return nil, errors.New("counter.New: tick duration too high")
	}
	c := &Counter{hw: hw}
	hw.SetPeriod(td)
	hw.SetTarget(TopValue)
	hw.Connect(c.Match)
	return c, nil
}

func (c *Counter) lock() {
	c.opLock.Lock()
}

func (c *Counter) unlock() {
	c.opLock.Unlock()
}

// Start starts the hardware register counting.
func (c *Counter) Start() error {
	c.hw.Start()
	return nil
}

// Stop freezes the hardware register. Configured top/alarm state is kept.
func (c *Counter) Stop() error {
	c.hw.Stop()
	return nil
}

// GetValue returns a snapshot of the hardware register. No side effects.
func (c *Counter) GetValue() Ticks {
	return c.hw.GetValue()
}

// SetTopValue configures the periodic top event.
// It fails with ErrBusy while an alarm is pending: the alarm's position was
// validated against the old period, so changing the period underneath it is
// rejected rather than re-validated. With cfg.Policy == ResetAlways the
// register is reset to 0 and the first top fires a full period later; with
// NoReset/ResetWhenLate the current value is kept, failing with ErrTooLate
// when the new period has already elapsed (see ResetPolicy).
func (c *Counter) SetTopValue(cfg TopConfig) error {
	c.lock()
	defer c.unlock()
	if c.alarmPending {
		if WARNon() {
			WARN("can't set top value while alarm is active\n")
		}
		return ErrBusy
	}

	v := c.hw.GetValue()

	if cfg.Policy != ResetAlways {
		if v.Val() >= cfg.Ticks.Val() {
			// the requested period has, in effect, already elapsed
			if cfg.Policy == ResetWhenLate {
				c.hw.Reset()
			}
			return ErrTooLate
		}
	} else {
		c.hw.Reset()
		v = c.hw.GetValue()
	}

	c.top = cfg
	c.lastTop = v
	c.nextTop = v.Add(cfg.Ticks)

	if cfg.Ticks.Val() != 0 && cfg.Ticks.NE(TopValue) && cfg.F != nil {
		c.topSet = true
		c.program(v)
	} else {
		// degenerate "disabled" top, kept but with no retargeting effect
		c.topSet = false
	}
	return nil
}

// GetTopValue returns the configured top period (not the absolute position
// of the next top event).
func (c *Counter) GetTopValue() Ticks {
	c.lock()
	defer c.unlock()
	return c.top.Ticks
}

// SetAlarm arms the one-shot alarm on channel ch.
// At most one alarm can be pending: a second SetAlarm fails with ErrBusy
// and leaves the pending alarm untouched. A relative alarm is normalized to
// an absolute position first. While a top is active the alarm must fall
// within one period from now, otherwise ErrInvalidTicks is returned.
func (c *Counter) SetAlarm(ch uint8, cfg AlarmConfig) error {
	if ch >= Channels {
		if WARNon() {
			WARN("channel %d is not supported\n", ch)
		}
		return ErrUnsupported
	}
	c.lock()
	defer c.unlock()
	if c.alarmPending {
		return ErrBusy
	}

	v := c.hw.GetValue()
	ticks := cfg.Ticks
	if !cfg.Absolute {
		ticks = ticks.Add(v)
	}

	if c.topSet && ticks.Distance(v).Val() > c.top.Ticks.Val() {
		// the next top boundary is at most one period away
		if WARNon() {
			WARN("alarm ticks %s exceed top period %s\n", ticks, c.top.Ticks)
		}
		return ErrInvalidTicks
	}

	c.alarm = cfg
	c.alarm.Ticks = ticks
	c.alarm.Absolute = true
	c.alarmPending = true
	c.program(v)
	return nil
}

// CancelAlarm disarms a pending alarm on channel ch.
// It fails with ErrUnsupported for an invalid channel or when the register
// is not counting. The comparator is not reprogrammed: the next match or
// rollover simply finds nothing pending.
func (c *Counter) CancelAlarm(ch uint8) error {
	if ch >= Channels {
		if WARNon() {
			WARN("channel %d is not supported\n", ch)
		}
		return ErrUnsupported
	}
	if !c.hw.IsStarted() {
		if WARNon() {
			WARN("counter not started\n")
		}
		return ErrUnsupported
	}
	c.lock()
	c.alarmPending = false
	c.unlock()
	return nil
}

// program computes and sets the comparator target: the candidate closest
// to v in wraparound distance among the pending alarm position, the next
// top boundary and TopValue (the rollover watch). This single rule is the
// whole retarget policy; SetTopValue, SetAlarm and the match handler all
// go through it.
// A candidate at distance 0 sits at the current value: the comparator
// cannot match a position already passed, so it counts as a full wrap away.
// Must be called with the operations lock held.
func (c *Counter) program(v Ticks) {
	const wrap = TicksMask + 1
	target := TopValue
	d := TopValue.Distance(v).Val()
	if d == 0 {
		d = wrap
	}
	if c.topSet {
		if td := c.nextTop.Distance(v).Val(); td != 0 && td < d {
			target = c.nextTop
			d = td
		}
	}
	if c.alarmPending {
		if ad := c.alarm.Ticks.Distance(v).Val(); ad != 0 && ad < d {
			target = c.alarm.Ticks
		}
	}
	c.hw.SetTarget(target)
}
