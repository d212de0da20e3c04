// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package counter

import (
	"time"
)

// HardwareCounter is the capability the controller needs from the physical
// counter: a free-running register of TicksBits width wrapping modulo
// 2^TicksBits, a single comparator ("target") that delivers one interrupt
// per match, and start/stop/reset controls.
//
// The controller owns no part of the device; everything it does goes
// through this interface. See HostCounter for a host-time simulation.
type HardwareCounter interface {
	// GetValue returns the current register value.
	GetValue() Ticks
	// SetTarget programs the comparator. An interrupt is delivered when
	// the register next reaches the target; a target equal to the current
	// value is a full wrap away.
	SetTarget(Ticks)
	// Start starts the register counting. Stop freezes it in place.
	Start()
	Stop()
	// IsStarted returns whether the register is currently counting.
	IsStarted() bool
	// Reset sets the register to 0 without stopping it.
	Reset()
	// SetPeriod sets the duration of one tick. Configuration time only,
	// it is not part of the runtime state machine.
	SetPeriod(time.Duration)
	// Connect registers the interrupt handler. The device calls it exactly
	// once per comparator match, with no arguments (the handler re-reads
	// the register).
	Connect(isr func())
}
