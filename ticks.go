// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package counter

import (
	"strconv"
)

const (
	// TicksBits is the counter register width.
	TicksBits = 32
	// TicksMask masks a value to the register width.
	TicksMask = (uint64(1) << TicksBits) - 1
)

// TopValue is the maximum representable tick value, the position at which
// the counter rolls over back to 0.
var TopValue = NewTicks(TicksMask)

// Ticks is the type used for counter tick values.
// It represents a position of a free-running register of TicksBits width
// that wraps modulo 2^TicksBits. It has no 0 or reference value: two Ticks
// can only be related through their wraparound distance (see Distance),
// never through raw magnitude comparison.
//
// Operations on Ticks should be performed only using its methods.
type Ticks struct {
	v uint64
}

// NewTicks creates a new tick value from an uint64.
func NewTicks(u uint64) Ticks {
	return Ticks{u & TicksMask}
}

// Val returns the tick value as an uint64.
func (t Ticks) Val() uint64 {
	return t.v & TicksMask
}

// EQ returns whether t == u, taking wraparound into account
// (e.g. for an 8-bit register 0x001 would be equal to 0x101).
func (t Ticks) EQ(u Ticks) bool {
	return (t.v-u.v)&TicksMask == 0
}

// NE returns whether t != u, taking wraparound into account.
func (t Ticks) NE(u Ticks) bool {
	return !t.EQ(u)
}

// Add adds another tick value and returns the result.
func (t Ticks) Add(u Ticks) Ticks {
	return Ticks{(t.v + u.v) & TicksMask}
}

// Sub subtracts another tick value and returns the result.
func (t Ticks) Sub(u Ticks) Ticks {
	return Ticks{(t.v - u.v) & TicksMask}
}

// AddUint64 adds an uint64 value and returns the result.
func (t Ticks) AddUint64(u uint64) Ticks {
	return Ticks{(t.v + u) & TicksMask}
}

// SubUint64 subtracts an uint64 value and returns the result.
func (t Ticks) SubUint64(u uint64) Ticks {
	return Ticks{(t.v - u) & TicksMask}
}

// Distance returns the number of ticks the register must advance from
// "from" before it reaches t, modulo 2^TicksBits. It is the only valid way
// of ordering two tick positions: the candidate with the smallest distance
// from the current value is the one the register reaches first, no matter
// on which side of the wrap boundary it sits.
func (t Ticks) Distance(from Ticks) Ticks {
	return t.Sub(from)
}

// String converts a tick value to a string.
func (t Ticks) String() string {
	return strconv.FormatUint(t.Val(), 10)
}
