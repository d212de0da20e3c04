// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package counter

// Match is the interrupt entry point, called by the hardware exactly once
// per comparator match. One register snapshot is taken at entry and up to
// three conditions are evaluated against it, in a fixed order:
//
//  1. top: the snapshot is one period past the start of the epoch. The
//     epoch bookkeeping (lastTop/nextTop) is advanced before the handler
//     runs, so a handler that re-arms an alarm validates against the fresh
//     boundary.
//  2. alarm: the snapshot equals the pending alarm position. The pending
//     flag is cleared before the handler runs; the alarm never refires.
//  3. rollover: the snapshot is TopValue. The register is reset to 0 and,
//     since 0 is now the live position, the top and alarm conditions are
//     evaluated once more against it: a top boundary or alarm that lands
//     exactly on the wrap position belongs to this match, not to the next
//     full wrap.
//
// A single tick value may satisfy more than one condition (top == alarm,
// either == TopValue); no condition fires twice for the same position. The
// comparator is reprogrammed exactly once, at the end, from whatever is
// still armed.
//
// Handlers run with the operations lock released and may call the
// configuration operations; any target they program is superseded by the
// final retarget, which already accounts for their state changes.
func (c *Counter) Match() {
	c.lock()
	v := c.hw.GetValue()

	for {
		if c.topSet && v.EQ(c.lastTop.Add(c.top.Ticks)) {
			// record the observed value, never a predicted one: periodic
			// error must not accumulate across wraparounds
			c.lastTop = v
			c.nextTop = v.Add(c.top.Ticks)
			f := c.top.F
			arg := c.top.Arg
			c.unlock()
			if f != nil {
				f(c, arg)
			}
			c.lock()
		}

		if c.alarmPending && v.EQ(c.alarm.Ticks) {
			c.alarmPending = false
			f := c.alarm.F
			arg := c.alarm.Arg
			c.unlock()
			if f != nil {
				f(c, 0, v, arg)
			}
			c.lock()
		}

		if v.NE(TopValue) {
			break
		}
		c.hw.Reset()
		v = NewTicks(0)
	}

	c.program(v)
	c.unlock()
}
