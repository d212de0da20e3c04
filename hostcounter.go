// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package counter

import (
	"sync"
	"time"

	"github.com/intuitivelabs/timestamp"
)

// HostCounter simulates a free-running hardware counter driven by host
// time. It implements HardwareCounter: a TicksBits wide register advancing
// once per configured tick period, a single comparator and start/stop/reset
// controls. Matches are delivered on an internal goroutine started by
// Start(); use Shutdown() to stop it and wait for it to finish.
//
// The register is advanced match to match rather than tick by tick, so the
// cost of a wake-up is proportional to the number of matches crossed, not
// to the elapsed ticks.
type HostCounter struct {
	mu      sync.Mutex
	value   Ticks
	target  Ticks
	period  time.Duration // duration of one tick
	started bool
	isr     func()

	lastT   timestamp.TS // last time the register was synced to host time
	badTime uint32       // count time going backwards

	wg     sync.WaitGroup
	cancel chan struct{}
}

// NewHostCounter returns a stopped simulated counter with the comparator
// parked at TopValue.
func NewHostCounter() *HostCounter {
	return &HostCounter{
		target: TopValue,
		period: time.Microsecond,
	}
}

// GetValue returns the current register value.
func (hc *HostCounter) GetValue() Ticks {
	hc.mu.Lock()
	v := hc.value
	hc.mu.Unlock()
	return v
}

// SetTarget programs the comparator.
func (hc *HostCounter) SetTarget(t Ticks) {
	hc.mu.Lock()
	hc.target = t
	hc.mu.Unlock()
}

// Reset sets the register to 0 without stopping it.
func (hc *HostCounter) Reset() {
	hc.mu.Lock()
	hc.value = NewTicks(0)
	hc.mu.Unlock()
}

// SetPeriod sets the duration of one tick. Configuration time only: it
// must not be changed while the register is counting.
func (hc *HostCounter) SetPeriod(td time.Duration) {
	hc.mu.Lock()
	if hc.started {
		hc.mu.Unlock()
		BUG("SetPeriod called on a started counter\n")
		return
	}
	hc.period = td
	hc.mu.Unlock()
}

// Connect registers the match interrupt handler.
func (hc *HostCounter) Connect(isr func()) {
	hc.mu.Lock()
	hc.isr = isr
	hc.mu.Unlock()
}

// IsStarted returns whether the register is currently counting.
func (hc *HostCounter) IsStarted() bool {
	hc.mu.Lock()
	s := hc.started
	hc.mu.Unlock()
	return s
}

// Start starts the register counting from its current value. The first
// call also starts the goroutine that syncs the register to host time.
func (hc *HostCounter) Start() {
	hc.mu.Lock()
	if hc.started {
		hc.mu.Unlock()
		return
	}
	hc.started = true
	hc.lastT = timestamp.Now()
	if hc.cancel != nil {
		hc.mu.Unlock()
		return
	}
	hc.cancel = make(chan struct{})
	cancel := hc.cancel
	res := hc.period
	if res < time.Millisecond {
		// don't spin on sub-ms tick periods, batch them per wake-up
		res = time.Millisecond
	}
	hc.mu.Unlock()

	hc.wg.Add(1)
	go func() {
		defer hc.wg.Done()
		if DBGon() {
			DBG("starting host counter ticker with %s resolution\n", res)
		}
		ticker := time.NewTicker(res)
	loop:
		for {
			select {
			case <-cancel:
				break loop
			case _, ok := <-ticker.C:
				if !ok {
					break loop
				}
				hc.tick()
			}
		}
		ticker.Stop()
	}()
}

// Stop freezes the register in place. The comparator and value are kept;
// Start() resumes counting.
func (hc *HostCounter) Stop() {
	hc.mu.Lock()
	hc.started = false
	hc.mu.Unlock()
}

// Shutdown stops the register and the host time goroutine and waits for
// it to finish.
func (hc *HostCounter) Shutdown() {
	hc.mu.Lock()
	cancel := hc.cancel
	hc.cancel = nil
	hc.started = false
	hc.mu.Unlock()
	if cancel != nil {
		close(cancel)
	}
	hc.wg.Wait()
}

// tick syncs the register to host time, advancing it with the number of
// whole tick periods elapsed since the last sync. Fractional periods are
// left for the next wake-up. It returns the number of ticks advanced.
// Must not be called in parallel with itself.
func (hc *HostCounter) tick() uint64 {
	now := timestamp.Now()
	hc.mu.Lock()
	if !hc.started {
		// frozen: don't accumulate stopped time
		hc.lastT = now
		hc.mu.Unlock()
		return 0
	}
	if now.Before(hc.lastT) {
		// time going backwards!!
		hc.badTime++
		if hc.badTime > 10 {
			if ERRon() {
				ERR("trying to recover after time going backward %d times"+
					" with %s\n",
					hc.badTime, hc.lastT.Sub(now))
			}
			hc.lastT = now
		} else if DBGon() {
			DBG("tick: time going backward with %s (%d times)\n",
				hc.lastT.Sub(now), hc.badTime)
		}
		hc.mu.Unlock()
		return 0
	}
	hc.badTime = 0
	diff := now.Sub(hc.lastT)
	if diff < hc.period {
		// too little time has passed
		hc.mu.Unlock()
		return 0
	}
	n := uint64(diff / hc.period)
	rest := diff % hc.period
	hc.lastT = now.Add(-rest)
	hc.mu.Unlock()

	hc.advance(n)
	return n
}

// advance moves the register forward n ticks, delivering one interrupt per
// comparator match. The handler runs with the device unlocked: it reads
// the register and reprograms the comparator through the normal interface.
func (hc *HostCounter) advance(n uint64) {
	for n > 0 {
		hc.mu.Lock()
		if !hc.started {
			hc.mu.Unlock()
			return
		}
		d := hc.target.Distance(hc.value).Val()
		if d == 0 {
			// target == value: the next match is a full wrap away
			d = TicksMask + 1
		}
		step := n
		if step > d {
			step = d
		}
		hc.value = hc.value.AddUint64(step)
		matched := step == d
		isr := hc.isr
		hc.mu.Unlock()
		n -= step
		if matched && isr != nil {
			isr()
		}
	}
}
