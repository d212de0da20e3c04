package counter

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestHostCounterAdvance(t *testing.T) {
	hc := NewHostCounter()
	hc.mu.Lock()
	hc.started = true
	hc.mu.Unlock()

	matches := 0
	hc.Connect(func() { matches++ })

	hc.SetTarget(NewTicks(100))
	hc.advance(250)
	if matches != 1 {
		t.Errorf("matches %d, expected 1\n", matches)
	}
	if hc.GetValue().Val() != 250 {
		t.Errorf("value %s, expected 250\n", hc.GetValue())
	}
	// target == value after the match: the next one is a full wrap away
	hc.advance(TicksMask + 1 - 150 - 1)
	if matches != 1 {
		t.Errorf("matches %d before a full wrap, expected 1\n", matches)
	}
	hc.advance(1)
	if matches != 2 {
		t.Errorf("matches %d after a full wrap, expected 2\n", matches)
	}
	if hc.GetValue().Val() != 100 {
		t.Errorf("value %s, expected 100\n", hc.GetValue())
	}

	// a stopped register does not advance
	hc.Stop()
	hc.advance(1000)
	if hc.GetValue().Val() != 100 {
		t.Errorf("stopped register advanced to %s\n", hc.GetValue())
	}
}

func TestHostCounterReset(t *testing.T) {
	hc := NewHostCounter()
	hc.mu.Lock()
	hc.value = NewTicks(7777)
	hc.started = true
	hc.mu.Unlock()

	hc.Reset()
	if hc.GetValue().Val() != 0 {
		t.Errorf("value %s after reset, expected 0\n", hc.GetValue())
	}
	if !hc.IsStarted() {
		t.Errorf("reset stopped the register\n")
	}
}

// End to end on host time: a periodic top driven by the wall clock.
func TestHostCounterWallClock(t *testing.T) {
	hc := NewHostCounter()
	c, err := New(hc, time.Millisecond)
	if err != nil {
		t.Fatalf("counter init failure: %s\n", err)
	}

	var tops uint64
	err = c.SetTopValue(TopConfig{
		Ticks: NewTicks(20), // 20ms period
		F: func(c *Counter, arg interface{}) {
			atomic.AddUint64(&tops, 1)
		},
	})
	if err != nil {
		t.Fatalf("SetTopValue failed with %q\n", err)
	}
	if err := c.Start(); err != nil {
		t.Fatalf("Start failed with %q\n", err)
	}

	time.Sleep(150 * time.Millisecond)
	c.Stop()
	hc.Shutdown()

	n := atomic.LoadUint64(&tops)
	// ~7 expected, be tolerant of scheduling latency
	if n < 2 || n > 10 {
		t.Errorf("top fired %d times in 150ms with a 20ms period\n", n)
	}
}

func TestHostCounterStartStop(t *testing.T) {
	hc := NewHostCounter()
	c, err := New(hc, time.Millisecond)
	if err != nil {
		t.Fatalf("counter init failure: %s\n", err)
	}
	if hc.IsStarted() {
		t.Fatalf("register counting before Start\n")
	}
	if err := c.Start(); err != nil {
		t.Fatalf("Start failed with %q\n", err)
	}
	if !hc.IsStarted() {
		t.Fatalf("register not counting after Start\n")
	}
	time.Sleep(30 * time.Millisecond)
	if err := c.Stop(); err != nil {
		t.Fatalf("Stop failed with %q\n", err)
	}
	v := c.GetValue()
	time.Sleep(30 * time.Millisecond)
	if c.GetValue().NE(v) {
		t.Errorf("register advanced while stopped: %s -> %s\n",
			v, c.GetValue())
	}
	// resumes from where it stopped, not from the elapsed wall time
	if err := c.Start(); err != nil {
		t.Fatalf("re-Start failed with %q\n", err)
	}
	time.Sleep(30 * time.Millisecond)
	after := c.GetValue()
	if after.Distance(v).Val() > 60 {
		t.Errorf("register jumped over the stopped interval:"+
			" %s -> %s\n", v, after)
	}
	hc.Shutdown()
}
