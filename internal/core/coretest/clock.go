// Package coretest holds fakes of the core interfaces shared by package tests.
package coretest

import (
	"sync"
	"time"

	"github.com/dkeye/VoiceClient/internal/core"
)

// Clock records scheduled callbacks instead of running them; tests fire them by hand.
type Clock struct {
	mu     sync.Mutex
	timers []*Timer
}

type Timer struct {
	clock   *Clock
	Delay   time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (c *Clock) AfterFunc(d time.Duration, f func()) core.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &Timer{clock: c, Delay: d, fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *Timer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	wasPending := !t.stopped && !t.fired
	t.stopped = true
	return wasPending
}

// Delays lists every delay ever scheduled, in order.
func (c *Clock) Delays() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, 0, len(c.timers))
	for _, t := range c.timers {
		out = append(out, t.Delay)
	}
	return out
}

// Pending lists timers neither stopped nor fired.
func (c *Clock) Pending() []*Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*Timer
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
	}
	return out
}

// FireLast runs the most recently scheduled pending timer synchronously.
// It reports false when nothing is pending.
func (c *Clock) FireLast() bool {
	pending := c.Pending()
	if len(pending) == 0 {
		return false
	}
	t := pending[len(pending)-1]
	c.mu.Lock()
	t.fired = true
	c.mu.Unlock()
	t.fn()
	return true
}
