package testutil

import (
	"sync"
	"time"
)

// SteppingClock is a deterministic wall clock for tests.
//
// Every call to Now advances it by a fixed step, so two runs of the same
// scenario record byte-identical timestamps.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SteppingClock struct {
	mu   sync.Mutex
	base time.Time
	step time.Duration
	seq  int64
}

// Epoch is the default base of a SteppingClock.
var Epoch = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

// NewSteppingClock creates a clock whose first Now() returns Epoch and which
// advances by one second per call.
func NewSteppingClock() *SteppingClock {
	return &SteppingClock{base: Epoch, step: time.Second}
}

// Now returns the current time and advances the clock.
func (c *SteppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.base.Add(time.Duration(c.seq) * c.step)
	c.seq++
	return t
}

// Calls returns how many times Now was called.
func (c *SteppingClock) Calls() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Reset rewinds the clock so the next Now() returns the base again.
func (c *SteppingClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
}
