package testutil

import (
	"sync"
	"time"
)

// DeterministicClock is a wall clock for tests that starts at a fixed
// instant and advances by a fixed step on every call to Now.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu    sync.Mutex
	start time.Time
	step  time.Duration
	calls int64
}

// Epoch is the default start of a DeterministicClock.
var Epoch = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

// NewDeterministicClock creates a clock whose first reading is Epoch and
// which advances by one second per reading.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{start: Epoch, step: time.Second}
}

// Now returns the next reading.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.start.Add(time.Duration(c.calls) * c.step)
	c.calls++
	return t
}

// Calls returns how many readings have been taken.
func (c *DeterministicClock) Calls() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Reset makes the next reading Epoch again.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = 0
}
