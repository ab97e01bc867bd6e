package testutil

import (
	"sync"
	"time"
)

// DeterministicClock provides a thread-safe monotonic logical clock for
// tests.
//
// Unlike engine.Clock, DeterministicClock can be reset for test reuse.
// This enables the same test scenario to run multiple times with
// identical seq values.
//
// Thread-safety: All methods are safe for concurrent use via internal
// mutex.
type DeterministicClock struct {
	mu  sync.Mutex
	seq int64
}

// NewDeterministicClock creates a new deterministic clock starting at 0.
//
// The first call to Next() returns 1.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{seq: 0}
}

// Next increments and returns the next sequence number.
func (c *DeterministicClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Current returns the current sequence number without incrementing.
func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Reset resets the clock to 0. After Reset(), the next call to Next()
// returns 1.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
}

// FixedTime returns a time source pinned to a constant instant, for
// byte-stable audit timestamps in golden traces.
func FixedTime() func() time.Time {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return at }
}
