package engine

import "sync/atomic"

// Clock is a monotonic logical clock for audit sequencing. Replay
// determinism depends on logical ordering, not wall time, so every audit
// record gets a sequence number from here.
type Clock struct {
	counter atomic.Int64
}

// NewClock creates a clock starting at zero.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number. Safe for concurrent use.
func (c *Clock) Next() int64 {
	return c.counter.Add(1)
}

// Current returns the last issued sequence number without advancing.
func (c *Clock) Current() int64 {
	return c.counter.Load()
}

// Advance moves the clock forward to at least n. Used when resuming a
// run from persisted audit records so new sequence numbers never collide
// with stored ones.
func (c *Clock) Advance(n int64) {
	for {
		cur := c.counter.Load()
		if cur >= n {
			return
		}
		if c.counter.CompareAndSwap(cur, n) {
			return
		}
	}
}
