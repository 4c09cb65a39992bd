// Package clocktest provides a manually driven clock for limiter tests.
package clocktest

import (
	"sync"
	"time"
)

// Clock is a goroutine-safe clock that only moves when told to.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// New returns a Clock stopped at start.
func New(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now returns the current clock reading. It is suitable as a WithClock option.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set moves the clock to t, which may be earlier than the current reading.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
