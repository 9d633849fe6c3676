package utils

import (
	"sync"
	"time"
)

// -----------------------------------------------------------------------------

// IsExpired reports whether something stamped at ts is void at now under ttl.
// An age equal to the ttl already counts as expired.
func IsExpired(ts, now time.Time, ttl time.Duration) bool {
	return now.Sub(ts) >= ttl
}

// -----------------------------------------------------------------------------

// Clock returns the current time. Stores take one so tests can control time.
type Clock func() time.Time

// SystemClock is the wall clock
func SystemClock() time.Time {
	return time.Now()
}

// -----------------------------------------------------------------------------

// ManualClock is a Clock that only moves when told to
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
