// Package slidingwindowlog holds the rules shared by Sliding Window Log limiters:
// parameter validation, the eviction boundary and the retry-after computation.
//
// A sliding window log keeps, per identifier, the timestamps of the requests it
// admitted. A request is admitted while fewer than limit timestamps are younger
// than the window.
package slidingwindowlog

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is returned when a limiter is constructed with a
// non-positive window or limit.
var ErrInvalidConfig = errors.New("invalid sliding window log configuration")

// Validate checks the construction parameters of a limiter.
func Validate(window time.Duration, limit int64) error {
	if window <= 0 {
		return fmt.Errorf("%w: window must be positive, got %s", ErrInvalidConfig, window)
	}
	if limit <= 0 {
		return fmt.Errorf("%w: limit must be positive, got %d", ErrInvalidConfig, limit)
	}
	return nil
}

// Cutoff returns the eviction boundary for now: every timestamp at or before
// it has left the window.
func Cutoff(now time.Time, window time.Duration) time.Time {
	return now.Add(-window)
}

// Expired reports whether a request recorded at t no longer counts at now.
// A timestamp exactly one window old is expired.
func Expired(t, now time.Time, window time.Duration) bool {
	return !t.After(Cutoff(now, window))
}

// WaitTime is the time left until a request recorded at oldest leaves the
// window, clamped at zero.
func WaitTime(oldest, now time.Time, window time.Duration) time.Duration {
	wait := oldest.Add(window).Sub(now)
	if wait < 0 {
		return 0
	}
	return wait
}

// RetryAfterSeconds rounds a wait up to whole seconds for a Retry-After
// header. Any positive wait yields at least one second.
func RetryAfterSeconds(wait time.Duration) int {
	if wait <= 0 {
		return 0
	}
	secs := int(wait / time.Second)
	if wait%time.Second != 0 {
		secs++
	}
	return secs
}
