package engine

import "sync/atomic"

// Instant is one discrete step of the logical clock. Instants start at 1;
// the zero Instant means "never".
type Instant int64

// Clock is the runtime's logical clock.
//
// Before a pump it denotes the next instant to be processed; during a pump it
// denotes the instant being processed. It only moves forward, and only when a
// pump actually drains at least one task.
type Clock struct {
	instant atomic.Int64
}

// NewClock creates a clock positioned at instant 1.
func NewClock() *Clock {
	return NewClockAt(1)
}

// NewClockAt creates a clock positioned at a specific instant.
// Values below 1 are clamped to 1.
func NewClockAt(start Instant) *Clock {
	c := &Clock{}
	if start < 1 {
		start = 1
	}
	c.instant.Store(int64(start))
	return c
}

// Current returns the current instant without advancing.
func (c *Clock) Current() Instant {
	return Instant(c.instant.Load())
}

// Advance ends the current instant and returns the new current instant.
func (c *Clock) Advance() Instant {
	return Instant(c.instant.Add(1))
}
