// Package clock provides a time source that can be swapped for a fixture in tests.
package clock

import (
	"sync"
	"time"
)

// Clock is a source of the current time
type Clock interface {
	// Now returns the current time
	Now() time.Time

	// Sleep pauses for the given duration
	Sleep(d time.Duration)
}

// SystemClock reads the wall clock
type SystemClock struct{}

// NewSystemClock creates a clock backed by the time package
func NewSystemClock() *SystemClock {
	return &SystemClock{}
}

// Now implements Clock
func (c *SystemClock) Now() time.Time {
	return time.Now()
}

// Sleep implements Clock
func (c *SystemClock) Sleep(d time.Duration) {
	time.Sleep(d)
}

// FixtureClock is a manually driven clock for deterministic tests.
// Sleep advances the clock instead of blocking.
type FixtureClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixtureClock creates a clock frozen at the given time
func NewFixtureClock(t time.Time) *FixtureClock {
	return &FixtureClock{now: t}
}

// Now implements Clock
func (c *FixtureClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Sleep implements Clock
func (c *FixtureClock) Sleep(d time.Duration) {
	c.Advance(d)
}

// Advance moves the clock forward
func (c *FixtureClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set moves the clock to the given time
func (c *FixtureClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
