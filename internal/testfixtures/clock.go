package testfixtures

import (
	"fmt"
	"sync"
	"time"

	"github.com/example/meeting-checkin/internal/scheduler"
)

// Clock is a settable time source shared by services under test.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts at start, or at ReferenceTime when start is zero.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{now: start}
}

// Now reports the clock's instant.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// NowFunc returns Now for injection. A nil clock falls back to time.Now.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// SetWallClock moves the clock to date at the HH:MM[:SS] time of day in Zone.
func (c *Clock) SetWallClock(date scheduler.Date, clock string) time.Time {
	at, err := date.At(mustTimeOfDay(clock), Zone)
	if err != nil {
		panic(fmt.Sprintf("testfixtures: %v", err))
	}
	c.Set(at)
	return at
}

// Advance adds d and returns the new instant.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}
