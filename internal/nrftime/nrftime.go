// Package nrftime provides the monotonic microsecond clock used by all
// timing decisions in the radio pipeline.
package nrftime

import (
	"sync"
	"time"
)

// Clock is a monotonic microsecond clock. All slot scheduling, retry and
// discovery timers compare values obtained from a single Clock.
type Clock interface {
	// NowUs returns microseconds elapsed on a monotonic timeline. The epoch
	// is unspecified; only differences are meaningful.
	NowUs() uint64

	// SleepUs blocks the calling goroutine for the given number of
	// microseconds.
	SleepUs(us uint64)
}

type realClock struct {
	start time.Time
}

// Real returns a Clock backed by the runtime monotonic clock.
func Real() Clock {
	return &realClock{start: time.Now()}
}

func (c *realClock) NowUs() uint64 {
	return uint64(time.Since(c.start).Microseconds())
}

func (c *realClock) SleepUs(us uint64) {
	time.Sleep(time.Duration(us) * time.Microsecond)
}

// Manual is a hand-stepped Clock for tests. SleepUs advances the clock
// instead of blocking so timer-driven code can be exercised without
// wall-clock delays.
type Manual struct {
	mu  sync.Mutex
	now uint64
}

// NewManual returns a Manual clock starting at the given microsecond value.
func NewManual(startUs uint64) *Manual {
	return &Manual{now: startUs}
}

// NowUs returns the current manual time.
func (c *Manual) NowUs() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// SleepUs advances the clock by us without blocking.
func (c *Manual) SleepUs(us uint64) {
	c.Advance(us)
}

// Advance moves the clock forward by us microseconds.
func (c *Manual) Advance(us uint64) {
	c.mu.Lock()
	c.now += us
	c.mu.Unlock()
}
