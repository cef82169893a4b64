package testutil

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Epoch is the time FixedClock starts at.
var Epoch = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

// StubClock is a review.Clock under test control. With a non-zero step,
// every call to Now moves it forward by step after reading.
// Safe for concurrent use.
type StubClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewStubClock creates a StubClock that stays at t until advanced.
func NewStubClock(t time.Time) *StubClock {
	return &StubClock{now: t}
}

// NewTickingClock creates a StubClock starting at t that advances by step
// on each reading, so consecutive records get ordered timestamps.
func NewTickingClock(t time.Time, step time.Duration) *StubClock {
	return &StubClock{now: t, step: step}
}

// FixedClock returns a StubClock stopped at Epoch.
func FixedClock() *StubClock {
	return NewStubClock(Epoch)
}

func (c *StubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now
	c.now = c.now.Add(c.step)
	return now
}

// Advance moves the clock forward by d.
func (c *StubClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// StubIDGenerator returns "<prefix>-1", "<prefix>-2", and so on.
type StubIDGenerator struct {
	prefix string
	n      atomic.Int64
}

// NewStubIDGenerator returns a generator of "id-N" ids.
func NewStubIDGenerator() *StubIDGenerator {
	return NewPrefixedIDGenerator("id")
}

// NewPrefixedIDGenerator returns a generator of "<prefix>-N" ids.
func NewPrefixedIDGenerator(prefix string) *StubIDGenerator {
	return &StubIDGenerator{prefix: prefix}
}

func (g *StubIDGenerator) New() string {
	return fmt.Sprintf("%s-%d", g.prefix, g.n.Add(1))
}
