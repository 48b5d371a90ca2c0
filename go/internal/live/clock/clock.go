package clock

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultTickInterval is the render cadence. It must stay below the one
// second display granularity.
const DefaultTickInterval = 250 * time.Millisecond

// Clock is the elapsed session time shown to the player. Between server
// resyncs it runs from a monotonic reference instant, so render jitter never
// accumulates into drift.
type Clock struct {
	clock clockwork.Clock

	mu     sync.Mutex
	base   float64 // seconds at ref
	paused bool
	ref    time.Time
}

// New creates a clock starting at startSeconds. In production pass
// clockwork.NewRealClock(), in tests a fake clock.
func New(c clockwork.Clock, startSeconds float64, paused bool) *Clock {
	if c == nil {
		c = clockwork.NewRealClock()
	}
	return &Clock{
		clock:  c,
		base:   startSeconds,
		paused: paused,
		ref:    c.Now(),
	}
}

// elapsedLocked must be called with mu held
func (c *Clock) elapsedLocked() float64 {
	if c.paused {
		return c.base
	}
	return c.base + c.clock.Since(c.ref).Seconds()
}

// Seconds returns the current elapsed time in seconds
func (c *Clock) Seconds() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elapsedLocked()
}

// Elapsed returns the current elapsed time
func (c *Clock) Elapsed() time.Duration {
	return time.Duration(c.Seconds() * float64(time.Second))
}

// Paused reports whether the clock is frozen
func (c *Clock) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// Pause freezes the display. Pausing a paused clock does nothing.
func (c *Clock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paused {
		return
	}
	c.base = c.elapsedLocked()
	c.paused = true
}

// Resume restarts the clock from the frozen value. Resuming a running clock
// does nothing.
func (c *Clock) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.paused {
		return
	}
	c.ref = c.clock.Now()
	c.paused = false
}

// SetPaused pauses or resumes
func (c *Clock) SetPaused(paused bool) {
	if paused {
		c.Pause()
		return
	}
	c.Resume()
}

// SetElapsed applies an authoritative resync. It wins over local time and
// leaves the pause flag alone.
func (c *Clock) SetElapsed(seconds float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.base = seconds
	c.ref = c.clock.Now()
}

// RenderTick returns the display text for the current instant
func (c *Clock) RenderTick() string {
	return FormatHMS(c.Seconds())
}

// NewTicker returns the render ticker driven by the same clock
func (c *Clock) NewTicker(interval time.Duration) clockwork.Ticker {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return c.clock.NewTicker(interval)
}

// FormatHMS renders whole seconds as HH:MM:SS
func FormatHMS(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int64(math.Floor(seconds))
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
