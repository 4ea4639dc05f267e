// Package standup provides the standup ceremony countdown: start, pause and
// reset over a fixed duration, independent of persistence. Remaining time is
// computed on query so consumers can poll at any interval.
package standup

import (
	"sync"
	"time"
)

// DefaultDuration is the usual standup time box.
const DefaultDuration = 15 * time.Minute

// Timer is a pausable countdown.
type Timer struct {
	mu        sync.Mutex
	duration  time.Duration
	remaining time.Duration // remaining when last paused/reset
	startedAt time.Time     // zero when not running
	now       func() time.Time
}

// NewTimer creates a stopped countdown over the given duration.
// A non-positive duration falls back to the default time box.
func NewTimer(duration time.Duration) *Timer {
	if duration <= 0 {
		duration = DefaultDuration
	}
	return &Timer{
		duration:  duration,
		remaining: duration,
		now:       time.Now,
	}
}

// newTimerWithClock is the test seam for deterministic time.
func newTimerWithClock(duration time.Duration, now func() time.Time) *Timer {
	t := NewTimer(duration)
	t.now = now
	return t
}

// Start begins (or resumes) the countdown. Starting a running or expired
// timer is a no-op.
func (t *Timer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.startedAt.IsZero() || t.remaining <= 0 {
		return
	}
	t.startedAt = t.now()
}

// Pause stops the countdown, retaining the remaining time.
func (t *Timer) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.startedAt.IsZero() {
		return
	}
	t.remaining = t.remainingLocked()
	t.startedAt = time.Time{}
}

// Reset stops the countdown and restores the full duration.
func (t *Timer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.remaining = t.duration
	t.startedAt = time.Time{}
}

// Remaining returns the time left, floored at zero.
func (t *Timer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remainingLocked()
}

// Running reports whether the countdown is ticking.
func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.startedAt.IsZero() && t.remainingLocked() > 0
}

// Expired reports whether the countdown has reached zero.
func (t *Timer) Expired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remainingLocked() <= 0
}

func (t *Timer) remainingLocked() time.Duration {
	remaining := t.remaining
	if !t.startedAt.IsZero() {
		remaining -= t.now().Sub(t.startedAt)
	}
	if remaining < 0 {
		return 0
	}
	return remaining
}
