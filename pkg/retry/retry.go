// Package retry provides retry logic with exponential backoff and growing
// per-attempt timeouts, independent of any particular storage client.
package retry

import (
	"context"
	"errors"
	"math"
	"time"
)

// Policy defines configuration for retry behavior.
type Policy struct {
	MaxAttempts   int           `json:"max_attempts"`   // Maximum number of attempts (including initial)
	BaseDelay     time.Duration `json:"base_delay"`     // Backoff delay after the first failed attempt
	BackoffFactor float64       `json:"backoff_factor"` // Multiplier for exponential backoff
	AttemptBase   time.Duration `json:"attempt_base"`   // Base per-attempt timeout
	AttemptGrowth time.Duration `json:"attempt_growth"` // Added per-attempt timeout per attempt number
}

// DefaultPolicy matches the save protocol: 3 attempts, 500ms backoff doubling
// between attempts, per-attempt timeout of 8s + 2s x attempt number.
//
//nolint:gochecknoglobals // Sensible default config pattern
var DefaultPolicy = Policy{
	MaxAttempts:   3,
	BaseDelay:     500 * time.Millisecond,
	BackoffFactor: 2.0,
	AttemptBase:   8 * time.Second,
	AttemptGrowth: 2 * time.Second,
}

// ErrExhausted wraps the last attempt error once all attempts have failed.
var ErrExhausted = errors.New("all retry attempts exhausted")

// BackoffDelay computes the sleep after the given failed attempt (1-based):
// BaseDelay x BackoffFactor^(attempt-1).
func (p Policy) BackoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(float64(p.BaseDelay) * math.Pow(p.BackoffFactor, float64(attempt-1)))
}

// AttemptTimeout computes the deadline for the given attempt (1-based).
// Zero means no per-attempt deadline.
func (p Policy) AttemptTimeout(attempt int) time.Duration {
	if p.AttemptBase == 0 && p.AttemptGrowth == 0 {
		return 0
	}
	return p.AttemptBase + time.Duration(attempt)*p.AttemptGrowth
}

// Do runs fn up to MaxAttempts times, each attempt under its own deadline.
// A timed-out attempt counts as a failure like any other; the in-flight fn is
// not interrupted beyond context cancellation, its late result is discarded.
// Returns nil on the first success, or the last error wrapped with
// ErrExhausted once attempts run out.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = p.runAttempt(ctx, attempt, fn)
		if lastErr == nil {
			return nil
		}

		// Context cancellation is not retryable.
		if errors.Is(lastErr, context.Canceled) && ctx.Err() != nil {
			return lastErr
		}

		if attempt < p.MaxAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.BackoffDelay(attempt)):
			}
		}
	}

	return errors.Join(ErrExhausted, lastErr)
}

// runAttempt executes one attempt under its per-attempt deadline. fn runs in
// its own goroutine so a deadline fire stops the wait without blocking on a
// stuck call; the buffered channel lets the late result be dropped.
func (p Policy) runAttempt(ctx context.Context, attempt int, fn func(ctx context.Context) error) error {
	timeout := p.AttemptTimeout(attempt)
	if timeout == 0 {
		return fn(ctx)
	}

	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(actx)
	}()

	select {
	case err := <-done:
		return err
	case <-actx.Done():
		return actx.Err()
	}
}
