// Package retry implements a bounded retry loop with exponential backoff
// around calls to the model upstream. Outcomes are tagged transient or
// permanent so each branch can be exercised independently.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Class tags an error as retry-worthy or retry-futile.
type Class int

const (
	// Transient marks timeouts, rate limits and upstream 5xx errors.
	Transient Class = iota
	// Permanent marks errors that retrying cannot fix: bad auth, invalid
	// cache references, malformed responses.
	Permanent
)

// Classifier decides the Class of a non-nil error.
type Classifier func(error) Class

// ErrExhausted wraps the last transient error once all attempts are spent.
var ErrExhausted = errors.New("retry attempts exhausted")

// Policy bounds the retry loop.
type Policy struct {
	MaxAttempts int           // Total attempts, including the first
	BaseDelay   time.Duration // Delay before the second attempt
	MaxDelay    time.Duration // Cap on the exponential growth
}

// DefaultPolicy mirrors the upstream contract: a handful of attempts with
// exponential backoff capped well below the request timeout.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 4,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// Backoff returns the delay to sleep after the given failed attempt
// (1-based). Growth is exponential from BaseDelay, capped at MaxDelay.
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	d := p.BaseDelay << (attempt - 1)
	if d > p.MaxDelay || d <= 0 {
		return p.MaxDelay
	}
	return d
}

// Do runs fn up to p.MaxAttempts times. A nil error returns immediately.
// Errors classified Permanent abort without further attempts. Transient
// errors are retried after a backoff sleep; when attempts run out the last
// error is returned wrapped in ErrExhausted. The context bounds the whole
// loop, including backoff sleeps.
func Do[T any](ctx context.Context, p Policy, classify Classifier, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if classify(err) == Permanent {
			return zero, err
		}
		lastErr = err

		if attempt == p.MaxAttempts {
			break
		}
		if err := sleep(ctx, p.Backoff(attempt)); err != nil {
			return zero, err
		}
	}

	return zero, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, p.MaxAttempts, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
