// Package retry provides bounded retry with exponential backoff, shared by
// the audio fetcher and upload paths.
package retry

import (
	"context"
	"errors"
	"time"
)

// Policy describes how many attempts to make and how long to wait between them.
// The delay before attempt n (1-based, after the first failure) is
// BaseDelay << (n-1), capped at MaxDelay when MaxDelay is positive.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultPolicy mirrors the audio fetch policy: 3 attempts with 2s, 4s waits.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: 2 * time.Second, MaxDelay: 30 * time.Second}
}

// Do invokes fn until it succeeds, attempts are exhausted, or the context is
// cancelled. The last error is returned on exhaustion.
func Do(ctx context.Context, policy Policy, fn func(ctx context.Context, attempt int) error) error {
	attempts := policy.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		if err := sleep(ctx, policy.delay(attempt)); err != nil {
			return errors.Join(lastErr, err)
		}
	}
	return lastErr
}

func (p Policy) delay(attempt int) time.Duration {
	delay := p.BaseDelay
	if delay < 0 {
		delay = 0
	}
	if attempt > 1 {
		delay <<= uint(attempt - 1)
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
