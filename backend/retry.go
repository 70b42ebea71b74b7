package backend

import (
	"context"
	"time"
)

// RetryPolicy is the single retry configuration shared by the transfer
// session and the remote client wrapper: bounded attempts with exponential
// backoff, capped so the curve flattens rather than growing without bound.
type RetryPolicy struct {
	MaxAttempts uint
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseBackoff: 500 * time.Millisecond,
		MaxBackoff:  30 * time.Second,
	}
}

// Backoff returns the delay before the given 1-based attempt's retry.
func (p RetryPolicy) Backoff(attempt uint) time.Duration {
	d := p.BaseBackoff
	for i := uint(1); i < attempt; i++ {
		d *= 2
		if p.MaxBackoff > 0 && d >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		return p.MaxBackoff
	}
	return d
}

// Do runs op up to MaxAttempts times, sleeping the backoff between attempts.
// Only transient failures are retried; any other error, or ctx expiry, ends
// the loop immediately. onRetry, if set, observes the attempt that failed.
func (p RetryPolicy) Do(ctx context.Context, op func() error, onRetry func(attempt uint, err error)) error {
	attempts := p.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}

	var err error
	for attempt := uint(1); attempt <= attempts; attempt++ {
		err = op()
		if err == nil {
			return nil
		}
		if !IsTransient(err) || attempt == attempts {
			return err
		}
		if onRetry != nil {
			onRetry(attempt, err)
		}
		select {
		case <-time.After(p.Backoff(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
