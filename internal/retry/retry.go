// Package retry runs operations with capped exponential backoff.
package retry

import (
	"context"
	"errors"
	"time"
)

const (
	DefaultBase = time.Second
	DefaultMax  = 30 * time.Second
)

// Policy describes how often and how patiently to retry.
type Policy struct {
	// Retries is the number of attempts after the first one.
	Retries int
	Base    time.Duration
	Max     time.Duration
	// Retryable reports whether an error is worth another attempt. Nil
	// retries every error.
	Retryable func(error) bool
	// OnRetry is called before sleeping ahead of the next attempt.
	OnRetry func(attempt int, wait time.Duration, err error)
}

// permanent wraps an error that must not be retried.
type permanent struct{ err error }

func (p permanent) Error() string { return p.err.Error() }
func (p permanent) Unwrap() error { return p.err }

// Permanent marks err as not retryable regardless of the policy.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanent{err: err}
}

// Backoff returns base doubled attempt times, capped at limit.
func Backoff(attempt int, base, limit time.Duration) time.Duration {
	if base <= 0 {
		base = DefaultBase
	}
	if limit <= 0 {
		limit = DefaultMax
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= limit {
			return limit
		}
	}
	return min(d, limit)
}

// Do calls fn until it succeeds, returns a permanent error, the retries are
// spent or ctx is done. The last error is returned.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		if cerr := ctx.Err(); cerr != nil {
			if err != nil {
				return err
			}
			return cerr
		}
		err = fn(ctx)
		if err == nil {
			return nil
		}
		var perm permanent
		if errors.As(err, &perm) {
			return perm.err
		}
		if attempt >= p.Retries || (p.Retryable != nil && !p.Retryable(err)) {
			return err
		}

		wait := Backoff(attempt, p.Base, p.Max)
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, wait, err)
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return err
		case <-t.C:
		}
	}
}
