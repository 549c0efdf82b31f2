// Package retry runs fallible operations with a bounded number of attempts and
// linear backoff between them.
package retry

import (
	"context"
	"time"

	goretry "github.com/sethvargo/go-retry"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
)

// Policy configures attempts and backoff. After failed attempt n (1-indexed)
// the policy waits BaseDelay*n; it never waits after the last attempt.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration

	// OnRetry is called before each wait with the attempt that just failed
	OnRetry func(attempt int, err error, wait time.Duration)
}

// DefaultPolicy returns a policy with 3 attempts and a 1s base delay
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: DefaultMaxAttempts, BaseDelay: DefaultBaseDelay}
}

// Operation is a retryable unit of work. It must be safe to invoke again.
type Operation[T any] func(ctx context.Context) (T, error)

// Do runs op until it succeeds or the policy is exhausted. On exhaustion the
// last error is returned unchanged. A cancelled context stops retrying and
// returns the context error.
func Do[T any](ctx context.Context, p Policy, op Operation[T]) (T, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var (
		result  T
		attempt int
		lastErr error
	)

	backoff := goretry.BackoffFunc(func() (time.Duration, bool) {
		if attempt >= maxAttempts {
			return 0, true
		}
		wait := p.BaseDelay * time.Duration(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, lastErr, wait)
		}
		return wait, false
	})

	err := goretry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		v, err := op(ctx)
		if err != nil {
			lastErr = err
			return goretry.RetryableError(err)
		}
		result = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
