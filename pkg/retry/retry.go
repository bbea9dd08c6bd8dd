package retry

import (
	"context"
	"time"

	"github.com/vulnflow/vulnflow/pkg/errors"
)

// Attempt is one execution of a retried operation.
type Attempt struct {
	// 1-based attempt number
	Number int

	// Error returned by the operation, nil on success
	Err error

	// How long the attempt took
	Duration time.Duration
}

// Policy bounds a retry loop.
type Policy struct {
	// MaxAttempts caps the total number of attempts (not retries).
	// Default is DefaultMaxAttempts.
	MaxAttempts int

	// Backoff controls the sleep between attempts.
	// Default is DefaultBackoffConfig.
	Backoff *BackoffConfig

	// RetryIf decides whether an error is worth another attempt.
	// Default retries timeouts, network errors, and write conflicts.
	RetryIf func(error) bool

	// OnRetry is called before each sleep, with the attempt that failed.
	OnRetry func(Attempt)
}

func (p *Policy) withDefaults() Policy {
	out := *p
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = DefaultMaxAttempts
	}
	if out.Backoff == nil {
		out.Backoff = DefaultBackoffConfig()
	}
	if out.RetryIf == nil {
		out.RetryIf = errors.IsRetryable
	}
	return out
}

// Do runs fn until it succeeds, the policy's attempts are exhausted, the
// error is not retryable, or the context is cancelled. It returns the last
// error together with the number of attempts made.
func Do(ctx context.Context, policy Policy, fn func(ctx context.Context, attempt int) error) (int, error) {
	p := policy.withDefaults()

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, err
		}

		start := time.Now()
		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			return attempt, nil
		}

		if !p.RetryIf(lastErr) || attempt == p.MaxAttempts {
			return attempt, lastErr
		}

		if p.OnRetry != nil {
			p.OnRetry(Attempt{Number: attempt, Err: lastErr, Duration: time.Since(start)})
		}

		if err := sleep(ctx, p.Backoff.Interval(attempt)); err != nil {
			return attempt, err
		}
	}
	return p.MaxAttempts, lastErr
}

// sleep waits for d or until the context is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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
