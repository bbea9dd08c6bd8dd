// Package retry provides bounded retry loops with configurable backoff.
// Verification reruns and flaky network calls go through this package so
// every caller shares the same attempt accounting and jitter behavior.
package retry

import (
	"math"
	"math/rand"
	"time"
)

// BackoffStrategy defines how to calculate the delay before the next attempt.
type BackoffStrategy int

const (
	// BackoffExponential uses exponential backoff: base * 2^attempt
	BackoffExponential BackoffStrategy = iota

	// BackoffLinear uses linear backoff: base * attempt
	BackoffLinear

	// BackoffConstant uses constant backoff: base (no increase)
	BackoffConstant
)

// DefaultMaxAttempts is the default cap on attempts for a retried operation.
const DefaultMaxAttempts = 3

// DefaultBaseInterval is the default delay after the first failed attempt.
const DefaultBaseInterval = 500 * time.Millisecond

// BackoffConfig configures the backoff behavior.
type BackoffConfig struct {
	// Strategy is the backoff strategy to use.
	// Default is BackoffExponential.
	Strategy BackoffStrategy

	// BaseInterval is the base interval for backoff calculation.
	// Default is DefaultBaseInterval.
	BaseInterval time.Duration

	// MaxInterval is the maximum delay between attempts.
	// Default is 30 seconds.
	MaxInterval time.Duration

	// Jitter adds randomness to prevent thundering herd.
	// Value between 0.0 (no jitter) and 1.0 (full jitter).
	// Default is 0.1 (10% jitter).
	Jitter float64
}

// DefaultBackoffConfig returns a BackoffConfig with default values.
func DefaultBackoffConfig() *BackoffConfig {
	return &BackoffConfig{
		Strategy:     BackoffExponential,
		BaseInterval: DefaultBaseInterval,
		MaxInterval:  30 * time.Second,
		Jitter:       0.1,
	}
}

// Interval calculates the backoff delay after the given attempt number.
// Attempts are 1-based: Interval(1) is the delay after the first failure.
func (c *BackoffConfig) Interval(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}

	var interval time.Duration

	switch c.Strategy {
	case BackoffExponential:
		// attempts 1 -> 1x, attempts 2 -> 2x, attempts 3 -> 4x, etc.
		multiplier := math.Pow(2, float64(attempts-1))
		interval = time.Duration(float64(c.BaseInterval) * multiplier)

	case BackoffLinear:
		interval = c.BaseInterval * time.Duration(attempts)

	case BackoffConstant:
		interval = c.BaseInterval

	default:
		multiplier := math.Pow(2, float64(attempts-1))
		interval = time.Duration(float64(c.BaseInterval) * multiplier)
	}

	// Cap at max interval
	if c.MaxInterval > 0 && interval > c.MaxInterval {
		interval = c.MaxInterval
	}

	// Apply jitter
	if c.Jitter > 0 {
		interval = c.applyJitter(interval)
	}

	return interval
}

// applyJitter adds randomness to the interval to prevent thundering herd.
func (c *BackoffConfig) applyJitter(interval time.Duration) time.Duration {
	if c.Jitter <= 0 {
		return interval
	}

	jitter := c.Jitter
	if jitter > 1 {
		jitter = 1
	}

	// Jitter range [1-jitter, 1+jitter]: for jitter=0.1, [0.9, 1.1]
	jitterRange := float64(interval) * jitter
	jitterValue := (rand.Float64()*2 - 1) * jitterRange

	return time.Duration(float64(interval) + jitterValue)
}

// Schedule returns the delay after each attempt up to maxAttempts,
// without jitter. Useful for displaying or logging the expected plan.
func (c *BackoffConfig) Schedule(maxAttempts int) []time.Duration {
	if maxAttempts <= 0 {
		return nil
	}

	schedule := make([]time.Duration, maxAttempts)
	for i := range maxAttempts {
		origJitter := c.Jitter
		c.Jitter = 0
		schedule[i] = c.Interval(i + 1)
		c.Jitter = origJitter
	}
	return schedule
}

// TotalBackoffTime calculates the total sleep time across all attempts.
// Useful for estimating how long before an operation is marked as
// permanently failed.
func (c *BackoffConfig) TotalBackoffTime(maxAttempts int) time.Duration {
	schedule := c.Schedule(maxAttempts)
	var total time.Duration
	for _, d := range schedule {
		total += d
	}
	return total
}
