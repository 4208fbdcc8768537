package tasklib

import (
	"math"
	"math/rand"
	"time"
)

// Default retry configuration for outbound calls to external services
// (mail/calendar source, timetable portal, task-list sync).
const (
	DefMaxAttempts   = 5
	DefBaseDelay     = 30 * time.Second
	DefMaxDelay      = 15 * time.Minute
	DefJitterFactor  = 0.25
	DefBackoffFactor = 2.0
)

// RetryConfig is an explicit bounded-retry policy. Failed external
// calls are re-scheduled through the job scheduler with delays computed
// here, so retry state stays inspectable and cancellable instead of
// living in self-rescheduled closures.
type RetryConfig struct {
	MaxAttempts   int           // Maximum number of attempts (0 = unlimited)
	BaseDelay     time.Duration // Delay before the first retry
	MaxDelay      time.Duration // Ceiling on any computed delay
	JitterFactor  float64       // Random jitter factor (0-1)
	BackoffFactor float64       // Exponential backoff multiplier
}

// DefaultRetryConfig returns the policy used for external-service pushes.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   DefMaxAttempts,
		BaseDelay:     DefBaseDelay,
		MaxDelay:      DefMaxDelay,
		JitterFactor:  DefJitterFactor,
		BackoffFactor: DefBackoffFactor,
	}
}

// ShouldRetry reports whether another attempt is allowed after the
// given number of attempts already made.
func (c *RetryConfig) ShouldRetry(attempts int) bool {
	if c.MaxAttempts > 0 && attempts >= c.MaxAttempts {
		return false
	}
	return true
}

// Backoff computes the delay before the next attempt.
// attempt is 1-based: Backoff(1) follows the first failure.
func (c *RetryConfig) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(c.BaseDelay) * math.Pow(c.BackoffFactor, float64(attempt-1))
	if c.JitterFactor > 0 {
		jitter := c.JitterFactor * (2*rand.Float64() - 1) // random in [-1, 1]
		delay *= 1 + jitter
	}
	if delay > float64(c.MaxDelay) {
		delay = float64(c.MaxDelay)
	}
	if delay < 0 {
		delay = float64(c.BaseDelay)
	}
	return time.Duration(delay)
}
