package gerbango

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	internalbackoff "github.com/ambiyansyah-risyal/gerbango/internal/backoff"
)

// Default retry parameters.
const (
	DefaultMaxAttempts    = 3
	DefaultBaseDelay      = 500 * time.Millisecond
	DefaultMaxDelay       = 30 * time.Second
	DefaultJitterFraction = 0.2
)

// RetryPolicy decides, per failed attempt, whether to retry and how long to
// wait first. Attempt 0 is the first (non-retry) try; a policy with
// maxAttempts=3 therefore allows attempts 0, 1 and 2.
type RetryPolicy interface {
	ShouldRetry(kind Kind, retryAfter time.Duration, attempt int) (time.Duration, bool)
}

// BackoffStrategy selects the delay curve used between retries.
type BackoffStrategy int

const (
	// ExponentialJitter is min(maxDelay, base*2^attempt) scaled by a
	// symmetric jitter factor. The default.
	ExponentialJitter BackoffStrategy = iota
	// DecorrelatedJitter is AWS-style decorrelated jitter.
	DecorrelatedJitter
)

// DefaultRetryPolicy retries Transient and RateLimited failures with
// exponential backoff and jitter, honoring an upstream Retry-After hint when
// one is present.
type DefaultRetryPolicy struct {
	maxAttempts       int
	baseDelay         time.Duration
	maxDelay          time.Duration
	multiplier        float64
	jitterFraction    float64
	backoffStrategy   BackoffStrategy
	backoffCalculator *internalbackoff.Calculator
}

// NewDefaultRetryPolicy creates the default policy with exponential jitter.
func NewDefaultRetryPolicy(maxAttempts int, baseDelay, maxDelay time.Duration, jitterFraction float64) *DefaultRetryPolicy {
	policy := &DefaultRetryPolicy{
		maxAttempts:       maxAttempts,
		baseDelay:         baseDelay,
		maxDelay:          maxDelay,
		multiplier:        2.0,
		jitterFraction:    jitterFraction,
		backoffStrategy:   ExponentialJitter,
		backoffCalculator: internalbackoff.GetExponentialJitterCalculator(),
	}
	return policy
}

// NewDefaultRetryPolicyWithStrategy creates a policy with a specific backoff
// strategy.
func NewDefaultRetryPolicyWithStrategy(maxAttempts int, baseDelay, maxDelay time.Duration, jitterFraction float64, strategy BackoffStrategy) *DefaultRetryPolicy {
	policy := NewDefaultRetryPolicy(maxAttempts, baseDelay, maxDelay, jitterFraction)
	policy.backoffStrategy = strategy
	switch strategy {
	case DecorrelatedJitter:
		policy.backoffCalculator = internalbackoff.GetDecorrelatedJitterCalculator()
	default:
		policy.backoffCalculator = internalbackoff.GetExponentialJitterCalculator()
	}
	return policy
}

// ShouldRetry implements the RetryPolicy interface. retryAfter carries the
// upstream's suggested delay (zero when absent); when set on a retryable
// failure it overrides the computed backoff.
func (p *DefaultRetryPolicy) ShouldRetry(kind Kind, retryAfter time.Duration, attempt int) (time.Duration, bool) {
	if attempt >= p.maxAttempts-1 {
		return 0, false
	}

	if !kind.Retryable() {
		return 0, false
	}

	if kind == KindRateLimited && retryAfter > 0 {
		return retryAfter, true
	}

	return p.backoffCalculator.Calculate(attempt, p.baseDelay, p.maxDelay, p.multiplier, p.jitterFraction), true
}

// MaxAttempts returns the configured attempt budget.
func (p *DefaultRetryPolicy) MaxAttempts() int {
	return p.maxAttempts
}

// parseRetryAfter parses a Retry-After header value. It supports both
// delay-seconds and HTTP-date formats; the result is capped at one hour.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		if seconds > 0 {
			delay := time.Duration(seconds) * time.Second
			if delay > time.Hour {
				delay = time.Hour
			}
			return delay
		}
		return 0
	}

	if t, err := http.ParseTime(value); err == nil {
		delay := time.Until(t)
		if delay > 0 && delay <= time.Hour {
			return delay
		}
	}

	return 0
}
