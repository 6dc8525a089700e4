package gerbango

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a failure for retry and propagation decisions.
type Kind int

const (
	// KindTransient covers network timeouts, connection resets and 5xx
	// responses. Retrying later is sensible.
	KindTransient Kind = iota
	// KindRateLimited is an upstream-reported 429. Retryable, preferring the
	// upstream's suggested delay when present.
	KindRateLimited
	// KindClientError is a 4xx other than 429: a caller bug, never retried.
	KindClientError
	// KindFatal is an operator-fixable failure (bad credentials, malformed
	// request). Never retried.
	KindFatal
	// KindCacheUnavailable marks cache-layer faults. These are absorbed by the
	// client and logged; they never surface to callers.
	KindCacheUnavailable
	// KindCancelled is a caller-initiated cancellation or deadline, distinct
	// from retry exhaustion.
	KindCancelled
)

// String returns the kind's stable label, used in logs and metric labels.
func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "Transient"
	case KindRateLimited:
		return "RateLimited"
	case KindClientError:
		return "ClientError"
	case KindFatal:
		return "Fatal"
	case KindCacheUnavailable:
		return "CacheUnavailable"
	case KindCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Retryable reports whether a failure of this kind may succeed on retry.
func (k Kind) Retryable() bool {
	return k == KindTransient || k == KindRateLimited
}

// Sentinel errors for common failure scenarios
var (
	// ErrUnknownOperation is returned when Execute is called with an
	// operation name that was never registered.
	ErrUnknownOperation = errors.New("gerbango: unknown operation")

	// ErrRateLimitTimeout is returned when a rate limiter wait exceeds the
	// configured maximum wait.
	ErrRateLimitTimeout = errors.New("gerbango: rate limit wait timed out")

	// ErrCircuitOpen is returned when the circuit breaker is in open state.
	ErrCircuitOpen = errors.New("gerbango: circuit open")

	// ErrCacheMiss is returned by cache stores when a key is absent.
	ErrCacheMiss = errors.New("gerbango: cache miss")

	// ErrMissingScope is returned when a per-caller operation is executed
	// without a scope discriminator.
	ErrMissingScope = errors.New("gerbango: operation requires a caller scope")
)

// Error is the typed error surfaced by Client.Execute. Kind identifies
// whether retrying later is sensible; the remaining fields carry diagnostic
// context for logs.
type Error struct {
	Kind       Kind
	Op         string
	Message    string
	StatusCode int
	RetryAfter time.Duration
	Attempt    int
	RequestID  string
	Timestamp  time.Time
	Duration   time.Duration
	Cause      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Op != "" {
		msg = fmt.Sprintf("%s [op=%s]", msg, e.Op)
	}
	if e.RequestID != "" {
		msg = fmt.Sprintf("[%s] %s", e.RequestID, msg)
	}
	if e.Attempt > 0 {
		msg = fmt.Sprintf("%s (attempt %d)", msg, e.Attempt)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is matches either another *Error of the same Kind or a wrapped sentinel.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	if targetErr, ok := target.(*Error); ok {
		return e.Kind == targetErr.Kind
	}
	return false
}

// ClassifyError extracts the Kind from err. Unrecognized errors are treated
// as Transient, the safe default for a networked upstream.
func ClassifyError(err error) Kind {
	if err == nil {
		return KindTransient
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, ErrRateLimitTimeout) {
		return KindRateLimited
	}
	if errors.Is(err, ErrCircuitOpen) {
		return KindTransient
	}
	return KindTransient
}

// RetryAfterHint returns the upstream-suggested retry delay carried by err,
// or zero when none was provided.
func RetryAfterHint(err error) time.Duration {
	var e *Error
	if errors.As(err, &e) {
		return e.RetryAfter
	}
	return 0
}

// IsRetryable reports whether err represents a failure that might succeed on
// a later attempt.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return ClassifyError(err).Retryable()
}
