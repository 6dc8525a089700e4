package gerbango

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		KindTransient:        "Transient",
		KindRateLimited:      "RateLimited",
		KindClientError:      "ClientError",
		KindFatal:            "Fatal",
		KindCacheUnavailable: "CacheUnavailable",
		KindCancelled:        "Cancelled",
		Kind(99):             "Unknown",
	}
	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", kind, got, want)
		}
	}
}

func TestKindRetryable(t *testing.T) {
	if !KindTransient.Retryable() {
		t.Error("Expected Transient to be retryable")
	}
	if !KindRateLimited.Retryable() {
		t.Error("Expected RateLimited to be retryable")
	}
	for _, kind := range []Kind{KindClientError, KindFatal, KindCacheUnavailable, KindCancelled} {
		if kind.Retryable() {
			t.Errorf("Expected %v not to be retryable", kind)
		}
	}
}

func TestErrorMessage(t *testing.T) {
	err := &Error{
		Kind:      KindRateLimited,
		Op:        "get_item",
		Message:   "too many requests",
		Attempt:   2,
		RequestID: "req-1",
		Cause:     errors.New("boom"),
	}

	msg := err.Error()
	for _, want := range []string{"RateLimited", "too many requests", "get_item", "req-1", "attempt 2", "boom"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Expected %q in error message %q", want, msg)
		}
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("underlying")
	err := &Error{Kind: KindTransient, Message: "wrapper", Cause: cause}

	if !errors.Is(err, cause) {
		t.Error("Expected errors.Is to reach the cause")
	}
}

func TestErrorIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &Error{Kind: KindFatal, Message: "bad credentials"})

	if !errors.Is(err, &Error{Kind: KindFatal}) {
		t.Error("Expected Is to match on Kind")
	}
	if errors.Is(err, &Error{Kind: KindTransient}) {
		t.Error("Expected Is not to match a different Kind")
	}
}

func TestClassifyError(t *testing.T) {
	if got := ClassifyError(&Error{Kind: KindClientError}); got != KindClientError {
		t.Errorf("Expected ClientError, got %v", got)
	}
	if got := ClassifyError(fmt.Errorf("wrap: %w", &Error{Kind: KindFatal})); got != KindFatal {
		t.Errorf("Expected Fatal through wrapping, got %v", got)
	}
	if got := ClassifyError(ErrRateLimitTimeout); got != KindRateLimited {
		t.Errorf("Expected RateLimited for ErrRateLimitTimeout, got %v", got)
	}
	if got := ClassifyError(errors.New("mystery")); got != KindTransient {
		t.Errorf("Expected unknown errors to default to Transient, got %v", got)
	}
}

func TestRetryAfterHint(t *testing.T) {
	err := &Error{Kind: KindRateLimited, RetryAfter: 7 * time.Second}
	if got := RetryAfterHint(err); got != 7*time.Second {
		t.Errorf("Expected 7s hint, got %v", got)
	}
	if got := RetryAfterHint(errors.New("plain")); got != 0 {
		t.Errorf("Expected 0 hint for plain errors, got %v", got)
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(&Error{Kind: KindTransient}) {
		t.Error("Expected transient error to be retryable")
	}
	if IsRetryable(&Error{Kind: KindFatal}) {
		t.Error("Expected fatal error not to be retryable")
	}
	if IsRetryable(nil) {
		t.Error("Expected nil not to be retryable")
	}
}
