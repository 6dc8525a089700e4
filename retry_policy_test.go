package gerbango

import (
	"testing"
	"time"
)

func TestDefaultRetryPolicyDefaults(t *testing.T) {
	policy := NewDefaultRetryPolicy(DefaultMaxAttempts, DefaultBaseDelay, DefaultMaxDelay, DefaultJitterFraction)

	if policy.MaxAttempts() != 3 {
		t.Errorf("Expected maxAttempts=3, got %d", policy.MaxAttempts())
	}
}

func TestShouldRetryTransient(t *testing.T) {
	policy := NewDefaultRetryPolicy(3, 100*time.Millisecond, 10*time.Second, 0)

	delay, retry := policy.ShouldRetry(KindTransient, 0, 0)
	if !retry {
		t.Fatal("Expected retry for transient failure on attempt 0")
	}
	if delay != 100*time.Millisecond {
		t.Errorf("Expected base delay 100ms on attempt 0, got %v", delay)
	}

	delay, retry = policy.ShouldRetry(KindTransient, 0, 1)
	if !retry {
		t.Fatal("Expected retry for transient failure on attempt 1")
	}
	if delay != 200*time.Millisecond {
		t.Errorf("Expected doubled delay 200ms on attempt 1, got %v", delay)
	}
}

func TestShouldRetryExhaustsBudget(t *testing.T) {
	policy := NewDefaultRetryPolicy(3, 100*time.Millisecond, 10*time.Second, 0)

	// maxAttempts=3 allows attempts 0, 1 and 2; the failure of attempt 2
	// must not schedule another.
	if _, retry := policy.ShouldRetry(KindTransient, 0, 2); retry {
		t.Error("Expected no retry once the attempt budget is spent")
	}
}

func TestShouldRetryNonRetryableKinds(t *testing.T) {
	policy := NewDefaultRetryPolicy(3, 100*time.Millisecond, 10*time.Second, 0)

	for _, kind := range []Kind{KindClientError, KindFatal, KindCancelled, KindCacheUnavailable} {
		if _, retry := policy.ShouldRetry(kind, 0, 0); retry {
			t.Errorf("Expected no retry for kind %v", kind)
		}
	}
}

func TestShouldRetryHonorsRetryAfter(t *testing.T) {
	policy := NewDefaultRetryPolicy(3, 100*time.Millisecond, 10*time.Second, 0)

	delay, retry := policy.ShouldRetry(KindRateLimited, 2*time.Second, 0)
	if !retry {
		t.Fatal("Expected retry for rate-limited failure")
	}
	if delay != 2*time.Second {
		t.Errorf("Expected Retry-After hint 2s to override backoff, got %v", delay)
	}
}

func TestShouldRetryRateLimitedWithoutHint(t *testing.T) {
	policy := NewDefaultRetryPolicy(3, 100*time.Millisecond, 10*time.Second, 0)

	delay, retry := policy.ShouldRetry(KindRateLimited, 0, 0)
	if !retry {
		t.Fatal("Expected retry for rate-limited failure without hint")
	}
	if delay != 100*time.Millisecond {
		t.Errorf("Expected computed backoff 100ms, got %v", delay)
	}
}

func TestShouldRetryCapsAtMaxDelay(t *testing.T) {
	policy := NewDefaultRetryPolicy(10, time.Second, 3*time.Second, 0)

	delay, retry := policy.ShouldRetry(KindTransient, 0, 5)
	if !retry {
		t.Fatal("Expected retry within budget")
	}
	if delay != 3*time.Second {
		t.Errorf("Expected delay capped at 3s, got %v", delay)
	}
}

func TestShouldRetryJitterBounds(t *testing.T) {
	policy := NewDefaultRetryPolicy(5, time.Second, time.Minute, 0.2)

	for i := 0; i < 50; i++ {
		delay, retry := policy.ShouldRetry(KindTransient, 0, 1)
		if !retry {
			t.Fatal("Expected retry")
		}
		// base*2^1 = 2s, jittered by at most ±20%.
		if delay < 1600*time.Millisecond || delay > 2400*time.Millisecond {
			t.Errorf("Jittered delay %v outside [1.6s, 2.4s]", delay)
		}
	}
}

func TestParseRetryAfterSeconds(t *testing.T) {
	if got := parseRetryAfter("5"); got != 5*time.Second {
		t.Errorf("Expected 5s, got %v", got)
	}
	if got := parseRetryAfter("0"); got != 0 {
		t.Errorf("Expected 0 for zero seconds, got %v", got)
	}
	if got := parseRetryAfter("-3"); got != 0 {
		t.Errorf("Expected 0 for negative seconds, got %v", got)
	}
	if got := parseRetryAfter(""); got != 0 {
		t.Errorf("Expected 0 for empty value, got %v", got)
	}
	if got := parseRetryAfter("garbage"); got != 0 {
		t.Errorf("Expected 0 for unparsable value, got %v", got)
	}
}

func TestParseRetryAfterCapped(t *testing.T) {
	if got := parseRetryAfter("86400"); got != time.Hour {
		t.Errorf("Expected cap at 1h, got %v", got)
	}
}

func TestParseRetryAfterHTTPDate(t *testing.T) {
	future := time.Now().Add(30 * time.Second).UTC().Format(time.RFC1123)
	got := parseRetryAfter(future)
	if got <= 0 || got > 31*time.Second {
		t.Errorf("Expected roughly 30s from HTTP date, got %v", got)
	}

	past := time.Now().Add(-30 * time.Second).UTC().Format(time.RFC1123)
	if got := parseRetryAfter(past); got != 0 {
		t.Errorf("Expected 0 for a past HTTP date, got %v", got)
	}
}
