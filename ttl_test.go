package gerbango

import (
	"testing"
	"time"
)

func TestTTLPolicyDefault(t *testing.T) {
	policy := NewTTLPolicy(0)
	if policy.Default() != DefaultCacheTTL {
		t.Errorf("Expected fallback to DefaultCacheTTL, got %v", policy.Default())
	}

	policy = NewTTLPolicy(time.Minute)
	if policy.TTLFor("unknown") != time.Minute {
		t.Errorf("Expected default TTL for unknown operation, got %v", policy.TTLFor("unknown"))
	}
}

func TestTTLPolicyOverride(t *testing.T) {
	policy := NewTTLPolicy(time.Minute)
	policy.Set("volatile_op", 5*time.Second)

	if policy.TTLFor("volatile_op") != 5*time.Second {
		t.Errorf("Expected override 5s, got %v", policy.TTLFor("volatile_op"))
	}
	if policy.TTLFor("other_op") != time.Minute {
		t.Errorf("Expected default for other operations, got %v", policy.TTLFor("other_op"))
	}
}

func TestTTLPolicyNonPositiveOverrideIgnored(t *testing.T) {
	policy := NewTTLPolicy(time.Minute)
	policy.Set("op", 0)

	if policy.TTLFor("op") != time.Minute {
		t.Errorf("Expected non-positive override to fall back to default, got %v", policy.TTLFor("op"))
	}
}
