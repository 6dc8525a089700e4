package gerbango

import (
	"time"
)

// DefaultCacheTTL applies to operations without a policy entry or descriptor
// override.
const DefaultCacheTTL = 5 * time.Minute

// TTLPolicy maps operation names to cache TTLs with a default fallback, so
// every operation has a resolvable TTL. TTLs should track data volatility,
// not the cost of the upstream call.
type TTLPolicy struct {
	defaultTTL   time.Duration
	perOperation map[string]time.Duration
}

// NewTTLPolicy creates a policy with the given default TTL; a non-positive
// default falls back to DefaultCacheTTL.
func NewTTLPolicy(defaultTTL time.Duration) *TTLPolicy {
	if defaultTTL <= 0 {
		defaultTTL = DefaultCacheTTL
	}
	return &TTLPolicy{
		defaultTTL:   defaultTTL,
		perOperation: make(map[string]time.Duration),
	}
}

// Set records a per-operation override.
func (p *TTLPolicy) Set(name string, ttl time.Duration) {
	p.perOperation[name] = ttl
}

// TTLFor resolves the TTL for an operation name, falling back to the default
// for unrecognized names.
func (p *TTLPolicy) TTLFor(name string) time.Duration {
	if ttl, ok := p.perOperation[name]; ok && ttl > 0 {
		return ttl
	}
	return p.defaultTTL
}

// Default returns the fallback TTL.
func (p *TTLPolicy) Default() time.Duration {
	return p.defaultTTL
}
