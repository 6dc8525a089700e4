package gerbango

import (
	"context"
	"encoding/json"
	"time"
)

// Request identifies one invocation of a registered operation. Args are
// order-independent for caching purposes; Scope discriminates per-caller
// caching for permission-sensitive operations.
type Request struct {
	Name  string
	Args  map[string]any
	Scope string
}

// Result is the outcome of a successful Execute call.
type Result struct {
	// Payload is the upstream JSON response body.
	Payload json.RawMessage
	// StatusCode is the upstream HTTP status (or the cached one).
	StatusCode int
	// FromCache reports whether the result was served from the cache store.
	FromCache bool
	// Attempts is the number of upstream calls made (0 on a cache hit).
	Attempts int
}

// Operation describes one upstream capability. The set of operations a
// Client accepts is closed: it is registered at construction and Execute
// rejects unknown names.
type Operation struct {
	// Name is the operation identifier used in Request.Name and cache keys.
	Name string
	// Method is the upstream HTTP method; GET arguments are encoded as query
	// parameters, POST/PUT arguments as a JSON body.
	Method string
	// Path is the upstream URL path, joined to the client's base URL.
	Path string
	// TTL overrides the TTL policy table for this operation when non-zero.
	TTL time.Duration
	// Mutating marks write operations: never cached, and their success
	// triggers invalidation of the operations listed in Invalidates.
	Mutating bool
	// PerCaller requires Request.Scope so results are never shared across
	// caller identities.
	PerCaller bool
	// Invalidates lists operation names whose cached results are purged
	// after this operation succeeds.
	Invalidates []string
}

// CacheStore is the external key-value store contract. Implementations are
// networked services (or in-memory doubles) that own entry expiry; the core
// treats any store error as a cache miss and never fails a call on one.
type CacheStore interface {
	// Get returns the stored value, or ErrCacheMiss when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// DeletePattern removes all keys matching a glob pattern and returns the
	// number deleted.
	DeletePattern(ctx context.Context, pattern string) (int, error)
}

// cacheEnvelope is the serialized form of a cache entry.
type cacheEnvelope struct {
	Payload    json.RawMessage `json:"payload"`
	StatusCode int             `json:"status_code"`
	StoredAt   time.Time       `json:"stored_at"`
	TTL        time.Duration   `json:"ttl"`
}

// Option represents a configuration option for New.
type Option func(*Client)

// Context keys for per-request cache control
type contextKey string

const cacheControlKey contextKey = "gerbango_cache_control"

// CacheControl holds per-request cache overrides carried via context.
type CacheControl struct {
	// Disabled skips both the cache read and the write-back.
	Disabled bool
	// ForceRefresh skips the cache read but still writes the fresh result.
	ForceRefresh bool
	// TTL overrides the resolved TTL for the write-back when positive.
	TTL time.Duration
}

// WithContextCacheDisabled disables caching for requests using ctx.
func WithContextCacheDisabled(ctx context.Context) context.Context {
	return context.WithValue(ctx, cacheControlKey, &CacheControl{Disabled: true})
}

// WithContextForceRefresh bypasses the cache read for requests using ctx
// while still writing the fresh result back.
func WithContextForceRefresh(ctx context.Context) context.Context {
	return context.WithValue(ctx, cacheControlKey, &CacheControl{ForceRefresh: true})
}

// WithContextCacheTTL overrides the cache TTL for requests using ctx.
func WithContextCacheTTL(ctx context.Context, ttl time.Duration) context.Context {
	return context.WithValue(ctx, cacheControlKey, &CacheControl{TTL: ttl})
}

func cacheControlFromContext(ctx context.Context) *CacheControl {
	cc, _ := ctx.Value(cacheControlKey).(*CacheControl)
	return cc
}
