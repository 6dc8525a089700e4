package gerbango

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// WithUpstream configures the upstream base URL and bearer credential. Every
// client needs exactly one upstream.
func WithUpstream(baseURL, token string) Option {
	return func(c *Client) {
		c.upstream = NewUpstream(baseURL, token, c.httpClient)
	}
}

// WithHTTPClient sets a custom *http.Client for upstream calls, e.g. to tune
// timeouts or install a custom transport.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithOperations registers the closed set of operations the client accepts.
// Later registrations with the same name replace earlier ones.
func WithOperations(ops ...Operation) Option {
	return func(c *Client) {
		for _, op := range ops {
			c.operations[op.Name] = op
		}
	}
}

// WithRateLimiter enables the token bucket with the given capacity and
// sustained refill rate in tokens per second.
func WithRateLimiter(capacity int, refillPerSecond float64) Option {
	return func(c *Client) {
		c.rateLimiter = NewRateLimiter(capacity, refillPerSecond)
	}
}

// WithRateLimiterInstance installs a pre-built limiter, letting several
// clients share one admission budget.
func WithRateLimiterInstance(rl *RateLimiter) Option {
	return func(c *Client) {
		c.rateLimiter = rl
	}
}

// WithRateLimiterMaxWait bounds how long Execute may block waiting for
// admission before failing with a rate-limited error.
func WithRateLimiterMaxWait(d time.Duration) Option {
	return func(c *Client) {
		if c.rateLimiter != nil {
			c.rateLimiter.SetMaxWait(d)
		}
	}
}

// WithRetryPolicy installs a custom retry policy, replacing the default
// exponential backoff.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(c *Client) {
		c.retryPolicy = policy
		c.retryPolicySet = true
	}
}

// WithMaxAttempts sets the total attempt budget (first try included).
func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		c.maxAttempts = n
	}
}

// WithRetryBaseDelay sets the backoff base delay.
func WithRetryBaseDelay(d time.Duration) Option {
	return func(c *Client) {
		c.baseDelay = d
	}
}

// WithRetryMaxDelay caps the computed backoff delay.
func WithRetryMaxDelay(d time.Duration) Option {
	return func(c *Client) {
		c.maxDelay = d
	}
}

// WithRetryJitter sets the symmetric jitter fraction in [0,1).
func WithRetryJitter(fraction float64) Option {
	return func(c *Client) {
		c.jitterFraction = fraction
	}
}

// WithBackoffStrategy selects the delay curve used between retries.
func WithBackoffStrategy(strategy BackoffStrategy) Option {
	return func(c *Client) {
		c.backoffStrategy = strategy
	}
}

// WithCache enables caching on an in-process store with the given default
// TTL. Zero ttl keeps the package default.
func WithCache(ttl time.Duration) Option {
	return func(c *Client) {
		c.store = NewInMemoryStore()
		if ttl > 0 {
			c.ttl = NewTTLPolicy(ttl)
		}
	}
}

// WithCacheStore enables caching on an external store such as RedisStore.
func WithCacheStore(store CacheStore) Option {
	return func(c *Client) {
		c.store = store
	}
}

// WithCacheNamespace sets the key prefix, isolating several clients sharing
// one store.
func WithCacheNamespace(namespace string) Option {
	return func(c *Client) {
		c.keys = NewKeyGenerator(namespace)
	}
}

// WithTTLOverride pins the cache TTL for one operation, overriding the
// default. An Operation's own TTL field still takes precedence.
func WithTTLOverride(operation string, ttl time.Duration) Option {
	return func(c *Client) {
		c.ttl.Set(operation, ttl)
	}
}

// WithCircuitBreaker enables the circuit breaker with the given config.
func WithCircuitBreaker(config CircuitBreakerConfig) Option {
	return func(c *Client) {
		c.circuitBreaker = NewCircuitBreaker(config)
	}
}

// WithDeduplication coalesces concurrent calls that resolve to the same
// cache key onto a single upstream request.
func WithDeduplication() Option {
	return func(c *Client) {
		c.inflight = NewInflightTracker()
	}
}

// WithMetrics enables Prometheus metrics on the default registerer.
func WithMetrics() Option {
	return func(c *Client) {
		c.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector installs a pre-built collector, e.g. one bound to a
// private registry.
func WithMetricsCollector(mc *MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = mc
	}
}

// WithLogger sets the structured logger used for warnings and debug output.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithSimpleLogger installs the stderr console logger.
func WithSimpleLogger() Option {
	return func(c *Client) {
		c.logger = NewSimpleLogger()
	}
}

// WithDebug enables debug logging with the default per-concern flags.
func WithDebug() Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
	}
}

// WithDebugConfig replaces the debug configuration entirely.
func WithDebugConfig(config *DebugConfig) Option {
	return func(c *Client) {
		c.debug = config
	}
}

// WithRequestIDGenerator overrides how per-call correlation IDs are minted.
func WithRequestIDGenerator(gen func() string) Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.RequestIDGen = gen
	}
}

// ValidationError describes one invalid configuration value.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Message)
}

// ValidateConfiguration checks the assembled configuration and returns the
// first problem found. New runs this automatically; the result is exposed
// through IsValid and ValidationError.
func (c *Client) ValidateConfiguration() error {
	validators := []func() error{
		c.validateUpstream,
		c.validateOperations,
		c.validateRetry,
		c.validateRateLimiter,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) validateUpstream() error {
	if c.upstream == nil {
		return &ValidationError{Field: "Upstream", Message: "upstream must be configured (use WithUpstream)"}
	}
	if c.upstream.baseURL == "" {
		return &ValidationError{Field: "Upstream.BaseURL", Message: "base URL must not be empty"}
	}
	return nil
}

func (c *Client) validateOperations() error {
	for name, op := range c.operations {
		if strings.TrimSpace(name) == "" {
			return &ValidationError{Field: "Operation.Name", Message: "operation name must not be empty"}
		}
		if op.Path == "" || !strings.HasPrefix(op.Path, "/") {
			return &ValidationError{Field: "Operation.Path", Message: fmt.Sprintf("operation %q path must start with '/'", name)}
		}
		if op.TTL < 0 {
			return &ValidationError{Field: "Operation.TTL", Message: fmt.Sprintf("operation %q TTL must not be negative", name)}
		}
		if len(op.Invalidates) > 0 && !op.Mutating {
			return &ValidationError{Field: "Operation.Invalidates", Message: fmt.Sprintf("operation %q invalidates other operations but is not marked mutating", name)}
		}
		for _, target := range op.Invalidates {
			if _, ok := c.operations[target]; !ok {
				return &ValidationError{Field: "Operation.Invalidates", Message: fmt.Sprintf("operation %q invalidates unregistered operation %q", name, target)}
			}
		}
	}
	return nil
}

func (c *Client) validateRetry() error {
	if c.maxAttempts < 1 {
		return &ValidationError{Field: "MaxAttempts", Message: "must be at least 1"}
	}
	if c.baseDelay <= 0 {
		return &ValidationError{Field: "RetryBaseDelay", Message: "must be positive"}
	}
	if c.maxDelay < c.baseDelay {
		return &ValidationError{Field: "RetryMaxDelay", Message: "must not be less than the base delay"}
	}
	if c.jitterFraction < 0 || c.jitterFraction >= 1 {
		return &ValidationError{Field: "RetryJitter", Message: "must be in [0, 1)"}
	}
	return nil
}

func (c *Client) validateRateLimiter() error {
	if c.rateLimiter == nil {
		return nil
	}
	if c.rateLimiter.capacity < 1 {
		return &ValidationError{Field: "RateLimiter.Capacity", Message: "must be at least 1"}
	}
	if c.rateLimiter.refillRate < 0 {
		return &ValidationError{Field: "RateLimiter.RefillRate", Message: "must not be negative"}
	}
	return nil
}
