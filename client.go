package gerbango

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

// Client is the resilient access layer for the upstream analysis API. It
// layers caching, rate-limit admission, classified retries, circuit breaking
// and optional de-duplication around a registered set of operations. It is
// safe for concurrent use; Execute calls suspend independently at the rate
// limiter and backoff waits.
type Client struct {
	upstream       *Upstream
	httpClient     *http.Client
	operations     map[string]Operation
	rateLimiter    *RateLimiter
	retryPolicy    RetryPolicy
	store          CacheStore
	keys           *KeyGenerator
	ttl            *TTLPolicy
	invalidator    *Invalidator
	circuitBreaker *CircuitBreaker
	inflight       *InflightTracker
	metrics        *MetricsCollector
	debug          *DebugConfig
	logger         Logger

	// Staged retry parameters; New folds them into retryPolicy unless a
	// custom policy was installed via WithRetryPolicy.
	maxAttempts     int
	baseDelay       time.Duration
	maxDelay        time.Duration
	jitterFraction  float64
	backoffStrategy BackoffStrategy
	retryPolicySet  bool

	validationError error
}

// New constructs a Client using the provided functional options. A best
// effort validation is performed; call IsValid / ValidationError for errors.
func New(options ...Option) *Client {
	client := &Client{
		operations:      map[string]Operation{},
		keys:            NewKeyGenerator(""),
		ttl:             NewTTLPolicy(DefaultCacheTTL),
		debug:           DefaultDebugConfig(),
		maxAttempts:     DefaultMaxAttempts,
		baseDelay:       DefaultBaseDelay,
		maxDelay:        DefaultMaxDelay,
		jitterFraction:  DefaultJitterFraction,
		backoffStrategy: ExponentialJitter,
	}

	for _, option := range options {
		option(client)
	}

	if !client.retryPolicySet {
		client.retryPolicy = NewDefaultRetryPolicyWithStrategy(
			client.maxAttempts, client.baseDelay, client.maxDelay, client.jitterFraction, client.backoffStrategy)
	}

	if client.upstream != nil && client.httpClient != nil {
		client.upstream.httpClient = client.httpClient
	}

	if client.store != nil {
		client.invalidator = NewInvalidator(client.store, client.keys, client.logger, client.metrics)
	}

	if err := client.ValidateConfiguration(); err != nil {
		client.validationError = err
	}

	return client
}

// Invalidator exposes the client's invalidator so callers that mutate the
// upstream outside this client can purge affected entries themselves. Nil
// when no cache store is configured.
func (c *Client) Invalidator() *Invalidator {
	return c.invalidator
}

// Execute runs a registered operation: cache check, rate-limit admission,
// upstream call under the retry policy, cache write-back, and for mutating
// operations targeted invalidation before the result is returned.
func (c *Client) Execute(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	var requestID string
	if c.debug != nil && c.debug.Enabled && c.debug.RequestIDGen != nil {
		requestID = c.debug.RequestIDGen()
	}

	op, ok := c.operations[req.Name]
	if !ok {
		err := &Error{
			Kind:      KindClientError,
			Op:        req.Name,
			Message:   "operation not registered",
			RequestID: requestID,
			Cause:     ErrUnknownOperation,
		}
		c.metrics.RecordError(KindClientError, req.Name)
		return nil, err
	}
	if op.PerCaller && req.Scope == "" {
		c.metrics.RecordError(KindClientError, op.Name)
		return nil, &Error{
			Kind:      KindClientError,
			Op:        op.Name,
			Message:   "missing caller scope",
			RequestID: requestID,
			Cause:     ErrMissingScope,
		}
	}

	if c.debug != nil && c.debug.Enabled && c.debug.LogRequests && c.logger != nil {
		c.logger.Debug("Starting call", "requestID", requestID, "operation", op.Name, "scope", req.Scope)
	}

	c.metrics.RecordCallStart(op.Name)
	defer c.metrics.RecordCallEnd(op.Name)

	cc := cacheControlFromContext(ctx)
	cacheable := c.store != nil && !op.Mutating && (cc == nil || !cc.Disabled)
	forceRefresh := cc != nil && cc.ForceRefresh

	var cacheKey string
	if cacheable {
		cacheKey = c.keys.Generate(req)
	}

	dedupEnabled := c.inflight != nil && cacheable

	var inflightEntry *InflightEntry
	var isOwner bool
	if dedupEnabled {
		inflightEntry, isOwner = c.inflight.GetOrCreateEntry(cacheKey)
		if !isOwner {
			res, err := inflightEntry.Wait(ctx)
			c.metrics.RecordDeduplicationHit(op.Name)
			c.recordOutcome(op.Name, res, err, start)

			if c.debug != nil && c.debug.Enabled && c.logger != nil {
				c.logger.Debug("Coalesced onto in-flight call", "requestID", requestID, "cacheKey", cacheKey)
			}
			return res, err
		}
	}

	if cacheable && !forceRefresh {
		if res, found := c.readCache(ctx, op, cacheKey, requestID); found {
			if dedupEnabled {
				c.inflight.Complete(cacheKey, res, nil)
			}
			c.metrics.RecordCacheHit(op.Name)
			c.metrics.RecordCall(op.Name, "cache_hit", time.Since(start))
			return res, nil
		}
		c.metrics.RecordCacheMiss(op.Name)
	}

	res, err := c.callWithRetry(ctx, op, req, requestID, start)

	if err == nil && cacheable {
		c.writeCache(ctx, op, cacheKey, res, cc, requestID)
	}

	if err == nil && op.Mutating {
		c.invalidateAfterMutation(ctx, op, req, requestID)
	}

	if dedupEnabled {
		c.inflight.Complete(cacheKey, res, err)
	}

	c.recordOutcome(op.Name, res, err, start)
	return res, err
}

// callWithRetry drives the admission / call / classify / wait loop. Attempt
// 0 is the first try; the retry policy owns the attempt budget.
func (c *Client) callWithRetry(ctx context.Context, op Operation, req Request, requestID string, startTime time.Time) (*Result, error) {
	attempt := 0

	for {
		if c.rateLimiter != nil {
			waitStart := time.Now()
			if err := c.rateLimiter.Acquire(ctx); err != nil {
				if errors.Is(err, ErrRateLimitTimeout) {
					if c.debug != nil && c.debug.Enabled && c.debug.LogRateLimit && c.logger != nil {
						c.logger.Warn("Rate limit wait timed out", "requestID", requestID, "operation", op.Name)
					}
					return nil, &Error{
						Kind:      KindRateLimited,
						Op:        op.Name,
						Message:   "rate limit wait timed out",
						Attempt:   attempt,
						RequestID: requestID,
						Duration:  time.Since(startTime),
						Cause:     ErrRateLimitTimeout,
					}
				}
				return nil, &Error{
					Kind:      KindCancelled,
					Op:        op.Name,
					Message:   "cancelled while waiting for admission",
					Attempt:   attempt,
					RequestID: requestID,
					Duration:  time.Since(startTime),
					Cause:     err,
				}
			}
			c.metrics.RecordRateLimiterWait(op.Name, time.Since(waitStart))
			c.metrics.RecordRateLimiterTokens("default", c.rateLimiter.Tokens())
		}

		if c.circuitBreaker != nil && !c.circuitBreaker.Allow() {
			if c.debug != nil && c.debug.Enabled && c.logger != nil {
				c.logger.Warn("Circuit breaker open", "requestID", requestID, "operation", op.Name)
			}
			return nil, &Error{
				Kind:      KindTransient,
				Op:        op.Name,
				Message:   "circuit breaker is open",
				Attempt:   attempt,
				RequestID: requestID,
				Duration:  time.Since(startTime),
				Cause:     ErrCircuitOpen,
			}
		}

		if attempt > 0 {
			if c.debug != nil && c.debug.Enabled && c.debug.LogRetries && c.logger != nil {
				c.logger.Info("Retry attempt", "requestID", requestID, "operation", op.Name, "attempt", attempt)
			}
			c.metrics.RecordRetry(op.Name, attempt)
		}

		res, err := c.upstream.Call(ctx, op, req)

		kind := ClassifyError(err)
		c.recordCircuit(err, kind)

		if err == nil {
			res.Attempts = attempt + 1
			return res, nil
		}

		c.annotate(err, attempt, requestID, startTime)

		if kind == KindCancelled {
			return nil, err
		}

		delay, retry := c.retryPolicy.ShouldRetry(kind, RetryAfterHint(err), attempt)
		if !retry {
			return nil, err
		}

		if c.debug != nil && c.debug.Enabled && c.debug.LogRetries && c.logger != nil {
			c.logger.Info("Scheduling retry", "requestID", requestID, "operation", op.Name, "attempt", attempt+1, "backoff", delay)
		}

		if err := sleepContext(ctx, delay); err != nil {
			return nil, &Error{
				Kind:      KindCancelled,
				Op:        op.Name,
				Message:   "cancelled during backoff wait",
				Attempt:   attempt,
				RequestID: requestID,
				Duration:  time.Since(startTime),
				Cause:     err,
			}
		}
		attempt++
	}
}

// readCache returns a cached result. Store errors are absorbed: they count
// as a miss so the call degrades to always-fetch behavior.
func (c *Client) readCache(ctx context.Context, op Operation, key, requestID string) (*Result, bool) {
	value, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			c.metrics.RecordCacheError("get")
			if c.logger != nil {
				c.logger.Warn("Cache read failed, degrading to upstream", "requestID", requestID, "operation", op.Name, "error", err.Error())
			}
		}
		return nil, false
	}

	var envelope cacheEnvelope
	if err := json.Unmarshal(value, &envelope); err != nil {
		c.metrics.RecordCacheError("get")
		if c.logger != nil {
			c.logger.Warn("Discarding undecodable cache entry", "requestID", requestID, "operation", op.Name, "error", err.Error())
		}
		return nil, false
	}

	if c.debug != nil && c.debug.Enabled && c.debug.LogCache && c.logger != nil {
		c.logger.Debug("Cache hit", "requestID", requestID, "cacheKey", key)
	}

	return &Result{
		Payload:    envelope.Payload,
		StatusCode: envelope.StatusCode,
		FromCache:  true,
	}, true
}

// writeCache stores a successful result. Only successes reach this point;
// failed attempts never pollute the cache. Store errors are absorbed.
func (c *Client) writeCache(ctx context.Context, op Operation, key string, res *Result, cc *CacheControl, requestID string) {
	ttl := c.resolveTTL(op, cc)
	envelope, err := json.Marshal(cacheEnvelope{
		Payload:    res.Payload,
		StatusCode: res.StatusCode,
		StoredAt:   time.Now(),
		TTL:        ttl,
	})
	if err != nil {
		return
	}

	if err := c.store.Set(ctx, key, envelope, ttl); err != nil {
		c.metrics.RecordCacheError("set")
		if c.logger != nil {
			c.logger.Warn("Cache write failed", "requestID", requestID, "operation", op.Name, "error", err.Error())
		}
		return
	}

	if c.debug != nil && c.debug.Enabled && c.debug.LogCache && c.logger != nil {
		c.logger.Debug("Result cached", "requestID", requestID, "cacheKey", key, "ttl", ttl)
	}
}

func (c *Client) resolveTTL(op Operation, cc *CacheControl) time.Duration {
	if cc != nil && cc.TTL > 0 {
		return cc.TTL
	}
	if op.TTL > 0 {
		return op.TTL
	}
	return c.ttl.TTLFor(op.Name)
}

// invalidateAfterMutation purges the cached results a successful mutation
// made stale, synchronously, so the invoking caller's next read cannot
// observe a pre-mutation entry.
func (c *Client) invalidateAfterMutation(ctx context.Context, op Operation, req Request, requestID string) {
	if c.invalidator == nil || (len(op.Invalidates) == 0 && req.Scope == "") {
		return
	}

	scopes := make([]EntityScope, 0, len(op.Invalidates)+1)
	for _, name := range op.Invalidates {
		scopes = append(scopes, EntityScope{Operation: name})
	}
	if req.Scope != "" {
		scopes = append(scopes, EntityScope{Scope: req.Scope})
	}

	deleted := c.invalidator.Invalidate(ctx, scopes...)

	if c.debug != nil && c.debug.Enabled && c.debug.LogInvalidation && c.logger != nil {
		c.logger.Debug("Invalidated after mutation", "requestID", requestID, "operation", op.Name, "deleted", deleted)
	}
}

// recordCircuit feeds the breaker: upstream health is judged by whether the
// failure looks server-side. Caller bugs and cancellations say nothing
// about the upstream.
func (c *Client) recordCircuit(err error, kind Kind) {
	if c.circuitBreaker == nil {
		return
	}
	if err == nil {
		c.circuitBreaker.RecordSuccess()
	} else if kind == KindTransient || kind == KindRateLimited {
		c.circuitBreaker.RecordFailure()
	}
	c.metrics.RecordCircuitBreakerState("default", c.circuitBreaker.State())
}

func (c *Client) recordOutcome(operation string, res *Result, err error, start time.Time) {
	duration := time.Since(start)
	if err == nil {
		outcome := "success"
		if res != nil && res.FromCache {
			outcome = "cache_hit"
		}
		c.metrics.RecordCall(operation, outcome, duration)
		return
	}
	kind := ClassifyError(err)
	c.metrics.RecordError(kind, operation)
	c.metrics.RecordCall(operation, kind.String(), duration)
}

func (c *Client) annotate(err error, attempt int, requestID string, startTime time.Time) {
	var e *Error
	if errors.As(err, &e) {
		e.Attempt = attempt
		e.RequestID = requestID
		e.Timestamp = time.Now()
		e.Duration = time.Since(startTime)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsValid reports whether configuration validation passed at construction.
func (c *Client) IsValid() bool {
	return c.validationError == nil
}

// ValidationError returns the configuration validation error, if any.
func (c *Client) ValidationError() error {
	return c.validationError
}
