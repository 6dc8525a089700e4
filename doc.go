// Package gerbango is a resilient access layer for a remote, rate-limited
// analysis-service API. It turns a slow, quota-constrained, occasionally
// flaky upstream into a fast, back-pressure-aware one by composing:
//
//   - Token-bucket admission (blocking Acquire, bounded optional wait)
//   - Classified retries with exponential backoff + jitter and Retry-After support
//   - Result caching keyed by operation + arguments (+ caller scope), with a
//     per-operation TTL policy and targeted pattern invalidation
//   - Circuit breaker (open / half-open / closed states)
//   - Optional de-duplication of concurrent identical in-flight calls
//   - Prometheus metrics and lightweight structured debug logging
//
// Design goals:
//   - Small surface area – functional options configure everything
//   - A closed, registered set of operations instead of open-ended dispatch
//   - Safe concurrent use of a single *Client instance
//   - Cache faults never fail a call: the layer degrades to always-fetch
//
// Typical usage:
//
//	client := gerbango.New(
//	    gerbango.WithUpstream("https://analysis.example.com", token),
//	    gerbango.WithOperations(
//	        gerbango.Operation{Name: "get_item", Method: http.MethodGet, Path: "/v1/items"},
//	        gerbango.Operation{Name: "update_item", Method: http.MethodPost, Path: "/v1/items",
//	            Mutating: true, Invalidates: []string{"get_item"}},
//	    ),
//	    gerbango.WithRateLimiter(10, 5),
//	    gerbango.WithCache(5*time.Minute),
//	)
//	res, err := client.Execute(ctx, gerbango.Request{
//	    Name: "get_item",
//	    Args: map[string]any{"id": 1},
//	})
//
// Callers always receive either a valid result or a typed *Error whose Kind
// says whether retrying later is sensible (Transient, RateLimited) or not
// (ClientError, Fatal). The library avoids opinionated logging: provide a
// Logger (e.g. via WithSimpleLogger or NewZerologLogger) and enable debug
// flags selectively for insight without noise.
package gerbango
