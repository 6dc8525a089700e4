// Minimal example for gerbango demonstrating a fully configured resilient
// client against an analysis-service style API: a cached read, a force
// refresh, and a mutation that invalidates the affected entries.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/ambiyansyah-risyal/gerbango"
)

func main() {
	client := gerbango.New(
		gerbango.WithUpstream("https://analysis.example.com", "demo-token"),
		gerbango.WithOperations(
			gerbango.Operation{Name: "get_report", Method: http.MethodGet, Path: "/reports"},
			gerbango.Operation{Name: "list_reports", Method: http.MethodGet, Path: "/reports/list", TTL: 30 * time.Second},
			gerbango.Operation{Name: "get_quota", Method: http.MethodGet, Path: "/quota", PerCaller: true},
			gerbango.Operation{
				Name: "update_report", Method: http.MethodPost, Path: "/reports",
				Mutating: true, Invalidates: []string{"get_report", "list_reports"},
			},
		),
		gerbango.WithRateLimiter(10, 5.0),
		gerbango.WithCache(2*time.Minute),
		gerbango.WithCircuitBreaker(gerbango.CircuitBreakerConfig{}),
		gerbango.WithDeduplication(),
		gerbango.WithMetrics(),
		gerbango.WithSimpleLogger(),
		gerbango.WithDebug(),
	)
	if !client.IsValid() {
		log.Fatalf("invalid client config: %v", client.ValidationError())
	}

	ctx := context.Background()

	res, err := client.Execute(ctx, gerbango.Request{
		Name: "get_report",
		Args: map[string]any{"id": 42},
	})
	if err != nil {
		log.Fatalf("get_report failed: %v", err)
	}
	fmt.Printf("report: status=%d cached=%v attempts=%d\n", res.StatusCode, res.FromCache, res.Attempts)

	// Same arguments, second call is served from the cache.
	res, _ = client.Execute(ctx, gerbango.Request{
		Name: "get_report",
		Args: map[string]any{"id": 42},
	})
	fmt.Println("second read cached:", res.FromCache)

	// Per-caller operation: the scope keeps quotas isolated between callers.
	quota, err := client.Execute(ctx, gerbango.Request{Name: "get_quota", Scope: "caller-7"})
	if err != nil {
		log.Fatalf("get_quota failed: %v", err)
	}
	fmt.Println("quota:", string(quota.Payload))

	// Bypass the cache read for one request, keeping the write-back.
	fresh, err := client.Execute(gerbango.WithContextForceRefresh(ctx), gerbango.Request{
		Name: "get_report",
		Args: map[string]any{"id": 42},
	})
	if err != nil {
		log.Fatalf("forced refresh failed: %v", err)
	}
	fmt.Println("forced refresh cached:", fresh.FromCache)

	// A successful mutation purges the stale entries before returning.
	if _, err := client.Execute(ctx, gerbango.Request{
		Name: "update_report",
		Args: map[string]any{"id": 42, "title": "updated"},
	}); err != nil {
		log.Fatalf("update_report failed: %v", err)
	}
	fmt.Println("report updated, caches invalidated")
}
