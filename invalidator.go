package gerbango

import (
	"context"
)

// EntityScope identifies what changed for targeted invalidation: every
// cached result of an operation, every result stored for a caller scope, or
// the intersection when both are set.
type EntityScope struct {
	Operation string
	Scope     string
}

// Invalidator issues targeted deletions against the cache store after
// mutations. Invalidation is best-effort: store failures are logged and
// counted, never propagated, since entry TTLs self-heal correctness.
type Invalidator struct {
	store   CacheStore
	keys    *KeyGenerator
	logger  Logger
	metrics *MetricsCollector
}

// NewInvalidator creates an invalidator over the given store and key
// generator. logger and metrics may be nil.
func NewInvalidator(store CacheStore, keys *KeyGenerator, logger Logger, metrics *MetricsCollector) *Invalidator {
	return &Invalidator{
		store:   store,
		keys:    keys,
		logger:  logger,
		metrics: metrics,
	}
}

// Invalidate deletes every cached entry matching any of the given scopes and
// returns the number of entries removed. It never returns an error.
func (inv *Invalidator) Invalidate(ctx context.Context, scopes ...EntityScope) int {
	if inv == nil || inv.store == nil {
		return 0
	}

	deleted := 0
	for _, scope := range scopes {
		pattern := inv.pattern(scope)
		if pattern == "" {
			continue
		}
		n, err := inv.store.DeletePattern(ctx, pattern)
		deleted += n
		if err != nil {
			if inv.metrics != nil {
				inv.metrics.RecordCacheError("delete")
			}
			if inv.logger != nil {
				inv.logger.Warn("cache invalidation failed", "pattern", pattern, "error", err.Error())
			}
			continue
		}
		if inv.metrics != nil {
			inv.metrics.RecordInvalidation(scope.Operation, n)
		}
	}
	return deleted
}

func (inv *Invalidator) pattern(scope EntityScope) string {
	switch {
	case scope.Operation != "" && scope.Scope != "":
		return inv.keys.PatternForOperation(scope.Operation) + ":" + scope.Scope
	case scope.Operation != "":
		return inv.keys.PatternForOperation(scope.Operation)
	case scope.Scope != "":
		return inv.keys.PatternForScope(scope.Scope)
	default:
		return ""
	}
}
