package gerbango

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector provides Prometheus metrics for the call lifecycle and
// reliability layers. It is safe for concurrent use.
type MetricsCollector struct {
	callsTotal    *prometheus.CounterVec
	callDuration  *prometheus.HistogramVec
	callsInFlight *prometheus.GaugeVec

	retriesTotal *prometheus.CounterVec

	rateLimiterTokens *prometheus.GaugeVec
	rateLimiterWait   *prometheus.HistogramVec

	circuitBreakerState *prometheus.GaugeVec

	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec
	cacheErrors *prometheus.CounterVec

	invalidationsTotal *prometheus.CounterVec

	deduplicationHits *prometheus.CounterVec

	errorsTotal *prometheus.CounterVec

	registry prometheus.Registerer
}

// NewMetricsCollector creates a collector on the default registerer.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry creates a collector using the supplied
// registerer, letting tests and multi-client processes isolate metrics.
func NewMetricsCollectorWithRegistry(registry prometheus.Registerer) *MetricsCollector {
	mc := &MetricsCollector{
		callsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "gerbango_calls_total",
				Help: "Total number of Execute calls by final outcome",
			},
			[]string{"operation", "outcome"},
		),
		callDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gerbango_call_duration_seconds",
				Help:    "Duration of Execute calls in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "outcome"},
		),
		callsInFlight: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gerbango_calls_in_flight",
				Help: "Number of Execute calls currently in flight",
			},
			[]string{"operation"},
		),
		retriesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "gerbango_retries_total",
				Help: "Total number of retry attempts",
			},
			[]string{"operation", "attempt"},
		),
		rateLimiterTokens: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gerbango_rate_limiter_tokens",
				Help: "Current number of available rate limiter tokens",
			},
			[]string{"name"},
		),
		rateLimiterWait: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gerbango_rate_limiter_wait_seconds",
				Help:    "Time spent waiting for rate limiter admission",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		circuitBreakerState: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gerbango_circuit_breaker_state",
				Help: "Current state of circuit breaker (0=closed, 1=open, 2=half-open)",
			},
			[]string{"name"},
		),
		cacheHits: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "gerbango_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"operation"},
		),
		cacheMisses: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "gerbango_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"operation"},
		),
		cacheErrors: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "gerbango_cache_errors_total",
				Help: "Total number of absorbed cache store errors",
			},
			[]string{"op"},
		),
		invalidationsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "gerbango_invalidations_total",
				Help: "Total number of cache entries removed by invalidation",
			},
			[]string{"operation"},
		),
		deduplicationHits: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "gerbango_deduplication_hits_total",
				Help: "Total number of calls coalesced onto an in-flight call",
			},
			[]string{"operation"},
		),
		errorsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "gerbango_errors_total",
				Help: "Total number of errors surfaced, by kind",
			},
			[]string{"kind", "operation"},
		),
		registry: registry,
	}

	return mc
}

// RecordCall records a finished call with its outcome and latency. outcome
// is "success", "cache_hit" or an error kind label.
func (mc *MetricsCollector) RecordCall(operation, outcome string, duration time.Duration) {
	if mc == nil {
		return
	}
	mc.callsTotal.WithLabelValues(operation, outcome).Inc()
	mc.callDuration.WithLabelValues(operation, outcome).Observe(duration.Seconds())
}

// RecordCallStart increments the in-flight gauge.
func (mc *MetricsCollector) RecordCallStart(operation string) {
	if mc == nil {
		return
	}
	mc.callsInFlight.WithLabelValues(operation).Inc()
}

// RecordCallEnd decrements the in-flight gauge.
func (mc *MetricsCollector) RecordCallEnd(operation string) {
	if mc == nil {
		return
	}
	mc.callsInFlight.WithLabelValues(operation).Dec()
}

// RecordRetry increments the retry counter for an attempt.
func (mc *MetricsCollector) RecordRetry(operation string, attempt int) {
	if mc == nil {
		return
	}
	mc.retriesTotal.WithLabelValues(operation, strconv.Itoa(attempt)).Inc()
}

// RecordRateLimiterTokens sets the available token gauge.
func (mc *MetricsCollector) RecordRateLimiterTokens(name string, tokens float64) {
	if mc == nil {
		return
	}
	mc.rateLimiterTokens.WithLabelValues(name).Set(tokens)
}

// RecordRateLimiterWait observes time spent waiting for admission.
func (mc *MetricsCollector) RecordRateLimiterWait(operation string, wait time.Duration) {
	if mc == nil {
		return
	}
	mc.rateLimiterWait.WithLabelValues(operation).Observe(wait.Seconds())
}

// RecordCircuitBreakerState sets the gauge to the breaker state.
func (mc *MetricsCollector) RecordCircuitBreakerState(name string, state CircuitState) {
	if mc == nil {
		return
	}
	mc.circuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordCacheHit increments the cache hit counter.
func (mc *MetricsCollector) RecordCacheHit(operation string) {
	if mc == nil {
		return
	}
	mc.cacheHits.WithLabelValues(operation).Inc()
}

// RecordCacheMiss increments the cache miss counter.
func (mc *MetricsCollector) RecordCacheMiss(operation string) {
	if mc == nil {
		return
	}
	mc.cacheMisses.WithLabelValues(operation).Inc()
}

// RecordCacheError counts an absorbed store fault; op is "get", "set" or
// "delete".
func (mc *MetricsCollector) RecordCacheError(op string) {
	if mc == nil {
		return
	}
	mc.cacheErrors.WithLabelValues(op).Inc()
}

// RecordInvalidation adds the number of entries removed for an operation.
func (mc *MetricsCollector) RecordInvalidation(operation string, count int) {
	if mc == nil {
		return
	}
	if operation == "" {
		operation = "scope"
	}
	mc.invalidationsTotal.WithLabelValues(operation).Add(float64(count))
}

// RecordDeduplicationHit increments the coalesced-call counter.
func (mc *MetricsCollector) RecordDeduplicationHit(operation string) {
	if mc == nil {
		return
	}
	mc.deduplicationHits.WithLabelValues(operation).Inc()
}

// RecordError increments the surfaced-error counter by kind.
func (mc *MetricsCollector) RecordError(kind Kind, operation string) {
	if mc == nil {
		return
	}
	mc.errorsTotal.WithLabelValues(kind.String(), operation).Inc()
}
