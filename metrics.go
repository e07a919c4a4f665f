package sambung

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector provides Prometheus metrics for the call lifecycle and the
// session state machine. All methods are nil-receiver safe so instrumentation
// can stay unconditional at call sites.
type MetricsCollector struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec

	retriesTotal *prometheus.CounterVec

	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec
	cacheSize   prometheus.Gauge

	deduplicationHits *prometheus.CounterVec

	errorsTotal *prometheus.CounterVec

	sessionState     prometheus.Gauge
	sessionRefreshes *prometheus.CounterVec
}

// NewMetricsCollector creates a collector on the default registerer.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry creates a collector using the supplied
// registerer.
func NewMetricsCollectorWithRegistry(registry prometheus.Registerer) *MetricsCollector {
	return &MetricsCollector{
		requestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "sambung_requests_total",
				Help: "Total number of backend operations attempted",
			},
			[]string{"operation", "outcome"},
		),
		requestDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sambung_request_duration_seconds",
				Help:    "Duration of backend operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		requestsInFlight: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sambung_requests_in_flight",
				Help: "Number of backend operations currently in flight",
			},
			[]string{"operation"},
		),
		retriesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "sambung_retries_total",
				Help: "Total number of retry attempts",
			},
			[]string{"operation", "attempt"},
		),
		cacheHits: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "sambung_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"operation"},
		),
		cacheMisses: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "sambung_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"operation"},
		),
		cacheSize: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "sambung_cache_size",
				Help: "Current number of entries in the result cache",
			},
		),
		deduplicationHits: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "sambung_deduplication_hits_total",
				Help: "Total number of calls coalesced onto an in-flight exchange",
			},
			[]string{"operation"},
		),
		errorsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "sambung_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type", "operation"},
		),
		sessionState: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "sambung_session_state",
				Help: "Current session state (0=anonymous, 1=active)",
			},
		),
		sessionRefreshes: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "sambung_session_refreshes_total",
				Help: "Total number of background session refreshes",
			},
			[]string{"outcome"},
		),
	}
}

// RecordRequest records operation count and duration.
func (mc *MetricsCollector) RecordRequest(operation, outcome string, duration time.Duration) {
	if mc == nil {
		return
	}
	mc.requestsTotal.WithLabelValues(operation, outcome).Inc()
	mc.requestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordRequestStart increments the in-flight gauge.
func (mc *MetricsCollector) RecordRequestStart(operation string) {
	if mc == nil {
		return
	}
	mc.requestsInFlight.WithLabelValues(operation).Inc()
}

// RecordRequestEnd decrements the in-flight gauge.
func (mc *MetricsCollector) RecordRequestEnd(operation string) {
	if mc == nil {
		return
	}
	mc.requestsInFlight.WithLabelValues(operation).Dec()
}

// RecordRetry increments the retry counter for an attempt.
func (mc *MetricsCollector) RecordRetry(operation string, attempt int) {
	if mc == nil {
		return
	}
	mc.retriesTotal.WithLabelValues(operation, strconv.Itoa(attempt)).Inc()
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

// RecordCacheSize sets the cache size gauge.
func (mc *MetricsCollector) RecordCacheSize(size int) {
	if mc == nil {
		return
	}
	mc.cacheSize.Set(float64(size))
}

// RecordDeduplicationHit increments the coalesced-call counter.
func (mc *MetricsCollector) RecordDeduplicationHit(operation string) {
	if mc == nil {
		return
	}
	mc.deduplicationHits.WithLabelValues(operation).Inc()
}

// RecordError increments the error counter by type.
func (mc *MetricsCollector) RecordError(errorType, operation string) {
	if mc == nil {
		return
	}
	mc.errorsTotal.WithLabelValues(errorType, operation).Inc()
}

// RecordSessionState sets the session state gauge.
func (mc *MetricsCollector) RecordSessionState(active bool) {
	if mc == nil {
		return
	}
	if active {
		mc.sessionState.Set(1)
	} else {
		mc.sessionState.Set(0)
	}
}

// RecordSessionRefresh increments the refresh counter with an outcome label.
func (mc *MetricsCollector) RecordSessionRefresh(outcome string) {
	if mc == nil {
		return
	}
	mc.sessionRefreshes.WithLabelValues(outcome).Inc()
}
