package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	globalMetrics *Metrics
	globalMu      sync.RWMutex
)

// Metrics holds all Prometheus metrics for Maildeck
type Metrics struct {
	// Preview counters
	PreviewsTotal            prometheus.Counter
	PreviewFallbacksTotal    prometheus.Counter
	PreviewStaleDroppedTotal prometheus.Counter
	PreviewSessionsActive    prometheus.Gauge

	// Upstream client
	UpstreamRequestsTotal          *prometheus.CounterVec
	UpstreamRequestDurationSeconds *prometheus.HistogramVec

	// Console API
	HTTPRequestsTotal          *prometheus.CounterVec
	HTTPRequestDurationSeconds *prometheus.HistogramVec

	// Template cache
	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter

	// Test sends
	TestSendsTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates a new Metrics instance with all metrics registered
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		PreviewsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "maildeck_previews_total",
				Help: "Total number of preview renders initiated",
			},
		),
		PreviewFallbacksTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "maildeck_preview_fallbacks_total",
				Help: "Total number of preview renders degraded to raw template bodies",
			},
		),
		PreviewStaleDroppedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "maildeck_preview_stale_dropped_total",
				Help: "Total number of preview render results dropped as stale",
			},
		),
		PreviewSessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "maildeck_preview_sessions_active",
				Help: "Number of currently open preview sessions",
			},
		),

		UpstreamRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "maildeck_upstream_requests_total",
				Help: "Total number of requests to the upstream template platform",
			},
			[]string{"operation", "outcome"},
		),
		UpstreamRequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "maildeck_upstream_request_duration_seconds",
				Help:    "Upstream request duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"operation"},
		),

		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "maildeck_http_requests_total",
				Help: "Total number of console API requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "maildeck_http_request_duration_seconds",
				Help:    "Console API request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "maildeck_cache_hits_total",
				Help: "Total number of template cache hits",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "maildeck_cache_misses_total",
				Help: "Total number of template cache misses",
			},
		),

		TestSendsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "maildeck_test_sends_total",
				Help: "Total number of test emails sent through the relay",
			},
			[]string{"outcome"},
		),

		registry: reg,
	}

	reg.MustRegister(
		m.PreviewsTotal,
		m.PreviewFallbacksTotal,
		m.PreviewStaleDroppedTotal,
		m.PreviewSessionsActive,
		m.UpstreamRequestsTotal,
		m.UpstreamRequestDurationSeconds,
		m.HTTPRequestsTotal,
		m.HTTPRequestDurationSeconds,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.TestSendsTotal,
	)

	return m
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// SetGlobal sets the global metrics instance
func SetGlobal(m *Metrics) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalMetrics = m
}

// Global returns the global metrics instance
func Global() *Metrics {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalMetrics
}

// PreviewStarted increments the preview render counter
func PreviewStarted() {
	m := Global()
	if m != nil {
		m.PreviewsTotal.Inc()
	}
}

// PreviewFallback increments the degraded-preview counter
func PreviewFallback() {
	m := Global()
	if m != nil {
		m.PreviewFallbacksTotal.Inc()
	}
}

// PreviewStale increments the stale-result counter
func PreviewStale() {
	m := Global()
	if m != nil {
		m.PreviewStaleDroppedTotal.Inc()
	}
}

// SessionOpened increments the active preview session gauge
func SessionOpened() {
	m := Global()
	if m != nil {
		m.PreviewSessionsActive.Inc()
	}
}

// SessionClosed decrements the active preview session gauge
func SessionClosed() {
	m := Global()
	if m != nil {
		m.PreviewSessionsActive.Dec()
	}
}

// IncCacheHit increments the cache hit counter
func IncCacheHit() {
	m := Global()
	if m != nil {
		m.CacheHitsTotal.Inc()
	}
}

// IncCacheMiss increments the cache miss counter
func IncCacheMiss() {
	m := Global()
	if m != nil {
		m.CacheMissesTotal.Inc()
	}
}

// ObserveUpstream records one upstream round trip
func ObserveUpstream(operation, outcome string, seconds float64) {
	m := Global()
	if m != nil {
		m.UpstreamRequestsTotal.WithLabelValues(operation, outcome).Inc()
		m.UpstreamRequestDurationSeconds.WithLabelValues(operation).Observe(seconds)
	}
}

// IncTestSend increments the test send counter
func IncTestSend(outcome string) {
	m := Global()
	if m != nil {
		m.TestSendsTotal.WithLabelValues(outcome).Inc()
	}
}
