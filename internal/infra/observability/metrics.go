package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"

	"github.com/sakibahmedshuva/qa-gateway-go/internal/domain"
)

// Metrics holds all Prometheus metrics for the gateway.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration   *prometheus.HistogramVec
	backendCalls      *prometheus.CounterVec
	backendErrors     *prometheus.CounterVec
	retries           prometheus.Counter
	requestsTotal     *prometheus.CounterVec
	cacheHits         *prometheus.CounterVec
	cacheMisses       *prometheus.CounterVec
	backendHealthy    prometheus.Gauge
	healthTransitions *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_request_duration_seconds",
				Help:    "Duration of dispatch operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		backendCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_backend_calls_total",
				Help: "Total calls issued to the inference backend.",
			},
			[]string{"route"},
		),
		backendErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_backend_errors_total",
				Help: "Total failed backend calls by error kind.",
			},
			[]string{"kind"},
		),
		retries: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gateway_retries_total",
				Help: "Total retry attempts after transient backend failures.",
			},
		),
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_requests_total",
				Help: "Total dispatch outcomes.",
			},
			[]string{"status"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		backendHealthy: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "gateway_backend_healthy",
				Help: "Whether the last backend probe succeeded (1) or not (0).",
			},
		),
		healthTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_health_transitions_total",
				Help: "Health state transitions by target state.",
			},
			[]string{"to"},
		),
	}
}

// RecordRequestDuration records the duration of a dispatch operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrBackendCall increments the backend call counter for a route.
func (m *Metrics) IncrBackendCall(route string) {
	m.backendCalls.WithLabelValues(route).Inc()
}

// IncrBackendError increments the backend error counter for an error kind.
func (m *Metrics) IncrBackendError(kind string) {
	m.backendErrors.WithLabelValues(kind).Inc()
}

// IncrRetries adds n retry attempts to the retry counter.
func (m *Metrics) IncrRetries(n int) {
	if n > 0 {
		m.retries.Add(float64(n))
	}
}

// IncrRequest increments the request counter with a status label.
func (m *Metrics) IncrRequest(status string) {
	m.requestsTotal.WithLabelValues(status).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// SetBackendHealthy records the latest probe result as a gauge.
func (m *Metrics) SetBackendHealthy(healthy bool) {
	if healthy {
		m.backendHealthy.Set(1)
		return
	}
	m.backendHealthy.Set(0)
}

// IncrHealthTransition counts a transition into the given state.
func (m *Metrics) IncrHealthTransition(to string) {
	m.healthTransitions.WithLabelValues(to).Inc()
}

// GetGatewaySnapshot returns a snapshot of gateway metrics suitable for the
// GET /v1/metrics/gateway endpoint.
func (m *Metrics) GetGatewaySnapshot() *domain.GatewayMetrics {
	// Gather current values from Prometheus counters.
	// Note: Prometheus counters expose cumulative values.
	successCount := getCounterValue(m.requestsTotal, "success")
	errorCount := getCounterValue(m.requestsTotal, "error")
	totalRequests := successCount + errorCount
	cacheHits := getCounterValue(m.cacheHits, "answers")
	cacheMisses := getCounterValue(m.cacheMisses, "answers")

	errorRate := float64(0)
	if totalRequests > 0 {
		errorRate = errorCount / totalRequests
	}
	cacheHitRate := float64(0)
	if cacheHits+cacheMisses > 0 {
		cacheHitRate = cacheHits / (cacheHits + cacheMisses)
	}

	backendErrors := float64(0)
	for _, kind := range []string{"connection_error", "timeout_error", "upstream_error", "circuit_open"} {
		backendErrors += getCounterValue(m.backendErrors, kind)
	}

	return &domain.GatewayMetrics{
		TotalRequests: int64(totalRequests),
		ErrorRate:     errorRate,
		RetriesTotal:  int64(getPlainCounterValue(m.retries)),
		CacheHitRate:  cacheHitRate,
		BackendErrors: int64(backendErrors),
		Period:        "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

// getPlainCounterValue extracts the current float64 value from a plain Counter.
func getPlainCounterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
