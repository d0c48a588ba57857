package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the Medullar gateway.
type Metrics struct {
	UpstreamRequestTotal     *prometheus.CounterVec
	UpstreamDurationMs       *prometheus.HistogramVec
	ItemTotal                *prometheus.CounterVec
	ItemDurationMs           *prometheus.HistogramVec
	RateLimitHitTotal        *prometheus.CounterVec
	UpstreamCircuitOpenTotal *prometheus.CounterVec
	FilterActionTotal        *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith registers the metrics on reg.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		UpstreamRequestTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "medullar_upstream_request_total",
			Help: "Total number of requests sent to the Medullar API.",
		}, []string{"service", "method", "status"}),

		UpstreamDurationMs: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "medullar_upstream_duration_ms",
			Help:    "Medullar API request duration in milliseconds.",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
		}, []string{"service", "method"}),

		ItemTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "medullar_node_item_total",
			Help: "Total node items executed, by operation and outcome.",
		}, []string{"operation", "status"}),

		ItemDurationMs: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "medullar_node_item_duration_ms",
			Help:    "Per-item execution time in milliseconds, including all upstream calls.",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000, 120000},
		}, []string{"operation"}),

		RateLimitHitTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "medullar_rate_limit_hit_total",
			Help: "Requests rejected by the gateway rate limiter.",
		}, []string{"dimension"}),

		UpstreamCircuitOpenTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "medullar_upstream_circuit_open_total",
			Help: "Circuit breakers opened, by Medullar service.",
		}, []string{"service"}),

		FilterActionTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "medullar_filter_action_total",
			Help: "Non-pass filter decisions on node items.",
		}, []string{"filter", "action"}),
	}
}

// RecordUpstream records one call to the Medullar API.
func (m *Metrics) RecordUpstream(service, method, status string, durationMs float64) {
	m.UpstreamRequestTotal.WithLabelValues(service, method, status).Inc()
	m.UpstreamDurationMs.WithLabelValues(service, method).Observe(durationMs)
}

// RecordItem records the outcome of one node item.
func (m *Metrics) RecordItem(operation, status string, durationMs float64) {
	m.ItemTotal.WithLabelValues(operation, status).Inc()
	m.ItemDurationMs.WithLabelValues(operation).Observe(durationMs)
}

// RecordRateLimitHit records a rejected request.
func (m *Metrics) RecordRateLimitHit(dimension string) {
	m.RateLimitHitTotal.WithLabelValues(dimension).Inc()
}

// RecordCircuitOpen records a breaker opening for a Medullar service.
func (m *Metrics) RecordCircuitOpen(service string) {
	m.UpstreamCircuitOpenTotal.WithLabelValues(service).Inc()
}

// RecordFilterAction records a flag or block decision.
func (m *Metrics) RecordFilterAction(filter, action string) {
	m.FilterActionTotal.WithLabelValues(filter, action).Inc()
}
