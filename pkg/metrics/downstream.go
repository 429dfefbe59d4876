package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DownstreamMetrics tracks calls made to peer services.
type DownstreamMetrics struct {
	calls   *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

// NewDownstreamMetrics registers the downstream call metrics.
func NewDownstreamMetrics(reg prometheus.Registerer) *DownstreamMetrics {
	if reg == nil {
		return &DownstreamMetrics{}
	}
	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "warehouse_downstream_calls_total",
		Help: "Calls to peer services by target, operation and outcome.",
	}, []string{"target", "operation", "outcome"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "warehouse_downstream_call_duration_seconds",
		Help:    "Latency of calls to peer services, including retries.",
		Buckets: prometheus.DefBuckets,
	}, []string{"target", "operation"})
	reg.MustRegister(calls, latency)
	return &DownstreamMetrics{calls: calls, latency: latency}
}

// Observe records a finished call. outcome is ok, rejected or unavailable.
func (m *DownstreamMetrics) Observe(target, operation, outcome string, duration time.Duration) {
	if m == nil || m.calls == nil {
		return
	}
	m.calls.WithLabelValues(normalizeLabel(target), normalizeLabel(operation), normalizeLabel(outcome)).Inc()
	m.latency.WithLabelValues(normalizeLabel(target), normalizeLabel(operation)).Observe(duration.Seconds())
}
