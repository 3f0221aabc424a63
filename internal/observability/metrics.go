package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector holds all Prometheus metrics for soko.
// Uses a custom registry, no global state.
type MetricsCollector struct {
	Registry *prometheus.Registry

	// Endpoint metrics, labelled by outcome kind.
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Third-party gateway metrics (SMS, payment).
	UpstreamRequestsTotal   *prometheus.CounterVec
	UpstreamRequestDuration *prometheus.HistogramVec
	UpstreamFailoversTotal  *prometheus.CounterVec

	// HTTP gateway metrics.
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	ActiveRequests prometheus.Gauge
}

// NewMetricsCollector creates a MetricsCollector with all metrics registered
// on a custom prometheus.Registry.
func NewMetricsCollector() *MetricsCollector {
	reg := prometheus.NewRegistry()

	m := &MetricsCollector{
		Registry: reg,

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "soko",
			Subsystem: "handler",
			Name:      "requests_total",
			Help:      "Total handled requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "soko",
			Subsystem: "handler",
			Name:      "request_duration_seconds",
			Help:      "Handler duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),

		UpstreamRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "soko",
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Total third-party gateway calls.",
		}, []string{"service", "provider", "status"}),

		UpstreamRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "soko",
			Subsystem: "upstream",
			Name:      "request_duration_seconds",
			Help:      "Third-party gateway call duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"service", "provider"}),

		UpstreamFailoversTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "soko",
			Subsystem: "upstream",
			Name:      "failovers_total",
			Help:      "Calls served by a fallback provider after the preferred one failed.",
		}, []string{"service", "from", "to"}),

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "soko",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		}, []string{"method", "path", "status_code"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "soko",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),

		ActiveRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "soko",
			Name:      "active_requests",
			Help:      "Number of currently active requests.",
		}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.UpstreamRequestsTotal,
		m.UpstreamRequestDuration,
		m.UpstreamFailoversTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ActiveRequests,
	)

	return m
}

// ObserveRequest records a handled request.
func (m *MetricsCollector) ObserveRequest(endpoint, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(endpoint, outcome).Inc()
	m.RequestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// ObserveUpstream records a third-party gateway call.
func (m *MetricsCollector) ObserveUpstream(service, provider string, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.UpstreamRequestsTotal.WithLabelValues(service, provider, status).Inc()
	m.UpstreamRequestDuration.WithLabelValues(service, provider).Observe(d.Seconds())
}

// ObserveFailover records a provider fallback.
func (m *MetricsCollector) ObserveFailover(service, from, to string) {
	if m == nil {
		return
	}
	m.UpstreamFailoversTotal.WithLabelValues(service, from, to).Inc()
}
