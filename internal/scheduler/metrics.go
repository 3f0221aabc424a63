package scheduler

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the housekeeping scheduler.
type Metrics struct {
	JobsFired     *prometheus.CounterVec
	JobsSucceeded *prometheus.CounterVec
	JobsFailed    *prometheus.CounterVec
	RowsRemoved   *prometheus.CounterVec
	TickDuration  prometheus.Histogram
}

// NewMetrics creates and registers scheduler metrics.
// Returns nil if reg is nil.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		return nil
	}

	m := &Metrics{
		JobsFired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "soko",
			Subsystem: "scheduler",
			Name:      "jobs_fired_total",
			Help:      "Total housekeeping jobs fired.",
		}, []string{"job"}),
		JobsSucceeded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "soko",
			Subsystem: "scheduler",
			Name:      "jobs_succeeded_total",
			Help:      "Total housekeeping jobs that succeeded.",
		}, []string{"job"}),
		JobsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "soko",
			Subsystem: "scheduler",
			Name:      "jobs_failed_total",
			Help:      "Total housekeeping jobs that failed.",
		}, []string{"job"}),
		RowsRemoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "soko",
			Subsystem: "scheduler",
			Name:      "rows_removed_total",
			Help:      "Rows removed by housekeeping jobs.",
		}, []string{"job"}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "soko",
			Subsystem: "scheduler",
			Name:      "tick_duration_seconds",
			Help:      "Duration of each scheduler tick.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}),
	}

	reg.MustRegister(
		m.JobsFired,
		m.JobsSucceeded,
		m.JobsFailed,
		m.RowsRemoved,
		m.TickDuration,
	)

	return m
}
