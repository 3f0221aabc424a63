// Package observability provides Prometheus metrics, OpenTelemetry tracing,
// health checks, and upstream anomaly detection for soko.
// All components are optional and nil-safe. When disabled, callers skip
// recording with a single nil check per operation.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jkaninda/soko/internal/config"
)

// Observability is the top-level facade holding all observability components.
// Any field may be nil when that feature is disabled.
type Observability struct {
	Metrics *MetricsCollector
	Tracer  *TracerSetup
	Anomaly *AnomalyDetector
	Health  *HealthChecker
}

// New creates an Observability instance from config. version is reported
// on exported spans. Returns nil when the config is nil.
func New(cfg *config.ObservabilityConfig, version string, logger *slog.Logger) (*Observability, error) {
	if cfg == nil {
		return nil, nil
	}

	obs := &Observability{}

	if cfg.Metrics != nil && cfg.Metrics.Enabled {
		obs.Metrics = NewMetricsCollector()
	}

	if cfg.Tracing != nil && cfg.Tracing.Enabled {
		ts, err := NewTracerSetup(cfg.Tracing, version)
		if err != nil {
			return nil, fmt.Errorf("initializing tracing: %w", err)
		}
		obs.Tracer = ts
	}

	if cfg.Anomaly != nil && cfg.Anomaly.Enabled {
		obs.Anomaly = NewAnomalyDetector(cfg.Anomaly, logger)
	}

	// Checks are registered by the caller once the store is open.
	obs.Health = NewHealthChecker(logger)

	return obs, nil
}

// Shutdown releases observability resources.
func (o *Observability) Shutdown(ctx context.Context) {
	if o == nil {
		return
	}
	if o.Tracer != nil {
		_ = o.Tracer.Shutdown(ctx)
	}
}

// TracerOrNil returns the OTel tracer or nil if tracing is disabled.
func (o *Observability) TracerOrNil() *TracerSetup {
	if o == nil {
		return nil
	}
	return o.Tracer
}

// MetricsOrNil returns the metrics collector or nil if metrics are disabled.
func (o *Observability) MetricsOrNil() *MetricsCollector {
	if o == nil {
		return nil
	}
	return o.Metrics
}

// ObserveUpstream records one third-party gateway call in the metrics and
// the anomaly detector.
func (o *Observability) ObserveUpstream(service, provider string, d time.Duration, err error) {
	if o == nil {
		return
	}
	o.Metrics.ObserveUpstream(service, provider, d, err)
	o.Anomaly.Record(service, provider, err)
}

// ObserveFailover records that a call to service fell back from one
// provider to another.
func (o *Observability) ObserveFailover(service, from, to string) {
	if o == nil {
		return
	}
	o.Metrics.ObserveFailover(service, from, to)
	o.Anomaly.RecordFailover(service, from, to)
}
