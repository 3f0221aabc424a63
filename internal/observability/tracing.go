package observability

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/jkaninda/soko/internal/config"
)

// Span attributes set on every handled request.
const (
	AttrEndpoint      = attribute.Key("soko.endpoint")
	AttrCorrelationID = attribute.Key("soko.correlation_id")
	AttrTenantID      = attribute.Key("soko.tenant_id")
	AttrPrincipalID   = attribute.Key("soko.principal_id")
	AttrOutcome       = attribute.Key("soko.outcome")
)

// TracerSetup holds the OTel TracerProvider and the soko tracer. The
// provider is never installed as the global one.
type TracerSetup struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewTracerSetup creates a TracerProvider exporting over OTLP. Sampling
// follows the caller's decision when a parent span arrives with the request.
func NewTracerSetup(cfg *config.TracingConfig, version string) (*TracerSetup, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	ctx := context.Background()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "soko"
	}
	attrs := []attribute.KeyValue{semconv.ServiceNameKey.String(serviceName)}
	if version != "" {
		attrs = append(attrs, semconv.ServiceVersionKey.String(version))
	}
	res, err := resource.New(ctx, resource.WithAttributes(attrs...))
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating OTLP exporter: %w", err)
	}

	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = 1.0
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRate))),
	)
	return &TracerSetup{provider: tp, tracer: tp.Tracer(serviceName)}, nil
}

func newExporter(ctx context.Context, cfg *config.TracingConfig) (sdktrace.SpanExporter, error) {
	if cfg.Protocol == "http" {
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	}
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	return otlptracegrpc.New(ctx, opts...)
}

// Tracer returns the soko tracer, a no-op one when tracing is disabled.
func (t *TracerSetup) Tracer() trace.Tracer {
	if t == nil {
		return noop.NewTracerProvider().Tracer("")
	}
	return t.tracer
}

// Shutdown flushes pending spans.
func (t *TracerSetup) Shutdown(ctx context.Context) error {
	if t == nil || t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// AnnotateRequest names the request span after the endpoint and tags it
// with the correlation ID. A context without a recording span is left alone.
func AnnotateRequest(ctx context.Context, endpoint, correlationID string) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.SetName(endpoint)
	span.SetAttributes(AttrEndpoint.String(endpoint), AttrCorrelationID.String(correlationID))
}

// AnnotateCaller tags the request span with the authenticated principal
// and resolved tenant. Either may be nil.
func AnnotateCaller(ctx context.Context, principalID, tenantID *uuid.UUID) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	if principalID != nil {
		span.SetAttributes(AttrPrincipalID.String(principalID.String()))
	}
	if tenantID != nil {
		span.SetAttributes(AttrTenantID.String(tenantID.String()))
	}
}

// AnnotateOutcome records the error kind of a finished request. Internal
// and upstream failures mark the span as failed.
func AnnotateOutcome(ctx context.Context, outcome string, failed bool) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.SetAttributes(AttrOutcome.String(outcome))
	if failed {
		span.SetStatus(codes.Error, outcome)
	}
}
