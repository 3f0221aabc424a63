package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jkaninda/soko/internal/ordering"
)

// InstrumentedPaymentGateway wraps an ordering.Gateway with metrics,
// tracing, and anomaly detection.
type InstrumentedPaymentGateway struct {
	inner    ordering.Gateway
	provider string
	obs      *Observability
	tracer   trace.Tracer
}

// NewInstrumentedPaymentGateway wraps a payment gateway with observability.
func NewInstrumentedPaymentGateway(inner ordering.Gateway, provider string, obs *Observability) *InstrumentedPaymentGateway {
	var tracer trace.Tracer
	if ts := obs.TracerOrNil(); ts != nil {
		tracer = ts.Tracer()
	}
	return &InstrumentedPaymentGateway{inner: inner, provider: provider, obs: obs, tracer: tracer}
}

func (g *InstrumentedPaymentGateway) CreateOrder(ctx context.Context, amount float64, currency, receipt string) (string, error) {
	ctx, end := g.span(ctx, "payment.create_order")
	start := time.Now()
	id, err := g.inner.CreateOrder(ctx, amount, currency, receipt)
	end(err)
	g.obs.ObserveUpstream("payment", g.provider, time.Since(start), err)
	return id, err
}

func (g *InstrumentedPaymentGateway) CreatePayment(ctx context.Context, amount float64, orderID, method, payeeHandle string) (string, string, error) {
	ctx, end := g.span(ctx, "payment.create_payment")
	start := time.Now()
	id, status, err := g.inner.CreatePayment(ctx, amount, orderID, method, payeeHandle)
	end(err)
	g.obs.ObserveUpstream("payment", g.provider, time.Since(start), err)
	return id, status, err
}

func (g *InstrumentedPaymentGateway) span(ctx context.Context, name string) (context.Context, func(error)) {
	if g.tracer == nil {
		return ctx, func(error) {}
	}
	ctx, span := g.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("payment.provider", g.provider)),
	)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "gateway call failed")
		}
		span.End()
	}
}

var _ ordering.Gateway = (*InstrumentedPaymentGateway)(nil)
