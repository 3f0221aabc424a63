package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/jkaninda/soko/internal/config"
)

// --- No-op Path ---

func TestNew_NilConfig(t *testing.T) {
	obs, err := New(nil, "", nil)
	if err != nil {
		t.Fatalf("New(nil) error: %v", err)
	}
	if obs != nil {
		t.Fatal("expected nil Observability for nil config")
	}
}

func TestNew_AllDisabled(t *testing.T) {
	obs, err := New(&config.ObservabilityConfig{}, "test", nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if obs == nil {
		t.Fatal("expected non-nil Observability")
	}
	if obs.Metrics != nil {
		t.Error("metrics should be nil when not enabled")
	}
	if obs.Tracer != nil {
		t.Error("tracer should be nil when not enabled")
	}
	if obs.Anomaly != nil {
		t.Error("anomaly should be nil when not enabled")
	}
	if obs.Health == nil {
		t.Error("health checker should always be created")
	}
}

func TestObservability_ShutdownNil(t *testing.T) {
	// Should not panic.
	var obs *Observability
	obs.Shutdown(context.Background())
}

func TestTracerOrNil_Nil(t *testing.T) {
	var obs *Observability
	if obs.TracerOrNil() != nil {
		t.Error("expected nil tracer from nil Observability")
	}
}

// --- MetricsCollector ---

func TestMetricsCollector_Created(t *testing.T) {
	m := NewMetricsCollector()
	if m == nil || m.Registry == nil {
		t.Fatal("expected collector with registry")
	}

	// Vectors only appear in Gather after first use.
	m.ObserveRequest("orders.assign", "success", 10*time.Millisecond)
	m.ObserveUpstream("sms", "primary", 20*time.Millisecond, nil)
	m.HTTPRequestsTotal.WithLabelValues("GET", "/test", "200").Inc()

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("gather error: %v", err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, expected := range []string{
		"soko_handler_requests_total",
		"soko_upstream_requests_total",
		"soko_http_requests_total",
	} {
		if !names[expected] {
			t.Errorf("metric %q not found in registry", expected)
		}
	}
}

func TestMetricsCollector_ObserveUpstream(t *testing.T) {
	m := NewMetricsCollector()
	m.ObserveUpstream("sms", "primary", time.Millisecond, errors.New("timeout"))
	m.ObserveUpstream("sms", "fallback", time.Millisecond, nil)
	m.ObserveUpstream("sms", "fallback", time.Millisecond, nil)

	tests := []struct {
		provider, status string
		want             float64
	}{
		{"primary", "error", 1},
		{"primary", "success", 0},
		{"fallback", "success", 2},
	}
	for _, tt := range tests {
		got := counterValue(t, m.Registry, "soko_upstream_requests_total",
			prometheus.Labels{"service": "sms", "provider": tt.provider, "status": tt.status})
		if got != tt.want {
			t.Errorf("%s/%s = %v, want %v", tt.provider, tt.status, got, tt.want)
		}
	}
}

func TestMetricsCollector_NilSafe(t *testing.T) {
	var m *MetricsCollector
	m.ObserveRequest("x", "success", time.Second)
	m.ObserveUpstream("sms", "x", time.Second, nil)

	var obs *Observability
	obs.ObserveUpstream("sms", "x", time.Second, nil)
	(&Observability{}).ObserveUpstream("sms", "x", time.Second, errors.New("down"))
}

func labelMap(pairs []*dto.LabelPair) map[string]string {
	m := make(map[string]string)
	for _, p := range pairs {
		m[p.GetName()] = p.GetValue()
	}
	return m
}

// --- HealthChecker ---

func TestHealthChecker_NoChecks(t *testing.T) {
	h := NewHealthChecker(nil)
	status := h.CheckReady(context.Background())
	if status.Status != StatusOK {
		t.Errorf("status = %q, want ok", status.Status)
	}
}

func TestHealthChecker_Readiness(t *testing.T) {
	pass := func(context.Context) error { return nil }
	fail := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name       string
		store, sms func(context.Context) error
		want       string
	}{
		{"all pass", pass, pass, StatusOK},
		{"optional upstream down", pass, fail, StatusDegraded},
		{"store down", fail, pass, StatusUnavailable},
		{"both down", fail, fail, StatusUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthChecker(nil)
			h.AddDependency("store", true, tt.store)
			h.AddDependency("sms", false, tt.sms)

			status := h.CheckReady(context.Background())
			if status.Status != tt.want {
				t.Errorf("status = %q, want %q", status.Status, tt.want)
			}
			if !status.Checks["store"].Critical || status.Checks["sms"].Critical {
				t.Errorf("critical flags = %+v", status.Checks)
			}
		})
	}
}

func TestHealthChecker_FailureMessage(t *testing.T) {
	h := NewHealthChecker(nil)
	h.AddDependency("store", true, func(context.Context) error { return errors.New("connection refused") })

	got := h.CheckReady(context.Background()).Checks["store"]
	if got.Status != "fail" || got.Message != "connection refused" {
		t.Errorf("store check = %+v", got)
	}
}

// --- AnomalyDetector ---

func TestAnomalyDetector_NilSafe(t *testing.T) {
	var a *AnomalyDetector
	a.Record("sms", "primary", errors.New("down"))
	a.RecordFailover("sms", "primary", "fallback")
	if got := a.Flagged("sms"); got != nil {
		t.Errorf("Flagged = %v", got)
	}
	if err := a.Check("sms")(context.Background()); err != nil {
		t.Errorf("Check = %v", err)
	}
}

func newTestDetector() (*AnomalyDetector, *time.Time) {
	a := NewAnomalyDetector(&config.AnomalyConfig{
		Enabled:            true,
		ErrorRateThreshold: 0.5,
		WindowSeconds:      60,
	}, nil)
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return now }
	return a, &now
}

func TestAnomalyDetector_FlagsProvider(t *testing.T) {
	a, now := newTestDetector()
	down := errors.New("503")

	// 6 errors, 4 successes = 60% error rate > 50%
	for i := 0; i < 4; i++ {
		a.Record("sms", "primary", nil)
	}
	for i := 0; i < 6; i++ {
		a.Record("sms", "primary", down)
	}
	for i := 0; i < 10; i++ {
		a.Record("sms", "fallback", nil)
	}
	a.Record("payment", "primary", down)

	if got := a.Flagged("sms"); len(got) != 1 || got[0] != "primary" {
		t.Errorf("Flagged(sms) = %v, want [primary]", got)
	}
	if got := a.Flagged("payment"); len(got) != 0 {
		t.Errorf("Flagged(payment) = %v, too few calls to flag", got)
	}
	if err := a.Check("sms")(context.Background()); err == nil {
		t.Error("sms check passed with a flagged provider")
	}

	*now = now.Add(2 * time.Minute)
	if got := a.Flagged("sms"); len(got) != 0 {
		t.Errorf("Flagged after window = %v, want none", got)
	}
}

func TestAnomalyDetector_Recovers(t *testing.T) {
	a, _ := newTestDetector()
	for i := 0; i < 5; i++ {
		a.Record("payment", "razorpay", errors.New("502"))
	}
	if len(a.Flagged("payment")) != 1 {
		t.Fatal("provider not flagged")
	}
	for i := 0; i < 6; i++ {
		a.Record("payment", "razorpay", nil)
	}
	if got := a.Flagged("payment"); len(got) != 0 {
		t.Errorf("Flagged = %v, want recovered", got)
	}
}

func TestObservability_ObserveFailover(t *testing.T) {
	a, _ := newTestDetector()
	obs := &Observability{Metrics: NewMetricsCollector(), Anomaly: a}
	obs.ObserveFailover("sms", "primary", "fallback")
	obs.ObserveFailover("sms", "primary", "fallback")

	got := counterValue(t, obs.Metrics.Registry, "soko_upstream_failovers_total",
		prometheus.Labels{"service": "sms", "from": "primary", "to": "fallback"})
	if got != 2 {
		t.Errorf("failovers = %v, want 2", got)
	}
	if a.failovers["sms"] != 2 {
		t.Errorf("detector failovers = %d, want 2", a.failovers["sms"])
	}

	var nilObs *Observability
	nilObs.ObserveFailover("sms", "primary", "fallback")
}

// --- Request spans ---

func TestAnnotate_RequestSpan(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	ctx, span := tp.Tracer("test").Start(context.Background(), "http.request")

	tenantID, principalID := uuid.New(), uuid.New()
	AnnotateRequest(ctx, "orders.assign", "abc123")
	AnnotateCaller(ctx, &principalID, &tenantID)
	AnnotateOutcome(ctx, "internal", true)
	span.End()

	ended := sr.Ended()
	if len(ended) != 1 {
		t.Fatalf("spans = %d, want 1", len(ended))
	}
	got := ended[0]
	if got.Name() != "orders.assign" {
		t.Errorf("span name = %q", got.Name())
	}
	attrs := make(map[attribute.Key]string)
	for _, kv := range got.Attributes() {
		attrs[kv.Key] = kv.Value.Emit()
	}
	want := map[attribute.Key]string{
		AttrEndpoint:      "orders.assign",
		AttrCorrelationID: "abc123",
		AttrTenantID:      tenantID.String(),
		AttrPrincipalID:   principalID.String(),
		AttrOutcome:       "internal",
	}
	for k, v := range want {
		if attrs[k] != v {
			t.Errorf("%s = %q, want %q", k, attrs[k], v)
		}
	}
	if got.Status().Code != codes.Error {
		t.Errorf("status = %v, want Error", got.Status().Code)
	}

	// No span in context: nothing to annotate, nothing panics.
	AnnotateCaller(context.Background(), nil, &tenantID)
}

// --- InstrumentedPaymentGateway ---

type stubGateway struct {
	err   error
	calls int
}

func (g *stubGateway) CreateOrder(context.Context, float64, string, string) (string, error) {
	g.calls++
	return "order_1", g.err
}

func (g *stubGateway) CreatePayment(context.Context, float64, string, string, string) (string, string, error) {
	g.calls++
	return "pay_1", "created", g.err
}

func TestInstrumentedPaymentGateway(t *testing.T) {
	obs := &Observability{Metrics: NewMetricsCollector()}
	inner := &stubGateway{}
	gw := NewInstrumentedPaymentGateway(inner, "razorpay", obs)

	if id, err := gw.CreateOrder(context.Background(), 120, "INR", "r1"); err != nil || id != "order_1" {
		t.Fatalf("CreateOrder = %q, %v", id, err)
	}
	inner.err = errors.New("502 from gateway")
	if _, _, err := gw.CreatePayment(context.Background(), 120, "order_1", "upi", "x@bank"); err == nil {
		t.Fatal("expected error to pass through")
	}

	labels := func(status string) prometheus.Labels {
		return prometheus.Labels{"service": "payment", "provider": "razorpay", "status": status}
	}
	if got := counterValue(t, obs.Metrics.Registry, "soko_upstream_requests_total", labels("success")); got != 1 {
		t.Errorf("success = %v, want 1", got)
	}
	if got := counterValue(t, obs.Metrics.Registry, "soko_upstream_requests_total", labels("error")); got != 1 {
		t.Errorf("error = %v, want 1", got)
	}
	if inner.calls != 2 {
		t.Errorf("inner calls = %d", inner.calls)
	}
}

func TestInstrumentedPaymentGateway_NilObservability(t *testing.T) {
	gw := NewInstrumentedPaymentGateway(&stubGateway{}, "razorpay", nil)
	if _, err := gw.CreateOrder(context.Background(), 1, "INR", "r"); err != nil {
		t.Fatal(err)
	}
}

// --- HTTP Middleware ---

func TestHTTPMetricsMiddleware(t *testing.T) {
	metrics := NewMetricsCollector()

	handler := HTTPMetricsMiddleware(metrics, nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}

	val := counterValue(t, metrics.Registry, "soko_http_requests_total", prometheus.Labels{"method": "GET", "path": "/test", "status_code": "200"})
	if val != 1 {
		t.Errorf("http requests = %v, want 1", val)
	}
}

func TestHTTPMetricsMiddleware_NilMetrics(t *testing.T) {
	// Should not panic with nil metrics.
	handler := HTTPMetricsMiddleware(nil, nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestHTTPMetricsMiddleware_CollapsesIDs(t *testing.T) {
	metrics := NewMetricsCollector()
	handler := HTTPMetricsMiddleware(metrics, nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	req := httptest.NewRequest("GET", "/v1/orders/5f0c6a3e-2a7b-4d1e-9a55-0b6f1c2d3e4f/payments", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	val := counterValue(t, metrics.Registry, "soko_http_requests_total",
		prometheus.Labels{"method": "GET", "path": "/v1/orders/{id}/payments", "status_code": "404"})
	if val != 1 {
		t.Errorf("http requests = %v, want 1", val)
	}
}

// --- Helpers ---

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels prometheus.Labels) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather error: %v", err)
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, metric := range f.GetMetric() {
			lm := labelMap(metric.GetLabel())
			match := true
			for k, v := range labels {
				if lm[k] != v {
					match = false
					break
				}
			}
			if match {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}
