package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jkaninda/soko/internal/apierr"
	"github.com/jkaninda/soko/internal/domain"
	"github.com/jkaninda/soko/internal/envelope"
	"github.com/jkaninda/soko/internal/ratelimit"
	"github.com/jkaninda/soko/internal/security"
	"github.com/jkaninda/soko/internal/tenancy"
)

type fakeAuth struct {
	calls  int
	tokens map[string]*domain.Principal
}

func (f *fakeAuth) Authenticate(_ context.Context, header string) (*domain.Principal, error) {
	f.calls++
	p, ok := f.tokens[strings.TrimPrefix(header, "Bearer ")]
	if !ok {
		return nil, apierr.Unauthorized("invalid token")
	}
	return p, nil
}

type tenantStore map[uuid.UUID]*domain.Tenant

func (s tenantStore) GetTenant(_ context.Context, id uuid.UUID) (*domain.Tenant, error) {
	t, ok := s[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return t, nil
}

func (s tenantStore) ListActive(context.Context) ([]domain.Tenant, error) { return nil, nil }

type memAuditor struct {
	mu     sync.Mutex
	events []security.AuditEvent
}

func (a *memAuditor) LogAction(_ context.Context, ev security.AuditEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, ev)
	return nil
}

type memRecorder struct{ outcomes []string }

func (r *memRecorder) ObserveRequest(_, outcome string, _ time.Duration) {
	r.outcomes = append(r.outcomes, outcome)
}

type noteRequest struct {
	Title string `json:"title"`
}

func (r noteRequest) Validate() error {
	var c apierr.Check
	c.Require(strings.TrimSpace(r.Title) != "", "title")
	return c.Err("missing or invalid note fields")
}

type fixture struct {
	pipeline *Pipeline
	auth     *fakeAuth
	auditor  *memAuditor
	metrics  *memRecorder
	tenantA  uuid.UUID
	tenantB  uuid.UUID
	writes   int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rbac, err := security.NewRBAC(security.RBACConfig{Roles: security.DefaultRoles()}, logger)
	if err != nil {
		t.Fatal(err)
	}
	f := &fixture{tenantA: uuid.New(), tenantB: uuid.New(), auditor: &memAuditor{}, metrics: &memRecorder{}}
	admin := rbac.Attach(&domain.Principal{ID: uuid.New(), Role: domain.RoleTenantAdmin, TenantID: &f.tenantA, IsActive: true})
	customer := rbac.Attach(&domain.Principal{ID: uuid.New(), Role: domain.RoleCustomer, TenantID: &f.tenantA, IsActive: true})
	f.auth = &fakeAuth{tokens: map[string]*domain.Principal{"admin": admin, "customer": customer}}
	f.pipeline = &Pipeline{
		Auth: f.auth,
		Resolver: tenancy.NewResolver(tenantStore{
			f.tenantA: {ID: f.tenantA, IsActive: true},
			f.tenantB: {ID: f.tenantB, IsActive: true},
		}),
		Auditor: f.auditor,
		Metrics: f.metrics,
		Logger:  logger,
	}
	return f
}

func (f *fixture) createNote() Endpoint[noteRequest] {
	return Endpoint[noteRequest]{
		Name:       "notes.create",
		Mutating:   true,
		Tenant:     tenancy.Required,
		Capability: security.CatalogWrite,
		Handle: func(_ context.Context, call *Call, req noteRequest) (envelope.Result, error) {
			f.writes++
			return envelope.Created(map[string]string{"title": req.Title, "tenant": call.Tenant().String()}), nil
		},
	}
}

func (f *fixture) inbound(method, token, tenant, body string) *Inbound {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	if tenant != "" {
		h.Set(tenancy.HeaderTenant, tenant)
	}
	return &Inbound{Method: method, Header: h, Body: []byte(body)}
}

func TestRun_Pipeline(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		token      string
		tenant     func(f *fixture) string
		body       string
		wantStatus int
		wantError  string
		wantWrite  bool
	}{
		{
			name: "success", method: http.MethodPost, token: "admin",
			tenant: func(f *fixture) string { return f.tenantA.String() },
			body:   `{"title":"hello"}`, wantStatus: http.StatusCreated, wantWrite: true,
		},
		{
			name: "preflight before auth", method: http.MethodOptions,
			wantStatus: http.StatusOK,
		},
		{
			name: "missing credential", method: http.MethodPost,
			body: `{"title":"hello"}`, wantStatus: http.StatusUnauthorized, wantError: "invalid token",
		},
		{
			name: "auth runs before validation", method: http.MethodPost, token: "nobody",
			body: `{`, wantStatus: http.StatusUnauthorized, wantError: "invalid token",
		},
		{
			name: "missing field", method: http.MethodPost, token: "admin",
			tenant: func(f *fixture) string { return f.tenantA.String() },
			body:   `{"title":"  "}`, wantStatus: http.StatusBadRequest, wantError: "missing or invalid note fields",
		},
		{
			name: "unknown field", method: http.MethodPost, token: "admin",
			tenant: func(f *fixture) string { return f.tenantA.String() },
			body:   `{"title":"x","extra":1}`, wantStatus: http.StatusBadRequest, wantError: "malformed JSON body",
		},
		{
			name: "missing tenant", method: http.MethodPost, token: "admin",
			body: `{"title":"hello"}`, wantStatus: http.StatusBadRequest, wantError: "tenant is required",
		},
		{
			name: "unknown tenant", method: http.MethodPost, token: "admin",
			tenant: func(*fixture) string { return uuid.NewString() },
			body:   `{"title":"hello"}`, wantStatus: http.StatusForbidden,
		},
		{
			name: "tenant not entitled", method: http.MethodPost, token: "admin",
			tenant: func(f *fixture) string { return f.tenantB.String() },
			body:   `{"title":"hello"}`, wantStatus: http.StatusForbidden,
		},
		{
			name: "capability missing", method: http.MethodPost, token: "customer",
			tenant: func(f *fixture) string { return f.tenantA.String() },
			body:   `{"title":"hello"}`, wantStatus: http.StatusForbidden, wantError: "resource not accessible",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tenant := ""
			if tt.tenant != nil {
				tenant = tt.tenant(f)
			}
			resp := Run(context.Background(), f.pipeline, f.createNote(), f.inbound(tt.method, tt.token, tenant, tt.body))
			if resp.Status != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%+v)", resp.Status, tt.wantStatus, resp.Body)
			}
			if resp.Body.Success != (tt.wantStatus < 300) {
				t.Errorf("success = %v", resp.Body.Success)
			}
			if tt.wantError != "" && resp.Body.Error != tt.wantError {
				t.Errorf("error = %q, want %q", resp.Body.Error, tt.wantError)
			}
			if (f.writes > 0) != tt.wantWrite {
				t.Errorf("writes = %d, want write %v", f.writes, tt.wantWrite)
			}
			if resp.CorrelationID == "" {
				t.Error("missing correlation id")
			}
		})
	}
}

func TestRun_PreflightSkipsAuth(t *testing.T) {
	f := newFixture(t)
	resp := Run(context.Background(), f.pipeline, f.createNote(), f.inbound(http.MethodOptions, "", "", ""))
	if f.auth.calls != 0 {
		t.Errorf("authenticator called %d times", f.auth.calls)
	}
	if !resp.Body.Success || resp.Body.Data != nil {
		t.Errorf("body = %+v", resp.Body)
	}
}

func TestRun_InvalidInputNamesFields(t *testing.T) {
	f := newFixture(t)
	resp := Run(context.Background(), f.pipeline, f.createNote(),
		f.inbound(http.MethodPost, "admin", f.tenantA.String(), `{"title":7}`))
	if resp.Status != http.StatusBadRequest || resp.Body.Details != "invalid fields: title" {
		t.Errorf("resp = %d %+v", resp.Status, resp.Body)
	}
}

func TestRun_PayloadTenant(t *testing.T) {
	f := newFixture(t)
	ep := Endpoint[payloadRequest]{
		Name:   "search",
		Tenant: tenancy.Required,
		Handle: func(_ context.Context, call *Call, _ payloadRequest) (envelope.Result, error) {
			return envelope.OK(call.Tenant()), nil
		},
	}
	body := `{"tenantId":"` + f.tenantA.String() + `"}`

	resp := Run(context.Background(), f.pipeline, ep, f.inbound(http.MethodPost, "customer", "", body))
	if resp.Status != http.StatusOK || resp.Body.Data != f.tenantA {
		t.Errorf("payload only: %d %+v", resp.Status, resp.Body)
	}
	resp = Run(context.Background(), f.pipeline, ep, f.inbound(http.MethodPost, "customer", f.tenantB.String(), body))
	if resp.Status != http.StatusBadRequest {
		t.Errorf("conflicting tenants: status = %d", resp.Status)
	}
}

type payloadRequest struct {
	TenantID string `json:"tenantId"`
}

func (r payloadRequest) PayloadTenant() string { return r.TenantID }

func TestRun_PathID(t *testing.T) {
	f := newFixture(t)
	var got uuid.UUID
	ep := Endpoint[struct{}]{
		Name:    "notes.get",
		Tenant:  tenancy.Required,
		IDParam: "id",
		Handle: func(_ context.Context, call *Call, _ struct{}) (envelope.Result, error) {
			got = call.ID
			return envelope.OK(nil), nil
		},
	}
	in := f.inbound(http.MethodGet, "admin", f.tenantA.String(), "")
	in.Params = map[string]string{"id": "not-a-uuid"}
	if resp := Run(context.Background(), f.pipeline, ep, in); resp.Status != http.StatusBadRequest || resp.Body.Details != "invalid fields: id" {
		t.Errorf("malformed id: %d %+v", resp.Status, resp.Body)
	}

	want := uuid.New()
	in.Params["id"] = want.String()
	if resp := Run(context.Background(), f.pipeline, ep, in); resp.Status != http.StatusOK || got != want {
		t.Errorf("id = %s, want %s (status %d)", got, want, resp.Status)
	}
}

func TestRun_ErrorsDoNotLeak(t *testing.T) {
	tests := []struct {
		name       string
		handle     func() error
		wantStatus int
		wantError  string
	}{
		{
			name:       "internal",
			handle:     func() error { return errors.New("pq: password authentication failed for user soko") },
			wantStatus: http.StatusInternalServerError, wantError: "internal error",
		},
		{
			name:       "upstream",
			handle:     func() error { return apierr.Upstream("payment gateway", errors.New(`{"key":"rzp_live_secret"}`)) },
			wantStatus: http.StatusBadGateway, wantError: "payment gateway is unavailable, please retry",
		},
		{
			name:       "panic",
			handle:     func() error { panic("nil map") },
			wantStatus: http.StatusInternalServerError, wantError: "internal error",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ep := Endpoint[struct{}]{
				Name:     "boom",
				Mutating: true,
				Handle: func(context.Context, *Call, struct{}) (envelope.Result, error) {
					return envelope.Result{}, tt.handle()
				},
			}
			resp := Run(context.Background(), f.pipeline, ep, f.inbound(http.MethodPost, "admin", "", ""))
			if resp.Status != tt.wantStatus || resp.Body.Error != tt.wantError {
				t.Fatalf("resp = %d %+v", resp.Status, resp.Body)
			}
			if resp.Body.Details != "" {
				t.Errorf("details leaked: %q", resp.Body.Details)
			}
			if len(f.auditor.events) != 1 || f.auditor.events[0].Result != "failure" {
				t.Errorf("audit = %+v", f.auditor.events)
			}
		})
	}
}

func TestRun_RateLimited(t *testing.T) {
	f := newFixture(t)
	f.pipeline.Limiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: 1, BurstSize: 1})
	ep := f.createNote()
	in := f.inbound(http.MethodPost, "admin", f.tenantA.String(), `{"title":"x"}`)

	if resp := Run(context.Background(), f.pipeline, ep, in); resp.Status != http.StatusCreated {
		t.Fatalf("first: status = %d", resp.Status)
	}
	resp := Run(context.Background(), f.pipeline, ep, in)
	if resp.Status != http.StatusTooManyRequests || resp.Body.Error != "rate limit exceeded" {
		t.Errorf("second: %d %+v", resp.Status, resp.Body)
	}
	if f.writes != 1 {
		t.Errorf("writes = %d", f.writes)
	}
}

func TestRun_AuditAndMetrics(t *testing.T) {
	f := newFixture(t)
	ep := f.createNote()
	Run(context.Background(), f.pipeline, ep, f.inbound(http.MethodPost, "admin", f.tenantA.String(), `{"title":"x"}`))
	Run(context.Background(), f.pipeline, ep, f.inbound(http.MethodPost, "customer", f.tenantA.String(), `{"title":"x"}`))
	Run(context.Background(), f.pipeline, ep, f.inbound(http.MethodPost, "", "", `{"title":"x"}`))

	if len(f.auditor.events) != 2 {
		t.Fatalf("audit events = %+v", f.auditor.events)
	}
	if ev := f.auditor.events[0]; ev.Result != "success" || ev.TenantID != f.tenantA.String() || ev.Action != "notes.create" {
		t.Errorf("first event = %+v", ev)
	}
	if ev := f.auditor.events[1]; ev.Result != "denied" {
		t.Errorf("second event = %+v", ev)
	}

	want := []string{"success", "Forbidden", "Unauthorized"}
	if strings.Join(f.metrics.outcomes, ",") != strings.Join(want, ",") {
		t.Errorf("outcomes = %v, want %v", f.metrics.outcomes, want)
	}
}
