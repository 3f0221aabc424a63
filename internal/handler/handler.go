// Package handler runs the request lifecycle shared by every endpoint:
// pre-flight, authentication, decoding and validation, tenant resolution,
// authorization, the operation itself, and the response envelope.
//
// The package knows nothing about the HTTP framework. Gateways translate
// their request type into an Inbound and write the returned Response.
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/jkaninda/soko/internal/apierr"
	"github.com/jkaninda/soko/internal/auth"
	"github.com/jkaninda/soko/internal/domain"
	"github.com/jkaninda/soko/internal/envelope"
	"github.com/jkaninda/soko/internal/observability"
	"github.com/jkaninda/soko/internal/security"
	"github.com/jkaninda/soko/internal/tenancy"
)

// HeaderCorrelationID carries the caller's correlation ID.
const HeaderCorrelationID = "X-Correlation-ID"

// Inbound is a framework-neutral view of one request.
type Inbound struct {
	Method string
	Header http.Header
	Params map[string]string // path parameters
	Query  url.Values
	Body   []byte
}

// Validator is implemented by request types that check their own fields.
type Validator interface {
	Validate() error
}

// PayloadTenant is implemented by request types that carry a tenantId.
type PayloadTenant interface {
	PayloadTenant() string
}

// Call is the resolved context an operation runs with.
type Call struct {
	Principal     *domain.Principal // nil on public endpoints
	TenantID      *uuid.UUID        // nil on tenant-agnostic endpoints
	ID            uuid.UUID         // parsed path ID when the endpoint names one
	Query         url.Values
	CorrelationID string
}

// Tenant returns the resolved tenant. Only valid on endpoints that require one.
func (c *Call) Tenant() uuid.UUID {
	if c.TenantID == nil {
		return uuid.Nil
	}
	return *c.TenantID
}

// Platform reports whether the caller may manage global rows.
func (c *Call) Platform() bool {
	return c.Principal != nil && c.Principal.Role == domain.RolePlatformAdmin
}

// Endpoint describes one operation.
type Endpoint[Req any] struct {
	Name       string // used in logs, metrics and audit events
	Public     bool   // no authentication
	Mutating   bool   // audited
	Tenant     tenancy.Requirement
	Capability domain.Capability
	// IDParam names a path parameter parsed into Call.ID.
	IDParam string
	// Bind copies query and path parameters into the request before
	// validation.
	Bind func(in *Inbound, req *Req)
	// Authorize runs extra entitlement checks after the capability check.
	Authorize func(call *Call) error
	Handle    func(ctx context.Context, call *Call, req Req) (envelope.Result, error)
}

// Response is what the gateway writes.
type Response struct {
	Status        int
	Body          envelope.Envelope
	CorrelationID string

	outcome string
}

// Authenticator resolves a bearer header to a principal.
type Authenticator interface {
	Authenticate(ctx context.Context, header string) (*domain.Principal, error)
}

// TenantResolver resolves the tenant of a request.
type TenantResolver interface {
	Resolve(ctx context.Context, src tenancy.Source, req tenancy.Requirement) (*uuid.UUID, error)
}

// Limiter throttles a key.
type Limiter interface {
	Allow(key string) error
}

// Recorder records request outcomes.
type Recorder interface {
	ObserveRequest(endpoint, outcome string, d time.Duration)
}

// Pipeline holds the collaborators shared by every endpoint. Limiter,
// Auditor and Metrics may be nil.
type Pipeline struct {
	Auth     Authenticator
	Resolver TenantResolver
	Limiter  Limiter
	Auditor  security.Auditor
	Metrics  Recorder
	Logger   *slog.Logger
}

// Run executes ep for in. Steps run strictly in order and the first
// failure ends the request.
func Run[Req any](ctx context.Context, p *Pipeline, ep Endpoint[Req], in *Inbound) (resp Response) {
	start := time.Now()
	correlationID := in.Header.Get(HeaderCorrelationID)
	if correlationID == "" {
		correlationID = security.NewCorrelationID()
	}
	call := &Call{Query: in.Query, CorrelationID: correlationID}
	logger := p.Logger.With(
		slog.String("endpoint", ep.Name),
		slog.String("correlation_id", correlationID),
	)
	observability.AnnotateRequest(ctx, ep.Name, correlationID)

	fail := func(err error) Response {
		e := apierr.As(err)
		switch e.Kind {
		case apierr.KindInternal:
			logger.ErrorContext(ctx, "request failed", slog.Any("error", err))
		case apierr.KindUpstream:
			logger.WarnContext(ctx, "upstream failure", slog.Any("error", err))
		default:
			logger.DebugContext(ctx, "request rejected",
				slog.String("kind", e.Kind.String()),
				slog.String("error", e.Error()),
			)
		}
		result := "failure"
		if e.Kind == apierr.KindForbidden || e.Kind == apierr.KindUnauthorized {
			result = "denied"
		}
		p.audit(ctx, logger, ep.Name, ep.Mutating, ep.Capability, call, result, e)
		status, body := envelope.Failure(e)
		return Response{Status: status, Body: body, outcome: e.Kind.String()}
	}

	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "handler panic",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			resp = fail(apierr.Internal(fmt.Errorf("panic: %v", r)))
		}
		resp.CorrelationID = correlationID
		observability.AnnotateOutcome(ctx, resp.outcome,
			resp.outcome == apierr.KindInternal.String() || resp.outcome == apierr.KindUpstream.String())
		if p.Metrics != nil {
			p.Metrics.ObserveRequest(ep.Name, resp.outcome, time.Since(start))
		}
	}()

	if in.Method == http.MethodOptions {
		return Response{Status: http.StatusOK, Body: envelope.Empty(), outcome: "preflight"}
	}

	if !ep.Public {
		principal, err := p.Auth.Authenticate(ctx, in.Header.Get("Authorization"))
		if err != nil {
			return fail(err)
		}
		call.Principal = principal
		ctx = auth.WithPrincipal(ctx, principal)
		logger = logger.With(slog.String("principal_id", principal.ID.String()))

		if p.Limiter != nil {
			if err := p.Limiter.Allow(principal.ID.String()); err != nil {
				return fail(apierr.RateLimited())
			}
		}
	}

	req, err := decode(ep, in, call)
	if err != nil {
		return fail(err)
	}
	src := tenancy.Source{Session: in.Header.Get(tenancy.HeaderTenant)}
	if pt, ok := any(req).(PayloadTenant); ok {
		src.Payload = pt.PayloadTenant()
	}
	tenantID, err := p.Resolver.Resolve(ctx, src, ep.Tenant)
	if err != nil {
		return fail(err)
	}
	call.TenantID = tenantID
	if tenantID != nil {
		logger = logger.With(slog.String("tenant_id", tenantID.String()))
	}
	var principalID *uuid.UUID
	if call.Principal != nil {
		principalID = &call.Principal.ID
	}
	observability.AnnotateCaller(ctx, principalID, tenantID)

	if !ep.Public {
		if !security.HasCapability(call.Principal, ep.Capability) || !tenancy.Entitled(call.Principal, tenantID) {
			return fail(apierr.Forbidden())
		}
		if ep.Authorize != nil {
			if err := ep.Authorize(call); err != nil {
				return fail(err)
			}
		}
	}

	result, err := ep.Handle(ctx, call, req)
	if err != nil {
		return fail(err)
	}
	p.audit(ctx, logger, ep.Name, ep.Mutating, ep.Capability, call, "success", nil)
	status, body := envelope.Success(result)
	return Response{Status: status, Body: body, outcome: "success"}
}

// decode builds the request value and validates it.
func decode[Req any](ep Endpoint[Req], in *Inbound, call *Call) (Req, error) {
	var req Req
	if body := bytes.TrimSpace(in.Body); len(body) > 0 {
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			return req, bodyError(err)
		}
		if _, err := dec.Token(); !errors.Is(err, io.EOF) {
			return req, apierr.InvalidInput("request body must be a single JSON object", "body")
		}
	}
	if ep.Bind != nil {
		ep.Bind(in, &req)
	}
	if ep.IDParam != "" {
		id, err := uuid.Parse(in.Params[ep.IDParam])
		if err != nil {
			return req, apierr.InvalidInput("malformed identifier", ep.IDParam)
		}
		call.ID = id
	}
	if v, ok := any(req).(Validator); ok {
		if err := v.Validate(); err != nil {
			return req, err
		}
	}
	return req, nil
}

func bodyError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return apierr.InvalidInput("malformed field", typeErr.Field)
	}
	return apierr.InvalidInput("malformed JSON body", "body")
}

// audit records the outcome of mutating endpoints. Requests rejected
// before authentication are not attributed to anyone and are skipped.
func (p *Pipeline) audit(ctx context.Context, logger *slog.Logger, name string, mutating bool, capability domain.Capability, call *Call, result string, e *apierr.Error) {
	if p.Auditor == nil || !mutating || call.Principal == nil {
		return
	}
	ev := security.AuditEvent{
		Timestamp:     time.Now().UTC(),
		CorrelationID: call.CorrelationID,
		PrincipalID:   call.Principal.ID.String(),
		Action:        name,
		Capability:    string(capability),
		Result:        result,
	}
	if call.TenantID != nil {
		ev.TenantID = call.TenantID.String()
	}
	if e != nil {
		ev.Error = e.Message
	}
	if err := p.Auditor.LogAction(ctx, ev); err != nil {
		logger.ErrorContext(ctx, "writing audit event", slog.Any("error", err))
	}
}
