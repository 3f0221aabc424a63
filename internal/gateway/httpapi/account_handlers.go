package httpapi

import (
	"context"
	"net/http"

	"github.com/jkaninda/okapi"

	"github.com/jkaninda/soko/internal/accounts"
	"github.com/jkaninda/soko/internal/dashboard"
	"github.com/jkaninda/soko/internal/domain"
	"github.com/jkaninda/soko/internal/envelope"
	"github.com/jkaninda/soko/internal/handler"
	"github.com/jkaninda/soko/internal/otp"
	"github.com/jkaninda/soko/internal/security"
	"github.com/jkaninda/soko/internal/tenancy"
)

func (g *Gateway) mountAccounts() {
	g.v1.Post("/auth/login", handle(g, handler.Endpoint[accounts.LoginRequest]{
		Name:   "auth.login",
		Public: true,
		Handle: func(ctx context.Context, _ *handler.Call, req accounts.LoginRequest) (envelope.Result, error) {
			s, err := g.svc.Accounts.Login(ctx, req)
			if err != nil {
				return envelope.Result{}, err
			}
			return envelope.OK(s), nil
		},
	}),
		okapi.DocSummary("Exchange a username and password for a bearer token"),
		okapi.DocTags("Auth"),
		okapi.DocRequestBody(accounts.LoginRequest{}),
		okapi.DocResponse(accounts.Session{}),
		okapi.DocResponse(http.StatusUnauthorized, ErrorBody{}),
	)

	if g.svc.OTP != nil {
		g.v1.Post("/otp/send", handle(g, handler.Endpoint[otp.SendRequest]{
			Name:   "otp.send",
			Public: true,
			Handle: func(ctx context.Context, _ *handler.Call, req otp.SendRequest) (envelope.Result, error) {
				res, err := g.svc.OTP.Send(ctx, req)
				if err != nil {
					return envelope.Result{}, err
				}
				return envelope.OK(res), nil
			},
		}),
			okapi.DocSummary("Send a verification code by SMS"),
			okapi.DocTags("Auth"),
			okapi.DocRequestBody(otp.SendRequest{}),
			okapi.DocResponse(otp.SendResult{}),
			okapi.DocResponse(http.StatusTooManyRequests, ErrorBody{}),
			okapi.DocResponse(http.StatusBadGateway, ErrorBody{}),
		)
		g.v1.Post("/otp/verify", handle(g, handler.Endpoint[otp.VerifyRequest]{
			Name:   "otp.verify",
			Public: true,
			Handle: func(ctx context.Context, _ *handler.Call, req otp.VerifyRequest) (envelope.Result, error) {
				res, err := g.svc.OTP.Verify(ctx, req)
				if err != nil {
					return envelope.Result{}, err
				}
				return envelope.OK(res), nil
			},
		}),
			okapi.DocSummary("Verify a code and sign in the matching account"),
			okapi.DocTags("Auth"),
			okapi.DocRequestBody(otp.VerifyRequest{}),
			okapi.DocResponse(otp.VerifyResult{}),
			okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
		)
	}

	g.v1.Get("/tenants", handle(g, handler.Endpoint[struct{}]{
		Name:       "tenants.list",
		Tenant:     tenancy.None,
		Capability: security.TenantsRead,
		Handle: func(ctx context.Context, call *handler.Call, _ struct{}) (envelope.Result, error) {
			ts, err := g.svc.Tenants.ListActive(ctx)
			if err != nil {
				return envelope.Result{}, err
			}
			if !call.Platform() {
				ts = homeTenant(ts, call.Principal)
			}
			return envelope.OK(ts), nil
		},
	}),
		okapi.DocSummary("List the tenants the caller may select"),
		okapi.DocTags("Tenants"),
		okapi.DocResponse([]domain.Tenant{}),
	)

	g.v1.Get("/principals", handle(g, handler.Endpoint[struct{}]{
		Name:       "principals.list",
		Tenant:     tenancy.Optional,
		Capability: security.PrincipalsManage,
		Handle: func(ctx context.Context, call *handler.Call, _ struct{}) (envelope.Result, error) {
			ps, err := g.svc.Accounts.List(ctx, call.TenantID)
			if err != nil {
				return envelope.Result{}, err
			}
			return envelope.OK(ps), nil
		},
	}),
		okapi.DocSummary("List principals, optionally of one tenant"),
		okapi.DocTags("Principals"),
		okapi.DocResponse([]domain.Principal{}),
		okapi.DocResponse(http.StatusForbidden, ErrorBody{}),
	)
	g.v1.Post("/principals", handle(g, handler.Endpoint[accounts.CreateRequest]{
		Name:       "principals.create",
		Mutating:   true,
		Tenant:     tenancy.None,
		Capability: security.PrincipalsManage,
		Handle: func(ctx context.Context, _ *handler.Call, req accounts.CreateRequest) (envelope.Result, error) {
			p, err := g.svc.Accounts.Create(ctx, req)
			if err != nil {
				return envelope.Result{}, err
			}
			return envelope.Created(p), nil
		},
	}),
		okapi.DocSummary("Create a principal (idempotent by username)"),
		okapi.DocTags("Principals"),
		okapi.DocRequestBody(accounts.CreateRequest{}),
		okapi.DocResponse(http.StatusCreated, domain.Principal{}),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
		okapi.DocResponse(http.StatusForbidden, ErrorBody{}),
	)

	g.v1.Get("/dashboard/summary", handle(g, handler.Endpoint[struct{}]{
		Name:       "dashboard.summary",
		Tenant:     tenancy.Required,
		Capability: security.DashboardRead,
		Handle: func(ctx context.Context, call *handler.Call, _ struct{}) (envelope.Result, error) {
			s, err := g.svc.Dashboard.Summary(ctx, call.Tenant())
			if err != nil {
				return envelope.Result{}, err
			}
			return envelope.OK(s), nil
		},
	}),
		okapi.DocSummary("Tenant overview counters"),
		okapi.DocTags("Dashboard"),
		okapi.DocResponse(dashboard.Summary{}),
	)
}

// homeTenant narrows a tenant listing to the caller's own tenant.
func homeTenant(ts []domain.Tenant, p *domain.Principal) []domain.Tenant {
	out := make([]domain.Tenant, 0, 1)
	for _, t := range ts {
		if p != nil && p.TenantID != nil && *p.TenantID == t.ID {
			out = append(out, t)
		}
	}
	return out
}
