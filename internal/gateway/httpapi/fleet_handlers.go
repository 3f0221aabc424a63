package httpapi

import (
	"context"
	"net/http"

	"github.com/jkaninda/okapi"

	"github.com/jkaninda/soko/internal/apierr"
	"github.com/jkaninda/soko/internal/domain"
	"github.com/jkaninda/soko/internal/envelope"
	"github.com/jkaninda/soko/internal/fleet"
	"github.com/jkaninda/soko/internal/handler"
	"github.com/jkaninda/soko/internal/security"
	"github.com/jkaninda/soko/internal/tenancy"
)

func (g *Gateway) mountFleet() {
	g.v1.Get("/agents", handle(g, handler.Endpoint[struct{}]{
		Name:       "agents.list",
		Tenant:     tenancy.Required,
		Capability: security.FleetRead,
		Handle: func(ctx context.Context, call *handler.Call, _ struct{}) (envelope.Result, error) {
			agents, err := g.svc.Fleet.List(ctx, call.Tenant())
			if err != nil {
				return envelope.Result{}, err
			}
			return envelope.OK(agents), nil
		},
	}),
		okapi.DocSummary("List delivery agents of the tenant and global agents"),
		okapi.DocTags("Fleet"),
		okapi.DocResponse([]domain.DeliveryAgent{}),
	)
	g.v1.Post("/agents", handle(g, handler.Endpoint[fleet.AgentInput]{
		Name:       "agents.create",
		Mutating:   true,
		Tenant:     tenancy.Required,
		Capability: security.FleetWrite,
		Handle: func(ctx context.Context, call *handler.Call, in fleet.AgentInput) (envelope.Result, error) {
			a, err := g.svc.Fleet.Create(ctx, call.Tenant(), call.Platform(), in)
			if err != nil {
				return envelope.Result{}, err
			}
			return envelope.Created(a), nil
		},
	}),
		okapi.DocSummary("Register a delivery agent profile"),
		okapi.DocTags("Fleet"),
		okapi.DocRequestBody(fleet.AgentInput{}),
		okapi.DocResponse(http.StatusCreated, domain.DeliveryAgent{}),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
	)
	g.v1.Put("/agents/{id}", handle(g, handler.Endpoint[fleet.AgentInput]{
		Name:       "agents.update",
		Mutating:   true,
		Tenant:     tenancy.Required,
		Capability: security.FleetWrite,
		IDParam:    "id",
		Handle: func(ctx context.Context, call *handler.Call, in fleet.AgentInput) (envelope.Result, error) {
			a, err := g.svc.Fleet.Update(ctx, call.Tenant(), call.Platform(), call.ID, in)
			if err != nil {
				return envelope.Result{}, err
			}
			return envelope.OK(a), nil
		},
	}),
		okapi.DocSummary("Update a delivery agent"),
		okapi.DocTags("Fleet"),
		okapi.DocPathParam("id", "string", "Agent ID (UUID)"),
		okapi.DocRequestBody(fleet.AgentInput{}),
		okapi.DocResponse(domain.DeliveryAgent{}),
		okapi.DocResponse(http.StatusNotFound, ErrorBody{}),
	)
	g.v1.Get("/agents/{id}/earnings", handle(g, handler.Endpoint[fleet.EarningsRequest]{
		Name:    "agents.earnings",
		Tenant:  tenancy.Required,
		IDParam: "id",
		Bind: func(in *handler.Inbound, req *fleet.EarningsRequest) {
			req.AgentID = in.Params["id"]
			req.From = in.Query.Get("from")
			req.To = in.Query.Get("to")
		},
		// Couriers read their own earnings; the service checks ownership.
		Authorize: func(call *handler.Call) error {
			if security.HasCapability(call.Principal, security.FleetRead) ||
				security.HasCapability(call.Principal, security.DeliveryUpdate) {
				return nil
			}
			return apierr.Forbidden()
		},
		Handle: func(ctx context.Context, call *handler.Call, req fleet.EarningsRequest) (envelope.Result, error) {
			e, err := g.svc.Fleet.Earnings(ctx, call.Tenant(), call.Principal, req)
			if err != nil {
				return envelope.Result{}, err
			}
			return envelope.OK(e), nil
		},
	}),
		okapi.DocSummary("Delivery fee earnings of an agent over a period"),
		okapi.DocTags("Fleet"),
		okapi.DocPathParam("id", "string", "Agent ID (UUID)"),
		okapi.DocResponse(fleet.Earnings{}),
		okapi.DocResponse(http.StatusForbidden, ErrorBody{}),
	)
}
