package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/jkaninda/okapi"

	"github.com/jkaninda/soko/internal/domain"
	"github.com/jkaninda/soko/internal/envelope"
	"github.com/jkaninda/soko/internal/handler"
	"github.com/jkaninda/soko/internal/ordering"
	"github.com/jkaninda/soko/internal/security"
	"github.com/jkaninda/soko/internal/tenancy"
)

func (g *Gateway) mountOrders() {
	g.mountCart()

	// Orders never fall back to global rows: every order belongs to exactly
	// one tenant.
	g.v1.Post("/orders", handle(g, handler.Endpoint[ordering.CheckoutRequest]{
		Name:       "orders.checkout",
		Mutating:   true,
		Tenant:     tenancy.Required,
		Capability: security.CartManage,
		Handle: func(ctx context.Context, call *handler.Call, req ordering.CheckoutRequest) (envelope.Result, error) {
			o, err := g.svc.Ordering.Checkout(ctx, call.Tenant(), call.Principal.ID, req)
			if err != nil {
				return envelope.Result{}, err
			}
			return envelope.Created(o), nil
		},
	}),
		okapi.DocSummary("Turn the caller's cart into an order"),
		okapi.DocTags("Orders"),
		okapi.DocRequestBody(ordering.CheckoutRequest{}),
		okapi.DocResponse(http.StatusCreated, domain.Order{}),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
	)
	g.v1.Get("/orders", handle(g, handler.Endpoint[ordering.ListRequest]{
		Name:       "orders.list",
		Tenant:     tenancy.Required,
		Capability: security.OrdersRead,
		Bind: func(in *handler.Inbound, req *ordering.ListRequest) {
			req.Status = in.Query.Get("status")
			if v := in.Query.Get("limit"); v != "" {
				n, err := strconv.Atoi(v)
				if err != nil {
					n = -1
				}
				req.Limit = n
			}
		},
		Handle: func(ctx context.Context, call *handler.Call, req ordering.ListRequest) (envelope.Result, error) {
			orders, err := g.svc.Ordering.ListOrders(ctx, call.Tenant(), call.Principal, req)
			if err != nil {
				return envelope.Result{}, err
			}
			return envelope.OK(orders), nil
		},
	}),
		okapi.DocSummary("List orders visible to the caller"),
		okapi.DocTags("Orders"),
		okapi.DocResponse([]domain.Order{}),
	)
	g.v1.Get("/orders/{id}", g.orderEndpoint("orders.get", security.OrdersRead, false,
		func(ctx context.Context, call *handler.Call) (any, error) {
			return g.svc.Ordering.GetOrder(ctx, call.Tenant(), call.Principal, call.ID)
		}),
		okapi.DocSummary("Get an order"),
		okapi.DocTags("Orders"),
		okapi.DocPathParam("id", "string", "Order ID (UUID)"),
		okapi.DocResponse(domain.Order{}),
		okapi.DocResponse(http.StatusNotFound, ErrorBody{}),
	)
	g.v1.Post("/orders/{id}/clear-items", g.orderEndpoint("orders.clear-items", security.OrdersWrite, true,
		func(ctx context.Context, call *handler.Call) (any, error) {
			return g.svc.Ordering.ClearItems(ctx, call.Tenant(), call.ID)
		}),
		okapi.DocSummary("Remove every line of a pending order"),
		okapi.DocTags("Orders"),
		okapi.DocPathParam("id", "string", "Order ID (UUID)"),
		okapi.DocResponse(domain.Order{}),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
	)
	g.v1.Post("/orders/{id}/recalculate", g.orderEndpoint("orders.recalculate", security.OrdersWrite, true,
		func(ctx context.Context, call *handler.Call) (any, error) {
			return g.svc.Ordering.Recalculate(ctx, call.Tenant(), call.ID)
		}),
		okapi.DocSummary("Recompute order totals from its lines"),
		okapi.DocTags("Orders"),
		okapi.DocPathParam("id", "string", "Order ID (UUID)"),
		okapi.DocResponse(domain.Order{}),
	)
	g.v1.Post("/orders/{id}/assign", handle(g, handler.Endpoint[ordering.AssignRequest]{
		Name:       "orders.assign",
		Mutating:   true,
		Tenant:     tenancy.Required,
		Capability: security.OrdersAssign,
		IDParam:    "id",
		Handle: func(ctx context.Context, call *handler.Call, req ordering.AssignRequest) (envelope.Result, error) {
			o, err := g.svc.Ordering.Assign(ctx, call.Tenant(), call.ID, req)
			if err != nil {
				return envelope.Result{}, err
			}
			return envelope.OK(o), nil
		},
	}),
		okapi.DocSummary("Assign a delivery agent to an order"),
		okapi.DocTags("Delivery"),
		okapi.DocPathParam("id", "string", "Order ID (UUID)"),
		okapi.DocRequestBody(ordering.AssignRequest{}),
		okapi.DocResponse(domain.Order{}),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
	)
	g.v1.Post("/orders/{id}/delivery-status", handle(g, handler.Endpoint[ordering.DeliveryStatusRequest]{
		Name:       "orders.delivery-status",
		Mutating:   true,
		Tenant:     tenancy.Required,
		Capability: security.DeliveryUpdate,
		IDParam:    "id",
		Handle: func(ctx context.Context, call *handler.Call, req ordering.DeliveryStatusRequest) (envelope.Result, error) {
			o, err := g.svc.Ordering.UpdateDeliveryStatus(ctx, call.Tenant(), call.Principal.ID, call.ID, req)
			if err != nil {
				return envelope.Result{}, err
			}
			return envelope.OK(o), nil
		},
	}),
		okapi.DocSummary("Advance the delivery state of an assigned order"),
		okapi.DocTags("Delivery"),
		okapi.DocPathParam("id", "string", "Order ID (UUID)"),
		okapi.DocRequestBody(ordering.DeliveryStatusRequest{}),
		okapi.DocResponse(domain.Order{}),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
		okapi.DocResponse(http.StatusForbidden, ErrorBody{}),
	)
	g.v1.Post("/orders/{id}/payment-order", g.orderEndpoint("orders.payment-order", security.PaymentsCreate, true,
		func(ctx context.Context, call *handler.Call) (any, error) {
			return g.svc.Ordering.CreatePaymentOrder(ctx, call.Tenant(), call.Principal.ID, call.ID)
		}),
		okapi.DocSummary("Open a payment order with the payment provider"),
		okapi.DocTags("Payments"),
		okapi.DocPathParam("id", "string", "Order ID (UUID)"),
		okapi.DocResponse(ordering.PaymentOrder{}),
		okapi.DocResponse(http.StatusBadGateway, ErrorBody{}),
	)
	g.v1.Post("/orders/{id}/payments", handle(g, handler.Endpoint[ordering.PaymentRequest]{
		Name:       "orders.pay",
		Mutating:   true,
		Tenant:     tenancy.Required,
		Capability: security.PaymentsCreate,
		IDParam:    "id",
		Handle: func(ctx context.Context, call *handler.Call, req ordering.PaymentRequest) (envelope.Result, error) {
			p, err := g.svc.Ordering.Pay(ctx, call.Tenant(), call.Principal.ID, call.ID, req)
			if err != nil {
				return envelope.Result{}, err
			}
			return envelope.Created(p), nil
		},
	}),
		okapi.DocSummary("Pay an order"),
		okapi.DocTags("Payments"),
		okapi.DocPathParam("id", "string", "Order ID (UUID)"),
		okapi.DocRequestBody(ordering.PaymentRequest{}),
		okapi.DocResponse(http.StatusCreated, domain.Payment{}),
		okapi.DocResponse(http.StatusBadGateway, ErrorBody{}),
	)
}

func (g *Gateway) mountCart() {
	g.v1.Get("/cart", handle(g, handler.Endpoint[struct{}]{
		Name:       "cart.get",
		Tenant:     tenancy.Required,
		Capability: security.CartManage,
		Handle: func(ctx context.Context, call *handler.Call, _ struct{}) (envelope.Result, error) {
			items, err := g.svc.Ordering.Cart(ctx, call.Tenant(), call.Principal.ID)
			if err != nil {
				return envelope.Result{}, err
			}
			return envelope.OK(items), nil
		},
	}),
		okapi.DocSummary("Get the caller's cart"),
		okapi.DocTags("Cart"),
		okapi.DocResponse([]domain.CartItem{}),
	)
	g.v1.Put("/cart/items", handle(g, handler.Endpoint[ordering.CartItemRequest]{
		Name:       "cart.put-item",
		Tenant:     tenancy.Required,
		Capability: security.CartManage,
		Handle: func(ctx context.Context, call *handler.Call, req ordering.CartItemRequest) (envelope.Result, error) {
			item, err := g.svc.Ordering.PutCartItem(ctx, call.Tenant(), call.Principal.ID, req)
			if err != nil {
				return envelope.Result{}, err
			}
			return envelope.OK(item), nil
		},
	}),
		okapi.DocSummary("Add a menu item to the cart or change its quantity"),
		okapi.DocTags("Cart"),
		okapi.DocRequestBody(ordering.CartItemRequest{}),
		okapi.DocResponse(domain.CartItem{}),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
	)
	g.v1.Delete("/cart/items/{id}", handle(g, handler.Endpoint[struct{}]{
		Name:       "cart.remove-item",
		Tenant:     tenancy.Required,
		Capability: security.CartManage,
		IDParam:    "id",
		Handle: func(ctx context.Context, call *handler.Call, _ struct{}) (envelope.Result, error) {
			if err := g.svc.Ordering.RemoveCartItem(ctx, call.Tenant(), call.Principal.ID, call.ID); err != nil {
				return envelope.Result{}, err
			}
			return envelope.OK(map[string]string{"id": call.ID.String()}), nil
		},
	}),
		okapi.DocSummary("Remove a line from the cart"),
		okapi.DocTags("Cart"),
		okapi.DocPathParam("id", "string", "Cart item ID (UUID)"),
		okapi.DocResponse(map[string]string{}),
	)
}

// orderEndpoint builds a body-less endpoint addressing one order by path ID.
func (g *Gateway) orderEndpoint(name string, capability domain.Capability, mutating bool, fn func(ctx context.Context, call *handler.Call) (any, error)) okapi.HandlerFunc {
	return handle(g, handler.Endpoint[struct{}]{
		Name:       name,
		Mutating:   mutating,
		Tenant:     tenancy.Required,
		Capability: capability,
		IDParam:    "id",
		Handle: func(ctx context.Context, call *handler.Call, _ struct{}) (envelope.Result, error) {
			v, err := fn(ctx, call)
			if err != nil {
				return envelope.Result{}, err
			}
			return envelope.OK(v), nil
		},
	})
}
