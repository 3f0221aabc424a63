package ordering

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/jkaninda/soko/internal/apierr"
	"github.com/jkaninda/soko/internal/domain"
	"github.com/jkaninda/soko/internal/security"
)

// CheckoutRequest turns the caller's cart into an order.
type CheckoutRequest struct {
	PromoCode string `json:"promoCode,omitempty"`
}

func (r CheckoutRequest) Validate() error {
	var c apierr.Check
	c.Require(len(r.PromoCode) <= 32, "promoCode")
	return c.Err("invalid checkout fields")
}

// ListRequest filters an order listing.
type ListRequest struct {
	Status string `json:"status,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

func (r ListRequest) Validate() error {
	var c apierr.Check
	switch domain.OrderStatus(r.Status) {
	case "", domain.OrderPending, domain.OrderConfirmed, domain.OrderDelivered, domain.OrderCancelled, domain.OrderFailed:
	default:
		c.Require(false, "status")
	}
	c.Require(r.Limit >= 0 && r.Limit <= 500, "limit")
	return c.Err("invalid order filter")
}

// Checkout creates a pending order from the caller's cart and empties it.
func (s *Service) Checkout(ctx context.Context, tenantID, customerID uuid.UUID, req CheckoutRequest) (*domain.Order, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	cart, err := s.store.ListCart(ctx, tenantID, customerID)
	if err != nil {
		return nil, fmt.Errorf("listing cart: %w", err)
	}
	if len(cart) == 0 {
		return nil, apierr.InvalidInput("cart is empty", "cart")
	}

	order := &domain.Order{
		ID:             domain.NewID(),
		TenantID:       tenantID,
		CustomerID:     customerID,
		Status:         domain.OrderPending,
		DeliveryStatus: domain.DeliveryPending,
		DeliveryFee:    s.cfg.DeliveryFee,
		Currency:       s.cfg.Currency,
	}
	restaurants := make(map[uuid.UUID]struct{})
	for _, line := range cart {
		mi, err := s.store.GetMenuItem(ctx, tenantID, line.MenuItemID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, apierr.InvalidInput("cart contains an unknown menu item", "cart")
			}
			return nil, fmt.Errorf("loading menu item: %w", err)
		}
		if !mi.IsAvailable {
			return nil, apierr.InvalidInput(mi.Name+" is no longer available", "cart")
		}
		restaurants[mi.RestaurantID] = struct{}{}
		order.Items = append(order.Items, domain.OrderItem{
			ID:         domain.NewID(),
			OrderID:    order.ID,
			MenuItemID: mi.ID,
			Name:       mi.Name,
			UnitPrice:  mi.Price,
			Quantity:   line.Quantity,
		})
	}
	if len(restaurants) == 1 {
		for id := range restaurants {
			order.RestaurantID = &id
		}
	}

	s.recompute(order)
	if req.PromoCode != "" {
		discount, err := s.discount(ctx, tenantID, req.PromoCode, order.Subtotal)
		if err != nil {
			return nil, err
		}
		order.Discount = discount
		s.recompute(order)
	}

	if err := s.store.Checkout(ctx, order); err != nil {
		return nil, fmt.Errorf("creating order: %w", err)
	}
	s.logger.InfoContext(ctx, "order created",
		slog.String("order_id", order.ID.String()),
		slog.String("tenant_id", tenantID.String()),
		slog.Int("items", len(order.Items)),
		slog.Float64("total", order.TotalAmount),
	)
	return order, nil
}

func (s *Service) discount(ctx context.Context, tenantID uuid.UUID, code string, subtotal float64) (float64, error) {
	promo, err := s.store.FindPromoCode(ctx, tenantID, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return 0, apierr.InvalidInput("unknown promo code", "promoCode")
		}
		return 0, fmt.Errorf("loading promo code: %w", err)
	}
	if !promo.IsActive || (promo.ValidUntil != nil && promo.ValidUntil.Before(s.now())) {
		return 0, apierr.InvalidInput("promo code has expired", "promoCode")
	}
	d := subtotal * promo.DiscountPercent / 100
	if promo.MaxDiscount > 0 && d > promo.MaxDiscount {
		d = promo.MaxDiscount
	}
	return round2(d), nil
}

// ListOrders returns the orders the caller may see: every tenant order
// for order managers, assigned orders for couriers, own orders otherwise.
func (s *Service) ListOrders(ctx context.Context, tenantID uuid.UUID, p *domain.Principal, req ListRequest) ([]domain.Order, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	f := OrderFilter{Status: domain.OrderStatus(req.Status), Limit: req.Limit}
	if f.Limit == 0 {
		f.Limit = 100
	}
	if !security.HasCapability(p, security.OrdersWrite) {
		agent, err := s.store.GetAgentByPrincipal(ctx, tenantID, p.ID)
		switch {
		case err == nil:
			f.DeliveryAgentID = &agent.ID
		case errors.Is(err, domain.ErrNotFound):
			f.CustomerID = &p.ID
		default:
			return nil, fmt.Errorf("loading agent: %w", err)
		}
	}
	orders, err := s.store.ListOrders(ctx, tenantID, f)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return orders, nil
}

// GetOrder returns one order visible to the caller. Orders the caller may
// not see are reported as missing.
func (s *Service) GetOrder(ctx context.Context, tenantID uuid.UUID, p *domain.Principal, id uuid.UUID) (*domain.Order, error) {
	o, err := s.store.GetOrder(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, apierr.NotFound("order")
		}
		return nil, fmt.Errorf("loading order: %w", err)
	}
	ok, err := s.canView(ctx, tenantID, p, o)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apierr.NotFound("order")
	}
	return o, nil
}

func (s *Service) canView(ctx context.Context, tenantID uuid.UUID, p *domain.Principal, o *domain.Order) (bool, error) {
	if security.HasCapability(p, security.OrdersWrite) || o.CustomerID == p.ID {
		return true, nil
	}
	if o.DeliveryAgentID == nil {
		return false, nil
	}
	agent, err := s.store.GetAgentByPrincipal(ctx, tenantID, p.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("loading agent: %w", err)
	}
	return agent.ID == *o.DeliveryAgentID, nil
}

// ClearItems removes every line of an order and zeroes its totals in one
// transaction. On failure the order keeps its items and totals.
func (s *Service) ClearItems(ctx context.Context, tenantID, id uuid.UUID) (*domain.Order, error) {
	o, err := s.store.ClearItems(ctx, tenantID, id, s.recompute)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, apierr.NotFound("order")
		}
		return nil, fmt.Errorf("clearing order items: %w", err)
	}
	s.logger.InfoContext(ctx, "order items cleared", slog.String("order_id", id.String()))
	return o, nil
}

// Recalculate recomputes an order's totals from its current items.
func (s *Service) Recalculate(ctx context.Context, tenantID, id uuid.UUID) (*domain.Order, error) {
	o, err := s.store.Recalculate(ctx, tenantID, id, s.recompute)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, apierr.NotFound("order")
		}
		return nil, fmt.Errorf("recalculating order: %w", err)
	}
	return o, nil
}

// recompute derives subtotal and total from the items. An order without
// items owes nothing: discount and delivery fee are dropped with them.
func (s *Service) recompute(o *domain.Order) {
	var subtotal float64
	for _, it := range o.Items {
		subtotal += it.UnitPrice * float64(it.Quantity)
	}
	o.Subtotal = round2(subtotal)
	if len(o.Items) == 0 {
		o.Discount = 0
		o.DeliveryFee = 0
	}
	if o.Discount > o.Subtotal {
		o.Discount = o.Subtotal
	}
	o.TotalAmount = round2(o.Subtotal - o.Discount + o.DeliveryFee)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
