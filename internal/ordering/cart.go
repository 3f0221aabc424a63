package ordering

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jkaninda/soko/internal/apierr"
	"github.com/jkaninda/soko/internal/domain"
)

// MaxQuantity bounds a single cart line.
const MaxQuantity = 99

// CartItemRequest sets the quantity of one menu item in the caller's cart.
type CartItemRequest struct {
	MenuItemID string `json:"menuItemId"`
	Quantity   int    `json:"quantity"`
}

func (r CartItemRequest) Validate() error {
	var c apierr.Check
	_, err := uuid.Parse(r.MenuItemID)
	c.Require(err == nil, "menuItemId")
	c.Require(r.Quantity >= 1 && r.Quantity <= MaxQuantity, "quantity")
	return c.Err("missing or invalid cart fields")
}

// Cart returns the caller's cart.
func (s *Service) Cart(ctx context.Context, tenantID, principalID uuid.UUID) ([]domain.CartItem, error) {
	items, err := s.store.ListCart(ctx, tenantID, principalID)
	if err != nil {
		return nil, fmt.Errorf("listing cart: %w", err)
	}
	return items, nil
}

// PutCartItem creates the cart line or replaces its quantity. A line is
// identified by (tenant, principal, menu item), so repeated calls never
// duplicate it.
func (s *Service) PutCartItem(ctx context.Context, tenantID, principalID uuid.UUID, req CartItemRequest) (*domain.CartItem, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	menuItemID, _ := uuid.Parse(req.MenuItemID)
	mi, err := s.store.GetMenuItem(ctx, tenantID, menuItemID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, apierr.InvalidInput("unknown menu item", "menuItemId")
		}
		return nil, fmt.Errorf("loading menu item: %w", err)
	}
	if !mi.IsAvailable {
		return nil, apierr.InvalidInput("menu item is not available", "menuItemId")
	}

	item, err := s.store.UpsertCartItem(ctx, &domain.CartItem{
		TenantID:    tenantID,
		PrincipalID: principalID,
		MenuItemID:  menuItemID,
		Quantity:    req.Quantity,
	})
	if err != nil {
		return nil, fmt.Errorf("saving cart item: %w", err)
	}
	return item, nil
}

// RemoveCartItem deletes a cart line owned by the caller. Lines that do
// not exist and lines of other principals are reported the same way.
func (s *Service) RemoveCartItem(ctx context.Context, tenantID, principalID, id uuid.UUID) error {
	item, err := s.store.GetCartItem(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return apierr.Forbidden()
		}
		return fmt.Errorf("loading cart item: %w", err)
	}
	if item.PrincipalID != principalID {
		return apierr.Forbidden()
	}
	if err := s.store.DeleteCartItem(ctx, tenantID, id); err != nil {
		return fmt.Errorf("deleting cart item: %w", err)
	}
	return nil
}
