// Package catalog manages restaurants, categories, menu items, promo codes
// and banners. All five are inclusive entities: a tenant sees its own rows
// plus global rows, and may modify only its own.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/jkaninda/soko/internal/apierr"
	"github.com/jkaninda/soko/internal/domain"
	"github.com/jkaninda/soko/internal/scope"
)

// Owned is implemented by every tenant-scoped catalog entity.
type Owned interface {
	Owner() *uuid.UUID
}

// Collection is scoped CRUD storage for one entity type.
// Reads apply the entity's scope policy; writes touch only rows owned by
// the given tenant (nil = global rows).
type Collection[T Owned] interface {
	List(ctx context.Context, tenantID *uuid.UUID) ([]T, error)
	Get(ctx context.Context, tenantID *uuid.UUID, id uuid.UUID) (*T, error)
	Create(ctx context.Context, owner *uuid.UUID, v *T) error
	Update(ctx context.Context, owner *uuid.UUID, id uuid.UUID, v *T) error
	Delete(ctx context.Context, owner *uuid.UUID, id uuid.UUID) error
}

// Store provides catalog persistence.
type Store interface {
	SearchRestaurants(ctx context.Context, tenantID uuid.UUID, q RestaurantQuery) ([]domain.Restaurant, error)
	Restaurants() Collection[domain.Restaurant]
	Categories() Collection[domain.Category]
	MenuItems() Collection[domain.MenuItem]
	PromoCodes() Collection[domain.PromoCode]
	Banners() Collection[domain.Banner]
}

// Actor is the caller of a catalog write.
type Actor struct {
	TenantID uuid.UUID
	Platform bool // may manage global rows
}

// Input is a validated create/update payload for T.
type Input[T any] interface {
	Validate() error
	Apply(v *T)
	IsGlobal() bool
}

// Resource exposes scoped CRUD for one catalog entity.
type Resource[T Owned, I Input[T]] struct {
	name   string
	entity scope.Entity
	coll   Collection[T]
	// check runs referential validation before writes.
	check func(ctx context.Context, tenantID uuid.UUID, in I) error
}

// List returns every row visible to tenantID.
func (r *Resource[T, I]) List(ctx context.Context, tenantID uuid.UUID) ([]T, error) {
	items, err := r.coll.List(ctx, &tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", r.entity.Table, err)
	}
	return items, nil
}

// Get returns one visible row.
func (r *Resource[T, I]) Get(ctx context.Context, tenantID, id uuid.UUID) (*T, error) {
	v, err := r.coll.Get(ctx, &tenantID, id)
	if err != nil {
		return nil, r.translate(err)
	}
	return v, nil
}

// Create validates in and stores a new row owned by the actor's tenant, or
// a global row when requested by a platform operator.
func (r *Resource[T, I]) Create(ctx context.Context, actor Actor, in I) (*T, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if in.IsGlobal() && !actor.Platform {
		return nil, apierr.Forbidden()
	}
	owner, err := scope.Owner(r.entity, &actor.TenantID, in.IsGlobal())
	if err != nil {
		return nil, apierr.InvalidInput(err.Error(), "global")
	}
	if r.check != nil {
		if err := r.check(ctx, actor.TenantID, in); err != nil {
			return nil, err
		}
	}

	var v T
	in.Apply(&v)
	if err := r.coll.Create(ctx, owner, &v); err != nil {
		return nil, r.translate(err)
	}
	return &v, nil
}

// Update replaces the mutable fields of a row the actor owns.
func (r *Resource[T, I]) Update(ctx context.Context, actor Actor, id uuid.UUID, in I) (*T, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	existing, err := r.Get(ctx, actor.TenantID, id)
	if err != nil {
		return nil, err
	}
	owner := (*existing).Owner()
	if !mayModify(actor, owner) {
		return nil, apierr.Forbidden()
	}
	if r.check != nil {
		if err := r.check(ctx, actor.TenantID, in); err != nil {
			return nil, err
		}
	}

	in.Apply(existing)
	if err := r.coll.Update(ctx, owner, id, existing); err != nil {
		return nil, r.translate(err)
	}
	return existing, nil
}

// Delete removes a row the actor owns.
func (r *Resource[T, I]) Delete(ctx context.Context, actor Actor, id uuid.UUID) error {
	existing, err := r.Get(ctx, actor.TenantID, id)
	if err != nil {
		return err
	}
	owner := (*existing).Owner()
	if !mayModify(actor, owner) {
		return apierr.Forbidden()
	}
	if err := r.coll.Delete(ctx, owner, id); err != nil {
		return r.translate(err)
	}
	return nil
}

func (r *Resource[T, I]) translate(err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return apierr.NotFound(r.name)
	case errors.Is(err, domain.ErrDuplicate):
		return apierr.InvalidInput(r.name+" already exists")
	default:
		return fmt.Errorf("%s: %w", r.entity.Table, err)
	}
}

// mayModify: global rows belong to platform operators, tenant rows to
// their tenant.
func mayModify(actor Actor, owner *uuid.UUID) bool {
	if owner == nil {
		return actor.Platform
	}
	return *owner == actor.TenantID
}

// Service is the catalog facade.
type Service struct {
	store  Store
	logger *slog.Logger

	Restaurants *Resource[domain.Restaurant, RestaurantInput]
	Categories  *Resource[domain.Category, CategoryInput]
	MenuItems   *Resource[domain.MenuItem, MenuItemInput]
	PromoCodes  *Resource[domain.PromoCode, PromoCodeInput]
	Banners     *Resource[domain.Banner, BannerInput]
}

// NewService creates a catalog service.
func NewService(store Store, logger *slog.Logger) *Service {
	s := &Service{store: store, logger: logger}
	s.Restaurants = &Resource[domain.Restaurant, RestaurantInput]{name: "restaurant", entity: scope.Restaurants, coll: store.Restaurants()}
	s.Categories = &Resource[domain.Category, CategoryInput]{name: "category", entity: scope.Categories, coll: store.Categories()}
	s.MenuItems = &Resource[domain.MenuItem, MenuItemInput]{
		name: "menu item", entity: scope.MenuItems, coll: store.MenuItems(),
		check: s.checkMenuItem,
	}
	s.PromoCodes = &Resource[domain.PromoCode, PromoCodeInput]{name: "promo code", entity: scope.PromoCodes, coll: store.PromoCodes()}
	s.Banners = &Resource[domain.Banner, BannerInput]{name: "banner", entity: scope.Banners, coll: store.Banners()}
	return s
}

// checkMenuItem requires the referenced restaurant and category to be
// visible to the tenant.
func (s *Service) checkMenuItem(ctx context.Context, tenantID uuid.UUID, in MenuItemInput) error {
	rid, _ := uuid.Parse(in.RestaurantID)
	if _, err := s.store.Restaurants().Get(ctx, &tenantID, rid); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return apierr.InvalidInput("unknown restaurant", "restaurantId")
		}
		return fmt.Errorf("checking restaurant: %w", err)
	}
	if in.CategoryID != "" {
		cid, _ := uuid.Parse(in.CategoryID)
		if _, err := s.store.Categories().Get(ctx, &tenantID, cid); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return apierr.InvalidInput("unknown category", "categoryId")
			}
			return fmt.Errorf("checking category: %w", err)
		}
	}
	return nil
}
