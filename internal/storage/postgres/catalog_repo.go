package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jkaninda/soko/internal/catalog"
	"github.com/jkaninda/soko/internal/domain"
	"github.com/jkaninda/soko/internal/scope"
)

// collection implements catalog.Collection for one model type.
type collection[T catalog.Owned, M any] struct {
	db       *gorm.DB
	entity   scope.Entity
	order    string
	toDomain func(*M) T
	toModel  func(*T, *uuid.UUID) *M
}

func (c *collection[T, M]) scoped(ctx context.Context, tenantID *uuid.UUID) (*gorm.DB, error) {
	return scope.Apply(c.db.WithContext(ctx), c.entity, tenantID)
}

// owned constrains a write to rows of owner; nil owner means global rows.
func (c *collection[T, M]) owned(ctx context.Context, owner *uuid.UUID) *gorm.DB {
	q := c.db.WithContext(ctx)
	if owner == nil {
		return q.Where(c.entity.Table + ".tenant_id IS NULL")
	}
	return q.Where(c.entity.Table+".tenant_id = ?", *owner)
}

func (c *collection[T, M]) List(ctx context.Context, tenantID *uuid.UUID) ([]T, error) {
	q, err := c.scoped(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	var rows []M
	if err := q.Order(c.order).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing %s: %w", c.entity.Table, err)
	}
	out := make([]T, len(rows))
	for i := range rows {
		out[i] = c.toDomain(&rows[i])
	}
	return out, nil
}

func (c *collection[T, M]) Get(ctx context.Context, tenantID *uuid.UUID, id uuid.UUID) (*T, error) {
	q, err := c.scoped(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	var m M
	if err := q.Where(c.entity.Table+".id = ?", id).First(&m).Error; err != nil {
		return nil, translate(err)
	}
	v := c.toDomain(&m)
	return &v, nil
}

func (c *collection[T, M]) Create(ctx context.Context, owner *uuid.UUID, v *T) error {
	m := c.toModel(v, owner)
	if err := c.db.WithContext(ctx).Create(m).Error; err != nil {
		return translate(err)
	}
	*v = c.toDomain(m)
	return nil
}

func (c *collection[T, M]) Update(ctx context.Context, owner *uuid.UUID, id uuid.UUID, v *T) error {
	m := c.toModel(v, owner)
	res := c.owned(ctx, owner).
		Model(m).
		Where(c.entity.Table+".id = ?", id).
		Select("*").
		Omit("id", "tenant_id", "created_at").
		Updates(m)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	*v = c.toDomain(m)
	return nil
}

func (c *collection[T, M]) Delete(ctx context.Context, owner *uuid.UUID, id uuid.UUID) error {
	var m M
	res := c.owned(ctx, owner).Where(c.entity.Table+".id = ?", id).Delete(&m)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CatalogRepository implements catalog.Store.
type CatalogRepository struct {
	db          *gorm.DB
	restaurants *collection[domain.Restaurant, RestaurantModel]
	categories  *collection[domain.Category, CategoryModel]
	menuItems   *collection[domain.MenuItem, MenuItemModel]
	promoCodes  *collection[domain.PromoCode, PromoCodeModel]
	banners     *collection[domain.Banner, BannerModel]
}

// NewCatalogRepository creates a CatalogRepository.
func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{
		db: db,
		restaurants: &collection[domain.Restaurant, RestaurantModel]{
			db: db, entity: scope.Restaurants, order: "name ASC",
			toDomain: toRestaurantDomain, toModel: withID(toRestaurantModel, func(m *RestaurantModel) *uuid.UUID { return &m.ID }),
		},
		categories: &collection[domain.Category, CategoryModel]{
			db: db, entity: scope.Categories, order: "sort_order ASC, name ASC",
			toDomain: toCategoryDomain, toModel: withID(toCategoryModel, func(m *CategoryModel) *uuid.UUID { return &m.ID }),
		},
		menuItems: &collection[domain.MenuItem, MenuItemModel]{
			db: db, entity: scope.MenuItems, order: "name ASC",
			toDomain: toMenuItemDomain, toModel: withID(toMenuItemModel, func(m *MenuItemModel) *uuid.UUID { return &m.ID }),
		},
		promoCodes: &collection[domain.PromoCode, PromoCodeModel]{
			db: db, entity: scope.PromoCodes, order: "code ASC",
			toDomain: toPromoCodeDomain, toModel: withID(toPromoCodeModel, func(m *PromoCodeModel) *uuid.UUID { return &m.ID }),
		},
		banners: &collection[domain.Banner, BannerModel]{
			db: db, entity: scope.Banners, order: "sort_order ASC, title ASC",
			toDomain: toBannerDomain, toModel: withID(toBannerModel, func(m *BannerModel) *uuid.UUID { return &m.ID }),
		},
	}
}

// withID assigns a fresh ID to models converted from unsaved entities.
func withID[T, M any](conv func(*T, *uuid.UUID) *M, id func(*M) *uuid.UUID) func(*T, *uuid.UUID) *M {
	return func(v *T, owner *uuid.UUID) *M {
		m := conv(v, owner)
		if p := id(m); *p == uuid.Nil {
			*p = uuid.New()
		}
		return m
	}
}

func (r *CatalogRepository) Restaurants() catalog.Collection[domain.Restaurant] { return r.restaurants }
func (r *CatalogRepository) Categories() catalog.Collection[domain.Category]     { return r.categories }
func (r *CatalogRepository) MenuItems() catalog.Collection[domain.MenuItem]      { return r.menuItems }
func (r *CatalogRepository) PromoCodes() catalog.Collection[domain.PromoCode]    { return r.promoCodes }
func (r *CatalogRepository) Banners() catalog.Collection[domain.Banner]          { return r.banners }

// SearchRestaurants pages restaurants visible to tenantID by name. The
// cursor is the last name of the previous page.
func (r *CatalogRepository) SearchRestaurants(ctx context.Context, tenantID uuid.UUID, q catalog.RestaurantQuery) ([]domain.Restaurant, error) {
	db, err := scope.Apply(r.db.WithContext(ctx), scope.Restaurants, &tenantID)
	if err != nil {
		return nil, err
	}
	db = db.Where("is_active = ?", true)
	if q.FoodType != "" {
		db = db.Where("food_type = ?", string(q.FoodType))
	}
	if q.Keyword != "" {
		db = db.Where("LOWER(name) LIKE ? ESCAPE '\\'", "%"+escapeLike(strings.ToLower(q.Keyword))+"%")
	}
	order := "name ASC, id ASC"
	if q.Descending {
		order = "name DESC, id DESC"
	}
	if q.Cursor != "" {
		if q.Descending {
			db = db.Where("name < ?", q.Cursor)
		} else {
			db = db.Where("name > ?", q.Cursor)
		}
	}

	var rows []RestaurantModel
	if err := db.Order(order).Limit(q.Limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("searching restaurants: %w", err)
	}
	out := make([]domain.Restaurant, len(rows))
	for i := range rows {
		out[i] = toRestaurantDomain(&rows[i])
	}
	return out, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
