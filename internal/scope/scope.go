// Package scope applies the tenant predicate to data queries.
//
// Every tenant-scoped entity is registered with exactly one named policy:
//
//   - Inclusive: rows of the tenant OR global rows (tenant_id IS NULL).
//     Global rows are shared defaults (e.g. holiday calendars) that apply to
//     every tenant unless overridden.
//   - Exclusive: rows of the tenant only. Used where a global row has no
//     meaning (slot overrides, orders). A nil tenant is rejected.
//
// Repositories never write tenant predicates by hand; they call Filter.
package scope

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrTenantRequired is returned when an exclusive entity is queried without a tenant.
var ErrTenantRequired = errors.New("scope: exclusive entity requires a tenant")

// Policy selects how a tenant predicate treats global rows.
type Policy int

const (
	Inclusive Policy = iota + 1
	Exclusive
)

func (p Policy) String() string {
	switch p {
	case Inclusive:
		return "inclusive"
	case Exclusive:
		return "exclusive"
	default:
		return "unknown"
	}
}

// Entity is a tenant-scoped table and its policy.
type Entity struct {
	Table  string
	Policy Policy
}

// Registered entities.
var (
	Restaurants      = Entity{Table: "restaurants", Policy: Inclusive}
	Categories       = Entity{Table: "categories", Policy: Inclusive}
	MenuItems        = Entity{Table: "menu_items", Policy: Inclusive}
	PromoCodes       = Entity{Table: "promo_codes", Policy: Inclusive}
	Banners          = Entity{Table: "banners", Policy: Inclusive}
	HolidayCalendars = Entity{Table: "holiday_calendars", Policy: Inclusive}
	DeliveryAgents   = Entity{Table: "delivery_agents", Policy: Inclusive}
	SlotOverrides    = Entity{Table: "slot_overrides", Policy: Exclusive}
	Orders           = Entity{Table: "orders", Policy: Exclusive}
	CartItems        = Entity{Table: "cart_items", Policy: Exclusive}
	Payments         = Entity{Table: "payments", Policy: Exclusive}
)

// Filter returns a GORM scope constraining e to what tenantID may see.
// A nil tenantID under the inclusive policy matches only global rows.
func Filter(e Entity, tenantID *uuid.UUID) (func(*gorm.DB) *gorm.DB, error) {
	col := e.Table + ".tenant_id"
	switch e.Policy {
	case Inclusive:
		if tenantID == nil {
			return func(db *gorm.DB) *gorm.DB {
				return db.Where(col + " IS NULL")
			}, nil
		}
		id := *tenantID
		return func(db *gorm.DB) *gorm.DB {
			return db.Where(fmt.Sprintf("(%s = ? OR %s IS NULL)", col, col), id)
		}, nil
	case Exclusive:
		if tenantID == nil {
			return nil, fmt.Errorf("%w: %s", ErrTenantRequired, e.Table)
		}
		id := *tenantID
		return func(db *gorm.DB) *gorm.DB {
			return db.Where(col+" = ?", id)
		}, nil
	default:
		return nil, fmt.Errorf("scope: entity %s has no policy", e.Table)
	}
}

// Apply is Filter followed by db.Scopes.
func Apply(db *gorm.DB, e Entity, tenantID *uuid.UUID) (*gorm.DB, error) {
	f, err := Filter(e, tenantID)
	if err != nil {
		return nil, err
	}
	return db.Scopes(f), nil
}

// Visible is the in-memory form of Filter: it reports whether a row owned by
// rowTenant is visible to tenantID under e's policy.
func Visible(e Entity, tenantID, rowTenant *uuid.UUID) (bool, error) {
	switch e.Policy {
	case Inclusive:
		if rowTenant == nil {
			return true, nil
		}
		return tenantID != nil && *rowTenant == *tenantID, nil
	case Exclusive:
		if tenantID == nil {
			return false, fmt.Errorf("%w: %s", ErrTenantRequired, e.Table)
		}
		return rowTenant != nil && *rowTenant == *tenantID, nil
	default:
		return false, fmt.Errorf("scope: entity %s has no policy", e.Table)
	}
}

// Owner returns the tenant a new row of e is written under. Writes are
// always attributed to the caller's tenant; global rows are created only
// when global is set and the policy allows them.
func Owner(e Entity, tenantID *uuid.UUID, global bool) (*uuid.UUID, error) {
	if global {
		if e.Policy == Exclusive {
			return nil, fmt.Errorf("scope: %s rows cannot be global", e.Table)
		}
		return nil, nil
	}
	if tenantID == nil {
		return nil, fmt.Errorf("%w: %s", ErrTenantRequired, e.Table)
	}
	id := *tenantID
	return &id, nil
}
