// Package tenancy resolves the tenant a request is scoped to.
//
// A tenant comes from one of two places: the tenant selection an admin
// session persists client-side (sent as the X-Tenant-ID header), or a
// tenantId field in the request payload for server-to-server calls that
// have no session.
package tenancy

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/jkaninda/soko/internal/apierr"
	"github.com/jkaninda/soko/internal/domain"
)

// HeaderTenant carries the session's tenant selection.
const HeaderTenant = "X-Tenant-ID"

// ErrTenantNotFound is returned by a Store for unknown tenant IDs.
var ErrTenantNotFound = domain.ErrNotFound

// Requirement states whether an endpoint needs a tenant.
type Requirement int

const (
	// None ignores any supplied tenant (tenant-agnostic endpoints).
	None Requirement = iota
	// Optional scopes when a tenant is supplied.
	Optional
	// Required fails with MissingTenant when no tenant is supplied.
	Required
)

// Source holds the raw tenant identifiers found on a request.
type Source struct {
	Session string
	Payload string
}

// Store looks up tenants.
type Store interface {
	GetTenant(ctx context.Context, id uuid.UUID) (*domain.Tenant, error)
	ListActive(ctx context.Context) ([]domain.Tenant, error)
}

// Resolver produces the tenant identifier for a request.
type Resolver struct {
	store Store
}

// NewResolver creates a Resolver. A nil store skips the existence check.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the tenant for the request, or nil when the request is
// tenant-agnostic. Conflicting session and payload values are rejected
// rather than one silently winning.
func (r *Resolver) Resolve(ctx context.Context, src Source, req Requirement) (*uuid.UUID, error) {
	if req == None {
		return nil, nil
	}

	session, err := parse(src.Session, HeaderTenant)
	if err != nil {
		return nil, err
	}
	payload, err := parse(src.Payload, "tenantId")
	if err != nil {
		return nil, err
	}

	var id *uuid.UUID
	switch {
	case session != nil && payload != nil:
		if *session != *payload {
			return nil, apierr.InvalidInput("tenantId does not match the selected tenant", "tenantId")
		}
		id = payload
	case payload != nil:
		id = payload
	case session != nil:
		id = session
	}

	if id == nil {
		if req == Required {
			return nil, apierr.MissingTenant()
		}
		return nil, nil
	}

	if r.store != nil {
		t, err := r.store.GetTenant(ctx, *id)
		if err != nil {
			if errors.Is(err, ErrTenantNotFound) {
				return nil, apierr.Forbidden()
			}
			return nil, err
		}
		if !t.IsActive {
			return nil, apierr.Forbidden()
		}
	}
	return id, nil
}

// Entitled reports whether p may act within tenantID. Platform admins may
// select any tenant; everyone else is bound to their home tenant.
func Entitled(p *domain.Principal, tenantID *uuid.UUID) bool {
	if tenantID == nil || p == nil {
		return tenantID == nil
	}
	if p.Role == domain.RolePlatformAdmin {
		return true
	}
	return p.TenantID != nil && *p.TenantID == *tenantID
}

func parse(raw, field string) (*uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apierr.InvalidInput("malformed tenant identifier", field)
	}
	return &id, nil
}
