package security

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/jkaninda/soko/internal/domain"
)

// Role defines the capabilities granted to one principal role.
type Role struct {
	Name         string   `yaml:"name" json:"name"`
	Capabilities []string `yaml:"capabilities" json:"capabilities"`
}

// RBACConfig is the full role → capability configuration.
type RBACConfig struct {
	Roles map[string]Role
}

// DefaultRoles returns the built-in role definitions.
func DefaultRoles() map[string]Role {
	names := func(caps ...domain.Capability) []string {
		out := make([]string, len(caps))
		for i, c := range caps {
			out[i] = string(c)
		}
		return out
	}
	return map[string]Role{
		string(domain.RolePlatformAdmin): {
			Name:         string(domain.RolePlatformAdmin),
			Capabilities: names(All...),
		},
		string(domain.RoleTenantAdmin): {
			Name: string(domain.RoleTenantAdmin),
			Capabilities: names(
				TenantsRead, CatalogRead, CatalogWrite, CalendarRead, CalendarWrite,
				OrdersRead, OrdersWrite, OrdersAssign, DeliveryUpdate, PaymentsCreate,
				FleetRead, FleetWrite, DashboardRead,
			),
		},
		string(domain.RoleDeliveryAgent): {
			Name:         string(domain.RoleDeliveryAgent),
			Capabilities: names(OrdersRead, DeliveryUpdate),
		},
		string(domain.RoleCustomer): {
			Name:         string(domain.RoleCustomer),
			Capabilities: names(CatalogRead, CalendarRead, CartManage, OrdersRead, PaymentsCreate),
		},
	}
}

// RBAC resolves roles to capability sets with default-deny semantics.
// Safe for concurrent use.
type RBAC struct {
	mu     sync.RWMutex
	sets   map[domain.Role]domain.CapabilitySet
	logger *slog.Logger
}

// NewRBAC validates cfg and builds the resolver. Unknown capability names
// are rejected so that a typo in configuration cannot silently deny or grant.
func NewRBAC(cfg RBACConfig, logger *slog.Logger) (*RBAC, error) {
	r := &RBAC{logger: logger}
	if err := r.Load(cfg); err != nil {
		return nil, err
	}
	return r, nil
}

// Load replaces the role definitions.
func (r *RBAC) Load(cfg RBACConfig) error {
	sets := make(map[domain.Role]domain.CapabilitySet, len(cfg.Roles))
	for name, role := range cfg.Roles {
		caps := make([]domain.Capability, 0, len(role.Capabilities))
		for _, c := range role.Capabilities {
			if !Known(c) {
				return fmt.Errorf("role %q: unknown capability %q", name, c)
			}
			caps = append(caps, domain.Capability(c))
		}
		sets[domain.Role(name)] = domain.NewCapabilitySet(caps...)
	}

	r.mu.Lock()
	r.sets = sets
	r.mu.Unlock()
	return nil
}

// Resolve returns the capability set of role. Roles without a definition
// resolve to an empty set.
func (r *RBAC) Resolve(role domain.Role) domain.CapabilitySet {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.sets[role]
	if !ok {
		r.logger.Warn("no capabilities defined for role", slog.String("role", string(role)))
		return domain.CapabilitySet{}
	}
	return set
}

// Attach resolves p's capabilities in place and returns p.
func (r *RBAC) Attach(p *domain.Principal) *domain.Principal {
	if p != nil {
		p.Capabilities = r.Resolve(p.Role)
	}
	return p
}
