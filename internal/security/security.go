// Package security implements default-deny capability checks and the
// append-only audit log for soko.
//
// Roles map to capability sets once, when a principal is authenticated.
// Handlers only ever ask HasCapability; no code compares role names.
package security

import (
	"time"

	"github.com/jkaninda/soko/internal/domain"
)

// Capabilities known to the system.
const (
	TenantsRead      domain.Capability = "tenants.read"
	CatalogRead      domain.Capability = "catalog.read"
	CatalogWrite     domain.Capability = "catalog.write"
	CalendarRead     domain.Capability = "calendar.read"
	CalendarWrite    domain.Capability = "calendar.write"
	CartManage       domain.Capability = "cart.manage"
	OrdersRead       domain.Capability = "orders.read"
	OrdersWrite      domain.Capability = "orders.write"
	OrdersAssign     domain.Capability = "orders.assign"
	DeliveryUpdate   domain.Capability = "delivery.update"
	PaymentsCreate   domain.Capability = "payments.create"
	FleetRead        domain.Capability = "fleet.read"
	FleetWrite       domain.Capability = "fleet.write"
	PrincipalsManage domain.Capability = "principals.manage"
	DashboardRead    domain.Capability = "dashboard.read"
)

// All lists every capability, in a stable order.
var All = []domain.Capability{
	TenantsRead, CatalogRead, CatalogWrite, CalendarRead, CalendarWrite,
	CartManage, OrdersRead, OrdersWrite, OrdersAssign, DeliveryUpdate,
	PaymentsCreate, FleetRead, FleetWrite, PrincipalsManage, DashboardRead,
}

// Known reports whether name is a defined capability.
func Known(name string) bool {
	for _, c := range All {
		if string(c) == name {
			return true
		}
	}
	return false
}

// HasCapability reports whether p may perform action. A nil principal has
// no capabilities; the empty capability is granted to any authenticated
// principal.
func HasCapability(p *domain.Principal, action domain.Capability) bool {
	if p == nil {
		return false
	}
	if action == "" {
		return true
	}
	return p.Capabilities.Has(action)
}

// AuditEvent is a single entry in the append-only audit log.
type AuditEvent struct {
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlation_id"`
	PrincipalID   string    `json:"principal_id"`
	TenantID      string    `json:"tenant_id,omitempty"`
	Action        string    `json:"action"`
	Capability    string    `json:"capability,omitempty"`
	Result        string    `json:"result"` // "success", "failure", "denied"
	Error         string    `json:"error,omitempty"`
}
