package postgres

import "gorm.io/gorm"

// Repositories bundles every repository over one connection. Both the
// PostgreSQL and the SQLite store hand these out.
type Repositories struct {
	Tenants    *TenantRepository
	Principals *PrincipalRepository
	Catalog    *CatalogRepository
	Calendar   *CalendarRepository
	Agents     *AgentRepository
	Orders     *OrderRepository
	OTP        *OTPRepository
	Dashboard  *DashboardRepository
}

// NewRepositories creates the repositories for db.
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Tenants:    NewTenantRepository(db),
		Principals: NewPrincipalRepository(db),
		Catalog:    NewCatalogRepository(db),
		Calendar:   NewCalendarRepository(db),
		Agents:     NewAgentRepository(db),
		Orders:     NewOrderRepository(db),
		OTP:        NewOTPRepository(db),
		Dashboard:  NewDashboardRepository(db),
	}
}
