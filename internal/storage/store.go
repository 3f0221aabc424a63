// Package storage defines the unified Store interface that abstracts all persistence operations.
// Two backends are provided: SQLite (default, zero-config) and PostgreSQL (production).
package storage

import (
	"context"

	"github.com/jkaninda/soko/internal/accounts"
	"github.com/jkaninda/soko/internal/calendar"
	"github.com/jkaninda/soko/internal/catalog"
	"github.com/jkaninda/soko/internal/dashboard"
	"github.com/jkaninda/soko/internal/domain"
	"github.com/jkaninda/soko/internal/fleet"
	"github.com/jkaninda/soko/internal/ordering"
	"github.com/jkaninda/soko/internal/otp"
	"github.com/jkaninda/soko/internal/tenancy"
)

// Store is the unified persistence interface for soko.
// It provides access to all domain-specific sub-stores through accessor methods.
// Both SQLite and PostgreSQL backends implement this interface.
type Store interface {
	// Sub-store accessors. The returned stores share one connection pool.
	Tenants() tenancy.Store
	Principals() accounts.Store
	Catalog() catalog.Store
	Calendar() calendar.Store
	Fleet() fleet.Store
	Ordering() ordering.Store
	OTP() otp.Store
	Dashboard() dashboard.Store

	// EnsureTenant creates the tenant with slug unless it exists.
	EnsureTenant(ctx context.Context, slug, name string) (*domain.Tenant, error)

	// Lifecycle.
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error

	// Driver returns the storage driver name ("sqlite" or "postgres").
	Driver() string
}

// DefaultDriver is the default storage driver.
const DefaultDriver = "sqlite"

// DriverSQLite is the SQLite driver name.
const DriverSQLite = "sqlite"

// DriverPostgres is the PostgreSQL driver name.
const DriverPostgres = "postgres"
