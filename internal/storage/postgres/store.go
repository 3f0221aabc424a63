package postgres

import (
	"context"
	"sync"

	"github.com/jkaninda/soko/internal/accounts"
	"github.com/jkaninda/soko/internal/calendar"
	"github.com/jkaninda/soko/internal/catalog"
	"github.com/jkaninda/soko/internal/dashboard"
	"github.com/jkaninda/soko/internal/domain"
	"github.com/jkaninda/soko/internal/fleet"
	"github.com/jkaninda/soko/internal/ordering"
	"github.com/jkaninda/soko/internal/otp"
	"github.com/jkaninda/soko/internal/storage"
	"github.com/jkaninda/soko/internal/tenancy"
)

// Store implements storage.Store backed by PostgreSQL.
// It wraps the existing DB and lazily creates sub-store repositories.
type Store struct {
	pgDB *DB

	mu    sync.Mutex
	repos *Repositories
}

// NewStore wraps an existing DB as a unified Store.
func NewStore(pgDB *DB) *Store {
	return &Store{pgDB: pgDB}
}

func (s *Store) Migrate(_ context.Context) error {
	// PostgreSQL migration is done in Open() via autoMigrate.
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pgDB.Ping(ctx)
}

func (s *Store) Close() error {
	return s.pgDB.Close()
}

func (s *Store) Driver() string {
	return storage.DriverPostgres
}

// GormDB returns the underlying GORM DB for direct access when needed.
func (s *Store) GormDB() *DB {
	return s.pgDB
}

func (s *Store) EnsureTenant(ctx context.Context, slug, name string) (*domain.Tenant, error) {
	return s.sub().Tenants.EnsureTenant(ctx, slug, name)
}

func (s *Store) sub() *Repositories {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.repos == nil {
		s.repos = NewRepositories(s.pgDB.GormDB())
	}
	return s.repos
}

// --- Sub-store accessors ---

func (s *Store) Tenants() tenancy.Store     { return s.sub().Tenants }
func (s *Store) Principals() accounts.Store { return s.sub().Principals }
func (s *Store) Catalog() catalog.Store     { return s.sub().Catalog }
func (s *Store) Calendar() calendar.Store   { return s.sub().Calendar }
func (s *Store) Fleet() fleet.Store         { return s.sub().Agents }
func (s *Store) Ordering() ordering.Store   { return s.sub().Orders }
func (s *Store) OTP() otp.Store             { return s.sub().OTP }
func (s *Store) Dashboard() dashboard.Store { return s.sub().Dashboard }
