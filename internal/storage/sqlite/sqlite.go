// Package sqlite implements the unified Store interface using SQLite via GORM.
// Uses modernc.org/sqlite (pure Go, no CGO) through the glebarez/sqlite GORM driver.
//
// Key differences from the PostgreSQL backend:
//   - WAL mode enabled by default for concurrent reads
//   - Guarded conditional UPDATEs replace row locks
//   - UUID columns are stored as TEXT
//   - No connection pooling (single file, WAL handles concurrency)
package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jkaninda/soko/internal/accounts"
	"github.com/jkaninda/soko/internal/calendar"
	"github.com/jkaninda/soko/internal/catalog"
	"github.com/jkaninda/soko/internal/dashboard"
	"github.com/jkaninda/soko/internal/domain"
	"github.com/jkaninda/soko/internal/fleet"
	"github.com/jkaninda/soko/internal/ordering"
	"github.com/jkaninda/soko/internal/otp"
	"github.com/jkaninda/soko/internal/storage"
	pgstore "github.com/jkaninda/soko/internal/storage/postgres"
	"github.com/jkaninda/soko/internal/tenancy"
)

// Config holds SQLite-specific configuration.
type Config struct {
	Path        string // Database file path.
	JournalMode string // WAL mode by default.
}

// Store implements storage.Store backed by SQLite.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
	path   string

	// Repositories are created lazily on first access.
	mu    sync.Mutex
	repos *pgstore.Repositories
}

// Open creates a new SQLite-backed Store.
func Open(cfg Config, slogger *slog.Logger) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	// Ensure parent directory exists.
	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
	}

	journalMode := cfg.JournalMode
	if journalMode == "" {
		journalMode = "wal"
	}

	// Build DSN with pragmas.
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(%s)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)", cfg.Path, journalMode)

	gormLogger := logger.New(
		slogAdapter{slogger},
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormLogger,
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	s := &Store{
		db:     db,
		logger: slogger,
		path:   cfg.Path,
	}

	slogger.Info("sqlite store opened", slog.String("path", cfg.Path), slog.String("journal_mode", journalMode))
	return s, nil
}

// Migrate runs GORM AutoMigrate to create/update tables.
// Uses the same models as the PostgreSQL backend.
func (s *Store) Migrate(_ context.Context) error {
	return pgstore.AutoMigrate(s.db)
}

// Ping checks the database file is reachable.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Driver returns "sqlite".
func (s *Store) Driver() string {
	return storage.DriverSQLite
}

// GormDB returns the underlying GORM DB for sub-store construction.
func (s *Store) GormDB() *gorm.DB {
	return s.db
}

// EnsureTenant creates or retrieves a tenant by slug.
func (s *Store) EnsureTenant(ctx context.Context, slug, name string) (*domain.Tenant, error) {
	return s.sub().Tenants.EnsureTenant(ctx, slug, name)
}

// --- Sub-store accessors ---
// All sub-stores reuse the PostgreSQL repository implementations since
// they operate on the same GORM models. GORM's SQLite dialect handles the
// SQL differences transparently.

func (s *Store) sub() *pgstore.Repositories {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.repos == nil {
		s.repos = pgstore.NewRepositories(s.db)
	}
	return s.repos
}

func (s *Store) Tenants() tenancy.Store     { return s.sub().Tenants }
func (s *Store) Principals() accounts.Store { return s.sub().Principals }
func (s *Store) Catalog() catalog.Store     { return s.sub().Catalog }
func (s *Store) Calendar() calendar.Store   { return s.sub().Calendar }
func (s *Store) Fleet() fleet.Store         { return s.sub().Agents }
func (s *Store) Ordering() ordering.Store   { return s.sub().Orders }
func (s *Store) OTP() otp.Store             { return s.sub().OTP }
func (s *Store) Dashboard() dashboard.Store { return s.sub().Dashboard }

// slogAdapter wraps *slog.Logger for GORM's logger.Writer interface.
type slogAdapter struct {
	logger *slog.Logger
}

func (s slogAdapter) Printf(format string, args ...any) {
	s.logger.Info(fmt.Sprintf(format, args...))
}
