package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	goutils "github.com/jkaninda/go-utils"

	"github.com/jkaninda/soko/internal/accounts"
	"github.com/jkaninda/soko/internal/auth"
	"github.com/jkaninda/soko/internal/config"
	"github.com/jkaninda/soko/internal/observability"
	"github.com/jkaninda/soko/internal/retry"
	"github.com/jkaninda/soko/internal/security"
	"github.com/jkaninda/soko/internal/storage"
	pgstore "github.com/jkaninda/soko/internal/storage/postgres"
	sqlitestore "github.com/jkaninda/soko/internal/storage/sqlite"
)

// SharedComponents holds everything both the server and the admin
// commands need.
type SharedComponents struct {
	Config   *config.Config
	Logger   *slog.Logger
	Store    storage.Store
	Obs      *observability.Observability // nil = observability disabled.
	RBAC     *security.RBAC
	Tokens   *auth.JWTVerifier
	Retry    *retry.Wrapper
	Accounts *accounts.Service

	cleanups []func()
}

// Cleanup releases resources in reverse order of acquisition.
func (sc *SharedComponents) Cleanup() {
	for i := len(sc.cleanups) - 1; i >= 0; i-- {
		sc.cleanups[i]()
	}
}

func (sc *SharedComponents) addCleanup(fn func()) {
	sc.cleanups = append(sc.cleanups, fn)
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if goutils.Env("SOKO_LOG_LEVEL", "info") == "debug" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	return config.Load(goutils.Env("SOKO_CONFIG", path))
}

// initShared opens the store, runs migrations and builds the
// authentication stack.
func initShared(cfg *config.Config, logger *slog.Logger) (*SharedComponents, error) {
	sc := &SharedComponents{Config: cfg, Logger: logger}

	dataDir := cfg.ResolvedDataDir()
	if err := os.MkdirAll(dataDir, 0750); err != nil {
		return nil, fmt.Errorf("creating data directory %s: %w", dataDir, err)
	}
	logger.Debug("data directory initialized", slog.String("path", dataDir))

	obs, err := observability.New(cfg.Observability, version, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing observability: %w", err)
	}
	sc.Obs = obs
	sc.addCleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		obs.Shutdown(shutdownCtx)
	})

	store, err := initStore(cfg, logger)
	if err != nil {
		sc.Cleanup()
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	sc.Store = store
	sc.addCleanup(func() {
		if err := store.Close(); err != nil {
			logger.Error("closing store", slog.String("error", err.Error()))
		}
	})
	if err := store.Migrate(context.Background()); err != nil {
		sc.Cleanup()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	logger.Debug("storage initialized", slog.String("driver", store.Driver()))

	if obs != nil && obs.Health != nil {
		obs.Health.AddDependency("store", true, store.Ping)
	}

	rbac, err := security.NewRBAC(cfg.Security.RBAC(), logger)
	if err != nil {
		sc.Cleanup()
		return nil, fmt.Errorf("initializing roles: %w", err)
	}
	sc.RBAC = rbac
	sc.Tokens = auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenIssuer())
	sc.Retry = retry.New(retry.Config{
		MaxRetries:  cfg.Retry.MaxRetries,
		BackoffUnit: cfg.Retry.BackoffUnit(),
	}, logger)
	sc.Accounts = accounts.NewService(store.Principals(), store.Tenants(), sc.Tokens, cfg.Auth.TokenTTL(), sc.Retry, logger)

	return sc, nil
}

func initStore(cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	switch driver := cfg.StorageDriverName(); driver {
	case storage.DriverPostgres:
		return initPostgresStore(cfg, logger)
	case storage.DriverSQLite:
		return initSQLiteStore(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown storage driver: %q", driver)
	}
}

func initSQLiteStore(cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	journalMode := "wal"
	if cfg.Storage != nil && cfg.Storage.SQLite != nil && cfg.Storage.SQLite.JournalMode != "" {
		journalMode = cfg.Storage.SQLite.JournalMode
	}
	return sqlitestore.Open(sqlitestore.Config{
		Path:        cfg.DatabasePath(),
		JournalMode: journalMode,
	}, logger)
}

func initPostgresStore(cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	var pgCfg pgstore.Config
	if cfg.Storage != nil && cfg.Storage.Postgres != nil {
		pg := cfg.Storage.Postgres
		pgCfg = pgstore.Config{
			DSN:             pg.DSN,
			MaxOpenConns:    pg.MaxOpenConns,
			MaxIdleConns:    pg.MaxIdleConns,
			ConnMaxLifetime: time.Duration(pg.ConnMaxLifetimeS) * time.Second,
		}
	}
	if pgCfg.DSN == "" {
		return nil, fmt.Errorf("postgres DSN is required (set storage.postgres.dsn or SOKO_DATABASE_DSN)")
	}
	pgDB, err := pgstore.Open(pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	return pgstore.NewStore(pgDB), nil
}
