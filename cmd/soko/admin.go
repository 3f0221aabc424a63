package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	goutils "github.com/jkaninda/go-utils"
	"github.com/spf13/cobra"

	"github.com/jkaninda/soko/internal/accounts"
	"github.com/jkaninda/soko/internal/domain"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema and exit",
	RunE: func(_ *cobra.Command, _ []string) error {
		return withShared(func(_ context.Context, sc *SharedComponents) error {
			sc.Logger.Info("migrations applied", slog.String("driver", sc.Store.Driver()))
			return nil
		})
	},
}

var (
	tenantSlug string
	tenantName string
)

var tenantCmd = &cobra.Command{
	Use:   "tenant",
	Short: "Create a tenant unless one with the slug exists",
	RunE: func(_ *cobra.Command, _ []string) error {
		if tenantSlug == "" {
			return errors.New("--slug is required")
		}
		name := tenantName
		if name == "" {
			name = tenantSlug
		}
		return withShared(func(ctx context.Context, sc *SharedComponents) error {
			t, err := sc.Store.EnsureTenant(ctx, tenantSlug, name)
			if err != nil {
				return err
			}
			return printJSON(t)
		})
	},
}

var (
	adminUsername string
	adminRole     string
	adminTenant   string
)

var bootstrapAdminCmd = &cobra.Command{
	Use:   "bootstrap-admin",
	Short: "Create an admin principal (password from SOKO_ADMIN_PASSWORD)",
	RunE: func(_ *cobra.Command, _ []string) error {
		password := goutils.Env("SOKO_ADMIN_PASSWORD", "")
		if password == "" {
			return errors.New("SOKO_ADMIN_PASSWORD is required")
		}
		return withShared(func(ctx context.Context, sc *SharedComponents) error {
			p, err := sc.Accounts.Create(ctx, accounts.CreateRequest{
				Username: adminUsername,
				Password: password,
				Role:     adminRole,
				TenantID: adminTenant,
			})
			if err != nil {
				return err
			}
			return printJSON(p)
		})
	},
}

var tokenUsername string

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for an existing principal",
	RunE: func(_ *cobra.Command, _ []string) error {
		if tokenUsername == "" {
			return errors.New("--username is required")
		}
		return withShared(func(ctx context.Context, sc *SharedComponents) error {
			p, err := sc.Store.Principals().GetByUsername(ctx, tokenUsername)
			if errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("no principal named %q", tokenUsername)
			}
			if err != nil {
				return err
			}
			if !p.IsActive {
				return fmt.Errorf("principal %q is disabled", tokenUsername)
			}
			s, err := sc.Accounts.Issue(p)
			if err != nil {
				return err
			}
			return printJSON(s)
		})
	},
}

func init() {
	tenantCmd.Flags().StringVar(&tenantSlug, "slug", "", "tenant slug")
	tenantCmd.Flags().StringVar(&tenantName, "name", "", "display name (default: slug)")

	bootstrapAdminCmd.Flags().StringVar(&adminUsername, "username", "admin", "username")
	bootstrapAdminCmd.Flags().StringVar(&adminRole, "role", string(domain.RolePlatformAdmin), "platform_admin or tenant_admin")
	bootstrapAdminCmd.Flags().StringVar(&adminTenant, "tenant", "", "home tenant ID (tenant_admin only)")

	tokenCmd.Flags().StringVar(&tokenUsername, "username", "", "principal username")
}

// withShared runs fn with migrated storage and releases it afterwards.
func withShared(fn func(ctx context.Context, sc *SharedComponents) error) error {
	logger := newLogger()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sc, err := initShared(cfg, logger)
	if err != nil {
		return err
	}
	defer sc.Cleanup()
	return fn(context.Background(), sc)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
