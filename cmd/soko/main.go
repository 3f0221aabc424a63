// Command soko runs the multi-tenant delivery admin API.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "soko",
	Short: "Tenant-scoped admin API for a multi-tenant delivery platform.",
	Long: `Soko serves the admin console of a multi-tenant food and grocery delivery
platform: catalog, holiday calendars, carts, orders, delivery assignment,
payments and courier earnings, each scoped to the caller's tenant.`,
	RunE:          runServe, // Default to serve.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default ~/.soko/config.yaml)")
	rootCmd.AddCommand(serveCmd, migrateCmd, tenantCmd, bootstrapAdminCmd, tokenCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}
