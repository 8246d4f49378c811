// Package main is the entry point for reviewd, the content review
// scheduling service. The serve command runs the HTTP API with its
// background worker; the other commands are operator tools.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"reviewd/internal/config"
	"reviewd/internal/database"
	"reviewd/internal/review"
	"reviewd/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "reviewd",
	Short: "Periodic content review scheduling",
	Long: `reviewd tracks when reviewable pages were last reviewed and when they
are next due, and serves the review dashboards and reports.

Configuration is read from the environment (APP_*, POSTGRES_*, VALKEY_*,
REVIEW_KINDS, RECONCILE_SCHEDULE, SITE_CACHE_TTL, LOG_*).`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, reconcileCmd, reportCmd, siteCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds what every command needs: configuration, a migrated database
// and the kind registry.
type app struct {
	cfg      *config.Config
	db       *sql.DB
	registry *review.Registry
	sites    *store.SiteStore
}

// setup loads configuration, installs the process logger and connects to
// PostgreSQL. Pending migrations are applied when migrate is set.
func setup(migrate bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	slog.SetDefault(cfg.NewLogger(os.Stderr))

	registry, err := review.RegistryFromNames(cfg.ReviewKinds)
	if err != nil {
		return nil, fmt.Errorf("review kinds: %w", err)
	}

	db, err := database.Connect(cfg.DSN())
	if err != nil {
		return nil, err
	}
	if migrate {
		if err := database.Migrate(db); err != nil {
			db.Close()
			return nil, err
		}
	}

	return &app{
		cfg:      cfg,
		db:       db,
		registry: registry,
		sites:    store.NewSiteStore(db, cfg.SiteCacheTTL),
	}, nil
}

func (a *app) close() {
	a.db.Close()
}

func (a *app) ruleSets() *review.RuleSetService {
	return review.NewRuleSetService(a.db, a.registry, a.sites)
}

// reconcileOnStartup brings every site's rules in line with the registered
// kinds. Failures are logged; the next sweep retries them.
func (a *app) reconcileOnStartup(ctx context.Context) {
	if err := a.ruleSets().ReconcileAll(ctx); err != nil {
		slog.Warn("startup reconcile incomplete", "error", err)
	}
}
