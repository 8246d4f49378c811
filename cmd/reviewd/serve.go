package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"reviewd/internal/database"
	"reviewd/internal/handlers"
	"reviewd/internal/jobs"
	"reviewd/internal/review"
	"reviewd/internal/router"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, job worker and reconcile sweep",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := setup(true)
	if err != nil {
		return err
	}
	defer a.close()
	cfg := a.cfg

	slog.Info("configuration loaded",
		"env", cfg.Env,
		"addr", cfg.Addr(),
		"review_kinds", cfg.ReviewKinds,
	)

	// Seed development data (no-op if data already exists).
	if cfg.IsDev() {
		if err := database.Seed(a.db); err != nil {
			return err
		}
	}

	scheduler := review.NewScheduler(a.db, a.registry, a.sites)
	agg := review.NewAggregator(a.db, a.registry)
	rules := a.ruleSets()

	a.reconcileOnStartup(ctx)

	// Rule set saves go through Valkey when configured so the cascade runs
	// outside the request.
	var queue handlers.RuleSetQueue
	if cfg.ValkeyEnabled() {
		client, err := jobs.ConnectValkey(ctx, cfg.ValkeyHost, cfg.ValkeyPort, cfg.ValkeyPassword)
		if err != nil {
			return err
		}
		defer client.Close()

		q := jobs.NewQueue(client, cfg.JobQueue)
		queue = q
		go jobs.NewWorker(q, rules).Run(ctx)
	} else {
		slog.Warn("valkey not configured, rule set saves run in the request")
	}

	if cfg.ReconcileSchedule != "" {
		sweeper, err := jobs.NewSweeper(cfg.ReconcileSchedule, rules)
		if err != nil {
			return err
		}
		sweeper.Start()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			sweeper.Stop(stopCtx)
		}()
		slog.Info("reconcile sweep scheduled", "schedule", cfg.ReconcileSchedule)
	}

	api := handlers.NewAPI(scheduler, agg, rules, a.registry, a.sites, review.AllVisible{}, queue)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router.New(api),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	}

	// Give active requests up to 30 seconds to complete.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	slog.Info("server stopped gracefully")
	return nil
}
