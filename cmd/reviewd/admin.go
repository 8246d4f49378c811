package main

import (
	"log/slog"
	"time"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := setup(true)
		if err != nil {
			return err
		}
		defer a.close()
		slog.Info("migrations applied")
		return nil
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile every site's frequency rules and recompute review dates",
	Long: `Creates missing frequency rules for the registered kinds, deletes rules
of kinds no longer registered, and recomputes stored next review dates.
Running it twice in a row changes nothing the second time.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := setup(true)
		if err != nil {
			return err
		}
		defer a.close()

		start := time.Now()
		if err := a.ruleSets().ReconcileAll(cmd.Context()); err != nil {
			return err
		}
		slog.Info("reconcile done", "duration", time.Since(start).String())
		return nil
	},
}
