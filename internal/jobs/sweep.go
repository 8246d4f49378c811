// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Reconciler brings every site's rule set in line with the registered kinds.
type Reconciler interface {
	ReconcileAll(ctx context.Context) error
}

// Sweeper runs a Reconciler on a cron schedule.
type Sweeper struct {
	cron    *cron.Cron
	timeout time.Duration
}

// NewSweeper schedules r with a standard five-field spec or a descriptor
// such as "@daily". Overlapping runs are skipped.
func NewSweeper(spec string, r Reconciler) (*Sweeper, error) {
	s := &Sweeper{timeout: 30 * time.Minute}
	s.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		start := time.Now()
		if err := r.ReconcileAll(ctx); err != nil {
			slog.Error("reconcile sweep failed", "error", err)
			return
		}
		slog.Info("reconcile sweep done", "duration", time.Since(start).String())
	})
	if err != nil {
		return nil, fmt.Errorf("schedule reconcile sweep %q: %w", spec, err)
	}
	return s, nil
}

// Start begins running the schedule in its own goroutine.
func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for a running sweep to finish or ctx
// to expire.
func (s *Sweeper) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
