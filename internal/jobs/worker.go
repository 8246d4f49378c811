// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"reviewd/internal/metrics"
	"reviewd/internal/models"
	"reviewd/internal/review"
	"reviewd/internal/store"
)

// RuleSetSaver applies a rule-set save. review.RuleSetService implements it.
type RuleSetSaver interface {
	Save(ctx context.Context, siteID uuid.UUID, changes map[string]models.ReviewFrequency) (*review.SaveResult, error)
}

// Worker drains the queue one job at a time.
type Worker struct {
	queue       *Queue
	saver       RuleSetSaver
	pollTimeout time.Duration
	maxRetries  uint64
}

// NewWorker creates a Worker for queue.
func NewWorker(queue *Queue, saver RuleSetSaver) *Worker {
	return &Worker{
		queue:       queue,
		saver:       saver,
		pollTimeout: 5 * time.Second,
		maxRetries:  3,
	}
}

// Run processes jobs until ctx is cancelled. Valkey errors are retried with
// exponential backoff.
func (w *Worker) Run(ctx context.Context) {
	slog.Info("job worker started", "queue", w.queue.key)
	defer slog.Info("job worker stopped")

	if n, err := w.queue.Recover(ctx); err != nil {
		slog.Warn("recover interrupted jobs", "error", err)
	} else if n > 0 {
		slog.Info("requeued interrupted jobs", "count", n)
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0
	bo.MaxInterval = 30 * time.Second

	for ctx.Err() == nil {
		job, err := w.queue.Dequeue(ctx, w.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			wait := bo.NextBackOff()
			slog.Warn("dequeue failed", "error", err, "retry_in", wait.String())
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			continue
		}
		bo.Reset()
		if job == nil {
			w.reportDepth(ctx)
			continue
		}
		if err := w.Process(ctx, job); err != nil && ctx.Err() != nil {
			// Left in the processing list; the next Run requeues it.
			slog.Warn("rule-set job interrupted by shutdown", "job_id", job.ID, "site_id", job.SiteID)
			return
		}
		if err := w.queue.Ack(ctx, job); err != nil {
			slog.Warn("ack failed", "job_id", job.ID, "error", err)
		}
	}
}

func (w *Worker) reportDepth(ctx context.Context) {
	n, err := w.queue.Len(ctx)
	if err != nil {
		return
	}
	metrics.QueueDepth.Set(float64(n))
}

// Process runs one job. Transient failures are retried a few times; input
// errors are not.
func (w *Worker) Process(ctx context.Context, job *RuleSetJob) error {
	start := time.Now()
	op := func() error {
		_, err := w.saver.Save(ctx, job.SiteID, job.Changes)
		if isPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), w.maxRetries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		metrics.JobsProcessed.WithLabelValues("failed").Inc()
		slog.Error("rule-set job failed", "job_id", job.ID, "site_id", job.SiteID, "error", err)
		return err
	}

	metrics.JobsProcessed.WithLabelValues("done").Inc()
	slog.Info("rule-set job done",
		"job_id", job.ID,
		"site_id", job.SiteID,
		"queued_for", start.Sub(job.EnqueuedAt).String(),
		"duration", time.Since(start).String(),
	)
	return nil
}

func isPermanent(err error) bool {
	return errors.Is(err, store.ErrNotFound) ||
		errors.Is(err, review.ErrUnknownKind) ||
		errors.Is(err, models.ErrInvalidFrequency)
}
