// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"reviewd/internal/models"
)

// RuleSetJob is a queued save of one site's frequency rules.
type RuleSetJob struct {
	ID         uuid.UUID                         `json:"id"`
	SiteID     uuid.UUID                         `json:"site_id"`
	Changes    map[string]models.ReviewFrequency `json:"changes"`
	EnqueuedAt time.Time                         `json:"enqueued_at"`

	payload string
}

// Queue is a FIFO of rule-set jobs on a Valkey list. Jobs are pushed on the
// left and popped from the right. A popped job moves to a processing list
// until it is acknowledged, so a worker that stops mid-job leaves it there
// for Recover.
type Queue struct {
	client     *redis.Client
	key        string
	processing string
}

// NewQueue returns a Queue stored under key.
func NewQueue(client *redis.Client, key string) *Queue {
	return &Queue{client: client, key: key, processing: key + ":processing"}
}

// Enqueue assigns the job an ID and pushes it.
func (q *Queue) Enqueue(ctx context.Context, siteID uuid.UUID, changes map[string]models.ReviewFrequency) (*RuleSetJob, error) {
	job := &RuleSetJob{
		ID:         uuid.New(),
		SiteID:     siteID,
		Changes:    changes,
		EnqueuedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("encode job: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, data).Err(); err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}
	return job, nil
}

// Dequeue blocks up to timeout for the next job and moves it to the
// processing list. Returns nil when the timeout elapses with the queue
// empty. Undecodable payloads are dropped.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*RuleSetJob, error) {
	res, err := q.client.BLMove(ctx, q.key, q.processing, "RIGHT", "LEFT", timeout).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dequeue job: %w", err)
	}

	var job RuleSetJob
	if err := json.Unmarshal([]byte(res), &job); err != nil {
		q.client.LRem(ctx, q.processing, 1, res)
		return nil, fmt.Errorf("decode job: %w", err)
	}
	job.payload = res
	return &job, nil
}

// Ack removes a finished job from the processing list.
func (q *Queue) Ack(ctx context.Context, job *RuleSetJob) error {
	if err := q.client.LRem(ctx, q.processing, 1, job.payload).Err(); err != nil {
		return fmt.Errorf("ack job %s: %w", job.ID, err)
	}
	return nil
}

// Recover moves jobs left in the processing list back to the head of the
// queue, oldest first. It returns the number of jobs moved.
func (q *Queue) Recover(ctx context.Context) (int, error) {
	var n int
	for {
		err := q.client.LMove(ctx, q.processing, q.key, "LEFT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("recover jobs: %w", err)
		}
		n++
	}
}

// Len returns the number of waiting jobs.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("queue length: %w", err)
	}
	return n, nil
}
