package jobs

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"reviewd/internal/models"
	"reviewd/internal/review"
	"reviewd/internal/store"
)

// testValkeyClient returns a client on DB 15. Skips if Valkey is unavailable.
func testValkeyClient(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr:     envOr("VALKEY_HOST", "localhost") + ":" + envOr("VALKEY_PORT", "6379"),
		Password: os.Getenv("VALKEY_PASSWORD"),
		DB:       15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("skipping integration test: Valkey not reachable: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func testQueue(t *testing.T) *Queue {
	t.Helper()
	client := testValkeyClient(t)
	key := "reviewd:test:" + uuid.NewString()
	q := NewQueue(client, key)
	t.Cleanup(func() { client.Del(context.Background(), key, q.processing) })
	return q
}

// fakeSaver records calls and fails the first failures calls with err.
type fakeSaver struct {
	mu       sync.Mutex
	calls    []uuid.UUID
	failures int
	err      error
	done     chan struct{}
}

func (f *fakeSaver) Save(_ context.Context, siteID uuid.UUID, _ map[string]models.ReviewFrequency) (*review.SaveResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, siteID)
	if len(f.calls) <= f.failures {
		return nil, f.err
	}
	if f.done != nil {
		close(f.done)
		f.done = nil
	}
	return &review.SaveResult{SiteID: siteID}, nil
}

func (f *fakeSaver) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestConnectValkey(t *testing.T) {
	client, err := ConnectValkey(context.Background(), envOr("VALKEY_HOST", "localhost"), envOr("VALKEY_PORT", "6379"), os.Getenv("VALKEY_PASSWORD"))
	if err != nil {
		t.Skipf("skipping: Valkey not available: %v", err)
	}
	defer client.Close()

	if pong, err := client.Ping(context.Background()).Result(); err != nil || pong != "PONG" {
		t.Errorf("ping = %q, %v", pong, err)
	}
}

func TestQueueRoundTrip(t *testing.T) {
	q := testQueue(t)
	ctx := context.Background()

	site := uuid.New()
	first, err := q.Enqueue(ctx, site, map[string]models.ReviewFrequency{"policy_page": models.SixMonths})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := q.Enqueue(ctx, uuid.New(), nil); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if n, err := q.Len(ctx); err != nil || n != 2 {
		t.Errorf("Len = %d, %v", n, err)
	}

	job, err := q.Dequeue(ctx, time.Second)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if job == nil || job.ID != first.ID {
		t.Fatalf("Dequeue = %+v, want first job", job)
	}
	if job.SiteID != site || job.Changes["policy_page"] != models.SixMonths {
		t.Errorf("job = %+v", job)
	}
}

func TestQueueAckAndRecover(t *testing.T) {
	q := testQueue(t)
	ctx := context.Background()

	first, _ := q.Enqueue(ctx, uuid.New(), nil)
	second, _ := q.Enqueue(ctx, uuid.New(), nil)

	a, err := q.Dequeue(ctx, time.Second)
	if err != nil || a == nil || a.ID != first.ID {
		t.Fatalf("Dequeue = %+v, %v; want first job", a, err)
	}
	b, err := q.Dequeue(ctx, time.Second)
	if err != nil || b == nil || b.ID != second.ID {
		t.Fatalf("Dequeue = %+v, %v; want second job", b, err)
	}
	if n, _ := q.client.LLen(ctx, q.processing).Result(); n != 2 {
		t.Fatalf("processing = %d, want 2", n)
	}

	if err := q.Ack(ctx, b); err != nil {
		t.Fatalf("Ack: %v", err)
	}
	n, err := q.Recover(ctx)
	if err != nil || n != 1 {
		t.Fatalf("Recover = %d, %v; want 1", n, err)
	}
	if n, _ := q.client.LLen(ctx, q.processing).Result(); n != 0 {
		t.Errorf("processing = %d after recover, want 0", n)
	}

	again, err := q.Dequeue(ctx, time.Second)
	if err != nil || again == nil || again.ID != first.ID {
		t.Fatalf("Dequeue after recover = %+v, %v; want first job", again, err)
	}
}

func TestQueueDropsUndecodableJob(t *testing.T) {
	q := testQueue(t)
	ctx := context.Background()

	q.client.LPush(ctx, q.key, "not json")
	if _, err := q.Dequeue(ctx, time.Second); err == nil {
		t.Fatal("expected decode error")
	}
	if n, _ := q.client.LLen(ctx, q.processing).Result(); n != 0 {
		t.Errorf("processing = %d, want 0", n)
	}
}

func TestQueueDequeueTimeout(t *testing.T) {
	q := testQueue(t)

	job, err := q.Dequeue(context.Background(), 100*time.Millisecond)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if job != nil {
		t.Errorf("expected no job, got %+v", job)
	}
}

func TestWorkerProcess(t *testing.T) {
	ctx := context.Background()
	job := &RuleSetJob{ID: uuid.New(), SiteID: uuid.New(), EnqueuedAt: time.Now()}

	t.Run("success", func(t *testing.T) {
		saver := &fakeSaver{}
		w := NewWorker(nil, saver)
		if err := w.Process(ctx, job); err != nil {
			t.Fatalf("Process: %v", err)
		}
		if saver.count() != 1 {
			t.Errorf("calls = %d, want 1", saver.count())
		}
	})

	t.Run("transient error is retried", func(t *testing.T) {
		saver := &fakeSaver{failures: 1, err: errors.New("connection reset")}
		w := NewWorker(nil, saver)
		w.maxRetries = 1
		if err := w.Process(ctx, job); err != nil {
			t.Fatalf("Process: %v", err)
		}
		if saver.count() != 2 {
			t.Errorf("calls = %d, want 2", saver.count())
		}
	})

	t.Run("missing site is permanent", func(t *testing.T) {
		saver := &fakeSaver{failures: 5, err: store.ErrNotFound}
		w := NewWorker(nil, saver)
		err := w.Process(ctx, job)
		if !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("Process error = %v, want ErrNotFound", err)
		}
		if saver.count() != 1 {
			t.Errorf("calls = %d, want 1", saver.count())
		}
	})
}

func TestWorkerRun(t *testing.T) {
	q := testQueue(t)
	saver := &fakeSaver{done: make(chan struct{})}
	done := saver.done

	w := NewWorker(q, saver)
	w.pollTimeout = 100 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(stopped)
	}()

	site := uuid.New()
	if _, err := q.Enqueue(context.Background(), site, nil); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("job was not processed")
	}

	cancel()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}

// blockingSaver waits for the context to end, like a save cut short by
// shutdown.
type blockingSaver struct {
	started chan struct{}
}

func (b *blockingSaver) Save(ctx context.Context, _ uuid.UUID, _ map[string]models.ReviewFrequency) (*review.SaveResult, error) {
	close(b.started)
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestWorkerRunKeepsInterruptedJob(t *testing.T) {
	q := testQueue(t)
	saver := &blockingSaver{started: make(chan struct{})}
	w := NewWorker(q, saver)
	w.pollTimeout = 100 * time.Millisecond

	job, err := q.Enqueue(context.Background(), uuid.New(), nil)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(stopped)
	}()

	select {
	case <-saver.started:
	case <-time.After(5 * time.Second):
		t.Fatal("job was not picked up")
	}
	cancel()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}

	bg := context.Background()
	if n, _ := q.client.LLen(bg, q.processing).Result(); n != 1 {
		t.Fatalf("processing = %d, want the interrupted job", n)
	}
	if n, err := q.Recover(bg); err != nil || n != 1 {
		t.Fatalf("Recover = %d, %v", n, err)
	}
	again, err := q.Dequeue(bg, time.Second)
	if err != nil || again == nil || again.ID != job.ID {
		t.Errorf("Dequeue = %+v, %v; want the interrupted job", again, err)
	}
}

type countingReconciler struct {
	calls chan struct{}
}

func (c *countingReconciler) ReconcileAll(context.Context) error {
	select {
	case c.calls <- struct{}{}:
	default:
	}
	return nil
}

func TestSweeper(t *testing.T) {
	r := &countingReconciler{calls: make(chan struct{}, 1)}
	s, err := NewSweeper("@every 1s", r)
	if err != nil {
		t.Fatalf("NewSweeper: %v", err)
	}
	s.Start()

	select {
	case <-r.calls:
	case <-time.After(3 * time.Second):
		t.Error("sweep did not run")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}

func TestSweeperInvalidSpec(t *testing.T) {
	if _, err := NewSweeper("every tuesday", &countingReconciler{}); err == nil {
		t.Error("expected error for invalid spec")
	}
}
