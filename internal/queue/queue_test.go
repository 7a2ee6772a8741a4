package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"accountd/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
)

func newTestClient(t *testing.T) (*Client, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewClient(rdb, slog.New(slog.DiscardHandler), "test:jobs"), rdb
}

func newTestWorker(t *testing.T, c *Client, handlers map[string]Handler) *Worker {
	t.Helper()

	w, err := NewWorker(c, slog.New(slog.DiscardHandler), handlers, WorkerOpts{
		Group:      "test-group",
		ConsumerID: "test-consumer",
		BlockTime:  10 * time.Millisecond,
		MaxRetry:   2,
	})
	if err != nil {
		t.Fatalf("NewWorker: %v", err)
	}
	if err := c.ensureGroup(context.Background(), "test-group"); err != nil {
		t.Fatalf("ensureGroup: %v", err)
	}
	return w
}

func TestEnqueuePayloadShape(t *testing.T) {
	c, rdb := newTestClient(t)
	ctx := context.Background()

	u := domain.User{ID: "user-1", Email: "a@b.com", FirstName: "Ada"}
	data := SendPasswordResetEmailData{User: NewUserSnapshot(u)}
	if err := c.Enqueue(ctx, JobTypeSendPasswordResetEmail, data); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	n, err := c.Len(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected one entry, got %d (%v)", n, err)
	}

	msgs, err := rdb.XRange(ctx, "test:jobs", "-", "+").Result()
	if err != nil || len(msgs) != 1 {
		t.Fatalf("xrange: %v", err)
	}

	var job Job
	if err := json.Unmarshal([]byte(msgs[0].Values["job"].(string)), &job); err != nil {
		t.Fatalf("unmarshal job: %v", err)
	}
	if job.Type != "sendPasswordResetEmail" {
		t.Fatalf("job type: got %q", job.Type)
	}

	var decoded SendPasswordResetEmailData
	if err := json.Unmarshal(job.Data, &decoded); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if decoded.User.ID != "user-1" || decoded.User.Email != "a@b.com" {
		t.Fatalf("unexpected snapshot: %+v", decoded.User)
	}
}

func TestWorkerHandlesAndAcks(t *testing.T) {
	c, rdb := newTestClient(t)
	ctx := context.Background()

	var got UserSnapshot
	handlers := map[string]Handler{
		JobTypeSendPasswordResetEmail: func(_ context.Context, data json.RawMessage) error {
			var d SendPasswordResetEmailData
			if err := json.Unmarshal(data, &d); err != nil {
				return err
			}
			got = d.User
			return nil
		},
	}
	w := newTestWorker(t, c, handlers)

	data := SendPasswordResetEmailData{User: UserSnapshot{ID: "user-1", Email: "a@b.com"}}
	if err := c.Enqueue(ctx, JobTypeSendPasswordResetEmail, data); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	msgs, err := w.read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(msgs))
	}
	w.handle(ctx, msgs[0])

	if got.Email != "a@b.com" {
		t.Fatalf("handler not invoked with payload: %+v", got)
	}

	pending, err := rdb.XPending(ctx, "test:jobs", "test-group").Result()
	if err != nil {
		t.Fatalf("xpending: %v", err)
	}
	if pending.Count != 0 {
		t.Fatalf("expected message acked, %d pending", pending.Count)
	}
}

func TestWorkerRetriesThenDeadLetters(t *testing.T) {
	c, rdb := newTestClient(t)
	ctx := context.Background()

	boom := errors.New("smtp down")
	handlers := map[string]Handler{
		JobTypeSendPasswordResetEmail: func(context.Context, json.RawMessage) error {
			return boom
		},
	}
	w := newTestWorker(t, c, handlers)

	if err := c.Enqueue(ctx, JobTypeSendPasswordResetEmail, SendPasswordResetEmailData{}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	// MaxRetry is 2: the job is requeued twice, then buried.
	for attempt := 0; attempt < 3; attempt++ {
		msgs, err := w.read(ctx)
		if err != nil {
			t.Fatalf("read attempt %d: %v", attempt, err)
		}
		if len(msgs) != 1 {
			t.Fatalf("attempt %d: expected one message, got %d", attempt, len(msgs))
		}
		if msgs[0].job.Retry != attempt {
			t.Fatalf("attempt %d: retry count %d", attempt, msgs[0].job.Retry)
		}
		w.handle(ctx, msgs[0])
	}

	dead, err := rdb.XLen(ctx, "test:jobs:dead").Result()
	if err != nil {
		t.Fatalf("xlen dead: %v", err)
	}
	if dead != 1 {
		t.Fatalf("expected one dead-lettered job, got %d", dead)
	}

	msgs, err := w.read(ctx)
	if err != nil {
		t.Fatalf("read after burial: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("expected empty queue, got %d", len(msgs))
	}
}

func TestWorkerBuriesJobsWithoutHandler(t *testing.T) {
	c, rdb := newTestClient(t)
	ctx := context.Background()

	handlers := map[string]Handler{
		JobTypeSendPasswordResetEmail: func(context.Context, json.RawMessage) error { return nil },
	}
	w := newTestWorker(t, c, handlers)

	if err := c.Enqueue(ctx, "unknownJob", map[string]string{"k": "v"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	msgs, err := w.read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	w.handle(ctx, msgs[0])

	dead, err := rdb.XLen(ctx, "test:jobs:dead").Result()
	if err != nil || dead != 1 {
		t.Fatalf("expected job on dead stream, got %d (%v)", dead, err)
	}
}

func TestWorkerMetricsRegistry(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	handlers := map[string]Handler{
		JobTypeSendPasswordResetEmail: func(context.Context, json.RawMessage) error { return nil },
	}

	reg := prometheus.NewRegistry()
	w, err := NewWorker(c, slog.New(slog.DiscardHandler), handlers, WorkerOpts{
		Group:      "test-group",
		ConsumerID: "test-consumer",
		BlockTime:  10 * time.Millisecond,
		Metrics:    reg,
	})
	if err != nil {
		t.Fatalf("NewWorker: %v", err)
	}
	if err := c.ensureGroup(ctx, "test-group"); err != nil {
		t.Fatalf("ensureGroup: %v", err)
	}

	if err := c.Enqueue(ctx, JobTypeSendPasswordResetEmail, SendPasswordResetEmailData{}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	msgs, err := w.read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	w.handle(ctx, msgs[0])

	got := testutil.ToFloat64(w.metrics.processed.WithLabelValues(JobTypeSendPasswordResetEmail))
	if got != 1 {
		t.Fatalf("processed counter: got %v, want 1", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	if !names["accountd_jobs_processed_total"] {
		t.Fatalf("counters not registered on the supplied registry: %v", names)
	}
}

func TestWorkerDefaultMetricsAreIsolated(t *testing.T) {
	c, _ := newTestClient(t)
	handlers := map[string]Handler{
		JobTypeSendPasswordResetEmail: func(context.Context, json.RawMessage) error { return nil },
	}

	// Without an explicit registerer each worker gets a private registry,
	// so repeated construction must not collide.
	for i := 0; i < 2; i++ {
		if _, err := NewWorker(c, slog.New(slog.DiscardHandler), handlers, WorkerOpts{}); err != nil {
			t.Fatalf("NewWorker %d: %v", i, err)
		}
	}
}
