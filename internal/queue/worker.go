package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// Handler executes one job. The raw payload is the job's Data field.
type Handler func(ctx context.Context, data json.RawMessage) error

// Worker drains a consumer group and dispatches jobs to registered handlers.
// Handlers are fixed at construction; the worker is never reconfigured once
// running.
type Worker struct {
	client     *Client
	logger     *slog.Logger
	group      string
	consumerID string
	handlers   map[string]Handler
	blockTime  time.Duration
	claimIdle  time.Duration
	claimStart string
	maxRetry   int
	deadStream string
	metrics    *metrics
}

type WorkerOpts struct {
	Group      string
	ConsumerID string
	// BlockTime bounds how long one read blocks waiting for work.
	BlockTime time.Duration
	// ClaimIdle is the minimum pending age before an entry is stolen from
	// a stalled consumer.
	ClaimIdle time.Duration
	MaxRetry  int
	// Metrics receives the worker's counters. Nil keeps them on a private
	// registry; pass prometheus.DefaultRegisterer to expose them.
	Metrics prometheus.Registerer
}

func NewWorker(client *Client, logger *slog.Logger, handlers map[string]Handler, opts WorkerOpts) (*Worker, error) {
	if client == nil {
		return nil, errors.New("queue client is required")
	}
	if len(handlers) == 0 {
		return nil, errors.New("at least one handler is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Group == "" {
		opts.Group = "accountd-workers"
	}
	if opts.ConsumerID == "" {
		opts.ConsumerID = fmt.Sprintf("worker-%d", time.Now().UnixNano())
	}
	if opts.BlockTime <= 0 {
		opts.BlockTime = 5 * time.Second
	}
	if opts.ClaimIdle <= 0 {
		opts.ClaimIdle = time.Minute
	}
	if opts.MaxRetry <= 0 {
		opts.MaxRetry = 3
	}
	if opts.Metrics == nil {
		opts.Metrics = prometheus.NewRegistry()
	}

	registered := make(map[string]Handler, len(handlers))
	for t, h := range handlers {
		registered[t] = h
	}

	return &Worker{
		client:     client,
		logger:     logger,
		group:      opts.Group,
		consumerID: opts.ConsumerID,
		handlers:   registered,
		blockTime:  opts.BlockTime,
		claimIdle:  opts.ClaimIdle,
		claimStart: "0-0",
		maxRetry:   opts.MaxRetry,
		deadStream: client.stream + ":dead",
		metrics:    newMetrics(opts.Metrics),
	}, nil
}

// Run processes jobs until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.client.ensureGroup(ctx, w.group); err != nil {
		return err
	}

	w.logger.Info("worker started",
		"stream", w.client.stream, "group", w.group, "consumer", w.consumerID)

	for {
		if err := ctx.Err(); err != nil {
			w.logger.Info("worker stopping")
			return nil
		}

		msgs, err := w.read(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			w.logger.Error("queue read failed", "err", err)
			time.Sleep(time.Second)
			continue
		}

		for _, msg := range msgs {
			w.handle(ctx, msg)
		}
	}
}

type message struct {
	id  string
	job Job
}

func (w *Worker) read(ctx context.Context) ([]message, error) {
	// Reclaim entries stuck on consumers that died mid-job before reading
	// anything new.
	claimed, start, err := w.client.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   w.client.stream,
		Group:    w.group,
		Consumer: w.consumerID,
		MinIdle:  w.claimIdle,
		Start:    w.claimStart,
		Count:    10,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("xautoclaim: %w", err)
	}
	if start != "" {
		w.claimStart = start
	}
	if len(claimed) > 0 {
		w.metrics.reclaimed.Add(float64(len(claimed)))
		return w.parse(ctx, claimed), nil
	}

	streams, err := w.client.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    w.group,
		Consumer: w.consumerID,
		Streams:  []string{w.client.stream, ">"},
		Count:    10,
		Block:    w.blockTime,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("xreadgroup: %w", err)
	}

	var msgs []redis.XMessage
	for _, s := range streams {
		msgs = append(msgs, s.Messages...)
	}
	return w.parse(ctx, msgs), nil
}

func (w *Worker) parse(ctx context.Context, msgs []redis.XMessage) []message {
	parsed := make([]message, 0, len(msgs))
	for _, m := range msgs {
		raw, ok := m.Values["job"].(string)
		if !ok || raw == "" {
			w.logger.Warn("malformed queue entry", "msg_id", m.ID)
			w.deadLetter(ctx, m.ID, fmt.Sprintf("%v", m.Values["job"]), errors.New("malformed entry"))
			continue
		}

		var job Job
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			w.logger.Warn("undecodable job", "msg_id", m.ID, "err", err)
			w.deadLetter(ctx, m.ID, raw, err)
			continue
		}

		parsed = append(parsed, message{id: m.ID, job: job})
	}
	return parsed
}

func (w *Worker) handle(ctx context.Context, msg message) {
	h, ok := w.handlers[msg.job.Type]
	if !ok {
		w.logger.Warn("no handler for job type", "type", msg.job.Type, "msg_id", msg.id)
		w.deadLetter(ctx, msg.id, string(msg.job.Data), errors.New("no handler"))
		return
	}

	if err := h(ctx, msg.job.Data); err != nil {
		w.metrics.failed.WithLabelValues(msg.job.Type).Inc()
		w.logger.Warn("job failed", "type", msg.job.Type, "msg_id", msg.id, "retry", msg.job.Retry, "err", err)
		w.retryOrBury(ctx, msg, err)
		return
	}

	w.metrics.processed.WithLabelValues(msg.job.Type).Inc()
	w.logger.Info("job completed", "type", msg.job.Type, "msg_id", msg.id)
	w.ack(ctx, msg.id)
}

func (w *Worker) retryOrBury(ctx context.Context, msg message, cause error) {
	msg.job.Retry++
	if msg.job.Retry > w.maxRetry {
		w.deadLetter(ctx, msg.id, string(msg.job.Data), cause)
		return
	}

	if err := w.client.publish(ctx, w.client.stream, msg.job); err != nil {
		// Leave the entry pending; a reclaim pass will retry it.
		w.logger.Error("requeue failed", "msg_id", msg.id, "err", err)
		return
	}
	w.ack(ctx, msg.id)
}

func (w *Worker) deadLetter(ctx context.Context, msgID, payload string, cause error) {
	err := w.client.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: w.deadStream,
		Values: map[string]any{
			"original_id": msgID,
			"payload":     payload,
			"reason":      cause.Error(),
			"failed_at":   time.Now().UTC().Format(time.RFC3339Nano),
		},
	}).Err()
	if err != nil {
		w.logger.Error("dead letter publish failed", "msg_id", msgID, "err", err)
		return
	}
	w.metrics.deadLettered.Inc()
	w.ack(ctx, msgID)
}

func (w *Worker) ack(ctx context.Context, msgID string) {
	if err := w.client.rdb.XAck(ctx, w.client.stream, w.group, msgID).Err(); err != nil {
		w.logger.Error("ack failed", "msg_id", msgID, "err", err)
	}
}
