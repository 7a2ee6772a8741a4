// Package queue is a small job queue over Redis Streams. The server process
// enqueues jobs; a separate worker process consumes them through a consumer
// group, acking on success and parking repeated failures on a dead-letter
// stream. The two processes share only Redis.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultStream = "accountd:jobs"
	maxStreamLen  = 100000
)

type Client struct {
	rdb    *redis.Client
	logger *slog.Logger
	stream string
}

func NewClient(rdb *redis.Client, logger *slog.Logger, stream string) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if stream == "" {
		stream = defaultStream
	}
	return &Client{rdb: rdb, logger: logger, stream: stream}
}

// Enqueue appends one job to the stream. The payload is marshalled once
// here; consumers get it back verbatim.
func (c *Client) Enqueue(ctx context.Context, jobType string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal job data: %w", err)
	}

	job := Job{
		Type:       jobType,
		Data:       raw,
		EnqueuedAt: time.Now().UTC(),
	}
	return c.publish(ctx, c.stream, job)
}

func (c *Client) publish(ctx context.Context, stream string, job Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	id, err := c.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: maxStreamLen,
		Approx: true,
		Values: map[string]any{"job": string(payload)},
	}).Result()
	if err != nil {
		return fmt.Errorf("xadd: %w", err)
	}

	c.logger.Debug("job enqueued", "stream", stream, "type", job.Type, "msg_id", id)
	return nil
}

// Len reports the number of entries currently on the stream.
func (c *Client) Len(ctx context.Context) (int64, error) {
	n, err := c.rdb.XLen(ctx, c.stream).Result()
	if err != nil {
		return 0, fmt.Errorf("xlen: %w", err)
	}
	return n, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) ensureGroup(ctx context.Context, group string) error {
	err := c.rdb.XGroupCreateMkStream(ctx, c.stream, group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group: %w", err)
	}
	return nil
}
