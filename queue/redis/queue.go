// Package redis implements queue.Queue on Redis lists.
//
// Push is LPUSH, Pop is BRPOP, so FIFO order holds per queue and blocking
// pops ride Redis's native wakeup instead of polling. PopMany uses
// RPOPCOUNT for batch throughput. Tasks travel through a task.Codec
// (JSON by default).
//
// Usage:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	q := redisqueue.New(client, redisqueue.WithCodec(task.MsgpackCodec{}))
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/channelport/courier/queue"
	"github.com/channelport/courier/task"
)

// Compile-time interface check.
var _ queue.Queue = (*Queue)(nil)

const defaultKeyPrefix = "courier:queue:"

// Option configures the Queue.
type Option func(*Queue)

// WithCodec sets the wire codec. Defaults to task.JSONCodec.
func WithCodec(c task.Codec) Option {
	return func(q *Queue) { q.codec = c }
}

// WithKeyPrefix overrides the Redis key prefix ("courier:queue:").
func WithKeyPrefix(p string) Option {
	return func(q *Queue) { q.prefix = p }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) { q.logger = l }
}

// Queue is a Redis-backed queue.Queue. The caller owns the client
// lifecycle.
type Queue struct {
	client goredis.Cmdable
	codec  task.Codec
	prefix string
	logger *slog.Logger
}

// New creates a Redis-backed queue.
func New(client goredis.Cmdable, opts ...Option) *Queue {
	q := &Queue{
		client: client,
		codec:  task.JSONCodec{},
		prefix: defaultKeyPrefix,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(q)
	}
	return q
}

func (q *Queue) key(name string) string { return q.prefix + name }

// Push LPUSHes the encoded task and returns the new list length.
func (q *Queue) Push(ctx context.Context, name string, t *task.Task) (int64, error) {
	data, err := q.codec.Encode(t)
	if err != nil {
		return 0, fmt.Errorf("courier/redis: encode task: %w", err)
	}
	n, err := q.client.LPush(ctx, q.key(name), data).Result()
	if err != nil {
		return 0, fmt.Errorf("courier/redis: push: %w", err)
	}
	return n, nil
}

// Pop BRPOPs the queue. A timeout of zero blocks forever (Redis
// semantics line up with the queue contract). Returns (nil, nil) when
// the timeout elapses with nothing available.
func (q *Queue) Pop(ctx context.Context, name string, timeout time.Duration) (*task.Task, error) {
	res, err := q.client.BRPop(ctx, timeout, q.key(name)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("courier/redis: pop: %w", err)
	}
	// BRPop returns [key, value].
	if len(res) != 2 {
		return nil, fmt.Errorf("courier/redis: pop: unexpected reply of %d elements", len(res))
	}
	t, err := q.codec.Decode([]byte(res[1]))
	if err != nil {
		return nil, fmt.Errorf("courier/redis: pop decode: %w", err)
	}
	return t, nil
}

// PopMany RPOPs up to max items in one round trip.
func (q *Queue) PopMany(ctx context.Context, name string, max int) ([]*task.Task, error) {
	if max <= 0 {
		return nil, nil
	}
	vals, err := q.client.RPopCount(ctx, q.key(name), max).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("courier/redis: popmany: %w", err)
	}
	out := make([]*task.Task, 0, len(vals))
	for _, v := range vals {
		t, decErr := q.codec.Decode([]byte(v))
		if decErr != nil {
			// A single poisoned entry must not wedge the whole batch.
			q.logger.Warn("dropping undecodable queue entry",
				slog.String("queue", name),
				slog.String("error", decErr.Error()),
			)
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// Len returns LLEN of the queue.
func (q *Queue) Len(ctx context.Context, name string) (int64, error) {
	n, err := q.client.LLen(ctx, q.key(name)).Result()
	if err != nil {
		return 0, fmt.Errorf("courier/redis: len: %w", err)
	}
	return n, nil
}
