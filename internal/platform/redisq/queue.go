// Package redisq implements the work queue on a Redis list. RPUSH/BLPOP
// gives ordered, at-least-once delivery to competing consumers.
package redisq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/visionforge/detect-api/internal/config"
	"github.com/visionforge/detect-api/internal/queue"
)

// Queue implements queue.Publisher and queue.Consumer on a Redis list.
type Queue struct {
	client      *redis.Client
	key         string
	pollTimeout time.Duration
}

// New connects to Redis using the given configuration and verifies the
// connection with a ping.
func New(ctx context.Context, cfg config.QueueConfig) (*Queue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &Queue{client: client, key: cfg.Key, pollTimeout: cfg.PollTimeout}, nil
}

// Publish appends a message to the tail of the queue.
func (q *Queue) Publish(ctx context.Context, msg queue.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal queue message: %w", err)
	}

	if err := q.client.RPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("publish to %q: %w", q.key, err)
	}

	return nil
}

// Receive blocks on the head of the queue for up to the poll timeout.
// Returns queue.ErrNoMessage when the poll comes back empty so the worker
// loop can re-check its context and poll again.
func (q *Queue) Receive(ctx context.Context) (*queue.Message, error) {
	res, err := q.client.BLPop(ctx, q.pollTimeout, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, queue.ErrNoMessage
		}
		return nil, fmt.Errorf("receive from %q: %w", q.key, err)
	}

	// BLPop returns [key, value].
	if len(res) < 2 {
		return nil, queue.ErrNoMessage
	}

	var msg queue.Message
	if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
		return nil, fmt.Errorf("unmarshal queue message: %w", err)
	}

	return &msg, nil
}

// Close releases the underlying Redis connection.
func (q *Queue) Close() error {
	return q.client.Close()
}
