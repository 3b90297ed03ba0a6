// Package queue defines the work queue contract between the enqueue
// producer and the worker loop. Delivery is ordered and at-least-once:
// consumers must tolerate redelivered messages.
package queue

import (
	"context"
	"errors"
)

// ErrNoMessage is returned by Receive when a blocking poll times out with
// nothing available. Consumers loop on it rather than treating it as a failure.
var ErrNoMessage = errors.New("no message available")

// Message tells the worker loop which job to process. The referenced job
// row must already be committed before the message is published.
type Message struct {
	JobID     int64  `json:"job_id"`
	ObjectKey string `json:"file"`
	UserID    int64  `json:"user_id"`
}

// Publisher enqueues messages for the worker loop.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// Consumer retrieves messages for processing. Receive blocks up to the
// implementation's poll timeout and returns ErrNoMessage on an empty poll.
type Consumer interface {
	Receive(ctx context.Context) (*Message, error)
}
