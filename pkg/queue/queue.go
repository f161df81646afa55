// Package queue defines the durable-queue behaviors the scheduler and
// worker pool depend on (enqueue, dequeue, retain-on-failure,
// repeatable tick) behind a single Queue interface, with a
// Redis-backed implementation (RedisQueue) and an in-memory one
// (InMemoryQueue) for tests that don't want a Redis dependency.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Named queues: one for evaluation jobs, one for the scheduler tick.
const (
	Evaluation = "evaluation"
	Scheduler  = "scheduler"
)

// ErrEmpty indicates Dequeue found no pending job.
var ErrEmpty = errors.New("queue: empty")

// Job is a unit of queued work. Payload is the JSON-encoded job body —
// {"signalId": "..."} for evaluation jobs, empty for scheduler ticks.
type Job struct {
	ID      string
	Payload json.RawMessage
}

// EvaluateJobPayload is the evaluation job's payload shape.
type EvaluateJobPayload struct {
	SignalID string `json:"signalId"`
}

// Queue is the abstract behavior a scheduler produces into and a
// worker pool consumes from. Implementations need not provide ordering
// guarantees beyond best-effort FIFO.
type Queue interface {
	// Enqueue adds a job to the named queue.
	Enqueue(ctx context.Context, queueName string, payload []byte) error

	// Dequeue removes and returns the oldest pending job, or ErrEmpty
	// if none is pending.
	Dequeue(ctx context.Context, queueName string) (Job, error)

	// Complete marks a job as successfully processed (the job is
	// simply discarded, no retention).
	Complete(ctx context.Context, queueName string, job Job) error

	// Fail retains a failed job up to a configured retention count for
	// inspection.
	Fail(ctx context.Context, queueName string, job Job, cause error) error

	// RegisterRepeatable idempotently registers a repeatable tick for
	// queueName at the given interval: any stale registration is
	// replaced, and exactly one tick job exists afterwards. Returns
	// true if this call performed the (re-)registration, false if an
	// identical registration already existed.
	RegisterRepeatable(ctx context.Context, queueName string, interval time.Duration) (bool, error)

	// Depth reports the number of pending jobs, used for /health and
	// the queue-depth gauge.
	Depth(ctx context.Context, queueName string) (int64, error)
}
