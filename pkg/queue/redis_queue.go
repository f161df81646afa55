package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultFailureRetention is the number of failed jobs retained per
// queue for inspection.
const DefaultFailureRetention = 1000

// RedisQueue is a Redis-backed Queue. Pending jobs live in a sorted set
// keyed by enqueue time (score), giving FIFO pop via ZPOPMIN. Failed
// jobs are pushed onto a capped list. A repeatable tick's registration
// is a single key holding its interval, so at most one registration
// exists per queue.
type RedisQueue struct {
	client           redis.UniversalClient
	failureRetention int
}

// RedisQueueOption configures a RedisQueue at construction.
type RedisQueueOption func(*RedisQueue)

// WithFailureRetention overrides DefaultFailureRetention.
func WithFailureRetention(n int) RedisQueueOption {
	return func(q *RedisQueue) { q.failureRetention = n }
}

// NewRedisQueue wraps an already-configured go-redis client.
func NewRedisQueue(client redis.UniversalClient, opts ...RedisQueueOption) *RedisQueue {
	q := &RedisQueue{client: client, failureRetention: DefaultFailureRetention}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func pendingKey(queueName string) string    { return "sentinel:queue:" + queueName + ":pending" }
func failedKey(queueName string) string     { return "sentinel:queue:" + queueName + ":failed" }
func repeatableKey(queueName string) string { return "sentinel:queue:" + queueName + ":repeatable" }

// entry is the value stored in the pending sorted set.
type entry struct {
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

func (q *RedisQueue) Enqueue(ctx context.Context, queueName string, payload []byte) error {
	e := entry{ID: uuid.NewString(), Payload: payload}
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("queue: marshal job: %w", err)
	}
	return q.client.ZAdd(ctx, pendingKey(queueName), redis.Z{
		Score:  float64(time.Now().UnixNano()),
		Member: raw,
	}).Err()
}

func (q *RedisQueue) Dequeue(ctx context.Context, queueName string) (Job, error) {
	res, err := q.client.ZPopMin(ctx, pendingKey(queueName), 1).Result()
	if err != nil {
		return Job{}, fmt.Errorf("queue: dequeue: %w", err)
	}
	if len(res) == 0 {
		return Job{}, ErrEmpty
	}
	var e entry
	raw, ok := res[0].Member.(string)
	if !ok {
		return Job{}, fmt.Errorf("queue: unexpected member type %T", res[0].Member)
	}
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return Job{}, fmt.Errorf("queue: unmarshal job: %w", err)
	}
	return Job{ID: e.ID, Payload: e.Payload}, nil
}

// Complete is a no-op: a popped job is simply discarded once it
// succeeds.
func (q *RedisQueue) Complete(ctx context.Context, queueName string, job Job) error {
	return nil
}

func (q *RedisQueue) Fail(ctx context.Context, queueName string, job Job, cause error) error {
	record := struct {
		Job      Job       `json:"job"`
		Error    string    `json:"error"`
		FailedAt time.Time `json:"failed_at"`
	}{Job: job, Error: cause.Error(), FailedAt: time.Now()}

	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("queue: marshal failure record: %w", err)
	}

	pipe := q.client.TxPipeline()
	pipe.LPush(ctx, failedKey(queueName), raw)
	pipe.LTrim(ctx, failedKey(queueName), 0, int64(q.failureRetention)-1)
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("queue: retain failure: %w", err)
	}
	return nil
}

// RegisterRepeatable keeps the configured interval in a single key: it
// reads the key and returns false when it already holds the same
// interval (a restart with an unchanged interval is a no-op); otherwise
// it writes the new interval and returns true. The read and the write are
// separate commands, so two callers racing on a missing key may both
// return true; the key still ends up holding one registration.
func (q *RedisQueue) RegisterRepeatable(ctx context.Context, queueName string, interval time.Duration) (bool, error) {
	key := repeatableKey(queueName)
	existing, err := q.client.Get(ctx, key).Result()
	if err != nil && err != redis.Nil {
		return false, fmt.Errorf("queue: read repeatable registration: %w", err)
	}
	want := interval.String()
	if err == nil && existing == want {
		return false, nil
	}
	if err := q.client.Set(ctx, key, want, 0).Err(); err != nil {
		return false, fmt.Errorf("queue: register repeatable: %w", err)
	}
	return true, nil
}

func (q *RedisQueue) Depth(ctx context.Context, queueName string) (int64, error) {
	n, err := q.client.ZCard(ctx, pendingKey(queueName)).Result()
	if err != nil {
		return 0, fmt.Errorf("queue: depth: %w", err)
	}
	return n, nil
}
