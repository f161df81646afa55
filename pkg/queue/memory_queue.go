package queue

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryQueue is a mutex-guarded, in-process Queue used by unit tests
// that want real enqueue/dequeue/failure-retention semantics without a
// Redis dependency. Failed jobs are retained for inspection, not retried.
type InMemoryQueue struct {
	mu         sync.Mutex
	pending    map[string]*list.List
	failed     map[string][]FailureRecord
	repeatable map[string]time.Duration
	retention  int
}

// FailureRecord is a retained failed job, matching RedisQueue's stored
// shape for inspection in tests.
type FailureRecord struct {
	Job      Job
	Error    string
	FailedAt time.Time
}

// NewInMemoryQueue builds an empty queue with the given failure
// retention count (0 uses DefaultFailureRetention).
func NewInMemoryQueue(retention int) *InMemoryQueue {
	if retention <= 0 {
		retention = DefaultFailureRetention
	}
	return &InMemoryQueue{
		pending:    make(map[string]*list.List),
		failed:     make(map[string][]FailureRecord),
		repeatable: make(map[string]time.Duration),
		retention:  retention,
	}
}

func (q *InMemoryQueue) Enqueue(ctx context.Context, queueName string, payload []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	l, ok := q.pending[queueName]
	if !ok {
		l = list.New()
		q.pending[queueName] = l
	}
	l.PushBack(Job{ID: uuid.NewString(), Payload: append([]byte(nil), payload...)})
	return nil
}

func (q *InMemoryQueue) Dequeue(ctx context.Context, queueName string) (Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	l, ok := q.pending[queueName]
	if !ok || l.Len() == 0 {
		return Job{}, ErrEmpty
	}
	front := l.Front()
	l.Remove(front)
	return front.Value.(Job), nil
}

func (q *InMemoryQueue) Complete(ctx context.Context, queueName string, job Job) error {
	return nil
}

func (q *InMemoryQueue) Fail(ctx context.Context, queueName string, job Job, cause error) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	records := append(q.failed[queueName], FailureRecord{Job: job, Error: cause.Error(), FailedAt: time.Now()})
	if len(records) > q.retention {
		records = records[len(records)-q.retention:]
	}
	q.failed[queueName] = records
	return nil
}

func (q *InMemoryQueue) RegisterRepeatable(ctx context.Context, queueName string, interval time.Duration) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	existing, ok := q.repeatable[queueName]
	if ok && existing == interval {
		return false, nil
	}
	q.repeatable[queueName] = interval
	return true, nil
}

func (q *InMemoryQueue) Depth(ctx context.Context, queueName string) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	l, ok := q.pending[queueName]
	if !ok {
		return 0, nil
	}
	return int64(l.Len()), nil
}

// Failures returns the retained failure records for a queue, for test
// assertions.
func (q *InMemoryQueue) Failures(queueName string) []FailureRecord {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]FailureRecord(nil), q.failed[queueName]...)
}
