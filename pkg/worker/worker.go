package worker

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/monarch-xyz/sentinel/pkg/queue"
)

// Status is a worker's current health state.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusWorking Status = "working"
)

// Health reports one worker's health for /health.
type Health struct {
	ID            string
	Status        Status
	JobsProcessed int
	LastActivity  time.Time
}

// Worker polls the evaluation queue and runs each job it dequeues to
// completion.
type Worker struct {
	id         string
	q          queue.Queue
	signals    SignalStore
	audit      AuditStore
	evaluator  Evaluator
	dispatcher Dispatcher

	pollInterval time.Duration
	pollJitter   time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu            sync.RWMutex
	status        Status
	jobsProcessed int
	lastActivity  time.Time
}

func newWorker(id string, q queue.Queue, signals SignalStore, audit AuditStore, evaluator Evaluator, dispatcher Dispatcher, pollInterval, pollJitter time.Duration) *Worker {
	return &Worker{
		id: id, q: q, signals: signals, audit: audit, evaluator: evaluator, dispatcher: dispatcher,
		pollInterval: pollInterval, pollJitter: pollJitter,
		stopCh: make(chan struct{}), status: StatusIdle, lastActivity: time.Now(),
	}
}

// Start begins the worker's polling loop in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the worker to stop and waits for the in-flight job (if
// any) to finish. Safe to call multiple times.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

// Health returns the current worker health snapshot.
func (w *Worker) Health() Health {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return Health{ID: w.id, Status: w.status, JobsProcessed: w.jobsProcessed, LastActivity: w.lastActivity}
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()
	log := slog.With("worker_id", w.id, "component", "worker")
	log.Info("worker started")

	for {
		select {
		case <-w.stopCh:
			log.Info("worker shutting down")
			return
		case <-ctx.Done():
			log.Info("context cancelled, worker shutting down")
			return
		default:
			if err := w.pollAndProcess(ctx); err != nil {
				if errors.Is(err, queue.ErrEmpty) {
					w.sleep(w.jitteredPollInterval())
					continue
				}
				log.Error("error processing job", "error", err)
				w.sleep(time.Second)
			}
		}
	}
}

func (w *Worker) sleep(d time.Duration) {
	select {
	case <-w.stopCh:
	case <-time.After(d):
	}
}

func (w *Worker) pollAndProcess(ctx context.Context) error {
	job, err := w.q.Dequeue(ctx, queue.Evaluation)
	if err != nil {
		return err
	}

	w.setStatus(StatusWorking)
	defer w.setStatus(StatusIdle)

	if err := w.processJob(ctx, job); err != nil {
		if failErr := w.q.Fail(ctx, queue.Evaluation, job, err); failErr != nil {
			slog.Error("failed to record job failure", "worker_id", w.id, "error", failErr)
		}
		return err
	}

	if err := w.q.Complete(ctx, queue.Evaluation, job); err != nil {
		slog.Warn("failed to mark job complete", "worker_id", w.id, "error", err)
	}

	w.mu.Lock()
	w.jobsProcessed++
	w.mu.Unlock()
	return nil
}

func (w *Worker) setStatus(status Status) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
	w.lastActivity = time.Now()
}

func (w *Worker) jitteredPollInterval() time.Duration {
	if w.pollJitter <= 0 {
		return w.pollInterval
	}
	offset := time.Duration(rand.Int64N(int64(2 * w.pollJitter)))
	return w.pollInterval - w.pollJitter + offset
}
