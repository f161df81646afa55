package worker

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/monarch-xyz/sentinel/pkg/obs"
	"github.com/monarch-xyz/sentinel/pkg/queue"
)

// DefaultPollInterval and DefaultPollJitter bound how often an idle
// worker re-checks the queue.
const (
	DefaultPollInterval = 2 * time.Second
	DefaultPollJitter   = 500 * time.Millisecond
)

// Config configures a Pool.
type Config struct {
	WorkerCount  int
	PollInterval time.Duration
	PollJitter   time.Duration
}

// PoolHealth aggregates every worker's health, used by /health.
type PoolHealth struct {
	ActiveWorkers int
	TotalWorkers  int
	QueueDepth    int64
	WorkerStats   []Health
}

// Pool owns a fixed-size set of Workers and drains them gracefully on
// Stop.
type Pool struct {
	q       queue.Queue
	workers []*Worker

	mu      sync.Mutex
	started bool
}

// NewPool constructs a Pool of cfg.WorkerCount workers, all sharing the
// given collaborators.
func NewPool(cfg Config, q queue.Queue, signals SignalStore, audit AuditStore, evaluator Evaluator, dispatcher Dispatcher) *Pool {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.PollJitter <= 0 {
		cfg.PollJitter = DefaultPollJitter
	}

	workers := make([]*Worker, cfg.WorkerCount)
	for i := range workers {
		workers[i] = newWorker(workerID(i), q, signals, audit, evaluator, dispatcher, cfg.PollInterval, cfg.PollJitter)
	}
	return &Pool{q: q, workers: workers}
}

// Start launches every worker's polling loop. Idempotent.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	for _, w := range p.workers {
		w.Start(ctx)
	}
	slog.Info("worker pool started", "workers", len(p.workers))
}

// Stop signals every worker to stop and waits for in-flight jobs to
// drain before returning.
func (p *Pool) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return
	}
	var wg sync.WaitGroup
	for _, w := range p.workers {
		wg.Add(1)
		go func(w *Worker) {
			defer wg.Done()
			w.Stop()
		}(w)
	}
	wg.Wait()
	p.started = false
	slog.Info("worker pool stopped")
}

// Health aggregates current worker pool health.
func (p *Pool) Health(ctx context.Context) PoolHealth {
	stats := make([]Health, len(p.workers))
	active := 0
	for i, w := range p.workers {
		stats[i] = w.Health()
		if stats[i].Status == StatusWorking {
			active++
		}
	}
	depth, err := p.q.Depth(ctx, queue.Evaluation)
	if err != nil {
		slog.Warn("failed to read queue depth for health report", "error", err)
	} else {
		obs.QueueDepth.WithLabelValues(queue.Evaluation).Set(float64(depth))
	}
	return PoolHealth{ActiveWorkers: active, TotalWorkers: len(p.workers), QueueDepth: depth, WorkerStats: stats}
}

func workerID(i int) string {
	return "worker-" + strconv.Itoa(i)
}
