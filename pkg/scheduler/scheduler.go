// Package scheduler drives periodic signal evaluation: a process-wide
// periodic loop that, on every tick, enumerates active signals and
// enqueues one evaluation job per signal.
package scheduler

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/monarch-xyz/sentinel/pkg/obs"
	"github.com/monarch-xyz/sentinel/pkg/queue"
)

// SignalLister enumerates signals eligible for evaluation. Implemented
// by pkg/store against `is_active = true`.
type SignalLister interface {
	ActiveSignalIDs(ctx context.Context) ([]string, error)
}

// Scheduler registers exactly one repeatable tick on startup
// (replacing any stale registration) and, on each tick, enqueues one
// evaluation job per active signal.
type Scheduler struct {
	queue    queue.Queue
	lister   SignalLister
	interval time.Duration

	cron   *cron.Cron
	mu     sync.Mutex
	entry  cron.EntryID
	logger *slog.Logger
}

// New builds a Scheduler. intervalSeconds must be positive.
func New(q queue.Queue, lister SignalLister, intervalSeconds int) *Scheduler {
	return &Scheduler{
		queue:    q,
		lister:   lister,
		interval: time.Duration(intervalSeconds) * time.Second,
		cron:     cron.New(cron.WithSeconds()),
		logger:   slog.With("component", "scheduler"),
	}
}

// Start registers the repeatable tick and begins the cron driver. It is
// idempotent: calling Start twice does not double-register.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	registered, err := s.queue.RegisterRepeatable(ctx, queue.Scheduler, s.interval)
	if err != nil {
		return err
	}
	if registered {
		s.logger.Info("registered repeatable scheduler tick", "interval", s.interval)
	}

	spec := secondsSpec(s.interval)
	entry, err := s.cron.AddFunc(spec, func() { s.tick(context.Background()) })
	if err != nil {
		return err
	}
	s.entry = entry
	s.cron.Start()
	return nil
}

// Stop halts the cron driver and waits for any in-flight tick to
// finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
}

// tick enumerates active signals and enqueues one evaluation job each.
// Enqueue failures are logged, not fatal — the queue is idempotent, so
// duplicate or missed enqueues never produce incorrect work.
func (s *Scheduler) tick(ctx context.Context) {
	ids, err := s.lister.ActiveSignalIDs(ctx)
	if err != nil {
		s.logger.Error("failed to enumerate active signals", "error", err)
		return
	}

	enqueued := 0
	for _, id := range ids {
		payload, err := json.Marshal(queue.EvaluateJobPayload{SignalID: id})
		if err != nil {
			s.logger.Error("failed to marshal evaluation job", "signal_id", id, "error", err)
			continue
		}
		if err := s.queue.Enqueue(ctx, queue.Evaluation, payload); err != nil {
			s.logger.Error("failed to enqueue evaluation job", "signal_id", id, "error", err)
			continue
		}
		enqueued++
	}
	obs.SchedulerTicks.Inc()
	obs.SignalsEnqueued.Add(float64(enqueued))
	s.logger.Info("scheduler tick complete", "signals_enqueued", enqueued)
}

// secondsSpec renders d as a robfig/cron "@every" spec, which accepts
// an arbitrary duration string rather than requiring a 5/6-field cron
// expression.
func secondsSpec(d time.Duration) string {
	return "@every " + d.String()
}
