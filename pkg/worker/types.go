// Package worker consumes the evaluation queue: it dequeues jobs,
// loads the stored signal, runs the signal evaluator, applies
// cooldown, dispatches a webhook on trigger, records an audit row, and
// stamps last-evaluated/last-triggered. Durability lives in the queue;
// workers hold no claimable state of their own.
package worker

import (
	"context"
	"time"

	"github.com/monarch-xyz/sentinel/pkg/eval"
	"github.com/monarch-xyz/sentinel/pkg/signal"
	"github.com/monarch-xyz/sentinel/pkg/store"
	"github.com/monarch-xyz/sentinel/pkg/webhook"
)

// SignalStore is the subset of pkg/store.Store the worker needs to
// load and stamp signals.
type SignalStore interface {
	GetSignal(ctx context.Context, id string) (*signal.Signal, error)
	StampEvaluated(ctx context.Context, id string, now time.Time) error
	TryStampTriggered(ctx context.Context, id string, old *time.Time, now time.Time) (bool, error)
}

// AuditStore is the subset of pkg/store.Store the worker writes audit
// rows to.
type AuditStore interface {
	InsertNotification(ctx context.Context, rec store.NotificationRecord) error
	InsertRunLog(ctx context.Context, rec store.RunLogRecord) error
}

// Evaluator renders a verdict for one signal's compiled AST.
type Evaluator interface {
	Evaluate(ctx context.Context, signalID string, chainID int64, windowDuration string, now time.Time, ast signal.AST) eval.Result
}

// Dispatcher delivers the webhook payload on trigger.
type Dispatcher interface {
	Dispatch(ctx context.Context, url string, payload webhook.Payload, secret string) webhook.Result
}
