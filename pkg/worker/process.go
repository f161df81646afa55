package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/monarch-xyz/sentinel/pkg/eval"
	"github.com/monarch-xyz/sentinel/pkg/obs"
	"github.com/monarch-xyz/sentinel/pkg/queue"
	"github.com/monarch-xyz/sentinel/pkg/signal"
	"github.com/monarch-xyz/sentinel/pkg/store"
	"github.com/monarch-xyz/sentinel/pkg/webhook"
)

// processJob runs one evaluation job through the full per-job state
// machine: load, evaluate, cooldown-gate, dispatch, audit, stamp.
func (w *Worker) processJob(ctx context.Context, job queue.Job) error {
	var payload queue.EvaluateJobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("worker: decode evaluation job: %w", err)
	}
	log := slog.With("worker_id", w.id, "signal_id", payload.SignalID)

	// 1. Load signal by id; if missing or inactive -> exit quietly.
	sig, err := w.signals.GetSignal(ctx, payload.SignalID)
	if err != nil {
		if isNotFound(err) {
			log.Info("signal not found, skipping")
			return nil
		}
		return fmt.Errorf("worker: load signal: %w", err)
	}
	if !sig.IsActive {
		log.Info("signal inactive, skipping")
		return nil
	}

	// 2. The stored definition was already normalized by GetSignal at
	// the store boundary; the AST is ready to evaluate.
	now := time.Now()
	chainID := primaryChain(sig.Definition.DSL)

	// 3. Build the evaluation context and render a verdict.
	result := w.evaluator.Evaluate(ctx, sig.ID, chainID, sig.Definition.DSL.Window, now, sig.Definition.AST)

	// 5. Always stamp last_evaluated_at, regardless of trigger outcome.
	defer func() {
		if err := w.signals.StampEvaluated(context.Background(), sig.ID, now); err != nil {
			log.Error("failed to stamp last_evaluated_at", "error", err)
		}
	}()

	if err := w.audit.InsertRunLog(ctx, store.RunLogRecord{
		SignalID: sig.ID, EvaluatedAt: now, Triggered: result.Triggered,
		Conclusive: result.Conclusive, Error: result.Error,
	}); err != nil {
		log.Warn("failed to write run log", "error", err)
	}

	obs.SignalsEvaluated.WithLabelValues(evaluationOutcome(result)).Inc()

	if !result.Triggered || !result.Conclusive {
		if !result.Conclusive {
			log.Warn("evaluation inconclusive", "error", result.Error)
		}
		return nil
	}

	// 4. Triggered AND conclusive: check cooldown.
	if sig.CooldownActive(now) {
		log.Info("trigger suppressed by cooldown")
		return nil
	}

	dispatchResult := w.dispatcher.Dispatch(ctx, sig.WebhookURL, buildPayload(sig, result, now), sig.WebhookSecret())
	obs.DispatchDuration.Observe(float64(dispatchResult.DurationMs) / 1000)
	obs.DispatchResults.WithLabelValues(dispatchOutcome(dispatchResult.Success)).Inc()

	if dispatchResult.Success {
		if won, err := w.signals.TryStampTriggered(context.Background(), sig.ID, sig.LastTriggeredAt, now); err != nil {
			log.Error("failed to stamp last_triggered_at", "error", err)
		} else if !won {
			log.Info("lost cooldown race to a concurrent worker; notification already sent")
		}
	}

	if err := w.audit.InsertNotification(ctx, store.NotificationRecord{
		SignalID:      sig.ID,
		TriggeredAt:   now,
		WebhookStatus: dispatchResult.Status,
		Success:       dispatchResult.Success,
		Error:         dispatchResult.Error,
		Attempts:      dispatchResult.Attempts,
		DurationMs:    dispatchResult.DurationMs,
	}); err != nil {
		log.Error("failed to write notification log", "error", err)
	}

	return nil
}

// primaryChain picks the chain a single Evaluate pass runs against.
// Multi-chain scopes are validated at compile time to resolve every
// per-condition chain_id against the declared scope, but one
// evaluation context still carries a single chain id; signals in
// practice scope to one chain at a time.
func primaryChain(def signal.Definition) int64 {
	if len(def.Scope.ChainIDs) == 0 {
		return 0
	}
	return def.Scope.ChainIDs[0]
}

func buildPayload(sig *signal.Signal, result eval.Result, now time.Time) webhook.Payload {
	conditions := make([]webhook.ConditionMet, 0, len(result.Traces))
	for _, tr := range result.Traces {
		conditions = append(conditions, webhook.ConditionMet{
			Type:        tr.Kind,
			Triggered:   tr.Triggered,
			Description: fmt.Sprintf("condition %d (%s)", tr.Index, tr.Kind),
			ActualValue: tr.Left,
			Threshold:   tr.Right,
		})
	}

	scope := sig.Definition.DSL.Scope
	var chainID *int64
	if len(scope.ChainIDs) > 0 {
		c := scope.ChainIDs[0]
		chainID = &c
	}
	var marketID, address string
	if len(scope.MarketIDs) == 1 {
		marketID = scope.MarketIDs[0]
	}
	if len(scope.Addresses) == 1 {
		address = scope.Addresses[0]
	}

	return webhook.Payload{
		SignalID:      sig.ID,
		SignalName:    sig.Name,
		TriggeredAt:   now,
		ConditionsMet: conditions,
		Scope: webhook.PayloadScope{
			Chains:    scope.ChainIDs,
			Markets:   scope.MarketIDs,
			Addresses: scope.Addresses,
		},
		Context: webhook.PayloadContext{
			AppUserID: sig.UserID,
			Address:   address,
			MarketID:  marketID,
			ChainID:   chainID,
		},
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

func evaluationOutcome(r eval.Result) string {
	if !r.Conclusive {
		return "inconclusive"
	}
	if r.Triggered {
		return "triggered"
	}
	return "not_triggered"
}

func dispatchOutcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
