package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NotificationRecord is one audit row written after a dispatch
// attempt; every trigger writes exactly one.
type NotificationRecord struct {
	SignalID      string
	TriggeredAt   time.Time
	WebhookStatus int
	Success       bool
	Error         string
	Attempts      int
	DurationMs    int64
}

// RunLogRecord is one audit row per evaluation pass.
type RunLogRecord struct {
	SignalID    string
	EvaluatedAt time.Time
	Triggered   bool
	Conclusive  bool
	Error       string
}

// InsertNotification writes a notification-log row.
func (s *Store) InsertNotification(ctx context.Context, rec NotificationRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO notification_log (id, signal_id, triggered_at, webhook_status,
		                               success, error, attempts, duration_ms)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		uuid.NewString(), rec.SignalID, rec.TriggeredAt, nullIfZero(rec.WebhookStatus),
		rec.Success, rec.Error, rec.Attempts, rec.DurationMs)
	if err != nil {
		return fmt.Errorf("store: insert notification log: %w", err)
	}
	return nil
}

// InsertRunLog writes a run-log row.
func (s *Store) InsertRunLog(ctx context.Context, rec RunLogRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO run_log (id, signal_id, evaluated_at, triggered, conclusive, error)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		uuid.NewString(), rec.SignalID, rec.EvaluatedAt, rec.Triggered, rec.Conclusive, rec.Error)
	if err != nil {
		return fmt.Errorf("store: insert run log: %w", err)
	}
	return nil
}

func nullIfZero(status int) interface{} {
	if status == 0 {
		return nil
	}
	return status
}
