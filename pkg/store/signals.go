package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/monarch-xyz/sentinel/pkg/compile"
	"github.com/monarch-xyz/sentinel/pkg/metrics"
	"github.com/monarch-xyz/sentinel/pkg/signal"
)

// GetSignal loads a signal by id. Returns ErrNotFound if it does not
// exist. The stored definition is normalized on load: rows
// written before definition versioning hold a bare DSL object, which is
// re-compiled against the process-wide registry here so every caller
// sees a versioned StoredDefinition with a ready AST.
func (s *Store) GetSignal(ctx context.Context, id string) (*signal.Signal, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, name, description, definition, webhook_url,
		       webhook_secret, cooldown_minutes, is_active, created_at,
		       updated_at, last_evaluated_at, last_triggered_at
		FROM signals WHERE id = $1`, id)

	sig, rawDef, err := scanSignal(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("store: get signal: %w", err)
	}
	sig.Definition, err = signal.NormalizeStoredDefinition(rawDef, func(d signal.Definition) (signal.AST, error) {
		return compile.Compile(metrics.Morpho, d)
	})
	if err != nil {
		return nil, fmt.Errorf("store: decode stored definition: %w", err)
	}
	return sig, nil
}

// ActiveSignalIDs implements pkg/scheduler.SignalLister.
func (s *Store) ActiveSignalIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM signals WHERE is_active`)
	if err != nil {
		return nil, fmt.Errorf("store: list active signals: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scan active signal id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CreateSignal inserts a new signal, assigning it a uuid.
func (s *Store) CreateSignal(ctx context.Context, sig *signal.Signal) error {
	if sig.ID == "" {
		sig.ID = uuid.NewString()
	}
	now := time.Now()
	sig.CreatedAt, sig.UpdatedAt = now, now

	rawDef, err := json.Marshal(sig.Definition)
	if err != nil {
		return fmt.Errorf("store: encode stored definition: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO signals (id, user_id, name, description, definition,
		                      webhook_url, webhook_secret, cooldown_minutes,
		                      is_active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		sig.ID, sig.UserID, sig.Name, sig.Description, rawDef,
		sig.WebhookURL, sig.WebhookSecretValue, sig.CooldownMinutes, sig.IsActive, sig.CreatedAt, sig.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: create signal: %w", err)
	}
	return nil
}

// StampEvaluated unconditionally records last_evaluated_at, written
// after every evaluation regardless of outcome.
func (s *Store) StampEvaluated(ctx context.Context, id string, now time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE signals SET last_evaluated_at = $1 WHERE id = $2`, now, id)
	if err != nil {
		return fmt.Errorf("store: stamp last_evaluated_at: %w", err)
	}
	return nil
}

// StampTriggered unconditionally records last_triggered_at after a
// successful dispatch.
func (s *Store) StampTriggered(ctx context.Context, id string, now time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE signals SET last_triggered_at = $1 WHERE id = $2`, now, id)
	if err != nil {
		return fmt.Errorf("store: stamp last_triggered_at: %w", err)
	}
	return nil
}

// TryStampTriggered performs a conditional update
// (`UPDATE ... WHERE last_triggered_at = $old`) that tightens the
// cooldown race between concurrent workers toward once-per-cooldown.
// It reports whether this call actually won the race (no row matching
// `old` means a concurrent worker already stamped a newer value).
func (s *Store) TryStampTriggered(ctx context.Context, id string, old *time.Time, now time.Time) (bool, error) {
	var cmd interface {
		RowsAffected() int64
	}
	var err error
	if old == nil {
		cmd, err = s.pool.Exec(ctx,
			`UPDATE signals SET last_triggered_at = $1 WHERE id = $2 AND last_triggered_at IS NULL`, now, id)
	} else {
		cmd, err = s.pool.Exec(ctx,
			`UPDATE signals SET last_triggered_at = $1 WHERE id = $2 AND last_triggered_at = $3`, now, id, *old)
	}
	if err != nil {
		return false, fmt.Errorf("store: conditional stamp last_triggered_at: %w", err)
	}
	return cmd.RowsAffected() == 1, nil
}

// scanSignal reads a signal row, leaving the raw JSON definition for
// the caller to decode (so both GetSignal and future list queries can
// share this without double-handling the json.Unmarshaler dance).
func scanSignal(row pgx.Row) (*signal.Signal, []byte, error) {
	var sig signal.Signal
	var rawDef []byte
	err := row.Scan(
		&sig.ID, &sig.UserID, &sig.Name, &sig.Description, &rawDef,
		&sig.WebhookURL, &sig.WebhookSecretValue, &sig.CooldownMinutes, &sig.IsActive,
		&sig.CreatedAt, &sig.UpdatedAt, &sig.LastEvaluatedAt, &sig.LastTriggeredAt,
	)
	if err != nil {
		return nil, nil, err
	}
	return &sig, rawDef, nil
}
