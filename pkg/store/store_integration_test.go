//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/monarch-xyz/sentinel/pkg/signal"
	"github.com/monarch-xyz/sentinel/pkg/store"
)

// newTestStore spins up a disposable Postgres container, applies the
// embedded migrations via store.Open, and tears the container down at
// test end.
func newTestStore(t *testing.T) *store.Store {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("sentinel_test"),
		postgres.WithUsername("sentinel"),
		postgres.WithPassword("sentinel"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = testcontainers.TerminateContainer(pgContainer)
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := store.Open(ctx, store.Config{DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestStoreCreateAndGetSignalRoundTrips(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	def := signal.Definition{
		Scope:  signal.Scope{ChainIDs: []int64{1}, MarketIDs: []string{"m1"}},
		Window: "1d",
		Conditions: []signal.Condition{
			signal.ThresholdCondition{Metric: "Morpho.Market.totalBorrowAssets", Operator: signal.OpGT, Value: 1},
		},
	}
	sig := &signal.Signal{
		UserID:          "user-1",
		Name:            "test signal",
		WebhookURL:      "https://example.com/hook",
		CooldownMinutes: 30,
		IsActive:        true,
		Definition:      signal.StoredDefinition{Version: signal.CurrentVersion, DSL: def},
	}
	require.NoError(t, s.CreateSignal(ctx, sig))

	loaded, err := s.GetSignal(ctx, sig.ID)
	require.NoError(t, err)
	require.Equal(t, sig.Name, loaded.Name)
	require.Equal(t, sig.WebhookURL, loaded.WebhookURL)
	require.True(t, loaded.IsActive)

	ids, err := s.ActiveSignalIDs(ctx)
	require.NoError(t, err)
	require.Contains(t, ids, sig.ID)
}

func TestStoreStampEvaluatedAndTriggered(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sig := &signal.Signal{
		UserID: "user-1", Name: "n", WebhookURL: "https://example.com",
		IsActive: true, Definition: signal.StoredDefinition{Version: signal.CurrentVersion},
	}
	require.NoError(t, s.CreateSignal(ctx, sig))

	now := time.Now().Truncate(time.Second)
	require.NoError(t, s.StampEvaluated(ctx, sig.ID, now))

	won, err := s.TryStampTriggered(ctx, sig.ID, nil, now)
	require.NoError(t, err)
	require.True(t, won, "first trigger stamp should win against NULL last_triggered_at")

	wonAgain, err := s.TryStampTriggered(ctx, sig.ID, nil, now)
	require.NoError(t, err)
	require.False(t, wonAgain, "second call against a stale NULL precondition must lose the race")
}

func TestStoreInsertNotificationAndRunLog(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sig := &signal.Signal{
		UserID: "user-1", Name: "n", WebhookURL: "https://example.com",
		IsActive: true, Definition: signal.StoredDefinition{Version: signal.CurrentVersion},
	}
	require.NoError(t, s.CreateSignal(ctx, sig))

	require.NoError(t, s.InsertNotification(ctx, store.NotificationRecord{
		SignalID: sig.ID, TriggeredAt: time.Now(), WebhookStatus: 200, Success: true,
	}))
	require.NoError(t, s.InsertRunLog(ctx, store.RunLogRecord{
		SignalID: sig.ID, EvaluatedAt: time.Now(), Triggered: true, Conclusive: true,
	}))
}
