package simulate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monarch-xyz/sentinel/pkg/compile"
	"github.com/monarch-xyz/sentinel/pkg/eval"
	"github.com/monarch-xyz/sentinel/pkg/metrics"
	"github.com/monarch-xyz/sentinel/pkg/signal"
)

// pivotFetcher reports a low event sum before pivot and a high one at
// or after it, letting tests drive the "first trigger" search off the
// simulated clock (the end of the event window is ctx.Now).
type pivotFetcher struct {
	pivot time.Time
	low   float64
	high  float64
}

func (f *pivotFetcher) FetchState(ctx context.Context, chainID int64, ref signal.StateRef, timestamp *time.Time) (float64, error) {
	return 0, nil
}

func (f *pivotFetcher) FetchEvents(ctx context.Context, chainID int64, ref signal.EventRef, start, end time.Time) (float64, error) {
	if end.Before(f.pivot) {
		return f.low, nil
	}
	return f.high, nil
}

func buildAggregateSignal(t *testing.T) signal.AST {
	t.Helper()
	def := signal.Definition{
		Scope:  signal.Scope{ChainIDs: []int64{1}, MarketIDs: []string{"m1"}},
		Window: "1d",
		Conditions: []signal.Condition{
			signal.ThresholdCondition{Metric: "Morpho.Supply.assets", Operator: signal.OpGT, Value: 500},
		},
	}
	ast, err := compile.Compile(metrics.Morpho, def)
	require.NoError(t, err)
	return ast
}

func TestFirstTriggerBinarySearch(t *testing.T) {
	ast := buildAggregateSignal(t)
	t0 := time.Unix(1_700_000_000, 0)
	pivot := t0.Add(10 * time.Hour)
	t1 := t0.Add(20 * time.Hour)

	fetcher := &pivotFetcher{pivot: pivot, low: 100, high: 1000}
	sim := New(eval.NewEvaluator(metrics.Morpho, fetcher))

	transition, err := sim.FirstTrigger(context.Background(), "sig-1", 1, "1d", ast, t0, t1, 60_000)
	require.NoError(t, err)
	require.NotNil(t, transition)

	// S6: evaluatedAt - transitionPoint < precision.
	assert.Less(t, transition.Sub(pivot).Abs(), time.Minute)
}

func TestFirstTriggerNeverTriggersReturnsNil(t *testing.T) {
	ast := buildAggregateSignal(t)
	t0 := time.Unix(1_700_000_000, 0)
	t1 := t0.Add(20 * time.Hour)

	fetcher := &pivotFetcher{pivot: t1.Add(time.Hour), low: 100, high: 1000}
	sim := New(eval.NewEvaluator(metrics.Morpho, fetcher))

	transition, err := sim.FirstTrigger(context.Background(), "sig-1", 1, "1d", ast, t0, t1, 60_000)
	require.NoError(t, err)
	assert.Nil(t, transition)
}

func TestFirstTriggerStartAlreadyTriggered(t *testing.T) {
	ast := buildAggregateSignal(t)
	t0 := time.Unix(1_700_000_000, 0)
	t1 := t0.Add(20 * time.Hour)

	fetcher := &pivotFetcher{pivot: t0.Add(-time.Hour), low: 100, high: 1000}
	sim := New(eval.NewEvaluator(metrics.Morpho, fetcher))

	transition, err := sim.FirstTrigger(context.Background(), "sig-1", 1, "1d", ast, t0, t1, 60_000)
	require.NoError(t, err)
	require.NotNil(t, transition)
	assert.Equal(t, t0, *transition)
}

func TestSweepCapsAtMaxSteps(t *testing.T) {
	ast := buildAggregateSignal(t)
	t0 := time.Unix(1_700_000_000, 0)
	fetcher := &pivotFetcher{pivot: t0.Add(time.Hour), low: 100, high: 1000}
	sim := New(eval.NewEvaluator(metrics.Morpho, fetcher))

	points, err := sim.Sweep(context.Background(), "sig-1", 1, "1d", ast, SweepOptions{
		Start:    t0,
		End:      t0.Add(24 * time.Hour),
		StepMs:   int64(time.Minute / time.Millisecond),
		MaxSteps: 10,
	})
	require.NoError(t, err)
	assert.Len(t, points, 10)
}
