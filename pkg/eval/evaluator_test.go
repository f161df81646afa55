package eval

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monarch-xyz/sentinel/pkg/compile"
	"github.com/monarch-xyz/sentinel/pkg/metrics"
	"github.com/monarch-xyz/sentinel/pkg/signal"
)

// stubFetcher answers state/event reads from fixed maps keyed by field,
// and counts FetchState calls to verify group short-circuiting.
type stubFetcher struct {
	state      map[string]float64 // "current" snapshot reads (timestamp == nil)
	past       map[string]float64 // window_start snapshot reads (timestamp != nil); falls back to state if nil
	events     map[string]float64
	stateCalls int
	err        error
}

func (s *stubFetcher) FetchState(ctx context.Context, chainID int64, ref signal.StateRef, timestamp *time.Time) (float64, error) {
	s.stateCalls++
	if s.err != nil {
		return 0, s.err
	}
	key := ref.Field
	for _, f := range ref.Filters {
		if f.Field == "user" {
			key = ref.Field + ":" + f.Value.(string)
		}
	}
	source := s.state
	if timestamp != nil && s.past != nil {
		source = s.past
	}
	v, ok := source[key]
	if !ok {
		return 0, nil
	}
	return v, nil
}

func (s *stubFetcher) FetchEvents(ctx context.Context, chainID int64, ref signal.EventRef, start, end time.Time) (float64, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.events[ref.EventType], nil
}

// recordingEventFetcher records which user filter each event query
// carried, to verify per-target filter overlays.
type recordingEventFetcher struct {
	users map[string]bool
}

func (r *recordingEventFetcher) FetchState(ctx context.Context, chainID int64, ref signal.StateRef, timestamp *time.Time) (float64, error) {
	return 0, nil
}

func (r *recordingEventFetcher) FetchEvents(ctx context.Context, chainID int64, ref signal.EventRef, start, end time.Time) (float64, error) {
	for _, f := range ref.Filters {
		if f.Field == "user" {
			r.users[f.Value.(string)] = true
		}
	}
	return 1, nil
}

func TestEvaluatorThresholdTrue(t *testing.T) {
	def := signal.Definition{
		Scope:  signal.Scope{ChainIDs: []int64{1}, MarketIDs: []string{"m1"}},
		Window: "1d",
		Conditions: []signal.Condition{
			signal.ThresholdCondition{Metric: "Morpho.Market.totalBorrowAssets", Operator: signal.OpGT, Value: 1_000_000},
		},
	}
	ast, err := compile.Compile(metrics.Morpho, def)
	require.NoError(t, err)

	fetcher := &stubFetcher{state: map[string]float64{"totalBorrowAssets": 2_000_000}}
	ev := NewEvaluator(metrics.Morpho, fetcher)

	result := ev.Evaluate(context.Background(), "sig-1", 1, "1d", time.Now(), ast)
	require.True(t, result.Conclusive)
	assert.True(t, result.Triggered)
}

func TestEvaluatorChangePercentDecrease(t *testing.T) {
	def := signal.Definition{
		Scope:  signal.Scope{ChainIDs: []int64{1}, MarketIDs: []string{"m1"}, Addresses: []string{"0x1"}},
		Window: "1d",
		Conditions: []signal.Condition{
			signal.ChangeCondition{
				Metric:    "Morpho.Position.supplyShares",
				Direction: signal.DirectionDecrease,
				By:        signal.ByPercent,
				Amount:    20,
				Address:   "0x1",
			},
		},
	}
	ast, err := compile.Compile(metrics.Morpho, def)
	require.NoError(t, err)

	fetcher := &stubFetcher{
		state: map[string]float64{"supplyShares:0x1": 70},
		past:  map[string]float64{"supplyShares:0x1": 100},
	}
	ev := NewEvaluator(metrics.Morpho, fetcher)

	result := ev.Evaluate(context.Background(), "sig-2", 1, "1d", time.Now(), ast)
	require.True(t, result.Conclusive)
	// current(70) < past(100)*(1-0.2)=80 -> triggered
	assert.True(t, result.Triggered)
}

func TestEvaluatorGroupShortCircuit(t *testing.T) {
	def := signal.Definition{
		Scope:  signal.Scope{ChainIDs: []int64{1}, MarketIDs: []string{"m1"}, Addresses: []string{"0x1", "0x2", "0x3"}},
		Window: "1d",
		Conditions: []signal.Condition{
			signal.GroupCondition{
				Addresses:   []string{"0x1", "0x2", "0x3"},
				Requirement: signal.Requirement{Count: 2, Of: 3},
				Conditions: []signal.Condition{
					signal.ThresholdCondition{Metric: "Morpho.Position.supplyShares", Operator: signal.OpGT, Value: 50, MarketID: "m1"},
				},
			},
		},
	}
	ast, err := compile.Compile(metrics.Morpho, def)
	require.NoError(t, err)

	// Both the first two addresses pass -> requirement (2-of-3) met without
	// ever reading the third address.
	fetcher := &stubFetcher{state: map[string]float64{
		"supplyShares:0x1": 100,
		"supplyShares:0x2": 100,
		"supplyShares:0x3": 100,
	}}
	ev := NewEvaluator(metrics.Morpho, fetcher)

	result := ev.Evaluate(context.Background(), "sig-3", 1, "1d", time.Now(), ast)
	require.True(t, result.Conclusive)
	assert.True(t, result.Triggered)
	assert.Equal(t, 2, fetcher.stateCalls)
}

func TestEvaluatorAggregateSumOverMarkets(t *testing.T) {
	def := signal.Definition{
		Scope:  signal.Scope{ChainIDs: []int64{1}, MarketIDs: []string{"m1", "m2"}},
		Window: "1d",
		Conditions: []signal.Condition{
			signal.AggregateCondition{
				Aggregation: signal.AggSum,
				Metric:      "Morpho.Market.totalBorrowAssets",
				Operator:    signal.OpGT,
				Value:       1_000_000,
			},
		},
	}
	ast, err := compile.Compile(metrics.Morpho, def)
	require.NoError(t, err)

	fetcher := &stubFetcher{state: map[string]float64{"totalBorrowAssets": 600_000}}
	ev := NewEvaluator(metrics.Morpho, fetcher)

	result := ev.Evaluate(context.Background(), "sig-4", 1, "1d", time.Now(), ast)
	require.True(t, result.Conclusive)
	// 600_000 per market * 2 markets = 1_200_000 > 1_000_000
	assert.True(t, result.Triggered)
}

func TestEvaluatorChainedEventNetSupply(t *testing.T) {
	def := signal.Definition{
		Scope:  signal.Scope{ChainIDs: []int64{1}, MarketIDs: []string{"m1"}},
		Window: "1d",
		Conditions: []signal.Condition{
			signal.ThresholdCondition{Metric: "Morpho.Flow.netSupply", Operator: signal.OpGT, Value: 0},
		},
	}
	ast, err := compile.Compile(metrics.Morpho, def)
	require.NoError(t, err)

	fetcher := &stubFetcher{events: map[string]float64{
		"Supply":   1000,
		"Withdraw": 400,
	}}
	ev := NewEvaluator(metrics.Morpho, fetcher)

	result := ev.Evaluate(context.Background(), "sig-5", 1, "1d", time.Now(), ast)
	require.True(t, result.Conclusive)
	assert.True(t, result.Triggered)
}

func TestEvaluatorAggregateEventCrossProductFiltersPerAddress(t *testing.T) {
	def := signal.Definition{
		Scope:  signal.Scope{ChainIDs: []int64{1}, MarketIDs: []string{"m1"}, Addresses: []string{"0x1", "0x2"}},
		Window: "1d",
		Conditions: []signal.Condition{
			signal.AggregateCondition{
				Aggregation: signal.AggCount,
				Metric:      "Morpho.Supply.assets",
				Operator:    signal.OpEQ,
				Value:       2,
			},
		},
	}
	ast, err := compile.Compile(metrics.Morpho, def)
	require.NoError(t, err)

	users := map[string]bool{}
	fetcher := &recordingEventFetcher{users: users}
	ev := NewEvaluator(metrics.Morpho, fetcher)

	result := ev.Evaluate(context.Background(), "sig-agg", 1, "1d", time.Now(), ast)
	require.True(t, result.Conclusive)
	// One target per (market, address) pair, each constrained to its own user.
	assert.True(t, result.Triggered)
	assert.Equal(t, map[string]bool{"0x1": true, "0x2": true}, users)
}

func TestEvaluatorDivisionByZeroYieldsZero(t *testing.T) {
	def := signal.Definition{
		Scope:  signal.Scope{ChainIDs: []int64{1}, MarketIDs: []string{"m1"}},
		Window: "1d",
		Conditions: []signal.Condition{
			signal.ThresholdCondition{Metric: "Morpho.Market.utilization", Operator: signal.OpEQ, Value: 0},
		},
	}
	ast, err := compile.Compile(metrics.Morpho, def)
	require.NoError(t, err)

	fetcher := &stubFetcher{state: map[string]float64{
		"totalBorrowAssets": 100,
		"totalSupplyAssets": 0,
	}}
	ev := NewEvaluator(metrics.Morpho, fetcher)

	result := ev.Evaluate(context.Background(), "sig-6", 1, "1d", time.Now(), ast)
	require.True(t, result.Conclusive)
	assert.True(t, result.Triggered)
}

func TestEvaluatorInconclusiveNeverTriggers(t *testing.T) {
	def := signal.Definition{
		Scope:  signal.Scope{ChainIDs: []int64{1}, MarketIDs: []string{"m1"}},
		Window: "1d",
		Conditions: []signal.Condition{
			signal.ThresholdCondition{Metric: "Morpho.Market.totalBorrowAssets", Operator: signal.OpGT, Value: 0},
		},
	}
	ast, err := compile.Compile(metrics.Morpho, def)
	require.NoError(t, err)

	fetcher := &stubFetcher{err: errors.New("rpc unavailable")}
	ev := NewEvaluator(metrics.Morpho, fetcher)

	result := ev.Evaluate(context.Background(), "sig-7", 1, "1d", time.Now(), ast)
	assert.False(t, result.Conclusive)
	assert.False(t, result.Triggered)
	assert.NotEmpty(t, result.Error)
}
