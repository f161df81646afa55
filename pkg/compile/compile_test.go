package compile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monarch-xyz/sentinel/pkg/metrics"
	"github.com/monarch-xyz/sentinel/pkg/signal"
)

func scopeFixture() signal.Scope {
	return signal.Scope{
		ChainIDs:  []int64{1},
		MarketIDs: []string{"m1"},
		Addresses: []string{"0x1", "0x2", "0x3"},
	}
}

func TestCompileThreshold(t *testing.T) {
	def := signal.Definition{
		Scope:  scopeFixture(),
		Window: "1d",
		Conditions: []signal.Condition{
			signal.ThresholdCondition{
				Metric:   "Morpho.Market.totalBorrowAssets",
				Operator: signal.OpGT,
				Value:    1_000_000,
			},
		},
	}
	ast, err := Compile(metrics.Morpho, def)
	require.NoError(t, err)
	require.Len(t, ast.Conditions, 1)
	simple, ok := ast.Conditions[0].(signal.Simple)
	require.True(t, ok)
	assert.Equal(t, signal.OpGT, simple.Operator)
	ref, ok := simple.Left.(signal.StateRef)
	require.True(t, ok)
	assert.Equal(t, signal.EntityMarket, ref.Entity)
	assert.Equal(t, signal.SnapshotCurrent, ref.Snapshot)
}

func TestCompileChangePercentDecrease(t *testing.T) {
	def := signal.Definition{
		Scope:  scopeFixture(),
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
	ast, err := Compile(metrics.Morpho, def)
	require.NoError(t, err)
	simple := ast.Conditions[0].(signal.Simple)
	assert.Equal(t, signal.OpLT, simple.Operator)
	_, isBinary := simple.Right.(signal.BinaryExpression)
	assert.True(t, isBinary)
}

func TestCompileGroupRequirementMismatch(t *testing.T) {
	def := signal.Definition{
		Scope:  scopeFixture(),
		Window: "1d",
		Conditions: []signal.Condition{
			signal.GroupCondition{
				Addresses:   []string{"0x1", "0x2"},
				Requirement: signal.Requirement{Count: 1, Of: 3},
				Conditions: []signal.Condition{
					signal.ThresholdCondition{Metric: "Morpho.Position.supplyShares", Operator: signal.OpGT, Value: 100, MarketID: "m1"},
				},
			},
		},
	}
	_, err := Compile(metrics.Morpho, def)
	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Field, "requirement.of")
}

func TestCompileGroupInnerAddressRejected(t *testing.T) {
	def := signal.Definition{
		Scope:  scopeFixture(),
		Window: "1d",
		Conditions: []signal.Condition{
			signal.GroupCondition{
				Addresses:   []string{"0x1", "0x2", "0x3"},
				Requirement: signal.Requirement{Count: 2, Of: 3},
				Conditions: []signal.Condition{
					signal.ThresholdCondition{Metric: "Morpho.Position.supplyShares", Operator: signal.OpGT, Value: 100, MarketID: "m1", Address: "0x1"},
				},
			},
		},
	}
	_, err := Compile(metrics.Morpho, def)
	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Field, "address")
}

func TestCompileAggregatePositionRequiresAddresses(t *testing.T) {
	def := signal.Definition{
		Scope:  signal.Scope{ChainIDs: []int64{1}, MarketIDs: []string{"m1"}},
		Window: "1d",
		Conditions: []signal.Condition{
			signal.AggregateCondition{
				Aggregation: signal.AggSum,
				Metric:      "Morpho.Position.supplyShares",
				Operator:    signal.OpGT,
				Value:       100,
			},
		},
	}
	_, err := Compile(metrics.Morpho, def)
	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Field, "addresses")
}

func TestCompileChangeDirectionAnyRejected(t *testing.T) {
	def := signal.Definition{
		Scope:  scopeFixture(),
		Window: "1d",
		Conditions: []signal.Condition{
			signal.ChangeCondition{
				Metric:    "Morpho.Position.supplyShares",
				Direction: signal.DirectionAny,
				By:        signal.ByPercent,
				Amount:    20,
				Address:   "0x1",
			},
		},
	}
	_, err := Compile(metrics.Morpho, def)
	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Field, "direction")
}

func TestCompileAggregateSumOverMarkets(t *testing.T) {
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
	ast, err := Compile(metrics.Morpho, def)
	require.NoError(t, err)
	agg := ast.Conditions[0].(signal.CompiledAggregate)
	assert.ElementsMatch(t, []string{"m1", "m2"}, agg.MarketIDs)
}

func TestCompileUnknownMetric(t *testing.T) {
	def := signal.Definition{
		Scope:  scopeFixture(),
		Window: "1d",
		Conditions: []signal.Condition{
			signal.ThresholdCondition{Metric: "NotARealMetric", Operator: signal.OpGT, Value: 1},
		},
	}
	_, err := Compile(metrics.Morpho, def)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownMetric)
}

func TestCompileScopeViolation(t *testing.T) {
	def := signal.Definition{
		Scope:  scopeFixture(),
		Window: "1d",
		Conditions: []signal.Condition{
			signal.ThresholdCondition{Metric: "Morpho.Market.totalBorrowAssets", Operator: signal.OpGT, Value: 1, MarketID: "not-in-scope"},
		},
	}
	_, err := Compile(metrics.Morpho, def)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrScopeViolation)
}

func TestCompileReservedFilterField(t *testing.T) {
	def := signal.Definition{
		Scope:  scopeFixture(),
		Window: "1d",
		Conditions: []signal.Condition{
			signal.ThresholdCondition{
				Metric:   "Morpho.Supply.assets",
				Operator: signal.OpGT,
				Value:    1,
				Filters:  []signal.Filter{{Field: "chainId", Op: signal.FilterEq, Value: 1}},
			},
		},
	}
	_, err := Compile(metrics.Morpho, def)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReservedFilterField)
}

func TestCompileEventThresholdWithAddress(t *testing.T) {
	def := signal.Definition{
		Scope:  scopeFixture(),
		Window: "1d",
		Conditions: []signal.Condition{
			signal.ThresholdCondition{
				Metric:   "Morpho.Supply.assets",
				Operator: signal.OpGT,
				Value:    1000,
				Address:  "0x2",
			},
		},
	}
	ast, err := Compile(metrics.Morpho, def)
	require.NoError(t, err)
	simple := ast.Conditions[0].(signal.Simple)
	ref, ok := simple.Left.(signal.EventRef)
	require.True(t, ok)
	var user string
	for _, f := range ref.Filters {
		if f.Field == "user" {
			user = f.Value.(string)
		}
	}
	assert.Equal(t, "0x2", user)

	def.Conditions = []signal.Condition{
		signal.ThresholdCondition{
			Metric:   "Morpho.Supply.assets",
			Operator: signal.OpGT,
			Value:    1000,
			Address:  "0xdeadbeef",
		},
	}
	_, err = Compile(metrics.Morpho, def)
	assert.ErrorIs(t, err, ErrScopeViolation)
}

func TestCompileStoredDefinitionRoundTrip(t *testing.T) {
	def := signal.Definition{
		Scope:  scopeFixture(),
		Window: "1d",
		Conditions: []signal.Condition{
			signal.ThresholdCondition{Metric: "Morpho.Market.totalBorrowAssets", Operator: signal.OpGT, Value: 1_000_000},
		},
	}
	ast1, err := Compile(metrics.Morpho, def)
	require.NoError(t, err)

	raw, err := ast1.MarshalJSON()
	require.NoError(t, err)

	var ast2 signal.AST
	require.NoError(t, ast2.UnmarshalJSON(raw))

	raw1, _ := ast1.MarshalJSON()
	raw2, _ := ast2.MarshalJSON()
	assert.JSONEq(t, string(raw1), string(raw2))
}
