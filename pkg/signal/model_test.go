package signal

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCompile stands in for pkg/compile (injected to avoid the import
// cycle the real compiler would create); it records whether it ran.
func fakeCompile(called *bool) func(Definition) (AST, error) {
	return func(Definition) (AST, error) {
		*called = true
		return AST{Logic: LogicAND, Conditions: []CompiledCondition{
			Simple{Left: Constant{Value: 1}, Operator: OpGT, Right: Constant{Value: 0}},
		}}, nil
	}
}

func TestNormalizeStoredDefinitionVersionedPassesThrough(t *testing.T) {
	def := Definition{
		Scope:  Scope{ChainIDs: []int64{1}},
		Window: "1d",
		Conditions: []Condition{
			ThresholdCondition{Metric: "Morpho.Market.totalBorrowAssets", Operator: OpGT, Value: 1},
		},
	}
	stored := StoredDefinition{
		Version: CurrentVersion,
		DSL:     def,
		AST: AST{Logic: LogicAND, Conditions: []CompiledCondition{
			Simple{Left: Constant{Value: 2}, Operator: OpGT, Right: Constant{Value: 1}},
		}},
	}
	raw, err := json.Marshal(stored)
	require.NoError(t, err)

	compiled := false
	got, err := NormalizeStoredDefinition(raw, fakeCompile(&compiled))
	require.NoError(t, err)
	assert.False(t, compiled, "a versioned definition with an AST must not re-compile")
	assert.Equal(t, CurrentVersion, got.Version)
	assert.Equal(t, "1d", got.DSL.Window)
	require.Len(t, got.AST.Conditions, 1)
}

func TestNormalizeStoredDefinitionBareDSLRecompiles(t *testing.T) {
	def := Definition{
		Scope:  Scope{ChainIDs: []int64{1}},
		Window: "1d",
		Conditions: []Condition{
			ThresholdCondition{Metric: "Morpho.Market.totalBorrowAssets", Operator: OpGT, Value: 1},
		},
	}
	raw, err := json.Marshal(def)
	require.NoError(t, err)

	compiled := false
	got, err := NormalizeStoredDefinition(raw, fakeCompile(&compiled))
	require.NoError(t, err)
	assert.True(t, compiled, "a bare legacy DSL must be re-compiled on load")
	assert.Equal(t, CurrentVersion, got.Version)
	require.Len(t, got.AST.Conditions, 1)
}

func TestCooldownActive(t *testing.T) {
	now := time.Now()
	recent := now.Add(-10 * time.Minute)
	old := now.Add(-2 * time.Hour)

	sig := &Signal{CooldownMinutes: 30, LastTriggeredAt: &recent}
	assert.True(t, sig.CooldownActive(now))

	sig.LastTriggeredAt = &old
	assert.False(t, sig.CooldownActive(now))

	sig.LastTriggeredAt = nil
	assert.False(t, sig.CooldownActive(now))

	sig.LastTriggeredAt = &recent
	sig.CooldownMinutes = 0
	assert.False(t, sig.CooldownActive(now))
}

func TestConditionJSONRoundTrip(t *testing.T) {
	def := Definition{
		Scope:  Scope{ChainIDs: []int64{1}, Addresses: []string{"0x1", "0x2"}},
		Window: "6h",
		Logic:  LogicOR,
		Conditions: []Condition{
			ThresholdCondition{Metric: "Morpho.Market.utilization", Operator: OpGTE, Value: 0.9},
			GroupCondition{
				Addresses:   []string{"0x1", "0x2"},
				Requirement: Requirement{Count: 1, Of: 2},
				Logic:       LogicAND,
				Conditions: []Condition{
					ChangeCondition{Metric: "Morpho.Position.collateral", Direction: DirectionDecrease, By: ByPercent, Amount: 10},
				},
			},
		},
	}
	raw, err := json.Marshal(def)
	require.NoError(t, err)

	var got Definition
	require.NoError(t, json.Unmarshal(raw, &got))
	require.Len(t, got.Conditions, 2)

	group, ok := got.Conditions[1].(GroupCondition)
	require.True(t, ok)
	assert.Equal(t, Requirement{Count: 1, Of: 2}, group.Requirement)
	require.Len(t, group.Conditions, 1)
	_, ok = group.Conditions[0].(ChangeCondition)
	assert.True(t, ok)
}
