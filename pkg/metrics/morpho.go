package metrics

import "github.com/monarch-xyz/sentinel/pkg/signal"

// Morpho is the process-wide registry seeded at init with every metric a
// Morpho Blue signal may reference. It is the only Registry instance the
// rest of the module constructs — components take a *Registry parameter
// so tests can build a smaller one instead.
var Morpho = Build(morphoDescriptors)

const protocolMorpho = "Morpho"

var morphoDescriptors = []Descriptor{
	// Position state
	{Name: "Morpho.Position.supplyShares", Protocol: protocolMorpho, Kind: KindState, Entity: signal.EntityPosition, Field: "supplyShares"},
	{Name: "Morpho.Position.borrowShares", Protocol: protocolMorpho, Kind: KindState, Entity: signal.EntityPosition, Field: "borrowShares"},
	{Name: "Morpho.Position.collateral", Protocol: protocolMorpho, Kind: KindState, Entity: signal.EntityPosition, Field: "collateral"},

	// Market state
	{Name: "Morpho.Market.totalSupplyAssets", Protocol: protocolMorpho, Kind: KindState, Entity: signal.EntityMarket, Field: "totalSupplyAssets"},
	{Name: "Morpho.Market.totalSupplyShares", Protocol: protocolMorpho, Kind: KindState, Entity: signal.EntityMarket, Field: "totalSupplyShares"},
	{Name: "Morpho.Market.totalBorrowAssets", Protocol: protocolMorpho, Kind: KindState, Entity: signal.EntityMarket, Field: "totalBorrowAssets"},
	{Name: "Morpho.Market.totalBorrowShares", Protocol: protocolMorpho, Kind: KindState, Entity: signal.EntityMarket, Field: "totalBorrowShares"},
	{Name: "Morpho.Market.lastUpdate", Protocol: protocolMorpho, Kind: KindState, Entity: signal.EntityMarket, Field: "lastUpdate"},
	{Name: "Morpho.Market.fee", Protocol: protocolMorpho, Kind: KindState, Entity: signal.EntityMarket, Field: "fee"},

	// Computed
	{
		Name: "Morpho.Market.utilization", Protocol: protocolMorpho, Kind: KindComputed,
		Computation: ComputationRatio,
		Operands:    [2]string{"Morpho.Market.totalBorrowAssets", "Morpho.Market.totalSupplyAssets"},
	},
	{
		Name: "Morpho.Market.availableLiquidity", Protocol: protocolMorpho, Kind: KindComputed,
		Computation: ComputationDifference,
		Operands:    [2]string{"Morpho.Market.totalSupplyAssets", "Morpho.Market.totalBorrowAssets"},
	},

	// Event
	{Name: "Morpho.Supply.assets", Protocol: protocolMorpho, Kind: KindEvent, EventType: "Supply", Field: "assets", Aggregation: signal.AggSum},
	{Name: "Morpho.Withdraw.assets", Protocol: protocolMorpho, Kind: KindEvent, EventType: "Withdraw", Field: "assets", Aggregation: signal.AggSum},
	{Name: "Morpho.Borrow.assets", Protocol: protocolMorpho, Kind: KindEvent, EventType: "Borrow", Field: "assets", Aggregation: signal.AggSum},
	{Name: "Morpho.Repay.assets", Protocol: protocolMorpho, Kind: KindEvent, EventType: "Repay", Field: "assets", Aggregation: signal.AggSum},
	{Name: "Morpho.Liquidate.repaidAssets", Protocol: protocolMorpho, Kind: KindEvent, EventType: "Liquidate", Field: "repaidAssets", Aggregation: signal.AggSum},

	// Chained event
	{
		Name: "Morpho.Flow.netSupply", Protocol: protocolMorpho, Kind: KindChainedEvent,
		ChainedOperation: ChainedSub,
		ChainedOperands:  [2]string{"Morpho.Supply.assets", "Morpho.Withdraw.assets"},
	},
	{
		Name: "Morpho.Flow.netBorrow", Protocol: protocolMorpho, Kind: KindChainedEvent,
		ChainedOperation: ChainedSub,
		ChainedOperands:  [2]string{"Morpho.Borrow.assets", "Morpho.Repay.assets"},
	},
}
