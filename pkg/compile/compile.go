// Package compile translates a user-authored signal Definition (DSL)
// into a compiled AST. Compilation is a pure, pattern-matched function
// over the DSL's closed condition set — no handler-plugin mechanism,
// since the set never grows at runtime.
package compile

import (
	"fmt"

	"github.com/monarch-xyz/sentinel/pkg/duration"
	"github.com/monarch-xyz/sentinel/pkg/metrics"
	"github.com/monarch-xyz/sentinel/pkg/signal"
)

// Compile validates and compiles a Definition against the given metric
// registry, returning the compiled AST or the first ValidationError
// encountered.
func Compile(reg *metrics.Registry, def signal.Definition) (signal.AST, error) {
	if len(def.Scope.ChainIDs) == 0 {
		return signal.AST{}, fieldErr("scope.chain_ids", fmt.Errorf("must be non-empty"))
	}
	if def.Window == "" {
		return signal.AST{}, fieldErr("window", fmt.Errorf("required"))
	}
	if !duration.Valid(def.Window) {
		return signal.AST{}, fieldErr("window", ErrDurationFormat)
	}

	logic := def.Logic
	if logic == "" {
		logic = signal.LogicAND
	}
	if !logic.IsValid() {
		return signal.AST{}, fieldErr("logic", fmt.Errorf("must be AND or OR"))
	}

	ast := signal.AST{Logic: logic, Conditions: make([]signal.CompiledCondition, 0, len(def.Conditions))}
	for i, cond := range def.Conditions {
		field := fmt.Sprintf("conditions[%d]", i)
		compiled, err := compileCondition(reg, def.Scope, field, cond, false)
		if err != nil {
			return signal.AST{}, err
		}
		ast.Conditions = append(ast.Conditions, compiled)
	}
	return ast, nil
}

// compileCondition compiles one DSL condition. isGroupInner relaxes
// address requirements (deferred to per-address expansion) and forbids
// Group/Aggregate nesting.
func compileCondition(reg *metrics.Registry, scope signal.Scope, field string, cond signal.Condition, isGroupInner bool) (signal.CompiledCondition, error) {
	switch c := cond.(type) {
	case signal.ThresholdCondition:
		return compileThreshold(reg, scope, field, c, isGroupInner)
	case signal.ChangeCondition:
		return compileChange(reg, scope, field, c, isGroupInner)
	case signal.GroupCondition:
		if isGroupInner {
			return nil, fieldErr(field, ErrNestedComposite)
		}
		return compileGroup(reg, scope, field, c)
	case signal.AggregateCondition:
		if isGroupInner {
			return nil, fieldErr(field, ErrNestedComposite)
		}
		return compileAggregate(reg, scope, field, c)
	default:
		return nil, fieldErr(field, fmt.Errorf("unrecognized condition"))
	}
}

func compileThreshold(reg *metrics.Registry, scope signal.Scope, field string, c signal.ThresholdCondition, isGroupInner bool) (signal.Simple, error) {
	if !c.Operator.IsValid() {
		return signal.Simple{}, fieldErr(field+".operator", fmt.Errorf("unrecognized comparison operator"))
	}
	if isGroupInner && c.Address != "" {
		return signal.Simple{}, fieldErr(field+".address", fmt.Errorf("group inner conditions may not set address"))
	}
	window := c.Window
	if window != "" && !duration.Valid(window) {
		return signal.Simple{}, fieldErr(field+".window", ErrDurationFormat)
	}
	if err := validateUserFilters(field, c.Filters); err != nil {
		return signal.Simple{}, err
	}

	d, ok := reg.Get(c.Metric)
	if !ok {
		return signal.Simple{}, fieldErr(field+".metric", fmt.Errorf("%w: %q", ErrUnknownMetric, c.Metric))
	}
	ent := classify(reg, d)

	// Chain scoping is validated here; chain threading happens via the
	// evaluation context, not the expression tree.
	if _, err := resolveChain(scope, field+".chain_id", c.ChainID); err != nil {
		return signal.Simple{}, err
	}

	marketRequired := ent == entityPosition || ent == entityMarket
	marketID, err := resolveMarket(scope, field+".market_id", c.MarketID, marketRequired)
	if err != nil {
		return signal.Simple{}, err
	}

	var address string
	if ent == entityPosition {
		address, err = resolveAddress(scope, field+".address", c.Address, !isGroupInner, !isGroupInner)
		if err != nil {
			return signal.Simple{}, err
		}
	}

	left, _, err := buildMetricExpr(reg, c.Metric, marketID, address, window, c.Filters)
	if err != nil {
		return signal.Simple{}, fieldErr(field+".metric", err)
	}
	if ent == entityEvent && c.Address != "" {
		if !scope.HasAddress(c.Address) {
			return signal.Simple{}, fieldErr(field+".address", ErrScopeViolation)
		}
		left = signal.WithUserFilter(left, c.Address)
	}
	right := signal.Constant{Value: c.Value}

	return signal.Simple{Left: left, Operator: c.Operator, Right: right, Window: window}, nil
}

func compileChange(reg *metrics.Registry, scope signal.Scope, field string, c signal.ChangeCondition, isGroupInner bool) (signal.Simple, error) {
	if c.Direction == signal.DirectionAny {
		return signal.Simple{}, fieldErr(field+".direction", ErrUnsupportedDirection)
	}
	if c.Direction != signal.DirectionIncrease && c.Direction != signal.DirectionDecrease {
		return signal.Simple{}, fieldErr(field+".direction", fmt.Errorf("must be increase or decrease"))
	}
	if c.By != signal.ByPercent && c.By != signal.ByAbsolute {
		return signal.Simple{}, fieldErr(field+".by", fmt.Errorf("must be percent or absolute"))
	}
	if isGroupInner && c.Address != "" {
		return signal.Simple{}, fieldErr(field+".address", fmt.Errorf("group inner conditions may not set address"))
	}
	window := c.Window
	if window != "" && !duration.Valid(window) {
		return signal.Simple{}, fieldErr(field+".window", ErrDurationFormat)
	}

	d, ok := reg.Get(c.Metric)
	if !ok {
		return signal.Simple{}, fieldErr(field+".metric", fmt.Errorf("%w: %q", ErrUnknownMetric, c.Metric))
	}
	switch d.Kind {
	case metrics.KindState, metrics.KindComputed:
	default:
		return signal.Simple{}, fieldErr(field+".metric", fmt.Errorf("change conditions require a state or computed metric"))
	}
	ent := classify(reg, d)

	if _, err := resolveChain(scope, field+".chain_id", c.ChainID); err != nil {
		return signal.Simple{}, err
	}
	marketRequired := ent == entityPosition || ent == entityMarket
	marketID, err := resolveMarket(scope, field+".market_id", c.MarketID, marketRequired)
	if err != nil {
		return signal.Simple{}, err
	}
	var address string
	if ent == entityPosition {
		address, err = resolveAddress(scope, field+".address", c.Address, !isGroupInner, !isGroupInner)
		if err != nil {
			return signal.Simple{}, err
		}
	}

	current, err := buildStateExpr(reg, c.Metric, marketID, address, signal.SnapshotCurrent)
	if err != nil {
		return signal.Simple{}, fieldErr(field+".metric", err)
	}
	past, err := buildStateExpr(reg, c.Metric, marketID, address, signal.SnapshotWindowStart)
	if err != nil {
		return signal.Simple{}, fieldErr(field+".metric", err)
	}

	return changeToSimple(field, c, current, past, window)
}

// changeToSimple translates the four Change (direction, by)
// combinations into concrete comparisons:
//
//	percent decrease p%:  current < past * (1 - p/100)             op lt
//	percent increase p%:  current > past * (1 + p/100)             op gt
//	absolute decrease a:  (past - current) > a                     op gt
//	absolute increase a:  (current - past) > a                     op gt
func changeToSimple(field string, c signal.ChangeCondition, current, past signal.ExpressionNode, window string) (signal.Simple, error) {
	switch {
	case c.By == signal.ByPercent && c.Direction == signal.DirectionDecrease:
		factor := signal.BinaryExpression{
			Operator: signal.BinMul,
			Left:     past,
			Right:    signal.Constant{Value: 1 - c.Amount/100},
		}
		return signal.Simple{Left: current, Operator: signal.OpLT, Right: factor, Window: window}, nil
	case c.By == signal.ByPercent && c.Direction == signal.DirectionIncrease:
		factor := signal.BinaryExpression{
			Operator: signal.BinMul,
			Left:     past,
			Right:    signal.Constant{Value: 1 + c.Amount/100},
		}
		return signal.Simple{Left: current, Operator: signal.OpGT, Right: factor, Window: window}, nil
	case c.By == signal.ByAbsolute && c.Direction == signal.DirectionDecrease:
		delta := signal.BinaryExpression{Operator: signal.BinSub, Left: past, Right: current}
		return signal.Simple{Left: delta, Operator: signal.OpGT, Right: signal.Constant{Value: c.Amount}, Window: window}, nil
	case c.By == signal.ByAbsolute && c.Direction == signal.DirectionIncrease:
		delta := signal.BinaryExpression{Operator: signal.BinSub, Left: current, Right: past}
		return signal.Simple{Left: delta, Operator: signal.OpGT, Right: signal.Constant{Value: c.Amount}, Window: window}, nil
	default:
		return signal.Simple{}, fieldErr(field, fmt.Errorf("unsupported direction/by combination"))
	}
}

func compileGroup(reg *metrics.Registry, scope signal.Scope, field string, c signal.GroupCondition) (signal.CompiledGroup, error) {
	if c.Requirement.Of != len(c.Addresses) {
		return signal.CompiledGroup{}, fieldErr(field+".requirement.of", fmt.Errorf("must equal len(addresses)"))
	}
	if c.Requirement.Count < 1 || c.Requirement.Count > c.Requirement.Of {
		return signal.CompiledGroup{}, fieldErr(field+".requirement.count", fmt.Errorf("must satisfy 1 <= count <= of"))
	}
	for i, a := range c.Addresses {
		if !scope.HasAddress(a) {
			return signal.CompiledGroup{}, fieldErr(fmt.Sprintf("%s.addresses[%d]", field, i), ErrScopeViolation)
		}
	}
	logic := c.Logic
	if logic == "" {
		logic = signal.LogicAND
	}
	if !logic.IsValid() {
		return signal.CompiledGroup{}, fieldErr(field+".logic", fmt.Errorf("must be AND or OR"))
	}
	window := c.Window
	if window != "" && !duration.Valid(window) {
		return signal.CompiledGroup{}, fieldErr(field+".window", ErrDurationFormat)
	}
	if len(c.Conditions) == 0 {
		return signal.CompiledGroup{}, fieldErr(field+".conditions", fmt.Errorf("must be non-empty"))
	}

	inner := make([]signal.Simple, 0, len(c.Conditions))
	for i, ic := range c.Conditions {
		innerField := fmt.Sprintf("%s.conditions[%d]", field, i)
		compiled, err := compileCondition(reg, scope, innerField, ic, true)
		if err != nil {
			return signal.CompiledGroup{}, err
		}
		simple, ok := compiled.(signal.Simple)
		if !ok {
			return signal.CompiledGroup{}, fieldErr(innerField, ErrNestedComposite)
		}
		inner = append(inner, simple)
	}

	return signal.CompiledGroup{
		Addresses:            c.Addresses,
		Requirement:          c.Requirement,
		Logic:                logic,
		Window:               window,
		PerAddressConditions: inner,
	}, nil
}

func compileAggregate(reg *metrics.Registry, scope signal.Scope, field string, c signal.AggregateCondition) (signal.CompiledAggregate, error) {
	switch c.Aggregation {
	case signal.AggSum, signal.AggAvg, signal.AggMin, signal.AggMax, signal.AggCount:
	default:
		return signal.CompiledAggregate{}, fieldErr(field+".aggregation", fmt.Errorf("unrecognized aggregation"))
	}
	if !c.Operator.IsValid() {
		return signal.CompiledAggregate{}, fieldErr(field+".operator", fmt.Errorf("unrecognized comparison operator"))
	}
	window := c.Window
	if window != "" && !duration.Valid(window) {
		return signal.CompiledAggregate{}, fieldErr(field+".window", ErrDurationFormat)
	}
	if err := validateUserFilters(field, c.Filters); err != nil {
		return signal.CompiledAggregate{}, err
	}

	d, ok := reg.Get(c.Metric)
	if !ok {
		return signal.CompiledAggregate{}, fieldErr(field+".metric", fmt.Errorf("%w: %q", ErrUnknownMetric, c.Metric))
	}
	ent := classify(reg, d)

	chainID, err := resolveChain(scope, field+".chain_id", c.ChainID)
	if err != nil {
		return signal.CompiledAggregate{}, err
	}

	marketIDs := c.MarketIDs
	if len(marketIDs) == 0 {
		marketIDs = scope.MarketIDs
	} else {
		for i, m := range marketIDs {
			if !scope.HasMarket(m) {
				return signal.CompiledAggregate{}, fieldErr(fmt.Sprintf("%s.market_ids[%d]", field, i), ErrScopeViolation)
			}
		}
	}

	switch ent {
	case entityMarket:
		if len(marketIDs) == 0 {
			return signal.CompiledAggregate{}, fieldErr(field+".market_ids", ErrMaterialization)
		}
	case entityPosition:
		if len(marketIDs) == 0 {
			return signal.CompiledAggregate{}, fieldErr(field+".market_ids", ErrMaterialization)
		}
		if len(scope.Addresses) == 0 {
			return signal.CompiledAggregate{}, fieldErr(field+".addresses", ErrMaterialization)
		}
	case entityEvent:
		// always materializable; markets/addresses optionally narrow it
	}

	return signal.CompiledAggregate{
		Aggregation: c.Aggregation,
		Metric:      c.Metric,
		Operator:    c.Operator,
		Value:       c.Value,
		ChainID:     chainID,
		MarketIDs:   marketIDs,
		Addresses:   scope.Addresses,
		Filters:     c.Filters,
		Window:      window,
	}, nil
}
