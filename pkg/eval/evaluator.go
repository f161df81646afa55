package eval

import (
	"context"
	"fmt"
	"time"

	"github.com/monarch-xyz/sentinel/pkg/compile"
	"github.com/monarch-xyz/sentinel/pkg/duration"
	"github.com/monarch-xyz/sentinel/pkg/metrics"
	"github.com/monarch-xyz/sentinel/pkg/signal"
)

// Result is the verdict of one signal evaluation. A non-conclusive
// result (a fetch failed somewhere in the tree) must never trigger a
// notification, regardless of Triggered.
type Result struct {
	SignalID   string
	Triggered  bool
	Timestamp  time.Time
	Conclusive bool
	Error      string
	Traces     []ConditionTrace
}

// ConditionTrace is per-condition telemetry: each compiled condition's
// verdict plus, where meaningful, the left/right numeric values.
type ConditionTrace struct {
	Index     int
	Kind      string // "simple", "group", "aggregate"
	Triggered bool
	Left      *float64
	Right     *float64
}

// Evaluator is the top-level signal evaluator. It owns the registry
// reference needed to re-derive aggregate target expressions.
type Evaluator struct {
	Registry *metrics.Registry
	Fetcher  Fetcher
}

// NewEvaluator constructs an Evaluator for the given registry and fetcher.
func NewEvaluator(registry *metrics.Registry, fetcher Fetcher) *Evaluator {
	return &Evaluator{Registry: registry, Fetcher: fetcher}
}

// Evaluate walks every compiled condition and combines results by
// ast.Logic, short-circuiting AND on the first false and OR on the
// first true.
func (e *Evaluator) Evaluate(ctx context.Context, signalID string, chainID int64, windowDuration string, now time.Time, ast signal.AST) Result {
	windowMs, err := duration.Parse(windowDuration)
	if err != nil {
		return Result{SignalID: signalID, Timestamp: now, Conclusive: false, Error: err.Error()}
	}
	windowStart := now.Add(-time.Duration(windowMs) * time.Millisecond)
	ec := &Context{ChainID: chainID, Now: now, WindowStart: windowStart, Fetcher: e.Fetcher}

	traces := make([]ConditionTrace, 0, len(ast.Conditions))
	for i, cc := range ast.Conditions {
		triggered, trace, err := e.evalCondition(ctx, ec, cc)
		if err != nil {
			return Result{SignalID: signalID, Timestamp: now, Conclusive: false, Error: err.Error(), Traces: traces}
		}
		trace.Index = i
		traces = append(traces, trace)

		if ast.Logic == signal.LogicAND && !triggered {
			return Result{SignalID: signalID, Triggered: false, Timestamp: now, Conclusive: true, Traces: traces}
		}
		if ast.Logic == signal.LogicOR && triggered {
			return Result{SignalID: signalID, Triggered: true, Timestamp: now, Conclusive: true, Traces: traces}
		}
	}

	// Loop completed without short-circuiting: AND never saw a false
	// (vacuously true for an empty condition list), OR never saw a true.
	final := ast.Logic == signal.LogicAND
	return Result{SignalID: signalID, Triggered: final, Timestamp: now, Conclusive: true, Traces: traces}
}

func (e *Evaluator) evalCondition(ctx context.Context, ec *Context, cc signal.CompiledCondition) (bool, ConditionTrace, error) {
	switch c := cc.(type) {
	case signal.Simple:
		return e.evalSimple(ctx, ec, c)
	case signal.CompiledGroup:
		return e.evalGroup(ctx, ec, c)
	case signal.CompiledAggregate:
		return e.evalAggregate(ctx, ec, c)
	default:
		return false, ConditionTrace{}, fmt.Errorf("eval: unrecognized compiled condition %T", cc)
	}
}

func (e *Evaluator) evalSimple(ctx context.Context, ec *Context, s signal.Simple) (bool, ConditionTrace, error) {
	shadowed, err := ec.WithWindow(s.Window)
	if err != nil {
		return false, ConditionTrace{}, err
	}
	triggered, l, r, err := EvaluateCondition(ctx, shadowed, s.Left, s.Operator, s.Right)
	if err != nil {
		return false, ConditionTrace{}, err
	}
	return triggered, ConditionTrace{Kind: "simple", Triggered: triggered, Left: &l, Right: &r}, nil
}

// evalGroup implements group N-of-M evaluation with short-circuiting:
// stop as soon as the outcome is decided, so the fetcher is invoked at
// most requirement.of address passes and often fewer.
func (e *Evaluator) evalGroup(ctx context.Context, ec *Context, g signal.CompiledGroup) (bool, ConditionTrace, error) {
	shadowed, err := ec.WithWindow(g.Window)
	if err != nil {
		return false, ConditionTrace{}, err
	}

	triggeredCount := 0
	remaining := len(g.Addresses)
	for _, addr := range g.Addresses {
		remaining--
		ok, err := e.evalGroupAddress(ctx, shadowed, g, addr)
		if err != nil {
			return false, ConditionTrace{}, err
		}
		if ok {
			triggeredCount++
		}
		if triggeredCount >= g.Requirement.Count {
			return true, ConditionTrace{Kind: "group", Triggered: true}, nil
		}
		if triggeredCount+remaining < g.Requirement.Count {
			return false, ConditionTrace{Kind: "group", Triggered: false}, nil
		}
	}
	triggered := triggeredCount >= g.Requirement.Count
	return triggered, ConditionTrace{Kind: "group", Triggered: triggered}, nil
}

func (e *Evaluator) evalGroupAddress(ctx context.Context, ec *Context, g signal.CompiledGroup, addr string) (bool, error) {
	results := make([]bool, 0, len(g.PerAddressConditions))
	for _, inner := range g.PerAddressConditions {
		cloned := signal.Simple{
			Left:     signal.WithUserFilter(inner.Left, addr),
			Operator: inner.Operator,
			Right:    signal.WithUserFilter(inner.Right, addr),
			Window:   inner.Window,
		}
		triggered, _, err := e.evalSimple(ctx, ec, cloned)
		if err != nil {
			return false, err
		}
		results = append(results, triggered)
	}
	return combineLogic(g.Logic, results), nil
}

// evalAggregate enumerates targets by the metric's entity kind,
// evaluates a fresh expression per target, reduces by Aggregation, and
// compares against Value.
func (e *Evaluator) evalAggregate(ctx context.Context, ec *Context, agg signal.CompiledAggregate) (bool, ConditionTrace, error) {
	shadowed, err := ec.WithWindow(agg.Window)
	if err != nil {
		return false, ConditionTrace{}, err
	}

	kind, err := compile.ClassifyMetricTargets(e.Registry, agg.Metric)
	if err != nil {
		return false, ConditionTrace{}, err
	}

	targets := enumerateTargets(kind, agg.MarketIDs, agg.Addresses)
	values := make([]float64, 0, len(targets))
	for _, tgt := range targets {
		expr, err := compile.MetricExpression(e.Registry, agg.Metric, tgt.market, tgt.address, agg.Window, agg.Filters)
		if err != nil {
			return false, ConditionTrace{}, err
		}
		if kind == compile.TargetEvent && tgt.address != "" {
			// Event refs only carry target filters the builder injects for
			// state reads; the per-address constraint is overlaid here.
			expr = signal.WithUserFilter(expr, tgt.address)
		}
		v, err := EvaluateNode(ctx, shadowed, expr)
		if err != nil {
			return false, ConditionTrace{}, err
		}
		values = append(values, v)
	}

	reduced := reduce(agg.Aggregation, values)
	triggered := compare(agg.Operator, reduced, agg.Value)
	r := agg.Value
	return triggered, ConditionTrace{Kind: "aggregate", Triggered: triggered, Left: &reduced, Right: &r}, nil
}

type target struct {
	market  string
	address string
}

func enumerateTargets(kind compile.TargetKind, marketIDs, addresses []string) []target {
	switch kind {
	case compile.TargetMarket:
		out := make([]target, 0, len(marketIDs))
		for _, m := range marketIDs {
			out = append(out, target{market: m})
		}
		return out
	case compile.TargetPosition:
		out := make([]target, 0, len(marketIDs)*len(addresses))
		for _, m := range marketIDs {
			for _, a := range addresses {
				out = append(out, target{market: m, address: a})
			}
		}
		return out
	case compile.TargetEvent:
		ms := marketIDs
		if len(ms) == 0 {
			ms = []string{""}
		}
		as := addresses
		if len(as) == 0 {
			as = []string{""}
		}
		out := make([]target, 0, len(ms)*len(as))
		for _, m := range ms {
			for _, a := range as {
				out = append(out, target{market: m, address: a})
			}
		}
		return out
	default:
		return nil
	}
}

func reduce(agg signal.Aggregation, values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	switch agg {
	case signal.AggSum:
		var sum float64
		for _, v := range values {
			sum += v
		}
		return sum
	case signal.AggAvg:
		var sum float64
		for _, v := range values {
			sum += v
		}
		return sum / float64(len(values))
	case signal.AggMin:
		min := values[0]
		for _, v := range values[1:] {
			if v < min {
				min = v
			}
		}
		return min
	case signal.AggMax:
		max := values[0]
		for _, v := range values[1:] {
			if v > max {
				max = v
			}
		}
		return max
	case signal.AggCount:
		return float64(len(values))
	default:
		return 0
	}
}

func combineLogic(logic signal.Logic, results []bool) bool {
	if logic == signal.LogicOR {
		for _, r := range results {
			if r {
				return true
			}
		}
		return false
	}
	for _, r := range results {
		if !r {
			return false
		}
	}
	return true
}
