package compile

import (
	"fmt"

	"github.com/monarch-xyz/sentinel/pkg/metrics"
	"github.com/monarch-xyz/sentinel/pkg/signal"
)

// metricEntity classifies which scope dimensions a metric ultimately
// reads from, independent of Kind: a computed metric inherits its
// entity from its first operand.
type metricEntity int

const (
	entityNone metricEntity = iota
	entityPosition
	entityMarket
	entityEvent
)

// TargetKind classifies how an aggregate's metric enumerates targets:
// one per market, a markets-by-addresses cross product, or a
// markets-by-addresses cross product that may include the empty set.
type TargetKind int

const (
	TargetNone TargetKind = iota
	TargetMarket
	TargetPosition
	TargetEvent
)

// ClassifyMetricTargets exposes classify for consumers outside this
// package (the aggregate evaluator needs it to enumerate targets).
func ClassifyMetricTargets(reg *metrics.Registry, metricName string) (TargetKind, error) {
	d, ok := reg.Get(metricName)
	if !ok {
		return TargetNone, fmt.Errorf("%w: %q", ErrUnknownMetric, metricName)
	}
	switch classify(reg, d) {
	case entityMarket:
		return TargetMarket, nil
	case entityPosition:
		return TargetPosition, nil
	case entityEvent:
		return TargetEvent, nil
	default:
		return TargetNone, fmt.Errorf("metric %q has no resolvable target kind", metricName)
	}
}

// MetricExpression builds the ExpressionNode for a single concrete
// target (market/address pair) of any metric kind, at the "current"
// snapshot — used by the aggregate evaluator to build one fresh
// expression per enumerated target.
func MetricExpression(reg *metrics.Registry, metricName, marketID, address, window string, filters []signal.Filter) (signal.ExpressionNode, error) {
	expr, _, err := buildMetricExpr(reg, metricName, marketID, address, window, filters)
	return expr, err
}

func classify(reg *metrics.Registry, d metrics.Descriptor) metricEntity {
	switch d.Kind {
	case metrics.KindState:
		if d.Entity == signal.EntityPosition {
			return entityPosition
		}
		return entityMarket
	case metrics.KindComputed:
		op, ok := reg.Get(d.Operands[0])
		if !ok {
			return entityNone
		}
		return classify(reg, op)
	case metrics.KindEvent, metrics.KindChainedEvent:
		return entityEvent
	default:
		return entityNone
	}
}

// buildStateExpr resolves a state or computed metric into an
// ExpressionNode rooted in StateRef leaves. It rejects event/chained_event
// metrics — those are only reachable through buildEventExpr.
func buildStateExpr(reg *metrics.Registry, metricName, marketID, address, snapshot string) (signal.ExpressionNode, error) {
	d, ok := reg.Get(metricName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, metricName)
	}
	switch d.Kind {
	case metrics.KindState:
		return stateRefFor(d, marketID, address, snapshot), nil
	case metrics.KindComputed:
		left, err := buildStateExpr(reg, d.Operands[0], marketID, address, snapshot)
		if err != nil {
			return nil, err
		}
		right, err := buildStateExpr(reg, d.Operands[1], marketID, address, snapshot)
		if err != nil {
			return nil, err
		}
		op := signal.BinSub
		if d.Computation == metrics.ComputationRatio {
			op = signal.BinDiv
		}
		return signal.BinaryExpression{Operator: op, Left: left, Right: right}, nil
	default:
		return nil, fmt.Errorf("metric %q is an event metric, not state-compatible", metricName)
	}
}

func stateRefFor(d metrics.Descriptor, marketID, address, snapshot string) signal.StateRef {
	var filters []signal.Filter
	if marketID != "" {
		filters = append(filters, signal.Filter{Field: "marketId", Op: signal.FilterEq, Value: marketID})
	}
	if d.Entity == signal.EntityPosition && address != "" {
		filters = append(filters, signal.Filter{Field: "user", Op: signal.FilterEq, Value: address})
	}
	return signal.StateRef{Entity: d.Entity, Filters: filters, Field: d.Field, Snapshot: snapshot}
}

// buildEventExpr resolves an event or chained_event metric into an
// ExpressionNode rooted in EventRef leaves.
func buildEventExpr(reg *metrics.Registry, metricName, marketID, window string, userFilters []signal.Filter) (signal.ExpressionNode, error) {
	d, ok := reg.Get(metricName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, metricName)
	}
	switch d.Kind {
	case metrics.KindEvent:
		return eventRefFor(d, marketID, window, userFilters), nil
	case metrics.KindChainedEvent:
		left, err := buildEventExpr(reg, d.ChainedOperands[0], marketID, window, userFilters)
		if err != nil {
			return nil, err
		}
		right, err := buildEventExpr(reg, d.ChainedOperands[1], marketID, window, userFilters)
		if err != nil {
			return nil, err
		}
		op := signal.BinAdd
		if d.ChainedOperation == metrics.ChainedSub {
			op = signal.BinSub
		}
		return signal.BinaryExpression{Operator: op, Left: left, Right: right}, nil
	default:
		return nil, fmt.Errorf("metric %q is a state metric, not event-compatible", metricName)
	}
}

func eventRefFor(d metrics.Descriptor, marketID, window string, userFilters []signal.Filter) signal.EventRef {
	filters := make([]signal.Filter, 0, len(userFilters)+1)
	filters = append(filters, userFilters...)
	if marketID != "" {
		filters = append(filters, signal.Filter{Field: "marketId", Op: signal.FilterEq, Value: marketID})
	}
	return signal.EventRef{EventType: d.EventType, Filters: filters, Field: d.Field, Aggregation: d.Aggregation, Window: window}
}

// buildMetricExpr resolves any metric kind (state, computed, event,
// chained_event) into an ExpressionNode at the "current" snapshot —
// used by Threshold and Aggregate conditions, which never reference
// window_start directly (that's Change's job).
func buildMetricExpr(reg *metrics.Registry, metricName, marketID, address, window string, userFilters []signal.Filter) (signal.ExpressionNode, metricEntity, error) {
	d, ok := reg.Get(metricName)
	if !ok {
		return nil, entityNone, fmt.Errorf("%w: %q", ErrUnknownMetric, metricName)
	}
	ent := classify(reg, d)
	switch d.Kind {
	case metrics.KindState, metrics.KindComputed:
		expr, err := buildStateExpr(reg, metricName, marketID, address, signal.SnapshotCurrent)
		return expr, ent, err
	case metrics.KindEvent, metrics.KindChainedEvent:
		expr, err := buildEventExpr(reg, metricName, marketID, window, userFilters)
		return expr, ent, err
	default:
		return nil, entityNone, fmt.Errorf("metric %q has unrecognized kind %q", metricName, d.Kind)
	}
}
