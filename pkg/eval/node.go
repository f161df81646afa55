package eval

import (
	"context"
	"fmt"
	"time"

	"github.com/monarch-xyz/sentinel/pkg/duration"
	"github.com/monarch-xyz/sentinel/pkg/signal"
)

// Context is the per-evaluation environment threaded through tree
// walking: the chain being read, the evaluation clock, the window
// start derived from it, and the fetcher that serves leaf reads.
type Context struct {
	ChainID     int64
	Now         time.Time
	WindowStart time.Time
	Fetcher     Fetcher
}

// WithWindow returns a shallow copy of c with WindowStart recomputed
// from an override duration — used for a condition-level window
// override.
func (c *Context) WithWindow(window string) (*Context, error) {
	if window == "" {
		return c, nil
	}
	d, err := duration.ParseGoDuration(window)
	if err != nil {
		return nil, err
	}
	shadow := *c
	shadow.WindowStart = c.Now.Add(-d)
	return &shadow, nil
}

// EvaluateNode recursively evaluates an ExpressionNode to a numeric
// value. It never fabricates a value on missing data — fetch errors
// propagate to the caller, which the signal evaluator converts into an
// inconclusive verdict.
func EvaluateNode(ctx context.Context, ec *Context, node signal.ExpressionNode) (float64, error) {
	switch n := node.(type) {
	case signal.Constant:
		return n.Value, nil

	case signal.StateRef:
		ts, err := snapshotTimestamp(ec, n.Snapshot)
		if err != nil {
			return 0, fmt.Errorf("state ref %s.%s: %w", n.Entity, n.Field, err)
		}
		v, err := ec.Fetcher.FetchState(ctx, ec.ChainID, n, ts)
		if err != nil {
			return 0, err
		}
		return v, nil

	case signal.EventRef:
		start := ec.WindowStart
		if n.Window != "" {
			d, err := duration.ParseGoDuration(n.Window)
			if err != nil {
				return 0, fmt.Errorf("event ref %s window override: %w", n.EventType, err)
			}
			start = ec.Now.Add(-d)
		}
		v, err := ec.Fetcher.FetchEvents(ctx, ec.ChainID, n, start, ec.Now)
		if err != nil {
			return 0, err
		}
		return v, nil

	case signal.BinaryExpression:
		l, err := EvaluateNode(ctx, ec, n.Left)
		if err != nil {
			return 0, err
		}
		r, err := EvaluateNode(ctx, ec, n.Right)
		if err != nil {
			return 0, err
		}
		return applyBinary(n.Operator, l, r), nil

	default:
		return 0, fmt.Errorf("eval: unrecognized expression node %T", node)
	}
}

// snapshotTimestamp resolves a StateRef.Snapshot selector to a concrete
// point in time, or nil for "current". The compiler only ever emits
// "current"/"window_start", but the evaluator accepts any parseable
// duration string as forward-compat.
func snapshotTimestamp(ec *Context, snapshot string) (*time.Time, error) {
	switch snapshot {
	case "", signal.SnapshotCurrent:
		return nil, nil
	case signal.SnapshotWindowStart:
		t := ec.WindowStart
		return &t, nil
	default:
		d, err := duration.ParseGoDuration(snapshot)
		if err != nil {
			return nil, err
		}
		t := ec.Now.Add(-d)
		return &t, nil
	}
}

// applyBinary combines two evaluated operands. Division by zero yields
// 0 rather than an error or NaN/Inf — this evaluator never fabricates a
// trigger out of missing data, and an error here would be worse than a
// conservative zero.
func applyBinary(op signal.BinaryOp, l, r float64) float64 {
	switch op {
	case signal.BinAdd:
		return l + r
	case signal.BinSub:
		return l - r
	case signal.BinMul:
		return l * r
	case signal.BinDiv:
		if r == 0 {
			return 0
		}
		return l / r
	default:
		return 0
	}
}

// EvaluateCondition evaluates both sides of a comparison and applies
// the operator. Unknown operators yield false.
func EvaluateCondition(ctx context.Context, ec *Context, left signal.ExpressionNode, op signal.ComparisonOperator, right signal.ExpressionNode) (bool, float64, float64, error) {
	l, err := EvaluateNode(ctx, ec, left)
	if err != nil {
		return false, 0, 0, err
	}
	r, err := EvaluateNode(ctx, ec, right)
	if err != nil {
		return false, 0, 0, err
	}
	return compare(op, l, r), l, r, nil
}

// compare applies IEEE-754 double semantics directly: a NaN operand
// makes every ordering comparison false and neq true — NaN is neither
// equal nor ordered, with no special-casing needed.
func compare(op signal.ComparisonOperator, l, r float64) bool {
	switch op {
	case signal.OpGT:
		return l > r
	case signal.OpGTE:
		return l >= r
	case signal.OpLT:
		return l < r
	case signal.OpLTE:
		return l <= r
	case signal.OpEQ:
		return l == r
	case signal.OpNEQ:
		return l != r
	default:
		return false
	}
}
