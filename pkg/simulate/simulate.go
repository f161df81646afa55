// Package simulate re-evaluates a signal offline at an arbitrary
// timestamp, sweeps a time range, and binary-searches for the first
// trigger. It composes pkg/eval, pkg/chain, and pkg/fetch with the
// evaluation clock pinned to the requested timestamp instead of
// wall-clock "now".
package simulate

import (
	"context"
	"fmt"
	"time"

	"github.com/monarch-xyz/sentinel/pkg/eval"
	"github.com/monarch-xyz/sentinel/pkg/signal"
)

// DefaultMaxSweepSteps bounds a Sweep's total point evaluations to
// bound RPC load.
const DefaultMaxSweepSteps = 2000

// Point is a single evaluation result produced by Evaluate or a Sweep
// step, stamped with the timestamp it was evaluated at.
type Point struct {
	At     time.Time
	Result eval.Result
}

// Simulator re-runs the evaluator with now pinned to an arbitrary
// point in time.
type Simulator struct {
	Evaluator *eval.Evaluator
}

// New constructs a Simulator over an existing Evaluator (shared
// Registry/Fetcher — the simulator is not a separate data path, only a
// pinned clock around the same evaluation engine).
func New(evaluator *eval.Evaluator) *Simulator {
	return &Simulator{Evaluator: evaluator}
}

// Evaluate runs one point evaluation of the AST at atTimestamp. Every
// condition's left/right numeric values surface through
// eval.Result.Traces, so a single-simple-condition signal's diagnostic
// display is a read over the first trace rather than a second code
// path.
func (s *Simulator) Evaluate(ctx context.Context, signalID string, chainID int64, windowDuration string, atTimestamp time.Time, ast signal.AST) eval.Result {
	return s.Evaluator.Evaluate(ctx, signalID, chainID, windowDuration, atTimestamp, ast)
}

// SweepOptions configures a Sweep.
type SweepOptions struct {
	Start    time.Time
	End      time.Time
	StepMs   int64
	MaxSteps int
}

// Sweep iterates t in [Start, End] by StepMs, invoking Evaluate at each
// point, capped at MaxSteps total evaluations.
func (s *Simulator) Sweep(ctx context.Context, signalID string, chainID int64, windowDuration string, ast signal.AST, opts SweepOptions) ([]Point, error) {
	if opts.StepMs <= 0 {
		return nil, fmt.Errorf("simulate: sweep step must be positive")
	}
	if !opts.End.After(opts.Start) && !opts.End.Equal(opts.Start) {
		return nil, fmt.Errorf("simulate: sweep end must not precede start")
	}
	maxSteps := opts.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSweepSteps
	}

	step := time.Duration(opts.StepMs) * time.Millisecond
	points := make([]Point, 0, maxSteps)
	for t := opts.Start; !t.After(opts.End); t = t.Add(step) {
		if len(points) >= maxSteps {
			break
		}
		result := s.Evaluate(ctx, signalID, chainID, windowDuration, t, ast)
		points = append(points, Point{At: t, Result: result})
		select {
		case <-ctx.Done():
			return points, ctx.Err()
		default:
		}
	}
	return points, nil
}

// FirstTrigger binary-searches [start, end] to precisionMs for the
// boundary where the signal first becomes triggered. Returns nil if
// end itself never
// triggers. If start already triggers, start is returned directly. The
// search narrows toward the low-trigger boundary: the invariant
// maintained is "low does not trigger (or is the initial start), high
// triggers".
func (s *Simulator) FirstTrigger(ctx context.Context, signalID string, chainID int64, windowDuration string, ast signal.AST, start, end time.Time, precisionMs int64) (*time.Time, error) {
	if precisionMs <= 0 {
		return nil, fmt.Errorf("simulate: precision must be positive")
	}
	if end.Before(start) {
		return nil, fmt.Errorf("simulate: end must not precede start")
	}

	endResult := s.Evaluate(ctx, signalID, chainID, windowDuration, end, ast)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !endResult.Triggered || !endResult.Conclusive {
		return nil, nil
	}

	startResult := s.Evaluate(ctx, signalID, chainID, windowDuration, start, ast)
	if startResult.Triggered && startResult.Conclusive {
		t := start
		return &t, nil
	}

	lo, hi := start, end
	precision := time.Duration(precisionMs) * time.Millisecond
	for hi.Sub(lo) > precision {
		mid := lo.Add(hi.Sub(lo) / 2)
		result := s.Evaluate(ctx, signalID, chainID, windowDuration, mid, ast)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if result.Triggered && result.Conclusive {
			hi = mid
		} else {
			lo = mid
		}
	}
	return &hi, nil
}
