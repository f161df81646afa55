// Package eval walks compiled condition trees and renders a verdict
// per signal. Tree walking here is pure CPU work; every suspension
// point is behind the Fetcher interface.
package eval

import (
	"context"
	"time"

	"github.com/monarch-xyz/sentinel/pkg/signal"
)

// Fetcher is the two-method data access contract the evaluator depends
// on. FetchState with a nil timestamp means "current".
// Implementations route current state to the event index and
// point-in-time state to chain RPC at a resolved block; FetchEvents
// always goes to the event index.
type Fetcher interface {
	FetchState(ctx context.Context, chainID int64, ref signal.StateRef, timestamp *time.Time) (float64, error)
	FetchEvents(ctx context.Context, chainID int64, ref signal.EventRef, start, end time.Time) (float64, error)
}
