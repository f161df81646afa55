package fetch

import "errors"

// Error kinds the fetcher surfaces to the evaluator. The evaluator
// converts any of these into an inconclusive verdict — it never
// substitutes zero for a failed read.
var (
	// ErrFetchConfig is raised when a required filter is missing at
	// fetch time, e.g. marketId absent for a Market RPC read.
	ErrFetchConfig = errors.New("fetch: required filter missing")
	// ErrIndexQuery wraps an event-index request failure.
	ErrIndexQuery = errors.New("fetch: event index query failed")
	// ErrRPCQuery wraps a chain RPC read failure on all endpoints.
	ErrRPCQuery = errors.New("fetch: chain rpc read failed")
)
