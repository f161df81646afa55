// Package fetch serves the evaluator's data reads: "current" state
// from the GraphQL event index, point-in-time state from chain RPC at
// a resolved block, and all event aggregation from the index. It is
// the sole concrete implementation of pkg/eval.Fetcher this module
// ships.
package fetch

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/monarch-xyz/sentinel/pkg/chain"
	"github.com/monarch-xyz/sentinel/pkg/signal"
)

// Config wires a Fetcher's four collaborators: the event index, one
// RPC endpoint per chain for `eth_call` reads, the static Morpho
// market-contract address per chain, and the shared block resolver
// used to turn a timestamp into a block number.
type Config struct {
	IndexEndpoint   string
	IndexHTTPClient *http.Client
	RPCEndpoints    map[int64]string
	MarketContracts map[int64]common.Address
	Resolver        *chain.Resolver
}

// Fetcher implements pkg/eval.Fetcher.
type Fetcher struct {
	index    *IndexClient
	rpc      *rpcReader
	resolver *chain.Resolver
}

// New constructs a Fetcher, dialing one RPC client per configured chain.
func New(cfg Config) (*Fetcher, error) {
	rpc, err := newRPCReader(cfg.RPCEndpoints, cfg.MarketContracts)
	if err != nil {
		return nil, err
	}
	httpClient := cfg.IndexHTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Fetcher{
		index:    NewIndexClient(cfg.IndexEndpoint, httpClient),
		rpc:      rpc,
		resolver: cfg.Resolver,
	}, nil
}

// FetchState implements pkg/eval.Fetcher.
func (f *Fetcher) FetchState(ctx context.Context, chainID int64, ref signal.StateRef, timestamp *time.Time) (float64, error) {
	if timestamp == nil {
		return f.index.FetchCurrentState(ctx, chainID, ref)
	}

	block, err := f.resolver.Resolve(ctx, chainID, timestamp.Unix())
	if err != nil {
		return 0, fmt.Errorf("%w: resolve block: %v", ErrRPCQuery, err)
	}

	marketID, address := extractMarketAndUser(ref.Filters)
	switch ref.Entity {
	case signal.EntityMarket:
		if marketID == "" {
			return 0, fmt.Errorf("%w: market read requires a marketId filter", ErrFetchConfig)
		}
		return f.rpc.readMarket(ctx, chainID, marketID, block, ref.Field)
	case signal.EntityPosition:
		if marketID == "" {
			return 0, fmt.Errorf("%w: position read requires a marketId filter", ErrFetchConfig)
		}
		return f.rpc.readPosition(ctx, chainID, marketID, address, block, ref.Field)
	default:
		return 0, fmt.Errorf("%w: unrecognized entity %q", ErrFetchConfig, ref.Entity)
	}
}

// FetchEvents implements pkg/eval.Fetcher — always routed to the index.
func (f *Fetcher) FetchEvents(ctx context.Context, chainID int64, ref signal.EventRef, start, end time.Time) (float64, error) {
	return f.index.FetchEvents(ctx, chainID, ref, start, end)
}

func extractMarketAndUser(filters []signal.Filter) (marketID, address string) {
	for _, f := range filters {
		switch f.Field {
		case "marketId":
			if s, ok := f.Value.(string); ok {
				marketID = s
			}
		case "user":
			if s, ok := f.Value.(string); ok {
				address = s
			}
		}
	}
	return marketID, address
}
