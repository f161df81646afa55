package chain

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/monarch-xyz/sentinel/pkg/obs"
)

const maxBinarySearchIterations = 50

// cacheKey is (chain, second): block lookups cache at second
// precision.
type cacheKey struct {
	chainID   int64
	timestamp int64
}

// Resolver maps (chain, timestamp) to a block number. The LRU is
// shared and concurrency-safe across every evaluator goroutine.
type Resolver struct {
	cfg   Config
	cache *lru.Cache[cacheKey, int64]

	mu   sync.Mutex
	sets map[int64]*endpointSet
}

// New constructs a Resolver, defaulting CacheSize when unset.
func New(cfg Config) (*Resolver, error) {
	for _, cc := range cfg.Chains {
		if err := cc.validate(); err != nil {
			return nil, err
		}
	}
	size := cfg.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[cacheKey, int64](size)
	if err != nil {
		return nil, fmt.Errorf("chain: build LRU cache: %w", err)
	}
	return &Resolver{cfg: cfg, cache: cache, sets: make(map[int64]*endpointSet)}, nil
}

func (r *Resolver) endpointSetFor(chainID int64) (*endpointSet, ChainConfig, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cc, ok := r.cfg.chainByID(chainID)
	if !ok {
		return nil, ChainConfig{}, false
	}
	set, ok := r.sets[chainID]
	if !ok {
		set = newEndpointSet(cc)
		r.sets[chainID] = set
	}
	return set, cc, true
}

// Resolve returns a block number at or before targetTimestamp (unix
// seconds) for chainID. Edge cases: timestamp at or before genesis
// returns block 0; at or after the latest block returns the latest
// block number. An unsupported chain id always falls back to the
// linear estimator (cannot RPC a chain it has no config for).
func (r *Resolver) Resolve(ctx context.Context, chainID int64, targetTimestamp int64) (int64, error) {
	key := cacheKey{chainID: chainID, timestamp: targetTimestamp}
	if v, ok := r.cache.Get(key); ok {
		obs.BlockResolverCacheHits.Inc()
		return v, nil
	}
	obs.BlockResolverCacheMisses.Inc()

	set, cc, ok := r.endpointSetFor(chainID)
	if !ok {
		block := estimateBlock(ChainConfig{}, targetTimestamp, 0, 0)
		r.cache.Add(key, block)
		return block, nil
	}
	if targetTimestamp <= cc.GenesisTimestamp {
		r.cache.Add(key, 0)
		return 0, nil
	}

	latestNumber, latestTimestamp, err := set.latest(ctx)
	if err != nil {
		slog.Warn("block resolver: RPC unavailable, using fallback estimator",
			"chain_id", chainID, "error", err)
		block := estimateBlock(cc, targetTimestamp, 0, 0)
		r.cache.Add(key, block)
		return block, nil
	}
	if targetTimestamp >= latestTimestamp {
		r.cache.Add(key, latestNumber)
		return latestNumber, nil
	}

	block, err := r.binarySearch(ctx, set, cc, targetTimestamp, latestNumber, latestTimestamp)
	if err != nil {
		slog.Warn("block resolver: binary search failed, using fallback estimator",
			"chain_id", chainID, "error", err)
		block = estimateBlock(cc, targetTimestamp, latestNumber, latestTimestamp)
	}
	r.cache.Add(key, block)
	return block, nil
}

// binarySearch narrows [0, latestNumber] toward the highest block whose
// timestamp is <= target, seeded by a block-time estimate, capped at 50
// RPC round trips.
func (r *Resolver) binarySearch(ctx context.Context, set *endpointSet, cc ChainConfig, target, latestNumber, latestTimestamp int64) (int64, error) {
	lo, hi := int64(0), latestNumber
	seed := estimateBlock(cc, target, latestNumber, latestTimestamp)
	if seed < lo {
		seed = lo
	}
	if seed > hi {
		seed = hi
	}

	best := int64(0)
	mid := seed
	for i := 0; i < maxBinarySearchIterations && lo <= hi; i++ {
		ts, err := set.byNumber(ctx, mid)
		if err != nil {
			return 0, err
		}
		if ts <= target {
			best = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
		mid = lo + (hi-lo)/2
	}
	return best, nil
}

// estimateBlock walks back from a known (or assumed-zero) reference
// point using the chain's average block time — the linear-extrapolation
// fallback when every RPC endpoint fails, and the seed for the binary
// search.
func estimateBlock(cc ChainConfig, target, refNumber, refTimestamp int64) int64 {
	if cc.AverageBlockTime <= 0 {
		return 0
	}
	if refNumber == 0 && refTimestamp == 0 {
		if target <= cc.GenesisTimestamp {
			return 0
		}
		elapsed := float64(target - cc.GenesisTimestamp)
		return int64(elapsed / cc.AverageBlockTime)
	}
	deltaSeconds := float64(target - refTimestamp)
	deltaBlocks := int64(deltaSeconds / cc.AverageBlockTime)
	estimate := refNumber + deltaBlocks
	if estimate < 0 {
		return 0
	}
	return estimate
}
