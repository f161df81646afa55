package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
)

// blockHeader is the subset of `eth_getBlockByNumber`'s response this
// package reads; go-ethereum's own `types.Header` expects the full RLP
// shape, more than a hex-decoded JSON-RPC result can always satisfy, so
// this package decodes only number/timestamp directly.
type blockHeader struct {
	Number    string `json:"number"`
	Timestamp string `json:"timestamp"`
}

// endpointSet wraps one or more JSON-RPC clients for a single chain,
// dialed lazily and tried in configured order on failure. One set is
// shared by every evaluator goroutine, so the lazy dial is guarded.
type endpointSet struct {
	chainID int64
	urls    []string

	mu      sync.Mutex
	clients []*rpc.Client
}

func newEndpointSet(cfg ChainConfig) *endpointSet {
	return &endpointSet{chainID: cfg.ChainID, urls: cfg.Endpoints}
}

func (e *endpointSet) client(i int) (*rpc.Client, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.clients == nil {
		e.clients = make([]*rpc.Client, len(e.urls))
	}
	if e.clients[i] != nil {
		return e.clients[i], nil
	}
	c, err := rpc.Dial(e.urls[i])
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", e.urls[i], err)
	}
	e.clients[i] = c
	return c, nil
}

// latest fetches the latest block across configured endpoints, failing
// over in order.
func (e *endpointSet) latest(ctx context.Context) (number int64, timestamp int64, err error) {
	return e.byTag(ctx, "latest")
}

// byNumber fetches a specific block number, failing over across
// endpoints. Returns the block's unix-second timestamp.
func (e *endpointSet) byNumber(ctx context.Context, number int64) (timestamp int64, err error) {
	_, ts, err := e.byTag(ctx, hexBig(big.NewInt(number)))
	return ts, err
}

func (e *endpointSet) byTag(ctx context.Context, tag string) (number int64, timestamp int64, err error) {
	var lastErr error
	for i := range e.urls {
		client, derr := e.client(i)
		if derr != nil {
			lastErr = derr
			continue
		}
		callCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		var h blockHeader
		callErr := client.CallContext(callCtx, &h, "eth_getBlockByNumber", tag, false)
		cancel()
		if callErr != nil {
			lastErr = callErr
			slog.Warn("chain rpc call failed, trying next endpoint",
				"chain_id", e.chainID, "endpoint_index", i, "error", callErr)
			continue
		}
		n, perr := parseHexInt(h.Number)
		if perr != nil {
			lastErr = perr
			continue
		}
		ts, perr := parseHexInt(h.Timestamp)
		if perr != nil {
			lastErr = perr
			continue
		}
		return n, ts, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no RPC endpoints configured for chain %d", e.chainID)
	}
	return 0, 0, fmt.Errorf("chain %d: all endpoints failed: %w", e.chainID, lastErr)
}

func hexBig(n *big.Int) string {
	return fmt.Sprintf("0x%x", n)
}

func parseHexInt(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty hex integer")
	}
	n := new(big.Int)
	if _, ok := n.SetString(trimHexPrefix(s), 16); !ok {
		return 0, fmt.Errorf("malformed hex integer %q", s)
	}
	return n.Int64(), nil
}

func trimHexPrefix(s string) string {
	if len(s) > 1 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
