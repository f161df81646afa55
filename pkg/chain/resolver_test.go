package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeChain serves eth_getBlockByNumber over JSON-RPC 2.0 backed by a
// deterministic block->timestamp table, one second per block starting
// at genesis+1 — enough to exercise the binary search without a live
// node.
func fakeChain(t *testing.T, genesis int64, blockCount int64) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
			Params []any           `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		var number int64
		tag, _ := req.Params[0].(string)
		if tag == "latest" {
			number = blockCount
		} else {
			n, err := parseHexInt(tag)
			require.NoError(t, err)
			number = n
			if number > blockCount {
				number = blockCount
			}
		}
		timestamp := genesis + number + 1

		resp := map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": map[string]string{
				"number":    fmt.Sprintf("0x%x", number),
				"timestamp": fmt.Sprintf("0x%x", timestamp),
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	})
	return httptest.NewServer(mux)
}

func testConfig(t *testing.T, genesis int64, blockCount int64) Config {
	srv := fakeChain(t, genesis, blockCount)
	t.Cleanup(srv.Close)
	return Config{
		Chains: []ChainConfig{
			{ChainID: 1, GenesisTimestamp: genesis, AverageBlockTime: 1, Endpoints: []string{srv.URL}},
		},
	}
}

func TestResolverGenesisEdge(t *testing.T) {
	genesis := int64(1_000_000)
	r, err := New(testConfig(t, genesis, 1000))
	require.NoError(t, err)

	block, err := r.Resolve(context.Background(), 1, genesis)
	require.NoError(t, err)
	assert.Equal(t, int64(0), block)

	block, err = r.Resolve(context.Background(), 1, genesis-10)
	require.NoError(t, err)
	assert.Equal(t, int64(0), block)
}

func TestResolverLatestEdge(t *testing.T) {
	genesis := int64(1_000_000)
	r, err := New(testConfig(t, genesis, 1000))
	require.NoError(t, err)

	block, err := r.Resolve(context.Background(), 1, genesis+100_000)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), block)
}

func TestResolverBinarySearch(t *testing.T) {
	genesis := int64(1_000_000)
	r, err := New(testConfig(t, genesis, 1000))
	require.NoError(t, err)

	// block N has timestamp genesis+N+1; asking for genesis+500 should
	// resolve to block 499 (last block whose timestamp <= target).
	block, err := r.Resolve(context.Background(), 1, genesis+500)
	require.NoError(t, err)
	assert.Equal(t, int64(499), block)
}

func TestResolverMonotonicInTimestamp(t *testing.T) {
	genesis := int64(1_000_000)
	r, err := New(testConfig(t, genesis, 1000))
	require.NoError(t, err)

	prev := int64(-1)
	for _, offset := range []int64{10, 100, 200, 500, 900} {
		block, err := r.Resolve(context.Background(), 1, genesis+offset)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, block, prev)
		prev = block
	}
}

func TestResolverUnsupportedChainFallsBackToEstimator(t *testing.T) {
	r, err := New(Config{Chains: []ChainConfig{
		{ChainID: 1, GenesisTimestamp: 0, AverageBlockTime: 1, Endpoints: []string{"http://127.0.0.1:0"}},
	}})
	require.NoError(t, err)

	block, err := r.Resolve(context.Background(), 999, 500)
	require.NoError(t, err)
	assert.Equal(t, int64(0), block)
}

func TestResolverCachesResult(t *testing.T) {
	genesis := int64(1_000_000)
	cfg := testConfig(t, genesis, 1000)
	r, err := New(cfg)
	require.NoError(t, err)

	block1, err := r.Resolve(context.Background(), 1, genesis+500)
	require.NoError(t, err)
	block2, err := r.Resolve(context.Background(), 1, genesis+500)
	require.NoError(t, err)
	assert.Equal(t, block1, block2)
	assert.Equal(t, 1, r.cache.Len())
}
