package fetch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monarch-xyz/sentinel/pkg/signal"
)

func TestBuildWhereInjectsChainAndTimestampRange(t *testing.T) {
	start := time.Unix(1000, 0)
	end := time.Unix(2000, 0)
	where := buildWhere(1, []signal.Filter{{Field: "marketId", Op: signal.FilterEq, Value: "m1"}}, &start, &end)
	assert.Contains(t, where, `chainId: {_eq: 1}`)
	assert.Contains(t, where, `marketId: {_eq: "m1"}`)
	assert.Contains(t, where, `timestamp: {_gte: 1000}`)
	assert.Contains(t, where, `timestamp: {_lt: 2000}`)
}

func TestReduceEventsAggregations(t *testing.T) {
	values := []float64{10, 20, 30}
	assert.Equal(t, 60.0, reduceEvents(signal.AggSum, values))
	assert.Equal(t, 20.0, reduceEvents(signal.AggAvg, values))
	assert.Equal(t, 10.0, reduceEvents(signal.AggMin, values))
	assert.Equal(t, 30.0, reduceEvents(signal.AggMax, values))
	assert.Equal(t, 3.0, reduceEvents(signal.AggCount, values))
	assert.Equal(t, 0.0, reduceEvents(signal.AggSum, nil))
	assert.Equal(t, 0.0, reduceEvents(signal.AggCount, nil))
}

func fakeIndex(t *testing.T, data map[string]interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(map[string]interface{}{"data": data}))
	}))
}

func TestFetchCurrentStateReadsFirstRow(t *testing.T) {
	srv := fakeIndex(t, map[string]interface{}{
		"markets": []map[string]interface{}{{"totalBorrowAssets": 2_000_000.0}},
	})
	defer srv.Close()

	ix := NewIndexClient(srv.URL, srv.Client())
	ref := signal.StateRef{Entity: signal.EntityMarket, Field: "totalBorrowAssets", Snapshot: signal.SnapshotCurrent,
		Filters: []signal.Filter{{Field: "marketId", Op: signal.FilterEq, Value: "m1"}}}

	v, err := ix.FetchCurrentState(context.Background(), 1, ref)
	require.NoError(t, err)
	assert.Equal(t, 2_000_000.0, v)
}

func TestFetchCurrentStateEmptyResultYieldsZero(t *testing.T) {
	srv := fakeIndex(t, map[string]interface{}{"markets": []map[string]interface{}{}})
	defer srv.Close()

	ix := NewIndexClient(srv.URL, srv.Client())
	ref := signal.StateRef{Entity: signal.EntityMarket, Field: "totalBorrowAssets"}
	v, err := ix.FetchCurrentState(context.Background(), 1, ref)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)
}

func TestFetchEventsSumsRows(t *testing.T) {
	srv := fakeIndex(t, map[string]interface{}{
		"Morpho_Supply": []map[string]interface{}{{"assets": 100.0}, {"assets": 50.0}},
	})
	defer srv.Close()

	ix := NewIndexClient(srv.URL, srv.Client())
	ref := signal.EventRef{EventType: "Supply", Field: "assets", Aggregation: signal.AggSum}
	v, err := ix.FetchEvents(context.Background(), 1, ref, time.Unix(0, 0), time.Unix(1000, 0))
	require.NoError(t, err)
	assert.Equal(t, 150.0, v)
}
