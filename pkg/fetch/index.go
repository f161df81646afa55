package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	graphql "github.com/hasura/go-graphql-client"

	"github.com/monarch-xyz/sentinel/pkg/signal"
)

// hasuraOperators translates the Filter operator set into Hasura's
// comparison-operator grammar.
var hasuraOperators = map[signal.FilterOp]string{
	signal.FilterEq:       "_eq",
	signal.FilterNeq:      "_neq",
	signal.FilterGt:       "_gt",
	signal.FilterGte:      "_gte",
	signal.FilterLt:       "_lt",
	signal.FilterLte:      "_lte",
	signal.FilterIn:       "_in",
	signal.FilterContains: "_ilike",
}

// entityTable maps a StateRef entity to the index's GraphQL root field.
var entityTable = map[signal.Entity]string{
	signal.EntityMarket:   "markets",
	signal.EntityPosition: "positions",
}

// IndexClient queries the Hasura-style GraphQL event index backing
// "current" state reads and all event aggregation.
type IndexClient struct {
	client *graphql.Client
}

// NewIndexClient builds an IndexClient against the given endpoint.
func NewIndexClient(endpoint string, httpClient *http.Client) *IndexClient {
	return &IndexClient{client: graphql.NewClient(endpoint, httpClient)}
}

// FetchCurrentState reads the currently indexed value of a state field
// via a filtered lookup on the entity table.
func (ix *IndexClient) FetchCurrentState(ctx context.Context, chainID int64, ref signal.StateRef) (float64, error) {
	table, ok := entityTable[ref.Entity]
	if !ok {
		return 0, fmt.Errorf("%w: unrecognized entity %q", ErrFetchConfig, ref.Entity)
	}
	where := buildWhere(chainID, ref.Filters, nil, nil)
	query := fmt.Sprintf(`query { %s(where: %s, limit: 1) { %s } }`, table, where, ref.Field)

	var resp map[string][]map[string]interface{}
	raw, err := ix.client.ExecRaw(ctx, query, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrIndexQuery, err)
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return 0, fmt.Errorf("%w: decode response: %v", ErrIndexQuery, err)
	}
	rows := resp[table]
	if len(rows) == 0 {
		return 0, nil
	}
	return toFloat(rows[0][ref.Field]), nil
}

// FetchEvents aggregates an event stream over [start, end) client-side,
// per ref.Aggregation.
func (ix *IndexClient) FetchEvents(ctx context.Context, chainID int64, ref signal.EventRef, start, end time.Time) (float64, error) {
	table := "Morpho_" + ref.EventType
	where := buildWhere(chainID, ref.Filters, &start, &end)
	query := fmt.Sprintf(`query { %s(where: %s) { %s } }`, table, where, ref.Field)

	var resp map[string][]map[string]interface{}
	raw, err := ix.client.ExecRaw(ctx, query, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrIndexQuery, err)
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return 0, fmt.Errorf("%w: decode response: %v", ErrIndexQuery, err)
	}
	rows := resp[table]
	values := make([]float64, 0, len(rows))
	for _, row := range rows {
		values = append(values, toFloat(row[ref.Field]))
	}
	return reduceEvents(ref.Aggregation, values), nil
}

func reduceEvents(agg signal.Aggregation, values []float64) float64 {
	if agg == signal.AggCount {
		return float64(len(values))
	}
	if len(values) == 0 {
		return 0
	}
	switch agg {
	case signal.AggSum:
		var sum float64
		for _, v := range values {
			sum += v
		}
		return sum
	case signal.AggAvg:
		var sum float64
		for _, v := range values {
			sum += v
		}
		return sum / float64(len(values))
	case signal.AggMin:
		min := values[0]
		for _, v := range values[1:] {
			if v < min {
				min = v
			}
		}
		return min
	case signal.AggMax:
		max := values[0]
		for _, v := range values[1:] {
			if v > max {
				max = v
			}
		}
		return max
	default:
		return 0
	}
}

// buildWhere renders a Hasura `where` object, injecting the reserved
// chainId constraint and, when start/end are given, a timestamp range
// (the index stores timestamps in seconds).
func buildWhere(chainID int64, filters []signal.Filter, start, end *time.Time) string {
	clauses := []string{fmt.Sprintf("chainId: {_eq: %d}", chainID)}
	for _, f := range filters {
		op, ok := hasuraOperators[f.Op]
		if !ok {
			continue
		}
		clauses = append(clauses, fmt.Sprintf("%s: {%s: %s}", f.Field, op, formatValue(f.Value)))
	}
	if start != nil {
		clauses = append(clauses, fmt.Sprintf("timestamp: {_gte: %d}", start.Unix()))
	}
	if end != nil {
		clauses = append(clauses, fmt.Sprintf("timestamp: {_lt: %d}", end.Unix()))
	}
	return "{" + strings.Join(clauses, ", ") + "}"
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return strconv.Quote(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case []string:
		parts := make([]string, len(val))
		for i, s := range val {
			parts[i] = strconv.Quote(s)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case []interface{}:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = formatValue(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return strconv.Quote(fmt.Sprintf("%v", val))
	}
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	default:
		return 0
	}
}
