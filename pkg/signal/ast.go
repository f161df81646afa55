package signal

import (
	"encoding/json"
	"fmt"
)

// ExpressionNode is the closed set of AST expression variants: Constant,
// StateRef, EventRef, BinaryExpression.
type ExpressionNode interface {
	expressionKind() string
	// Clone returns a deep, independent copy. Group expansion clones a
	// condition's expression trees once per address; clones never share
	// mutable state with their source.
	Clone() ExpressionNode
}

// Constant is a literal numeric value.
type Constant struct {
	Value float64 `json:"value"`
}

func (Constant) expressionKind() string  { return "constant" }
func (c Constant) Clone() ExpressionNode { return c }

// StateRef reads a field off an indexed entity at a point in time
// ("current", "window_start", or an arbitrary duration string evaluated
// as now-duration).
type StateRef struct {
	Entity   Entity   `json:"entity"`
	Filters  []Filter `json:"filters,omitempty"`
	Field    string   `json:"field"`
	Snapshot string   `json:"snapshot"`
}

func (StateRef) expressionKind() string { return "state_ref" }

func (s StateRef) Clone() ExpressionNode {
	clone := s
	clone.Filters = cloneFilters(s.Filters)
	return clone
}

// EventRef aggregates an event stream over a window.
type EventRef struct {
	EventType   string      `json:"event_type"`
	Filters     []Filter    `json:"filters,omitempty"`
	Field       string      `json:"field"`
	Aggregation Aggregation `json:"aggregation"`
	Window      string      `json:"window,omitempty"`
}

func (EventRef) expressionKind() string { return "event_ref" }

func (e EventRef) Clone() ExpressionNode {
	clone := e
	clone.Filters = cloneFilters(e.Filters)
	return clone
}

// BinaryExpression combines two expressions with an arithmetic operator.
type BinaryExpression struct {
	Operator BinaryOp       `json:"operator"`
	Left     ExpressionNode `json:"left"`
	Right    ExpressionNode `json:"right"`
}

func (BinaryExpression) expressionKind() string { return "binary" }

func (b BinaryExpression) Clone() ExpressionNode {
	return BinaryExpression{
		Operator: b.Operator,
		Left:     b.Left.Clone(),
		Right:    b.Right.Clone(),
	}
}

func cloneFilters(in []Filter) []Filter {
	if in == nil {
		return nil
	}
	out := make([]Filter, len(in))
	copy(out, in)
	return out
}

// WithUserFilter returns a clone of an ExpressionNode's filter set with any
// existing "user" filter replaced by address (used for group
// expansion). Only StateRef and EventRef carry filters; BinaryExpression
// recurses into both children; Constant is returned unchanged.
func WithUserFilter(node ExpressionNode, address string) ExpressionNode {
	switch n := node.(type) {
	case StateRef:
		clone := n.Clone().(StateRef)
		clone.Filters = overlayUserFilter(clone.Filters, address)
		return clone
	case EventRef:
		clone := n.Clone().(EventRef)
		clone.Filters = overlayUserFilter(clone.Filters, address)
		return clone
	case BinaryExpression:
		return BinaryExpression{
			Operator: n.Operator,
			Left:     WithUserFilter(n.Left, address),
			Right:    WithUserFilter(n.Right, address),
		}
	default:
		return node.Clone()
	}
}

func overlayUserFilter(filters []Filter, address string) []Filter {
	out := make([]Filter, 0, len(filters)+1)
	for _, f := range filters {
		if f.Field == "user" {
			continue
		}
		out = append(out, f)
	}
	out = append(out, Filter{Field: "user", Op: FilterEq, Value: address})
	return out
}

// CompiledCondition is the closed set of AST condition variants compiled
// from the DSL: Simple, CompiledGroup, CompiledAggregate.
type CompiledCondition interface {
	compiledKind() string
}

// Simple is a single comparison between two expression trees.
type Simple struct {
	Left     ExpressionNode     `json:"left"`
	Operator ComparisonOperator `json:"operator"`
	Right    ExpressionNode     `json:"right"`
	Window   string             `json:"window,omitempty"`
}

func (Simple) compiledKind() string { return "simple" }

// Clone returns a deep copy of a Simple condition, independent of the
// original's expression trees.
func (s Simple) Clone() Simple {
	return Simple{Left: s.Left.Clone(), Operator: s.Operator, Right: s.Right.Clone(), Window: s.Window}
}

// CompiledGroup is the compiled form of GroupCondition: a fixed address
// list, an N-of-M requirement, and per-address inner Simple conditions
// combined by Logic.
type CompiledGroup struct {
	Addresses            []string    `json:"addresses"`
	Requirement          Requirement `json:"requirement"`
	Logic                Logic       `json:"logic"`
	Window               string      `json:"window,omitempty"`
	PerAddressConditions []Simple    `json:"per_address_conditions"`
}

func (CompiledGroup) compiledKind() string { return "compiled_group" }

// CompiledAggregate is the compiled form of AggregateCondition.
type CompiledAggregate struct {
	Aggregation Aggregation        `json:"aggregation"`
	Metric      string             `json:"metric"`
	Operator    ComparisonOperator `json:"operator"`
	Value       float64            `json:"value"`
	ChainID     int64              `json:"chain_id"`
	MarketIDs   []string           `json:"market_ids,omitempty"`
	Addresses   []string           `json:"addresses,omitempty"`
	Filters     []Filter           `json:"filters,omitempty"`
	Window      string             `json:"window,omitempty"`
}

func (CompiledAggregate) compiledKind() string { return "compiled_aggregate" }

// AST is the compiled form of a Definition: a flattened list of compiled
// conditions plus the top-level combination logic.
type AST struct {
	Logic      Logic               `json:"logic"`
	Conditions []CompiledCondition `json:"conditions"`
}

// StoredDefinition is the on-disk/wire shape persisted for a signal:
// both the original DSL and its compiled AST, tagged with a schema
// version.
type StoredDefinition struct {
	Version int        `json:"version"`
	DSL     Definition `json:"dsl"`
	AST     AST        `json:"ast"`
}

// --- JSON encoding for the AST sum types ---

func marshalExpr(n ExpressionNode) (json.RawMessage, error) {
	var kind string
	switch n.(type) {
	case Constant:
		kind = "constant"
	case StateRef:
		kind = "state_ref"
	case EventRef:
		kind = "event_ref"
	case BinaryExpression:
		kind = "binary"
	default:
		return nil, fmt.Errorf("signal: unknown expression node %T", n)
	}
	body, err := json.Marshal(n)
	if err != nil {
		return nil, err
	}
	var merged map[string]any
	if err := json.Unmarshal(body, &merged); err != nil {
		return nil, err
	}
	merged["type"] = kind
	return json.Marshal(merged)
}

func unmarshalExpr(data []byte) (ExpressionNode, error) {
	var env conditionEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	switch env.Type {
	case "constant":
		var c Constant
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, err
		}
		return c, nil
	case "state_ref":
		var s StateRef
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		return s, nil
	case "event_ref":
		var e EventRef
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return e, nil
	case "binary":
		var raw struct {
			Operator BinaryOp        `json:"operator"`
			Left     json.RawMessage `json:"left"`
			Right    json.RawMessage `json:"right"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		left, err := unmarshalExpr(raw.Left)
		if err != nil {
			return nil, err
		}
		right, err := unmarshalExpr(raw.Right)
		if err != nil {
			return nil, err
		}
		return BinaryExpression{Operator: raw.Operator, Left: left, Right: right}, nil
	default:
		return nil, fmt.Errorf("signal: unknown expression type %q", env.Type)
	}
}

// MarshalJSON implements json.Marshaler for BinaryExpression, tagging
// each child with its "type" discriminant. Constant, StateRef and
// EventRef have no MarshalJSON of their own: marshalExpr encodes them
// from their struct tags, since they hold no nested ExpressionNode fields.
func (b BinaryExpression) MarshalJSON() ([]byte, error) {
	left, err := marshalExpr(b.Left)
	if err != nil {
		return nil, err
	}
	right, err := marshalExpr(b.Right)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Type     string          `json:"type"`
		Operator BinaryOp        `json:"operator"`
		Left     json.RawMessage `json:"left"`
		Right    json.RawMessage `json:"right"`
	}{"binary", b.Operator, left, right})
}

func marshalSimple(s Simple) (json.RawMessage, error) {
	left, err := marshalExpr(s.Left)
	if err != nil {
		return nil, err
	}
	right, err := marshalExpr(s.Right)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Left     json.RawMessage    `json:"left"`
		Operator ComparisonOperator `json:"operator"`
		Right    json.RawMessage    `json:"right"`
		Window   string             `json:"window,omitempty"`
	}{left, s.Operator, right, s.Window})
}

func unmarshalSimple(data []byte) (Simple, error) {
	var raw struct {
		Left     json.RawMessage    `json:"left"`
		Operator ComparisonOperator `json:"operator"`
		Right    json.RawMessage    `json:"right"`
		Window   string             `json:"window,omitempty"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Simple{}, err
	}
	left, err := unmarshalExpr(raw.Left)
	if err != nil {
		return Simple{}, err
	}
	right, err := unmarshalExpr(raw.Right)
	if err != nil {
		return Simple{}, err
	}
	return Simple{Left: left, Operator: raw.Operator, Right: right, Window: raw.Window}, nil
}

// MarshalCompiledCondition renders a CompiledCondition with its "type"
// discriminant.
func MarshalCompiledCondition(c CompiledCondition) (json.RawMessage, error) {
	switch v := c.(type) {
	case Simple:
		body, err := marshalSimple(v)
		if err != nil {
			return nil, err
		}
		return withType(body, "simple")
	case CompiledGroup:
		perAddr := make([]json.RawMessage, 0, len(v.PerAddressConditions))
		for _, s := range v.PerAddressConditions {
			raw, err := marshalSimple(s)
			if err != nil {
				return nil, err
			}
			perAddr = append(perAddr, raw)
		}
		body, err := json.Marshal(struct {
			Addresses            []string          `json:"addresses"`
			Requirement          Requirement       `json:"requirement"`
			Logic                Logic             `json:"logic"`
			Window               string            `json:"window,omitempty"`
			PerAddressConditions []json.RawMessage `json:"per_address_conditions"`
		}{v.Addresses, v.Requirement, v.Logic, v.Window, perAddr})
		if err != nil {
			return nil, err
		}
		return withType(body, "compiled_group")
	case CompiledAggregate:
		body, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return withType(body, "compiled_aggregate")
	default:
		return nil, fmt.Errorf("signal: unknown compiled condition %T", c)
	}
}

func withType(body []byte, kind string) (json.RawMessage, error) {
	var merged map[string]any
	if err := json.Unmarshal(body, &merged); err != nil {
		return nil, err
	}
	merged["type"] = kind
	return json.Marshal(merged)
}

// UnmarshalCompiledCondition decodes a JSON compiled-condition object into
// its concrete variant.
func UnmarshalCompiledCondition(data []byte) (CompiledCondition, error) {
	var env conditionEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	switch env.Type {
	case "simple":
		return unmarshalSimple(data)
	case "compiled_group":
		var raw struct {
			Addresses            []string          `json:"addresses"`
			Requirement          Requirement       `json:"requirement"`
			Logic                Logic             `json:"logic"`
			Window               string            `json:"window,omitempty"`
			PerAddressConditions []json.RawMessage `json:"per_address_conditions"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		perAddr := make([]Simple, 0, len(raw.PerAddressConditions))
		for _, rc := range raw.PerAddressConditions {
			s, err := unmarshalSimple(rc)
			if err != nil {
				return nil, err
			}
			perAddr = append(perAddr, s)
		}
		return CompiledGroup{
			Addresses:            raw.Addresses,
			Requirement:          raw.Requirement,
			Logic:                raw.Logic,
			Window:               raw.Window,
			PerAddressConditions: perAddr,
		}, nil
	case "compiled_aggregate":
		var c CompiledAggregate
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("signal: unknown compiled condition type %q", env.Type)
	}
}

// MarshalJSON implements json.Marshaler for AST.
func (a AST) MarshalJSON() ([]byte, error) {
	raws := make([]json.RawMessage, 0, len(a.Conditions))
	for _, c := range a.Conditions {
		raw, err := MarshalCompiledCondition(c)
		if err != nil {
			return nil, err
		}
		raws = append(raws, raw)
	}
	return json.Marshal(struct {
		Logic      Logic             `json:"logic"`
		Conditions []json.RawMessage `json:"conditions"`
	}{a.Logic, raws})
}

// UnmarshalJSON implements json.Unmarshaler for AST.
func (a *AST) UnmarshalJSON(data []byte) error {
	var raw struct {
		Logic      Logic             `json:"logic"`
		Conditions []json.RawMessage `json:"conditions"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	a.Logic = raw.Logic
	a.Conditions = a.Conditions[:0]
	for _, rc := range raw.Conditions {
		c, err := UnmarshalCompiledCondition(rc)
		if err != nil {
			return err
		}
		a.Conditions = append(a.Conditions, c)
	}
	return nil
}
