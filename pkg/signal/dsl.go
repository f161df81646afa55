package signal

import (
	"encoding/json"
	"fmt"
)

// Scope is the set of chains/markets/addresses/protocol a signal is
// authorized to read from. Every condition's chain/market/address
// references must be a subset of the declared scope.
type Scope struct {
	ChainIDs  []int64  `json:"chain_ids" yaml:"chain_ids"`
	MarketIDs []string `json:"market_ids,omitempty" yaml:"market_ids,omitempty"`
	Addresses []string `json:"addresses,omitempty" yaml:"addresses,omitempty"`
	Protocol  string   `json:"protocol,omitempty" yaml:"protocol,omitempty"`
}

// HasChain reports whether chainID is declared in scope.
func (s *Scope) HasChain(chainID int64) bool {
	for _, c := range s.ChainIDs {
		if c == chainID {
			return true
		}
	}
	return false
}

// HasMarket reports whether marketID is declared in scope (or scope has no
// market restriction at all).
func (s *Scope) HasMarket(marketID string) bool {
	if len(s.MarketIDs) == 0 {
		return true
	}
	for _, m := range s.MarketIDs {
		if m == marketID {
			return true
		}
	}
	return false
}

// HasAddress reports whether address is declared in scope (or scope has no
// address restriction at all).
func (s *Scope) HasAddress(address string) bool {
	if len(s.Addresses) == 0 {
		return true
	}
	for _, a := range s.Addresses {
		if a == address {
			return true
		}
	}
	return false
}

// Filter narrows an event or state query. Field names matching
// ReservedEventFilterFields are rejected from user input at compile time.
type Filter struct {
	Field string   `json:"field"`
	Op    FilterOp `json:"op"`
	Value any      `json:"value"`
}

// Requirement describes an N-of-M group gate.
type Requirement struct {
	Count int `json:"count"`
	Of    int `json:"of"`
}

// Condition is the closed set of DSL condition variants: Threshold,
// Change, Group, Aggregate. It is a sealed interface — the set is fixed,
// no external package may add a variant.
type Condition interface {
	conditionKind() string
}

// ThresholdCondition compares a metric against a constant value.
type ThresholdCondition struct {
	Metric   string             `json:"metric"`
	Operator ComparisonOperator `json:"operator"`
	Value    float64            `json:"value"`
	ChainID  int64              `json:"chain_id,omitempty"`
	MarketID string             `json:"market_id,omitempty"`
	Address  string             `json:"address,omitempty"`
	Window   string             `json:"window,omitempty"`
	Filters  []Filter           `json:"filters,omitempty"`
}

func (ThresholdCondition) conditionKind() string { return "threshold" }

// ChangeCondition compares the current value of a metric to its value at
// window start, by percent or absolute magnitude.
type ChangeCondition struct {
	Metric    string          `json:"metric"`
	Direction ChangeDirection `json:"direction"`
	By        ChangeBy        `json:"by"`
	Amount    float64         `json:"amount"`
	ChainID   int64           `json:"chain_id,omitempty"`
	MarketID  string          `json:"market_id,omitempty"`
	Address   string          `json:"address,omitempty"`
	Window    string          `json:"window,omitempty"`
}

func (ChangeCondition) conditionKind() string { return "change" }

// GroupCondition gates on N-of-M addresses each satisfying an inner
// Threshold/Change condition set. Inner conditions may not carry an
// address (it is supplied per-address during evaluation) and may not be
// Group or Aggregate themselves (rejected at compile time).
type GroupCondition struct {
	Addresses   []string    `json:"addresses"`
	Requirement Requirement `json:"requirement"`
	Logic       Logic       `json:"logic"`
	Conditions  []Condition `json:"conditions"`
	Window      string      `json:"window,omitempty"`
}

func (GroupCondition) conditionKind() string { return "group" }

// AggregateCondition reduces a metric over every target in scope
// (markets, positions, or events) and compares the reduction to a value.
type AggregateCondition struct {
	Aggregation Aggregation        `json:"aggregation"`
	Metric      string             `json:"metric"`
	Operator    ComparisonOperator `json:"operator"`
	Value       float64            `json:"value"`
	ChainID     int64              `json:"chain_id,omitempty"`
	MarketIDs   []string           `json:"market_ids,omitempty"`
	Window      string             `json:"window,omitempty"`
	Filters     []Filter           `json:"filters,omitempty"`
}

func (AggregateCondition) conditionKind() string { return "aggregate" }

// Definition is the user-authored signal DSL: a scope, a default window,
// a list of conditions, and the top-level combination logic.
type Definition struct {
	Scope      Scope       `json:"scope"`
	Window     string      `json:"window"`
	Logic      Logic       `json:"logic,omitempty"`
	Conditions []Condition `json:"conditions"`
}

// conditionEnvelope is the wire shape used to disambiguate Condition
// variants: a "type" discriminant alongside the variant's own fields.
type conditionEnvelope struct {
	Type string `json:"type"`
}

// MarshalCondition renders a Condition with its discriminant "type" field
// alongside the variant's own fields; a group's inner conditions carry
// their own "type" field too.
func MarshalCondition(c Condition) ([]byte, error) {
	var kind string
	switch c.(type) {
	case ThresholdCondition, *ThresholdCondition:
		kind = "threshold"
	case ChangeCondition, *ChangeCondition:
		kind = "change"
	case GroupCondition, *GroupCondition:
		kind = "group"
	case AggregateCondition, *AggregateCondition:
		kind = "aggregate"
	default:
		return nil, fmt.Errorf("signal: unknown condition type %T", c)
	}

	body, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	var merged map[string]any
	if err := json.Unmarshal(body, &merged); err != nil {
		return nil, err
	}
	merged["type"] = kind
	if g, ok := c.(GroupCondition); ok {
		inner := make([]json.RawMessage, 0, len(g.Conditions))
		for _, ic := range g.Conditions {
			raw, err := MarshalCondition(ic)
			if err != nil {
				return nil, err
			}
			inner = append(inner, raw)
		}
		merged["conditions"] = inner
	}
	return json.Marshal(merged)
}

// UnmarshalCondition decodes a JSON condition object into the concrete
// Condition variant indicated by its "type" discriminant.
func UnmarshalCondition(data []byte) (Condition, error) {
	var env conditionEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("signal: decoding condition envelope: %w", err)
	}

	switch env.Type {
	case "threshold":
		var c ThresholdCondition
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, err
		}
		return c, nil
	case "change":
		var c ChangeCondition
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, err
		}
		return c, nil
	case "group":
		var raw struct {
			Addresses   []string          `json:"addresses"`
			Requirement Requirement       `json:"requirement"`
			Logic       Logic             `json:"logic"`
			Window      string            `json:"window,omitempty"`
			Conditions  []json.RawMessage `json:"conditions"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		inner := make([]Condition, 0, len(raw.Conditions))
		for _, rc := range raw.Conditions {
			cond, err := UnmarshalCondition(rc)
			if err != nil {
				return nil, err
			}
			inner = append(inner, cond)
		}
		return GroupCondition{
			Addresses:   raw.Addresses,
			Requirement: raw.Requirement,
			Logic:       raw.Logic,
			Window:      raw.Window,
			Conditions:  inner,
		}, nil
	case "aggregate":
		var c AggregateCondition
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("signal: unknown condition type %q", env.Type)
	}
}

// MarshalJSON implements json.Marshaler for Definition, serializing each
// condition with its discriminant.
func (d Definition) MarshalJSON() ([]byte, error) {
	type alias struct {
		Scope      Scope             `json:"scope"`
		Window     string            `json:"window"`
		Logic      Logic             `json:"logic,omitempty"`
		Conditions []json.RawMessage `json:"conditions"`
	}
	a := alias{Scope: d.Scope, Window: d.Window, Logic: d.Logic}
	for _, c := range d.Conditions {
		raw, err := MarshalCondition(c)
		if err != nil {
			return nil, err
		}
		a.Conditions = append(a.Conditions, raw)
	}
	return json.Marshal(a)
}

// UnmarshalJSON implements json.Unmarshaler for Definition.
func (d *Definition) UnmarshalJSON(data []byte) error {
	var raw struct {
		Scope      Scope             `json:"scope"`
		Window     string            `json:"window"`
		Logic      Logic             `json:"logic,omitempty"`
		Conditions []json.RawMessage `json:"conditions"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	d.Scope = raw.Scope
	d.Window = raw.Window
	d.Logic = raw.Logic
	d.Conditions = d.Conditions[:0]
	for _, rc := range raw.Conditions {
		cond, err := UnmarshalCondition(rc)
		if err != nil {
			return err
		}
		d.Conditions = append(d.Conditions, cond)
	}
	return nil
}
