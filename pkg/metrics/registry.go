// Package metrics is the read-only, process-wide registry of metrics a
// signal condition may reference. The registry is the sole source of
// truth for what a metric name resolves to; the compiler rejects any
// name not present here.
package metrics

import (
	"fmt"
	"sort"

	"github.com/monarch-xyz/sentinel/pkg/signal"
)

// Kind classifies how a metric descriptor resolves to underlying data.
type Kind string

const (
	KindState        Kind = "state"
	KindComputed     Kind = "computed"
	KindEvent        Kind = "event"
	KindChainedEvent Kind = "chained_event"
)

// Computation is the binary operation a computed metric applies to its
// two state operands.
type Computation string

const (
	ComputationRatio      Computation = "ratio"
	ComputationDifference Computation = "difference"
)

// ChainedOperation is the binary operation a chained_event metric applies
// to its two event operands.
type ChainedOperation string

const (
	ChainedAdd ChainedOperation = "add"
	ChainedSub ChainedOperation = "sub"
)

// Descriptor is one registry entry. Exactly the fields relevant to Kind
// are populated; the rest are zero.
type Descriptor struct {
	Name     string
	Protocol string
	Kind     Kind

	// state
	Entity signal.Entity
	Field  string

	// computed
	Computation Computation
	Operands    [2]string

	// event / chained_event
	EventType        string
	Aggregation      signal.Aggregation
	ChainedOperation ChainedOperation
	ChainedOperands  [2]string
}

// Registry is a read-only, dotted-name-keyed table of metric descriptors.
type Registry struct {
	byName map[string]Descriptor
}

// Build constructs a Registry from a literal descriptor list, validating
// that every name is unique, every computed/chained_event descriptor's
// operands resolve to an already-registered metric of the expected kind,
// and every descriptor carries the fields its Kind requires. Panics on a
// malformed table — this runs once at process init against a static
// literal, so a malformed table is a programming error, not a runtime
// condition the caller should handle.
func Build(descriptors []Descriptor) *Registry {
	r := &Registry{byName: make(map[string]Descriptor, len(descriptors))}
	for _, d := range descriptors {
		if d.Name == "" {
			panic("metrics: descriptor with empty name")
		}
		if _, exists := r.byName[d.Name]; exists {
			panic(fmt.Sprintf("metrics: duplicate metric name %q", d.Name))
		}
		switch d.Kind {
		case KindState:
			if d.Entity == "" || d.Field == "" {
				panic(fmt.Sprintf("metrics: state descriptor %q missing entity/field", d.Name))
			}
		case KindComputed:
			if d.Computation == "" || d.Operands[0] == "" || d.Operands[1] == "" {
				panic(fmt.Sprintf("metrics: computed descriptor %q missing computation/operands", d.Name))
			}
		case KindEvent:
			if d.EventType == "" || d.Field == "" || d.Aggregation == "" {
				panic(fmt.Sprintf("metrics: event descriptor %q missing event_type/field/aggregation", d.Name))
			}
		case KindChainedEvent:
			if d.ChainedOperation == "" || d.ChainedOperands[0] == "" || d.ChainedOperands[1] == "" {
				panic(fmt.Sprintf("metrics: chained_event descriptor %q missing operation/operands", d.Name))
			}
		default:
			panic(fmt.Sprintf("metrics: descriptor %q has unknown kind %q", d.Name, d.Kind))
		}
		r.byName[d.Name] = d
	}
	for _, d := range descriptors {
		switch d.Kind {
		case KindComputed:
			for _, op := range d.Operands {
				dep, ok := r.byName[op]
				if !ok || (dep.Kind != KindState && dep.Kind != KindComputed) {
					panic(fmt.Sprintf("metrics: computed descriptor %q references unknown or non-state operand %q", d.Name, op))
				}
			}
		case KindChainedEvent:
			for _, op := range d.ChainedOperands {
				dep, ok := r.byName[op]
				if !ok || dep.Kind != KindEvent {
					panic(fmt.Sprintf("metrics: chained_event descriptor %q references non-event operand %q", d.Name, op))
				}
			}
		}
	}
	return r
}

// Get returns the descriptor for name, or false if name is not registered.
func (r *Registry) Get(name string) (Descriptor, bool) {
	d, ok := r.byName[name]
	return d, ok
}

// Validate reports whether name is a registered metric.
func (r *Registry) Validate(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// ListByProtocol returns every descriptor whose Protocol matches,
// sorted by name.
func (r *Registry) ListByProtocol(protocol string) []Descriptor {
	return r.filterSorted(func(d Descriptor) bool { return d.Protocol == protocol })
}

// ListByKind returns every descriptor of the given kind, sorted by name.
func (r *Registry) ListByKind(kind Kind) []Descriptor {
	return r.filterSorted(func(d Descriptor) bool { return d.Kind == kind })
}

// List returns every registered descriptor, sorted by name.
func (r *Registry) List() []Descriptor {
	return r.filterSorted(func(Descriptor) bool { return true })
}

func (r *Registry) filterSorted(keep func(Descriptor) bool) []Descriptor {
	out := make([]Descriptor, 0, len(r.byName))
	for _, d := range r.byName {
		if keep(d) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
