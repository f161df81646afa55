package compile

import (
	"errors"
	"fmt"
)

// Sentinel errors identifying the broad error kind; wrapped by
// *ValidationError to carry the offending field path.
var (
	// ErrUnknownMetric indicates a condition references a metric absent
	// from the registry.
	ErrUnknownMetric = errors.New("unknown metric")

	// ErrScopeViolation indicates a condition references a chain, market,
	// or address outside the signal's declared scope.
	ErrScopeViolation = errors.New("value outside declared scope")

	// ErrDurationFormat indicates a duration string does not match the
	// duration grammar.
	ErrDurationFormat = errors.New("malformed duration")

	// ErrAmbiguous indicates a field was omitted and scope does not
	// contain exactly one candidate to infer it from.
	ErrAmbiguous = errors.New("cannot be inferred from scope: more than one candidate")

	// ErrNestedComposite indicates a Group or Aggregate was nested inside
	// a Group's inner condition list.
	ErrNestedComposite = errors.New("groups and aggregates cannot be nested")

	// ErrUnsupportedDirection indicates ChangeDirection "any" was used.
	ErrUnsupportedDirection = errors.New("direction is not yet supported")

	// ErrReservedFilterField indicates a user-supplied filter collided
	// with a field the engine injects itself.
	ErrReservedFilterField = errors.New("filter field is reserved")

	// ErrDuplicateFilterField indicates the same field appeared twice in
	// one condition's filter list.
	ErrDuplicateFilterField = errors.New("filter field repeated")

	// ErrMaterialization indicates an Aggregate condition's metric cannot
	// be evaluated given the signal's declared scope (e.g. a Position
	// metric with no addresses in scope).
	ErrMaterialization = errors.New("scope cannot materialize this metric")
)

// ValidationError is a compile-time failure tied to a specific field
// path in the DSL, e.g. "conditions[2].requirement.of". Never
// leaks implementation vocabulary — Field is the user-facing DSL path,
// Err is one of the sentinel errors above or a wrapped duration error.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func fieldErr(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Err: err}
}
