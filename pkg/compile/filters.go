package compile

import "github.com/monarch-xyz/sentinel/pkg/signal"

// validateUserFilters rejects a user-supplied filter list that collides
// with a reserved field (the engine injects chainId/marketId/user/
// onBehalf/timestamp itself) or repeats a field.
func validateUserFilters(field string, filters []signal.Filter) error {
	seen := make(map[string]bool, len(filters))
	for _, f := range filters {
		if signal.ReservedEventFilterFields[f.Field] {
			return fieldErr(field+".filters."+f.Field, ErrReservedFilterField)
		}
		if seen[f.Field] {
			return fieldErr(field+".filters."+f.Field, ErrDuplicateFilterField)
		}
		seen[f.Field] = true
	}
	return nil
}
