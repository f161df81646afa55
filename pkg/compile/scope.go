package compile

import "github.com/monarch-xyz/sentinel/pkg/signal"

// resolveChain fills a condition's chain_id from scope when omitted and
// validates membership when supplied. Scope.chain_ids is required
// non-empty by the time this runs (checked in Compile).
func resolveChain(scope signal.Scope, field string, chainID int64) (int64, error) {
	if chainID == 0 {
		if len(scope.ChainIDs) != 1 {
			return 0, fieldErr(field, ErrAmbiguous)
		}
		return scope.ChainIDs[0], nil
	}
	if !scope.HasChain(chainID) {
		return 0, fieldErr(field, ErrScopeViolation)
	}
	return chainID, nil
}

// resolveMarket fills market_id from scope when omitted (only when
// scope declares exactly one market) and validates membership when
// supplied. required controls whether an empty result (no scope
// markets declared, metric requires one) is an error.
func resolveMarket(scope signal.Scope, field, marketID string, required bool) (string, error) {
	if marketID == "" {
		switch len(scope.MarketIDs) {
		case 0:
			if required {
				return "", fieldErr(field, ErrMaterialization)
			}
			return "", nil
		case 1:
			return scope.MarketIDs[0], nil
		default:
			return "", fieldErr(field, ErrAmbiguous)
		}
	}
	if !scope.HasMarket(marketID) {
		return "", fieldErr(field, ErrScopeViolation)
	}
	return marketID, nil
}

// resolveAddress fills address from scope when omitted (only when
// scope declares exactly one address) and validates membership when
// supplied. Group-inner conditions pass required=false and never fill
// from scope (address deferred to per-address group expansion).
func resolveAddress(scope signal.Scope, field, address string, required, allowInfer bool) (string, error) {
	if address == "" {
		if !allowInfer {
			if required {
				return "", fieldErr(field, ErrMaterialization)
			}
			return "", nil
		}
		switch len(scope.Addresses) {
		case 0:
			if required {
				return "", fieldErr(field, ErrMaterialization)
			}
			return "", nil
		case 1:
			return scope.Addresses[0], nil
		default:
			return "", fieldErr(field, ErrAmbiguous)
		}
	}
	if !scope.HasAddress(address) {
		return "", fieldErr(field, ErrScopeViolation)
	}
	return address, nil
}
