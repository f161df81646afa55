package fetch

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// morphoABIJSON declares the handful of Morpho Blue view functions the
// fetcher's point-in-time RPC reads need. The full Morpho Blue ABI has
// many more entries; only the view functions this service calls are
// declared.
const morphoABIJSON = `[
	{
		"type": "function",
		"name": "market",
		"stateMutability": "view",
		"inputs": [{"name": "id", "type": "bytes32"}],
		"outputs": [
			{"name": "totalSupplyAssets", "type": "uint128"},
			{"name": "totalSupplyShares", "type": "uint128"},
			{"name": "totalBorrowAssets", "type": "uint128"},
			{"name": "totalBorrowShares", "type": "uint128"},
			{"name": "lastUpdate", "type": "uint128"},
			{"name": "fee", "type": "uint128"}
		]
	},
	{
		"type": "function",
		"name": "position",
		"stateMutability": "view",
		"inputs": [{"name": "id", "type": "bytes32"}, {"name": "user", "type": "address"}],
		"outputs": [
			{"name": "supplyShares", "type": "uint256"},
			{"name": "borrowShares", "type": "uint128"},
			{"name": "collateral", "type": "uint128"}
		]
	}
]`

var morphoABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(morphoABIJSON))
	if err != nil {
		panic("fetch: malformed embedded Morpho ABI: " + err.Error())
	}
	morphoABI = parsed
}

// marketOutputOrder and positionOutputOrder give the field name, in
// ABI output order, for each view — used to pick out the one field a
// StateRef asks for without unpacking into a bespoke struct per field.
var marketOutputOrder = []string{
	"totalSupplyAssets", "totalSupplyShares", "totalBorrowAssets",
	"totalBorrowShares", "lastUpdate", "fee",
}

var positionOutputOrder = []string{"supplyShares", "borrowShares", "collateral"}
