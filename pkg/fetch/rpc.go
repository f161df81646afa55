package fetch

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// rpcReader performs point-in-time `eth_call` reads of the Morpho Blue
// view functions at a resolved block.
type rpcReader struct {
	clients map[int64]*ethclient.Client
	markets map[int64]common.Address
}

func newRPCReader(endpoints map[int64]string, markets map[int64]common.Address) (*rpcReader, error) {
	clients := make(map[int64]*ethclient.Client, len(endpoints))
	for chainID, url := range endpoints {
		c, err := ethclient.Dial(url)
		if err != nil {
			return nil, fmt.Errorf("fetch: dial chain %d: %w", chainID, err)
		}
		clients[chainID] = c
	}
	return &rpcReader{clients: clients, markets: markets}, nil
}

func (r *rpcReader) readMarket(ctx context.Context, chainID int64, marketID string, block int64, field string) (float64, error) {
	client, ok := r.clients[chainID]
	if !ok {
		return 0, fmt.Errorf("%w: no RPC client configured for chain %d", ErrRPCQuery, chainID)
	}
	marketAddr, ok := r.markets[chainID]
	if !ok {
		return 0, fmt.Errorf("%w: no Morpho market contract configured for chain %d", ErrFetchConfig, chainID)
	}
	idHash, err := parseMarketID(marketID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrFetchConfig, err)
	}

	data, err := morphoABI.Pack("market", idHash)
	if err != nil {
		return 0, fmt.Errorf("%w: pack market call: %v", ErrRPCQuery, err)
	}
	out, err := client.CallContract(ctx, ethereum.CallMsg{To: &marketAddr, Data: data}, blockNumberArg(block))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRPCQuery, err)
	}
	values, err := morphoABI.Unpack("market", out)
	if err != nil {
		return 0, fmt.Errorf("%w: unpack market result: %v", ErrRPCQuery, err)
	}
	return pickField(values, marketOutputOrder, field)
}

func (r *rpcReader) readPosition(ctx context.Context, chainID int64, marketID, address string, block int64, field string) (float64, error) {
	client, ok := r.clients[chainID]
	if !ok {
		return 0, fmt.Errorf("%w: no RPC client configured for chain %d", ErrRPCQuery, chainID)
	}
	marketAddr, ok := r.markets[chainID]
	if !ok {
		return 0, fmt.Errorf("%w: no Morpho market contract configured for chain %d", ErrFetchConfig, chainID)
	}
	if address == "" {
		return 0, fmt.Errorf("%w: position read requires an address", ErrFetchConfig)
	}
	idHash, err := parseMarketID(marketID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrFetchConfig, err)
	}
	user := common.HexToAddress(address)

	data, err := morphoABI.Pack("position", idHash, user)
	if err != nil {
		return 0, fmt.Errorf("%w: pack position call: %v", ErrRPCQuery, err)
	}
	out, err := client.CallContract(ctx, ethereum.CallMsg{To: &marketAddr, Data: data}, blockNumberArg(block))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRPCQuery, err)
	}
	values, err := morphoABI.Unpack("position", out)
	if err != nil {
		return 0, fmt.Errorf("%w: unpack position result: %v", ErrRPCQuery, err)
	}
	return pickField(values, positionOutputOrder, field)
}

func blockNumberArg(block int64) *big.Int {
	if block < 0 {
		return nil // nil means "latest" to go-ethereum's CallContract
	}
	return big.NewInt(block)
}

func parseMarketID(marketID string) ([32]byte, error) {
	var out [32]byte
	if marketID == "" {
		return out, fmt.Errorf("market id required")
	}
	h := common.HexToHash(marketID)
	copy(out[:], h.Bytes())
	return out, nil
}

func pickField(values []interface{}, order []string, field string) (float64, error) {
	for i, name := range order {
		if name == field {
			if i >= len(values) {
				return 0, fmt.Errorf("%w: field %q not present in decoded output", ErrRPCQuery, field)
			}
			return bigToFloat(values[i]), nil
		}
	}
	return 0, fmt.Errorf("%w: unrecognized RPC field %q", ErrFetchConfig, field)
}

func bigToFloat(v interface{}) float64 {
	switch n := v.(type) {
	case *big.Int:
		f := new(big.Float).SetInt(n)
		out, _ := f.Float64()
		return out
	default:
		return 0
	}
}
