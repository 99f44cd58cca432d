package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// Reserve is one asset listed in the Aave pool, along with the decimals
// used to scale its token-balance and price-oracle reads.
type Reserve struct {
	Address  common.Address
	Decimals uint8
}

// Registry holds the one-time discovery of the pool's reserve list. Reserve
// membership changes rarely enough (a governance action) that the indexer
// treats it as fixed for the process lifetime; a restart picks up any
// change.
type Registry struct {
	PoolAddress common.Address
	Reserves    []Reserve
}

// DiscoverReserves calls Pool.getReservesList() and then decimals() on each
// returned asset, batching the decimals() calls through a single
// multicall. Failure here is fatal to startup: the indexer cannot extract
// positions without knowing every reserve's scaling factor.
func DiscoverReserves(ctx context.Context, caller Caller, poolAddress common.Address, blockNumber uint64) (*Registry, error) {
	listData, err := caller.CallContract(ctx, ethereum.CallMsg{To: &poolAddress, Data: EncodeGetReservesList()}, new(big.Int).SetUint64(blockNumber))
	if err != nil {
		return nil, fmt.Errorf("getReservesList: %w", err)
	}
	addresses, err := DecodeReservesList(listData)
	if err != nil {
		return nil, fmt.Errorf("decode getReservesList: %w", err)
	}
	if len(addresses) == 0 {
		return nil, fmt.Errorf("pool %s reports zero reserves", poolAddress)
	}

	agg := NewAggregator(caller)
	for _, addr := range addresses {
		agg.Add(common.BytesToAddress(addr[:]), EncodeDecimals())
	}
	results, err := agg.Execute(ctx, new(big.Int).SetUint64(blockNumber))
	if err != nil {
		return nil, fmt.Errorf("batch decimals(): %w", err)
	}

	reserves := make([]Reserve, 0, len(addresses))
	for i, addr := range addresses {
		if results[i] == nil {
			return nil, fmt.Errorf("decimals() call failed for reserve %s", common.BytesToAddress(addr[:]))
		}
		decimals, err := DecodeUint8(results[i])
		if err != nil {
			return nil, fmt.Errorf("decode decimals() for reserve %s: %w", common.BytesToAddress(addr[:]), err)
		}
		reserves = append(reserves, Reserve{
			Address:  common.BytesToAddress(addr[:]),
			Decimals: decimals,
		})
	}

	return &Registry{PoolAddress: poolAddress, Reserves: reserves}, nil
}

// FetchAssetPrices discovers per-reserve USD prices via
// PriceOracle.getAssetsPrices(address[]), batched in a single call.
func FetchAssetPrices(ctx context.Context, caller Caller, oracleAddress common.Address, reserves []Reserve, blockNumber uint64) (map[common.Address]*big.Int, error) {
	addrs := make([][20]byte, len(reserves))
	for i, r := range reserves {
		addrs[i] = r.Address
	}
	data, err := caller.CallContract(ctx, ethereum.CallMsg{To: &oracleAddress, Data: EncodeGetAssetsPrices(addrs)}, new(big.Int).SetUint64(blockNumber))
	if err != nil {
		return nil, fmt.Errorf("getAssetsPrices: %w", err)
	}
	prices, err := DecodeAssetsPrices(data)
	if err != nil {
		return nil, fmt.Errorf("decode getAssetsPrices: %w", err)
	}
	if len(prices) != len(reserves) {
		return nil, fmt.Errorf("getAssetsPrices returned %d prices for %d reserves", len(prices), len(reserves))
	}
	out := make(map[common.Address]*big.Int, len(reserves))
	for i, r := range reserves {
		out[r.Address] = prices[i].ToBig()
	}
	return out, nil
}
