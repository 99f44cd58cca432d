// Package position extracts a borrower's account-wide health factor and
// per-reserve collateral/debt positions from the Aave pool via a single
// multicall batch, then persists the result through the store and tier
// packages.
package position

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/etherlinkcom/superlend-liquidation-bot-indexer/internal/chain"
	"github.com/etherlinkcom/superlend-liquidation-bot-indexer/internal/store"
	"github.com/etherlinkcom/superlend-liquidation-bot-indexer/internal/tier"
	"github.com/etherlinkcom/superlend-liquidation-bot-indexer/observability/metrics"
)

const (
	healthFactorDecimals = 18
	usdValueDecimals     = 8
	priceDecimals        = 8
)

// Config bundles the chain and protocol parameters the extractor needs.
type Config struct {
	PoolAddress          common.Address
	DataProviderAddress  common.Address
	PriceOracleAddress   common.Address
	MaxBlockLag          uint64
	MaxCapOnHealthFactor float64
	AtRiskThreshold      float64
}

// Extractor reads a borrower's position from chain and routes it into the
// correct risk tier.
type Extractor struct {
	caller   chain.Caller
	registry *chain.Registry
	store    *store.Store
	cfg      Config
	metrics  *metrics.Indexer
	log      *slog.Logger
}

// New builds an Extractor bound to registry's reserve list.
func New(caller chain.Caller, registry *chain.Registry, st *store.Store, cfg Config, m *metrics.Indexer, log *slog.Logger) *Extractor {
	return &Extractor{caller: caller, registry: registry, store: st, cfg: cfg, metrics: m, log: log}
}

// UpdateUser refreshes userAddress's position as of blockNumber. It skips
// the refresh entirely when the stored record is more recent than
// MaxBlockLag blocks old, so a burst of repeated borrow events in the same
// window does not trigger redundant RPC work.
func (e *Extractor) UpdateUser(ctx context.Context, userAddress string, blockNumber uint64) error {
	start := time.Now()
	existing, oldTier, err := e.store.GetUser(ctx, userAddress)
	if err != nil {
		e.metrics.RecordError("store")
		return fmt.Errorf("get user %s: %w", userAddress, err)
	}

	if oldTier != tier.NotFound {
		sinceUpdate := int64(blockNumber) - int64(existing.LastUpdatedBlockNumber)
		if sinceUpdate >= 0 && uint64(sinceUpdate) < e.cfg.MaxBlockLag {
			e.log.Debug("user data recent enough, skipping", "user_address", userAddress, "block_number", blockNumber)
			return nil
		}
	}

	user := common.HexToAddress(userAddress)
	agg := chain.NewAggregator(e.caller)
	agg.Add(e.cfg.PoolAddress, chain.EncodeGetUserAccountData(user))
	for _, r := range e.registry.Reserves {
		agg.Add(e.cfg.DataProviderAddress, chain.EncodeGetUserReserveData(r.Address, user))
	}

	results, err := agg.Execute(ctx, new(big.Int).SetUint64(blockNumber))
	if err != nil {
		e.metrics.RecordError("rpc")
		return fmt.Errorf("execute multicall for %s: %w", userAddress, err)
	}
	if len(results) != len(e.registry.Reserves)+1 {
		e.metrics.RecordError("rpc")
		return fmt.Errorf("multicall for %s returned %d results, want %d", userAddress, len(results), len(e.registry.Reserves)+1)
	}

	accountData, err := chain.DecodeUserAccountData(results[0])
	if err != nil {
		e.metrics.RecordError("decode")
		return fmt.Errorf("decode account data for %s: %w", userAddress, err)
	}

	healthFactor := chain.ToF64(accountData.HealthFactor, healthFactorDecimals)
	if healthFactor > e.cfg.MaxCapOnHealthFactor {
		healthFactor = e.cfg.MaxCapOnHealthFactor
	}
	collateralUSD := chain.ToF64(accountData.TotalCollateralBase, usdValueDecimals)
	debtUSD := chain.ToF64(accountData.TotalDebtBase, usdValueDecimals)

	prices, err := chain.FetchAssetPrices(ctx, e.caller, e.cfg.PriceOracleAddress, e.registry.Reserves, blockNumber)
	if err != nil {
		e.metrics.RecordError("rpc")
		return fmt.Errorf("fetch asset prices: %w", err)
	}

	positions, leadingCollateral, leadingDebt, err := e.decodeReservePositions(results[1:], prices)
	if err != nil {
		e.metrics.RecordError("decode")
		return fmt.Errorf("decode reserve positions for %s: %w", userAddress, err)
	}

	newTier := tier.Of(healthFactor, e.cfg.AtRiskThreshold)
	rec := store.UserRecord{
		UserAddress:                   userAddress,
		LastUpdatedBlockNumber:        blockNumber,
		HealthFactor:                  healthFactor,
		TotalCollateralValueInUSD:     collateralUSD,
		TotalDebtValueInUSD:           debtUSD,
		LeadingCollateralReserve:      leadingCollateral.address,
		LeadingDebtReserve:            leadingDebt.address,
		LeadingCollateralReserveValue: leadingCollateral.amount,
		LeadingDebtReserveValue:       leadingDebt.amount,
	}

	if err := e.store.RouteUser(ctx, rec, existing.ID, oldTier, newTier); err != nil {
		e.metrics.RecordError("store")
		return fmt.Errorf("route user %s: %w", userAddress, err)
	}
	if err := e.store.UpsertPositions(ctx, userAddress, positions); err != nil {
		e.metrics.RecordError("store")
		return fmt.Errorf("upsert positions for %s: %w", userAddress, err)
	}

	if oldTier != newTier {
		e.log.Info("moved user tier",
			"user_address", userAddress,
			"health_factor", healthFactor,
			"tier", newTier.String(),
		)
	} else {
		e.log.Debug("updated user", "user_address", userAddress, "health_factor", healthFactor, "tier", newTier.String())
	}

	e.metrics.ObserveUpdate(time.Since(start))
	e.metrics.BorrowersSeen.Inc()
	return nil
}

type leadingReserve struct {
	address string
	amount  float64
}

func (e *Extractor) decodeReservePositions(reserveResults [][]byte, prices map[common.Address]*big.Int) ([]store.ReservePosition, leadingReserve, leadingReserve, error) {
	var leadingCollateral, leadingDebt leadingReserve
	positions := make([]store.ReservePosition, 0, len(reserveResults)*2)

	for i, r := range e.registry.Reserves {
		if reserveResults[i] == nil {
			continue
		}
		data, err := chain.DecodeUserReserveData(reserveResults[i])
		if err != nil {
			return nil, leadingReserve{}, leadingReserve{}, fmt.Errorf("reserve %s: %w", r.Address, err)
		}

		price := priceOf(prices[r.Address])

		if !data.CurrentATokenBalance.IsZero() {
			amount := chain.ToF64(data.CurrentATokenBalance, r.Decimals)
			if amount > leadingCollateral.amount {
				leadingCollateral = leadingReserve{address: r.Address.Hex(), amount: amount}
			}
			positions = append(positions, store.ReservePosition{
				ReserveAddress: r.Address.Hex(),
				AmountInToken:  amount,
				Price:          price,
				AmountInUSD:    amount * price,
				IsCollateral:   true,
			})
		}

		if !data.CurrentVariableDebt.IsZero() {
			amount := chain.ToF64(data.CurrentVariableDebt, r.Decimals)
			if amount > leadingDebt.amount {
				leadingDebt = leadingReserve{address: r.Address.Hex(), amount: amount}
			}
			positions = append(positions, store.ReservePosition{
				ReserveAddress: r.Address.Hex(),
				AmountInToken:  amount,
				Price:          price,
				AmountInUSD:    amount * price,
				IsCollateral:   false,
			})
		}
	}

	return positions, leadingCollateral, leadingDebt, nil
}

func priceOf(price *big.Int) float64 {
	if price == nil {
		return 0
	}
	return chain.ToF64(uint256.MustFromBig(price), priceDecimals)
}
