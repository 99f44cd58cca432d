// Package refresh re-polls each risk tier at its own configured cadence,
// independently of new borrow events.
package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/etherlinkcom/superlend-liquidation-bot-indexer/internal/position"
	"github.com/etherlinkcom/superlend-liquidation-bot-indexer/internal/store"
	"github.com/etherlinkcom/superlend-liquidation-bot-indexer/internal/tier"
	"github.com/etherlinkcom/superlend-liquidation-bot-indexer/observability/metrics"
)

// BlockNumberer reports the current chain head.
type BlockNumberer interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// Config holds the three independent re-poll cadences, keyed by tier.
type Config struct {
	LiquidatableFrequency time.Duration
	AtRiskFrequency       time.Duration
	HealthyFrequency      time.Duration
}

// Loop drives the three tier-refresh timers.
type Loop struct {
	client    BlockNumberer
	extractor *position.Extractor
	store     *store.Store
	cfg       Config
	metrics   *metrics.Indexer
	log       *slog.Logger
}

// New builds a refresh Loop.
func New(client BlockNumberer, extractor *position.Extractor, st *store.Store, cfg Config, m *metrics.Indexer, log *slog.Logger) *Loop {
	return &Loop{client: client, extractor: extractor, store: st, cfg: cfg, metrics: m, log: log}
}

// Run loops until ctx is cancelled. Each pass checks all three tiers
// against their own "last updated" timestamp and refreshes any tier whose
// cadence has elapsed, then sleeps for the Liquidatable cadence (by
// convention the shortest of the three; the ordering is not enforced)
// before checking again — the same wait used by the reference service.
// A failed block-number read is logged and the pass is skipped.
func (l *Loop) Run(ctx context.Context) error {
	now := time.Now()
	lastRun := map[tier.Tier]time.Time{
		tier.Liquidatable: now,
		tier.AtRisk:       now,
		tier.Healthy:      now,
	}
	frequency := map[tier.Tier]time.Duration{
		tier.Liquidatable: l.cfg.LiquidatableFrequency,
		tier.AtRisk:       l.cfg.AtRiskFrequency,
		tier.Healthy:      l.cfg.HealthyFrequency,
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		blockNumber, err := l.client.BlockNumber(ctx)
		if err != nil {
			l.metrics.RecordError("rpc")
			l.log.Error("get block number failed", "error", err.Error())
			select {
			case <-time.After(l.cfg.LiquidatableFrequency):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		now := time.Now()
		for _, t := range []tier.Tier{tier.Liquidatable, tier.AtRisk, tier.Healthy} {
			if now.Sub(lastRun[t]) < frequency[t] {
				continue
			}
			if err := l.refreshTier(ctx, t, blockNumber); err != nil {
				l.metrics.RecordError("refresh")
				l.log.Error("tier refresh failed", "tier", t.String(), "error", err.Error())
				continue
			}
			lastRun[t] = now
		}

		if err := l.publishTierSizes(ctx); err != nil {
			l.metrics.RecordError("store")
			l.log.Error("publish tier sizes failed", "error", err.Error())
		}

		select {
		case <-time.After(l.cfg.LiquidatableFrequency):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// publishTierSizes refreshes the indexer_tier_size gauge from the
// authoritative row counts, independent of whether any tier was actually
// refreshed this cycle.
func (l *Loop) publishTierSizes(ctx context.Context) error {
	sizes, err := l.store.TierSizes(ctx)
	if err != nil {
		return fmt.Errorf("tier sizes: %w", err)
	}
	for t, size := range sizes {
		l.metrics.TierSize.WithLabelValues(t.String()).Set(float64(size))
	}
	return nil
}

func (l *Loop) refreshTier(ctx context.Context, t tier.Tier, blockNumber uint64) error {
	users, err := l.store.ListUsers(ctx, t)
	if err != nil {
		return fmt.Errorf("list %s users: %w", t, err)
	}
	l.log.Info("refreshing tier", "tier", t.String(), "block_number", blockNumber)
	for _, userAddress := range users {
		if err := l.extractor.UpdateUser(ctx, userAddress, blockNumber); err != nil {
			return fmt.Errorf("update user %s: %w", userAddress, err)
		}
	}
	return nil
}
