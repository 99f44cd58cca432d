// Package app wires the indexer's components together: configuration, the
// database, the chain client, the reserve registry, and the ingestion,
// refresh, and health-check goroutines.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/etherlinkcom/superlend-liquidation-bot-indexer/internal/chain"
	"github.com/etherlinkcom/superlend-liquidation-bot-indexer/internal/config"
	"github.com/etherlinkcom/superlend-liquidation-bot-indexer/internal/healthserver"
	"github.com/etherlinkcom/superlend-liquidation-bot-indexer/internal/ingest"
	"github.com/etherlinkcom/superlend-liquidation-bot-indexer/internal/position"
	"github.com/etherlinkcom/superlend-liquidation-bot-indexer/internal/refresh"
	"github.com/etherlinkcom/superlend-liquidation-bot-indexer/internal/store"
	"github.com/etherlinkcom/superlend-liquidation-bot-indexer/observability/logging"
	"github.com/etherlinkcom/superlend-liquidation-bot-indexer/observability/metrics"
	telemetry "github.com/etherlinkcom/superlend-liquidation-bot-indexer/observability/otel"
)

// Run boots every indexer component and blocks until one of them fails or
// ctx is cancelled.
func Run(ctx context.Context) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logging.Setup("indexer", cfg.Environment)
	log.Info("configuration loaded", "environment", cfg.Environment, "pool_address", cfg.PoolAddress)

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: "indexer",
		Environment: cfg.Environment,
		Endpoint:    cfg.OTelEndpoint,
		Insecure:    cfg.OTelInsecure,
		Headers:     cfg.OTelHeaders,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() { _ = shutdownTelemetry(context.Background()) }()

	db, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	if err := db.AutoMigrate(); err != nil {
		return fmt.Errorf("migrate store: %w", err)
	}

	client, err := chain.Dial(ctx, chain.DefaultDialConfig(cfg.RPCURL))
	if err != nil {
		return fmt.Errorf("dial rpc: %w", err)
	}

	currentBlock, err := client.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("get current block for reserve discovery: %w", err)
	}

	poolAddress := common.HexToAddress(cfg.PoolAddress)
	registry, err := chain.DiscoverReserves(ctx, client, poolAddress, currentBlock)
	if err != nil {
		return fmt.Errorf("discover reserves: %w", err)
	}
	log.Info("discovered reserves", "reserve_count", len(registry.Reserves))

	m := metrics.New()

	extractor := position.New(client, registry, db, position.Config{
		PoolAddress:          poolAddress,
		DataProviderAddress:  common.HexToAddress(cfg.PoolDataProvider),
		PriceOracleAddress:   common.HexToAddress(cfg.PriceOracle),
		MaxBlockLag:          cfg.MaxBlockLag,
		MaxCapOnHealthFactor: cfg.MaxCapOnHealthFactor,
		AtRiskThreshold:      cfg.AtRiskHealthFactor,
	}, m, log)

	ingestLoop := ingest.New(client, extractor, db, ingest.Config{
		PoolAddress:   poolAddress,
		StartBlock:    cfg.StartBlock,
		LogPerRequest: cfg.LogPerRequest,
		MaxBlockLag:   cfg.MaxBlockLag,
	}, m, log)

	refreshLoop := refresh.New(client, extractor, db, refresh.Config{
		LiquidatableFrequency: cfg.LiquidatableUsersUpdateFrequency,
		AtRiskFrequency:       cfg.AtRiskUsersUpdateFrequency,
		HealthyFrequency:      cfg.HealthyUsersUpdateFrequency,
	}, m, log)

	health := healthserver.New(listenAddr(cfg.Port), log)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return ingestLoop.Run(groupCtx) })
	group.Go(func() error { return refreshLoop.Run(groupCtx) })
	group.Go(func() error { return health.Run(groupCtx) })

	if err := group.Wait(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("indexer stopped: %w", err)
	}
	log.Info("all indexer loops stopped")
	return nil
}

// Reset drops and recreates every table the indexer owns, backing the CLI
// "reset" verb.
func Reset(ctx context.Context) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logging.Setup("indexer", cfg.Environment)

	db, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	if err := db.Reset(ctx); err != nil {
		return fmt.Errorf("reset store: %w", err)
	}
	log.Info("database reset")
	return nil
}

func listenAddr(port string) string {
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}
