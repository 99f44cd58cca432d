// Package ingest tails Borrow events from the Aave pool and feeds each
// borrower through the position extractor, advancing a persisted cursor as
// it goes.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/etherlinkcom/superlend-liquidation-bot-indexer/internal/position"
	"github.com/etherlinkcom/superlend-liquidation-bot-indexer/internal/store"
	"github.com/etherlinkcom/superlend-liquidation-bot-indexer/observability/metrics"
)

// BorrowEventTopic is keccak256 of the Aave Pool Borrow event signature.
var BorrowEventTopic = common.HexToHash("0xb3d084820fb1a9decffb176436bd02558d15fac9b0ddfed8c465bc7359d7dce0")

// LogFilterer matches go-ethereum's ethclient log-filtering surface.
type LogFilterer interface {
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]gethtypes.Log, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// Config controls ingestion cadence and window sizing.
type Config struct {
	PoolAddress   common.Address
	StartBlock    uint64
	LogPerRequest uint64
	MaxBlockLag   uint64
}

// Loop drives the block-window scan described in Config against the chain
// and the borrower store.
type Loop struct {
	client    LogFilterer
	extractor *position.Extractor
	store     *store.Store
	cfg       Config
	metrics   *metrics.Indexer
	log       *slog.Logger
}

// New builds an ingestion Loop.
func New(client LogFilterer, extractor *position.Extractor, st *store.Store, cfg Config, m *metrics.Indexer, log *slog.Logger) *Loop {
	return &Loop{client: client, extractor: extractor, store: st, cfg: cfg, metrics: m, log: log}
}

// Run initializes the cursor and then loops until ctx is cancelled,
// scanning bounded block windows for Borrow events and updating each
// borrower it sees. Only a failure to set up the cursor or read the initial
// chain head returns early; a failed log fetch is logged and the same window
// is retried, and a failed cursor write or head refresh is logged.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.store.InitCursor(ctx, l.cfg.StartBlock); err != nil {
		return fmt.Errorf("init cursor: %w", err)
	}

	cursor, err := l.store.GetCursor(ctx)
	if err != nil {
		return fmt.Errorf("get cursor: %w", err)
	}

	currentBlock, err := l.client.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("get current block: %w", err)
	}

	l.printStatus(cursor, currentBlock)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		nextToBlock := calculateNextBlock(cursor, currentBlock, l.cfg.LogPerRequest, l.cfg.MaxBlockLag)

		if shouldWait(int64(currentBlock), nextToBlock) {
			select {
			case <-time.After(20 * time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
			if head, err := l.client.BlockNumber(ctx); err != nil {
				l.log.Error("refresh current block failed", "error", err.Error())
			} else {
				currentBlock = head
			}
			continue
		}

		logs, err := l.fetchLogs(ctx, cursor, uint64(nextToBlock))
		if err != nil {
			l.metrics.RecordError("rpc")
			l.log.Error("fetch logs failed, retrying window", "cursor_block", cursor, "error", err.Error())
			continue
		}

		if err := l.processLogs(ctx, logs, currentBlock); err != nil {
			return err
		}

		cursor = uint64(nextToBlock)
		if err := l.store.SetCursor(ctx, cursor); err != nil {
			l.metrics.RecordError("store")
			l.log.Error("advance cursor failed", "cursor_block", cursor, "error", err.Error())
		}

		if head, err := l.client.BlockNumber(ctx); err != nil {
			l.log.Error("refresh current block failed", "error", err.Error())
		} else {
			currentBlock = head
		}

		l.metrics.WindowsProcessed.Inc()
		l.printStatus(cursor, currentBlock)
	}
}

func (l *Loop) fetchLogs(ctx context.Context, fromBlock, toBlock uint64) ([]gethtypes.Log, error) {
	return l.client.FilterLogs(ctx, ethereum.FilterQuery{
		Addresses: []common.Address{l.cfg.PoolAddress},
		Topics:    [][]common.Hash{{BorrowEventTopic}},
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
	})
}

// processLogs updates every borrower seen in logs, pinning each multicall at
// currentBlock (the chain head at scan time) rather than the window's end
// block, so a position read during cold-start catch-up reflects the
// borrower's current on-chain state instead of a historical one. A log that
// does not decode, or a borrower whose update fails, is logged and skipped;
// only cancellation of ctx ends the pass with an error.
func (l *Loop) processLogs(ctx context.Context, logs []gethtypes.Log, currentBlock uint64) error {
	for _, rawLog := range logs {
		userAddress, err := decodeBorrowUser(rawLog)
		if err != nil {
			l.metrics.RecordError("decode")
			l.log.Error("skipping undecodable borrow event", "error", err.Error())
			continue
		}
		l.log.Info("updating user from borrow event", "user_address", userAddress, "block_number", currentBlock)
		if err := l.extractor.UpdateUser(ctx, userAddress, currentBlock); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.metrics.RecordError("extract")
			l.log.Error("update user from borrow event failed", "user_address", userAddress, "error", err.Error())
		}
	}
	return nil
}

func decodeBorrowUser(log gethtypes.Log) (string, error) {
	if len(log.Data) < 32 {
		return "", fmt.Errorf("borrow log data too short: %d bytes", len(log.Data))
	}
	var user common.Address
	copy(user[:], log.Data[12:32])
	return user.Hex(), nil
}

func (l *Loop) printStatus(cursorBlock, currentBlock uint64) {
	l.metrics.CursorBlock.Set(float64(cursorBlock))
	l.metrics.ChainHeadBlock.Set(float64(currentBlock))

	progress := 0.0
	if span := float64(currentBlock) - float64(l.cfg.StartBlock); span > 0 {
		progress = (float64(cursorBlock) - float64(l.cfg.StartBlock)) / span * 100.0
	}
	l.log.Info("ingestion status",
		"cursor_block", cursorBlock,
		"block_number", currentBlock,
		"sync_percent", progress,
	)
}

// calculateNextBlock mirrors the reference indexer's window sizing: advance
// by a full LogPerRequest window when the chain is far enough ahead,
// otherwise advance by MaxBlockLag once the lag exceeds that bound, and
// otherwise propose a window that shouldWait will reject until the chain
// catches up.
func calculateNextBlock(cursorBlock, currentBlock, logPerRequest, maxBlockLag uint64) int64 {
	lag := int64(currentBlock) - int64(cursorBlock)
	if lag >= int64(logPerRequest) {
		return int64(cursorBlock) + int64(logPerRequest)
	}
	if lag >= int64(maxBlockLag) {
		return int64(cursorBlock) + int64(maxBlockLag)
	}
	return int64(cursorBlock) + int64(logPerRequest)
}

func shouldWait(currentBlock, nextToBlock int64) bool {
	return nextToBlock > currentBlock
}
