package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/time/rate"
)

// DialConfig controls how the RPC client dials, throttles, and retries
// against the configured endpoint.
type DialConfig struct {
	URL           string
	CallTimeout   time.Duration
	Retries       int
	RetryDelay    time.Duration
	RatePerSecond float64
	Burst         int
}

// DefaultDialConfig mirrors the reference client's retry backoff layer
// (10 attempts, fixed delay) but as a plain fixed-delay retry rather than an
// exponential one, since Go's RPC transport already pools connections. The
// rate limit matches a typical shared-tier RPC provider's request budget.
func DefaultDialConfig(url string) DialConfig {
	return DialConfig{
		URL:           url,
		CallTimeout:   60 * time.Second,
		Retries:       10,
		RetryDelay:    time.Second,
		RatePerSecond: 25,
		Burst:         10,
	}
}

// Client wraps ethclient.Client with the rate limit, retry, and timeout
// policy the indexer's polling loops rely on.
type Client struct {
	eth     *ethclient.Client
	cfg     DialConfig
	limiter *rate.Limiter
}

// Dial connects to cfg.URL and returns a ready-to-use Client.
func Dial(ctx context.Context, cfg DialConfig) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc endpoint: %w", err)
	}
	limit := rate.Limit(cfg.RatePerSecond)
	if cfg.RatePerSecond <= 0 {
		limit = rate.Inf
	}
	return &Client{eth: eth, cfg: cfg, limiter: rate.NewLimiter(limit, cfg.Burst)}, nil
}

// Raw exposes the underlying ethclient.Client. Calls made through it bypass
// the Client's rate limit, retry and timeout policy.
func (c *Client) Raw() *ethclient.Client {
	return c.eth
}

func (c *Client) withRetry(ctx context.Context, fn func(context.Context) error) error {
	var lastErr error
	attempts := c.cfg.Retries
	if attempts < 1 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
		lastErr = fn(callCtx)
		cancel()
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		select {
		case <-time.After(c.cfg.RetryDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

// BlockNumber returns the current chain head, retrying on transient RPC
// failures.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var head uint64
	err := c.withRetry(ctx, func(ctx context.Context) error {
		n, err := c.eth.BlockNumber(ctx)
		if err != nil {
			return err
		}
		head = n
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("block number: %w", err)
	}
	return head, nil
}

// FilterLogs returns logs matching q, retrying on transient RPC failures.
func (c *Client) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	var logs []types.Log
	err := c.withRetry(ctx, func(ctx context.Context) error {
		l, err := c.eth.FilterLogs(ctx, q)
		if err != nil {
			return err
		}
		logs = l
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("filter logs: %w", err)
	}
	return logs, nil
}

// CallContract performs a point-in-time contract call, retrying on
// transient RPC failures. Satisfies the Caller interface the Aggregator
// depends on.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	var out []byte
	err := c.withRetry(ctx, func(ctx context.Context) error {
		res, err := c.eth.CallContract(ctx, msg, blockNumber)
		if err != nil {
			return err
		}
		out = res
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("call contract: %w", err)
	}
	return out, nil
}
