package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// MulticallAddress is the canonical deterministic-deployment address of
// Multicall3 on every EVM chain it has been deployed to.
var MulticallAddress = common.HexToAddress("0xcA11bde05977b3631167028862bE2a173976CA11")

type call3 struct {
	Target       common.Address
	AllowFailure bool
	CallData     []byte
}

type result3 struct {
	Success    bool
	ReturnData []byte
}

var aggregate3ABI = mustParseABI(`[{
	"name": "aggregate3",
	"type": "function",
	"stateMutability": "payable",
	"inputs": [{"name":"calls","type":"tuple[]","components":[
		{"name":"target","type":"address"},
		{"name":"allowFailure","type":"bool"},
		{"name":"callData","type":"bytes"}
	]}],
	"outputs": [{"name":"returnData","type":"tuple[]","components":[
		{"name":"success","type":"bool"},
		{"name":"returnData","type":"bytes"}
	]}]
}]`)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("chain: invalid embedded aggregate3 ABI: %v", err))
	}
	return parsed
}

// aggregate3Output mirrors the aggregate3 ABI return tuple. Field names and
// order must match the ABI's component names (capitalized) for
// abi.UnpackIntoInterface's reflection-based decoding to bind correctly.
type aggregate3Output struct {
	ReturnData []struct {
		Success    bool
		ReturnData []byte
	}
}

// Caller performs point-in-time contract calls. ethclient.Client satisfies
// this via CallContract.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Aggregator batches reads into a single Multicall3.aggregate3 call pinned
// at a specific block, giving every read in the batch a consistent view of
// chain state.
type Aggregator struct {
	caller Caller
	calls  []call3
}

// NewAggregator builds an Aggregator bound to the given RPC caller.
func NewAggregator(caller Caller) *Aggregator {
	return &Aggregator{caller: caller}
}

// Add queues a call against target with allowFailure=true: a single
// reverting call must not sink the whole batch.
func (a *Aggregator) Add(target common.Address, data []byte) {
	a.calls = append(a.calls, call3{Target: target, AllowFailure: true, CallData: data})
}

// Clear drops all queued calls, readying the aggregator for the next batch.
func (a *Aggregator) Clear() {
	a.calls = a.calls[:0]
}

// Len reports how many calls are currently queued.
func (a *Aggregator) Len() int {
	return len(a.calls)
}

// Execute runs the queued calls through Multicall3.aggregate3 at
// blockNumber and returns one return-data slice per queued call, in order.
// A call whose success flag came back false yields a nil slice rather
// than an error, mirroring Aave's own fail-open reserve scans.
func (a *Aggregator) Execute(ctx context.Context, blockNumber *big.Int) ([][]byte, error) {
	if len(a.calls) == 0 {
		return nil, nil
	}
	packed, err := aggregate3ABI.Pack("aggregate3", a.calls)
	if err != nil {
		return nil, fmt.Errorf("pack aggregate3: %w", err)
	}
	raw, err := a.caller.CallContract(ctx, ethereum.CallMsg{
		To:   &MulticallAddress,
		Data: packed,
	}, blockNumber)
	if err != nil {
		return nil, fmt.Errorf("call aggregate3: %w", err)
	}
	var decoded aggregate3Output
	if err := aggregate3ABI.UnpackIntoInterface(&decoded, "aggregate3", raw); err != nil {
		return nil, fmt.Errorf("unpack aggregate3: %w", err)
	}
	out := make([][]byte, len(decoded.ReturnData))
	for i, r := range decoded.ReturnData {
		if r.Success {
			out[i] = r.ReturnData
		}
	}
	return out, nil
}
