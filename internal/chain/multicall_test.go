package chain

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// fakeCaller simulates Multicall3.aggregate3 by packing canned result3
// values regardless of what was sent, since Aggregator.Execute only cares
// about decoding a well-formed response.
type fakeCaller struct {
	lastMsg ethereum.CallMsg
	success []bool
	returns [][]byte
}

func (f *fakeCaller) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	f.lastMsg = msg
	results := make([]result3, len(f.success))
	for i := range f.success {
		results[i] = result3{Success: f.success[i], ReturnData: f.returns[i]}
	}
	return aggregate3ABI.Methods["aggregate3"].Outputs.Pack(results)
}

func TestAggregatorExecuteReturnsOneSlotPerCall(t *testing.T) {
	caller := &fakeCaller{
		success: []bool{true, false},
		returns: [][]byte{{0x01, 0x02}, {}},
	}
	agg := NewAggregator(caller)
	agg.Add(common.HexToAddress("0xaa"), []byte{0x11})
	agg.Add(common.HexToAddress("0xbb"), []byte{0x22})

	out, err := agg.Execute(context.Background(), big.NewInt(100))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2", len(out))
	}
	if string(out[0]) != string([]byte{0x01, 0x02}) {
		t.Errorf("out[0] = %v, want [1 2]", out[0])
	}
	if out[1] != nil {
		t.Errorf("out[1] = %v, want nil for a failed call", out[1])
	}
}

func TestAggregatorExecuteEmptyBatch(t *testing.T) {
	agg := NewAggregator(&fakeCaller{})
	out, err := agg.Execute(context.Background(), big.NewInt(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != nil {
		t.Errorf("out = %v, want nil for an empty batch", out)
	}
}

func TestAggregatorClearAndLen(t *testing.T) {
	agg := NewAggregator(&fakeCaller{})
	agg.Add(common.HexToAddress("0xaa"), []byte{0x01})
	if agg.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", agg.Len())
	}
	agg.Clear()
	if agg.Len() != 0 {
		t.Fatalf("Len() after Clear() = %d, want 0", agg.Len())
	}
}
