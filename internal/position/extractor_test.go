package position

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/etherlinkcom/superlend-liquidation-bot-indexer/internal/chain"
)

func reserveDataPayload(t *testing.T, aTokenBalance, variableDebt uint64) []byte {
	t.Helper()
	data := make([]byte, 9*32)
	data[31] = byte(aTokenBalance)
	data[2*32+31] = byte(variableDebt)
	return data
}

func TestDecodeReservePositionsSkipsZeroBalances(t *testing.T) {
	reserveA := common.HexToAddress("0xaa")
	e := &Extractor{
		registry: &chain.Registry{Reserves: []chain.Reserve{
			{Address: reserveA, Decimals: 0},
		}},
	}

	results := [][]byte{reserveDataPayload(t, 0, 0)}
	prices := map[common.Address]*big.Int{reserveA: big.NewInt(0)}

	positions, _, _, err := e.decodeReservePositions(results, prices)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(positions) != 0 {
		t.Errorf("len(positions) = %d, want 0 for an all-zero reserve", len(positions))
	}
}

func TestDecodeReservePositionsComputesUSDValue(t *testing.T) {
	reserveA := common.HexToAddress("0xaa")
	e := &Extractor{
		registry: &chain.Registry{Reserves: []chain.Reserve{
			{Address: reserveA, Decimals: 0},
		}},
	}

	results := [][]byte{reserveDataPayload(t, 100, 0)}
	price := uint256.NewInt(2 * 100000000) // price = 2.0 at 8 decimals
	prices := map[common.Address]*big.Int{reserveA: price.ToBig()}

	positions, leadingCollateral, _, err := e.decodeReservePositions(results, prices)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("len(positions) = %d, want 1", len(positions))
	}
	got := positions[0]
	if got.AmountInToken != 100 {
		t.Errorf("AmountInToken = %v, want 100", got.AmountInToken)
	}
	if got.Price != 2.0 {
		t.Errorf("Price = %v, want 2.0", got.Price)
	}
	if got.AmountInUSD != 200.0 {
		t.Errorf("AmountInUSD = %v, want 200.0", got.AmountInUSD)
	}
	if !got.IsCollateral {
		t.Error("expected IsCollateral to be true for aToken balance")
	}
	if leadingCollateral.address != reserveA.Hex() || leadingCollateral.amount != 100 {
		t.Errorf("leadingCollateral = %+v, want {%s 100}", leadingCollateral, reserveA.Hex())
	}
}

func TestDecodeReservePositionsLeadingReserveTieBreaksFirstSeen(t *testing.T) {
	reserveA := common.HexToAddress("0xaa")
	reserveB := common.HexToAddress("0xbb")
	e := &Extractor{
		registry: &chain.Registry{Reserves: []chain.Reserve{
			{Address: reserveA, Decimals: 0},
			{Address: reserveB, Decimals: 0},
		}},
	}

	results := [][]byte{
		reserveDataPayload(t, 50, 0),
		reserveDataPayload(t, 50, 0),
	}
	prices := map[common.Address]*big.Int{
		reserveA: big.NewInt(0),
		reserveB: big.NewInt(0),
	}

	_, leadingCollateral, _, err := e.decodeReservePositions(results, prices)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if leadingCollateral.address != reserveA.Hex() {
		t.Errorf("leadingCollateral.address = %q, want first-seen reserve %q on a tie", leadingCollateral.address, reserveA.Hex())
	}
}

func TestPriceOfNilPrice(t *testing.T) {
	if got := priceOf(nil); got != 0 {
		t.Errorf("priceOf(nil) = %v, want 0", got)
	}
}
