package ingest

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
)

func TestCalculateNextBlock(t *testing.T) {
	cases := []struct {
		name                          string
		cursor, current, perReq, lag uint64
		want                          int64
	}{
		{"far behind advances full window", 100, 1000, 50, 10, 150},
		{"past max lag but short of a window advances by max lag", 100, 130, 50, 10, 110},
		{"caught up advances full window anyway, caller waits", 100, 100, 50, 10, 150},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := calculateNextBlock(c.cursor, c.current, c.perReq, c.lag)
			if got != c.want {
				t.Errorf("calculateNextBlock(%d,%d,%d,%d) = %d, want %d", c.cursor, c.current, c.perReq, c.lag, got, c.want)
			}
		})
	}
}

func TestShouldWait(t *testing.T) {
	if !shouldWait(100, 150) {
		t.Error("expected shouldWait to be true when next block is beyond current head")
	}
	if shouldWait(150, 100) {
		t.Error("expected shouldWait to be false when next block is behind current head")
	}
	if shouldWait(100, 100) {
		t.Error("expected shouldWait to be false when next block equals current head")
	}
}

func TestDecodeBorrowUser(t *testing.T) {
	addr := common.HexToAddress("0x000000000000000000000000000000000000aa")
	data := make([]byte, 32)
	copy(data[12:32], addr[:])

	got, err := decodeBorrowUser(gethtypes.Log{Data: data})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != addr.Hex() {
		t.Errorf("decodeBorrowUser = %q, want %q", got, addr.Hex())
	}
}

func TestDecodeBorrowUserTooShort(t *testing.T) {
	if _, err := decodeBorrowUser(gethtypes.Log{Data: make([]byte, 10)}); err == nil {
		t.Fatal("expected error for truncated log data")
	}
}
