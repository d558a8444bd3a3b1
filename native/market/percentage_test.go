package market

import (
	"math/big"
	"testing"
)

func TestPercentageOf(t *testing.T) {
	cases := []struct {
		total int64
		bps   uint64
		want  int64
	}{
		{10_000, 100, 100},
		{10_000, 10_000, 10_000},
		{10_000, 0, 0},
		{99, 100, 0},     // floors below one unit
		{150, 100, 1},    // 1.5 floors to 1
		{1_000, 333, 33}, // 33.3 floors to 33
	}
	for _, tc := range cases {
		got := PercentageOf(big.NewInt(tc.total), tc.bps)
		if got.Int64() != tc.want {
			t.Fatalf("PercentageOf(%d, %d) = %d, want %d", tc.total, tc.bps, got.Int64(), tc.want)
		}
	}
}

func TestPercentageOfNil(t *testing.T) {
	if got := PercentageOf(nil, 500); got.Sign() != 0 {
		t.Fatalf("PercentageOf(nil) = %s, want 0", got)
	}
}

func TestSplitHalf(t *testing.T) {
	cases := []struct {
		amount, half, rest int64
	}{
		{10, 5, 5},
		{11, 5, 6},
		{1, 0, 1},
		{0, 0, 0},
	}
	for _, tc := range cases {
		half, rest := SplitHalf(big.NewInt(tc.amount))
		if half.Int64() != tc.half || rest.Int64() != tc.rest {
			t.Fatalf("SplitHalf(%d) = (%d, %d), want (%d, %d)", tc.amount, half.Int64(), rest.Int64(), tc.half, tc.rest)
		}
		if new(big.Int).Add(half, rest).Int64() != tc.amount {
			t.Fatalf("SplitHalf(%d) does not conserve the amount", tc.amount)
		}
	}
}
