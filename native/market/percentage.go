package market

import "math/big"

// PercentageOf returns floor(total * bps / 10000). All monetary percentage
// computations in the protocol round down.
func PercentageOf(total *big.Int, bps uint64) *big.Int {
	if total == nil || total.Sign() <= 0 || bps == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(total, new(big.Int).SetUint64(bps))
	return out.Div(out, big.NewInt(InverseBasisPoint))
}

// SplitHalf divides amount into floor(amount/2) and the remainder-carrying
// half, in that order.
func SplitHalf(amount *big.Int) (*big.Int, *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return big.NewInt(0), big.NewInt(0)
	}
	half := new(big.Int).Rsh(amount, 1)
	rest := new(big.Int).Sub(amount, half)
	return half, rest
}
