package types

import "math/big"

// Account is a ledger entry for a single address. BalanceCoin tracks the native
// currency used to escrow arbitration fees; Tokens tracks fungible token
// balances keyed by the hex encoding of the token contract address.
type Account struct {
	Nonce       uint64              `json:"nonce"`
	BalanceCoin *big.Int            `json:"balanceCoin"`
	Tokens      map[string]*big.Int `json:"tokens,omitempty"`
}

// TokenBalance returns a copy of the balance held for the given token key,
// never nil.
func (a *Account) TokenBalance(token string) *big.Int {
	if a == nil || a.Tokens == nil {
		return big.NewInt(0)
	}
	if bal, ok := a.Tokens[token]; ok && bal != nil {
		return new(big.Int).Set(bal)
	}
	return big.NewInt(0)
}

// SetTokenBalance stores the balance for the given token key.
func (a *Account) SetTokenBalance(token string, amount *big.Int) {
	if a.Tokens == nil {
		a.Tokens = make(map[string]*big.Int)
	}
	if amount == nil {
		amount = big.NewInt(0)
	}
	a.Tokens[token] = new(big.Int).Set(amount)
}
