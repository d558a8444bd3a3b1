package market

import (
	"fmt"
	"math/big"
)

// InverseBasisPoint is the fixed-point base for all percentage math: a value of
// 10000 basis points equals 100%.
const InverseBasisPoint = 10_000

// MaxDurationDays caps the day-denominated windows so deadline arithmetic in
// unix seconds stays within int64.
const MaxDurationDays = 100 * 365

// Listing describes the immutable terms a seller publishes. Listings are never
// stored by value; callers re-supply the full struct and engines re-validate it
// against the canonical hash.
type Listing struct {
	IPFSHash      [32]byte
	Seller        [20]byte
	CommissionBps uint64
	CashbackBps   uint64
	Warranty      uint64 // days
	Expiration    uint64 // unix seconds, zero means the listing never expires
}

// Order captures the immutable terms of a purchase against a listing. The
// runtime transaction record is kept separately, keyed by the order hash.
type Order struct {
	Listing             Listing
	Buyer               [20]byte
	Commissioner        [20]byte
	Token               [20]byte
	Quantity            uint64
	Total               *big.Int
	Cashback            *big.Int
	Commission          *big.Int
	ProtocolFee         *big.Int
	ConfirmationTimeout uint64 // days
	Nonce               uint64
}

// Clone returns a deep copy of the order so callers can safely mutate the copy.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Total = cloneBig(o.Total)
	clone.Cashback = cloneBig(o.Cashback)
	clone.Commission = cloneBig(o.Commission)
	clone.ProtocolFee = cloneBig(o.ProtocolFee)
	return &clone
}

// Sanitize validates the order amounts and returns a deep copy with non-nil
// big.Int fields.
func (o *Order) Sanitize() (*Order, error) {
	if o == nil {
		return nil, fmt.Errorf("market: nil order")
	}
	clone := o.Clone()
	if clone.Total.Sign() <= 0 {
		return nil, fmt.Errorf("market: order total must be positive")
	}
	for name, amt := range map[string]*big.Int{
		"cashback":    clone.Cashback,
		"commission":  clone.Commission,
		"protocolFee": clone.ProtocolFee,
	} {
		if amt.Sign() < 0 {
			return nil, fmt.Errorf("market: order %s must be non-negative", name)
		}
	}
	if clone.ConfirmationTimeout > MaxDurationDays {
		return nil, fmt.Errorf("market: confirmation timeout exceeds %d days", MaxDurationDays)
	}
	if clone.Listing.Warranty > MaxDurationDays {
		return nil, fmt.Errorf("market: warranty exceeds %d days", MaxDurationDays)
	}
	return clone, nil
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
