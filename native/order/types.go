package order

import "math/big"

// Status walks an order through its lifecycle. A cancelled order's record is
// cleared back to the zero slot, so an order with identical terms can be
// re-created after cancellation.
type Status uint8

const (
	StatusNone                        Status = iota // no record (also: cancelled)
	StatusWaitingSeller                             // escrow funded, seller must accept
	StatusWaitingConfirmation                       // accepted, buyer must confirm receipt
	StatusWarranty                                  // confirmed, warranty window running
	StatusWaitingWarrantyConfirmation               // warranty claimed, seller must confirm
	StatusInDispute                                 // arbitration in progress
	StatusFinalized                                 // terminal, funds distributed
)

// Valid reports whether the status value is within the supported range.
func (s Status) Valid() bool {
	return s <= StatusFinalized
}

// Transaction is the runtime record kept per order hash while the escrow is
// live. Refund is the amount the seller has voluntarily offered back to the
// buyer; it is never below the order's cashback once set.
type Transaction struct {
	Hash             [32]byte `json:"hash"`
	Status           Status   `json:"status"`
	LastStatusUpdate int64    `json:"lastStatusUpdate"`
	Refund           *big.Int `json:"refund"`
}

// Clone returns a deep copy of the transaction record.
func (t *Transaction) Clone() *Transaction {
	if t == nil {
		return nil
	}
	clone := *t
	if t.Refund != nil {
		clone.Refund = new(big.Int).Set(t.Refund)
	} else {
		clone.Refund = big.NewInt(0)
	}
	return &clone
}
