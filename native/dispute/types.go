package dispute

import (
	"fmt"
	"math/big"
)

// Status tracks the arbitration lifecycle of a dispute.
type Status uint8

const (
	StatusNone               Status = iota // no dispute recorded
	StatusWaitingProsecution               // prosecution must top up its fee
	StatusWaitingDefendant                 // defendant must pay its fee
	StatusCreated                          // both fees escrowed, arbitrator asked to rule
	StatusResolved                         // terminal
)

// Valid reports whether the status value is within the supported range.
func (s Status) Valid() bool {
	return s <= StatusResolved
}

// Waiting reports whether the dispute is waiting on either party's fee.
func (s Status) Waiting() bool {
	return s == StatusWaitingProsecution || s == StatusWaitingDefendant
}

// Ruling is the arbitrator's decision.
type Ruling uint8

const (
	RulingNone        Ruling = iota // arbitrator refused to rule
	RulingProsecution               // in favor of the prosecution
	RulingDefendant                 // in favor of the defendant
)

// Valid reports whether the ruling value is within the supported range.
func (r Ruling) Valid() bool {
	return r <= RulingDefendant
}

// Party identifies one side of a dispute in events.
type Party uint8

const (
	PartyProsecution Party = iota
	PartyDefendant
)

// Disputable is implemented by any client that can raise a dispute against a
// shared content-hash identifier and receive its resolution. Clients are
// addressed by registered name rather than object reference so the dispute
// engine and its clients never own each other.
type Disputable interface {
	// OnDispute is invoked after a dispute the client raised has been
	// recorded, letting the client place the contested value at risk.
	OnDispute(id [32]byte) error
	// OnRuling delivers the final resolution. The client releases the
	// disputed funds it custodies accordingly.
	OnRuling(id [32]byte, ruling Ruling) error
}

// Arbitrator is the external judgment collaborator. The engine never assumes
// when a ruling arrives, only that it eventually does or that the timeout path
// fires first.
type Arbitrator interface {
	Address() [20]byte
	ArbitrationCost() *big.Int
	RequestRuling(id [32]byte) error
	SubmitEvidence(id [32]byte, party [20]byte, evidence []byte) error
	Appeal(id [32]byte, party [20]byte) error
}

// Dispute is the fee-escrow record for a single arbitration case. The disputed
// token amount is custodied by the disputable client, never by this engine.
type Dispute struct {
	ID              [32]byte `json:"id"`
	Client          string   `json:"client"`
	Prosecution     [20]byte `json:"prosecution"`
	Defendant       [20]byte `json:"defendant"`
	Token           [20]byte `json:"token"`
	Amount          *big.Int `json:"amount"`
	ProsecutionFee  *big.Int `json:"prosecutionFee"`
	DefendantFee    *big.Int `json:"defendantFee"`
	Status          Status   `json:"status"`
	CreatedAt       int64    `json:"createdAt"`
	LastInteraction int64    `json:"lastInteraction"`
}

// Clone returns a deep copy of the dispute.
func (d *Dispute) Clone() *Dispute {
	if d == nil {
		return nil
	}
	clone := *d
	clone.Amount = cloneBig(d.Amount)
	clone.ProsecutionFee = cloneBig(d.ProsecutionFee)
	clone.DefendantFee = cloneBig(d.DefendantFee)
	return &clone
}

// Sanitize validates the record and returns a deep copy with non-nil amounts.
func (d *Dispute) Sanitize() (*Dispute, error) {
	if d == nil {
		return nil, fmt.Errorf("dispute: nil record")
	}
	clone := d.Clone()
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("dispute: invalid status: %d", clone.Status)
	}
	if clone.Amount.Sign() < 0 || clone.ProsecutionFee.Sign() < 0 || clone.DefendantFee.Sign() < 0 {
		return nil, fmt.Errorf("dispute: negative amount")
	}
	return clone, nil
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
