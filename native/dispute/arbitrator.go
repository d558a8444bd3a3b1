package dispute

import (
	"math/big"
	"sync"
)

// StaticArbitrator is a fixed-address, fixed-cost arbitrator. Ruling requests,
// evidence and appeals are queued for an off-ledger court that later answers
// through Engine.Rule from the arbitrator's address.
type StaticArbitrator struct {
	addr [20]byte
	cost *big.Int

	mu       sync.Mutex
	pending  map[[32]byte]struct{}
	evidence map[[32]byte][][]byte
}

// NewStaticArbitrator creates an arbitrator quoting a constant cost.
func NewStaticArbitrator(addr [20]byte, cost *big.Int) *StaticArbitrator {
	c := big.NewInt(0)
	if cost != nil {
		c = new(big.Int).Set(cost)
	}
	return &StaticArbitrator{
		addr:     addr,
		cost:     c,
		pending:  make(map[[32]byte]struct{}),
		evidence: make(map[[32]byte][][]byte),
	}
}

func (a *StaticArbitrator) Address() [20]byte { return a.addr }

func (a *StaticArbitrator) ArbitrationCost() *big.Int { return new(big.Int).Set(a.cost) }

// SetArbitrationCost updates the quoted cost for future disputes.
func (a *StaticArbitrator) SetArbitrationCost(cost *big.Int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if cost == nil {
		a.cost = big.NewInt(0)
		return
	}
	a.cost = new(big.Int).Set(cost)
}

func (a *StaticArbitrator) RequestRuling(id [32]byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending[id] = struct{}{}
	return nil
}

func (a *StaticArbitrator) SubmitEvidence(id [32]byte, party [20]byte, evidence []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.evidence[id] = append(a.evidence[id], append([]byte(nil), evidence...))
	return nil
}

func (a *StaticArbitrator) Appeal(id [32]byte, party [20]byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending[id] = struct{}{}
	return nil
}

// Pending reports whether a ruling request is outstanding for the identifier.
func (a *StaticArbitrator) Pending(id [32]byte) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.pending[id]
	return ok
}

// Settle clears the pending marker once a ruling has been delivered.
func (a *StaticArbitrator) Settle(id [32]byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.pending, id)
	delete(a.evidence, id)
}
