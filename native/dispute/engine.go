package dispute

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"dagora/core/events"
	"dagora/core/types"
	"dagora/native/market"
)

// ModuleName keys the vault address holding the arbitration-fee escrow.
const ModuleName = "dispute"

// DefaultTimeout is the fallback waiting period before a one-sided dispute may
// be resolved by timeout.
const DefaultTimeout int64 = 7 * 24 * 60 * 60

var (
	// ErrDisputeExists is returned when a live dispute is already recorded
	// against the identifier.
	ErrDisputeExists = errors.New("dispute: already exists")
	// ErrNoDispute is returned for operations on an unknown identifier.
	ErrNoDispute = errors.New("dispute: not found")
	// ErrFeeTooLow is returned when a payment does not cover the current
	// arbitration cost.
	ErrFeeTooLow = errors.New("dispute: fee must cover arbitration cost")
	// ErrAlreadyCreated guards fee payments once the arbitrator is engaged.
	ErrAlreadyCreated = errors.New("dispute: already created")
	// ErrAlreadyResolved guards against double rulings.
	ErrAlreadyResolved = errors.New("dispute: already resolved")
	// ErrNotCreated is returned when a ruling arrives before both fees.
	ErrNotCreated = errors.New("dispute: not awaiting ruling")
	// ErrNotParty is returned when the caller is neither prosecution nor
	// defendant.
	ErrNotParty = errors.New("dispute: caller is not a party")
	// ErrNotWaitingParty is returned when a timeout fires on a dispute that is
	// not waiting for any party.
	ErrNotWaitingParty = errors.New("dispute: not waiting for any party")
	// ErrTimeoutNotElapsed is returned when the waiting period has not passed.
	ErrTimeoutNotElapsed = errors.New("dispute: timeout has not elapsed")
	// ErrNotArbitrator guards the ruling entrypoint.
	ErrNotArbitrator = errors.New("dispute: caller is not the arbitrator")
	// ErrUnknownClient is returned when a dispute names an unregistered
	// disputable client.
	ErrUnknownClient = errors.New("dispute: unknown disputable client")

	errNilState      = errors.New("dispute engine: state not configured")
	errNilArbitrator = errors.New("dispute engine: arbitrator not configured")
)

type engineState interface {
	Lock()
	Unlock()
	DisputePut(*Dispute) error
	DisputeGet(id [32]byte) (*Dispute, bool)
	DisputeDelete(id [32]byte) error
	CoinTransfer(from, to [20]byte, amount *big.Int) error
	ModuleAddress(module string) ([20]byte, error)
}

type disputeEvent struct {
	evt *types.Event
}

func (e disputeEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e disputeEvent) Event() *types.Event { return e.evt }

// Engine is a reusable two-party fee-escrow arbitration state machine. It
// custodies only the native-currency arbitration fees; the disputed token value
// stays with the disputable client, keeping this engine's failure surface
// decoupled from the clients' financial logic.
type Engine struct {
	state      engineState
	emitter    events.Emitter
	arbitrator Arbitrator
	clients    map[string]Disputable
	timeout    int64
	nowFn      func() int64
}

// NewEngine creates a dispute engine with the default timeout and a no-op
// emitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		clients: make(map[string]Disputable),
		timeout: DefaultTimeout,
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetArbitrator configures the external arbitrator collaborator.
func (e *Engine) SetArbitrator(arb Arbitrator) { e.arbitrator = arb }

// SetTimeout overrides the waiting period, in seconds.
func (e *Engine) SetTimeout(seconds int64) {
	if seconds > 0 {
		e.timeout = seconds
	}
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// RegisterClient binds a disputable client to the name disputes carry.
func (e *Engine) RegisterClient(name string, client Disputable) {
	if e.clients == nil {
		e.clients = make(map[string]Disputable)
	}
	e.clients[name] = client
}

// ArbitrationCost returns the current cost quoted by the arbitrator.
func (e *Engine) ArbitrationCost() (*big.Int, error) {
	if e == nil || e.arbitrator == nil {
		return nil, errNilArbitrator
	}
	cost := e.arbitrator.ArbitrationCost()
	if cost == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(cost), nil
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(disputeEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// Get returns the dispute recorded for an identifier, if any.
func (e *Engine) Get(id [32]byte) (*Dispute, bool) {
	if e == nil || e.state == nil {
		return nil, false
	}
	d, ok := e.state.DisputeGet(id)
	if !ok {
		return nil, false
	}
	return d.Clone(), true
}

// Open reports whether a live (unresolved) dispute exists for the identifier.
func (e *Engine) Open(id [32]byte) bool {
	d, ok := e.Get(id)
	if !ok {
		return false
	}
	return d.Status != StatusNone && d.Status != StatusResolved
}

func (e *Engine) loadDispute(id [32]byte) (*Dispute, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	d, ok := e.state.DisputeGet(id)
	if !ok {
		return nil, ErrNoDispute
	}
	return d.Sanitize()
}

// CreateDispute opens a dispute raised by a registered disputable client. The
// fee payment is escrowed from the prosecution in the native currency; any
// excess over the current arbitration cost is kept as fee credit and refunded
// once the dispute is raised. After the record is persisted the client's
// OnDispute callback runs, placing the contested value at risk; when the
// callback fails the record and the fee are unwound. The call runs inside the
// raising client's transition, which already holds the ledger lock.
func (e *Engine) CreateDispute(client string, id [32]byte, prosecution, defendant, token [20]byte, amount, feePayment *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.arbitrator == nil {
		return errNilArbitrator
	}
	disputable, ok := e.clients[client]
	if !ok || disputable == nil {
		return ErrUnknownClient
	}
	if existing, found := e.state.DisputeGet(id); found && existing.Status != StatusResolved {
		return ErrDisputeExists
	}
	cost, err := e.ArbitrationCost()
	if err != nil {
		return err
	}
	if feePayment == nil || feePayment.Cmp(cost) < 0 {
		return ErrFeeTooLow
	}
	vault, err := e.state.ModuleAddress(ModuleName)
	if err != nil {
		return err
	}
	if err := e.state.CoinTransfer(prosecution, vault, feePayment); err != nil {
		return err
	}
	now := e.now()
	d := &Dispute{
		ID:              id,
		Client:          client,
		Prosecution:     prosecution,
		Defendant:       defendant,
		Token:           token,
		Amount:          cloneBig(amount),
		ProsecutionFee:  new(big.Int).Set(feePayment),
		DefendantFee:    big.NewInt(0),
		Status:          StatusWaitingDefendant,
		CreatedAt:       now,
		LastInteraction: now,
	}
	if err := e.state.DisputePut(d); err != nil {
		return err
	}
	if err := disputable.OnDispute(id); err != nil {
		if delErr := e.state.DisputeDelete(id); delErr != nil {
			return delErr
		}
		if refundErr := e.state.CoinTransfer(vault, prosecution, feePayment); refundErr != nil {
			return refundErr
		}
		return err
	}
	e.emit(newHasToPayFeeEvent(id, PartyDefendant))
	return nil
}

// PayArbitrationFee credits the caller's side of the fee escrow. Once both
// sides meet the current arbitration cost the dispute is raised with the
// arbitrator and any overpayment is immediately refunded.
func (e *Engine) PayArbitrationFee(id [32]byte, payer [20]byte, payment *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.state.Lock()
	defer e.state.Unlock()
	d, err := e.loadDispute(id)
	if err != nil {
		return err
	}
	if d.Status == StatusCreated || d.Status == StatusResolved {
		return ErrAlreadyCreated
	}
	if !d.Status.Waiting() {
		return ErrNoDispute
	}
	var fee **big.Int
	switch payer {
	case d.Prosecution:
		fee = &d.ProsecutionFee
	case d.Defendant:
		fee = &d.DefendantFee
	default:
		return ErrNotParty
	}
	cost, err := e.ArbitrationCost()
	if err != nil {
		return err
	}
	if payment == nil {
		payment = big.NewInt(0)
	}
	paid := new(big.Int).Add(*fee, payment)
	if paid.Cmp(cost) < 0 {
		return ErrFeeTooLow
	}
	vault, err := e.state.ModuleAddress(ModuleName)
	if err != nil {
		return err
	}
	if payment.Sign() > 0 {
		if err := e.state.CoinTransfer(payer, vault, payment); err != nil {
			return err
		}
	}
	*fee = paid
	d.LastInteraction = e.now()
	if d.ProsecutionFee.Cmp(cost) >= 0 && d.DefendantFee.Cmp(cost) >= 0 {
		return e.raiseDispute(d, cost, vault)
	}
	// The other side's fee no longer covers the (possibly increased) cost.
	if d.ProsecutionFee.Cmp(cost) < 0 {
		d.Status = StatusWaitingProsecution
		if err := e.state.DisputePut(d); err != nil {
			return err
		}
		e.emit(newHasToPayFeeEvent(id, PartyProsecution))
		return nil
	}
	d.Status = StatusWaitingDefendant
	if err := e.state.DisputePut(d); err != nil {
		return err
	}
	e.emit(newHasToPayFeeEvent(id, PartyDefendant))
	return nil
}

// raiseDispute refunds each side's overpayment, retains exactly the arbitration
// cost per party and asks the arbitrator to rule.
func (e *Engine) raiseDispute(d *Dispute, cost *big.Int, vault [20]byte) error {
	if excess := new(big.Int).Sub(d.ProsecutionFee, cost); excess.Sign() > 0 {
		if err := e.state.CoinTransfer(vault, d.Prosecution, excess); err != nil {
			return err
		}
		d.ProsecutionFee = new(big.Int).Set(cost)
	}
	if excess := new(big.Int).Sub(d.DefendantFee, cost); excess.Sign() > 0 {
		if err := e.state.CoinTransfer(vault, d.Defendant, excess); err != nil {
			return err
		}
		d.DefendantFee = new(big.Int).Set(cost)
	}
	d.Status = StatusCreated
	if err := e.state.DisputePut(d); err != nil {
		return err
	}
	e.emit(newCreatedEvent(d))
	return e.arbitrator.RequestRuling(d.ID)
}

// Timeout resolves a one-sided dispute in favor of the party that paid, once
// the waiting period has elapsed. Callable by anyone.
func (e *Engine) Timeout(id [32]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.state.Lock()
	defer e.state.Unlock()
	d, err := e.loadDispute(id)
	if err != nil {
		if errors.Is(err, ErrNoDispute) {
			return ErrNotWaitingParty
		}
		return err
	}
	if !d.Status.Waiting() {
		return ErrNotWaitingParty
	}
	if e.now()-d.LastInteraction < e.timeout {
		return ErrTimeoutNotElapsed
	}
	ruling := RulingProsecution
	if d.Status == StatusWaitingProsecution {
		ruling = RulingDefendant
	}
	// Neither side received arbitration; both escrowed fees go back.
	vault, err := e.state.ModuleAddress(ModuleName)
	if err != nil {
		return err
	}
	if err := e.refundFees(d, vault); err != nil {
		return err
	}
	return e.resolve(d, ruling)
}

// Rule records the arbitrator's decision and distributes the fee escrow: the
// winner's cost is refunded and the loser's pays the arbitrator. A refused
// ruling refunds floor(cost/2) to each side, remainder to the arbitrator.
func (e *Engine) Rule(id [32]byte, caller [20]byte, ruling Ruling) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.arbitrator == nil {
		return errNilArbitrator
	}
	e.state.Lock()
	defer e.state.Unlock()
	if caller != e.arbitrator.Address() {
		return ErrNotArbitrator
	}
	if !ruling.Valid() {
		return fmt.Errorf("dispute: invalid ruling: %d", ruling)
	}
	d, err := e.loadDispute(id)
	if err != nil {
		return err
	}
	if d.Status == StatusResolved {
		return ErrAlreadyResolved
	}
	if d.Status != StatusCreated {
		return ErrNotCreated
	}
	vault, err := e.state.ModuleAddress(ModuleName)
	if err != nil {
		return err
	}
	arbAddr := e.arbitrator.Address()
	switch ruling {
	case RulingProsecution:
		if err := e.payFee(vault, d.Prosecution, d.ProsecutionFee); err != nil {
			return err
		}
		if err := e.payFee(vault, arbAddr, d.DefendantFee); err != nil {
			return err
		}
	case RulingDefendant:
		if err := e.payFee(vault, d.Defendant, d.DefendantFee); err != nil {
			return err
		}
		if err := e.payFee(vault, arbAddr, d.ProsecutionFee); err != nil {
			return err
		}
	case RulingNone:
		for _, side := range []struct {
			party [20]byte
			fee   *big.Int
		}{
			{d.Prosecution, d.ProsecutionFee},
			{d.Defendant, d.DefendantFee},
		} {
			half, rest := market.SplitHalf(side.fee)
			if err := e.payFee(vault, side.party, half); err != nil {
				return err
			}
			if err := e.payFee(vault, arbAddr, rest); err != nil {
				return err
			}
		}
	}
	return e.resolve(d, ruling)
}

func (e *Engine) payFee(vault, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	return e.state.CoinTransfer(vault, to, amount)
}

func (e *Engine) refundFees(d *Dispute, vault [20]byte) error {
	if err := e.payFee(vault, d.Prosecution, d.ProsecutionFee); err != nil {
		return err
	}
	return e.payFee(vault, d.Defendant, d.DefendantFee)
}

// resolve marks the dispute terminal and delivers the ruling to the client.
// The status is persisted before the callback so a reentrant call observes the
// resolved state and is rejected.
func (e *Engine) resolve(d *Dispute, ruling Ruling) error {
	d.Status = StatusResolved
	if err := e.state.DisputePut(d); err != nil {
		return err
	}
	e.emit(newResolvedEvent(d, ruling))
	client, ok := e.clients[d.Client]
	if !ok || client == nil {
		return ErrUnknownClient
	}
	return client.OnRuling(d.ID, ruling)
}

// SubmitEvidence forwards a party's evidence to the arbitrator.
func (e *Engine) SubmitEvidence(id [32]byte, party [20]byte, evidence []byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.state.Lock()
	defer e.state.Unlock()
	d, err := e.loadDispute(id)
	if err != nil {
		return err
	}
	if party != d.Prosecution && party != d.Defendant {
		return ErrNotParty
	}
	if e.arbitrator == nil {
		return errNilArbitrator
	}
	if err := e.arbitrator.SubmitEvidence(id, party, evidence); err != nil {
		return err
	}
	e.emit(newEvidenceEvent(id, party))
	return nil
}

// Appeal forwards a party's appeal to the arbitrator.
func (e *Engine) Appeal(id [32]byte, party [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.state.Lock()
	defer e.state.Unlock()
	d, err := e.loadDispute(id)
	if err != nil {
		return err
	}
	if party != d.Prosecution && party != d.Defendant {
		return ErrNotParty
	}
	if e.arbitrator == nil {
		return errNilArbitrator
	}
	if err := e.arbitrator.Appeal(id, party); err != nil {
		return err
	}
	e.emit(newAppealEvent(id, party))
	return nil
}
