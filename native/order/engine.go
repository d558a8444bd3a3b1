package order

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"dagora/core/events"
	"dagora/core/types"
	"dagora/native/dispute"
	"dagora/native/market"
)

// ModuleName identifies the order engine both as a vault key and as its
// registered disputable client name.
const ModuleName = "order"

const secondsPerDay int64 = 24 * 60 * 60

var (
	// ErrInvalidOrder is returned when the order terms fail validation.
	ErrInvalidOrder = errors.New("order: invalid terms")
	// ErrOrderProcessed is returned when an order hash already has a live
	// record.
	ErrOrderProcessed = errors.New("order: already processed")
	// ErrTransferFailed is returned when the escrow token leg fails.
	ErrTransferFailed = errors.New("order: token transfer failed")
	// ErrNotBuyer, ErrNotSeller and ErrNotParty guard role-gated transitions.
	ErrNotBuyer  = errors.New("order: caller is not the buyer")
	ErrNotSeller = errors.New("order: caller is not the seller")
	ErrNotParty  = errors.New("order: caller is neither buyer nor seller")
	// ErrNotWaitingSeller is returned when cancel or accept arrives out of
	// phase.
	ErrNotWaitingSeller = errors.New("order: not waiting for seller")
	// ErrInvalidPhase is the generic status-guard failure.
	ErrInvalidPhase = errors.New("order: transition not allowed in current status")
	// ErrTimeoutNotPassed is returned when a third party forces settlement
	// before the confirmation window has elapsed.
	ErrTimeoutNotPassed = errors.New("order: timeout has not passed yet")
	// ErrConfirmationTimedOut is returned when the seller updates a refund
	// after the confirmation window.
	ErrConfirmationTimedOut = errors.New("order: confirmation window has elapsed")
	// ErrWarrantyTimedOut is returned when the buyer claims warranty too late.
	ErrWarrantyTimedOut = errors.New("order: warranty window has elapsed")
	// ErrRefundBelowCashback and ErrRefundAboveAvailable bound refund updates.
	ErrRefundBelowCashback  = errors.New("order: refund below cashback")
	ErrRefundAboveAvailable = errors.New("order: refund above available value")
	// ErrRefundDecreased is returned when a refund update lowers the offer.
	ErrRefundDecreased = errors.New("order: refund cannot decrease")
	// ErrNotDisputeManager is returned when a dispute callback does not match
	// a dispute this engine raised.
	ErrNotDisputeManager = errors.New("order: callback does not match an open dispute")

	errNilState = errors.New("order engine: state not configured")
)

type engineState interface {
	Lock()
	Unlock()
	TransactionPut(*Transaction) error
	TransactionGet(hash [32]byte) (*Transaction, bool)
	TransactionDelete(hash [32]byte) error
	TokenTransfer(token [20]byte, from, to [20]byte, amount *big.Int) error
	ModuleAddress(module string) ([20]byte, error)
}

type listingGate interface {
	RequireValid(l market.Listing) ([32]byte, error)
}

type disputeManager interface {
	CreateDispute(client string, id [32]byte, prosecution, defendant, token [20]byte, amount, feePayment *big.Int) error
	Get(id [32]byte) (*dispute.Dispute, bool)
}

type orderEvent struct {
	evt *types.Event
}

func (e orderEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e orderEvent) Event() *types.Event { return e.evt }

// Engine escrows the buyer's payment for an order against a listing and walks
// it through acceptance, optional warranty, optional dispute and final
// settlement with fee splitting. The engine's vault holds the escrow for every
// non-finalized order; funds leave only at terminal transitions.
type Engine struct {
	state          engineState
	emitter        events.Emitter
	listings       listingGate
	disputes       disputeManager
	feeRecipient   [20]byte
	protocolFeeBps uint64
	nowFn          func() int64
}

// NewEngine creates an order engine charging protocolFeeBps of every order
// total, paid to feeRecipient at settlement.
func NewEngine(listings listingGate, disputes disputeManager, feeRecipient [20]byte, protocolFeeBps uint64) *Engine {
	return &Engine{
		emitter:        events.NoopEmitter{},
		listings:       listings,
		disputes:       disputes,
		feeRecipient:   feeRecipient,
		protocolFeeBps: protocolFeeBps,
		nowFn:          func() int64 { return time.Now().Unix() },
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

// SetNowFunc overrides the time source, primarily used in tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// ProtocolFeeBps returns the protocol fee floor in basis points.
func (e *Engine) ProtocolFeeBps() uint64 { return e.protocolFeeBps }

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(orderEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// Get returns the live transaction record for an order hash.
func (e *Engine) Get(hash [32]byte) (*Transaction, bool) {
	if e == nil || e.state == nil {
		return nil, false
	}
	tx, ok := e.state.TransactionGet(hash)
	if !ok {
		return nil, false
	}
	return tx.Clone(), true
}

func (e *Engine) loadTransaction(hash [32]byte) (*Transaction, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	tx, ok := e.state.TransactionGet(hash)
	if !ok {
		return &Transaction{Hash: hash, Refund: big.NewInt(0)}, nil
	}
	return tx.Clone(), nil
}

// RequireValidOrder validates the order terms and the listing they reference,
// returning the canonical order hash.
func (e *Engine) RequireValidOrder(o *market.Order) ([32]byte, error) {
	sanitized, err := o.Sanitize()
	if err != nil {
		return [32]byte{}, fmt.Errorf("%w: %v", ErrInvalidOrder, err)
	}
	hash := market.HashOrder(*sanitized)
	if sanitized.Buyer == sanitized.Listing.Seller {
		return hash, fmt.Errorf("%w: buyer and seller are the same", ErrInvalidOrder)
	}
	if sanitized.Commission.Sign() > 0 && sanitized.Commissioner == ([20]byte{}) {
		return hash, fmt.Errorf("%w: commission without commissioner", ErrInvalidOrder)
	}
	if sanitized.Commission.Cmp(market.PercentageOf(sanitized.Total, sanitized.Listing.CommissionBps)) < 0 {
		return hash, fmt.Errorf("%w: commission below listing minimum", ErrInvalidOrder)
	}
	if sanitized.Cashback.Cmp(market.PercentageOf(sanitized.Total, sanitized.Listing.CashbackBps)) < 0 {
		return hash, fmt.Errorf("%w: cashback below listing minimum", ErrInvalidOrder)
	}
	if sanitized.ProtocolFee.Cmp(market.PercentageOf(sanitized.Total, e.protocolFeeBps)) < 0 {
		return hash, fmt.Errorf("%w: protocol fee below minimum", ErrInvalidOrder)
	}
	sum := new(big.Int).Add(sanitized.Cashback, sanitized.Commission)
	sum.Add(sum, sanitized.ProtocolFee)
	if sum.Cmp(sanitized.Total) > 0 {
		return hash, fmt.Errorf("%w: splits exceed total", ErrInvalidOrder)
	}
	if _, err := e.listings.RequireValid(sanitized.Listing); err != nil {
		return hash, err
	}
	return hash, nil
}

// Create escrows the buyer's payment and opens the transaction.
func (e *Engine) Create(caller [20]byte, o *market.Order) ([32]byte, error) {
	if e == nil || e.state == nil {
		return [32]byte{}, errNilState
	}
	e.state.Lock()
	defer e.state.Unlock()
	if o == nil || caller != o.Buyer {
		return [32]byte{}, ErrNotBuyer
	}
	hash, err := e.RequireValidOrder(o)
	if err != nil {
		return hash, err
	}
	if existing, ok := e.state.TransactionGet(hash); ok && existing.Status != StatusNone {
		return hash, ErrOrderProcessed
	}
	vault, err := e.state.ModuleAddress(ModuleName)
	if err != nil {
		return hash, err
	}
	if err := e.state.TokenTransfer(o.Token, o.Buyer, vault, o.Total); err != nil {
		return hash, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	tx := &Transaction{
		Hash:             hash,
		Status:           StatusWaitingSeller,
		LastStatusUpdate: e.now(),
		Refund:           big.NewInt(0),
	}
	if err := e.state.TransactionPut(tx); err != nil {
		return hash, err
	}
	e.emit(newCreatedEvent(hash, o))
	return hash, nil
}

// Cancel refunds the escrow to the buyer while the seller has not yet
// accepted. The record is cleared, so identical terms can be re-submitted.
func (e *Engine) Cancel(caller [20]byte, o *market.Order) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.state.Lock()
	defer e.state.Unlock()
	hash := market.HashOrder(*o)
	tx, err := e.loadTransaction(hash)
	if err != nil {
		return err
	}
	if tx.Status != StatusWaitingSeller {
		return ErrNotWaitingSeller
	}
	if caller != o.Buyer && caller != o.Listing.Seller {
		return ErrNotParty
	}
	vault, err := e.state.ModuleAddress(ModuleName)
	if err != nil {
		return err
	}
	if err := e.state.TransactionDelete(hash); err != nil {
		return err
	}
	if err := e.state.TokenTransfer(o.Token, vault, o.Buyer, o.Total); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	e.emit(newCancelledEvent(hash))
	return nil
}

// Accept moves the order into the buyer confirmation window.
func (e *Engine) Accept(caller [20]byte, o *market.Order) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.state.Lock()
	defer e.state.Unlock()
	hash := market.HashOrder(*o)
	tx, err := e.loadTransaction(hash)
	if err != nil {
		return err
	}
	if tx.Status != StatusWaitingSeller {
		return ErrNotWaitingSeller
	}
	if caller != o.Listing.Seller {
		return ErrNotSeller
	}
	tx.Status = StatusWaitingConfirmation
	tx.LastStatusUpdate = e.now()
	if err := e.state.TransactionPut(tx); err != nil {
		return err
	}
	e.emit(newAcceptedEvent(hash))
	return nil
}

// ConfirmReceipt settles immediately when the listing carries no warranty or
// the seller's refund already covers the full remaining value; otherwise the
// warranty window opens.
func (e *Engine) ConfirmReceipt(caller [20]byte, o *market.Order) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.state.Lock()
	defer e.state.Unlock()
	hash := market.HashOrder(*o)
	tx, err := e.loadTransaction(hash)
	if err != nil {
		return err
	}
	if tx.Status != StatusWaitingConfirmation {
		return ErrInvalidPhase
	}
	if caller != o.Buyer {
		return ErrNotBuyer
	}
	available := new(big.Int).Sub(o.Total, o.ProtocolFee)
	available.Sub(available, o.Commission)
	if o.Listing.Warranty == 0 || tx.Refund.Cmp(available) >= 0 {
		e.emit(newConfirmedEvent(hash))
		return e.settle(hash, o, tx)
	}
	tx.Status = StatusWarranty
	tx.LastStatusUpdate = e.now()
	if err := e.state.TransactionPut(tx); err != nil {
		return err
	}
	e.emit(newConfirmedEvent(hash))
	return nil
}

// ClaimWarranty must arrive within the listing's warranty window.
func (e *Engine) ClaimWarranty(caller [20]byte, o *market.Order) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.state.Lock()
	defer e.state.Unlock()
	hash := market.HashOrder(*o)
	tx, err := e.loadTransaction(hash)
	if err != nil {
		return err
	}
	if tx.Status != StatusWarranty {
		return ErrInvalidPhase
	}
	if caller != o.Buyer {
		return ErrNotBuyer
	}
	if e.now() >= tx.LastStatusUpdate+int64(o.Listing.Warranty)*secondsPerDay {
		return ErrWarrantyTimedOut
	}
	tx.Status = StatusWaitingWarrantyConfirmation
	tx.LastStatusUpdate = e.now()
	if err := e.state.TransactionPut(tx); err != nil {
		return err
	}
	e.emit(newWarrantyClaimedEvent(hash))
	return nil
}

// ConfirmWarrantyReceipt accepts the warranty claim: the full escrow returns
// to the buyer and the seller receives nothing.
func (e *Engine) ConfirmWarrantyReceipt(caller [20]byte, o *market.Order) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.state.Lock()
	defer e.state.Unlock()
	hash := market.HashOrder(*o)
	tx, err := e.loadTransaction(hash)
	if err != nil {
		return err
	}
	if tx.Status != StatusWaitingWarrantyConfirmation {
		return ErrInvalidPhase
	}
	if caller != o.Listing.Seller {
		return ErrNotSeller
	}
	vault, err := e.state.ModuleAddress(ModuleName)
	if err != nil {
		return err
	}
	tx.Status = StatusFinalized
	tx.LastStatusUpdate = e.now()
	if err := e.state.TransactionPut(tx); err != nil {
		return err
	}
	if err := e.state.TokenTransfer(o.Token, vault, o.Buyer, o.Total); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	e.emit(newFinalizedEvent(hash))
	return nil
}

// Execute forces settlement: the buyer may settle a pending confirmation at
// any time, anyone may once the confirmation timeout has elapsed, and anyone
// may settle an unclaimed warranty once its window lapses.
func (e *Engine) Execute(caller [20]byte, o *market.Order) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.state.Lock()
	defer e.state.Unlock()
	hash := market.HashOrder(*o)
	tx, err := e.loadTransaction(hash)
	if err != nil {
		return err
	}
	now := e.now()
	switch tx.Status {
	case StatusWaitingConfirmation:
		if caller != o.Buyer {
			deadline := tx.LastStatusUpdate + int64(o.ConfirmationTimeout)*secondsPerDay
			if now < deadline {
				return ErrTimeoutNotPassed
			}
		}
	case StatusWarranty:
		deadline := tx.LastStatusUpdate + int64(o.Listing.Warranty)*secondsPerDay
		if now < deadline {
			return ErrTimeoutNotPassed
		}
	default:
		return ErrInvalidPhase
	}
	return e.settle(hash, o, tx)
}

// UpdateRefund records a voluntary seller refund, bounded below by the
// cashback and above by the value not already owed to the commissioner and
// protocol. The offer can only grow.
func (e *Engine) UpdateRefund(caller [20]byte, o *market.Order, newRefund *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.state.Lock()
	defer e.state.Unlock()
	hash := market.HashOrder(*o)
	tx, err := e.loadTransaction(hash)
	if err != nil {
		return err
	}
	if tx.Status != StatusWaitingConfirmation {
		return ErrInvalidPhase
	}
	if caller != o.Listing.Seller {
		return ErrNotSeller
	}
	if e.now() >= tx.LastStatusUpdate+int64(o.ConfirmationTimeout)*secondsPerDay {
		return ErrConfirmationTimedOut
	}
	if newRefund == nil || newRefund.Cmp(o.Cashback) < 0 {
		return ErrRefundBelowCashback
	}
	available := new(big.Int).Sub(o.Total, o.ProtocolFee)
	available.Sub(available, o.Commission)
	if newRefund.Cmp(available) > 0 {
		return ErrRefundAboveAvailable
	}
	if newRefund.Cmp(tx.Refund) < 0 {
		return ErrRefundDecreased
	}
	tx.Refund = new(big.Int).Set(newRefund)
	if err := e.state.TransactionPut(tx); err != nil {
		return err
	}
	e.emit(newRefundUpdatedEvent(hash, newRefund))
	return nil
}

// DisputeOrder lets the buyer contest a pending confirmation before the
// window elapses, escrowing the arbitration fee.
func (e *Engine) DisputeOrder(caller [20]byte, o *market.Order, feePayment *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.state.Lock()
	defer e.state.Unlock()
	hash := market.HashOrder(*o)
	tx, err := e.loadTransaction(hash)
	if err != nil {
		return err
	}
	if tx.Status != StatusWaitingConfirmation {
		return ErrInvalidPhase
	}
	if caller != o.Buyer {
		return ErrNotBuyer
	}
	if e.now() >= tx.LastStatusUpdate+int64(o.ConfirmationTimeout)*secondsPerDay {
		return ErrConfirmationTimedOut
	}
	if err := e.disputes.CreateDispute(ModuleName, hash, o.Buyer, o.Listing.Seller, o.Token, o.Total, feePayment); err != nil {
		return err
	}
	e.emit(newDisputedEvent(hash))
	return nil
}

// DisputeWarranty lets the seller contest a warranty claim before the window
// elapses, escrowing the arbitration fee.
func (e *Engine) DisputeWarranty(caller [20]byte, o *market.Order, feePayment *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.state.Lock()
	defer e.state.Unlock()
	hash := market.HashOrder(*o)
	tx, err := e.loadTransaction(hash)
	if err != nil {
		return err
	}
	if tx.Status != StatusWaitingWarrantyConfirmation {
		return ErrInvalidPhase
	}
	if caller != o.Listing.Seller {
		return ErrNotSeller
	}
	if e.now() >= tx.LastStatusUpdate+int64(o.ConfirmationTimeout)*secondsPerDay {
		return ErrConfirmationTimedOut
	}
	if err := e.disputes.CreateDispute(ModuleName, hash, o.Listing.Seller, o.Buyer, o.Token, o.Total, feePayment); err != nil {
		return err
	}
	e.emit(newDisputedEvent(hash))
	return nil
}

// OnDispute freezes the transaction while arbitration runs. Invoked by the
// dispute engine once the dispute this engine raised is recorded.
func (e *Engine) OnDispute(id [32]byte) error {
	d, ok := e.disputes.Get(id)
	if !ok || d.Client != ModuleName || d.Status == dispute.StatusResolved {
		return ErrNotDisputeManager
	}
	tx, err := e.loadTransaction(id)
	if err != nil {
		return err
	}
	if tx.Status != StatusWaitingConfirmation && tx.Status != StatusWaitingWarrantyConfirmation {
		return ErrInvalidPhase
	}
	tx.Status = StatusInDispute
	tx.LastStatusUpdate = e.now()
	return e.state.TransactionPut(tx)
}

// OnRuling distributes the full escrow according to the arbitrator's decision:
// the winning side takes the total; a refused ruling splits it, floor half to
// the prosecution side and the remainder to the defendant side.
func (e *Engine) OnRuling(id [32]byte, ruling dispute.Ruling) error {
	d, ok := e.disputes.Get(id)
	if !ok || d.Client != ModuleName || d.Status != dispute.StatusResolved {
		return ErrNotDisputeManager
	}
	tx, err := e.loadTransaction(id)
	if err != nil {
		return err
	}
	if tx.Status != StatusInDispute {
		return ErrInvalidPhase
	}
	vault, err := e.state.ModuleAddress(ModuleName)
	if err != nil {
		return err
	}
	tx.Status = StatusFinalized
	tx.LastStatusUpdate = e.now()
	if err := e.state.TransactionPut(tx); err != nil {
		return err
	}
	total := d.Amount
	switch ruling {
	case dispute.RulingProsecution:
		if err := e.state.TokenTransfer(d.Token, vault, d.Prosecution, total); err != nil {
			return fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
	case dispute.RulingDefendant:
		if err := e.state.TokenTransfer(d.Token, vault, d.Defendant, total); err != nil {
			return fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
	default:
		half, rest := market.SplitHalf(total)
		if half.Sign() > 0 {
			if err := e.state.TokenTransfer(d.Token, vault, d.Prosecution, half); err != nil {
				return fmt.Errorf("%w: %v", ErrTransferFailed, err)
			}
		}
		if rest.Sign() > 0 {
			if err := e.state.TokenTransfer(d.Token, vault, d.Defendant, rest); err != nil {
				return fmt.Errorf("%w: %v", ErrTransferFailed, err)
			}
		}
	}
	e.emit(newFinalizedEvent(id))
	return nil
}

// settle distributes the escrow: the buyer receives the larger of the refund
// offer and the cashback, the commissioner and protocol take their cuts, and
// the seller keeps the rest. The status advances before any transfer so a
// reentrant call observes the finalized state.
func (e *Engine) settle(hash [32]byte, o *market.Order, tx *Transaction) error {
	vault, err := e.state.ModuleAddress(ModuleName)
	if err != nil {
		return err
	}
	buyerShare := new(big.Int).Set(o.Cashback)
	if tx.Refund != nil && tx.Refund.Cmp(buyerShare) > 0 {
		buyerShare.Set(tx.Refund)
	}
	sellerShare := new(big.Int).Sub(o.Total, o.Commission)
	sellerShare.Sub(sellerShare, o.ProtocolFee)
	sellerShare.Sub(sellerShare, buyerShare)

	tx.Status = StatusFinalized
	tx.LastStatusUpdate = e.now()
	if err := e.state.TransactionPut(tx); err != nil {
		return err
	}
	for _, leg := range []struct {
		to     [20]byte
		amount *big.Int
	}{
		{o.Buyer, buyerShare},
		{o.Commissioner, o.Commission},
		{e.feeRecipient, o.ProtocolFee},
		{o.Listing.Seller, sellerShare},
	} {
		if leg.amount.Sign() == 0 {
			continue
		}
		if err := e.state.TokenTransfer(o.Token, vault, leg.to, leg.amount); err != nil {
			return fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
	}
	e.emit(newFinalizedEvent(hash))
	return nil
}
