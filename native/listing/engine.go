package listing

import (
	"errors"
	"math/big"
	"time"

	"dagora/core/events"
	"dagora/core/types"
	"dagora/native/dispute"
	"dagora/native/market"
)

// ModuleName identifies the listing engine both as a vault key and as its
// registered disputable client name.
const ModuleName = "listing"

var (
	// ErrNotSeller guards the seller-only listing operations.
	ErrNotSeller = errors.New("listing: caller is not the seller")
	// ErrInsufficientStake is returned when the seller's collateral is below
	// the minimum required for a valid listing.
	ErrInsufficientStake = errors.New("listing: seller stake below minimum")
	// ErrCancelled is returned for listings the seller has cancelled.
	ErrCancelled = errors.New("listing: cancelled")
	// ErrExpired is returned for listings past their expiration.
	ErrExpired = errors.New("listing: expired")
	// ErrInDispute is returned while a report against the listing is open.
	ErrInDispute = errors.New("listing: in dispute")
	// ErrSelfReport is returned when a seller reports their own listing.
	ErrSelfReport = errors.New("listing: cannot report own listing")
	// ErrNotDisputeManager is returned when a dispute callback does not match
	// a report this engine raised.
	ErrNotDisputeManager = errors.New("listing: callback does not match an open report")

	errNilState = errors.New("listing engine: state not configured")
)

// Record is the small side-table kept per listing hash; the listing itself is
// re-supplied by callers and re-validated against the hash on every call.
type Record struct {
	Hash      [32]byte `json:"hash"`
	Approved  bool     `json:"approved"`
	Cancelled bool     `json:"cancelled"`
	Quantity  uint64   `json:"quantity"`
	Reported  bool     `json:"reported"`
}

// Clone returns a copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	clone := *r
	return &clone
}

type engineState interface {
	Lock()
	Unlock()
	ListingPut(*Record) error
	ListingGet(hash [32]byte) (*Record, bool)
	ModuleAddress(module string) ([20]byte, error)
}

type stakeManager interface {
	Token() [20]byte
	BalanceOf(owner [20]byte) (*big.Int, error)
	LockStake(caller, account [20]byte, amount *big.Int) error
	UnlockStake(caller, account [20]byte, amount *big.Int) error
	BurnLockedStake(caller, account [20]byte, amount *big.Int) error
}

type disputeManager interface {
	CreateDispute(client string, id [32]byte, prosecution, defendant, token [20]byte, amount, feePayment *big.Int) error
	Open(id [32]byte) bool
	Get(id [32]byte) (*dispute.Dispute, bool)
}

type listingEvent struct {
	evt *types.Event
}

func (e listingEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e listingEvent) Event() *types.Event { return e.evt }

// Engine gates listing validity against seller stake and open reports, and
// implements the disputable callback contract so anyone can put a seller's
// collateral at risk by reporting a listing.
type Engine struct {
	state        engineState
	emitter      events.Emitter
	stake        stakeManager
	disputes     disputeManager
	minimumStake *big.Int
	burnBps      uint64
	operator     [20]byte
	nowFn        func() int64
}

// NewEngine creates a listing engine. The operator address is the identity this
// engine uses when locking, unlocking and burning seller stake; it must match
// the operator configured on the stake engine.
func NewEngine(stakeMgr stakeManager, disputes disputeManager, operator [20]byte, minimumStake *big.Int, burnBps uint64) *Engine {
	min := big.NewInt(0)
	if minimumStake != nil {
		min = new(big.Int).Set(minimumStake)
	}
	return &Engine{
		emitter:      events.NoopEmitter{},
		stake:        stakeMgr,
		disputes:     disputes,
		minimumStake: min,
		burnBps:      burnBps,
		operator:     operator,
		nowFn:        func() int64 { return time.Now().Unix() },
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

// MinimumStake returns the collateral floor for valid listings.
func (e *Engine) MinimumStake() *big.Int { return new(big.Int).Set(e.minimumStake) }

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(listingEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) loadRecord(hash [32]byte) (*Record, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	rec, ok := e.state.ListingGet(hash)
	if !ok {
		return &Record{Hash: hash}, nil
	}
	return rec.Clone(), nil
}

// Get returns the stored side-table record for a listing hash.
func (e *Engine) Get(hash [32]byte) (*Record, bool) {
	if e == nil || e.state == nil {
		return nil, false
	}
	rec, ok := e.state.ListingGet(hash)
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// RequireValid recomputes the canonical hash and returns it when the listing
// is currently sellable: the seller holds at least the minimum stake, the
// listing is neither cancelled nor expired, and no report is open against it.
func (e *Engine) RequireValid(l market.Listing) ([32]byte, error) {
	hash := market.HashListing(l)
	if e == nil || e.state == nil {
		return hash, errNilState
	}
	balance, err := e.stake.BalanceOf(l.Seller)
	if err != nil {
		return hash, err
	}
	if balance.Cmp(e.minimumStake) < 0 {
		return hash, ErrInsufficientStake
	}
	rec, err := e.loadRecord(hash)
	if err != nil {
		return hash, err
	}
	if rec.Cancelled {
		return hash, ErrCancelled
	}
	if l.Expiration != 0 && uint64(e.now()) >= l.Expiration {
		return hash, ErrExpired
	}
	if e.disputes.Open(hash) {
		return hash, ErrInDispute
	}
	return hash, nil
}

// Create validates and approves a listing, recording its available quantity.
func (e *Engine) Create(caller [20]byte, l market.Listing, quantity uint64) ([32]byte, error) {
	if e == nil || e.state == nil {
		return [32]byte{}, errNilState
	}
	e.state.Lock()
	defer e.state.Unlock()
	if caller != l.Seller {
		return [32]byte{}, ErrNotSeller
	}
	hash, err := e.RequireValid(l)
	if err != nil {
		return hash, err
	}
	rec, err := e.loadRecord(hash)
	if err != nil {
		return hash, err
	}
	rec.Approved = true
	rec.Quantity = quantity
	if err := e.state.ListingPut(rec); err != nil {
		return hash, err
	}
	e.emit(newCreatedEvent(hash, l, quantity))
	return hash, nil
}

// Update refreshes the quantity counter for an approved listing.
func (e *Engine) Update(caller [20]byte, l market.Listing, quantity uint64) ([32]byte, error) {
	if e == nil || e.state == nil {
		return [32]byte{}, errNilState
	}
	e.state.Lock()
	defer e.state.Unlock()
	if caller != l.Seller {
		return [32]byte{}, ErrNotSeller
	}
	hash, err := e.RequireValid(l)
	if err != nil {
		return hash, err
	}
	rec, err := e.loadRecord(hash)
	if err != nil {
		return hash, err
	}
	rec.Approved = true
	rec.Quantity = quantity
	if err := e.state.ListingPut(rec); err != nil {
		return hash, err
	}
	e.emit(newUpdatedEvent(hash, quantity))
	return hash, nil
}

// Cancel terminally revokes a listing.
func (e *Engine) Cancel(caller [20]byte, l market.Listing) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.state.Lock()
	defer e.state.Unlock()
	if caller != l.Seller {
		return ErrNotSeller
	}
	hash := market.HashListing(l)
	rec, err := e.loadRecord(hash)
	if err != nil {
		return err
	}
	rec.Approved = false
	rec.Cancelled = true
	if err := e.state.ListingPut(rec); err != nil {
		return err
	}
	e.emit(newCancelledEvent(hash))
	return nil
}

// Report opens a dispute against a listing, putting a burn-percentage slice of
// the seller's stake at risk. The reporter pays the arbitration cost; the
// seller's collateral is locked through the OnDispute callback.
func (e *Engine) Report(caller [20]byte, l market.Listing, feePayment *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.state.Lock()
	defer e.state.Unlock()
	if caller == l.Seller {
		return ErrSelfReport
	}
	hash, err := e.RequireValid(l)
	if err != nil {
		return err
	}
	balance, err := e.stake.BalanceOf(l.Seller)
	if err != nil {
		return err
	}
	amount := market.PercentageOf(balance, e.burnBps)
	if err := e.disputes.CreateDispute(ModuleName, hash, caller, l.Seller, e.stake.Token(), amount, feePayment); err != nil {
		return err
	}
	e.emit(newReportedEvent(hash, caller))
	return nil
}

// OnDispute locks the reported slice of the seller's stake. Invoked by the
// dispute engine once the report is recorded; the call is rejected unless it
// matches a live dispute this engine raised.
func (e *Engine) OnDispute(id [32]byte) error {
	d, ok := e.disputes.Get(id)
	if !ok || d.Client != ModuleName || d.Status == dispute.StatusResolved {
		return ErrNotDisputeManager
	}
	rec, err := e.loadRecord(id)
	if err != nil {
		return err
	}
	if rec.Reported {
		return ErrNotDisputeManager
	}
	if d.Amount.Sign() > 0 {
		if err := e.stake.LockStake(e.operator, d.Defendant, d.Amount); err != nil {
			return err
		}
	}
	rec.Reported = true
	return e.state.ListingPut(rec)
}

// OnRuling settles a report: a ruling for the reporter burns the locked stake,
// one for the seller unlocks it, and a refused ruling burns floor(amount/2)
// and unlocks the remainder.
func (e *Engine) OnRuling(id [32]byte, ruling dispute.Ruling) error {
	d, ok := e.disputes.Get(id)
	if !ok || d.Client != ModuleName || d.Status != dispute.StatusResolved {
		return ErrNotDisputeManager
	}
	rec, err := e.loadRecord(id)
	if err != nil {
		return err
	}
	if !rec.Reported {
		return ErrNotDisputeManager
	}
	seller := d.Defendant
	amount := d.Amount
	if amount.Sign() > 0 {
		switch ruling {
		case dispute.RulingProsecution:
			if err := e.stake.BurnLockedStake(e.operator, seller, amount); err != nil {
				return err
			}
		case dispute.RulingDefendant:
			if err := e.stake.UnlockStake(e.operator, seller, amount); err != nil {
				return err
			}
		default:
			burn, unlock := market.SplitHalf(amount)
			if burn.Sign() > 0 {
				if err := e.stake.BurnLockedStake(e.operator, seller, burn); err != nil {
					return err
				}
			}
			if err := e.stake.UnlockStake(e.operator, seller, unlock); err != nil {
				return err
			}
		}
	}
	rec.Reported = false
	if err := e.state.ListingPut(rec); err != nil {
		return err
	}
	e.emit(newReportResultEvent(id, ruling))
	return nil
}
