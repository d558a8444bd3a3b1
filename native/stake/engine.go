package stake

import (
	"errors"
	"fmt"
	"math/big"

	"dagora/core/events"
	"dagora/core/types"
	"dagora/native/market"
)

// ModuleName keys the vault address that custodies all seller collateral.
const ModuleName = "stake"

var (
	// ErrTransferFailed is returned when the token leg of an operation could
	// not be completed (e.g. the caller lacks balance).
	ErrTransferFailed = errors.New("stake: token transfer failed")
	// ErrInsufficientUnlockedStake is returned when an unstake would dip into
	// locked collateral.
	ErrInsufficientUnlockedStake = errors.New("stake: insufficient unlocked stake")
	// ErrInsufficientLockedStake is returned when an unlock or burn exceeds the
	// account's locked collateral.
	ErrInsufficientLockedStake = errors.New("stake: insufficient locked stake")
	// ErrNotOperator guards the punitive operations.
	ErrNotOperator = errors.New("stake: caller is not the operator")
	// ErrNotAuthority guards operator rotation.
	ErrNotAuthority = errors.New("stake: caller is not the authority")

	errNilState = errors.New("stake engine: state not configured")
)

// Account tracks a seller's collateral position. Locked never exceeds Balance.
type Account struct {
	Owner   [20]byte `json:"owner"`
	Balance *big.Int `json:"balance"`
	Locked  *big.Int `json:"locked"`
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := &Account{Owner: a.Owner, Balance: big.NewInt(0), Locked: big.NewInt(0)}
	if a.Balance != nil {
		clone.Balance.Set(a.Balance)
	}
	if a.Locked != nil {
		clone.Locked.Set(a.Locked)
	}
	return clone
}

// Free returns the portion of the balance not currently locked.
func (a *Account) Free() *big.Int {
	c := a.Clone()
	return new(big.Int).Sub(c.Balance, c.Locked)
}

type engineState interface {
	Lock()
	Unlock()
	StakePut(*Account) error
	StakeGet(owner [20]byte) (*Account, bool)
	TokenTransfer(token [20]byte, from, to [20]byte, amount *big.Int) error
	ModuleAddress(module string) ([20]byte, error)
}

type stakeEvent struct {
	evt *types.Event
}

func (e stakeEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e stakeEvent) Event() *types.Event { return e.evt }

// Engine custodies seller collateral in the payment token and exposes the
// lock/unlock/burn primitives to a single authorized operator.
type Engine struct {
	state     engineState
	emitter   events.Emitter
	token     [20]byte
	authority [20]byte
	operator  [20]byte
}

// NewEngine creates a stake engine for the given payment token. The authority
// may rotate the operator; both start out as the supplied authority address.
func NewEngine(token, authority [20]byte) *Engine {
	return &Engine{
		emitter:   events.NoopEmitter{},
		token:     token,
		authority: authority,
		operator:  authority,
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

// SetOperator rotates the operator. Only the deploying authority may call it.
func (e *Engine) SetOperator(caller, operator [20]byte) error {
	if caller != e.authority {
		return ErrNotAuthority
	}
	e.operator = operator
	return nil
}

// Operator returns the address currently allowed to lock, unlock and burn.
func (e *Engine) Operator() [20]byte { return e.operator }

// Token returns the payment token collateral is denominated in.
func (e *Engine) Token() [20]byte { return e.token }

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(stakeEvent{evt: event})
}

func (e *Engine) loadAccount(owner [20]byte) (*Account, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	acc, ok := e.state.StakeGet(owner)
	if !ok {
		return &Account{Owner: owner, Balance: big.NewInt(0), Locked: big.NewInt(0)}, nil
	}
	return acc.Clone(), nil
}

// BalanceOf returns the total collateral (locked plus free) for an owner.
func (e *Engine) BalanceOf(owner [20]byte) (*big.Int, error) {
	acc, err := e.loadAccount(owner)
	if err != nil {
		return nil, err
	}
	return acc.Clone().Balance, nil
}

// LockedOf returns the collateral currently at risk for an owner.
func (e *Engine) LockedOf(owner [20]byte) (*big.Int, error) {
	acc, err := e.loadAccount(owner)
	if err != nil {
		return nil, err
	}
	return acc.Clone().Locked, nil
}

// Stake pulls amount of the payment token from the caller into the stake vault
// and credits the caller's collateral balance.
func (e *Engine) Stake(caller [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.state.Lock()
	defer e.state.Unlock()
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("stake: amount must be positive")
	}
	acc, err := e.loadAccount(caller)
	if err != nil {
		return err
	}
	vault, err := e.state.ModuleAddress(ModuleName)
	if err != nil {
		return err
	}
	if err := e.state.TokenTransfer(e.token, caller, vault, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	acc.Balance = new(big.Int).Add(acc.Balance, amount)
	if err := e.state.StakePut(acc); err != nil {
		return err
	}
	e.emit(newStakedEvent(caller, amount))
	return nil
}

// Unstake returns unlocked collateral to the caller.
func (e *Engine) Unstake(caller [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.state.Lock()
	defer e.state.Unlock()
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("stake: amount must be positive")
	}
	acc, err := e.loadAccount(caller)
	if err != nil {
		return err
	}
	if acc.Free().Cmp(amount) < 0 {
		return ErrInsufficientUnlockedStake
	}
	vault, err := e.state.ModuleAddress(ModuleName)
	if err != nil {
		return err
	}
	acc.Balance = new(big.Int).Sub(acc.Balance, amount)
	if err := e.state.StakePut(acc); err != nil {
		return err
	}
	if err := e.state.TokenTransfer(e.token, vault, caller, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	e.emit(newUnstakedEvent(caller, amount))
	return nil
}

// LockStake moves collateral into the locked bucket. Operator only. The
// operator is another engine's vault identity, so the call arrives inside a
// transition that already holds the ledger lock.
func (e *Engine) LockStake(caller, account [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if caller != e.operator {
		return ErrNotOperator
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("stake: amount must be positive")
	}
	acc, err := e.loadAccount(account)
	if err != nil {
		return err
	}
	if acc.Free().Cmp(amount) < 0 {
		return ErrInsufficientUnlockedStake
	}
	acc.Locked = new(big.Int).Add(acc.Locked, amount)
	if err := e.state.StakePut(acc); err != nil {
		return err
	}
	e.emit(newLockedEvent(account, amount))
	return nil
}

// UnlockStake releases previously locked collateral. Operator only.
func (e *Engine) UnlockStake(caller, account [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if caller != e.operator {
		return ErrNotOperator
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("stake: amount must be positive")
	}
	acc, err := e.loadAccount(account)
	if err != nil {
		return err
	}
	if acc.Locked.Cmp(amount) < 0 {
		return ErrInsufficientLockedStake
	}
	acc.Locked = new(big.Int).Sub(acc.Locked, amount)
	if err := e.state.StakePut(acc); err != nil {
		return err
	}
	e.emit(newUnlockedEvent(account, amount))
	return nil
}

// BurnLockedStake permanently removes locked collateral from both buckets,
// sending the tokens to the burn address. Operator only.
func (e *Engine) BurnLockedStake(caller, account [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if caller != e.operator {
		return ErrNotOperator
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("stake: amount must be positive")
	}
	acc, err := e.loadAccount(account)
	if err != nil {
		return err
	}
	if acc.Locked.Cmp(amount) < 0 {
		return ErrInsufficientLockedStake
	}
	vault, err := e.state.ModuleAddress(ModuleName)
	if err != nil {
		return err
	}
	acc.Locked = new(big.Int).Sub(acc.Locked, amount)
	acc.Balance = new(big.Int).Sub(acc.Balance, amount)
	if err := e.state.StakePut(acc); err != nil {
		return err
	}
	if err := e.state.TokenTransfer(e.token, vault, [20]byte{}, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	e.emit(newBurnedEvent(account, amount))
	return nil
}

// BurnLockedStakeBps burns floor(locked * bps / 10000) of the account's locked
// collateral. Operator only.
func (e *Engine) BurnLockedStakeBps(caller, account [20]byte, bps uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if caller != e.operator {
		return ErrNotOperator
	}
	if bps > market.InverseBasisPoint {
		return fmt.Errorf("stake: bps out of range: %d", bps)
	}
	locked, err := e.LockedOf(account)
	if err != nil {
		return err
	}
	amount := market.PercentageOf(locked, bps)
	if amount.Sign() == 0 {
		return nil
	}
	return e.BurnLockedStake(caller, account, amount)
}
