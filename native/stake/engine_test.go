package stake

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"
)

type mockState struct {
	mu       sync.Mutex
	accounts map[[20]byte]*Account
	balances map[[20]byte]map[[20]byte]*big.Int // token -> holder -> balance
	vaults   map[string][20]byte
}

func (m *mockState) Lock()   { m.mu.Lock() }
func (m *mockState) Unlock() { m.mu.Unlock() }

func newMockState() *mockState {
	return &mockState{
		accounts: make(map[[20]byte]*Account),
		balances: make(map[[20]byte]map[[20]byte]*big.Int),
		vaults:   map[string][20]byte{ModuleName: newTestAddress(0xAA)},
	}
}

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

func (m *mockState) StakePut(acc *Account) error {
	m.accounts[acc.Owner] = acc.Clone()
	return nil
}

func (m *mockState) StakeGet(owner [20]byte) (*Account, bool) {
	acc, ok := m.accounts[owner]
	if !ok {
		return nil, false
	}
	return acc.Clone(), true
}

func (m *mockState) TokenTransfer(token [20]byte, from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("bad amount")
	}
	holders, ok := m.balances[token]
	if !ok {
		holders = make(map[[20]byte]*big.Int)
		m.balances[token] = holders
	}
	fromBal := holders[from]
	if fromBal == nil {
		fromBal = big.NewInt(0)
	}
	if fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("insufficient balance")
	}
	holders[from] = new(big.Int).Sub(fromBal, amount)
	toBal := holders[to]
	if toBal == nil {
		toBal = big.NewInt(0)
	}
	holders[to] = new(big.Int).Add(toBal, amount)
	return nil
}

func (m *mockState) ModuleAddress(module string) ([20]byte, error) {
	addr, ok := m.vaults[module]
	if !ok {
		return [20]byte{}, fmt.Errorf("unknown module %q", module)
	}
	return addr, nil
}

func (m *mockState) fund(token, holder [20]byte, amount int64) {
	holders, ok := m.balances[token]
	if !ok {
		holders = make(map[[20]byte]*big.Int)
		m.balances[token] = holders
	}
	holders[holder] = big.NewInt(amount)
}

func (m *mockState) balanceOf(token, holder [20]byte) *big.Int {
	holders, ok := m.balances[token]
	if !ok {
		return big.NewInt(0)
	}
	bal := holders[holder]
	if bal == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(bal)
}

func newTestEngine(t *testing.T) (*Engine, *mockState, [20]byte, [20]byte) {
	t.Helper()
	token := newTestAddress(0x01)
	authority := newTestAddress(0x02)
	engine := NewEngine(token, authority)
	state := newMockState()
	engine.SetState(state)
	return engine, state, token, authority
}

func TestStakeUnstakeRoundTrip(t *testing.T) {
	engine, state, token, _ := newTestEngine(t)
	seller := newTestAddress(0x10)
	state.fund(token, seller, 1_000)

	if err := engine.Stake(seller, big.NewInt(400)); err != nil {
		t.Fatalf("stake: %v", err)
	}
	balance, err := engine.BalanceOf(seller)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Int64() != 400 {
		t.Fatalf("balance = %s, want 400", balance)
	}
	vault := state.vaults[ModuleName]
	if got := state.balanceOf(token, vault).Int64(); got != 400 {
		t.Fatalf("vault holds %d, want 400", got)
	}

	if err := engine.Unstake(seller, big.NewInt(400)); err != nil {
		t.Fatalf("unstake: %v", err)
	}
	if got := state.balanceOf(token, seller).Int64(); got != 1_000 {
		t.Fatalf("seller holds %d after round trip, want 1000", got)
	}
}

func TestStakeRejectsNonPositiveAmount(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	seller := newTestAddress(0x10)
	if err := engine.Stake(seller, big.NewInt(0)); err == nil {
		t.Fatal("expected error for zero amount")
	}
	if err := engine.Stake(seller, nil); err == nil {
		t.Fatal("expected error for nil amount")
	}
}

func TestStakeInsufficientFunds(t *testing.T) {
	engine, state, token, _ := newTestEngine(t)
	seller := newTestAddress(0x10)
	state.fund(token, seller, 10)
	if err := engine.Stake(seller, big.NewInt(100)); !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("err = %v, want ErrTransferFailed", err)
	}
}

func TestUnstakeRespectsLock(t *testing.T) {
	engine, state, token, authority := newTestEngine(t)
	seller := newTestAddress(0x10)
	state.fund(token, seller, 1_000)
	if err := engine.Stake(seller, big.NewInt(500)); err != nil {
		t.Fatalf("stake: %v", err)
	}
	if err := engine.LockStake(authority, seller, big.NewInt(300)); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if err := engine.Unstake(seller, big.NewInt(300)); !errors.Is(err, ErrInsufficientUnlockedStake) {
		t.Fatalf("err = %v, want ErrInsufficientUnlockedStake", err)
	}
	if err := engine.Unstake(seller, big.NewInt(200)); err != nil {
		t.Fatalf("unstake free portion: %v", err)
	}
}

func TestLockRequiresOperator(t *testing.T) {
	engine, state, token, authority := newTestEngine(t)
	seller := newTestAddress(0x10)
	intruder := newTestAddress(0x66)
	state.fund(token, seller, 1_000)
	if err := engine.Stake(seller, big.NewInt(500)); err != nil {
		t.Fatalf("stake: %v", err)
	}
	if err := engine.LockStake(intruder, seller, big.NewInt(100)); !errors.Is(err, ErrNotOperator) {
		t.Fatalf("err = %v, want ErrNotOperator", err)
	}
	operator := newTestAddress(0x77)
	if err := engine.SetOperator(intruder, operator); !errors.Is(err, ErrNotAuthority) {
		t.Fatalf("err = %v, want ErrNotAuthority", err)
	}
	if err := engine.SetOperator(authority, operator); err != nil {
		t.Fatalf("rotate operator: %v", err)
	}
	if err := engine.LockStake(authority, seller, big.NewInt(100)); !errors.Is(err, ErrNotOperator) {
		t.Fatalf("old operator still accepted: %v", err)
	}
	if err := engine.LockStake(operator, seller, big.NewInt(100)); err != nil {
		t.Fatalf("lock as new operator: %v", err)
	}
}

func TestBurnLockedStake(t *testing.T) {
	engine, state, token, authority := newTestEngine(t)
	seller := newTestAddress(0x10)
	state.fund(token, seller, 1_000)
	if err := engine.Stake(seller, big.NewInt(500)); err != nil {
		t.Fatalf("stake: %v", err)
	}
	if err := engine.LockStake(authority, seller, big.NewInt(200)); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if err := engine.BurnLockedStake(authority, seller, big.NewInt(300)); !errors.Is(err, ErrInsufficientLockedStake) {
		t.Fatalf("err = %v, want ErrInsufficientLockedStake", err)
	}
	if err := engine.BurnLockedStake(authority, seller, big.NewInt(200)); err != nil {
		t.Fatalf("burn: %v", err)
	}
	balance, _ := engine.BalanceOf(seller)
	if balance.Int64() != 300 {
		t.Fatalf("balance = %s after burn, want 300", balance)
	}
	locked, _ := engine.LockedOf(seller)
	if locked.Sign() != 0 {
		t.Fatalf("locked = %s after burn, want 0", locked)
	}
	if got := state.balanceOf(token, [20]byte{}).Int64(); got != 200 {
		t.Fatalf("burn address holds %d, want 200", got)
	}
}

func TestBurnLockedStakeBps(t *testing.T) {
	engine, state, token, authority := newTestEngine(t)
	seller := newTestAddress(0x10)
	state.fund(token, seller, 1_000)
	if err := engine.Stake(seller, big.NewInt(100)); err != nil {
		t.Fatalf("stake: %v", err)
	}
	if err := engine.LockStake(authority, seller, big.NewInt(100)); err != nil {
		t.Fatalf("lock: %v", err)
	}
	// 10% of the locked 100.
	if err := engine.BurnLockedStakeBps(authority, seller, 1_000); err != nil {
		t.Fatalf("burn bps: %v", err)
	}
	locked, _ := engine.LockedOf(seller)
	if locked.Int64() != 90 {
		t.Fatalf("locked = %s, want 90", locked)
	}
	balance, _ := engine.BalanceOf(seller)
	if balance.Int64() != 90 {
		t.Fatalf("balance = %s, want 90", balance)
	}
}

func TestBurnLockedStakeBpsRequiresOperator(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	seller := newTestAddress(0x10)
	intruder := newTestAddress(0x66)
	if err := engine.BurnLockedStakeBps(intruder, seller, 1_000); !errors.Is(err, ErrNotOperator) {
		t.Fatalf("err = %v, want ErrNotOperator", err)
	}
	if err := engine.BurnLockedStakeBps(intruder, seller, 0); !errors.Is(err, ErrNotOperator) {
		t.Fatalf("zero bps err = %v, want ErrNotOperator", err)
	}
}

func TestLockedNeverExceedsBalance(t *testing.T) {
	engine, state, token, authority := newTestEngine(t)
	seller := newTestAddress(0x10)
	state.fund(token, seller, 1_000)
	if err := engine.Stake(seller, big.NewInt(100)); err != nil {
		t.Fatalf("stake: %v", err)
	}
	if err := engine.LockStake(authority, seller, big.NewInt(150)); !errors.Is(err, ErrInsufficientUnlockedStake) {
		t.Fatalf("err = %v, want ErrInsufficientUnlockedStake", err)
	}
}
