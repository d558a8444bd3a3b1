package state

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"dagora/core/types"
	"dagora/native/dispute"
	"dagora/native/listing"
	"dagora/native/order"
	"dagora/native/stake"
	"dagora/storage"
)

// Key prefixes for the ledger's column families.
var (
	accountPrefix     = []byte("acct/")
	stakePrefix       = []byte("stake/")
	disputePrefix     = []byte("dispute/")
	listingPrefix     = []byte("listing/")
	transactionPrefix = []byte("tx/")
)

var (
	// ErrInsufficientBalance is returned when a transfer exceeds the sender's
	// funds.
	ErrInsufficientBalance = errors.New("state: insufficient balance")
	// ErrInvalidAmount is returned for nil or negative transfer amounts.
	ErrInvalidAmount = errors.New("state: invalid amount")
)

// Manager is the single ledger shared by every engine. It keeps account
// balances (native coin and per-token) and each engine's records in one
// key-value store, serialized as JSON. Two locks are involved: opMu serializes
// whole engine transitions (held via Lock/Unlock from each engine's top-level
// entry points, spanning load, guard and commit), while mu guards the
// individual balance mutations so the lock-free read paths stay safe.
type Manager struct {
	opMu sync.Mutex
	mu   sync.Mutex
	db   storage.Database
}

// NewManager creates a ledger over the given backend.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// Lock serializes an engine transition. Engines hold it from guard evaluation
// through the final commit, including any cross-engine callbacks, so two
// concurrent operations can never both pass the same guard.
func (m *Manager) Lock() { m.opMu.Lock() }

// Unlock releases the transition lock.
func (m *Manager) Unlock() { m.opMu.Unlock() }

// ModuleAddress derives the deterministic vault address for a module name.
func (m *Manager) ModuleAddress(module string) ([20]byte, error) {
	var addr [20]byte
	if module == "" {
		return addr, fmt.Errorf("state: empty module name")
	}
	sum := ethcrypto.Keccak256([]byte("dagora/module/" + module))
	copy(addr[:], sum[12:])
	return addr, nil
}

func (m *Manager) getJSON(key []byte, out interface{}) (bool, error) {
	ok, err := m.db.Has(key)
	if err != nil || !ok {
		return false, err
	}
	raw, err := m.db.Get(key)
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("state: decode %q: %w", key, err)
	}
	return true, nil
}

func (m *Manager) putJSON(key []byte, in interface{}) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("state: encode %q: %w", key, err)
	}
	return m.db.Put(key, raw)
}

func accountKey(addr [20]byte) []byte {
	return append(append([]byte(nil), accountPrefix...), addr[:]...)
}

func (m *Manager) getAccount(addr [20]byte) (*types.Account, error) {
	acc := &types.Account{BalanceCoin: big.NewInt(0)}
	if _, err := m.getJSON(accountKey(addr), acc); err != nil {
		return nil, err
	}
	if acc.BalanceCoin == nil {
		acc.BalanceCoin = big.NewInt(0)
	}
	return acc, nil
}

func (m *Manager) putAccount(addr [20]byte, acc *types.Account) error {
	return m.putJSON(accountKey(addr), acc)
}

// Account returns a copy of the ledger entry for an address.
func (m *Manager) Account(addr [20]byte) (*types.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getAccount(addr)
}

// CoinBalance returns the native-coin balance for an address.
func (m *Manager) CoinBalance(addr [20]byte) (*big.Int, error) {
	acc, err := m.Account(addr)
	if err != nil {
		return nil, err
	}
	return acc.BalanceCoin, nil
}

// TokenBalance returns the balance an address holds in the given token.
func (m *Manager) TokenBalance(token, addr [20]byte) (*big.Int, error) {
	acc, err := m.Account(addr)
	if err != nil {
		return nil, err
	}
	return acc.TokenBalance(hex.EncodeToString(token[:])), nil
}

// MintCoin credits native currency to an address. Used at genesis and in tests.
func (m *Manager) MintCoin(addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, err := m.getAccount(addr)
	if err != nil {
		return err
	}
	acc.BalanceCoin = new(big.Int).Add(acc.BalanceCoin, amount)
	return m.putAccount(addr, acc)
}

// MintToken credits token units to an address. Used at genesis and in tests.
func (m *Manager) MintToken(token, addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, err := m.getAccount(addr)
	if err != nil {
		return err
	}
	key := hex.EncodeToString(token[:])
	acc.SetTokenBalance(key, new(big.Int).Add(acc.TokenBalance(key), amount))
	return m.putAccount(addr, acc)
}

// CoinTransfer moves native currency between addresses.
func (m *Manager) CoinTransfer(from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Sign() == 0 || from == to {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	sender, err := m.getAccount(from)
	if err != nil {
		return err
	}
	if sender.BalanceCoin.Cmp(amount) < 0 {
		return fmt.Errorf("%w: coin balance of %x", ErrInsufficientBalance, from)
	}
	receiver, err := m.getAccount(to)
	if err != nil {
		return err
	}
	sender.BalanceCoin = new(big.Int).Sub(sender.BalanceCoin, amount)
	receiver.BalanceCoin = new(big.Int).Add(receiver.BalanceCoin, amount)
	if err := m.putAccount(from, sender); err != nil {
		return err
	}
	return m.putAccount(to, receiver)
}

// TokenTransfer moves token units between addresses.
func (m *Manager) TokenTransfer(token [20]byte, from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Sign() == 0 || from == to {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := hex.EncodeToString(token[:])
	sender, err := m.getAccount(from)
	if err != nil {
		return err
	}
	if sender.TokenBalance(key).Cmp(amount) < 0 {
		return fmt.Errorf("%w: token %s balance of %x", ErrInsufficientBalance, key, from)
	}
	receiver, err := m.getAccount(to)
	if err != nil {
		return err
	}
	sender.SetTokenBalance(key, new(big.Int).Sub(sender.TokenBalance(key), amount))
	receiver.SetTokenBalance(key, new(big.Int).Add(receiver.TokenBalance(key), amount))
	if err := m.putAccount(from, sender); err != nil {
		return err
	}
	return m.putAccount(to, receiver)
}

func stakeKey(owner [20]byte) []byte {
	return append(append([]byte(nil), stakePrefix...), owner[:]...)
}

// StakePut stores a collateral account.
func (m *Manager) StakePut(acc *stake.Account) error {
	if acc == nil {
		return fmt.Errorf("state: nil stake account")
	}
	return m.putJSON(stakeKey(acc.Owner), acc)
}

// StakeGet loads a collateral account.
func (m *Manager) StakeGet(owner [20]byte) (*stake.Account, bool) {
	acc := new(stake.Account)
	ok, err := m.getJSON(stakeKey(owner), acc)
	if err != nil || !ok {
		return nil, false
	}
	return acc, true
}

func disputeKey(id [32]byte) []byte {
	return append(append([]byte(nil), disputePrefix...), id[:]...)
}

// DisputePut stores a dispute record.
func (m *Manager) DisputePut(d *dispute.Dispute) error {
	if d == nil {
		return fmt.Errorf("state: nil dispute")
	}
	return m.putJSON(disputeKey(d.ID), d)
}

// DisputeDelete removes a dispute record, unwinding a creation whose client
// callback failed.
func (m *Manager) DisputeDelete(id [32]byte) error {
	return m.db.Delete(disputeKey(id))
}

// DisputeGet loads a dispute record.
func (m *Manager) DisputeGet(id [32]byte) (*dispute.Dispute, bool) {
	d := new(dispute.Dispute)
	ok, err := m.getJSON(disputeKey(id), d)
	if err != nil || !ok {
		return nil, false
	}
	return d, true
}

func listingKey(hash [32]byte) []byte {
	return append(append([]byte(nil), listingPrefix...), hash[:]...)
}

// ListingPut stores a listing side-table record.
func (m *Manager) ListingPut(rec *listing.Record) error {
	if rec == nil {
		return fmt.Errorf("state: nil listing record")
	}
	return m.putJSON(listingKey(rec.Hash), rec)
}

// ListingGet loads a listing side-table record.
func (m *Manager) ListingGet(hash [32]byte) (*listing.Record, bool) {
	rec := new(listing.Record)
	ok, err := m.getJSON(listingKey(hash), rec)
	if err != nil || !ok {
		return nil, false
	}
	return rec, true
}

func transactionKey(hash [32]byte) []byte {
	return append(append([]byte(nil), transactionPrefix...), hash[:]...)
}

// TransactionPut stores an order transaction record.
func (m *Manager) TransactionPut(tx *order.Transaction) error {
	if tx == nil {
		return fmt.Errorf("state: nil transaction")
	}
	return m.putJSON(transactionKey(tx.Hash), tx)
}

// TransactionGet loads an order transaction record.
func (m *Manager) TransactionGet(hash [32]byte) (*order.Transaction, bool) {
	tx := new(order.Transaction)
	ok, err := m.getJSON(transactionKey(hash), tx)
	if err != nil || !ok {
		return nil, false
	}
	return tx, true
}

// TransactionDelete clears an order transaction record, freeing the slot for
// re-creation after a cancellation.
func (m *Manager) TransactionDelete(hash [32]byte) error {
	return m.db.Delete(transactionKey(hash))
}
