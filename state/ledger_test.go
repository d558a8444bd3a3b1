package state

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"dagora/native/dispute"
	"dagora/native/listing"
	"dagora/native/order"
	"dagora/native/stake"
	"dagora/storage"
)

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

func newTestHash(fill byte) [32]byte {
	var hash [32]byte
	copy(hash[:], bytes.Repeat([]byte{fill}, 32))
	return hash
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(storage.NewMemDB())
}

func TestModuleAddressDeterministic(t *testing.T) {
	m := newTestManager(t)
	a, err := m.ModuleAddress("stake")
	require.NoError(t, err)
	b, err := m.ModuleAddress("stake")
	require.NoError(t, err)
	require.Equal(t, a, b)

	c, err := m.ModuleAddress("order")
	require.NoError(t, err)
	require.NotEqual(t, a, c)

	_, err = m.ModuleAddress("")
	require.Error(t, err)
}

func TestCoinTransfer(t *testing.T) {
	m := newTestManager(t)
	alice := newTestAddress(0x01)
	bob := newTestAddress(0x02)
	require.NoError(t, m.MintCoin(alice, big.NewInt(1_000)))

	require.NoError(t, m.CoinTransfer(alice, bob, big.NewInt(400)))
	aliceBal, err := m.CoinBalance(alice)
	require.NoError(t, err)
	require.Equal(t, int64(600), aliceBal.Int64())
	bobBal, err := m.CoinBalance(bob)
	require.NoError(t, err)
	require.Equal(t, int64(400), bobBal.Int64())

	err = m.CoinTransfer(alice, bob, big.NewInt(601))
	require.ErrorIs(t, err, ErrInsufficientBalance)
	require.ErrorIs(t, m.CoinTransfer(alice, bob, nil), ErrInvalidAmount)
	require.ErrorIs(t, m.CoinTransfer(alice, bob, big.NewInt(-1)), ErrInvalidAmount)
}

func TestTokenTransfer(t *testing.T) {
	m := newTestManager(t)
	token := newTestAddress(0x0F)
	alice := newTestAddress(0x01)
	bob := newTestAddress(0x02)
	require.NoError(t, m.MintToken(token, alice, big.NewInt(500)))

	require.NoError(t, m.TokenTransfer(token, alice, bob, big.NewInt(200)))
	aliceBal, err := m.TokenBalance(token, alice)
	require.NoError(t, err)
	require.Equal(t, int64(300), aliceBal.Int64())
	bobBal, err := m.TokenBalance(token, bob)
	require.NoError(t, err)
	require.Equal(t, int64(200), bobBal.Int64())

	other := newTestAddress(0x10)
	err = m.TokenTransfer(other, alice, bob, big.NewInt(1))
	require.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestStakeRoundTrip(t *testing.T) {
	m := newTestManager(t)
	owner := newTestAddress(0x05)
	acc := &stake.Account{Owner: owner, Balance: big.NewInt(700), Locked: big.NewInt(300)}
	require.NoError(t, m.StakePut(acc))

	loaded, ok := m.StakeGet(owner)
	require.True(t, ok)
	require.Equal(t, int64(700), loaded.Balance.Int64())
	require.Equal(t, int64(300), loaded.Locked.Int64())

	_, ok = m.StakeGet(newTestAddress(0x06))
	require.False(t, ok)
}

func TestDisputeRoundTrip(t *testing.T) {
	m := newTestManager(t)
	d := &dispute.Dispute{
		ID:             newTestHash(0x01),
		Client:         "order",
		Prosecution:    newTestAddress(0x01),
		Defendant:      newTestAddress(0x02),
		Token:          newTestAddress(0x03),
		Amount:         big.NewInt(10_000),
		ProsecutionFee: big.NewInt(100),
		DefendantFee:   big.NewInt(0),
		Status:         dispute.StatusWaitingDefendant,
		CreatedAt:      42,
	}
	require.NoError(t, m.DisputePut(d))

	loaded, ok := m.DisputeGet(d.ID)
	require.True(t, ok)
	require.Equal(t, d.Client, loaded.Client)
	require.Equal(t, dispute.StatusWaitingDefendant, loaded.Status)
	require.Equal(t, int64(10_000), loaded.Amount.Int64())
}

func TestListingRoundTrip(t *testing.T) {
	m := newTestManager(t)
	rec := &listing.Record{Hash: newTestHash(0x02), Approved: true, Quantity: 7}
	require.NoError(t, m.ListingPut(rec))

	loaded, ok := m.ListingGet(rec.Hash)
	require.True(t, ok)
	require.True(t, loaded.Approved)
	require.Equal(t, uint64(7), loaded.Quantity)
}

func TestTransactionRoundTripAndDelete(t *testing.T) {
	m := newTestManager(t)
	tx := &order.Transaction{
		Hash:             newTestHash(0x03),
		Status:           order.StatusWaitingSeller,
		LastStatusUpdate: 99,
		Refund:           big.NewInt(0),
	}
	require.NoError(t, m.TransactionPut(tx))

	loaded, ok := m.TransactionGet(tx.Hash)
	require.True(t, ok)
	require.Equal(t, order.StatusWaitingSeller, loaded.Status)

	require.NoError(t, m.TransactionDelete(tx.Hash))
	_, ok = m.TransactionGet(tx.Hash)
	require.False(t, ok)
}
