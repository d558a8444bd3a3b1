package market

import (
	"bytes"
	"math/big"
	"testing"
)

func testListing() Listing {
	var ipfs [32]byte
	copy(ipfs[:], bytes.Repeat([]byte{0x11}, 32))
	var seller [20]byte
	copy(seller[:], bytes.Repeat([]byte{0x22}, 20))
	return Listing{
		IPFSHash:      ipfs,
		Seller:        seller,
		CommissionBps: 300,
		CashbackBps:   100,
		Warranty:      2,
		Expiration:    1_900_000_000,
	}
}

func testOrder() Order {
	addr := func(fill byte) [20]byte {
		var a [20]byte
		copy(a[:], bytes.Repeat([]byte{fill}, 20))
		return a
	}
	return Order{
		Listing:             testListing(),
		Buyer:               addr(0x33),
		Commissioner:        addr(0x44),
		Token:               addr(0x55),
		Quantity:            1,
		Total:               big.NewInt(10_000),
		Cashback:            big.NewInt(100),
		Commission:          big.NewInt(300),
		ProtocolFee:         big.NewInt(50),
		ConfirmationTimeout: 7,
		Nonce:               1,
	}
}

func TestHashListingDeterministic(t *testing.T) {
	a := HashListing(testListing())
	b := HashListing(testListing())
	if a != b {
		t.Fatalf("identical listings hashed differently: %x vs %x", a, b)
	}
}

func TestHashListingFieldSensitivity(t *testing.T) {
	base := HashListing(testListing())
	mutations := map[string]func(*Listing){
		"ipfsHash":      func(l *Listing) { l.IPFSHash[0] ^= 0xFF },
		"seller":        func(l *Listing) { l.Seller[0] ^= 0xFF },
		"commissionBps": func(l *Listing) { l.CommissionBps++ },
		"cashbackBps":   func(l *Listing) { l.CashbackBps++ },
		"warranty":      func(l *Listing) { l.Warranty++ },
		"expiration":    func(l *Listing) { l.Expiration++ },
	}
	for name, mutate := range mutations {
		l := testListing()
		mutate(&l)
		if HashListing(l) == base {
			t.Fatalf("mutating %s did not change the listing hash", name)
		}
	}
}

func TestHashOrderDeterministic(t *testing.T) {
	a := HashOrder(testOrder())
	b := HashOrder(testOrder())
	if a != b {
		t.Fatalf("identical orders hashed differently: %x vs %x", a, b)
	}
}

func TestHashOrderFieldSensitivity(t *testing.T) {
	base := HashOrder(testOrder())
	mutations := map[string]func(*Order){
		"listing":             func(o *Order) { o.Listing.CommissionBps++ },
		"buyer":               func(o *Order) { o.Buyer[0] ^= 0xFF },
		"commissioner":        func(o *Order) { o.Commissioner[0] ^= 0xFF },
		"token":               func(o *Order) { o.Token[0] ^= 0xFF },
		"quantity":            func(o *Order) { o.Quantity++ },
		"total":               func(o *Order) { o.Total = big.NewInt(10_001) },
		"cashback":            func(o *Order) { o.Cashback = big.NewInt(101) },
		"commission":          func(o *Order) { o.Commission = big.NewInt(301) },
		"protocolFee":         func(o *Order) { o.ProtocolFee = big.NewInt(51) },
		"confirmationTimeout": func(o *Order) { o.ConfirmationTimeout++ },
		"nonce":               func(o *Order) { o.Nonce++ },
	}
	for name, mutate := range mutations {
		o := testOrder()
		mutate(&o)
		if HashOrder(o) == base {
			t.Fatalf("mutating %s did not change the order hash", name)
		}
	}
}

func TestHashOrderDistinctFromListing(t *testing.T) {
	if HashOrder(testOrder()) == HashListing(testListing()) {
		t.Fatal("order hash collided with its listing hash")
	}
}
