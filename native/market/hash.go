package market

import (
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Listings and orders are identified by the keccak256 hash of their tightly
// packed field values rather than a stored record with a primary key. The
// packing order is part of the protocol: re-submitting a struct with identical
// terms always resolves to the same identifier.

// HashListing computes the canonical identifier for a listing.
func HashListing(l Listing) [32]byte {
	buf := make([]byte, 0, 32+20+4*32)
	buf = append(buf, l.IPFSHash[:]...)
	buf = append(buf, l.Seller[:]...)
	buf = appendUint256(buf, new(big.Int).SetUint64(l.CommissionBps))
	buf = appendUint256(buf, new(big.Int).SetUint64(l.Warranty))
	buf = appendUint256(buf, new(big.Int).SetUint64(l.CashbackBps))
	buf = appendUint256(buf, new(big.Int).SetUint64(l.Expiration))
	return ethcrypto.Keccak256Hash(buf)
}

// HashOrder computes the canonical identifier for an order, binding it to the
// listing hash it was placed against.
func HashOrder(o Order) [32]byte {
	listingHash := HashListing(o.Listing)
	buf := make([]byte, 0, 32+3*20+7*32)
	buf = append(buf, listingHash[:]...)
	buf = append(buf, o.Buyer[:]...)
	buf = append(buf, o.Commissioner[:]...)
	buf = append(buf, o.Token[:]...)
	buf = appendUint256(buf, new(big.Int).SetUint64(o.Quantity))
	buf = appendUint256(buf, o.Total)
	buf = appendUint256(buf, o.Cashback)
	buf = appendUint256(buf, o.Commission)
	buf = appendUint256(buf, o.ProtocolFee)
	buf = appendUint256(buf, new(big.Int).SetUint64(o.ConfirmationTimeout))
	buf = appendUint256(buf, new(big.Int).SetUint64(o.Nonce))
	return ethcrypto.Keccak256Hash(buf)
}

func appendUint256(buf []byte, v *big.Int) []byte {
	var word [32]byte
	if v != nil && v.Sign() > 0 {
		v.FillBytes(word[:])
	}
	return append(buf, word[:]...)
}
