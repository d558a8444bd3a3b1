package gateway

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"dagora/native/market"
)

func parseAddress(s string) ([20]byte, error) {
	var addr [20]byte
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return addr, fmt.Errorf("invalid address %q", s)
	}
	if len(raw) != 20 {
		return addr, fmt.Errorf("invalid address %q: want 20 bytes", s)
	}
	copy(addr[:], raw)
	return addr, nil
}

func parseHash(s string) ([32]byte, error) {
	var hash [32]byte
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return hash, fmt.Errorf("invalid hash %q", s)
	}
	if len(raw) != 32 {
		return hash, fmt.Errorf("invalid hash %q: want 32 bytes", s)
	}
	copy(hash[:], raw)
	return hash, nil
}

func parseAmount(s string) (*big.Int, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return amount, nil
}

func encodeAddress(addr [20]byte) string { return "0x" + hex.EncodeToString(addr[:]) }
func encodeHash(hash [32]byte) string    { return "0x" + hex.EncodeToString(hash[:]) }

type listingPayload struct {
	IPFSHash      string `json:"ipfsHash"`
	Seller        string `json:"seller"`
	CommissionBps uint64 `json:"commissionBps"`
	CashbackBps   uint64 `json:"cashbackBps"`
	Warranty      uint64 `json:"warranty"`
	Expiration    uint64 `json:"expiration"`
}

func (p listingPayload) toListing() (market.Listing, error) {
	var l market.Listing
	ipfs, err := parseHash(p.IPFSHash)
	if err != nil {
		return l, err
	}
	seller, err := parseAddress(p.Seller)
	if err != nil {
		return l, err
	}
	l = market.Listing{
		IPFSHash:      ipfs,
		Seller:        seller,
		CommissionBps: p.CommissionBps,
		CashbackBps:   p.CashbackBps,
		Warranty:      p.Warranty,
		Expiration:    p.Expiration,
	}
	return l, nil
}

type orderPayload struct {
	Listing             listingPayload `json:"listing"`
	Buyer               string         `json:"buyer"`
	Commissioner        string         `json:"commissioner"`
	Token               string         `json:"token"`
	Quantity            uint64         `json:"quantity"`
	Total               string         `json:"total"`
	Cashback            string         `json:"cashback"`
	Commission          string         `json:"commission"`
	ProtocolFee         string         `json:"protocolFee"`
	ConfirmationTimeout uint64         `json:"confirmationTimeout"`
	Nonce               uint64         `json:"nonce"`
}

func (p orderPayload) toOrder() (*market.Order, error) {
	l, err := p.Listing.toListing()
	if err != nil {
		return nil, err
	}
	buyer, err := parseAddress(p.Buyer)
	if err != nil {
		return nil, err
	}
	var commissioner [20]byte
	if strings.TrimSpace(p.Commissioner) != "" {
		if commissioner, err = parseAddress(p.Commissioner); err != nil {
			return nil, err
		}
	}
	token, err := parseAddress(p.Token)
	if err != nil {
		return nil, err
	}
	total, err := parseAmount(p.Total)
	if err != nil {
		return nil, err
	}
	cashback, err := parseAmount(p.Cashback)
	if err != nil {
		return nil, err
	}
	commission, err := parseAmount(p.Commission)
	if err != nil {
		return nil, err
	}
	protocolFee, err := parseAmount(p.ProtocolFee)
	if err != nil {
		return nil, err
	}
	return &market.Order{
		Listing:             l,
		Buyer:               buyer,
		Commissioner:        commissioner,
		Token:               token,
		Quantity:            p.Quantity,
		Total:               total,
		Cashback:            cashback,
		Commission:          commission,
		ProtocolFee:         protocolFee,
		ConfirmationTimeout: p.ConfirmationTimeout,
		Nonce:               p.Nonce,
	}, nil
}

func decodeJSON(r *http.Request, out interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error string `json:"error"`
}
