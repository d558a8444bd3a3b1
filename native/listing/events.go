package listing

import (
	"encoding/hex"
	"strconv"

	"dagora/core/types"
	"dagora/native/dispute"
	"dagora/native/market"
)

const (
	EventTypeCreated      = "listing.created"
	EventTypeUpdated      = "listing.updated"
	EventTypeCancelled    = "listing.cancelled"
	EventTypeReported     = "listing.reported"
	EventTypeReportResult = "listing.report_result"
)

func newCreatedEvent(hash [32]byte, l market.Listing, quantity uint64) *types.Event {
	return &types.Event{Type: EventTypeCreated, Attributes: map[string]string{
		"hash":          hex.EncodeToString(hash[:]),
		"seller":        hex.EncodeToString(l.Seller[:]),
		"ipfsHash":      hex.EncodeToString(l.IPFSHash[:]),
		"commissionBps": strconv.FormatUint(l.CommissionBps, 10),
		"cashbackBps":   strconv.FormatUint(l.CashbackBps, 10),
		"warranty":      strconv.FormatUint(l.Warranty, 10),
		"expiration":    strconv.FormatUint(l.Expiration, 10),
		"quantity":      strconv.FormatUint(quantity, 10),
	}}
}

func newUpdatedEvent(hash [32]byte, quantity uint64) *types.Event {
	return &types.Event{Type: EventTypeUpdated, Attributes: map[string]string{
		"hash":     hex.EncodeToString(hash[:]),
		"quantity": strconv.FormatUint(quantity, 10),
	}}
}

func newCancelledEvent(hash [32]byte) *types.Event {
	return &types.Event{Type: EventTypeCancelled, Attributes: map[string]string{
		"hash": hex.EncodeToString(hash[:]),
	}}
}

func newReportedEvent(hash [32]byte, reporter [20]byte) *types.Event {
	return &types.Event{Type: EventTypeReported, Attributes: map[string]string{
		"hash":     hex.EncodeToString(hash[:]),
		"reporter": hex.EncodeToString(reporter[:]),
	}}
}

func newReportResultEvent(hash [32]byte, ruling dispute.Ruling) *types.Event {
	return &types.Event{Type: EventTypeReportResult, Attributes: map[string]string{
		"hash":   hex.EncodeToString(hash[:]),
		"ruling": strconv.FormatUint(uint64(ruling), 10),
	}}
}
