package order

import (
	"encoding/hex"
	"strconv"

	"dagora/core/types"
	"dagora/native/market"
)

const (
	EventTypeCreated         = "order.created"
	EventTypeCancelled       = "order.cancelled"
	EventTypeAccepted        = "order.accepted"
	EventTypeConfirmed       = "order.confirmed"
	EventTypeRefundUpdated   = "order.refund_updated"
	EventTypeWarrantyClaimed = "order.warranty_claimed"
	EventTypeDisputed        = "order.disputed"
	EventTypeFinalized       = "order.finalized"
)

func newCreatedEvent(hash [32]byte, o *market.Order) *types.Event {
	listingHash := market.HashListing(o.Listing)
	return &types.Event{Type: EventTypeCreated, Attributes: map[string]string{
		"hash":                hex.EncodeToString(hash[:]),
		"listingHash":         hex.EncodeToString(listingHash[:]),
		"buyer":               hex.EncodeToString(o.Buyer[:]),
		"commissioner":        hex.EncodeToString(o.Commissioner[:]),
		"token":               hex.EncodeToString(o.Token[:]),
		"total":               o.Total.String(),
		"commission":          o.Commission.String(),
		"cashback":            o.Cashback.String(),
		"protocolFee":         o.ProtocolFee.String(),
		"confirmationTimeout": strconv.FormatUint(o.ConfirmationTimeout, 10),
	}}
}

func newCancelledEvent(hash [32]byte) *types.Event       { return hashEvent(EventTypeCancelled, hash) }
func newAcceptedEvent(hash [32]byte) *types.Event        { return hashEvent(EventTypeAccepted, hash) }
func newConfirmedEvent(hash [32]byte) *types.Event       { return hashEvent(EventTypeConfirmed, hash) }
func newWarrantyClaimedEvent(hash [32]byte) *types.Event { return hashEvent(EventTypeWarrantyClaimed, hash) }
func newDisputedEvent(hash [32]byte) *types.Event        { return hashEvent(EventTypeDisputed, hash) }
func newFinalizedEvent(hash [32]byte) *types.Event       { return hashEvent(EventTypeFinalized, hash) }

func newRefundUpdatedEvent(hash [32]byte, refund interface{ String() string }) *types.Event {
	evt := hashEvent(EventTypeRefundUpdated, hash)
	evt.Attributes["refund"] = refund.String()
	return evt
}

func hashEvent(eventType string, hash [32]byte) *types.Event {
	return &types.Event{Type: eventType, Attributes: map[string]string{
		"hash": hex.EncodeToString(hash[:]),
	}}
}
