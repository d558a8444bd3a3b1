package dispute

import (
	"encoding/hex"
	"strconv"

	"dagora/core/types"
)

const (
	EventTypeHasToPayFee = "dispute.fee_required"
	EventTypeCreated     = "dispute.created"
	EventTypeResolved    = "dispute.resolved"
	EventTypeEvidence    = "dispute.evidence"
	EventTypeAppeal      = "dispute.appeal"
)

func newHasToPayFeeEvent(id [32]byte, party Party) *types.Event {
	return &types.Event{Type: EventTypeHasToPayFee, Attributes: map[string]string{
		"id":    hex.EncodeToString(id[:]),
		"party": strconv.FormatUint(uint64(party), 10),
	}}
}

func newCreatedEvent(d *Dispute) *types.Event {
	attrs := make(map[string]string)
	if d != nil {
		attrs["id"] = hex.EncodeToString(d.ID[:])
		attrs["client"] = d.Client
		attrs["prosecution"] = hex.EncodeToString(d.Prosecution[:])
		attrs["defendant"] = hex.EncodeToString(d.Defendant[:])
		attrs["amount"] = d.Amount.String()
	}
	return &types.Event{Type: EventTypeCreated, Attributes: attrs}
}

func newResolvedEvent(d *Dispute, ruling Ruling) *types.Event {
	attrs := make(map[string]string)
	if d != nil {
		attrs["id"] = hex.EncodeToString(d.ID[:])
		attrs["ruling"] = strconv.FormatUint(uint64(ruling), 10)
	}
	return &types.Event{Type: EventTypeResolved, Attributes: attrs}
}

func newEvidenceEvent(id [32]byte, party [20]byte) *types.Event {
	return &types.Event{Type: EventTypeEvidence, Attributes: map[string]string{
		"id":    hex.EncodeToString(id[:]),
		"party": hex.EncodeToString(party[:]),
	}}
}

func newAppealEvent(id [32]byte, party [20]byte) *types.Event {
	return &types.Event{Type: EventTypeAppeal, Attributes: map[string]string{
		"id":    hex.EncodeToString(id[:]),
		"party": hex.EncodeToString(party[:]),
	}}
}
