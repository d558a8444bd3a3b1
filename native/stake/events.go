package stake

import (
	"encoding/hex"
	"math/big"

	"dagora/core/types"
)

const (
	EventTypeStaked   = "stake.staked"
	EventTypeUnstaked = "stake.unstaked"
	EventTypeLocked   = "stake.locked"
	EventTypeUnlocked = "stake.unlocked"
	EventTypeBurned   = "stake.burned"
)

func newStakedEvent(owner [20]byte, amount *big.Int) *types.Event {
	return newStakeEvent(EventTypeStaked, owner, amount)
}

func newUnstakedEvent(owner [20]byte, amount *big.Int) *types.Event {
	return newStakeEvent(EventTypeUnstaked, owner, amount)
}

func newLockedEvent(owner [20]byte, amount *big.Int) *types.Event {
	return newStakeEvent(EventTypeLocked, owner, amount)
}

func newUnlockedEvent(owner [20]byte, amount *big.Int) *types.Event {
	return newStakeEvent(EventTypeUnlocked, owner, amount)
}

func newBurnedEvent(owner [20]byte, amount *big.Int) *types.Event {
	return newStakeEvent(EventTypeBurned, owner, amount)
}

func newStakeEvent(eventType string, owner [20]byte, amount *big.Int) *types.Event {
	attrs := map[string]string{
		"owner": hex.EncodeToString(owner[:]),
	}
	if amount != nil {
		attrs["amount"] = amount.String()
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}
