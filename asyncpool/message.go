// Package asyncpool holds messages sent by smart-contract execution for
// later, asynchronous delivery: scheduled calls that fire once a target
// slot is reached, ordered by priority and insertion order.
package asyncpool

import "github.com/tolchain/corechain/models"

// MessageId orders pending messages: highest priority first, then by
// ascending emission slot, then by ascending emission index within that
// slot. This total order is also the pool's eviction order in reverse
// (the lowest-ordered message is evicted first when the pool is full).
type MessageId struct {
	Priority      uint8
	EmissionSlot  models.Slot
	EmissionIndex uint64
}

// Less reports whether id sorts before other under the pool's ordering:
// higher priority first, then earlier emission slot, then earlier index.
func (id MessageId) Less(other MessageId) bool {
	if id.Priority != other.Priority {
		return id.Priority > other.Priority
	}
	if !id.EmissionSlot.Equal(other.EmissionSlot) {
		return id.EmissionSlot.Before(other.EmissionSlot)
	}
	return id.EmissionIndex < other.EmissionIndex
}

// Message is a scheduled async call: a coin-bearing invocation of an
// entry point on a target address, valid within [ValidityStart, ValidityEnd].
type Message struct {
	ID             MessageId
	Sender         models.Address
	Target         models.Address
	EntryPoint     string
	Param          []byte
	Coins          models.Amount // reimbursed to Sender if the message is dropped or fails
	MaxGas         uint64
	ValidityStart  models.Slot
	ValidityEnd    models.Slot
}

// IsValidAt reports whether the message may still be executed at slot.
func (m *Message) IsValidAt(slot models.Slot) bool {
	return !slot.Before(m.ValidityStart) && !m.ValidityEnd.Before(slot)
}
