// Package models defines the core value types shared across the node:
// slots, hashes, addresses, amounts, blocks and operations.
package models

import (
	"encoding/binary"
	"fmt"
)

// Slot identifies a logical position in the block graph as a
// (period, thread) pair. Threads run in parallel; periods advance once
// per thread per genesis-relative round.
type Slot struct {
	Period uint64
	Thread uint8
}

// NewSlot constructs a Slot.
func NewSlot(period uint64, thread uint8) Slot {
	return Slot{Period: period, Thread: thread}
}

// Before reports whether s occurs strictly before other in (period, thread)
// lexicographic order.
func (s Slot) Before(other Slot) bool {
	if s.Period != other.Period {
		return s.Period < other.Period
	}
	return s.Thread < other.Thread
}

// Equal reports whether s and other identify the same slot.
func (s Slot) Equal(other Slot) bool {
	return s.Period == other.Period && s.Thread == other.Thread
}

// ToBytesKey returns a fixed-width big-endian encoding suitable as seed
// material or a map/db key: 8 bytes period followed by 1 byte thread.
func (s Slot) ToBytesKey() []byte {
	buf := make([]byte, 9)
	binary.BigEndian.PutUint64(buf[:8], s.Period)
	buf[8] = s.Thread
	return buf
}

// String renders the slot as "period.thread".
func (s Slot) String() string {
	return fmt.Sprintf("%d.%d", s.Period, s.Thread)
}
