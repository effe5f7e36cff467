package asyncpool

import (
	"github.com/google/btree"

	"github.com/tolchain/corechain/models"
)

// Pool is the priority-ordered set of pending async messages. It is kept
// bounded at Capacity: pushing past capacity evicts the lowest-priority
// message, and the evicted message's coins are returned to its sender by
// the caller (see execution.Context.PushNewMessage).
type Pool struct {
	capacity int
	tree     *btree.BTreeG[*Message]
	byID     map[MessageId]*Message
}

func less(a, b *Message) bool {
	return a.ID.Less(b.ID)
}

// NewPool creates an empty Pool bounded at capacity messages.
func NewPool(capacity int) *Pool {
	return &Pool{
		capacity: capacity,
		tree:     btree.NewG(32, less),
		byID:     make(map[MessageId]*Message),
	}
}

// Len returns the number of messages currently held.
func (p *Pool) Len() int {
	return len(p.byID)
}

// Capacity returns the maximum number of messages the pool will hold.
func (p *Pool) Capacity() int {
	return p.capacity
}

// Push inserts msg into the pool. If doing so would exceed capacity, the
// lowest-priority message is evicted and returned so the caller can
// reimburse its sender. Returns (evicted, true) when an eviction occurred.
func (p *Pool) Push(msg *Message) (*Message, bool) {
	p.tree.ReplaceOrInsert(msg)
	p.byID[msg.ID] = msg
	if p.Len() <= p.capacity {
		return nil, false
	}
	worst, ok := p.tree.Max()
	if !ok {
		return nil, false
	}
	p.tree.Delete(worst)
	delete(p.byID, worst.ID)
	return worst, true
}

// PopReady removes and returns every message valid at slot, in priority
// order, for delivery by the execution driver.
func (p *Pool) PopReady(slot models.Slot) []*Message {
	var ready []*Message
	var expired []*Message
	p.tree.Ascend(func(m *Message) bool {
		switch {
		case m.ValidityEnd.Before(slot):
			expired = append(expired, m)
		case m.IsValidAt(slot):
			ready = append(ready, m)
		}
		return true
	})
	for _, m := range append(ready, expired...) {
		p.tree.Delete(m)
		delete(p.byID, m.ID)
	}
	return ready
}

// EvictExpired removes and returns every message whose validity window
// has closed as of slot, without disturbing messages that are still
// ready or not yet valid. Used by the execution driver's settle-slot
// step so expired messages can be reimbursed even when nothing drained
// them via PopReady first.
func (p *Pool) EvictExpired(slot models.Slot) []*Message {
	var expired []*Message
	p.tree.Ascend(func(m *Message) bool {
		if m.ValidityEnd.Before(slot) {
			expired = append(expired, m)
		}
		return true
	})
	for _, m := range expired {
		p.tree.Delete(m)
		delete(p.byID, m.ID)
	}
	return expired
}

// Get looks up a message by id.
func (p *Pool) Get(id MessageId) (*Message, bool) {
	m, ok := p.byID[id]
	return m, ok
}

// Remove deletes the message with id from the pool, if present.
func (p *Pool) Remove(id MessageId) {
	m, ok := p.byID[id]
	if !ok {
		return
	}
	p.tree.Delete(m)
	delete(p.byID, id)
}

// Clone returns a deep-enough copy of the pool for speculative overlay
// use: message pointers are shared (messages are immutable once created)
// but the index structures are independent.
func (p *Pool) Clone() *Pool {
	clone := NewPool(p.capacity)
	p.tree.Ascend(func(m *Message) bool {
		clone.tree.ReplaceOrInsert(m)
		clone.byID[m.ID] = m
		return true
	})
	return clone
}

// All returns every message currently in the pool, in priority order.
func (p *Pool) All() []*Message {
	out := make([]*Message, 0, p.Len())
	p.tree.Ascend(func(m *Message) bool {
		out = append(out, m)
		return true
	})
	return out
}
