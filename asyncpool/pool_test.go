package asyncpool

import (
	"testing"

	"github.com/tolchain/corechain/models"
)

func addr(b byte) models.Address {
	var h models.Hash
	h[0] = b
	return models.NewUserAddress(h[:])
}

// TestPoolPriorityOrder checks that All() returns messages highest
// priority first, with slot/index as tiebreakers.
func TestPoolPriorityOrder(t *testing.T) {
	p := NewPool(10)
	low := &Message{ID: MessageId{Priority: 1, EmissionSlot: models.NewSlot(1, 0), EmissionIndex: 0}}
	high := &Message{ID: MessageId{Priority: 9, EmissionSlot: models.NewSlot(1, 0), EmissionIndex: 0}}
	mid := &Message{ID: MessageId{Priority: 5, EmissionSlot: models.NewSlot(1, 0), EmissionIndex: 0}}
	p.Push(low)
	p.Push(high)
	p.Push(mid)

	all := p.All()
	if len(all) != 3 || all[0] != high || all[1] != mid || all[2] != low {
		t.Fatalf("unexpected priority order: %+v", all)
	}
}

// TestPoolCapacityEviction checks that pushing past capacity evicts the
// single lowest-priority message.
func TestPoolCapacityEviction(t *testing.T) {
	p := NewPool(2)
	m1 := &Message{ID: MessageId{Priority: 5, EmissionSlot: models.NewSlot(1, 0)}, Sender: addr(1)}
	m2 := &Message{ID: MessageId{Priority: 3, EmissionSlot: models.NewSlot(1, 0)}, Sender: addr(2)}
	m3 := &Message{ID: MessageId{Priority: 9, EmissionSlot: models.NewSlot(1, 0)}, Sender: addr(3)}

	if _, evicted := p.Push(m1); evicted {
		t.Fatal("should not evict below capacity")
	}
	if _, evicted := p.Push(m2); evicted {
		t.Fatal("should not evict at capacity")
	}
	ev, evicted := p.Push(m3)
	if !evicted {
		t.Fatal("expected eviction when exceeding capacity")
	}
	if ev.Sender != m2.Sender {
		t.Errorf("expected the lowest-priority message (m2) evicted, got sender %v", ev.Sender)
	}
	if p.Len() != 2 {
		t.Errorf("pool size after eviction: got %d want 2", p.Len())
	}
}

// TestPoolPopReadyRespectsValidity checks that only messages whose
// validity window covers slot are returned, and that expired messages
// are removed from the pool even though they are not returned.
func TestPoolPopReadyRespectsValidity(t *testing.T) {
	p := NewPool(10)
	ready := &Message{
		ID:            MessageId{Priority: 1, EmissionSlot: models.NewSlot(1, 0)},
		ValidityStart: models.NewSlot(1, 0),
		ValidityEnd:   models.NewSlot(10, 0),
	}
	expired := &Message{
		ID:            MessageId{Priority: 2, EmissionSlot: models.NewSlot(1, 0), EmissionIndex: 1},
		ValidityStart: models.NewSlot(1, 0),
		ValidityEnd:   models.NewSlot(2, 0),
	}
	p.Push(ready)
	p.Push(expired)

	got := p.PopReady(models.NewSlot(5, 0))
	if len(got) != 1 || got[0] != ready {
		t.Fatalf("expected only the still-valid message, got %+v", got)
	}
	if p.Len() != 0 {
		t.Errorf("expired message should have been removed too, pool len = %d", p.Len())
	}
}
