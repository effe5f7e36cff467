package execution

import (
	"github.com/tolchain/corechain/asyncpool"
	"github.com/tolchain/corechain/models"
)

// SpeculativeAsyncPool overlays pending pushes/removals on the final
// async message pool for the duration of a slot.
type SpeculativeAsyncPool struct {
	pool *asyncpool.Pool // a clone of the final pool, mutated freely
}

// NewSpeculativeAsyncPool clones final so the speculative copy can be
// mutated and discarded independently.
func NewSpeculativeAsyncPool(final *asyncpool.Pool) *SpeculativeAsyncPool {
	return &SpeculativeAsyncPool{pool: final.Clone()}
}

// Push schedules a new async message, evicting the lowest-priority
// message if the pool is at capacity. The eviction, if any, is returned
// so its sender can be reimbursed.
func (s *SpeculativeAsyncPool) Push(msg *asyncpool.Message) (*asyncpool.Message, bool) {
	return s.pool.Push(msg)
}

// TakeReady removes and returns every message whose validity window
// covers slot, for delivery by the execution driver.
func (s *SpeculativeAsyncPool) TakeReady(slot models.Slot) []*asyncpool.Message {
	return s.pool.PopReady(slot)
}

// EvictExpired removes and returns every message that is no longer valid
// at slot, for the settle-slot reimbursement step.
func (s *SpeculativeAsyncPool) EvictExpired(slot models.Slot) []*asyncpool.Message {
	return s.pool.EvictExpired(slot)
}

// Snapshot returns a clone of the current pool state for later rollback.
func (s *SpeculativeAsyncPool) Snapshot() *asyncpool.Pool {
	return s.pool.Clone()
}

// ResetToSnapshot discards any changes made since snap was captured.
func (s *SpeculativeAsyncPool) ResetToSnapshot(snap *asyncpool.Pool) {
	s.pool = snap
}

// Take returns the pool in its final, post-slot state, for the
// final-state committer to adopt as the new persisted pool.
func (s *SpeculativeAsyncPool) Take() *asyncpool.Pool {
	return s.pool
}
