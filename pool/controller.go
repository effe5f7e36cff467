// Package pool is the operation-pool collaborator: it holds pending,
// signed operations gathered from the network and RPC surfaces, evicts
// the ones that can no longer be included in any future block, and hands
// the block producer a gas-bounded batch on request.
package pool

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/tolchain/corechain/models"
)

// GetOperationBatchRequest asks the pool for operations to fill a block
// at Slot, addressed to TargetBlock, within a MaxGas budget.
type GetOperationBatchRequest struct {
	Slot        models.Slot
	TargetBlock models.BlockId
	MaxGas      uint64
}

// OperationBatch is the pool's answer to a GetOperationBatchRequest.
type OperationBatch struct {
	TargetBlock models.BlockId
	Operations  []models.Operation
}

// Controller tracks pending operations, insertion-ordered for
// deterministic batch selection. Admission validity is driven by
// per-thread latest final periods rather than a wall-clock age window:
// an operation is retired once every thread has finalized past its
// ExpirePeriod, since no future block could still include it.
type Controller struct {
	mu  sync.RWMutex
	log *zap.SugaredLogger

	ops map[models.Hash]models.Operation
	ord []models.Hash

	latestFinalPeriods []uint64
}

// NewController creates an empty Controller tracking threadCount threads.
func NewController(threadCount uint8, log *zap.SugaredLogger) *Controller {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Controller{
		log:                log,
		ops:                make(map[models.Hash]models.Operation),
		latestFinalPeriods: make([]uint64, threadCount),
	}
}

// UpdateLatestFinalPeriods replaces the per-thread latest final period
// vector and evicts every operation whose ExpirePeriod has passed on
// all threads.
func (c *Controller) UpdateLatestFinalPeriods(periods []uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(periods) >= len(c.latestFinalPeriods) {
		c.latestFinalPeriods = append([]uint64(nil), periods...)
	} else {
		copy(c.latestFinalPeriods, periods)
	}

	floor := c.minFinalPeriodLocked()
	var kept []models.Hash
	evicted := 0
	for _, id := range c.ord {
		op, ok := c.ops[id]
		if !ok {
			continue
		}
		if op.ExpirePeriod <= floor {
			delete(c.ops, id)
			evicted++
			continue
		}
		kept = append(kept, id)
	}
	c.ord = kept
	if evicted > 0 {
		c.log.Debugw("pool evicted expired operations", "count", evicted, "floor_period", floor)
	}
}

func (c *Controller) minFinalPeriodLocked() uint64 {
	if len(c.latestFinalPeriods) == 0 {
		return 0
	}
	min := c.latestFinalPeriods[0]
	for _, p := range c.latestFinalPeriods[1:] {
		if p < min {
			min = p
		}
	}
	return min
}

// AddOperation admits op into the pool. It is rejected if already
// present or already expired against the current final-period floor.
func (c *Controller) AddOperation(op models.Operation) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.ops[op.ID]; exists {
		return fmt.Errorf("pool: operation %s already pending", op.ID)
	}
	if op.ExpirePeriod <= c.minFinalPeriodLocked() {
		return fmt.Errorf("pool: operation %s already expired", op.ID)
	}
	c.ops[op.ID] = op
	c.ord = append(c.ord, op.ID)
	return nil
}

// RemoveOperations deletes operations by ID, called once their containing
// block becomes final.
func (c *Controller) RemoveOperations(ids []models.Hash) {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := make(map[models.Hash]bool, len(ids))
	for _, id := range ids {
		delete(c.ops, id)
		removed[id] = true
	}
	filtered := c.ord[:0]
	for _, id := range c.ord {
		if !removed[id] {
			filtered = append(filtered, id)
		}
	}
	c.ord = filtered
}

// GetOperationBatch selects pending operations valid at req.Slot, in
// insertion order, skipping any operation whose MaxGas would push the
// batch's cumulative gas past req.MaxGas and continuing with the rest.
func (c *Controller) GetOperationBatch(req GetOperationBatchRequest) OperationBatch {
	c.mu.RLock()
	defer c.mu.RUnlock()

	batch := OperationBatch{TargetBlock: req.TargetBlock}
	var cumulative uint64
	for _, id := range c.ord {
		op, ok := c.ops[id]
		if !ok {
			continue
		}
		if op.ExpirePeriod <= req.Slot.Period {
			continue
		}
		if cumulative+op.MaxGas > req.MaxGas {
			continue
		}
		cumulative += op.MaxGas
		batch.Operations = append(batch.Operations, op)
	}
	return batch
}

// Len returns the number of pending operations.
func (c *Controller) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ops)
}
