package pool

import (
	"testing"

	"github.com/tolchain/corechain/models"
)

func testOp(id byte, expirePeriod uint64, maxGas uint64) models.Operation {
	var h models.Hash
	h[0] = id
	return models.Operation{
		ID:           h,
		Type:         models.OpTransfer,
		Sender:       []byte{1, 2, 3},
		ExpirePeriod: expirePeriod,
		MaxGas:       maxGas,
	}
}

func TestControllerAddAndBatch(t *testing.T) {
	c := NewController(2, nil)
	if err := c.AddOperation(testOp(1, 10, 100)); err != nil {
		t.Fatalf("AddOperation: %v", err)
	}
	if err := c.AddOperation(testOp(2, 10, 100)); err != nil {
		t.Fatalf("AddOperation: %v", err)
	}

	batch := c.GetOperationBatch(GetOperationBatchRequest{
		Slot:   models.NewSlot(1, 0),
		MaxGas: 150,
	})
	if len(batch.Operations) != 1 {
		t.Fatalf("expected gas budget to admit exactly one operation, got %d", len(batch.Operations))
	}
}

func TestControllerRejectsDuplicateAndExpired(t *testing.T) {
	c := NewController(1, nil)
	op := testOp(1, 10, 100)
	if err := c.AddOperation(op); err != nil {
		t.Fatalf("AddOperation: %v", err)
	}
	if err := c.AddOperation(op); err == nil {
		t.Fatal("expected duplicate rejection")
	}

	expired := testOp(2, 5, 100)
	c.UpdateLatestFinalPeriods([]uint64{5})
	if err := c.AddOperation(expired); err == nil {
		t.Fatal("expected expired operation to be rejected")
	}
}

func TestUpdateLatestFinalPeriodsEvictsAcrossAllThreads(t *testing.T) {
	c := NewController(2, nil)
	if err := c.AddOperation(testOp(1, 10, 100)); err != nil {
		t.Fatalf("AddOperation: %v", err)
	}

	// Thread 0 final past expiry, thread 1 not yet: must not evict.
	c.UpdateLatestFinalPeriods([]uint64{20, 0})
	if c.Len() != 1 {
		t.Fatalf("operation should survive while one thread has not finalized past its expiry: Len=%d", c.Len())
	}

	// Both threads final past expiry: must evict.
	c.UpdateLatestFinalPeriods([]uint64{20, 20})
	if c.Len() != 0 {
		t.Fatalf("operation should be evicted once every thread is final past its expiry: Len=%d", c.Len())
	}
}
