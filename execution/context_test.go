package execution

import (
	"math"
	"testing"

	"github.com/tolchain/corechain/asyncpool"
	"github.com/tolchain/corechain/ledger"
	"github.com/tolchain/corechain/models"
)

// fakeFinalLedger is a minimal FinalLedgerReader backed by a plain map,
// standing in for finalstate.FinalState in tests.
type fakeFinalLedger map[models.Address]*ledger.Entry

func (f fakeFinalLedger) GetEntry(addr models.Address) (*ledger.Entry, bool) {
	e, ok := f[addr]
	return e, ok
}

func testAddr(b byte) models.Address {
	var h models.Hash
	h[0] = b
	return models.NewUserAddress(h[:])
}

// TestTransferRollback checks that an insufficient balance transfer
// fails atomically and leaves the context exactly as it was before the
// attempt.
func TestTransferRollback(t *testing.T) {
	a, b := testAddr(1), testAddr(2)
	final := fakeFinalLedger{a: ledger.NewEntry(models.AmountFromRaw(5))}

	ctx := NewActiveSlotContext(models.NewSlot(1, 0), models.HashData([]byte("block")), final, asyncpool.NewPool(10))
	ctx.PushStack(a, nil, models.ZeroAmount)

	before := ctx.Snapshot()
	bigAmount := models.AmountFromRaw(10)
	if err := ctx.TransferParallelCoins(&a, &b, bigAmount, true); err == nil {
		t.Fatal("expected insufficient-balance error")
	}

	afterBalA := ctx.Ledger.GetBalance(a)
	if afterBalA.Raw() != 5 {
		t.Fatalf("balance should be untouched by the failed transfer: got %s", afterBalA)
	}
	if len(ctx.Ledger.Snapshot()) != len(before.ledgerChanges) {
		t.Fatalf("ledger overlay should have no pending changes after a failed transfer")
	}

	ctx.ResetToSnapshot(before)
	if ctx.Ledger.GetBalance(a).Raw() != 5 {
		t.Fatalf("reset should leave balance unchanged: got %s", ctx.Ledger.GetBalance(a))
	}
}

// TestTransferCreditOverflowLeavesDebitUntouched checks that a transfer
// with a healthy sender balance but an overflowing recipient balance
// fails atomically: the sender must not be debited just because the
// credit side was the one that failed.
func TestTransferCreditOverflowLeavesDebitUntouched(t *testing.T) {
	a, b := testAddr(1), testAddr(2)
	final := fakeFinalLedger{
		a: ledger.NewEntry(models.AmountFromRaw(10)),
		b: ledger.NewEntry(models.AmountFromRaw(math.MaxUint64)),
	}

	ctx := NewActiveSlotContext(models.NewSlot(1, 0), models.HashData([]byte("block")), final, asyncpool.NewPool(10))
	ctx.PushStack(a, nil, models.ZeroAmount)

	before := ctx.Snapshot()
	if err := ctx.TransferParallelCoins(&a, &b, models.AmountFromRaw(1), true); err == nil {
		t.Fatal("expected credit-overflow error")
	}

	if got := ctx.Ledger.GetBalance(a).Raw(); got != 10 {
		t.Fatalf("sender balance should be untouched when the credit side overflows: got %d", got)
	}
	if got := ctx.Ledger.GetBalance(b).Raw(); got != math.MaxUint64 {
		t.Fatalf("recipient balance should be untouched when the credit side overflows: got %d", got)
	}
	if len(ctx.Ledger.Snapshot()) != len(before.ledgerChanges) {
		t.Fatalf("ledger overlay should have no pending changes after a failed transfer")
	}
}

// TestCreateNewSCAddressDeterminism checks that two active contexts for
// the same slot, block id, and counter value agree on the derived
// address, while an active and a read-only context for the same slot
// diverge.
func TestCreateNewSCAddressDeterminism(t *testing.T) {
	slot := models.NewSlot(3, 1)
	blockID := models.HashData([]byte("block-3-1"))
	final := fakeFinalLedger{}

	ctx1 := NewActiveSlotContext(slot, blockID, final, asyncpool.NewPool(10))
	ctx1.PushStack(testAddr(9), nil, models.ZeroAmount)
	addr1 := ctx1.CreateNewSCAddress()

	ctx2 := NewActiveSlotContext(slot, blockID, final, asyncpool.NewPool(10))
	ctx2.PushStack(testAddr(9), nil, models.ZeroAmount)
	addr2 := ctx2.CreateNewSCAddress()

	if addr1 != addr2 {
		t.Fatalf("two active contexts for the same slot/block/counter must derive the same address: %s != %s", addr1, addr2)
	}

	roCtx := NewReadOnlyContext(slot, final, asyncpool.NewPool(10))
	roCtx.PushStack(testAddr(9), nil, models.ZeroAmount)
	roAddr := roCtx.CreateNewSCAddress()

	if roAddr == addr1 {
		t.Fatalf("an active and a read-only context for the same slot must never derive the same address")
	}
}

// TestSettleSlotReimbursesExpiredMessages checks that an expired async
// message is evicted during settle and its coins returned to the sender.
func TestSettleSlotReimbursesExpiredMessages(t *testing.T) {
	sender := testAddr(4)
	final := fakeFinalLedger{sender: ledger.NewEntry(models.ZeroAmount)}
	slot := models.NewSlot(10, 0)
	ctx := NewActiveSlotContext(slot, models.HashData([]byte("b")), final, asyncpool.NewPool(10))

	msg := &asyncpool.Message{
		ID:            asyncpool.MessageId{Priority: 1, EmissionSlot: models.NewSlot(1, 0)},
		Sender:        sender,
		Target:        testAddr(5),
		Coins:         models.AmountFromRaw(42),
		ValidityStart: models.NewSlot(1, 0),
		ValidityEnd:   models.NewSlot(2, 0),
	}
	if err := ctx.PushNewMessage(msg); err != nil {
		t.Fatalf("PushNewMessage: %v", err)
	}

	output := ctx.SettleSlot(nil)
	if ctx.BlockId != nil {
		t.Fatal("SettleSlot must reset the block id")
	}
	if len(ctx.Events()) != 0 {
		t.Fatal("SettleSlot must reset the event log")
	}
	if output.Slot != slot {
		t.Fatalf("output slot mismatch: got %s", output.Slot)
	}

	settled := NewSpeculativeLedger(final)
	settled.ResetToSnapshot(output.Changes.Ledger)
	if got := settled.GetBalance(sender).Raw(); got != 42 {
		t.Fatalf("expired message coins should be reimbursed to the sender: got %d, want 42", got)
	}
}
