package execution

import (
	"encoding/binary"
	"fmt"

	"go.uber.org/zap"

	"github.com/tolchain/corechain/asyncpool"
	"github.com/tolchain/corechain/ledger"
	"github.com/tolchain/corechain/models"
)

// activeMarker and readOnlyMarker distinguish the two execution modes in
// every piece of seed material so a read-only simulation can never
// collide with the slot's real, active-execution randomness or address
// space, matching the reference implementation's 0x00/0x01 convention.
const (
	activeMarker   byte = 0x01
	readOnlyMarker byte = 0x00
)

// ExecutionStackElement is one frame of the call stack: the address
// whose code is running, the coins it was called with, and the set of
// addresses it is currently allowed to write to.
type ExecutionStackElement struct {
	Address        models.Address
	CallerAddress  *models.Address
	CoinsTransferred models.Amount
	OwnedAddresses []models.Address
}

// Owns reports whether this stack frame may write to addr.
func (e ExecutionStackElement) Owns(addr models.Address) bool {
	for _, a := range e.OwnedAddresses {
		if a == addr {
			return true
		}
	}
	return false
}

// Snapshot captures everything about an ExecutionContext that must be
// restored if a call frame fails: the ledger and async pool overlays,
// the call stack, the event log, and the created-address counter. Slot
// and the active block id are deliberately excluded: they describe the
// frame being executed, not state that rolls back with it.
type Snapshot struct {
	ledgerChanges   ledger.Changes
	asyncPool       *asyncpool.Pool
	callStackDepth  int
	events          int
	createdAddrIdx  uint64
}

// Event is a log entry emitted by executed code, stamped with enough
// context for external consumers to attribute and order it.
type Event struct {
	Slot            models.Slot
	BlockId         *models.BlockId
	CallStack       []models.Address
	ReadOnly        bool
	Index           uint64
	OriginOperation *models.Hash
	Data            string
}

// Context is the speculative execution substrate for a single slot (or a
// single read-only call): the overlays bytecode handlers observe and
// mutate, the call stack, the deterministic RNG, and the event log.
type Context struct {
	Slot            models.Slot
	BlockId         *models.BlockId
	ReadOnly        bool
	OriginOperation *models.Hash

	Ledger    *SpeculativeLedger
	AsyncPool *SpeculativeAsyncPool

	callStack      []ExecutionStackElement
	events         []Event
	createdAddrIdx uint64
	rng            *rngState
}

// NewActiveSlotContext builds a Context for executing the operations of
// a real, block-producing slot.
func NewActiveSlotContext(slot models.Slot, blockId models.BlockId, final FinalLedgerReader, finalPool *asyncpool.Pool) *Context {
	id := blockId
	return &Context{
		Slot:      slot,
		BlockId:   &id,
		ReadOnly:  false,
		Ledger:    NewSpeculativeLedger(final),
		AsyncPool: NewSpeculativeAsyncPool(finalPool),
		rng:       newRNG(seedMaterial(slot, activeMarker, &id)),
	}
}

// NewReadOnlyContext builds a Context for a read-only simulation (e.g. an
// RPC query) that must never be confused, by seed or by address space,
// with active-slot execution.
func NewReadOnlyContext(slot models.Slot, final FinalLedgerReader, finalPool *asyncpool.Pool) *Context {
	return &Context{
		Slot:      slot,
		ReadOnly:  true,
		Ledger:    NewSpeculativeLedger(final),
		AsyncPool: NewSpeculativeAsyncPool(finalPool),
		rng:       newRNG(seedMaterial(slot, readOnlyMarker, nil)),
	}
}

func seedMaterial(slot models.Slot, marker byte, blockId *models.BlockId) [32]byte {
	material := append([]byte{}, slot.ToBytesKey()...)
	material = append(material, marker)
	if blockId != nil {
		material = append(material, blockId[:]...)
	}
	return [32]byte(models.HashData(material))
}

// PushStack enters a new call frame for addr, recording the caller and
// the coins it was invoked with. The new frame initially owns only addr
// itself.
func (c *Context) PushStack(addr models.Address, caller *models.Address, coins models.Amount) {
	c.callStack = append(c.callStack, ExecutionStackElement{
		Address:          addr,
		CallerAddress:    caller,
		CoinsTransferred: coins,
		OwnedAddresses:   []models.Address{addr},
	})
}

// PopStack exits the current call frame.
func (c *Context) PopStack() {
	if len(c.callStack) == 0 {
		return
	}
	c.callStack = c.callStack[:len(c.callStack)-1]
}

// Top returns the current call frame, or false if the stack is empty.
func (c *Context) Top() (ExecutionStackElement, bool) {
	if len(c.callStack) == 0 {
		return ExecutionStackElement{}, false
	}
	return c.callStack[len(c.callStack)-1], true
}

// CallStackAddresses returns the address at every frame, outermost first,
// for event stamping.
func (c *Context) CallStackAddresses() []models.Address {
	out := make([]models.Address, len(c.callStack))
	for i, f := range c.callStack {
		out[i] = f.Address
	}
	return out
}

// CanWrite reports whether the current call frame may write to addr.
func (c *Context) CanWrite(addr models.Address) bool {
	top, ok := c.Top()
	if !ok {
		return false
	}
	return top.Owns(addr)
}

// CreateNewSCAddress derives a fresh, collision-free-within-this-context
// smart-contract address, deterministic in the slot/mode/counter triple
// so replaying the same slot always creates the same addresses in the
// same order.
func (c *Context) CreateNewSCAddress() models.Address {
	marker := activeMarker
	if c.ReadOnly {
		marker = readOnlyMarker
	}
	var idxBuf [8]byte
	binary.BigEndian.PutUint64(idxBuf[:], c.createdAddrIdx)
	c.createdAddrIdx++

	material := append([]byte{}, c.Slot.ToBytesKey()...)
	material = append(material, marker)
	material = append(material, idxBuf[:]...)
	addr := models.NewSCAddress(models.HashData(material))

	if top, ok := c.Top(); ok {
		top.OwnedAddresses = append(top.OwnedAddresses, addr)
		c.callStack[len(c.callStack)-1] = top
	}
	return addr
}

// TransferParallelCoins moves coins between addresses within the
// speculative ledger, enforcing that the caller may only debit an
// address it owns (a nil from/to bypasses ownership, used for minting
// and reimbursement).
func (c *Context) TransferParallelCoins(from, to *models.Address, amount models.Amount, checkOwnership bool) error {
	if checkOwnership && from != nil && !c.CanWrite(*from) {
		return fmt.Errorf("execution: no write access to %s", *from)
	}
	return c.Ledger.TransferCoins(from, to, amount)
}

// PushNewMessage schedules an async message, reimbursing its sender if
// doing so evicts a lower-priority message already in the pool.
func (c *Context) PushNewMessage(msg *asyncpool.Message) error {
	evicted, didEvict := c.AsyncPool.Push(msg)
	if didEvict {
		if err := c.Ledger.TransferCoins(nil, &evicted.Sender, evicted.Coins); err != nil {
			return fmt.Errorf("execution: reimburse evicted message sender: %w", err)
		}
	}
	return nil
}

// GenerateEvent appends data to the event log, stamped with the current
// slot, block, call stack, and mode.
func (c *Context) GenerateEvent(data string) {
	idx := uint64(len(c.events))
	c.events = append(c.events, Event{
		Slot:            c.Slot,
		BlockId:         c.BlockId,
		CallStack:       c.CallStackAddresses(),
		ReadOnly:        c.ReadOnly,
		Index:           idx,
		OriginOperation: c.OriginOperation,
		Data:            data,
	})
}

// Events returns every event generated so far.
func (c *Context) Events() []Event {
	return c.events
}

// Snapshot captures the rollback-relevant parts of the context: ledger
// and pool overlays, call stack depth, event count, and the
// address-creation counter.
func (c *Context) Snapshot() Snapshot {
	return Snapshot{
		ledgerChanges:  c.Ledger.Snapshot(),
		asyncPool:      c.AsyncPool.Snapshot(),
		callStackDepth: len(c.callStack),
		events:         len(c.events),
		createdAddrIdx: c.createdAddrIdx,
	}
}

// ResetToSnapshot discards every effect of the current call frame: ledger
// writes, async pushes, extra stack frames, generated events, and
// address-creation counter advances, restoring the context to how it
// looked when snap was captured. This is the only rollback mechanism for
// a failing re-entrant call.
func (c *Context) ResetToSnapshot(snap Snapshot) {
	c.Ledger.ResetToSnapshot(snap.ledgerChanges)
	c.AsyncPool.ResetToSnapshot(snap.asyncPool)
	if snap.callStackDepth < len(c.callStack) {
		c.callStack = c.callStack[:snap.callStackDepth]
	}
	if snap.events < len(c.events) {
		c.events = c.events[:snap.events]
	}
	c.createdAddrIdx = snap.createdAddrIdx
}

// AsyncBatchItem pairs a message taken from the async pool with the
// bytecode (if any) deployed at its destination, ready for the execution
// driver to invoke as a synthetic operation.
type AsyncBatchItem struct {
	Message     *asyncpool.Message
	Bytecode    []byte
	HasBytecode bool
}

// TakeAsyncBatch drains messages whose validity window covers the
// context's slot, highest priority first, until admitting another
// message would exceed maxGas. Messages that fit are removed from the
// pool; messages that don't are pushed back so a later slot can still
// deliver them. Messages already expired at the slot are evicted first and
// their coins reimbursed to their sender (a failed reimbursement burns the
// coins, as in SettleSlot).
func (c *Context) TakeAsyncBatch(maxGas uint64) []AsyncBatchItem {
	for _, expired := range c.AsyncPool.EvictExpired(c.Slot) {
		_ = c.Ledger.TransferCoins(nil, &expired.Sender, expired.Coins)
	}
	ready := c.AsyncPool.TakeReady(c.Slot)
	batch := make([]AsyncBatchItem, 0, len(ready))
	var cumulative uint64
	var requeue []*asyncpool.Message
	for _, m := range ready {
		if cumulative+m.MaxGas > maxGas {
			requeue = append(requeue, m)
			continue
		}
		cumulative += m.MaxGas
		bytecode, ok := c.Ledger.GetBytecode(m.Target)
		batch = append(batch, AsyncBatchItem{Message: m, Bytecode: bytecode, HasBytecode: ok})
	}
	for _, m := range requeue {
		c.AsyncPool.Push(m)
	}
	return batch
}

// SettleSlot finalizes per-slot accounting: expired messages are evicted
// and their coins reimbursed to their sender (a reimbursement failure is
// logged and the funds are effectively burned, never fatal to the slot),
// then the accumulated ledger and async-pool overlays are handed off as
// an ExecutionOutput. opt_block_id and the event log are reset; the
// ledger and pool overlays themselves carry forward until the caller
// explicitly commits the output to final state.
func (c *Context) SettleSlot(log *zap.SugaredLogger) ExecutionOutput {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	for _, expired := range c.AsyncPool.EvictExpired(c.Slot) {
		if err := c.Ledger.TransferCoins(nil, &expired.Sender, expired.Coins); err != nil {
			log.Warnw("reimburse expired async message failed, coins burned",
				"sender", expired.Sender.String(), "coins", expired.Coins.String(), "error", err)
		}
	}

	output := ExecutionOutput{
		Slot:    c.Slot,
		BlockId: c.BlockId,
		Changes: StateChanges{
			Ledger: c.Ledger.Take(),
			Pool:   c.AsyncPool.Take(),
		},
		Events: c.events,
	}
	c.BlockId = nil
	c.events = nil
	return output
}
