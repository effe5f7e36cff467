package execution

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/tolchain/corechain/models"
)

// Runner is the contract the external bytecode VM must satisfy. bytecode
// is nil for transfer and roll operations, the deployment payload for
// execute_sc, and the target's stored bytecode (if any) for call_sc and
// async messages (see vm.Registry); entryPoint selects the function to
// invoke and param carries its raw argument bytes.
type Runner interface {
	Run(bytecode []byte, entryPoint string, param []byte, ctx *Context, gas uint64) error
}

// Driver runs the operations of a block (or a single read-only call)
// against an ExecutionContext, one call frame per operation, rolling
// back failed frames via snapshot/reset and never letting a single
// operation's failure halt the slot.
type Driver struct {
	log *zap.SugaredLogger
}

// NewDriver creates a Driver that logs failed operations through log. A
// nil log is replaced with a no-op logger.
func NewDriver(log *zap.SugaredLogger) *Driver {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Driver{log: log}
}

// call is the resolved (target, bytecode, entryPoint, param) tuple a
// single operation or async message boils down to before being handed
// to the Runner.
type call struct {
	target     models.Address
	caller     *models.Address
	coins      models.Amount
	bytecode   []byte
	entryPoint string
	param      []byte
}

// resolveOperation maps an operation's declared type onto the (address,
// bytecode, entry point, param) shape the Runner expects.
func resolveOperation(ctx *Context, op models.Operation) (call, error) {
	sender := models.NewUserAddress(op.Sender)
	switch op.Type {
	case models.OpTransfer:
		return call{target: sender, caller: nil, entryPoint: string(models.OpTransfer), param: op.Payload}, nil

	case models.OpRollBuy, models.OpRollSell:
		return call{target: sender, caller: nil, entryPoint: string(op.Type), param: op.Payload}, nil

	case models.OpExecuteSC:
		var p models.ExecuteSCPayload
		if err := json.Unmarshal(op.Payload, &p); err != nil {
			return call{}, fmt.Errorf("execution: decode execute_sc payload: %w", err)
		}
		// target is a placeholder here: RunOperation derives the real,
		// freshly minted SC address via ctx.CreateNewSCAddress before
		// pushing the call frame the constructor handler runs in.
		return call{target: sender, caller: &sender, bytecode: p.Bytecode, entryPoint: "constructor", param: nil}, nil

	case models.OpCallSC:
		var p models.CallSCPayload
		if err := json.Unmarshal(op.Payload, &p); err != nil {
			return call{}, fmt.Errorf("execution: decode call_sc payload: %w", err)
		}
		target, err := models.ParseAddress(p.TargetAddr)
		if err != nil {
			return call{}, fmt.Errorf("execution: call_sc target: %w", err)
		}
		bytecode, _ := ctx.Ledger.GetBytecode(target)
		return call{target: target, caller: &sender, bytecode: bytecode, entryPoint: p.EntryPoint, param: p.Param}, nil

	default:
		return call{}, fmt.Errorf("execution: unknown operation type %q", op.Type)
	}
}

// RunOperation pushes a call frame for op, snapshots, invokes the
// runner, and rolls back on failure, for a single block-declared
// operation.
func (d *Driver) RunOperation(ctx *Context, op models.Operation, runner Runner) {
	sender := models.NewUserAddress(op.Sender)
	c, err := resolveOperation(ctx, op)
	if err != nil {
		d.log.Warnw("operation rejected before execution", "operation", op.ID.String(), "error", err)
		ctx.GenerateEvent(fmt.Sprintf("operation %s rejected: %v", op.ID, err))
		return
	}

	ctx.PushStack(sender, nil, 0)

	target := c.target
	if op.Type == models.OpExecuteSC {
		target = ctx.CreateNewSCAddress()
	}

	if target != sender {
		ctx.PushStack(target, c.caller, op.Fee)
	}
	snap := ctx.Snapshot()

	if err := runner.Run(c.bytecode, c.entryPoint, c.param, ctx, op.MaxGas); err != nil {
		ctx.ResetToSnapshot(snap)
		ctx.GenerateEvent(fmt.Sprintf("operation %s failed: %v", op.ID, err))
		d.log.Debugw("operation failed, rolled back", "operation", op.ID.String(), "error", err)
	}

	if target != sender {
		ctx.PopStack()
	}
	ctx.PopStack()
}

// runAsyncItem executes one drained async message as a synthetic
// operation.
func (d *Driver) runAsyncItem(ctx *Context, item AsyncBatchItem, runner Runner) {
	msg := item.Message
	ctx.PushStack(msg.Target, &msg.Sender, msg.Coins)
	snap := ctx.Snapshot()

	if !msg.Coins.IsZero() {
		if err := ctx.Ledger.TransferCoins(nil, &msg.Target, msg.Coins); err != nil {
			ctx.ResetToSnapshot(snap)
			ctx.GenerateEvent(fmt.Sprintf("async message to %s failed to credit coins: %v", msg.Target, err))
			d.log.Debugw("async message coin credit failed, rolled back", "target", msg.Target.String(), "error", err)
			ctx.PopStack()
			return
		}
	}

	if err := runner.Run(item.Bytecode, msg.EntryPoint, msg.Param, ctx, msg.MaxGas); err != nil {
		ctx.ResetToSnapshot(snap)
		ctx.GenerateEvent(fmt.Sprintf("async message to %s failed: %v", msg.Target, err))
		d.log.Debugw("async message failed, rolled back", "target", msg.Target.String(), "error", err)
	}

	ctx.PopStack()
}

// RunSlot runs a slot against a freshly constructed context: execute
// every block operation in declared order, drain the async batch, then
// settle the slot.
func (d *Driver) RunSlot(ctx *Context, block *models.Block, runner Runner, maxAsyncGas uint64) ExecutionOutput {
	if block != nil {
		for _, op := range block.Operations {
			d.RunOperation(ctx, op, runner)
		}
	}
	for _, item := range ctx.TakeAsyncBatch(maxAsyncGas) {
		d.runAsyncItem(ctx, item, runner)
	}
	return ctx.SettleSlot(d.log)
}

// RunReadOnlyCall executes a single entry point against a read-only
// context (e.g. for an RPC simulation) without draining any async
// messages (SettleSlot still evicts and reimburses expired ones in the
// context's speculative pool), returning the resulting ExecutionOutput and
// the VM's own error, if any.
func (d *Driver) RunReadOnlyCall(ctx *Context, target models.Address, entryPoint string, param []byte, maxGas uint64, runner Runner) (ExecutionOutput, error) {
	bytecode, _ := ctx.Ledger.GetBytecode(target)
	ctx.PushStack(target, nil, 0)
	snap := ctx.Snapshot()

	runErr := runner.Run(bytecode, entryPoint, param, ctx, maxGas)
	if runErr != nil {
		ctx.ResetToSnapshot(snap)
	}
	ctx.PopStack()
	return ctx.SettleSlot(d.log), runErr
}
