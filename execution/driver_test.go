package execution

import (
	"encoding/json"
	"testing"

	"github.com/tolchain/corechain/asyncpool"
	"github.com/tolchain/corechain/ledger"
	"github.com/tolchain/corechain/models"
)

// recordingRunner captures the target address each call landed on, so
// tests can assert which address a handler actually ran against.
type recordingRunner struct {
	targets []models.Address
}

func (r *recordingRunner) Run(bytecode []byte, entryPoint string, param []byte, ctx *Context, gas uint64) error {
	top, ok := ctx.Top()
	if ok {
		r.targets = append(r.targets, top.Address)
	}
	if entryPoint == "constructor" {
		ctx.Ledger.SetBytecode(top.Address, bytecode)
	}
	return nil
}

// TestRunOperationExecuteSCDeploysToFreshAddress checks that an
// OpExecuteSC operation deploys bytecode onto a freshly derived
// smart-contract address rather than onto the sender's own address.
func TestRunOperationExecuteSCDeploysToFreshAddress(t *testing.T) {
	senderPub := []byte("sender-public-key-bytes")
	sender := models.NewUserAddress(senderPub)
	final := fakeFinalLedger{sender: ledger.NewEntry(models.AmountFromRaw(100))}

	ctx := NewActiveSlotContext(models.NewSlot(1, 0), models.HashData([]byte("block")), final, asyncpool.NewPool(10))

	payload, err := json.Marshal(models.ExecuteSCPayload{Bytecode: []byte{0x01, 0x02, 0x03}})
	if err != nil {
		t.Fatal(err)
	}
	op := models.Operation{
		ID:           models.HashData([]byte("op1")),
		Type:         models.OpExecuteSC,
		Sender:       senderPub,
		MaxGas:       1000,
		ExpirePeriod: 100,
		Payload:      payload,
	}

	driver := NewDriver(nil)
	runner := &recordingRunner{}
	driver.RunOperation(ctx, op, runner)

	if len(runner.targets) != 1 {
		t.Fatalf("expected exactly one call frame to run, got %d", len(runner.targets))
	}
	deployedTo := runner.targets[0]
	if deployedTo == sender {
		t.Fatalf("constructor ran against the sender's own address, expected a freshly derived SC address")
	}
	if deployedTo.Kind != models.AddressSC {
		t.Fatalf("expected a smart-contract address, got kind %v", deployedTo.Kind)
	}

	code, ok := ctx.Ledger.GetBytecode(deployedTo)
	if !ok || len(code) != 3 {
		t.Fatalf("expected bytecode deployed to the derived address, got %v (ok=%v)", code, ok)
	}
}
