package execution

import (
	"github.com/tolchain/corechain/asyncpool"
	"github.com/tolchain/corechain/ledger"
	"github.com/tolchain/corechain/models"
)

// StateChanges bundles the two overlays an execution step can produce:
// pending ledger mutations and the resulting async-pool state.
type StateChanges struct {
	Ledger ledger.Changes
	Pool   *asyncpool.Pool
}

// ExecutionOutput is the deterministic result of running one slot (or one
// read-only call) to completion: the state changes it staged and the
// events it generated, stamped with the slot and block identity they
// belong to.
type ExecutionOutput struct {
	Slot    models.Slot
	BlockId *models.BlockId
	Changes StateChanges
	Events  []Event
}
