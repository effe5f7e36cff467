// Package execution implements the speculative execution substrate: a
// per-slot overlay over the final ledger and async pool, and the
// execution context that bytecode handlers observe and mutate while a
// slot is being processed.
package execution

import (
	"fmt"

	"github.com/tolchain/corechain/ledger"
	"github.com/tolchain/corechain/models"
)

// FinalLedgerReader is the read-only view onto committed account state
// that the speculative ledger falls through to on a miss.
type FinalLedgerReader interface {
	GetEntry(addr models.Address) (*ledger.Entry, bool)
}

// SpeculativeLedger overlays pending ledger.Changes on top of a final,
// persisted ledger. Reads fall through to the final state on a miss;
// writes accumulate in the overlay and never touch the final state
// directly, so a failed call can be rolled back by discarding the
// overlay's tail (see Snapshot/ResetToSnapshot).
type SpeculativeLedger struct {
	final   FinalLedgerReader
	changes ledger.Changes
}

// NewSpeculativeLedger creates an overlay backed by final.
func NewSpeculativeLedger(final FinalLedgerReader) *SpeculativeLedger {
	return &SpeculativeLedger{final: final, changes: ledger.NewChanges()}
}

// lookup resolves an address through the overlay first, falling back to
// the final ledger. Returns nil if the address has been deleted or never
// existed.
func (s *SpeculativeLedger) lookup(addr models.Address) *ledger.Entry {
	if change, ok := s.changes.Get(addr); ok {
		switch change.Kind {
		case ledger.ChangeDelete:
			return nil
		case ledger.ChangeSet:
			return change.Entry
		case ledger.ChangeUpdate:
			base := s.finalOrEmpty(addr)
			change.Update.ApplyTo(base)
			return base
		}
	}
	if e, ok := s.final.GetEntry(addr); ok {
		return e
	}
	return nil
}

func (s *SpeculativeLedger) finalOrEmpty(addr models.Address) *ledger.Entry {
	if e, ok := s.final.GetEntry(addr); ok {
		return e.Clone()
	}
	return ledger.NewEntry(models.ZeroAmount)
}

// GetBalance returns the address's parallel coin balance, or zero if the
// address does not exist.
func (s *SpeculativeLedger) GetBalance(addr models.Address) models.Amount {
	e := s.lookup(addr)
	if e == nil {
		return models.ZeroAmount
	}
	return e.ParallelBalance
}

// GetBytecode returns the address's deployed bytecode, if any.
func (s *SpeculativeLedger) GetBytecode(addr models.Address) ([]byte, bool) {
	e := s.lookup(addr)
	if e == nil {
		return nil, false
	}
	return e.Bytecode, e.Bytecode != nil
}

// GetDataEntry reads a single datastore key from addr.
func (s *SpeculativeLedger) GetDataEntry(addr models.Address, key models.Hash) ([]byte, bool) {
	e := s.lookup(addr)
	if e == nil {
		return nil, false
	}
	return e.Datastore.Get(key)
}

// HasDataEntry reports whether addr has key set.
func (s *SpeculativeLedger) HasDataEntry(addr models.Address, key models.Hash) bool {
	e := s.lookup(addr)
	return e != nil && e.Datastore.Has(key)
}

// Exists reports whether addr has any ledger presence at all.
func (s *SpeculativeLedger) Exists(addr models.Address) bool {
	return s.lookup(addr) != nil
}

// SetBytecode records a pending bytecode update for addr, creating the
// account if it does not yet exist.
func (s *SpeculativeLedger) SetBytecode(addr models.Address, code []byte) {
	u := ledger.NewEntryUpdate()
	u.Bytecode = ledger.SetTo(append([]byte(nil), code...))
	s.changes.Update(addr, u)
}

// SetDataEntry records a pending datastore write for addr.
func (s *SpeculativeLedger) SetDataEntry(addr models.Address, key models.Hash, value []byte) {
	u := ledger.NewEntryUpdate()
	u.Datastore[key] = ledger.SetOrDelete{Kind: ledger.SetEntry, Value: append([]byte(nil), value...)}
	s.changes.Update(addr, u)
}

// DeleteDataEntry records a pending datastore deletion for addr.
func (s *SpeculativeLedger) DeleteDataEntry(addr models.Address, key models.Hash) {
	u := ledger.NewEntryUpdate()
	u.Datastore[key] = ledger.SetOrDelete{Kind: ledger.DeleteEntry}
	s.changes.Update(addr, u)
}

// CreateAccount materializes a brand-new account with the given initial
// balance, recorded as a pending Set change.
func (s *SpeculativeLedger) CreateAccount(addr models.Address, balance models.Amount) {
	s.changes.Set(addr, ledger.NewEntry(balance))
}

// TransferCoins atomically moves amount from one address to another.
// A nil from/to means "mint"/"burn" respectively (used for genesis
// allocation and coin destruction). Returns an error without mutating
// anything if the sender's balance is insufficient.
func (s *SpeculativeLedger) TransferCoins(from, to *models.Address, amount models.Amount) error {
	var fromBal, toBal models.Amount
	if from != nil {
		bal := s.GetBalance(*from)
		newBal, ok := bal.CheckedSub(amount)
		if !ok {
			return fmt.Errorf("execution: insufficient balance: have %s, need %s", bal, amount)
		}
		fromBal = newBal
	}
	if to != nil {
		bal := s.GetBalance(*to)
		newBal, ok := bal.CheckedAdd(amount)
		if !ok {
			return fmt.Errorf("execution: balance overflow crediting %s", *to)
		}
		toBal = newBal
	}
	if from != nil && to != nil && *from == *to {
		return nil
	}

	if from != nil {
		u := ledger.NewEntryUpdate()
		u.ParallelBalance = ledger.SetTo(fromBal)
		s.changes.Update(*from, u)
	}
	if to != nil {
		if !s.Exists(*to) {
			s.CreateAccount(*to, toBal)
		} else {
			u := ledger.NewEntryUpdate()
			u.ParallelBalance = ledger.SetTo(toBal)
			s.changes.Update(*to, u)
		}
	}
	return nil
}

// Snapshot captures the overlay's current change set for later rollback.
// Cloning the map is cheap relative to the cost of re-running a call.
func (s *SpeculativeLedger) Snapshot() ledger.Changes {
	clone := ledger.NewChanges()
	for addr, ch := range s.changes {
		clone[addr] = ch
	}
	return clone
}

// ResetToSnapshot discards any changes made since snap was captured.
func (s *SpeculativeLedger) ResetToSnapshot(snap ledger.Changes) {
	s.changes = snap
}

// Take returns the accumulated changes and resets the overlay to empty,
// for handing off to the final-state committer at the end of a slot.
func (s *SpeculativeLedger) Take() ledger.Changes {
	out := s.changes
	s.changes = ledger.NewChanges()
	return out
}
