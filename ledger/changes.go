package ledger

import "github.com/tolchain/corechain/models"

// ChangeKind distinguishes the three things a ledger change can do to an
// account: create/replace it wholesale, update it incrementally, or
// delete it.
type ChangeKind byte

const (
	ChangeKeep   ChangeKind = 0
	ChangeSet    ChangeKind = 1
	ChangeUpdate ChangeKind = 2
	ChangeDelete ChangeKind = 3
)

// Change is one pending modification to a single address.
type Change struct {
	Kind   ChangeKind
	Entry  *Entry       // meaningful when Kind == ChangeSet
	Update *EntryUpdate // meaningful when Kind == ChangeUpdate
}

// Changes is the set of pending per-address modifications produced by a
// single execution step or accumulated across a slot. Composition is
// associative: Changes.Compose models "apply a then b".
type Changes map[models.Address]Change

// NewChanges creates an empty Changes set.
func NewChanges() Changes {
	return make(Changes)
}

// Set records that addr should be created or wholesale replaced by entry.
func (c Changes) Set(addr models.Address, entry *Entry) {
	c[addr] = Change{Kind: ChangeSet, Entry: entry}
}

// Update records an incremental modification to addr, composing with any
// existing pending update so the combined effect is equivalent to
// applying them in order.
func (c Changes) Update(addr models.Address, update *EntryUpdate) {
	existing, ok := c[addr]
	switch {
	case !ok:
		c[addr] = Change{Kind: ChangeUpdate, Update: update}
	case existing.Kind == ChangeSet:
		merged := existing.Entry.Clone()
		update.ApplyTo(merged)
		c[addr] = Change{Kind: ChangeSet, Entry: merged}
	case existing.Kind == ChangeUpdate:
		c[addr] = Change{Kind: ChangeUpdate, Update: existing.Update.Compose(update)}
	default: // ChangeDelete or ChangeKeep: an update after a delete recreates the account
		merged := NewEntry(models.ZeroAmount)
		update.ApplyTo(merged)
		c[addr] = Change{Kind: ChangeSet, Entry: merged}
	}
}

// Delete records that addr should be removed.
func (c Changes) Delete(addr models.Address) {
	c[addr] = Change{Kind: ChangeDelete}
}

// Get looks up the pending change for addr.
func (c Changes) Get(addr models.Address) (Change, bool) {
	ch, ok := c[addr]
	return ch, ok
}

// Merge composes c followed by next into a new Changes set, preserving
// "apply c then next" semantics for every touched address.
func Merge(c, next Changes) Changes {
	out := NewChanges()
	for addr, ch := range c {
		out[addr] = ch
	}
	for addr, nextCh := range next {
		prev, ok := out[addr]
		if !ok {
			out[addr] = nextCh
			continue
		}
		out[addr] = composeChange(prev, nextCh)
	}
	return out
}

func composeChange(prev, next Change) Change {
	switch next.Kind {
	case ChangeDelete:
		return next
	case ChangeSet:
		return next
	case ChangeUpdate:
		switch prev.Kind {
		case ChangeSet:
			merged := prev.Entry.Clone()
			next.Update.ApplyTo(merged)
			return Change{Kind: ChangeSet, Entry: merged}
		case ChangeUpdate:
			return Change{Kind: ChangeUpdate, Update: prev.Update.Compose(next.Update)}
		default:
			merged := NewEntry(models.ZeroAmount)
			next.Update.ApplyTo(merged)
			return Change{Kind: ChangeSet, Entry: merged}
		}
	default:
		return prev
	}
}
