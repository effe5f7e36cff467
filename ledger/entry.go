package ledger

import (
	"sort"

	"github.com/tolchain/corechain/models"
)

// Datastore is a per-account key-value store, iterated in ascending key
// order for deterministic serialization and hashing.
type Datastore struct {
	entries map[models.Hash][]byte
	keys    []models.Hash // kept sorted
}

// NewDatastore creates an empty Datastore.
func NewDatastore() *Datastore {
	return &Datastore{entries: make(map[models.Hash][]byte)}
}

// Get returns the value at key and whether it exists.
func (d *Datastore) Get(key models.Hash) ([]byte, bool) {
	v, ok := d.entries[key]
	return v, ok
}

// Has reports whether key exists in the datastore.
func (d *Datastore) Has(key models.Hash) bool {
	_, ok := d.entries[key]
	return ok
}

// Set inserts or overwrites the value at key.
func (d *Datastore) Set(key models.Hash, value []byte) {
	if _, exists := d.entries[key]; !exists {
		d.insertKey(key)
	}
	d.entries[key] = value
}

// Delete removes key from the datastore, if present.
func (d *Datastore) Delete(key models.Hash) {
	if _, exists := d.entries[key]; !exists {
		return
	}
	delete(d.entries, key)
	idx := sort.Search(len(d.keys), func(i int) bool { return !d.keys[i].Less(key) })
	if idx < len(d.keys) && d.keys[idx] == key {
		d.keys = append(d.keys[:idx], d.keys[idx+1:]...)
	}
}

// Len returns the number of entries.
func (d *Datastore) Len() int {
	return len(d.entries)
}

// Keys returns the keys in ascending order.
func (d *Datastore) Keys() []models.Hash {
	out := make([]models.Hash, len(d.keys))
	copy(out, d.keys)
	return out
}

// Clone returns a deep copy of the datastore.
func (d *Datastore) Clone() *Datastore {
	clone := NewDatastore()
	for _, k := range d.keys {
		v := d.entries[k]
		vc := make([]byte, len(v))
		copy(vc, v)
		clone.Set(k, vc)
	}
	return clone
}

func (d *Datastore) insertKey(key models.Hash) {
	idx := sort.Search(len(d.keys), func(i int) bool { return !d.keys[i].Less(key) })
	d.keys = append(d.keys, models.Hash{})
	copy(d.keys[idx+1:], d.keys[idx:])
	d.keys[idx] = key
}

// Entry is a persisted account: a coin balance, optional contract
// bytecode, and a datastore of contract-managed key-value pairs.
type Entry struct {
	ParallelBalance models.Amount
	Bytecode        []byte
	Datastore       *Datastore
}

// NewEntry creates an Entry with an empty datastore.
func NewEntry(balance models.Amount) *Entry {
	return &Entry{ParallelBalance: balance, Datastore: NewDatastore()}
}

// Clone returns a deep copy of the entry.
func (e *Entry) Clone() *Entry {
	bc := make([]byte, len(e.Bytecode))
	copy(bc, e.Bytecode)
	return &Entry{
		ParallelBalance: e.ParallelBalance,
		Bytecode:        bc,
		Datastore:       e.Datastore.Clone(),
	}
}

// ApplyTo composes the receiver update onto target, implementing
// Applicable[Entry] the way the reference Applicable<LedgerEntryUpdate>
// for LedgerEntry impl does: SetOrKeep fields are applied independently,
// and the datastore composes per-key SetOrDelete entries.
func (u *EntryUpdate) ApplyTo(target *Entry) {
	u.ParallelBalance.ApplyTo(&target.ParallelBalance)
	u.Bytecode.ApplyTo(&target.Bytecode)
	for key, change := range u.Datastore {
		switch change.Kind {
		case SetEntry:
			target.Datastore.Set(key, change.Value)
		case DeleteEntry:
			target.Datastore.Delete(key)
		}
	}
}

// EntryUpdate is a pending, composable modification to an Entry.
type EntryUpdate struct {
	ParallelBalance SetOrKeep[models.Amount]
	Bytecode        SetOrKeep[[]byte]
	Datastore       map[models.Hash]SetOrDelete
}

// NewEntryUpdate creates an EntryUpdate with no pending changes.
func NewEntryUpdate() *EntryUpdate {
	return &EntryUpdate{Datastore: make(map[models.Hash]SetOrDelete)}
}

// Compose returns the update equivalent to applying u then next, in one
// step: apply(apply(entry, u), next) == apply(entry, u.Compose(next)).
func (u *EntryUpdate) Compose(next *EntryUpdate) *EntryUpdate {
	out := NewEntryUpdate()
	out.ParallelBalance = u.ParallelBalance.Compose(next.ParallelBalance)
	out.Bytecode = u.Bytecode.Compose(next.Bytecode)
	for k, v := range u.Datastore {
		out.Datastore[k] = v
	}
	for k, v := range next.Datastore {
		if existing, ok := out.Datastore[k]; ok {
			out.Datastore[k] = existing.Compose(v)
		} else {
			out.Datastore[k] = v
		}
	}
	return out
}
