// Package finalstate holds the node's committed view of the world: the
// ledger entries and async-pool messages that have survived finalization,
// backed by storage.DB and guarded by a single RWMutex.
package finalstate

import (
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/tolchain/corechain/asyncpool"
	"github.com/tolchain/corechain/execution"
	"github.com/tolchain/corechain/ledger"
	"github.com/tolchain/corechain/metrics"
	"github.com/tolchain/corechain/models"
	"github.com/tolchain/corechain/storage"
)

const (
	keyLedgerPrefix = "ledger:"
	keyCursor       = "meta:cursor"
	keyPool         = "meta:pool"
)

var _ execution.FinalLedgerReader = (*FinalState)(nil)

// FinalState is the single committed copy of the ledger and the async
// message pool. Reads (RPC queries, read-only execution contexts) take
// the read lock and never block each other; the finalizer applying a
// newly finalized slot's ExecutionOutput takes the write lock once per
// slot, a many-readers-one-writer model.
type FinalState struct {
	mu  sync.RWMutex
	db  storage.DB
	log *zap.SugaredLogger

	entries map[models.Address]*ledger.Entry
	pool    *asyncpool.Pool
	cursor  models.Slot

	snapshotEvery uint64
	sinceSnapshot uint64

	// Metrics is optional; set it after construction to publish pool and
	// ledger gauges. A nil Metrics simply disables publishing.
	Metrics *metrics.Collectors
}

// poolSnapshot is the JSON-friendly shape persisted for the async pool;
// unlike ledger entries, whose on-disk encoding must stay bit-exact, the
// pool's snapshot has no external compatibility requirement, so it uses
// encoding/json directly.
type poolSnapshot struct {
	Capacity int                `json:"capacity"`
	Messages []*asyncpool.Message `json:"messages"`
}

// New creates an empty FinalState backed by db. poolCapacity bounds the
// async pool; snapshotEvery is how many finalized slots pass between
// full persistence flushes (0 disables periodic flushing: every slot is
// flushed immediately).
func New(db storage.DB, log *zap.SugaredLogger, poolCapacity int, snapshotEvery uint64) *FinalState {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &FinalState{
		db:            db,
		log:           log,
		entries:       make(map[models.Address]*ledger.Entry),
		pool:          asyncpool.NewPool(poolCapacity),
		snapshotEvery: snapshotEvery,
	}
}

// Load restores FinalState from db: every "ledger:"-prefixed key, the
// persisted pool snapshot, and the slot cursor. A fresh database (no
// cursor key yet) leaves the state at its zero value, ready for genesis.
func Load(db storage.DB, log *zap.SugaredLogger, poolCapacity int, snapshotEvery uint64) (*FinalState, error) {
	fs := New(db, log, poolCapacity, snapshotEvery)

	it := db.NewIterator([]byte(keyLedgerPrefix))
	defer it.Release()
	for it.Next() {
		addrStr := string(it.Key()[len(keyLedgerPrefix):])
		addr, err := models.ParseAddress(addrStr)
		if err != nil {
			return nil, fmt.Errorf("finalstate: load ledger key %q: %w", addrStr, err)
		}
		entry, err := ledger.DecodeEntry(it.Value())
		if err != nil {
			return nil, fmt.Errorf("finalstate: decode entry for %s: %w", addr, err)
		}
		fs.entries[addr] = entry
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("finalstate: ledger scan: %w", err)
	}

	if raw, err := db.Get([]byte(keyPool)); err == nil {
		var snap poolSnapshot
		if err := json.Unmarshal(raw, &snap); err != nil {
			return nil, fmt.Errorf("finalstate: decode pool snapshot: %w", err)
		}
		pool := asyncpool.NewPool(snap.Capacity)
		for _, m := range snap.Messages {
			pool.Push(m)
		}
		fs.pool = pool
	} else if err != storage.ErrNotFound {
		return nil, fmt.Errorf("finalstate: load pool snapshot: %w", err)
	}

	if raw, err := db.Get([]byte(keyCursor)); err == nil {
		if len(raw) != 9 {
			return nil, fmt.Errorf("finalstate: corrupt cursor key")
		}
		period := uint64(0)
		for i := 0; i < 8; i++ {
			period = period<<8 | uint64(raw[i])
		}
		fs.cursor = models.NewSlot(period, raw[8])
	} else if err != storage.ErrNotFound {
		return nil, fmt.Errorf("finalstate: load cursor: %w", err)
	}

	fs.log.Infow("final state loaded", "entries", len(fs.entries), "pool_len", fs.pool.Len(), "cursor", fs.cursor.String())
	return fs, nil
}

// GetEntry implements execution.FinalLedgerReader: a speculative ledger
// reads through to this whenever its overlay has no pending change for
// an address.
func (fs *FinalState) GetEntry(addr models.Address) (*ledger.Entry, bool) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	e, ok := fs.entries[addr]
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

// Pool returns a clone of the current async pool, safe for the caller to
// hand to a fresh SpeculativeAsyncPool without racing concurrent
// finalization.
func (fs *FinalState) Pool() *asyncpool.Pool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.pool.Clone()
}

// Cursor returns the slot of the most recently applied ExecutionOutput.
func (fs *FinalState) Cursor() models.Slot {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.cursor
}

// ApplyOutput commits a finalized slot's ExecutionOutput: the ledger
// changes are folded into the in-memory entries, the pool is replaced by
// the context's post-settlement pool, the cursor advances, and (per
// snapshotEvery) the result is flushed to db. This is the single write
// path into FinalState, invoked exactly once per finalized slot in slot
// order (DESIGN.md Open Question decision 3).
func (fs *FinalState) ApplyOutput(out execution.ExecutionOutput) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	for addr, change := range out.Changes.Ledger {
		switch change.Kind {
		case ledger.ChangeDelete:
			delete(fs.entries, addr)
		case ledger.ChangeSet:
			fs.entries[addr] = change.Entry.Clone()
		case ledger.ChangeUpdate:
			entry, ok := fs.entries[addr]
			if !ok {
				entry = ledger.NewEntry(models.ZeroAmount)
			} else {
				entry = entry.Clone()
			}
			change.Update.ApplyTo(entry)
			fs.entries[addr] = entry
		}
	}

	if out.Changes.Pool != nil {
		fs.pool = out.Changes.Pool.Clone()
	}
	fs.cursor = out.Slot
	fs.sinceSnapshot++

	if fs.Metrics != nil {
		fs.Metrics.AsyncPoolLen.Set(float64(fs.pool.Len()))
	}

	if fs.snapshotEvery == 0 || fs.sinceSnapshot >= fs.snapshotEvery {
		if err := fs.flush(); err != nil {
			return fmt.Errorf("finalstate: flush after slot %s: %w", out.Slot, err)
		}
		fs.sinceSnapshot = 0
	}
	return nil
}

// flush writes the entire ledger, pool, and cursor to db in one batch.
// Must be called with mu held.
func (fs *FinalState) flush() error {
	batch := fs.db.NewBatch()

	for addr, entry := range fs.entries {
		batch.Set([]byte(keyLedgerPrefix+addr.String()), ledger.EncodeEntry(entry))
	}

	poolData, err := json.Marshal(poolSnapshot{Capacity: fs.pool.Capacity(), Messages: fs.pool.All()})
	if err != nil {
		return fmt.Errorf("encode pool snapshot: %w", err)
	}
	batch.Set([]byte(keyPool), poolData)

	key := fs.cursor.ToBytesKey()
	batch.Set([]byte(keyCursor), key)

	if err := batch.Write(); err != nil {
		return fmt.Errorf("write batch: %w", err)
	}
	fs.log.Debugw("final state flushed", "cursor", fs.cursor.String(), "entries", len(fs.entries))
	return nil
}
