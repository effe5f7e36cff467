package ledger

import (
	"testing"

	"github.com/tolchain/corechain/models"
)

// TestEntryUpdateComposeAssociative checks that applying two updates in
// sequence equals applying their composition once.
func TestEntryUpdateComposeAssociative(t *testing.T) {
	key := models.HashData([]byte("k"))

	base := NewEntry(mustAmount(t, "10"))

	u1 := NewEntryUpdate()
	u1.ParallelBalance = SetTo(mustAmount(t, "20"))
	u1.Datastore[key] = SetOrDelete{Kind: SetEntry, Value: []byte("v1")}

	u2 := NewEntryUpdate()
	u2.Bytecode = SetTo([]byte("code"))
	u2.Datastore[key] = SetOrDelete{Kind: DeleteEntry}

	sequential := base.Clone()
	u1.ApplyTo(sequential)
	u2.ApplyTo(sequential)

	composed := base.Clone()
	u1.Compose(u2).ApplyTo(composed)

	if sequential.ParallelBalance.Raw() != composed.ParallelBalance.Raw() {
		t.Errorf("balance mismatch: sequential %v composed %v", sequential.ParallelBalance, composed.ParallelBalance)
	}
	if string(sequential.Bytecode) != string(composed.Bytecode) {
		t.Error("bytecode mismatch between sequential and composed application")
	}
	if sequential.Datastore.Has(key) != composed.Datastore.Has(key) {
		t.Error("datastore key presence mismatch between sequential and composed application")
	}
}

// TestDatastoreOrderedIteration ensures keys come back in ascending order
// regardless of insertion order.
func TestDatastoreOrderedIteration(t *testing.T) {
	d := NewDatastore()
	a := models.HashData([]byte("a"))
	b := models.HashData([]byte("b"))
	c := models.HashData([]byte("c"))
	d.Set(c, []byte("3"))
	d.Set(a, []byte("1"))
	d.Set(b, []byte("2"))

	keys := d.Keys()
	for i := 1; i < len(keys); i++ {
		if !keys[i-1].Less(keys[i]) {
			t.Fatalf("keys not strictly ascending at index %d", i)
		}
	}
}

func mustAmount(t *testing.T, s string) models.Amount {
	t.Helper()
	a, err := models.ParseAmount(s)
	if err != nil {
		t.Fatalf("ParseAmount(%q): %v", s, err)
	}
	return a
}
