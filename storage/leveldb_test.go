package storage

import "testing"

func openTestDB(t *testing.T) *LevelDB {
	t.Helper()
	db, err := NewLevelDB(t.TempDir())
	if err != nil {
		t.Fatalf("NewLevelDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSetGetDelete(t *testing.T) {
	db := openTestDB(t)

	if _, err := db.Get([]byte("missing")); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := db.Set([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := db.Get([]byte("k"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "v" {
		t.Fatalf("got %q, want %q", got, "v")
	}

	if err := db.Delete([]byte("k")); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := db.Get([]byte("k")); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestIteratorWalksPrefix(t *testing.T) {
	db := openTestDB(t)
	db.Set([]byte("a:1"), []byte("1"))
	db.Set([]byte("a:2"), []byte("2"))
	db.Set([]byte("b:1"), []byte("3"))

	it := db.NewIterator([]byte("a:"))
	defer it.Release()
	count := 0
	for it.Next() {
		count++
	}
	if err := it.Error(); err != nil {
		t.Fatalf("iterator error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 keys under prefix a:, got %d", count)
	}
}

func TestBatchWriteIsAtomic(t *testing.T) {
	db := openTestDB(t)
	db.Set([]byte("x"), []byte("old"))

	b := db.NewBatch()
	b.Set([]byte("x"), []byte("new"))
	b.Set([]byte("y"), []byte("fresh"))
	if err := b.Write(); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, _ := db.Get([]byte("x"))
	if string(got) != "new" {
		t.Fatalf("got %q, want %q", got, "new")
	}
	got, _ = db.Get([]byte("y"))
	if string(got) != "fresh" {
		t.Fatalf("got %q, want %q", got, "fresh")
	}
}
