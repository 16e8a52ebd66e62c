package storage

import (
	"bytes"
	"testing"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

func TestPersistenceStore_BasicOperations(t *testing.T) {
	ps, err := NewMemoryPersistenceStore()
	if err != nil {
		t.Fatalf("Failed to create memory store: %v", err)
	}
	defer ps.Close()

	key := []byte("test-key")
	value := []byte("test-value")

	if err := ps.Put(key, value); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, found, err := ps.Get(key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found {
		t.Fatal("Expected key to be found")
	}
	if string(got) != string(value) {
		t.Errorf("Get returned %q, want %q", got, value)
	}

	_, found, err = ps.Get([]byte("non-existent"))
	if err != nil {
		t.Fatalf("Get non-existent failed: %v", err)
	}
	if found {
		t.Error("Expected key not to be found")
	}

	if err := ps.Delete(key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if ok, _ := ps.Has(key); ok {
		t.Error("Expected key to be deleted")
	}
}

func TestPersistenceStore_WriteBatch(t *testing.T) {
	ps, err := NewMemoryPersistenceStore()
	if err != nil {
		t.Fatalf("Failed to create memory store: %v", err)
	}
	defer ps.Close()

	if err := ps.Put([]byte("stale"), []byte("x")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	err = ps.WriteBatch(func(b *leveldb.Batch) {
		b.Put([]byte("k1"), []byte("v1"))
		b.Put([]byte("k2"), []byte("v2"))
		b.Delete([]byte("stale"))
	})
	if err != nil {
		t.Fatalf("WriteBatch failed: %v", err)
	}

	for _, k := range []string{"k1", "k2"} {
		if ok, _ := ps.Has([]byte(k)); !ok {
			t.Errorf("Expected %s to be written", k)
		}
	}
	if ok, _ := ps.Has([]byte("stale")); ok {
		t.Error("Expected stale to be deleted by the batch")
	}
}

func TestPersistenceStore_GetWithPrefix(t *testing.T) {
	ps, err := NewMemoryPersistenceStore()
	if err != nil {
		t.Fatalf("Failed to create memory store: %v", err)
	}
	defer ps.Close()

	prefix := []byte("prefix_")
	keys := [][]byte{
		[]byte("prefix_a"),
		[]byte("prefix_b"),
		[]byte("prefix_c"),
		[]byte("other_key"),
	}
	for _, key := range keys {
		if err := ps.Put(key, []byte("value-"+string(key))); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	results, err := ps.GetWithPrefix(prefix)
	if err != nil {
		t.Fatalf("GetWithPrefix failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}
	for i, kv := range results {
		if !bytes.HasPrefix(kv[0], prefix) {
			t.Errorf("Key %q does not have prefix %q", kv[0], prefix)
		}
		if i > 0 && bytes.Compare(results[i-1][0], kv[0]) >= 0 {
			t.Errorf("Keys out of order: %q before %q", results[i-1][0], kv[0])
		}
	}
}

func TestPersistenceStore_ScanStopsEarly(t *testing.T) {
	ps, err := NewMemoryPersistenceStore()
	if err != nil {
		t.Fatalf("Failed to create memory store: %v", err)
	}
	defer ps.Close()

	for _, k := range []string{"a1", "a2", "a3", "a4", "b1"} {
		if err := ps.Put([]byte(k), nil); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	var seen []string
	err = ps.Scan(&util.Range{Start: []byte("a2"), Limit: []byte("b")}, func(key, _ []byte) bool {
		seen = append(seen, string(key))
		return len(seen) < 2
	})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(seen) != 2 || seen[0] != "a2" || seen[1] != "a3" {
		t.Errorf("Scan returned %v, want [a2 a3]", seen)
	}
}
