package storage

import (
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	leveldbstorage "github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// PersistenceStore wraps LevelDB for raw key-value persistence.
// Thread-safe: LevelDB handles its own synchronization.
type PersistenceStore struct {
	db *leveldb.DB
}

// NewPersistenceStore opens or creates a LevelDB database at the given path.
// If path is empty, uses in-memory storage.
func NewPersistenceStore(path string) (*PersistenceStore, error) {
	var db *leveldb.DB
	var err error

	if path == "" {
		db, err = leveldb.Open(leveldbstorage.NewMemStorage(), nil)
	} else {
		db, err = leveldb.OpenFile(path, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", path, err)
	}
	return &PersistenceStore{db: db}, nil
}

// NewMemoryPersistenceStore creates an in-memory PersistenceStore for testing.
func NewMemoryPersistenceStore() (*PersistenceStore, error) {
	return NewPersistenceStore("")
}

// Get retrieves a value by key. Returns (nil, false, nil) if not found.
func (ps *PersistenceStore) Get(key []byte) ([]byte, bool, error) {
	data, err := ps.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("Get %x: %w", key, err)
	}
	return data, true, nil
}

func (ps *PersistenceStore) Has(key []byte) (bool, error) {
	return ps.db.Has(key, nil)
}

func (ps *PersistenceStore) Put(key []byte, value []byte) error {
	return ps.db.Put(key, value, nil)
}

func (ps *PersistenceStore) Delete(key []byte) error {
	return ps.db.Delete(key, nil)
}

// WriteBatch applies every write staged by fill atomically.
func (ps *PersistenceStore) WriteBatch(fill func(b *leveldb.Batch)) error {
	batch := new(leveldb.Batch)
	fill(batch)
	return ps.db.Write(batch, nil)
}

// GetWithPrefix returns all key-value pairs with the given prefix, in key order.
func (ps *PersistenceStore) GetWithPrefix(prefix []byte) ([][2][]byte, error) {
	return ps.GetRange(util.BytesPrefix(prefix))
}

// GetRange returns the key-value pairs in [r.Start, r.Limit), in key order.
// fn may stop the scan early by returning false.
func (ps *PersistenceStore) GetRange(r *util.Range) ([][2][]byte, error) {
	var results [][2][]byte
	err := ps.Scan(r, func(key, value []byte) bool {
		results = append(results, [2][]byte{key, value})
		return true
	})
	return results, err
}

// Scan calls fn for each pair in r, in key order, until fn returns false.
// key and value are copies and may be retained.
func (ps *PersistenceStore) Scan(r *util.Range, fn func(key, value []byte) bool) error {
	iter := ps.db.NewIterator(r, nil)
	defer iter.Release()

	for iter.Next() {
		// Copy key and value to avoid iterator reuse issues
		keyCopy := make([]byte, len(iter.Key()))
		copy(keyCopy, iter.Key())
		valueCopy := make([]byte, len(iter.Value()))
		copy(valueCopy, iter.Value())

		if !fn(keyCopy, valueCopy) {
			break
		}
	}
	if err := iter.Error(); err != nil {
		return fmt.Errorf("Scan %x..%x: %w", r.Start, r.Limit, err)
	}
	return nil
}

func (ps *PersistenceStore) Close() error {
	return ps.db.Close()
}
