package storage

import (
	"errors"

	"github.com/dgraph-io/badger/v2"
)

type BadgerBackend struct {
	db *badger.DB
}

// NewBadgerBackend opens (or creates) a badger store at path.
func NewBadgerBackend(path string) (*BadgerBackend, error) {
	db, err := badger.Open(badger.DefaultOptions(path).WithTruncate(true))
	if err != nil {
		return nil, err
	}
	return &BadgerBackend{db: db}, nil
}

// NewBadgerBacked wraps an already open badger instance.
func NewBadgerBacked(db *badger.DB) *BadgerBackend {
	return &BadgerBackend{db: db}
}

// TestBadgerDB returns an in-memory badger instance for tests.
func TestBadgerDB() *badger.DB {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true))
	if err != nil {
		panic(err)
	}
	return db
}

func (backend *BadgerBackend) Get(key []byte) ([]byte, error) {
	var value []byte
	err := backend.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	return value, err
}

func (backend *BadgerBackend) Put(key, value []byte) error {
	return backend.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

func (backend *BadgerBackend) Delete(key []byte) error {
	return backend.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

func (backend *BadgerBackend) Close() error {
	return backend.db.Close()
}
