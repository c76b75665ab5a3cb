package statestore

import (
	"strings"

	badger "github.com/dgraph-io/badger/v4"
	pkgerrors "github.com/pkg/errors"
)

// Store is a small KV wrapper (Badger) used to persist ledger snapshots
// between runs. Values are opaque byte blobs; callers do their own encoding.
type Store struct {
	db *badger.DB
}

type OpenOptions struct {
	Path     string
	ReadOnly bool
	InMemory bool // for tests
}

func Open(opts OpenOptions) (*Store, error) {
	if !opts.InMemory && strings.TrimSpace(opts.Path) == "" {
		return nil, pkgerrors.New("statestore: path is required")
	}
	bopts := badger.DefaultOptions(opts.Path).
		WithLogger(nil).
		WithReadOnly(opts.ReadOnly).
		WithInMemory(opts.InMemory)
	if opts.InMemory {
		bopts = bopts.WithDir("").WithValueDir("")
	}
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "statestore: open")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get returns the value for key, with found=false when the key is absent.
func (s *Store) Get(key string) ([]byte, bool, error) {
	if s == nil || s.db == nil {
		return nil, false, pkgerrors.New("statestore: not opened")
	}
	k := []byte(strings.TrimSpace(key))
	if len(k) == 0 {
		return nil, false, pkgerrors.New("statestore: key is empty")
	}
	var (
		out   []byte
		found bool
	)
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if err != nil {
			if pkgerrors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		found = true
		out, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, false, pkgerrors.Wrap(err, "statestore: get")
	}
	return out, found, nil
}

func (s *Store) Set(key string, val []byte) error {
	if s == nil || s.db == nil {
		return pkgerrors.New("statestore: not opened")
	}
	k := []byte(strings.TrimSpace(key))
	if len(k) == 0 {
		return pkgerrors.New("statestore: key is empty")
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(k, val)
	})
	return pkgerrors.Wrap(err, "statestore: set")
}

// Keys lists every key under prefix (key scan only, values untouched).
func (s *Store) Keys(prefix string) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, pkgerrors.New("statestore: not opened")
	}
	var out []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			out = append(out, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, pkgerrors.Wrap(err, "statestore: keys")
	}
	return out, nil
}
