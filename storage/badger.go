package storage

import (
	"encoding/json"
	"fmt"
	"sync"

	badger "github.com/dgraph-io/badger/v4"
)

const badgerKeyPrefix = "collection:"

// BadgerStore persists state in a Badger key-value directory, one key per
// collection holding its documents as JSON.
type BadgerStore struct {
	db *badger.DB
	mu sync.Mutex
}

func NewBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger at %s: %w", dir, err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Load() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := State{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(badgerKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			name := string(item.Key()[len(badgerKeyPrefix):])
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			var docs []map[string]interface{}
			if err := json.Unmarshal(value, &docs); err != nil {
				return fmt.Errorf("failed to decode collection %s: %w", name, err)
			}
			state[name] = docs
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

func (s *BadgerStore) Save(state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		// Drop collections that no longer exist, then write the rest.
		stale, err := collectStaleKeys(txn, state)
		if err != nil {
			return err
		}
		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}

		for name, docs := range state {
			value, err := json.Marshal(docs)
			if err != nil {
				return fmt.Errorf("failed to encode collection %s: %w", name, err)
			}
			if err := txn.Set([]byte(badgerKeyPrefix+name), value); err != nil {
				return err
			}
		}
		return nil
	})
}

func collectStaleKeys(txn *badger.Txn, state State) ([][]byte, error) {
	var stale [][]byte
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(badgerKeyPrefix)
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		key := it.Item().KeyCopy(nil)
		name := string(key[len(badgerKeyPrefix):])
		if _, ok := state[name]; !ok {
			stale = append(stale, key)
		}
	}
	return stale, nil
}

func (s *BadgerStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		keys, err := collectStaleKeys(txn, State{})
		if err != nil {
			return err
		}
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
