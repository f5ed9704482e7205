// Package storage provides the persistence collaborators for atomicdb.
//
// A Store holds the full per-collection document state behind four
// operations: Load, Save, Clear, Close. The database calls Save after every
// mutating operation with the complete state; a Store never sees individual
// mutations. Stores that buffer writes in memory additionally implement
// Committer to flush on demand.
package storage

import "errors"

// State is the full persisted form of a database: collection name to its
// documents in insertion order.
type State map[string][]map[string]interface{}

// Store is the persistence contract consumed by the database.
type Store interface {
	// Load returns the persisted state. A missing backing file is a fresh
	// database, not an error.
	Load() (State, error)
	// Save replaces the persisted state.
	Save(state State) error
	// Clear removes the persisted state entirely.
	Clear() error
	// Close releases resources held by the store.
	Close() error
}

// Committer is implemented by stores with deferred durability. The database
// detects it by assertion and forwards Commit calls.
type Committer interface {
	Commit() error
}

var (
	// ErrNoPath is returned by Commit on a memory store with no file path.
	ErrNoPath = errors.New("no file path configured")

	// ErrInvalidLevel is returned for a compression level outside 0..9.
	ErrInvalidLevel = errors.New("compression level must be between 0 and 9")
)
