package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// MemoryStore keeps state in memory. With a path configured, Commit flushes
// the current state to disk as JSON and Load prefers the on-disk file, so a
// committed session survives a restart.
type MemoryStore struct {
	path  string
	mu    sync.Mutex
	state State
}

// NewMemoryStore creates a memory store. path may be empty for a purely
// ephemeral store.
func NewMemoryStore(path string) *MemoryStore {
	return &MemoryStore{path: path, state: State{}}
}

func (s *MemoryStore) Load() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path != "" {
		raw, err := os.ReadFile(s.path)
		if err == nil {
			var state State
			if err := json.Unmarshal(raw, &state); err != nil {
				return nil, fmt.Errorf("failed to decode %s: %w", s.path, err)
			}
			if state == nil {
				state = State{}
			}
			s.state = state
			return state, nil
		}
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
		}
	}
	return s.state, nil
}

func (s *MemoryStore) Save(state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	return nil
}

// Commit writes the in-memory state to the configured path.
func (s *MemoryStore) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return ErrNoPath
	}
	data, err := json.Marshal(s.state)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", s.path, err)
	}
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = State{}
	if s.path != "" {
		if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", s.path, err)
		}
	}
	return nil
}

func (s *MemoryStore) Close() error { return nil }
