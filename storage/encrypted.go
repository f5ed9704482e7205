package storage

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/kartikbazzad/atomicdb/security"
)

// EncryptedStore persists state as JSON, optionally zlib-compressed, sealed
// with the manager's cipher. The pipeline is encode, compress, encrypt on
// save and the reverse on load.
type EncryptedStore struct {
	path   string
	level  int
	cipher *security.Manager
	mu     sync.Mutex
}

// NewEncryptedStore opens an encrypted store. The manager must carry a key;
// level 0 disables compression.
func NewEncryptedStore(path string, m *security.Manager, level int) (*EncryptedStore, error) {
	if level < 0 || level > 9 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLevel, level)
	}
	if _, err := m.Encrypt([]byte("probe")); err != nil {
		return nil, fmt.Errorf("manager cannot encrypt: %w", err)
	}
	return &EncryptedStore{path: path, level: level, cipher: m}, nil
}

func (s *EncryptedStore) Load() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return State{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}
	if len(raw) == 0 {
		return State{}, nil
	}

	data, err := s.cipher.Decrypt(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt %s: %w", s.path, err)
	}
	data, err = maybeDecompress(data)
	if err != nil {
		return nil, err
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", s.path, err)
	}
	if state == nil {
		state = State{}
	}
	return state, nil
}

func (s *EncryptedStore) Save(state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	if s.level > 0 {
		var buf bytes.Buffer
		zw, err := zlib.NewWriterLevel(&buf, s.level)
		if err != nil {
			return err
		}
		if _, err := zw.Write(data); err != nil {
			zw.Close()
			return fmt.Errorf("failed to compress state: %w", err)
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("failed to compress state: %w", err)
		}
		data = buf.Bytes()
	}

	sealed, err := s.cipher.Encrypt(data)
	if err != nil {
		return fmt.Errorf("failed to encrypt state: %w", err)
	}
	if err := os.WriteFile(s.path, sealed, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", s.path, err)
	}
	return nil
}

func (s *EncryptedStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", s.path, err)
	}
	return nil
}

func (s *EncryptedStore) Close() error { return nil }
