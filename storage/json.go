package storage

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
)

// JSONStore persists state as a JSON file, optionally zlib-compressed.
// Level 0 writes plain JSON; levels 1..9 compress with the given effort.
type JSONStore struct {
	path  string
	level int
	mu    sync.Mutex
}

// NewJSONStore opens a JSON store at path. level 0 disables compression.
func NewJSONStore(path string, level int) (*JSONStore, error) {
	if level < 0 || level > 9 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLevel, level)
	}
	return &JSONStore{path: path, level: level}, nil
}

// NewCompressedJSONStore is NewJSONStore with compression required.
func NewCompressedJSONStore(path string, level int) (*JSONStore, error) {
	if level < 1 {
		return nil, fmt.Errorf("%w: compressed store requires level >= 1, got %d", ErrInvalidLevel, level)
	}
	return NewJSONStore(path, level)
}

func (s *JSONStore) Load() (State, error) {
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

	data, err := maybeDecompress(raw)
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

// maybeDecompress tries zlib first and falls back to treating raw as plain
// text, so a store opened with a different level still reads old files.
func maybeDecompress(raw []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(raw))
	if err != nil {
		return raw, nil
	}
	defer zr.Close()
	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress: %w", err)
	}
	return data, nil
}

func (s *JSONStore) Save(state State) error {
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

	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", s.path, err)
	}
	return nil
}

func (s *JSONStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", s.path, err)
	}
	return nil
}

func (s *JSONStore) Close() error { return nil }
