package security

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType defines the category of audit event.
type EventType string

const (
	EventKeyDerived       EventType = "KEY_DERIVED"
	EventDecryptFailed    EventType = "DECRYPT_FAILED"
	EventPasswordVerified EventType = "PASSWORD_VERIFIED"
	EventPasswordRejected EventType = "PASSWORD_REJECTED"
	EventStoreCleared     EventType = "STORE_CLEARED"
)

// AuditEvent is a single loggable security event.
type AuditEvent struct {
	ID        string                 `json:"id"`
	Timestamp time.Time              `json:"ts"`
	Type      EventType              `json:"type"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// AuditLogger appends events to a JSONL file.
type AuditLogger struct {
	file *os.File
	mu   sync.Mutex
}

// NewAuditLogger creates a logger writing to the specified path.
func NewAuditLogger(path string) (*AuditLogger, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	return &AuditLogger{file: file}, nil
}

// Log records an event. Safe on a nil logger so callers need no guards.
func (l *AuditLogger) Log(evtType EventType, details map[string]interface{}) {
	if l == nil || l.file == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	event := AuditEvent{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Type:      evtType,
		Details:   details,
	}

	if err := json.NewEncoder(l.file).Encode(event); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: failed to write audit log: %v\n", err)
	}
}

// Close closes the log file.
func (l *AuditLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
