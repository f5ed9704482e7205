// Package security implements credential-based encryption for atomicdb:
// password key derivation, an AES-GCM cipher for store payloads, salted
// password hashing, and an audit trail for security-relevant events.
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	KeySize    = 32 // AES-256
	NonceSize  = 12
	TagSize    = 16
	Overhead   = NonceSize + TagSize
	SaltSize   = 16
	Iterations = 480000
)

// ErrNoKey is returned by Encrypt/Decrypt when the manager was built
// without a password.
var ErrNoKey = errors.New("no encryption key configured")

// Manager derives an encryption key from a password and salt and exposes
// the cipher plus password hashing over the same salt.
type Manager struct {
	salt  []byte
	aead  cipher.AEAD
	audit *AuditLogger
}

// NewManager builds a manager. An empty password yields a manager that can
// hash passwords but refuses Encrypt/Decrypt. A nil salt generates a fresh
// random one; pass the previous salt to re-derive the same key.
func NewManager(password string, salt []byte) (*Manager, error) {
	if salt == nil {
		salt = make([]byte, SaltSize)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return nil, fmt.Errorf("failed to generate salt: %w", err)
		}
	}

	m := &Manager{salt: salt}
	if password == "" {
		return m, nil
	}

	key := pbkdf2.Key([]byte(password), salt, Iterations, KeySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	m.aead = aead
	return m, nil
}

// AttachAudit routes security events to l. Safe to call with nil.
func (m *Manager) AttachAudit(l *AuditLogger) {
	m.audit = l
	m.audit.Log(EventKeyDerived, map[string]interface{}{"encrypting": m.aead != nil})
}

// Salt returns a copy of the key-derivation salt. Persist it next to the
// data; the same password with a different salt derives a different key.
func (m *Manager) Salt() []byte {
	out := make([]byte, len(m.salt))
	copy(out, m.salt)
	return out
}

// Encrypt seals plaintext as [nonce | ciphertext | tag].
func (m *Manager) Encrypt(plaintext []byte) ([]byte, error) {
	if m.aead == nil {
		return nil, ErrNoKey
	}
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return m.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens data produced by Encrypt.
func (m *Manager) Decrypt(data []byte) ([]byte, error) {
	if m.aead == nil {
		return nil, ErrNoKey
	}
	if len(data) < Overhead {
		return nil, fmt.Errorf("ciphertext too short: %d bytes", len(data))
	}
	nonce := data[:NonceSize]
	plaintext, err := m.aead.Open(nil, nonce, data[NonceSize:], nil)
	if err != nil {
		m.audit.Log(EventDecryptFailed, nil)
		return nil, fmt.Errorf("decryption failed: %w", err)
	}
	return plaintext, nil
}

// HashPassword returns hex(SHA-256(password || salt)). Stable for a given
// manager salt, so stored hashes verify across restarts.
func (m *Manager) HashPassword(password string) string {
	sum := sha256.Sum256(append([]byte(password), m.salt...))
	return hex.EncodeToString(sum[:])
}

// VerifyPassword compares in constant time.
func (m *Manager) VerifyPassword(password, hash string) bool {
	computed := m.HashPassword(password)
	ok := subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
	if ok {
		m.audit.Log(EventPasswordVerified, nil)
	} else {
		m.audit.Log(EventPasswordRejected, nil)
	}
	return ok
}
