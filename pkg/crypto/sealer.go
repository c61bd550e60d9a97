// Package crypto seals exchange API secrets stored in the account file with
// AES-256-GCM. Sealed values look like ENC[v1]:base64(nonce|ciphertext) and are
// bound to the owning account id so they cannot be moved between accounts.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32

	sealedPrefix = "ENC[v"
)

var (
	ErrInvalidKey       = errors.New("invalid encryption key: must be 32 bytes")
	ErrInvalidSealed    = errors.New("invalid sealed value")
	ErrDecryptionFailed = errors.New("decryption failed")
)

// Sealer encrypts with one key version.
type Sealer struct {
	aead    cipher.AEAD
	version int
}

// NewSealer builds a sealer for a 32-byte key.
func NewSealer(key []byte, version int) (*Sealer, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return &Sealer{aead: aead, version: version}, nil
}

// Seal encrypts secret for accountID.
func (s *Sealer) Seal(secret, accountID string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	out := s.aead.Seal(nonce, nonce, []byte(secret), []byte(accountID))
	return fmt.Sprintf("ENC[v%d]:%s", s.version, base64.StdEncoding.EncodeToString(out)), nil
}

// Open decrypts a value produced by Seal for the same accountID.
func (s *Sealer) Open(sealed, accountID string) (string, error) {
	_, payload, ok := split(sealed)
	if !ok {
		return "", ErrInvalidSealed
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}
	n := s.aead.NonceSize()
	if len(data) < n+s.aead.Overhead() {
		return "", ErrInvalidSealed
	}
	plain, err := s.aead.Open(nil, data[:n], data[n:], []byte(accountID))
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plain), nil
}

// Version is the key version this sealer writes.
func (s *Sealer) Version() int { return s.version }

// IsSealed reports whether v carries the ENC[vN]: prefix.
func IsSealed(v string) bool {
	_, _, ok := split(v)
	return ok
}

// ParseVersion returns the key version of a sealed value, or 0.
func ParseVersion(sealed string) int {
	v, _, ok := split(sealed)
	if !ok {
		return 0
	}
	return v
}

func split(sealed string) (version int, payload string, ok bool) {
	if !strings.HasPrefix(sealed, sealedPrefix) {
		return 0, "", false
	}
	end := strings.Index(sealed, "]:")
	if end == -1 {
		return 0, "", false
	}
	if _, err := fmt.Sscanf(sealed[len(sealedPrefix):end], "%d", &version); err != nil || version <= 0 {
		return 0, "", false
	}
	return version, sealed[end+2:], true
}
