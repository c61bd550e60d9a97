package crypto

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
)

// EnvKeyPrefix names the key variables: MASTER_ENCRYPTION_KEY is version 1,
// MASTER_ENCRYPTION_KEY_V2 version 2 and so on.
const EnvKeyPrefix = "MASTER_ENCRYPTION_KEY"

const maxKeyVersion = 10

var ErrNoKeys = errors.New("no encryption key configured")

// Keyring holds every configured key version; new values are sealed with the
// latest one.
type Keyring struct {
	sealers map[int]*Sealer
	current int
}

// LoadKeyring reads base64 keys from the environment.
func LoadKeyring() (*Keyring, error) {
	return LoadKeyringFrom(os.LookupEnv)
}

// LoadKeyringFrom reads base64 keys through lookup.
func LoadKeyringFrom(lookup func(string) (string, bool)) (*Keyring, error) {
	kr := &Keyring{sealers: make(map[int]*Sealer)}
	for v := 1; v <= maxKeyVersion; v++ {
		name := EnvKeyPrefix
		if v > 1 {
			name = fmt.Sprintf("%s_V%d", EnvKeyPrefix, v)
		}
		raw, ok := lookup(name)
		if !ok || raw == "" {
			continue
		}
		key, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		s, err := NewSealer(key, v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		kr.sealers[v] = s
		kr.current = v
	}
	if kr.current == 0 {
		return nil, ErrNoKeys
	}
	return kr, nil
}

// Seal encrypts secret for accountID with the latest key.
func (k *Keyring) Seal(secret, accountID string) (string, error) {
	return k.sealers[k.current].Seal(secret, accountID)
}

// Open decrypts with whichever key version sealed the value.
func (k *Keyring) Open(sealed, accountID string) (string, error) {
	v := ParseVersion(sealed)
	if v == 0 {
		return "", ErrInvalidSealed
	}
	s, ok := k.sealers[v]
	if !ok {
		return "", fmt.Errorf("key version %d not configured", v)
	}
	return s.Open(sealed, accountID)
}

// Reseal re-encrypts a sealed value under the latest key version.
func (k *Keyring) Reseal(sealed, accountID string) (string, error) {
	plain, err := k.Open(sealed, accountID)
	if err != nil {
		return "", fmt.Errorf("open for reseal: %w", err)
	}
	return k.Seal(plain, accountID)
}

// CurrentVersion is the key version used by Seal.
func (k *Keyring) CurrentVersion() int { return k.current }

// GenerateKey returns a random base64 AES-256 key.
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := cryptoRandRead(key); err != nil {
		return "", fmt.Errorf("generate random key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}
