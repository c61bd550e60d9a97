package crypto

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func testKey(fill byte) []byte {
	key := make([]byte, KeySize)
	for i := range key {
		key[i] = fill + byte(i)
	}
	return key
}

func TestSealOpen(t *testing.T) {
	s, err := NewSealer(testKey(0), 1)
	if err != nil {
		t.Fatalf("NewSealer failed: %v", err)
	}

	tests := []struct {
		name   string
		secret string
	}{
		{"empty", ""},
		{"api_secret", "abc123XYZ789"},
		{"long", strings.Repeat("s3cr3t", 20)},
		{"unicode", "clé secrète"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sealed, err := s.Seal(tt.secret, "acct-1")
			if err != nil {
				t.Fatalf("Seal failed: %v", err)
			}
			if !IsSealed(sealed) {
				t.Fatalf("missing prefix: %s", sealed)
			}
			got, err := s.Open(sealed, "acct-1")
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			if got != tt.secret {
				t.Errorf("Open = %q, want %q", got, tt.secret)
			}
		})
	}
}

func TestOpenRejectsOtherAccount(t *testing.T) {
	s, _ := NewSealer(testKey(0), 1)
	sealed, _ := s.Seal("secret", "acct-1")
	if _, err := s.Open(sealed, "acct-2"); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("expected ErrDecryptionFailed, got %v", err)
	}
}

func TestSealIsRandomized(t *testing.T) {
	s, _ := NewSealer(testKey(0), 1)
	a, _ := s.Seal("same", "acct")
	b, _ := s.Seal("same", "acct")
	if a == b {
		t.Error("expected different sealed values for same secret")
	}
}

func TestInvalidKey(t *testing.T) {
	if _, err := NewSealer([]byte("short"), 1); err != ErrInvalidKey {
		t.Errorf("expected ErrInvalidKey, got %v", err)
	}
}

func TestOpenInvalid(t *testing.T) {
	s, _ := NewSealer(testKey(0), 1)
	for _, v := range []string{"", "plain", "ENC[v1]:", "ENC[v1]:!!!", "ENC[vX]:abcd"} {
		if _, err := s.Open(v, "acct"); err == nil {
			t.Errorf("expected error for %q", v)
		}
	}
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"ENC[v1]:data", 1},
		{"ENC[v10]:data", 10},
		{"ENC[v0]:data", 0},
		{"ENC[vX]:data", 0},
		{"plain", 0},
	}
	for _, tt := range tests {
		if got := ParseVersion(tt.in); got != tt.want {
			t.Errorf("ParseVersion(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestKeyringRotation(t *testing.T) {
	env := map[string]string{
		"MASTER_ENCRYPTION_KEY": base64.StdEncoding.EncodeToString(testKey(0)),
	}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }

	v1, err := LoadKeyringFrom(lookup)
	if err != nil {
		t.Fatalf("LoadKeyringFrom failed: %v", err)
	}
	old, _ := v1.Seal("secret", "acct")

	env["MASTER_ENCRYPTION_KEY_V2"] = base64.StdEncoding.EncodeToString(testKey(7))
	kr, err := LoadKeyringFrom(lookup)
	if err != nil {
		t.Fatalf("LoadKeyringFrom failed: %v", err)
	}
	if kr.CurrentVersion() != 2 {
		t.Fatalf("CurrentVersion = %d, want 2", kr.CurrentVersion())
	}
	resealed, err := kr.Reseal(old, "acct")
	if err != nil {
		t.Fatalf("Reseal failed: %v", err)
	}
	if ParseVersion(resealed) != 2 {
		t.Errorf("resealed with v%d", ParseVersion(resealed))
	}
	if got, _ := kr.Open(old, "acct"); got != "secret" {
		t.Errorf("old value opened as %q", got)
	}
}

func TestKeyringErrors(t *testing.T) {
	none := func(string) (string, bool) { return "", false }
	if _, err := LoadKeyringFrom(none); !errors.Is(err, ErrNoKeys) {
		t.Errorf("expected ErrNoKeys, got %v", err)
	}
	bad := func(string) (string, bool) { return "not base64!", true }
	if _, err := LoadKeyringFrom(bad); err == nil {
		t.Error("expected decode error")
	}
}

func TestGenerateKey(t *testing.T) {
	k, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	raw, _ := base64.StdEncoding.DecodeString(k)
	if len(raw) != KeySize {
		t.Errorf("key length %d", len(raw))
	}

	cryptoRandRead = func([]byte) (int, error) { return 0, errors.New("no entropy") }
	defer func() { cryptoRandRead = randRead }()
	if _, err := GenerateKey(); err == nil {
		t.Error("expected error when entropy fails")
	}
}
