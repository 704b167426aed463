package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

const sealedPrefix = "v1."

var ErrSealedMalformed = errors.New("cryptox: sealed value malformed")

// Sealer encrypts small secrets (TOTP seeds) before they are written to the
// directory. Output format: "v1." + base64url([12-byte nonce][ciphertext+tag]).
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives an AES-256-GCM key from keyMaterial with SHA-256.
func NewSealer(keyMaterial []byte) (*Sealer, error) {
	if len(keyMaterial) == 0 {
		return nil, errors.New("cryptox: empty master key")
	}

	key := sha256.Sum256(keyMaterial)
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Sealer{aead: gcm}, nil
}

// LoadSealer builds a Sealer from the master key file at path. With an empty
// path it falls back to the AUTH_MASTER_KEY environment variable and, failing
// that, an ephemeral random key. The ephemeral flag lets the caller warn:
// secrets sealed with it are unreadable after a restart.
func LoadSealer(path string) (s *Sealer, ephemeral bool, err error) {
	var material []byte

	switch {
	case path != "":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, false, fmt.Errorf("failed to read master key file: %w", err)
		}
		material = []byte(strings.TrimSpace(string(data)))
	case os.Getenv("AUTH_MASTER_KEY") != "":
		material = []byte(os.Getenv("AUTH_MASTER_KEY"))
	default:
		material = make([]byte, 32)
		if _, err := rand.Read(material); err != nil {
			return nil, false, fmt.Errorf("failed to generate ephemeral master key: %w", err)
		}
		ephemeral = true
	}

	s, err = NewSealer(material)
	return s, ephemeral, err
}

// Seal encrypts plaintext with a fresh random nonce.
func (s *Sealer) Seal(plaintext []byte) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	out := s.aead.Seal(nonce, nonce, plaintext, nil)
	return sealedPrefix + base64.RawURLEncoding.EncodeToString(out), nil
}

// Open decrypts a value produced by Seal, failing if it was tampered with or
// sealed under a different key.
func (s *Sealer) Open(sealed string) ([]byte, error) {
	encoded, ok := strings.CutPrefix(sealed, sealedPrefix)
	if !ok {
		return nil, ErrSealedMalformed
	}

	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrSealedMalformed
	}

	nonceSize := s.aead.NonceSize()
	if len(data) < nonceSize+s.aead.Overhead() {
		return nil, fmt.Errorf("%w: too short", ErrSealedMalformed)
	}

	plaintext, err := s.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}
	return plaintext, nil
}
