package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// The pepper is a server-side secret mixed into every Argon2id hash. It lives
// in a file next to the database so a leaked database alone is not enough to
// mount an offline attack.
var (
	pepperMu    sync.Mutex
	pepperValue string
	pepperFile  = "pepper"
)

// SetPepperPath configures where the pepper is read from (or created). It
// resets any pepper already loaded.
func SetPepperPath(file string) {
	pepperMu.Lock()
	defer pepperMu.Unlock()

	pepperFile = file
	pepperValue = ""
}

// PepperPath returns the configured pepper file.
func PepperPath() string {
	pepperMu.Lock()
	defer pepperMu.Unlock()
	return pepperFile
}

// LoadPepper loads the pepper eagerly, creating the file if it does not
// exist yet, so a broken pepper file fails startup instead of the first
// login.
func LoadPepper() error {
	_, err := pepper(true)
	return err
}

// pepper returns the loaded pepper, loading it on first use. Only when
// create is set is a missing file generated; verification never writes.
func pepper(create bool) (string, error) {
	pepperMu.Lock()
	defer pepperMu.Unlock()

	if pepperValue != "" {
		return pepperValue, nil
	}

	var (
		value string
		err   error
	)
	if create {
		value, err = loadOrGeneratePepper(pepperFile)
	} else {
		value, err = readPepper(pepperFile)
	}
	if err != nil {
		return "", fmt.Errorf("cryptox: pepper unavailable: %w", err)
	}
	pepperValue = value
	return value, nil
}

func readPepper(file string) (string, error) {
	data, err := os.ReadFile(filepath.Clean(file))
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", errors.New("cryptox: pepper file is empty")
	}
	return string(data), nil
}

// loadOrGeneratePepper reads the pepper from file, generating and persisting
// a new one if the file does not exist yet.
func loadOrGeneratePepper(file string) (string, error) {
	file = filepath.Clean(file)
	if err := os.MkdirAll(filepath.Dir(file), 0o750); err != nil {
		return "", err
	}

	value, err := readPepper(file)
	if err == nil || !errors.Is(err, os.ErrNotExist) {
		return value, err
	}

	raw := make([]byte, keyLength)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	value = base64.RawURLEncoding.EncodeToString(raw)

	if err := os.WriteFile(file, []byte(value), 0o600); err != nil {
		return "", err
	}
	return value, nil
}
