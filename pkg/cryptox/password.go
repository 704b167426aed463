package cryptox

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Argon2id parameters for newly created hashes.
const (
	memory      = 19 * 1024 // Memory usage in KiB (19 MiB)
	iterations  = 2         // Iteration count
	parallelism = 1         // Number of threads
	keyLength   = 32        // Length of the generated hash
	saltLength  = 16        // Length of the salt
)

// Upper bounds accepted when reading a stored hash, so a corrupted row
// cannot make verification allocate gigabytes.
const (
	maxMemory      = 256 * 1024
	maxIterations  = 16
	maxParallelism = 16
)

var errMalformedHash = errors.New("cryptox: malformed password hash")

// strictB64 rejects non-zero padding bits, otherwise two distinct encodings
// would decode to the same salt or digest.
var strictB64 = base64.RawStdEncoding.Strict()

type argon2Params struct {
	memory      uint32
	iterations  uint32
	parallelism uint8
	salt        []byte
	digest      []byte
}

// HashPassword generates a PHC-format Argon2id hash string including salt and
// parameters. The pepper is mixed into the password before hashing.
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	pep, err := pepper(true)
	if err != nil {
		return "", err
	}

	digest := argon2.IDKey([]byte(password+pep), salt, iterations, memory, parallelism, keyLength)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		memory,
		iterations,
		parallelism,
		strictB64.EncodeToString(salt),
		strictB64.EncodeToString(digest),
	), nil
}

// VerifyPassword reports whether password matches encodedHash. Argon2id PHC
// strings and legacy bcrypt hashes are understood; anything else, including a
// malformed hash or an unreadable pepper, is simply a mismatch. It never
// writes the pepper file.
func VerifyPassword(password, encodedHash string) bool {
	if isBcrypt(encodedHash) {
		return bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password)) == nil
	}

	p, err := parseArgon2(encodedHash)
	if err != nil {
		return false
	}

	pep, err := pepper(false)
	if err != nil {
		return false
	}

	computed := argon2.IDKey(
		[]byte(password+pep),
		p.salt,
		p.iterations,
		p.memory,
		p.parallelism,
		uint32(len(p.digest)), // #nosec G115 - digest length is bounded by the encoding
	)

	return subtle.ConstantTimeCompare(computed, p.digest) == 1
}

// NeedsRehash reports whether encodedHash was produced by anything other than
// Argon2id with the current parameters. Callers rehash after a successful
// verification.
func NeedsRehash(encodedHash string) bool {
	p, err := parseArgon2(encodedHash)
	if err != nil {
		return true
	}
	return p.memory != memory ||
		p.iterations != iterations ||
		p.parallelism != parallelism ||
		len(p.salt) != saltLength ||
		len(p.digest) != keyLength
}

// parseArgon2 splits $argon2id$v=19$m=X,t=Y,p=Z$salt$hash into its parts.
func parseArgon2(encodedHash string) (argon2Params, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return argon2Params{}, errMalformedHash
	}
	if parts[2] != fmt.Sprintf("v=%d", argon2.Version) {
		return argon2Params{}, errMalformedHash
	}

	var p argon2Params
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.iterations, &p.parallelism); err != nil {
		return argon2Params{}, errMalformedHash
	}
	// Round-trip the parameters so trailing junk or zero-padded numbers fail.
	if parts[3] != fmt.Sprintf("m=%d,t=%d,p=%d", p.memory, p.iterations, p.parallelism) {
		return argon2Params{}, errMalformedHash
	}
	if p.memory == 0 || p.memory > maxMemory ||
		p.iterations == 0 || p.iterations > maxIterations ||
		p.parallelism == 0 || p.parallelism > maxParallelism {
		return argon2Params{}, errMalformedHash
	}

	var err error
	if p.salt, err = strictB64.DecodeString(parts[4]); err != nil || len(p.salt) == 0 {
		return argon2Params{}, errMalformedHash
	}
	if p.digest, err = strictB64.DecodeString(parts[5]); err != nil || len(p.digest) == 0 {
		return argon2Params{}, errMalformedHash
	}

	return p, nil
}

func isBcrypt(encodedHash string) bool {
	return strings.HasPrefix(encodedHash, "$2a$") ||
		strings.HasPrefix(encodedHash, "$2b$") ||
		strings.HasPrefix(encodedHash, "$2y$")
}

// GeneratePassword returns a random 12 character alphanumeric password, used
// when an operator creates a principal without choosing one.
func GeneratePassword() (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 12
	password := make([]byte, length)
	for i := range password {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", fmt.Errorf("failed to generate random password: %w", err)
		}
		password[i] = charset[n.Int64()]
	}
	return string(password), nil
}
