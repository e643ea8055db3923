// Package password hashes and verifies user passwords with argon2id,
// encoded in the PHC string format so parameters travel with the hash.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	memoryKB    uint32 = 64 * 1024
	timeCost    uint32 = 2
	parallelism uint8  = 2
	saltLength         = 16
	keyLength   uint32 = 32
)

var (
	// ErrMismatch is returned when the password does not match the hash.
	ErrMismatch = errors.New("password: hash mismatch")

	// ErrMalformedHash is returned for an encoded hash that cannot be
	// parsed as an argon2id PHC string.
	ErrMalformedHash = errors.New("password: malformed hash")
)

// Hash derives an argon2id hash of plaintext with a fresh random salt.
func Hash(plaintext string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("password: failed to generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(plaintext), salt, timeCost, memoryKB, parallelism, keyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, memoryKB, timeCost, parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify recomputes the hash of plaintext with the parameters embedded in
// encoded and compares in constant time. Returns nil on match,
// ErrMismatch otherwise.
func Verify(plaintext, encoded string) error {
	salt, key, time, memory, threads, err := decode(encoded)
	if err != nil {
		return err
	}

	candidate := argon2.IDKey([]byte(plaintext), salt, time, memory, threads, uint32(len(key)))
	if subtle.ConstantTimeCompare(candidate, key) != 1 {
		return ErrMismatch
	}
	return nil
}

func decode(encoded string) (salt, key []byte, time, memory uint32, threads uint8, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return nil, nil, 0, 0, 0, ErrMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return nil, nil, 0, 0, 0, ErrMalformedHash
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return nil, nil, 0, 0, 0, ErrMalformedHash
	}

	salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, 0, 0, 0, ErrMalformedHash
	}
	key, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return nil, nil, 0, 0, 0, ErrMalformedHash
	}

	return salt, key, time, memory, threads, nil
}
