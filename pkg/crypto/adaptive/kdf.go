package adaptive

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	// MinPassphraseLength is the minimum passphrase length.
	MinPassphraseLength = 8

	// SaltLength is the salt length used in key derivation.
	SaltLength = 16

	// KeyLength is the derived key length, valid for both AES-256-GCM and
	// ChaCha20-Poly1305.
	KeyLength = 32

	// Argon2id parameters.
	argon2Time    = 3
	argon2Memory  = 64 * 1024
	argon2Threads = 4
)

// ErrPassphraseTooWeak is returned for passphrases shorter than
// MinPassphraseLength.
var ErrPassphraseTooWeak = errors.New("adaptive: passphrase too weak (minimum 8 characters)")

// NewSalt returns SaltLength random bytes.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("adaptive: generate salt: %w", err)
	}
	return salt, nil
}

// DeriveKey derives a KeyLength key from passphrase and salt with Argon2id.
// The same passphrase and salt always yield the same key.
func DeriveKey(passphrase, salt []byte) ([]byte, error) {
	if len(passphrase) < MinPassphraseLength {
		return nil, ErrPassphraseTooWeak
	}
	if len(salt) != SaltLength {
		return nil, fmt.Errorf("adaptive: salt must be %d bytes, got %d", SaltLength, len(salt))
	}
	return argon2.IDKey(passphrase, salt, argon2Time, argon2Memory, argon2Threads, KeyLength), nil
}

// ZeroKey zeros a key in memory.
func ZeroKey(key []byte) {
	clear(key)
}
