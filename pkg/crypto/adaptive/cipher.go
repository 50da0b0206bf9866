package adaptive

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"runtime"

	"golang.org/x/crypto/chacha20poly1305"
)

// CipherType identifies the cipher algorithm.
type CipherType string

const (
	CipherAESGCM   CipherType = "aes-gcm"
	CipherChaCha20 CipherType = "chacha20-poly1305"
)

// ErrCiphertextTooShort is returned by Decrypt for input shorter than a nonce.
var ErrCiphertextTooShort = errors.New("adaptive: ciphertext too short")

// ID returns the one-byte code that identifies t in bundle headers.
func (t CipherType) ID() byte {
	switch t {
	case CipherAESGCM:
		return 1
	case CipherChaCha20:
		return 2
	default:
		return 0
	}
}

// CipherTypeFromID is the inverse of CipherType.ID.
func CipherTypeFromID(id byte) (CipherType, error) {
	switch id {
	case 1:
		return CipherAESGCM, nil
	case 2:
		return CipherChaCha20, nil
	default:
		return "", fmt.Errorf("unknown cipher id %d", id)
	}
}

// ParseCipherType accepts a cipher name; "" or "auto" selects by hardware.
func ParseCipherType(s string) (CipherType, error) {
	switch CipherType(s) {
	case "", "auto":
		if hasAESNI() {
			return CipherAESGCM, nil
		}
		return CipherChaCha20, nil
	case CipherAESGCM, CipherChaCha20:
		return CipherType(s), nil
	default:
		return "", errors.New("unknown cipher type: " + s)
	}
}

// Cipher provides authenticated encryption with a random nonce prepended
// to every ciphertext.
type Cipher interface {
	Type() CipherType
	Encrypt(plaintext, additionalData []byte) ([]byte, error)
	Decrypt(ciphertext, additionalData []byte) ([]byte, error)
	NonceSize() int
	// Overhead is the nonce plus tag bytes added by Encrypt.
	Overhead() int
}

// New creates a cipher for a KeyLength key, picking the algorithm by
// hardware.
func New(key []byte) (Cipher, error) {
	t, _ := ParseCipherType("auto")
	return NewWithType(key, t)
}

// NewWithType creates a cipher of the specified type.
func NewWithType(key []byte, t CipherType) (Cipher, error) {
	switch t {
	case CipherAESGCM:
		return NewAESGCM(key)
	case CipherChaCha20:
		return NewChaCha20(key)
	default:
		return nil, errors.New("unknown cipher type: " + string(t))
	}
}

// NewAESGCM creates an AES-256-GCM cipher.
func NewAESGCM(key []byte) (Cipher, error) {
	if len(key) != KeyLength {
		return nil, fmt.Errorf("adaptive: AES-GCM key must be %d bytes, got %d", KeyLength, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &aeadCipher{typ: CipherAESGCM, aead: aead}, nil
}

// NewChaCha20 creates a ChaCha20-Poly1305 cipher.
func NewChaCha20(key []byte) (Cipher, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("adaptive: ChaCha20-Poly1305 key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	return &aeadCipher{typ: CipherChaCha20, aead: aead}, nil
}

// hasAESNI reports whether Go's crypto/aes runs on hardware AES here.
func hasAESNI() bool {
	switch runtime.GOARCH {
	case "amd64", "arm64":
		return true
	default:
		return false
	}
}

type aeadCipher struct {
	typ  CipherType
	aead cipher.AEAD
}

func (c *aeadCipher) Type() CipherType { return c.typ }
func (c *aeadCipher) NonceSize() int   { return c.aead.NonceSize() }
func (c *aeadCipher) Overhead() int    { return c.aead.NonceSize() + c.aead.Overhead() }

func (c *aeadCipher) Encrypt(plaintext, additionalData []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return c.aead.Seal(nonce, nonce, plaintext, additionalData), nil
}

func (c *aeadCipher) Decrypt(ciphertext, additionalData []byte) ([]byte, error) {
	n := c.aead.NonceSize()
	if len(ciphertext) < n {
		return nil, ErrCiphertextTooShort
	}
	return c.aead.Open(nil, ciphertext[:n], ciphertext[n:], additionalData)
}
