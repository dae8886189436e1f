// Package crypto encrypts calendar-resource credentials (e.g. Google
// Calendar OAuth tokens) at rest. AES-256-GCM as in the teacher's token
// store, but the 32-byte cipher key is derived from the operator-supplied
// CREDENTIAL_ENCRYPTION_KEY via HKDF-SHA256 rather than used directly, so
// the env var can be any secret length/entropy source, not exactly 32
// raw bytes.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

var (
	// ErrInvalidKey is returned when the encryption key material is empty.
	ErrInvalidKey = errors.New("crypto: invalid encryption key")
	// ErrInvalidCiphertext is returned when ciphertext fails to decode or decrypt.
	ErrInvalidCiphertext = errors.New("crypto: invalid ciphertext")
)

const hkdfInfo = "queryon/calendar-credentials/v1"

// Box derives a single AES-256-GCM key from operator secret material and
// encrypts/decrypts credential strings with it.
type Box struct {
	key [32]byte
}

// NewBox derives the cipher key from secret via HKDF-SHA256. secret must be
// non-empty; it need not be exactly 32 bytes.
func NewBox(secret string) (*Box, error) {
	if secret == "" {
		return nil, ErrInvalidKey
	}
	b := &Box{}
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte(hkdfInfo))
	if _, err := io.ReadFull(kdf, b.key[:]); err != nil {
		return nil, fmt.Errorf("crypto: key derivation failed: %w", err)
	}
	return b, nil
}

// Encrypt returns the base64-encoded AES-256-GCM sealing of plaintext,
// nonce-prefixed.
func (b *Box) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(b.key[:])
	if err != nil {
		return "", fmt.Errorf("crypto: new cipher failed: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("crypto: new gcm failed: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("crypto: nonce generation failed: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt.
func (b *Box) Decrypt(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrInvalidCiphertext
	}

	block, err := aes.NewCipher(b.key[:])
	if err != nil {
		return "", fmt.Errorf("crypto: new cipher failed: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("crypto: new gcm failed: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", ErrInvalidCiphertext
	}
	nonce, ciphertext := data[:nonceSize], data[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	return string(plaintext), nil
}
