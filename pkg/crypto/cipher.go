// Package crypto provides the field-encryption port used by the entity
// store. Designated fields are stored sealed and returned plain on read.
// Key management is out of scope; callers supply the key material.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
)

// FieldCipher seals and opens individual entity field values.
type FieldCipher interface {
	Seal(plaintext string) (string, error)
	Plain(ciphertext string) (string, error)
}

// Passthrough is a no-op FieldCipher for deployments without field
// encryption and for tests.
type Passthrough struct{}

// Seal returns the input unchanged.
func (Passthrough) Seal(plaintext string) (string, error) { return plaintext, nil }

// Plain returns the input unchanged.
func (Passthrough) Plain(ciphertext string) (string, error) { return ciphertext, nil }

// aesGCM is an AES-GCM FieldCipher. Ciphertexts are base64 with the nonce
// prepended, prefixed with "enc:" so plaintext legacy values pass through
// Plain untouched.
type aesGCM struct {
	aead cipher.AEAD
}

const encPrefix = "enc:"

// NewAESGCM creates a FieldCipher from a 16, 24 or 32 byte key.
func NewAESGCM(key []byte) (FieldCipher, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("field cipher key: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("field cipher: %w", err)
	}
	return &aesGCM{aead: aead}, nil
}

// Seal encrypts the plaintext. Empty values stay empty.
func (c *aesGCM) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("seal field: %w", err)
	}
	out := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return encPrefix + base64.StdEncoding.EncodeToString(out), nil
}

// Plain decrypts a sealed value. Values without the seal prefix are
// returned as-is; legacy rows predate field encryption.
func (c *aesGCM) Plain(ciphertext string) (string, error) {
	if len(ciphertext) < len(encPrefix) || ciphertext[:len(encPrefix)] != encPrefix {
		return ciphertext, nil
	}
	raw, err := base64.StdEncoding.DecodeString(ciphertext[len(encPrefix):])
	if err != nil {
		return "", fmt.Errorf("open field: %w", err)
	}
	ns := c.aead.NonceSize()
	if len(raw) < ns {
		return "", fmt.Errorf("open field: ciphertext too short")
	}
	plain, err := c.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", fmt.Errorf("open field: %w", err)
	}
	return string(plain), nil
}
