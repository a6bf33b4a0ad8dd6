// Package security provides the optional at-rest transform for sensitive
// session fields.
package security

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// FieldCipher encrypts and decrypts individual field values with
// ChaCha20-Poly1305 before they reach the store. The store and the lifecycle
// policy are agnostic to whether a field is plaintext or transformed.
type FieldCipher struct {
	aead cipher.AEAD
}

// NewFieldCipher returns a FieldCipher for the given 32-byte key.
// A nil or empty key returns (nil, nil): callers treat a nil cipher as the
// identity transform.
func NewFieldCipher(key []byte) (*FieldCipher, error) {
	if len(key) == 0 {
		return nil, nil
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("field cipher key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	return &FieldCipher{aead: aead}, nil
}

// Encrypt seals plaintext with a fresh random nonce and returns
// base64(nonce || ciphertext). A nil receiver returns plaintext unchanged.
func (c *FieldCipher) Encrypt(plaintext string) (string, error) {
	if c == nil {
		return plaintext, nil
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("field cipher: nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. A nil receiver returns the value unchanged.
func (c *FieldCipher) Decrypt(value string) (string, error) {
	if c == nil {
		return value, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return "", fmt.Errorf("field cipher: decode: %w", err)
	}
	if len(raw) < c.aead.NonceSize() {
		return "", errors.New("field cipher: value too short")
	}
	nonce, ciphertext := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("field cipher: open: %w", err)
	}
	return string(plain), nil
}
