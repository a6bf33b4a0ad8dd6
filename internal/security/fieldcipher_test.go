package security

import (
	"bytes"
	"testing"
)

func testKey() []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func TestFieldCipher_RoundTrip(t *testing.T) {
	c, err := NewFieldCipher(testKey())
	if err != nil {
		t.Fatalf("NewFieldCipher: %v", err)
	}

	sealed, err := c.Encrypt("a@b.com")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if sealed == "a@b.com" {
		t.Error("Encrypt returned plaintext")
	}

	plain, err := c.Decrypt(sealed)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if plain != "a@b.com" {
		t.Errorf("Decrypt = %q, want %q", plain, "a@b.com")
	}
}

func TestFieldCipher_FreshNoncePerCall(t *testing.T) {
	c, err := NewFieldCipher(testKey())
	if err != nil {
		t.Fatalf("NewFieldCipher: %v", err)
	}

	a, _ := c.Encrypt("same value")
	b, _ := c.Encrypt("same value")
	if a == b {
		t.Error("two encryptions of the same value produced identical output")
	}
}

func TestFieldCipher_NilIsIdentity(t *testing.T) {
	var c *FieldCipher

	sealed, err := c.Encrypt("a@b.com")
	if err != nil || sealed != "a@b.com" {
		t.Errorf("nil Encrypt = %q, %v", sealed, err)
	}
	plain, err := c.Decrypt("a@b.com")
	if err != nil || plain != "a@b.com" {
		t.Errorf("nil Decrypt = %q, %v", plain, err)
	}
}

func TestNewFieldCipher_EmptyKey(t *testing.T) {
	c, err := NewFieldCipher(nil)
	if err != nil {
		t.Fatalf("NewFieldCipher(nil): %v", err)
	}
	if c != nil {
		t.Error("NewFieldCipher(nil) should return nil cipher")
	}
}

func TestNewFieldCipher_BadKeyLength(t *testing.T) {
	if _, err := NewFieldCipher(bytes.Repeat([]byte{1}, 16)); err == nil {
		t.Error("NewFieldCipher should reject 16-byte key")
	}
}

func TestFieldCipher_DecryptGarbage(t *testing.T) {
	c, err := NewFieldCipher(testKey())
	if err != nil {
		t.Fatalf("NewFieldCipher: %v", err)
	}

	if _, err := c.Decrypt("not base64 %%%"); err == nil {
		t.Error("Decrypt should fail on invalid encoding")
	}
	if _, err := c.Decrypt("AAAA"); err == nil {
		t.Error("Decrypt should fail on truncated value")
	}
}
