package secrets

import (
	"errors"
	"strings"
	"testing"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestRoundTrip(t *testing.T) {
	c, err := NewAESGCM(testKey)
	if err != nil {
		t.Fatalf("NewAESGCM: %v", err)
	}
	ct, err := c.Encrypt("hunter2")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	got, err := c.Decrypt(ct)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if got != "hunter2" {
		t.Fatalf("Decrypt = %q", got)
	}
}

func TestDecrypt_TamperedCiphertext(t *testing.T) {
	c, _ := NewAESGCM(testKey)
	ct, _ := c.Encrypt("hunter2")
	ct[len(ct)-1] ^= 0xff
	if _, err := c.Decrypt(ct); !errors.Is(err, ErrDecrypt) {
		t.Fatalf("expected ErrDecrypt, got %v", err)
	}
}

func TestDecrypt_TooShort(t *testing.T) {
	c, _ := NewAESGCM(testKey)
	if _, err := c.Decrypt([]byte{1, 2, 3}); !errors.Is(err, ErrDecrypt) {
		t.Fatalf("expected ErrDecrypt, got %v", err)
	}
}

func TestNewAESGCM_BadKey(t *testing.T) {
	if _, err := NewAESGCM("zz"); err == nil {
		t.Fatal("expected error for non-hex key")
	}
	if _, err := NewAESGCM(strings.Repeat("ab", 16)); err == nil {
		t.Fatal("expected error for 16-byte key")
	}
}
