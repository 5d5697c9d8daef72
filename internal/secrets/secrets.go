// Package secrets decrypts upstream credentials stored at rest.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// ErrDecrypt marks ciphertext that could not be opened with the configured
// key, local corruption or misconfiguration rather than a caller mistake.
var ErrDecrypt = errors.New("secrets: decrypt failed")

// Decrypter turns an encrypted stored secret into a plaintext password.
type Decrypter interface {
	Decrypt(ciphertext []byte) (string, error)
}

// AESGCM implements Decrypter with AES-256-GCM. The ciphertext layout is
// nonce || sealed.
type AESGCM struct {
	aead cipher.AEAD
}

// NewAESGCM builds a cipher from a hex-encoded 32-byte key.
func NewAESGCM(hexKey string) (*AESGCM, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("credential key is not valid hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("credential key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &AESGCM{aead: aead}, nil
}

func (a *AESGCM) Decrypt(ciphertext []byte) (string, error) {
	ns := a.aead.NonceSize()
	if len(ciphertext) < ns {
		return "", fmt.Errorf("%w: ciphertext shorter than nonce", ErrDecrypt)
	}
	plain, err := a.aead.Open(nil, ciphertext[:ns], ciphertext[ns:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return string(plain), nil
}

// Encrypt seals a plaintext password for storage. Used by the operator CLI
// when registering credentials.
func (a *AESGCM) Encrypt(plaintext string) ([]byte, error) {
	nonce := make([]byte, a.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return a.aead.Seal(nonce, nonce, []byte(plaintext), nil), nil
}
