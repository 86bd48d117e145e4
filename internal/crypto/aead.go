package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
)

// nonceSize is the standard 96-bit GCM nonce size.
const nonceSize = 12

// ErrCiphertextTooShort is returned when a ciphertext is too short to
// contain a nonce.
var ErrCiphertextTooShort = errors.New("crypto: ciphertext shorter than nonce")

// SessionCipher wraps AES-256-GCM for a single NTP session, keyed by
// the session key derived in the X25519 handshake.
type SessionCipher struct {
	aead cipher.AEAD
}

// NewSessionCipher builds a SessionCipher from a 32-byte AES-256 key.
func NewSessionCipher(key []byte) (*SessionCipher, error) {
	if len(key) != SessionKeySize {
		return nil, ErrInvalidKeySize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: build aes cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: build gcm aead: %w", err)
	}
	return &SessionCipher{aead: aead}, nil
}

// Seal encrypts plaintext with a fresh random nonce, returning
// nonce||ciphertext||tag. additionalData is authenticated but not
// encrypted (e.g. the session id, to bind ciphertexts to their
// session).
func (c *SessionCipher) Seal(plaintext, additionalData []byte) ([]byte, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypto: generate nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, plaintext, additionalData), nil
}

// Open decrypts a nonce||ciphertext||tag blob produced by Seal.
func (c *SessionCipher) Open(sealed, additionalData []byte) ([]byte, error) {
	if len(sealed) < nonceSize {
		return nil, ErrCiphertextTooShort
	}
	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, additionalData)
	if err != nil {
		return nil, ErrVerifyFailed
	}
	return plaintext, nil
}
