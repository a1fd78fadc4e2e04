// Package cryptox implements the symmetric crypto primitives used to derive
// device keys and to seal/open every framed record and session header on the
// wire: SHA-256 key derivation and AES-GCM with an explicit 16-byte nonce.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
)

// NonceSize is the fixed GCM nonce length used on the wire (session header
// and every framed record), per spec §3/§4.1.
const NonceSize = 16

// TagSize is the GCM authentication tag length.
const TagSize = 16

// ErrAuthFailed is returned by Open when decryption or authentication fails.
// No partial plaintext is ever returned alongside this error.
var ErrAuthFailed = errors.New("cryptox: authentication failed")

// DeriveKey returns the SHA-256 digest of the UTF-8 encoding of password.
func DeriveKey(password string) [32]byte {
	return sha256.Sum256([]byte(password))
}

// newGCM builds an AES-GCM cipher configured to accept NonceSize-byte nonces.
func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cryptox: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, NonceSize)
	if err != nil {
		return nil, fmt.Errorf("cryptox: new gcm: %w", err)
	}
	return gcm, nil
}

// Seal encrypts plaintext under key, returning nonce‖ciphertext‖tag.
func Seal(plaintext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("cryptox: read nonce: %w", err)
	}

	// Seal appends ciphertext+tag to the dst slice; passing nonce as dst
	// yields nonce‖ciphertext‖tag directly.
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts buf (nonce‖ciphertext‖tag) under key. Any authentication or
// format failure returns ErrAuthFailed with no partial plaintext.
func Open(buf, key []byte) ([]byte, error) {
	if len(buf) < NonceSize+TagSize {
		return nil, ErrAuthFailed
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, ErrAuthFailed
	}

	nonce := buf[:NonceSize]
	ciphertextAndTag := buf[NonceSize:]

	plaintext, err := gcm.Open(nil, nonce, ciphertextAndTag, nil)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}
