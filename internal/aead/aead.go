// Package aead implements the SLLL authenticated-encryption construction:
// AES-GCM with a 96-bit counter-derived nonce and the packet header
// bound as associated data.
//
// This supersedes the truncated 4-byte-nonce/4-byte-tag scheme the
// teacher firmware used (see internal/protocol for the header layout
// that scheme also diverges from) — spec.md §9 calls that variant
// obsolete and explicitly not to be interoperable with this one.
package aead

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

// validKeySize reports whether n is one of the AES key sizes the AEAD
// construction accepts.
func validKeySize(n int) bool {
	return n == 16 || n == 24 || n == 32
}

// ErrInvalidKeySize is returned when a key is not 16, 24, or 32 bytes.
var ErrInvalidKeySize = fmt.Errorf("aead: key must be 16, 24, or 32 bytes")

// ErrAuthFailed is returned when AES-GCM tag verification fails. The
// caller must not inspect any data returned alongside this error.
var ErrAuthFailed = fmt.Errorf("aead: authentication failed")

// Seal encrypts plaintext under key using nonce and binds aad (the
// packet header) as associated data. It returns the ciphertext and the
// 16-byte authentication tag as two separate slices, matching the wire
// layout where the tag trails the ciphertext.
func Seal(key, nonce, plaintext, aad []byte) (ciphertext, tag []byte, err error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, nil, fmt.Errorf("aead: nonce must be %d bytes", gcm.NonceSize())
	}

	sealed := gcm.Seal(nil, nonce, plaintext, aad)
	tagStart := len(sealed) - gcm.Overhead()
	return sealed[:tagStart], sealed[tagStart:], nil
}

// Open verifies tag and decrypts ciphertext under key, nonce, and aad.
// On any tag mismatch it returns ErrAuthFailed and a nil plaintext;
// callers must never act on a non-nil error's companion return value.
func Open(key, nonce, ciphertext, tag, aad []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("aead: nonce must be %d bytes", gcm.NonceSize())
	}
	if len(tag) != gcm.Overhead() {
		return nil, fmt.Errorf("aead: tag must be %d bytes", gcm.Overhead())
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := gcm.Open(nil, nonce, sealed, aad)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if !validKeySize(len(key)) {
		return nil, ErrInvalidKeySize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aead: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("aead: %w", err)
	}
	return gcm, nil
}
