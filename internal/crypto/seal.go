// Package crypto seals local secrets at rest and derives keys from the daemon secret.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// Argon2id parameters.
const (
	argonTime    uint32 = 3         // iterations
	argonMemory  uint32 = 64 * 1024 // 64 MB
	argonThreads uint8  = 1

	KeyLen  = 32
	SaltLen = 16
)

// ErrSealed indicates a sealed value that is truncated or fails authentication.
var ErrSealed = errors.New("sealed value invalid")

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// DeriveKey stretches a passphrase into a key with Argon2id.
func DeriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, argonTime, argonMemory, argonThreads, KeyLen)
}

// Subkey derives a purpose-bound key from master via HKDF-SHA256 with info as context.
func Subkey(master []byte, info string) ([]byte, error) {
	r := hkdf.New(sha256.New, master, nil, []byte(info))
	key := make([]byte, KeyLen)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

// Seal encrypts plaintext with XChaCha20-Poly1305: nonce || ciphertext.
func Seal(key, plaintext, aad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce, err := RandBytes(chacha20poly1305.NonceSizeX)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, nonce...)
	out = append(out, aead.Seal(nil, nonce, plaintext, aad)...)
	return out, nil
}

// Open reverses Seal with the same key and aad.
func Open(key, sealed, aad []byte) ([]byte, error) {
	if len(sealed) < chacha20poly1305.NonceSizeX {
		return nil, ErrSealed
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce := sealed[:chacha20poly1305.NonceSizeX]
	pt, err := aead.Open(nil, nonce, sealed[chacha20poly1305.NonceSizeX:], aad)
	if err != nil {
		return nil, ErrSealed
	}
	return pt, nil
}

// SealWithPassphrase derives a key from passphrase and a fresh salt: salt || nonce || ciphertext.
func SealWithPassphrase(passphrase, plaintext, aad []byte) ([]byte, error) {
	salt, err := RandBytes(SaltLen)
	if err != nil {
		return nil, err
	}
	ct, err := Seal(DeriveKey(passphrase, salt), plaintext, aad)
	if err != nil {
		return nil, err
	}
	return append(salt, ct...), nil
}

// OpenWithPassphrase reverses SealWithPassphrase.
func OpenWithPassphrase(passphrase, sealed, aad []byte) ([]byte, error) {
	if len(sealed) < SaltLen {
		return nil, ErrSealed
	}
	return Open(DeriveKey(passphrase, sealed[:SaltLen]), sealed[SaltLen:], aad)
}
