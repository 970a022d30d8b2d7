// Package codec seals and opens message payloads.
//
// Blob format:
//
//	[Version: 1 byte (0x01)] [Nonce: 24 bytes (random)] [Ciphertext+Tag: N+16 bytes]
//
// The version byte and a caller-supplied binding (the group id for
// messages) are authenticated as associated data, so a blob copied into
// another group fails to open.
package codec

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// Version is the first byte of every sealed blob.
const Version byte = 0x01

// Overhead is the size difference between a sealed blob and its plaintext.
const Overhead = 1 + chacha20poly1305.NonceSizeX + chacha20poly1305.Overhead

// MinSecretLength is the shortest configured secret accepted by New.
const MinSecretLength = 32

var hkdfInfo = []byte("huddle.message.v1")

// ErrTampered is returned when a blob fails authentication.
var ErrTampered = errors.New("message blob failed authentication")

// Codec encrypts message text with XChaCha20-Poly1305. It is safe for
// concurrent use; its key never changes after New.
type Codec struct {
	key []byte
}

// New derives the message key from secret with HKDF-SHA256.
func New(secret string) (*Codec, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("message key must be at least %d characters", MinSecretLength)
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, hkdfInfo), key); err != nil {
		return nil, fmt.Errorf("derive message key: %w", err)
	}
	return &Codec{key: key}, nil
}

// Encrypt seals plaintext bound to binding.
func (c *Codec) Encrypt(plaintext string, binding []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	var nonce [chacha20poly1305.NonceSizeX]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	out := make([]byte, 1+len(nonce), Overhead+len(plaintext))
	out[0] = Version
	copy(out[1:], nonce[:])
	return aead.Seal(out, nonce[:], []byte(plaintext), aad(Version, binding)), nil
}

// Decrypt opens a blob produced by Encrypt with the same binding.
// Any truncation, bit flip, wrong binding, or wrong key yields ErrTampered.
func (c *Codec) Decrypt(blob []byte, binding []byte) (string, error) {
	if len(blob) < Overhead {
		return "", fmt.Errorf("%w: blob is %d bytes, minimum is %d", ErrTampered, len(blob), Overhead)
	}
	if blob[0] != Version {
		return "", fmt.Errorf("%w: unsupported version %d", ErrTampered, blob[0])
	}

	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}
	nonce := blob[1 : 1+chacha20poly1305.NonceSizeX]
	plain, err := aead.Open(nil, nonce, blob[1+chacha20poly1305.NonceSizeX:], aad(blob[0], binding))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTampered, err)
	}
	return string(plain), nil
}

func aad(version byte, binding []byte) []byte {
	b := make([]byte, 1+len(binding))
	b[0] = version
	copy(b[1:], binding)
	return b
}
