package transform

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// Cipher is the opaque encryption transform applied to a frame
// payload when a session's encrypt flag is on, keyed from the
// handshake's connection_key (spec.md §4.8). Grounded on kryptco-kr's
// use of golang.org/x/crypto for its AEAD primitives — this wraps the
// library rather than implementing AEAD construction by hand.
type Cipher interface {
	Seal(plain []byte) (nonce []byte, ciphertext []byte, err error)
	Open(nonce []byte, ciphertext []byte) ([]byte, error)
}

type chachaCipher struct {
	aead interface {
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
		NonceSize() int
	}
}

// NewCipher derives a 256-bit key from SHA-256(connectionKey) and
// builds a ChaCha20-Poly1305 AEAD cipher. An empty connectionKey is
// rejected: encryption without a shared secret is not meaningful.
func NewCipher(connectionKey string) (Cipher, error) {
	if connectionKey == "" {
		return nil, fmt.Errorf("transform: connection_key required to derive an encryption key")
	}
	key := sha256.Sum256([]byte(connectionKey))
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, fmt.Errorf("transform: building aead: %w", err)
	}
	return &chachaCipher{aead: aead}, nil
}

func (c *chachaCipher) Seal(plain []byte) ([]byte, []byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("transform: generating nonce: %w", err)
	}
	ciphertext := c.aead.Seal(nil, nonce, plain, nil)
	return nonce, ciphertext, nil
}

func (c *chachaCipher) Open(nonce, ciphertext []byte) ([]byte, error) {
	if len(nonce) != c.aead.NonceSize() {
		return nil, fmt.Errorf("transform: nonce size %d, want %d", len(nonce), c.aead.NonceSize())
	}
	plain, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("transform: decryption failed: %w", err)
	}
	return plain, nil
}
