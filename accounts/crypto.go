package accounts

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"

	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
)

// Cipher encrypts portal passwords at rest. Unlike a password hash, the
// stored credential must be recoverable: token refresh is a full re-login
// against the portal.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher creates a Cipher from a hex-encoded 32-byte key.
func NewCipher(hexKey string) (*Cipher, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, errors.Wrap(err, "[NewCipher] CREDENTIAL_KEY is not valid hex")
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, errors.Errorf("[NewCipher] key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, errors.Wrap(err, "[NewCipher] chacha20poly1305.NewX")
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt seals a plaintext password. The random nonce is prefixed to the
// ciphertext so each stored credential is self-contained.
func (c *Cipher) Encrypt(plaintext string) ([]byte, error) {
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, errors.Wrap(err, "[Cipher.Encrypt] rand.Read")
	}
	return c.aead.Seal(nonce, nonce, []byte(plaintext), nil), nil
}

// Decrypt opens a nonce-prefixed ciphertext produced by Encrypt.
func (c *Cipher) Decrypt(data []byte) (string, error) {
	if len(data) < chacha20poly1305.NonceSizeX {
		return "", errors.New("[Cipher.Decrypt] ciphertext too short")
	}
	nonce, ciphertext := data[:chacha20poly1305.NonceSizeX], data[chacha20poly1305.NonceSizeX:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", errors.Wrap(err, "[Cipher.Decrypt] aead.Open")
	}
	return string(plaintext), nil
}
