// File: internal/infra/security/encryption_service.go
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// EncryptionService seals values at rest with AES-GCM. Each ciphertext is
// bound to a context string (for tokens: the storage key) so a value copied
// under another key fails to open.
type EncryptionService struct {
	gcm cipher.AEAD
}

// NewEncryptionService builds an AES-256-GCM service. Keys of 16, 24 or 32
// bytes are used as-is; any other non-empty secret is stretched with SHA-256.
func NewEncryptionService(secret string) (*EncryptionService, error) {
	if secret == "" {
		return nil, errors.New("encryption key is empty")
	}
	k := []byte(secret)
	switch len(k) {
	case 16, 24, 32:
	default:
		sum := sha256.Sum256(k)
		k = sum[:]
	}
	block, err := aes.NewCipher(k)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return &EncryptionService{gcm: gcm}, nil
}

// Encrypt returns base64(nonce || ciphertext).
func (e *EncryptionService) Encrypt(plaintext, bindTo string) (string, error) {
	nonce := make([]byte, e.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}
	ct := e.gcm.Seal(nonce, nonce, []byte(plaintext), []byte(bindTo))
	return base64.StdEncoding.EncodeToString(ct), nil
}

// Decrypt reverses Encrypt; bindTo must match the value used to encrypt.
func (e *EncryptionService) Decrypt(b64, bindTo string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}
	ns := e.gcm.NonceSize()
	if len(data) < ns {
		return "", errors.New("ciphertext too short")
	}
	pt, err := e.gcm.Open(nil, data[:ns], data[ns:], []byte(bindTo))
	if err != nil {
		return "", fmt.Errorf("gcm open: %w", err)
	}
	return string(pt), nil
}
