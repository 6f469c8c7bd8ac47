package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"strings"
)

// encryptedPrefix marks stored values produced by Cipher.Encrypt, so rows
// written before a key was configured still read back as plain text.
const encryptedPrefix = "enc:v1:"

var (
	ErrKeyNotBase64    = errors.New("encryption key must be base64-encoded")
	ErrKeyLength       = errors.New("encryption key must decode to exactly 32 bytes (256 bits)")
	ErrCiphertextShort = errors.New("ciphertext too short")
)

// Cipher encrypts free-text health fields with AES-256-GCM.
// A nil *Cipher is valid and passes values through unchanged.
type Cipher struct {
	aead cipher.AEAD
}

// ParseEncryptionKey decodes a base64 32-byte key.
func ParseEncryptionKey(keyBase64 string) ([]byte, error) {
	keyBytes, err := base64.StdEncoding.DecodeString(strings.TrimSpace(keyBase64))
	if err != nil {
		return nil, ErrKeyNotBase64
	}
	if len(keyBytes) != 32 {
		return nil, ErrKeyLength
	}
	return keyBytes, nil
}

// NewCipher returns nil, nil for an empty key.
func NewCipher(keyBase64 string) (*Cipher, error) {
	if keyBase64 == "" {
		return nil, nil
	}
	key, err := ParseEncryptionKey(keyBase64)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Cipher{aead: gcm}, nil
}

// Encrypt encrypts plaintext using AES-256-GCM
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if c == nil || plaintext == "" {
		return plaintext, nil
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return encryptedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt decrypts ciphertext using AES-256-GCM
func (c *Cipher) Decrypt(stored string) (string, error) {
	if c == nil || !strings.HasPrefix(stored, encryptedPrefix) {
		return stored, nil
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, encryptedPrefix))
	if err != nil {
		return "", err
	}

	nonceSize := c.aead.NonceSize()
	if len(data) < nonceSize {
		return "", ErrCiphertextShort
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
