// Package sealer encrypts short secrets, such as provider client secrets,
// before they are stored.
package sealer

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Prefix marks a sealed value. Values without it are returned unchanged by
// Open, so secrets stored before a key was configured stay readable.
const Prefix = "sealed:v1:"

var ErrNoKey = errors.New("value is sealed but no sealing key is configured")

// Sealer is safe for concurrent use. A nil *Sealer passes values through.
type Sealer struct {
	aead cipher.AEAD
}

// New builds a Sealer from a base64 encoded AES key of 16, 24 or 32 bytes.
// An empty key yields a nil Sealer.
func New(encodedKey string) (*Sealer, error) {
	if encodedKey == "" {
		return nil, nil
	}

	key, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("sealing key is not valid base64: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Sealer{aead: aead}, nil
}

func (s *Sealer) Seal(plaintext string) (string, error) {
	if s == nil || plaintext == "" || strings.HasPrefix(plaintext, Prefix) {
		return plaintext, nil
	}

	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ct := s.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return Prefix + base64.RawURLEncoding.EncodeToString(ct), nil
}

func (s *Sealer) Open(value string) (string, error) {
	encoded, sealed := strings.CutPrefix(value, Prefix)
	if !sealed {
		return value, nil
	}
	if s == nil {
		return "", ErrNoKey
	}

	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}

	nonceSize := s.aead.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("sealed value too short")
	}

	pt, err := s.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", err
	}
	return string(pt), nil
}
