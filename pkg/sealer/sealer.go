package sealer

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
)

// Sealer issues opaque booking tokens for availability listings. A token
// seals the (doctor id, slot id) pair so clients cannot enumerate or tamper
// with raw slot identifiers between listing and booking.
type Sealer struct {
	aead cipher.AEAD
}

// New builds a Sealer from a base64-encoded AES-256 key.
func New(keyB64 string) (*Sealer, error) {
	key, err := base64.StdEncoding.DecodeString(keyB64)
	if err != nil {
		return nil, fmt.Errorf("invalid sealer key encoding: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("invalid sealer key: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &Sealer{aead: aead}, nil
}

// SealSlotToken produces an opaque, URL-safe token for a doctor/slot pair.
func (s *Sealer) SealSlotToken(doctorID, slotID string) (string, error) {
	plaintext := []byte(doctorID + ":" + slotID)

	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ct := s.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(ct), nil
}

// OpenSlotToken reverses SealSlotToken, returning the doctor and slot ids.
func (s *Sealer) OpenSlotToken(token string) (doctorID string, slotID string, err error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", "", fmt.Errorf("malformed slot token: %w", err)
	}

	nonceSize := s.aead.NonceSize()
	if len(raw) < nonceSize {
		return "", "", fmt.Errorf("malformed slot token: too short")
	}

	plaintext, err := s.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return "", "", fmt.Errorf("invalid slot token: %w", err)
	}

	parts := strings.SplitN(string(plaintext), ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid slot token payload")
	}

	return parts[0], parts[1], nil
}
