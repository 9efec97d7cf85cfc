package secrets

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

const (
	envelopePrefix    = "rewards.secret.v1:"
	envelopeAlgorithm = "aes-256-gcm"
)

type envelope struct {
	KeyID      string `json:"kid"`
	Version    int    `json:"ver"`
	Algorithm  string `json:"alg"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// Keyset seals and opens secret envelopes with a single symmetric key.
// Key material of any length is accepted; non-AES lengths are hashed
// down to a 256-bit key.
type Keyset struct {
	key     []byte
	keyID   string
	version int
}

type KeysetOption func(*Keyset)

func WithKeyID(id string) KeysetOption {
	return func(k *Keyset) {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			k.keyID = trimmed
		}
	}
}

func WithKeyVersion(version int) KeysetOption {
	return func(k *Keyset) {
		if version > 0 {
			k.version = version
		}
	}
}

func NewKeyset(keyMaterial []byte, options ...KeysetOption) (*Keyset, error) {
	key := bytes.TrimSpace(keyMaterial)
	if len(key) == 0 {
		return nil, fmt.Errorf("secrets: key material is required")
	}
	keyset := &Keyset{
		key:     normalizeKey(key),
		keyID:   "app-key",
		version: 1,
	}
	for _, option := range options {
		if option != nil {
			option(keyset)
		}
	}
	return keyset, nil
}

func (k *Keyset) Seal(plaintext []byte) (string, error) {
	if k == nil {
		return "", fmt.Errorf("secrets: keyset is nil")
	}
	if len(plaintext) == 0 {
		return "", fmt.Errorf("secrets: plaintext is required")
	}
	gcm, err := k.cipher()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("secrets: nonce generation failed: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, plaintext, nil)
	data, err := json.Marshal(envelope{
		KeyID:      k.keyID,
		Version:    k.version,
		Algorithm:  envelopeAlgorithm,
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(sealed),
	})
	if err != nil {
		return "", fmt.Errorf("secrets: encode envelope: %w", err)
	}
	return envelopePrefix + string(data), nil
}

func (k *Keyset) Open(sealed string) ([]byte, error) {
	if k == nil {
		return nil, fmt.Errorf("secrets: keyset is nil")
	}
	payload := strings.TrimSpace(sealed)
	if payload == "" {
		return nil, fmt.Errorf("secrets: sealed value is required")
	}
	if !strings.HasPrefix(payload, envelopePrefix) {
		return nil, fmt.Errorf("secrets: invalid envelope prefix")
	}
	payload = strings.TrimPrefix(payload, envelopePrefix)

	var parsed envelope
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return nil, fmt.Errorf("secrets: decode envelope: %w", err)
	}
	if parsed.KeyID != "" && parsed.KeyID != k.keyID {
		return nil, fmt.Errorf("secrets: key id mismatch: got %q want %q", parsed.KeyID, k.keyID)
	}
	if parsed.Version > 0 && parsed.Version != k.version {
		return nil, fmt.Errorf("secrets: key version mismatch: got %d want %d", parsed.Version, k.version)
	}

	nonce, err := base64.StdEncoding.DecodeString(parsed.Nonce)
	if err != nil {
		return nil, fmt.Errorf("secrets: decode nonce: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(parsed.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("secrets: decode ciphertext: %w", err)
	}

	gcm, err := k.cipher()
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("secrets: open envelope: %w", err)
	}
	return plaintext, nil
}

// IsSealed reports whether a value carries the envelope prefix, so
// sources can store plaintext and sealed values side by side during a
// migration.
func IsSealed(value string) bool {
	return strings.HasPrefix(strings.TrimSpace(value), envelopePrefix)
}

func (k *Keyset) cipher() (cipher.AEAD, error) {
	block, err := aes.NewCipher(k.key)
	if err != nil {
		return nil, fmt.Errorf("secrets: create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("secrets: create gcm: %w", err)
	}
	return gcm, nil
}

func normalizeKey(value []byte) []byte {
	if len(value) == 16 || len(value) == 24 || len(value) == 32 {
		key := make([]byte, len(value))
		copy(key, value)
		return key
	}
	sum := sha256.Sum256(value)
	key := make([]byte, len(sum))
	copy(key, sum[:])
	return key
}
