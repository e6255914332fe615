// Package envelope implements the two-layer encryption wrapper used to
// transport oracle queries.
//
// The inner layer seals the inquiry under a single-use key. The outer
// layer seals the full envelope, inquiry ciphertext plus context vector,
// under the long-lived master key shared with the oracle. Responses travel
// back under the master key only.
package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	crand "crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// Sealer seals and opens byte payloads using AES-GCM.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer builds an AES-GCM sealer from a raw AES key.
// key must be a valid AES length (16/24/32 bytes).
func NewSealer(key []byte) (*Sealer, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

// Seal encrypts one plaintext and returns a base64-encoded payload.
func (s *Sealer) Seal(plaintext []byte) (string, error) {
	if s == nil || s.aead == nil {
		return "", fmt.Errorf("sealer is not configured")
	}

	// AES-GCM requires a unique nonce per encryption under the same key.
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(crand.Reader, nonce); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}

	ciphertext := s.aead.Seal(nil, nonce, plaintext, nil)
	// Transport format is nonce || ciphertext, encoded in raw base64.
	payload := append(nonce, ciphertext...)
	return base64.RawStdEncoding.EncodeToString(payload), nil
}

// Open decrypts one previously sealed payload.
func (s *Sealer) Open(sealed string) ([]byte, error) {
	if s == nil || s.aead == nil {
		return nil, fmt.Errorf("sealer is not configured")
	}

	payload, err := base64.RawStdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, fmt.Errorf("decode sealed value: %w", err)
	}

	nonceSize := s.aead.NonceSize()
	if len(payload) < nonceSize {
		return nil, fmt.Errorf("sealed value is too short")
	}
	// Payload format is nonce || ciphertext.
	nonce := payload[:nonceSize]
	ciphertext := payload[nonceSize:]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt sealed value: %w", err)
	}
	return plaintext, nil
}

// queryEnvelope is the serialized form sealed under the master key.
type queryEnvelope struct {
	QuerySegment  string `json:"query_segment"`
	ContextVector []any  `json:"context_vector"`
}

// Codec seals queries for transport and opens oracle responses.
type Codec struct {
	master *Sealer
}

// NewCodec builds a codec from the master key material. The material is
// folded through SHA-256 so operators may configure keys of any length.
func NewCodec(masterKey []byte) (*Codec, error) {
	if len(masterKey) == 0 {
		return nil, fmt.Errorf("master key is required")
	}
	derived := sha256.Sum256(masterKey)
	master, err := NewSealer(derived[:])
	if err != nil {
		return nil, fmt.Errorf("build master sealer: %w", err)
	}
	return &Codec{master: master}, nil
}

// SealQuery wraps an inquiry for transport: the inquiry is sealed under a
// freshly generated single-use key, combined with the context values in
// sorted key order, and the whole envelope is sealed under the master key.
func (c *Codec) SealQuery(inquiry string, queryContext map[string]any) (string, error) {
	if c == nil || c.master == nil {
		return "", fmt.Errorf("codec is not configured")
	}

	ephemeral := make([]byte, 32)
	if _, err := io.ReadFull(crand.Reader, ephemeral); err != nil {
		return "", fmt.Errorf("read ephemeral key: %w", err)
	}
	inner, err := NewSealer(ephemeral)
	if err != nil {
		return "", fmt.Errorf("build ephemeral sealer: %w", err)
	}
	segment, err := inner.Seal([]byte(inquiry))
	if err != nil {
		return "", fmt.Errorf("seal inquiry: %w", err)
	}

	keys := make([]string, 0, len(queryContext))
	for key := range queryContext {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	vector := make([]any, 0, len(keys))
	for _, key := range keys {
		vector = append(vector, queryContext[key])
	}

	raw, err := json.Marshal(queryEnvelope{
		QuerySegment:  segment,
		ContextVector: vector,
	})
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}
	return c.master.Seal(raw)
}

// Open decrypts a master-key sealed payload, typically an oracle response.
func (c *Codec) Open(sealed string) ([]byte, error) {
	if c == nil || c.master == nil {
		return nil, fmt.Errorf("codec is not configured")
	}
	return c.master.Open(sealed)
}

// Seal encrypts an arbitrary payload under the master key. The oracle side
// of the contract uses the same framing for responses.
func (c *Codec) Seal(plaintext []byte) (string, error) {
	if c == nil || c.master == nil {
		return "", fmt.Errorf("codec is not configured")
	}
	return c.master.Seal(plaintext)
}
