// Package sigil generates opaque keyed identifiers.
//
// A sigil is a pseudo-random hex string derived from a basis string and a
// server-held entropy key. It is an identifier, not a cryptographic
// signature: nothing ever verifies a sigil, callers only rely on it being
// opaque, stable for a given basis, and unforgeable without the key.
package sigil

import (
	"crypto/hmac"
	crand "crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrEmptyKey indicates the generator was built without an entropy key.
var ErrEmptyKey = errors.New("entropy key is required")

// Generator derives opaque identifiers under a fixed entropy key.
type Generator struct {
	key []byte
}

// NewGenerator builds a generator from the server entropy key.
func NewGenerator(key []byte) (*Generator, error) {
	if len(key) == 0 {
		return nil, ErrEmptyKey
	}
	return &Generator{key: append([]byte(nil), key...)}, nil
}

// Derive returns the sigil for a basis string. The same basis under the
// same key always yields the same 64-character lowercase hex identifier.
func (g *Generator) Derive(basis string) string {
	mac := hmac.New(sha256.New, g.key)
	mac.Write([]byte(basis))
	return hex.EncodeToString(mac.Sum(nil))
}

// Nonce returns a random 32-character hex component for callers that need
// a unique basis per derivation.
func Nonce() (string, error) {
	var raw [16]byte
	if _, err := crand.Read(raw[:]); err != nil {
		return "", fmt.Errorf("read nonce bytes: %w", err)
	}
	return hex.EncodeToString(raw[:]), nil
}
