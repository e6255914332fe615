package server

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/halcyonic/ensemble.space/internal/flux"
)

const (
	// silenceMessage stands in for an oracle response with no content.
	silenceMessage = "the oracle is silent"

	// echoPrefix marks the transparent low-volatility rendering.
	echoPrefix = "echo: "

	highVolatilityThreshold = 0.7
	lowVolatilityThreshold  = 0.3

	obscuredDigestLength = 30
	fragmentLength       = 50
	waveFragmentLength   = 32
	clientPrefixLength   = 8

	ellipsis = "..."
)

// interpretResonance reshapes an oracle response for one client based on
// its volatility: high-volatility clients get an irreversible digest
// prefix, low-volatility clients get a literal echo, and mid-volatility
// clients get profile-seeded noise.
func interpretResonance(response map[string]any, state State) string {
	core := coreMessage(response)
	if core == "" {
		return silenceMessage
	}

	switch {
	case state.Volatility > highVolatilityThreshold:
		sum := sha256.Sum256([]byte(core))
		return hex.EncodeToString(sum[:])[:obscuredDigestLength] + ellipsis
	case state.Volatility < lowVolatilityThreshold:
		return echoPrefix + core
	default:
		return flux.Mutate(core, state.Profile)
	}
}

// coreMessage extracts the response's message field, falling back to the
// serialized response when the field is missing.
func coreMessage(response map[string]any) string {
	if len(response) == 0 {
		return ""
	}
	if msg, ok := response["message"].(string); ok && strings.TrimSpace(msg) != "" {
		return msg
	}
	raw, err := json.Marshal(response)
	if err != nil {
		return ""
	}
	return string(raw)
}

// clientPrefix returns the public 8-character form of a client id.
func clientPrefix(clientID string) string {
	if len(clientID) <= clientPrefixLength {
		return clientID
	}
	return clientID[:clientPrefixLength]
}

// truncateWithEllipsis caps a string at limit runes and appends an
// ellipsis marker.
func truncateWithEllipsis(s string, limit int) string {
	runes := []rune(s)
	if len(runes) > limit {
		runes = runes[:limit]
	}
	return string(runes) + ellipsis
}
