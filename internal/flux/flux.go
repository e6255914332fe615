// Package flux implements the payload reshaping primitives used when
// relaying oracle output and peer waves.
//
// # Determinism
//
// Mutate is deterministic with respect to its inputs: the random source
// driving each round is reseeded from a digest of (data, profile) on every
// call, so repeated calls with identical inputs produce identical output
// regardless of call ordering. Transmute is a pure one-way digest with no
// decoding path.
package flux

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/rand"
	"strconv"
)

const (
	substituteChance = 0.3
	deleteChance     = 0.3
	shuffleChance    = 0.2

	maxMutationRounds = 4
)

const mutationAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Mutate applies 1-4 rounds of profile-seeded noise to data. Each round
// independently may substitute one character, delete one character, and
// shuffle all characters, evaluated in that order. Empty input is returned
// unchanged.
func Mutate(data string, profile int) string {
	seed := mutationSeed(data, profile)
	rng := rand.New(rand.NewSource(seed))

	runes := []rune(data)
	rounds := 1 + rng.Intn(maxMutationRounds)
	for round := 0; round < rounds; round++ {
		if rng.Float64() < substituteChance && len(runes) > 0 {
			at := rng.Intn(len(runes))
			runes[at] = rune(mutationAlphabet[rng.Intn(len(mutationAlphabet))])
		}
		if rng.Float64() < deleteChance && len(runes) > 0 {
			at := rng.Intn(len(runes))
			runes = append(runes[:at], runes[at+1:]...)
		}
		if rng.Float64() < shuffleChance {
			rng.Shuffle(len(runes), func(i, j int) {
				runes[i], runes[j] = runes[j], runes[i]
			})
		}
	}
	return string(runes)
}

// Transmute serializes payload, appends a textual form of key, and returns
// the first 64 hex characters of a SHA-256 digest. The transformation is
// deterministic and irreversible.
func Transmute(payload any, key any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	raw = append(raw, []byte(fmt.Sprint(key))...)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// mutationSeed folds data and profile into a stable 64-bit seed.
func mutationSeed(data string, profile int) int64 {
	h := sha256.New()
	h.Write([]byte(data))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(profile)))
	sum := h.Sum(nil)
	return int64(binary.LittleEndian.Uint64(sum[:8]))
}
