package server

import (
	"fmt"
	"sync"

	"github.com/halcyonic/ensemble.space/internal/platform/id"
)

// PairTable is the process-wide table of entangled value pairs. Entries
// are additive: nothing evicts them before process restart.
type PairTable struct {
	mu    sync.Mutex
	pairs map[string][2]any
}

// NewPairTable builds an empty table.
func NewPairTable() *PairTable {
	return &PairTable{pairs: make(map[string][2]any)}
}

// CreatePair stores two arbitrary values under a fresh opaque id.
func (t *PairTable) CreatePair(first, second any) (string, error) {
	pairID, err := id.NewID()
	if err != nil {
		return "", fmt.Errorf("generate pair id: %w", err)
	}

	t.mu.Lock()
	t.pairs[pairID] = [2]any{first, second}
	t.mu.Unlock()
	return pairID, nil
}

// QueryPair returns the values stored under an id.
func (t *PairTable) QueryPair(pairID string) (any, any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	pair, ok := t.pairs[pairID]
	if !ok {
		return nil, nil, false
	}
	return pair[0], pair[1], true
}

// Len reports the number of stored pairs.
func (t *PairTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pairs)
}
