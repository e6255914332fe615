package server

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/halcyonic/ensemble.space/internal/sigil"
)

// Ensemble groups client identities for room-scoped broadcast.
//
// Participants are client ids, not connection ids, so membership survives
// a participant's session churn. The entangled state is initialized at
// creation and reserved for future cross-ensemble interaction.
type Ensemble struct {
	ID             string
	Participants   map[string]struct{}
	Metadata       map[string]string
	EntangledState float64
}

// EnsembleRegistry owns room lifecycle and membership.
//
// The earliest-created ensemble is tracked as an explicit primary pointer
// rather than re-derived from map iteration, so every join lands in the
// same room regardless of map ordering.
type EnsembleRegistry struct {
	mu        sync.Mutex
	ensembles map[string]*Ensemble
	primary   *Ensemble
	nexus     *Ensemble
	sigils    *sigil.Generator
}

// NewEnsembleRegistry builds an empty registry over the sigil generator.
func NewEnsembleRegistry(sigils *sigil.Generator) (*EnsembleRegistry, error) {
	if sigils == nil {
		return nil, fmt.Errorf("sigil generator is required")
	}
	return &EnsembleRegistry{
		ensembles: make(map[string]*Ensemble),
		sigils:    sigils,
	}, nil
}

// Bootstrap creates the well-known nexus ensemble. It runs once at
// startup; repeated calls return the existing nexus id.
func (r *EnsembleRegistry) Bootstrap() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.nexus != nil {
		return r.nexus.ID
	}

	nexus := &Ensemble{
		ID:             r.sigils.Derive("ensemble:nexus"),
		Participants:   make(map[string]struct{}),
		Metadata:       map[string]string{"origin": "nexus"},
		EntangledState: rand.Float64(),
	}
	r.ensembles[nexus.ID] = nexus
	r.nexus = nexus
	if r.primary == nil {
		r.primary = nexus
	}
	return nexus.ID
}

// JoinOrCreate adds a client to the primary ensemble, creating one first
// when the registry is empty. Creation and membership update happen under
// one lock, so concurrent joins on an empty registry produce exactly one
// ensemble. It returns the ensemble id and a membership snapshot taken at
// join time.
func (r *EnsembleRegistry) JoinOrCreate(clientID string) (string, []string, error) {
	if clientID == "" {
		return "", nil, fmt.Errorf("client id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	target := r.primary
	if target == nil {
		nonce, err := sigil.Nonce()
		if err != nil {
			return "", nil, fmt.Errorf("generate ensemble nonce: %w", err)
		}
		target = &Ensemble{
			ID:             r.sigils.Derive("ensemble:" + nonce),
			Participants:   make(map[string]struct{}),
			Metadata:       make(map[string]string),
			EntangledState: rand.Float64(),
		}
		r.ensembles[target.ID] = target
		r.primary = target
	}

	target.Participants[clientID] = struct{}{}

	snapshot := make([]string, 0, len(target.Participants))
	for participant := range target.Participants {
		snapshot = append(snapshot, participant)
	}
	return target.ID, snapshot, nil
}

// NexusID returns the id of the ensemble created at startup, if present.
func (r *EnsembleRegistry) NexusID() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.nexus == nil {
		return "", false
	}
	return r.nexus.ID, true
}

// PrimaryID returns the id of the earliest-created ensemble, if any.
func (r *EnsembleRegistry) PrimaryID() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.primary == nil {
		return "", false
	}
	return r.primary.ID, true
}

// EnsembleOf returns the id of an ensemble containing the client, if any.
// The primary ensemble is checked first.
func (r *EnsembleRegistry) EnsembleOf(clientID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.primary != nil {
		if _, ok := r.primary.Participants[clientID]; ok {
			return r.primary.ID, true
		}
	}
	for _, ensemble := range r.ensembles {
		if _, ok := ensemble.Participants[clientID]; ok {
			return ensemble.ID, true
		}
	}
	return "", false
}

// Participants returns a membership snapshot for an ensemble.
func (r *EnsembleRegistry) Participants(ensembleID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ensemble, ok := r.ensembles[ensembleID]
	if !ok {
		return nil
	}
	snapshot := make([]string, 0, len(ensemble.Participants))
	for participant := range ensemble.Participants {
		snapshot = append(snapshot, participant)
	}
	return snapshot
}

// Len reports the number of ensembles.
func (r *EnsembleRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ensembles)
}
