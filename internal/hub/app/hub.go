package server

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/halcyonic/ensemble.space/internal/flux"
	"github.com/halcyonic/ensemble.space/internal/hub/storage"
	"github.com/halcyonic/ensemble.space/internal/telemetry"
)

// OracleClient is the query pipeline boundary the hub dispatches
// query-request events into.
type OracleClient interface {
	Query(ctx context.Context, inquiry string, queryContext map[string]any, depth int) (map[string]any, error)
}

// Hub routes inbound client events to registry mutations and outbound
// emissions: direct-to-sender, ensemble broadcast, or global broadcast.
type Hub struct {
	sessions  *SessionRegistry
	ensembles *EnsembleRegistry
	ambient   *AmbientBuffer
	pairs     *PairTable
	oracle    OracleClient
	emitter   *telemetry.Emitter

	mu            sync.Mutex
	peers         map[string]*wsPeer // by connection id
	peersByClient map[string]*wsPeer // by client id
}

// NewHub composes the registries with the oracle client and telemetry
// emitter.
func NewHub(sessions *SessionRegistry, ensembles *EnsembleRegistry, oracle OracleClient, emitter *telemetry.Emitter) (*Hub, error) {
	if sessions == nil {
		return nil, fmt.Errorf("session registry is required")
	}
	if ensembles == nil {
		return nil, fmt.Errorf("ensemble registry is required")
	}
	if oracle == nil {
		return nil, fmt.Errorf("oracle client is required")
	}
	if emitter == nil {
		emitter = telemetry.NewEmitter(nil)
	}
	return &Hub{
		sessions:      sessions,
		ensembles:     ensembles,
		ambient:       NewAmbientBuffer(ambientCapacity),
		pairs:         NewPairTable(),
		oracle:        oracle,
		emitter:       emitter,
		peers:         make(map[string]*wsPeer),
		peersByClient: make(map[string]*wsPeer),
	}, nil
}

// Ambient exposes the shared recent-history buffer.
func (h *Hub) Ambient() *AmbientBuffer {
	return h.ambient
}

// Ensembles exposes the ensemble registry.
func (h *Hub) Ensembles() *EnsembleRegistry {
	return h.ensembles
}

// Sessions exposes the session registry.
func (h *Hub) Sessions() *SessionRegistry {
	return h.sessions
}

// CreateEntangledPair stores two values in the process-wide pair table.
func (h *Hub) CreateEntangledPair(first, second any) (string, error) {
	return h.pairs.CreatePair(first, second)
}

// QueryEntanglement reads a previously created pair.
func (h *Hub) QueryEntanglement(pairID string) (any, any, bool) {
	return h.pairs.QueryPair(pairID)
}

func (h *Hub) register(session *Session, peer *wsPeer) {
	h.mu.Lock()
	h.peers[session.ConnectionID] = peer
	h.peersByClient[session.ClientID] = peer
	h.mu.Unlock()
}

func (h *Hub) unregister(session *Session) {
	h.mu.Lock()
	delete(h.peers, session.ConnectionID)
	delete(h.peersByClient, session.ClientID)
	h.mu.Unlock()
}

// broadcastGlobal writes a frame to every live connection. The peer set
// is snapshotted at call time; emission is best-effort.
func (h *Hub) broadcastGlobal(frame wsFrame) {
	h.mu.Lock()
	peers := make([]*wsPeer, 0, len(h.peers))
	for _, peer := range h.peers {
		peers = append(peers, peer)
	}
	h.mu.Unlock()

	for _, peer := range peers {
		_ = peer.writeFrame(frame)
	}
}

// broadcastEnsemble writes a frame to every live participant of an
// ensemble. Membership is snapshotted at call time; stale participant
// ids with no live peer are skipped.
func (h *Hub) broadcastEnsemble(ensembleID string, frame wsFrame) {
	h.broadcastToClients(h.ensembles.Participants(ensembleID), frame)
}

func (h *Hub) broadcastToClients(clientIDs []string, frame wsFrame) {
	h.mu.Lock()
	peers := make([]*wsPeer, 0, len(clientIDs))
	for _, clientID := range clientIDs {
		if peer, ok := h.peersByClient[clientID]; ok {
			peers = append(peers, peer)
		}
	}
	h.mu.Unlock()

	for _, peer := range peers {
		_ = peer.writeFrame(frame)
	}
}

// handleJoin routes a join-request into the ensemble registry and
// notifies the room.
func (h *Hub) handleJoin(session *Session) {
	ensembleID, participants, err := h.ensembles.JoinOrCreate(session.ClientID)
	if err != nil {
		log.Printf("hub: join failed client=%q err=%v", clientPrefix(session.ClientID), err)
		return
	}

	h.broadcastToClients(participants, wsFrame{
		Type: frameTypePresence,
		Payload: mustJSON(presencePayload{
			EnsembleID: ensembleID,
			ClientID:   clientPrefix(session.ClientID),
		}),
	})
}

// handleQuery proxies an inquiry through the oracle pipeline and relays
// the reshaped result back to the sender only.
func (h *Hub) handleQuery(ctx context.Context, session *Session, peer *wsPeer, inquiry string) {
	inquiry = strings.TrimSpace(inquiry)
	if inquiry == "" {
		return
	}

	queryContext := map[string]any{
		"signature": session.Signature,
		"ambient":   h.ambient.Snapshot(),
	}
	response, err := h.oracle.Query(ctx, inquiry, queryContext, 0)
	if err != nil || response == nil {
		if err != nil {
			log.Printf("hub: oracle query failed client=%q err=%v", clientPrefix(session.ClientID), err)
		}
		_ = h.emitter.Emit(ctx, storage.TelemetryEvent{
			Service:  "hub",
			Severity: string(telemetry.SeverityWarn),
			Kind:     "oracle_failure",
			Message:  fmt.Sprintf("oracle unavailable for client %s", clientPrefix(session.ClientID)),
		})
		_ = peer.writeFrame(wsFrame{
			Type:    frameTypeAnomaly,
			Payload: mustJSON(anomalyPayload{Reason: "the oracle is beyond reach"}),
		})
		return
	}

	rendered := interpretResonance(response, session.State)
	_ = peer.writeFrame(wsFrame{
		Type: frameTypeFragment,
		Payload: mustJSON(fragmentPayload{
			Fragment: truncateWithEllipsis(rendered, fragmentLength),
		}),
	})
}

// handleWave mutates and digests a peer payload, then broadcasts the
// resulting wave to the sender's ensemble.
func (h *Hub) handleWave(session *Session, payload string) {
	if strings.TrimSpace(payload) == "" {
		return
	}
	ensembleID, ok := h.ensembles.EnsembleOf(session.ClientID)
	if !ok {
		return
	}

	mutated := flux.Mutate(payload, session.State.Profile)
	digest, err := flux.Transmute(mutated, session.State.Profile)
	if err != nil {
		log.Printf("hub: wave transmute failed client=%q err=%v", clientPrefix(session.ClientID), err)
		return
	}

	h.broadcastEnsemble(ensembleID, wsFrame{
		Type: frameTypeWave,
		Payload: mustJSON(wavePayload{
			Sender:   clientPrefix(session.ClientID),
			Fragment: digest[:waveFragmentLength],
		}),
	})
}
