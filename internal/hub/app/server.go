package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	"github.com/halcyonic/ensemble.space/internal/hub/storage"
	"github.com/halcyonic/ensemble.space/internal/platform/id"
	"github.com/halcyonic/ensemble.space/internal/platform/timeouts"
	"github.com/halcyonic/ensemble.space/internal/telemetry"
)

const (
	// maxFramePayloadBytes bounds a single inbound frame payload.
	maxFramePayloadBytes = 16 * 1024

	// maxDecodeErrors is the budget of malformed frames tolerated per
	// connection before it is dropped.
	maxDecodeErrors = 3
)

// Inbound frame types.
const (
	frameTypeJoin  = "hub.join"
	frameTypeQuery = "hub.query"
)

// Outbound frame types. hub.wave is both inbound (a raw payload from a
// client) and outbound (the digested broadcast form).
const (
	frameTypeIdentity    = "hub.identity"
	frameTypePresence    = "hub.presence"
	frameTypeFragment    = "hub.fragment"
	frameTypeAnomaly     = "hub.anomaly"
	frameTypeWave        = "hub.wave"
	frameTypeSingularity = "hub.singularity"
	frameTypeOscillation = "hub.oscillation"
)

// wsFrame is the typed JSON envelope exchanged on the socket.
type wsFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type identityPayload struct {
	Token    string `json:"token"`
	ClientID string `json:"client_id"`
}

type presencePayload struct {
	EnsembleID string `json:"ensemble_id"`
	ClientID   string `json:"client_id"`
}

type fragmentPayload struct {
	Fragment string `json:"fragment"`
}

type anomalyPayload struct {
	Reason string `json:"reason"`
}

type wavePayload struct {
	Sender   string `json:"sender"`
	Fragment string `json:"fragment"`
}

type singularityPayload struct {
	Flux float64 `json:"flux"`
}

type oscillationPayload struct {
	EnsembleID string  `json:"ensemble_id"`
	Flux       float64 `json:"flux"`
}

type queryPayload struct {
	Inquiry string `json:"inquiry"`
}

type waveRequestPayload struct {
	Payload string `json:"payload"`
}

// wsPeer serializes frame writes onto a single websocket connection.
type wsPeer struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func newWSPeer(w io.Writer) *wsPeer {
	return &wsPeer{enc: json.NewEncoder(w)}
}

func (p *wsPeer) writeFrame(frame wsFrame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enc.Encode(frame)
}

// Config carries the hub server's transport settings.
type Config struct {
	HTTPAddr          string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

func (c Config) withDefaults() Config {
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":8090"
	}
	if c.ReadHeaderTimeout <= 0 {
		c.ReadHeaderTimeout = timeouts.ReadHeader
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = timeouts.Shutdown
	}
	return c
}

// Server hosts the websocket hub over HTTP.
type Server struct {
	config Config
	hub    *Hub
	http   *http.Server
}

// NewServer builds a server around an assembled hub.
func NewServer(config Config, hub *Hub) (*Server, error) {
	if hub == nil {
		return nil, fmt.Errorf("hub is required")
	}
	config = config.withDefaults()
	return &Server{
		config: config,
		hub:    hub,
		http: &http.Server{
			Addr:              config.HTTPAddr,
			Handler:           newHandler(hub),
			ReadHeaderTimeout: config.ReadHeaderTimeout,
		},
	}, nil
}

// Run starts the background emitter loops and serves until the context
// is canceled.
func Run(ctx context.Context, config Config, hub *Hub) error {
	srv, err := NewServer(config, hub)
	if err != nil {
		return err
	}
	go hub.RunPerceptionLoop(ctx)
	go hub.RunResonanceLoop(ctx)
	return srv.ListenAndServe(ctx)
}

// ListenAndServe blocks until the context is canceled, then drains
// connections within the shutdown timeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.HTTPAddr, err)
	}
	log.Printf("hub: listening on %s", ln.Addr())

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func newHandler(hub *Hub) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/ws", websocket.Handler(func(ws *websocket.Conn) {
		hub.handleWSConn(ws)
	}))
	return mux
}

// handleWSConn owns one connection: admit the session, emit the
// identity frame, then decode and dispatch frames until the socket
// closes or the malformed-frame budget runs out.
func (h *Hub) handleWSConn(ws *websocket.Conn) {
	defer ws.Close()
	ctx := context.Background()

	connectionID, err := id.NewID()
	if err != nil {
		log.Printf("hub: generate connection id: %v", err)
		return
	}

	session, err := h.sessions.OnConnect(connectionID)
	if err != nil {
		log.Printf("hub: admit connection %s: %v", connectionID, err)
		return
	}
	defer func() {
		h.sessions.OnDisconnect(connectionID)
		_ = h.emitter.Emit(ctx, storage.TelemetryEvent{
			Service:  "hub",
			Severity: string(telemetry.SeverityInfo),
			Kind:     "session_disconnected",
			Message:  fmt.Sprintf("client %s disconnected", clientPrefix(session.ClientID)),
		})
	}()

	peer := newWSPeer(ws)
	h.register(session, peer)
	defer h.unregister(session)

	if err := peer.writeFrame(wsFrame{
		Type: frameTypeIdentity,
		Payload: mustJSON(identityPayload{
			Token:    session.Token,
			ClientID: clientPrefix(session.ClientID),
		}),
	}); err != nil {
		return
	}

	_ = h.emitter.Emit(ctx, storage.TelemetryEvent{
		Service:  "hub",
		Severity: string(telemetry.SeverityInfo),
		Kind:     "session_connected",
		Message:  fmt.Sprintf("client %s connected", clientPrefix(session.ClientID)),
	})

	decoder := json.NewDecoder(ws)
	decodeErrors := 0
	for {
		var frame wsFrame
		if err := decoder.Decode(&frame); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return
			}
			decodeErrors++
			if decodeErrors >= maxDecodeErrors {
				log.Printf("hub: dropping client %s after %d malformed frames", clientPrefix(session.ClientID), decodeErrors)
				return
			}
			continue
		}
		decodeErrors = 0

		if len(frame.Payload) > maxFramePayloadBytes {
			continue
		}

		h.dispatch(ctx, session, peer, frame)
	}
}

// dispatch routes one inbound frame. Unknown frame types and malformed
// payloads are ignored so a confused client cannot disturb its peers.
func (h *Hub) dispatch(ctx context.Context, session *Session, peer *wsPeer, frame wsFrame) {
	switch frame.Type {
	case frameTypeJoin:
		h.handleJoin(session)
	case frameTypeQuery:
		var payload queryPayload
		if err := json.Unmarshal(frame.Payload, &payload); err != nil {
			return
		}
		h.handleQuery(ctx, session, peer, payload.Inquiry)
	case frameTypeWave:
		var payload waveRequestPayload
		if err := json.Unmarshal(frame.Payload, &payload); err != nil {
			return
		}
		h.handleWave(session, payload.Payload)
	}
}

func mustJSON(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return raw
}
