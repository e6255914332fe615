package server

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/halcyonic/ensemble.space/internal/sigil"
)

// State is the per-client tuning assigned at connect time. It is never
// mutated afterwards; resonance interpretation and wave mutation read it.
type State struct {
	Volatility float64
	Profile    int
}

// Session is one live connection's identity record, exclusively owned by
// the session registry and keyed by connection id.
type Session struct {
	ConnectionID string
	ClientID     string
	Token        string
	State        State
	Signature    string
}

// TokenIssuer signs the session credential embedded in the identity
// message.
type TokenIssuer interface {
	Issue(clientID string) (string, error)
}

// SessionRegistry owns connection lifecycle: sessions are created on
// connect, removed on disconnect, and never survive the process.
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	sigils   *sigil.Generator
	tokens   TokenIssuer
}

// NewSessionRegistry builds a registry over the given sigil generator and
// token issuer.
func NewSessionRegistry(sigils *sigil.Generator, tokens TokenIssuer) (*SessionRegistry, error) {
	if sigils == nil {
		return nil, fmt.Errorf("sigil generator is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token issuer is required")
	}
	return &SessionRegistry{
		sessions: make(map[string]*Session),
		sigils:   sigils,
		tokens:   tokens,
	}, nil
}

// OnConnect creates and stores the session for a new connection.
//
// The client id derives from a basis including the connection id plus a
// fresh nonce, so reconnects under a recycled connection id still get a
// new identity. Generation or signing failure is fatal to the connect
// attempt: no partial session is left registered.
func (r *SessionRegistry) OnConnect(connectionID string) (*Session, error) {
	if connectionID == "" {
		return nil, fmt.Errorf("connection id is required")
	}

	nonce, err := sigil.Nonce()
	if err != nil {
		return nil, fmt.Errorf("generate client nonce: %w", err)
	}
	clientID := r.sigils.Derive("client:" + connectionID + ":" + nonce)

	signed, err := r.tokens.Issue(clientID)
	if err != nil {
		return nil, fmt.Errorf("issue session token: %w", err)
	}

	session := &Session{
		ConnectionID: connectionID,
		ClientID:     clientID,
		Token:        signed,
		State: State{
			Volatility: rand.Float64(),
			Profile:    rand.Intn(101),
		},
		Signature: r.sigils.Derive("context:" + clientID),
	}

	r.mu.Lock()
	r.sessions[connectionID] = session
	r.mu.Unlock()
	return session, nil
}

// OnDisconnect removes and returns the session for a connection, or nil
// when none is registered.
//
// Ensemble participant sets are deliberately left untouched: a
// disconnected client's id lingers in its ensemble until process restart.
// Broadcasts simply skip ids with no live peer.
func (r *SessionRegistry) OnDisconnect(connectionID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[connectionID]
	if !ok {
		return nil
	}
	delete(r.sessions, connectionID)
	return session
}

// Lookup returns the session for a connection, or nil.
func (r *SessionRegistry) Lookup(connectionID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[connectionID]
}

// Len reports the number of live sessions.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
