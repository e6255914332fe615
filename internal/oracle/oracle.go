// Package oracle implements the gated query pipeline: envelope
// encryption, the external oracle call, and bounded recursive follow-up
// querying.
package oracle

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/halcyonic/ensemble.space/internal/envelope"
	"github.com/halcyonic/ensemble.space/internal/platform/timeouts"
)

const (
	// maxDepth bounds follow-up recursion: depths 0..3 may call out,
	// depth 4 short-circuits, so a top-level query performs at most
	// four external calls.
	maxDepth = 3

	// defaultFollowUpChance is the probability that a response carrying
	// a follow-up query triggers another round.
	defaultFollowUpChance = 0.2

	sigilHeader = "X-Oracle-Sigil"

	maxResponseBytes = 1 << 20
)

// Config defines the inputs for an oracle client.
type Config struct {
	Endpoint   string
	APIKey     string
	EntropyKey string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client calls the external oracle over HTTP with enveloped queries.
type Client struct {
	endpoint       string
	apiSigil       string
	entropyKey     string
	codec          *envelope.Codec
	httpClient     *http.Client
	timeout        time.Duration
	followUpChance float64
}

// transmission is the request body of the oracle HTTP contract.
type transmission struct {
	Transmission string `json:"transmission"`
}

// NewClient builds an oracle client over the given codec.
func NewClient(config Config, codec *envelope.Codec) (*Client, error) {
	endpoint := strings.TrimSpace(config.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("oracle endpoint is required")
	}
	if strings.TrimSpace(config.APIKey) == "" {
		return nil, fmt.Errorf("oracle api key is required")
	}
	if strings.TrimSpace(config.EntropyKey) == "" {
		return nil, fmt.Errorf("entropy key is required")
	}
	if codec == nil {
		return nil, fmt.Errorf("envelope codec is required")
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = timeouts.OracleCall
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	keyDigest := sha256.Sum256([]byte(config.APIKey))
	return &Client{
		endpoint:       endpoint,
		apiSigil:       hex.EncodeToString(keyDigest[:]),
		entropyKey:     config.EntropyKey,
		codec:          codec,
		httpClient:     httpClient,
		timeout:        timeout,
		followUpChance: defaultFollowUpChance,
	}, nil
}

// Query runs one enveloped oracle round trip and, probabilistically,
// bounded follow-up rounds.
//
// The result is either a fully decrypted parsed response or nil: depth
// exhaustion is the nil, nil terminal outcome of normal control flow,
// while transport, decryption and parse failures return nil with a
// wrapped error. Failures never leave a partially decrypted payload and
// the call never retries; callers decide whether to re-invoke.
func (c *Client) Query(ctx context.Context, inquiry string, queryContext map[string]any, depth int) (map[string]any, error) {
	if depth > maxDepth {
		return nil, nil
	}

	// The follow-up decision draws from a private source seeded from the
	// inquiry, a random component and the entropy key, so the draw is
	// independent of any shared random state.
	rng, err := c.callSource(inquiry)
	if err != nil {
		return nil, fmt.Errorf("seed call source: %w", err)
	}

	sealed, err := c.codec.SealQuery(inquiry, queryContext)
	if err != nil {
		return nil, fmt.Errorf("seal query: %w", err)
	}
	body, err := json.Marshal(transmission{Transmission: sealed})
	if err != nil {
		return nil, fmt.Errorf("marshal transmission: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build oracle request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(sigilHeader, c.apiSigil)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call oracle: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("oracle status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read oracle response: %w", err)
	}
	plaintext, err := c.codec.Open(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("open oracle response: %w", err)
	}

	var response map[string]any
	if err := json.Unmarshal(plaintext, &response); err != nil {
		return nil, fmt.Errorf("parse oracle response: %w", err)
	}

	if rng.Float64() < c.followUpChance {
		if followUp, ok := response["followUpQuery"].(string); ok && strings.TrimSpace(followUp) != "" {
			return c.Query(ctx, followUp, map[string]any{"parentResponse": response}, depth+1)
		}
	}
	return response, nil
}

// callSource builds the per-call deterministic random source.
func (c *Client) callSource(inquiry string) (*rand.Rand, error) {
	var component [8]byte
	if _, err := crand.Read(component[:]); err != nil {
		return nil, fmt.Errorf("read random component: %w", err)
	}

	h := sha256.New()
	h.Write([]byte(inquiry))
	h.Write(component[:])
	h.Write([]byte(c.entropyKey))
	sum := h.Sum(nil)
	seed := int64(binary.LittleEndian.Uint64(sum[:8]))
	return rand.New(rand.NewSource(seed)), nil
}
