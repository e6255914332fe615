package envelope

import (
	"encoding/json"
	"testing"
)

func TestSealerRoundTrip(t *testing.T) {
	key := make([]byte, 32)
	sealer, err := NewSealer(key)
	if err != nil {
		t.Fatalf("new sealer: %v", err)
	}

	sealed, err := sealer.Seal([]byte("payload"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if sealed == "payload" {
		t.Fatal("expected ciphertext to differ from plaintext")
	}

	opened, err := sealer.Open(sealed)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if string(opened) != "payload" {
		t.Fatalf("expected round trip, got %q", opened)
	}
}

func TestSealerRejectsInvalidKeyLength(t *testing.T) {
	if _, err := NewSealer([]byte("short")); err == nil {
		t.Fatal("expected error for invalid key length")
	}
}

func TestSealerOpenRejectsTamperedPayload(t *testing.T) {
	sealer, err := NewSealer(make([]byte, 32))
	if err != nil {
		t.Fatalf("new sealer: %v", err)
	}
	sealed, err := sealer.Seal([]byte("payload"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	tampered := []byte(sealed)
	tampered[len(tampered)-1] ^= 1
	if _, err := sealer.Open(string(tampered)); err == nil {
		t.Fatal("expected error for tampered payload")
	}
}

func TestSealerOpenRejectsShortPayload(t *testing.T) {
	sealer, err := NewSealer(make([]byte, 32))
	if err != nil {
		t.Fatalf("new sealer: %v", err)
	}
	if _, err := sealer.Open("AAAA"); err == nil {
		t.Fatal("expected error for truncated payload")
	}
}

func TestCodecSealQueryShape(t *testing.T) {
	codec, err := NewCodec([]byte("master-passphrase"))
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}

	sealed, err := codec.SealQuery("what stirs beyond the veil", map[string]any{
		"signature": "abc",
		"ambient":   []float64{0.5, -1.5},
	})
	if err != nil {
		t.Fatalf("seal query: %v", err)
	}

	raw, err := codec.Open(sealed)
	if err != nil {
		t.Fatalf("open envelope: %v", err)
	}

	var parsed struct {
		QuerySegment  string `json:"query_segment"`
		ContextVector []any  `json:"context_vector"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if parsed.QuerySegment == "" {
		t.Fatal("expected non-empty query segment")
	}
	if parsed.QuerySegment == "what stirs beyond the veil" {
		t.Fatal("expected inquiry to be sealed inside the envelope")
	}
	if len(parsed.ContextVector) != 2 {
		t.Fatalf("expected 2 context values, got %d", len(parsed.ContextVector))
	}
	// Context values are ordered by sorted key: ambient before signature.
	if _, ok := parsed.ContextVector[0].([]any); !ok {
		t.Fatalf("expected ambient snapshot first, got %T", parsed.ContextVector[0])
	}
	if got, ok := parsed.ContextVector[1].(string); !ok || got != "abc" {
		t.Fatalf("expected signature second, got %v", parsed.ContextVector[1])
	}
}

func TestCodecOpenRejectsWrongMasterKey(t *testing.T) {
	codec, err := NewCodec([]byte("master-a"))
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	other, err := NewCodec([]byte("master-b"))
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}

	sealed, err := codec.SealQuery("inquiry", nil)
	if err != nil {
		t.Fatalf("seal query: %v", err)
	}
	if _, err := other.Open(sealed); err == nil {
		t.Fatal("expected error when opening under the wrong master key")
	}
}

func TestNewCodecRequiresKeyMaterial(t *testing.T) {
	if _, err := NewCodec(nil); err == nil {
		t.Fatal("expected error for empty master key")
	}
}
