package sigil

import (
	"errors"
	"testing"
)

func TestNewGeneratorRequiresKey(t *testing.T) {
	if _, err := NewGenerator(nil); !errors.Is(err, ErrEmptyKey) {
		t.Fatalf("expected ErrEmptyKey, got %v", err)
	}
}

func TestDeriveIsDeterministic(t *testing.T) {
	gen, err := NewGenerator([]byte("entropy"))
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}

	first := gen.Derive("client:abc")
	second := gen.Derive("client:abc")
	if first != second {
		t.Fatalf("expected stable derivation, got %q and %q", first, second)
	}
	if len(first) != 64 {
		t.Fatalf("expected 64-character sigil, got %d", len(first))
	}
	for _, r := range first {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			t.Fatalf("unexpected character %q in sigil", r)
		}
	}
}

func TestDeriveDependsOnBasisAndKey(t *testing.T) {
	gen, err := NewGenerator([]byte("entropy"))
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	other, err := NewGenerator([]byte("different"))
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}

	if gen.Derive("a") == gen.Derive("b") {
		t.Fatal("expected distinct bases to produce distinct sigils")
	}
	if gen.Derive("a") == other.Derive("a") {
		t.Fatal("expected distinct keys to produce distinct sigils")
	}
}

func TestNonce(t *testing.T) {
	first, err := Nonce()
	if err != nil {
		t.Fatalf("nonce: %v", err)
	}
	second, err := Nonce()
	if err != nil {
		t.Fatalf("nonce: %v", err)
	}
	if len(first) != 32 {
		t.Fatalf("expected 32-character nonce, got %d", len(first))
	}
	if first == second {
		t.Fatal("expected nonces to differ")
	}
}
