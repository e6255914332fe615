package flux

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestMutateIsDeterministic(t *testing.T) {
	for _, input := range []string{"hello", "a longer payload with spaces", "x"} {
		first := Mutate(input, 42)
		second := Mutate(input, 42)
		if first != second {
			t.Fatalf("expected identical output for %q, got %q and %q", input, first, second)
		}
	}
}

func TestMutateVariesWithProfile(t *testing.T) {
	input := "the quick brown fox jumps over the lazy dog"
	outputs := make(map[string]struct{})
	for profile := 0; profile <= 100; profile++ {
		outputs[Mutate(input, profile)] = struct{}{}
	}
	if len(outputs) < 2 {
		t.Fatal("expected at least two distinct mutations across profiles")
	}
}

func TestMutateEmptyInput(t *testing.T) {
	if got := Mutate("", 7); got != "" {
		t.Fatalf("expected empty output for empty input, got %q", got)
	}
}

func TestMutateLengthBound(t *testing.T) {
	input := "resonance cascade imminent"
	inputLen := utf8.RuneCountInString(input)
	for profile := 0; profile <= 100; profile++ {
		got := Mutate(input, profile)
		gotLen := utf8.RuneCountInString(got)
		if gotLen > inputLen {
			t.Fatalf("profile %d: mutation grew payload from %d to %d runes", profile, inputLen, gotLen)
		}
		if inputLen-gotLen > maxMutationRounds {
			t.Fatalf("profile %d: mutation removed %d runes, max is %d", profile, inputLen-gotLen, maxMutationRounds)
		}
	}
}

func TestTransmuteShape(t *testing.T) {
	got, err := Transmute(map[string]string{"body": "hello"}, 12)
	if err != nil {
		t.Fatalf("transmute: %v", err)
	}
	if len(got) != 64 {
		t.Fatalf("expected 64-character digest, got %d", len(got))
	}
	if got != strings.ToLower(got) {
		t.Fatal("expected lowercase hex digest")
	}
	for _, r := range got {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			t.Fatalf("unexpected character %q in digest", r)
		}
	}
}

func TestTransmuteIsDeterministic(t *testing.T) {
	first, err := Transmute("payload", "key")
	if err != nil {
		t.Fatalf("transmute: %v", err)
	}
	second, err := Transmute("payload", "key")
	if err != nil {
		t.Fatalf("transmute: %v", err)
	}
	if first != second {
		t.Fatalf("expected identical digests, got %q and %q", first, second)
	}

	other, err := Transmute("payload", "other-key")
	if err != nil {
		t.Fatalf("transmute: %v", err)
	}
	if first == other {
		t.Fatal("expected key to affect digest")
	}
}

func TestTransmuteRejectsUnserializablePayload(t *testing.T) {
	if _, err := Transmute(func() {}, 1); err == nil {
		t.Fatal("expected error for unserializable payload")
	}
}
