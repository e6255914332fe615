package server

import "testing"

func TestAmbientBufferEvictsOldest(t *testing.T) {
	buf := NewAmbientBuffer(100)
	for i := 0; i < 150; i++ {
		buf.Append(float64(i))
	}

	samples := buf.Snapshot()
	if len(samples) != 100 {
		t.Fatalf("snapshot length = %d, want 100", len(samples))
	}
	for i, sample := range samples {
		if want := float64(50 + i); sample != want {
			t.Fatalf("samples[%d] = %f, want %f", i, sample, want)
		}
	}
}

func TestAmbientBufferSnapshotIsCopy(t *testing.T) {
	buf := NewAmbientBuffer(10)
	buf.Append(1)
	buf.Append(2)

	snapshot := buf.Snapshot()
	snapshot[0] = 99

	if again := buf.Snapshot(); again[0] != 1 {
		t.Fatalf("buffer mutated through snapshot: %v", again)
	}
}

func TestAmbientBufferDefaultCapacity(t *testing.T) {
	buf := NewAmbientBuffer(0)
	for i := 0; i < ambientCapacity+5; i++ {
		buf.Append(float64(i))
	}
	if buf.Len() != ambientCapacity {
		t.Fatalf("length = %d, want %d", buf.Len(), ambientCapacity)
	}
}
