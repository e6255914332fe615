package server

import "sync"

// ambientCapacity bounds the recent-history ring fed into oracle queries.
const ambientCapacity = 100

// AmbientBuffer is a bounded FIFO of recent noise samples. The perception
// loop is the only writer; query handlers read copied snapshots.
type AmbientBuffer struct {
	mu       sync.Mutex
	samples  []float64
	capacity int
}

// NewAmbientBuffer builds a buffer with the given capacity; non-positive
// values fall back to the default.
func NewAmbientBuffer(capacity int) *AmbientBuffer {
	if capacity <= 0 {
		capacity = ambientCapacity
	}
	return &AmbientBuffer{capacity: capacity}
}

// Append inserts one sample, evicting the oldest entry at capacity.
func (b *AmbientBuffer) Append(sample float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.samples = append(b.samples, sample)
	if len(b.samples) > b.capacity {
		b.samples = b.samples[len(b.samples)-b.capacity:]
	}
}

// Snapshot returns a copy of the buffer in insertion order. Callers may
// iterate it freely while the perception loop keeps appending.
func (b *AmbientBuffer) Snapshot() []float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]float64(nil), b.samples...)
}

// Len reports the current number of samples.
func (b *AmbientBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.samples)
}
