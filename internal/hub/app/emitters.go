package server

import (
	"context"
	"math/rand"
	"time"

	"github.com/halcyonic/ensemble.space/internal/hub/storage"
	"github.com/halcyonic/ensemble.space/internal/telemetry"
)

const (
	perceptionMinInterval = 100 * time.Millisecond
	perceptionMaxInterval = 2 * time.Second
	resonanceMinInterval  = 15 * time.Second
	resonanceMaxInterval  = 45 * time.Second

	// perceptionStdDev shapes the zero-mean noise fed into the ambient
	// buffer.
	perceptionStdDev = 10.0

	// singularityChance is the per-tick probability of a global
	// singularity emission.
	singularityChance = 0.05
)

// RunPerceptionLoop feeds ambient noise samples into the shared buffer
// at jittered intervals until the context is canceled. Occasionally a
// tick escalates into a hub-wide singularity broadcast.
func (h *Hub) RunPerceptionLoop(ctx context.Context) {
	for sleepJitter(ctx, perceptionMinInterval, perceptionMaxInterval) {
		h.perceptionTick(ctx, rand.NormFloat64()*perceptionStdDev, rand.Float64() < singularityChance)
	}
}

// perceptionTick records one noise sample and, when flagged, broadcasts
// a singularity carrying the sample as its flux.
func (h *Hub) perceptionTick(ctx context.Context, sample float64, singularity bool) {
	h.ambient.Append(sample)

	if !singularity {
		return
	}

	h.broadcastGlobal(wsFrame{
		Type:    frameTypeSingularity,
		Payload: mustJSON(singularityPayload{Flux: sample}),
	})
	_ = h.emitter.Emit(ctx, storage.TelemetryEvent{
		Service:  "hub",
		Severity: string(telemetry.SeverityInfo),
		Kind:     "singularity",
		Message:  "hub-wide singularity emitted",
	})
}

// RunResonanceLoop emits periodic oscillations into the nexus ensemble
// at jittered intervals until the context is canceled.
func (h *Hub) RunResonanceLoop(ctx context.Context) {
	for sleepJitter(ctx, resonanceMinInterval, resonanceMaxInterval) {
		h.resonanceTick(rand.Float64()*2 - 1)
	}
}

// resonanceTick broadcasts one oscillation to the nexus ensemble,
// falling back to the primary ensemble when no nexus was bootstrapped.
// With neither present the tick is a no-op.
func (h *Hub) resonanceTick(flux float64) {
	ensembleID, ok := h.ensembles.NexusID()
	if !ok {
		ensembleID, ok = h.ensembles.PrimaryID()
	}
	if !ok {
		return
	}

	h.broadcastEnsemble(ensembleID, wsFrame{
		Type: frameTypeOscillation,
		Payload: mustJSON(oscillationPayload{
			EnsembleID: ensembleID,
			Flux:       flux,
		}),
	})
}

// sleepJitter blocks for a uniform duration in [min, max). It reports
// false when the context is canceled before the interval elapses.
func sleepJitter(ctx context.Context, min, max time.Duration) bool {
	interval := min + time.Duration(rand.Int63n(int64(max-min)))
	timer := time.NewTimer(interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
