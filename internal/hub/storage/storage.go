// Package storage declares the persistence interfaces the hub composes
// against. The hub's registries are in-memory and volatile; only
// operational telemetry crosses into a store.
package storage

import (
	"context"
	"time"
)

// TelemetryEvent is one operational record emitted by the hub.
type TelemetryEvent struct {
	ID        string
	Service   string
	Severity  string
	Kind      string
	Message   string
	Timestamp time.Time
}

// TelemetryStore persists telemetry events.
type TelemetryStore interface {
	AppendTelemetryEvent(ctx context.Context, evt TelemetryEvent) error
	Close() error
}
