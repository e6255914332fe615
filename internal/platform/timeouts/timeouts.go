// Package timeouts defines shared timeout constants used across the hub.
// Centralizing these values prevents drift between boundaries and makes
// the durations discoverable.
package timeouts

import "time"

// OracleCall caps a single external oracle request, including connection
// setup and body transfer.
const OracleCall = 20 * time.Second

// ReadHeader limits how long the HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long the HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second
