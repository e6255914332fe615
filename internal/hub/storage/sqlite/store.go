// Package sqlite provides SQLite-backed persistence for hub telemetry.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/halcyonic/ensemble.space/internal/hub/storage"
	"github.com/halcyonic/ensemble.space/internal/platform/id"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS telemetry_events (
	id            TEXT PRIMARY KEY,
	service       TEXT NOT NULL,
	severity      TEXT NOT NULL,
	kind          TEXT NOT NULL,
	message       TEXT NOT NULL,
	created_at_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_telemetry_events_created_at
	ON telemetry_events (created_at_ms);
`

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// Store provides SQLite-backed persistence for telemetry records.
type Store struct {
	sqlDB *sql.DB
}

// DB returns the underlying sql.DB instance.
func (s *Store) DB() *sql.DB {
	if s == nil {
		return nil
	}
	return s.sqlDB
}

// Open opens a SQLite store at the provided DSN.
func Open(dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("datastore dsn is required")
	}

	if !strings.Contains(dsn, "?") {
		dsn += "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// AppendTelemetryEvent inserts one telemetry event row.
func (s *Store) AppendTelemetryEvent(ctx context.Context, evt storage.TelemetryEvent) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("store is not open")
	}

	eventID := strings.TrimSpace(evt.ID)
	if eventID == "" {
		generated, err := id.NewID()
		if err != nil {
			return fmt.Errorf("generate event id: %w", err)
		}
		eventID = generated
	}
	timestamp := evt.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO telemetry_events (id, service, severity, kind, message, created_at_ms)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		eventID, evt.Service, evt.Severity, evt.Kind, evt.Message, toMillis(timestamp),
	)
	if err != nil {
		return fmt.Errorf("insert telemetry event: %w", err)
	}
	return nil
}
