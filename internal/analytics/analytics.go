// Package analytics is an append-only event log keyed by workspace and event
// type, used for reporting crawl outcomes to the dashboard.
package analytics

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// EventScrapeCompleted is logged once per finished crawl, successful or not.
const EventScrapeCompleted = "scrape_completed"

// Logger appends workspace events.
type Logger interface {
	Log(ctx context.Context, workspaceID, eventType string, payload any) error
	Close() error
}

type sqliteLogger struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS analytics_events (
	id TEXT PRIMARY KEY,
	workspace_id TEXT NOT NULL,
	event_type TEXT NOT NULL,
	payload TEXT,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_workspace_type
	ON analytics_events (workspace_id, event_type);
`

// New opens (or creates) the SQLite-backed event log.
func New(dsn string) (Logger, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open analytics db: %w", err)
	}
	// Single connection: serializes writers and keeps :memory: databases
	// from splitting across pool connections.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply analytics schema: %w", err)
	}
	return &sqliteLogger{db: db}, nil
}

func (l *sqliteLogger) Log(ctx context.Context, workspaceID, eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	_, err = l.db.ExecContext(ctx,
		`INSERT INTO analytics_events (id, workspace_id, event_type, payload, created_at) VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(), workspaceID, eventType, string(data), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (l *sqliteLogger) Close() error {
	return l.db.Close()
}

// Nop discards all events; used when no analytics store is configured.
type Nop struct{}

func (Nop) Log(ctx context.Context, workspaceID, eventType string, payload any) error { return nil }
func (Nop) Close() error                                                              { return nil }
