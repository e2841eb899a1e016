// Package progress reports structured crawl progress to an external
// observer. Telemetry is strictly best-effort: a sink outage must never fail
// a crawl, so callers log and drop emit errors.
package progress

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Operation statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// OpTypeScrape identifies website ingestion operations.
const OpTypeScrape = "website_scrape"

// Event is one progress update for a long-running operation.
type Event struct {
	OperationID    string `json:"operationId"`
	WorkspaceID    string `json:"workspaceId"`
	Type           string `json:"type"`
	Status         string `json:"status"` // running | completed | failed
	Progress       int    `json:"progress"` // 0–100
	TotalItems     int    `json:"totalItems"`
	ProcessedItems int    `json:"processedItems"`
	CurrentItem    string `json:"currentItem,omitempty"`
	Result         any    `json:"result,omitempty"`
	Error          string `json:"error,omitempty"`
}

// Sink receives operation lifecycle and progress events.
type Sink interface {
	// CreateOperation registers a new operation and returns its id.
	CreateOperation(ctx context.Context, workspaceID, opType string) (string, error)
	Publish(ctx context.Context, ev Event) error
}

// LogSink writes progress events to a slog.Logger. It is the default sink
// for CLI runs, where no real-time channel is attached.
type LogSink struct {
	Logger *slog.Logger
}

func (s *LogSink) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *LogSink) CreateOperation(ctx context.Context, workspaceID, opType string) (string, error) {
	id := uuid.New().String()
	s.logger().Info("operation created", "operation_id", id, "workspace_id", workspaceID, "type", opType)
	return id, nil
}

func (s *LogSink) Publish(ctx context.Context, ev Event) error {
	s.logger().Info("progress",
		"operation_id", ev.OperationID,
		"workspace_id", ev.WorkspaceID,
		"status", ev.Status,
		"progress", ev.Progress,
		"processed", ev.ProcessedItems,
		"total", ev.TotalItems,
		"current", ev.CurrentItem,
	)
	return nil
}

// Nop discards all events.
type Nop struct{}

func (Nop) CreateOperation(ctx context.Context, workspaceID, opType string) (string, error) {
	return uuid.New().String(), nil
}

func (Nop) Publish(ctx context.Context, ev Event) error { return nil }
