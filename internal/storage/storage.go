package storage

import (
	"context"
	"time"
)

// Document is one ingested page in a workspace's knowledge base.
type Document struct {
	ID          string
	WorkspaceID string
	BotID       string // optional sub-scope within the workspace
	URL         string
	Title       string
	ContentHash string // SHA-256 of extracted text
	// LastModified is the sitemap lastmod recorded at scrape time, or the
	// scrape time itself when the sitemap declared none. The change detector
	// diffs future sitemap entries against this.
	LastModified time.Time
	CreatedAt    time.Time
}

// Chunk is one embeddable slice of a document's text.
type Chunk struct {
	ID         string
	DocumentID string
	Index      int
	Text       string
	Embedding  []float32
	Metadata   map[string]any
}

// DocRef is the lightweight lookup result used for content-hash diffing.
type DocRef struct {
	ID          string
	ContentHash string
}

// Backend defines the interface for the per-workspace document/chunk store.
// CreateDocument must persist the document and its chunks atomically;
// replacing a stale page is DeleteDocumentAndChunks followed by
// CreateDocument, and backends must not let readers observe the old chunks
// after the new document is visible.
type Backend interface {
	// FindByURL returns nil, nil when no document exists for the URL.
	FindByURL(ctx context.Context, workspaceID, url string) (*DocRef, error)
	// StoredDates returns url → LastModified for every document in the
	// workspace. Read-only input to the sitemap change detector.
	StoredDates(ctx context.Context, workspaceID string) (map[string]time.Time, error)
	DeleteDocumentAndChunks(ctx context.Context, documentID string) error
	CreateDocument(ctx context.Context, doc Document, chunks []Chunk) (string, error)
	Close() error
}
