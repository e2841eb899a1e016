package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/FranksOps/siphon/internal/storage"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ensure sqliteBackend implements storage.Backend
var _ storage.Backend = (*sqliteBackend)(nil)

// sqliteBackend is the development/single-node store. Embeddings are kept as
// JSON arrays; similarity search over them is the retrieval pipeline's
// problem, not ours.
type sqliteBackend struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	workspace_id TEXT NOT NULL,
	bot_id TEXT,
	url TEXT NOT NULL,
	title TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	last_modified DATETIME NOT NULL,
	created_at DATETIME NOT NULL,
	UNIQUE (workspace_id, url)
);

CREATE TABLE IF NOT EXISTS chunks (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	chunk_index INTEGER NOT NULL,
	chunk_text TEXT NOT NULL,
	embedding TEXT,
	metadata TEXT
);

CREATE INDEX IF NOT EXISTS idx_documents_workspace ON documents (workspace_id);
CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks (document_id);
`

// New creates a new SQLite-backed storage.Backend.
func New(dsn string) (storage.Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Single connection: serializes writers and keeps :memory: databases
	// from splitting across pool connections.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &sqliteBackend{db: db}, nil
}

func (b *sqliteBackend) FindByURL(ctx context.Context, workspaceID, url string) (*storage.DocRef, error) {
	var ref storage.DocRef
	err := b.db.QueryRowContext(ctx,
		`SELECT id, content_hash FROM documents WHERE workspace_id = ? AND url = ?`,
		workspaceID, url,
	).Scan(&ref.ID, &ref.ContentHash)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find document by url: %w", err)
	}
	return &ref, nil
}

func (b *sqliteBackend) StoredDates(ctx context.Context, workspaceID string) (map[string]time.Time, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT url, last_modified FROM documents WHERE workspace_id = ?`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("query stored dates: %w", err)
	}
	defer rows.Close()

	dates := make(map[string]time.Time)
	for rows.Next() {
		var url string
		var lastMod time.Time
		if err := rows.Scan(&url, &lastMod); err != nil {
			return nil, fmt.Errorf("scan stored date: %w", err)
		}
		dates[url] = lastMod
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stored dates: %w", err)
	}
	return dates, nil
}

func (b *sqliteBackend) DeleteDocumentAndChunks(ctx context.Context, documentID string) error {
	if _, err := b.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, documentID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

func (b *sqliteBackend) CreateDocument(ctx context.Context, doc storage.Document, chunks []storage.Chunk) (string, error) {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO documents (id, workspace_id, bot_id, url, title, content_hash, last_modified, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, doc.ID, doc.WorkspaceID, doc.BotID, doc.URL, doc.Title, doc.ContentHash, doc.LastModified, doc.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("insert document: %w", err)
	}

	for _, ch := range chunks {
		if ch.ID == "" {
			ch.ID = uuid.New().String()
		}
		embeddingJSON, err := json.Marshal(ch.Embedding)
		if err != nil {
			return "", fmt.Errorf("encode embedding: %w", err)
		}
		metadataJSON, err := json.Marshal(ch.Metadata)
		if err != nil {
			return "", fmt.Errorf("encode chunk metadata: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
		INSERT INTO chunks (id, document_id, chunk_index, chunk_text, embedding, metadata)
		VALUES (?, ?, ?, ?, ?, ?)
		`, ch.ID, doc.ID, ch.Index, ch.Text, string(embeddingJSON), string(metadataJSON))
		if err != nil {
			return "", fmt.Errorf("insert chunk %d: %w", ch.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit transaction: %w", err)
	}
	return doc.ID, nil
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}
