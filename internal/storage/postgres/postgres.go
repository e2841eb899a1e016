package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/FranksOps/siphon/internal/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

// ensure postgresBackend implements storage.Backend
var _ storage.Backend = (*postgresBackend)(nil)

type postgresBackend struct {
	pool *pgxpool.Pool
}

// EmbeddingDims must match the embedding model's output width
// (text-embedding-3-small produces 1536-dimensional vectors).
const EmbeddingDims = 1536

const schema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	workspace_id TEXT NOT NULL,
	bot_id TEXT,
	url TEXT NOT NULL,
	title TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	last_modified TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	UNIQUE (workspace_id, url)
);

CREATE TABLE IF NOT EXISTS chunks (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	chunk_index INTEGER NOT NULL,
	chunk_text TEXT NOT NULL,
	embedding vector(1536),
	metadata JSONB
);

CREATE INDEX IF NOT EXISTS idx_documents_workspace ON documents (workspace_id);
CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks (document_id);
`

// New creates a new Postgres-backed storage.Backend. The pgvector extension
// must be installable on the target database.
func New(ctx context.Context, dsn string) (storage.Backend, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &postgresBackend{pool: pool}, nil
}

func (b *postgresBackend) FindByURL(ctx context.Context, workspaceID, url string) (*storage.DocRef, error) {
	var ref storage.DocRef
	err := b.pool.QueryRow(ctx,
		`SELECT id, content_hash FROM documents WHERE workspace_id = $1 AND url = $2`,
		workspaceID, url,
	).Scan(&ref.ID, &ref.ContentHash)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find document by url: %w", err)
	}
	return &ref, nil
}

func (b *postgresBackend) StoredDates(ctx context.Context, workspaceID string) (map[string]time.Time, error) {
	rows, err := b.pool.Query(ctx,
		`SELECT url, last_modified FROM documents WHERE workspace_id = $1`, workspaceID)
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

func (b *postgresBackend) DeleteDocumentAndChunks(ctx context.Context, documentID string) error {
	// chunks are removed via ON DELETE CASCADE
	if _, err := b.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, documentID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

func (b *postgresBackend) CreateDocument(ctx context.Context, doc storage.Document, chunks []storage.Chunk) (string, error) {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx, `
	INSERT INTO documents (id, workspace_id, bot_id, url, title, content_hash, last_modified, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, doc.ID, doc.WorkspaceID, doc.BotID, doc.URL, doc.Title, doc.ContentHash, doc.LastModified, doc.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("insert document: %w", err)
	}

	for _, ch := range chunks {
		if ch.ID == "" {
			ch.ID = uuid.New().String()
		}
		metadataJSON, err := json.Marshal(ch.Metadata)
		if err != nil {
			return "", fmt.Errorf("encode chunk metadata: %w", err)
		}
		_, err = tx.Exec(ctx, `
		INSERT INTO chunks (id, document_id, chunk_index, chunk_text, embedding, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		`, ch.ID, doc.ID, ch.Index, ch.Text, pgvector.NewVector(ch.Embedding), metadataJSON)
		if err != nil {
			return "", fmt.Errorf("insert chunk %d: %w", ch.Index, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit transaction: %w", err)
	}
	return doc.ID, nil
}

func (b *postgresBackend) Close() error {
	b.pool.Close()
	return nil
}
