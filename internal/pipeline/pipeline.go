// Package pipeline persists scraped pages: it diffs content hashes against
// the stored copy, chunks and embeds changed pages, and atomically replaces
// stale documents in the knowledge base.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/FranksOps/siphon/internal/chunk"
	"github.com/FranksOps/siphon/internal/embed"
	"github.com/FranksOps/siphon/internal/metrics"
	"github.com/FranksOps/siphon/internal/scraper"
	"github.com/FranksOps/siphon/internal/storage"
)

// Pipeline implements scraper.Processor.
type Pipeline struct {
	store    storage.Backend
	chunker  *chunk.Chunker
	embedder embed.Generator
	logger   *slog.Logger
}

var _ scraper.Processor = (*Pipeline)(nil)

func New(store storage.Backend, chunker *chunk.Chunker, embedder embed.Generator, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{store: store, chunker: chunker, embedder: embedder, logger: logger}
}

// Process stores each page, skipping pages whose extracted text is unchanged
// since the last crawl. This hash check is independent of the sitemap date
// diff upstream: sitemap dates decide what to fetch, content hashes decide
// what to re-embed, and sites with unreliable lastmod values still avoid
// redundant embedding work here.
//
// Failures are per-page: one bad page is recorded and the rest proceed.
func (p *Pipeline) Process(ctx context.Context, opts scraper.Options, pages []scraper.ScrapedPage, report func(processed int, current string)) (int, []string) {
	var errs []string
	chunksCreated := 0

	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			errs = append(errs, "processing cancelled")
			break
		}
		n, err := p.storePage(ctx, opts, page)
		if err != nil {
			metrics.PageErrors.Inc()
			errs = append(errs, fmt.Sprintf("failed to store %s: %v", page.URL, err))
			p.logger.Warn("page store failed", "url", page.URL, "error", err)
		}
		chunksCreated += n
		if report != nil {
			report(i+1, page.URL)
		}
	}
	return chunksCreated, errs
}

// storePage returns the number of chunks written for the page.
func (p *Pipeline) storePage(ctx context.Context, opts scraper.Options, page scraper.ScrapedPage) (int, error) {
	sum := sha256.Sum256([]byte(page.Content))
	hash := hex.EncodeToString(sum[:])

	ref, err := p.store.FindByURL(ctx, opts.WorkspaceID, page.URL)
	if err != nil {
		return 0, fmt.Errorf("lookup existing document: %w", err)
	}
	if ref != nil && ref.ContentHash == hash {
		metrics.PagesSkipped.WithLabelValues("unchanged_hash").Inc()
		p.logger.Debug("content unchanged", "url", page.URL)
		return 0, nil
	}

	texts := p.chunker.Split(page.Content)
	if len(texts) == 0 {
		metrics.PagesSkipped.WithLabelValues("thin_content").Inc()
		return 0, nil
	}

	vectors, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed %d chunks: %w", len(texts), err)
	}
	if len(vectors) != len(texts) {
		return 0, fmt.Errorf("embedding count mismatch: %d texts, %d vectors", len(texts), len(vectors))
	}

	now := time.Now().UTC()
	lastMod := now
	if page.LastModified != nil {
		lastMod = page.LastModified.UTC()
	}
	doc := storage.Document{
		WorkspaceID:  opts.WorkspaceID,
		BotID:        opts.BotID,
		URL:          page.URL,
		Title:        page.Title,
		ContentHash:  hash,
		LastModified: lastMod,
		CreatedAt:    now,
	}
	chunks := make([]storage.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = storage.Chunk{
			Index:     i,
			Text:      text,
			Embedding: vectors[i],
			Metadata: map[string]any{
				"url":         page.URL,
				"title":       page.Title,
				"chunk_index": i,
			},
		}
	}

	// Replace, not update: the old document and its chunks go away together
	// before the new version is written.
	if ref != nil {
		if err := p.store.DeleteDocumentAndChunks(ctx, ref.ID); err != nil {
			return 0, fmt.Errorf("delete stale document: %w", err)
		}
	}
	if _, err := p.store.CreateDocument(ctx, doc, chunks); err != nil {
		return 0, fmt.Errorf("create document: %w", err)
	}

	metrics.ChunksCreated.WithLabelValues(opts.WorkspaceID).Add(float64(len(chunks)))
	p.logger.Info("page stored", "url", page.URL, "chunks", len(chunks))
	return len(chunks), nil
}
