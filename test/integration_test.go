//go:build integration

package test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/FranksOps/siphon/internal/chunk"
	"github.com/FranksOps/siphon/internal/pipeline"
	"github.com/FranksOps/siphon/internal/safeurl"
	"github.com/FranksOps/siphon/internal/scraper"
	"github.com/FranksOps/siphon/internal/storage"
	"github.com/FranksOps/siphon/internal/storage/sqlite"
	"github.com/FranksOps/siphon/pkg/httpclient"
)

// plainRenderer fetches pages over plain HTTP so the full crawl and storage
// path runs without a browser.
type plainRenderer struct{}

func (plainRenderer) Start(ctx context.Context) error { return nil }

func (plainRenderer) Render(ctx context.Context, pageURL string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	return string(body), err
}

func (plainRenderer) Close() {}

type unitEmbedder struct{}

func (unitEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func article(title string, paragraphs int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<html><head><title>%s</title></head><body><main>", title)
	for i := 0; i < paragraphs; i++ {
		fmt.Fprintf(&b, "<p>Paragraph %d of %s explains one part of the product in enough detail that the chunker keeps it as real content for retrieval.</p>", i, title)
	}
	b.WriteString("</main></body></html>")
	return b.String()
}

func newCrawler(t *testing.T, store storage.Backend) *scraper.Crawler {
	t.Helper()
	client, err := httpclient.New(httpclient.Config{Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	chunker, err := chunk.New(chunk.DefaultTokenLimit, chunk.DefaultOverlap)
	if err != nil {
		t.Fatalf("new chunker: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return scraper.New(scraper.Deps{
		Guard:     &safeurl.Guard{AllowPrivate: true},
		Client:    client,
		Renderer:  plainRenderer{},
		Store:     store,
		Processor: pipeline.New(store, chunker, unitEmbedder{}, logger),
		Logger:    logger,
	})
}

func fastOpts(rootURL string) scraper.Options {
	opts := scraper.DefaultOptions("ws-int", rootURL)
	opts.RateLimit = time.Millisecond
	opts.PageTimeout = 5 * time.Second
	return opts
}

func TestIntegration_SitemapCrawlAndIdempotence(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sitemap.xml":
			fmt.Fprintf(w, `<?xml version="1.0"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
	<url><loc>%[1]s/guide</loc><lastmod>2026-02-01T00:00:00Z</lastmod></url>
	<url><loc>%[1]s/faq</loc><lastmod>2026-02-01T00:00:00Z</lastmod></url>
</urlset>`, srv.URL)
		case "/guide":
			fmt.Fprint(w, article("Product Guide | Acme", 4))
		case "/faq":
			fmt.Fprint(w, article("FAQ | Acme", 3))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	crawler := newCrawler(t, store)

	// First crawl ingests both sitemap entries.
	result, err := crawler.Run(ctx, fastOpts(srv.URL+"/"))
	if err != nil {
		t.Fatalf("first crawl: %v", err)
	}
	if result.PagesScraped != 2 {
		t.Fatalf("PagesScraped = %d, want 2; errors: %v", result.PagesScraped, result.Errors)
	}
	if result.ChunksCreated == 0 {
		t.Errorf("no chunks created")
	}

	ref, err := store.FindByURL(ctx, "ws-int", srv.URL+"/guide")
	if err != nil || ref == nil {
		t.Fatalf("guide not stored: ref=%v err=%v", ref, err)
	}

	dates, err := store.StoredDates(ctx, "ws-int")
	if err != nil {
		t.Fatalf("stored dates: %v", err)
	}
	want := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	if got := dates[srv.URL+"/guide"]; !got.Equal(want) {
		t.Errorf("stored lastmod = %v, want sitemap lastmod %v", got, want)
	}

	// Second crawl sees identical lastmod values and fetches nothing.
	result2, err := crawler.Run(ctx, fastOpts(srv.URL+"/"))
	if err != nil {
		t.Fatalf("second crawl: %v", err)
	}
	if result2.PagesScraped != 0 || result2.ChunksCreated != 0 {
		t.Errorf("second crawl = %+v, want no work on unchanged site", result2)
	}
}

func TestIntegration_LinkDiscoveryHonorsPageCap(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/":
			fmt.Fprint(w, `<html><head><title>Home | Acme</title></head><body><main>
				<p>The landing page introduces the product with sufficient text to be extracted and stored by the crawler.</p>
				<a href="/p1">1</a><a href="/p2">2</a><a href="/p3">3</a><a href="/p4">4</a><a href="/p5">5</a>
			</main></body></html>`)
		case strings.HasPrefix(r.URL.Path, "/p"):
			fmt.Fprint(w, article("Page "+r.URL.Path+" | Acme", 2))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	opts := fastOpts(srv.URL + "/")
	opts.MaxPages = 3
	opts.DetectSitemap = false

	result, err := newCrawler(t, store).Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("crawl: %v", err)
	}
	if result.PagesScraped != 3 {
		t.Errorf("PagesScraped = %d, want exactly the page cap", result.PagesScraped)
	}

	dates, err := store.StoredDates(context.Background(), "ws-int")
	if err != nil {
		t.Fatalf("stored dates: %v", err)
	}
	if len(dates) != 3 {
		t.Errorf("stored %d documents, want 3", len(dates))
	}
}

func TestIntegration_ContentHashSkipsReembedding(t *testing.T) {
	serveV2 := false
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sitemap.xml":
			// lastmod always advances, so the page is always refetched; the
			// content hash decides whether it is re-embedded.
			lastmod := "2026-02-01T00:00:00Z"
			if serveV2 {
				lastmod = "2026-02-02T00:00:00Z"
			}
			fmt.Fprintf(w, `<?xml version="1.0"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
	<url><loc>%s/page</loc><lastmod>%s</lastmod></url>
</urlset>`, srv.URL, lastmod)
		case "/page":
			fmt.Fprint(w, article("Stable Page | Acme", 3))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	crawler := newCrawler(t, store)

	if _, err := crawler.Run(ctx, fastOpts(srv.URL+"/")); err != nil {
		t.Fatalf("first crawl: %v", err)
	}
	ref1, _ := store.FindByURL(ctx, "ws-int", srv.URL+"/page")

	serveV2 = true
	result, err := crawler.Run(ctx, fastOpts(srv.URL+"/"))
	if err != nil {
		t.Fatalf("second crawl: %v", err)
	}
	if result.PagesScraped != 1 {
		t.Fatalf("bumped lastmod should force a refetch, got %d pages", result.PagesScraped)
	}
	if result.ChunksCreated != 0 {
		t.Errorf("identical content was re-embedded: %d chunks", result.ChunksCreated)
	}

	ref2, _ := store.FindByURL(ctx, "ws-int", srv.URL+"/page")
	if ref1 == nil || ref2 == nil || ref1.ID != ref2.ID {
		t.Errorf("unchanged content should keep the stored document, got %v vs %v", ref1, ref2)
	}
}
