package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/FranksOps/siphon/internal/scraper"
)

func TestGenerateSummary(t *testing.T) {
	start := time.Now()
	end := start.Add(90 * time.Second)

	result := &scraper.Result{
		PagesScraped:  12,
		ChunksCreated: 48,
		Errors:        []string{"failed to scrape https://acme.example/broken: status 500"},
	}

	summary := GenerateSummary("ws1", "https://acme.example/", result, start, end)

	if summary.PagesScraped != 12 {
		t.Errorf("expected 12 pages scraped, got %d", summary.PagesScraped)
	}
	if summary.ChunksCreated != 48 {
		t.Errorf("expected 48 chunks, got %d", summary.ChunksCreated)
	}
	if summary.ErrorCount != 1 {
		t.Errorf("expected 1 error, got %d", summary.ErrorCount)
	}
	if summary.Duration != 90*time.Second {
		t.Errorf("expected 90s duration, got %v", summary.Duration)
	}
	if summary.WorkspaceID != "ws1" || summary.RootURL != "https://acme.example/" {
		t.Errorf("workspace/root not carried over: %+v", summary)
	}
}

func TestGenerateSummary_NilResult(t *testing.T) {
	summary := GenerateSummary("ws1", "https://acme.example/", nil, time.Now(), time.Now())
	if summary.PagesScraped != 0 || summary.ErrorCount != 0 {
		t.Errorf("nil result should produce an empty summary, got %+v", summary)
	}
}

func TestWriteJSON(t *testing.T) {
	summary := Summary{PagesScraped: 5}
	var buf bytes.Buffer
	if err := WriteJSON(&buf, summary); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(buf.String(), `"pagesScraped": 5`) {
		t.Errorf("expected JSON to contain pagesScraped: 5, got %s", buf.String())
	}
}

func TestWriteText(t *testing.T) {
	summary := Summary{
		WorkspaceID:   "ws1",
		PagesScraped:  5,
		ChunksCreated: 20,
		ErrorCount:    1,
		Errors:        []string{"failed to scrape https://acme.example/x: timeout"},
	}
	var buf bytes.Buffer
	if err := WriteText(&buf, summary); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "Pages Scraped: 5") {
		t.Errorf("expected text to contain pages scraped count, got:\n%s", out)
	}
	if !strings.Contains(out, "Chunks Stored: 20") {
		t.Errorf("expected text to contain chunk count")
	}
	if !strings.Contains(out, "timeout") {
		t.Errorf("expected text to list error details")
	}
}

func TestWriteText_NoErrors(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteText(&buf, Summary{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "None") {
		t.Errorf("expected empty error list to render as None")
	}
}

func TestWriteHTML(t *testing.T) {
	summary := Summary{
		WorkspaceID:  "ws1",
		PagesScraped: 10,
		ErrorCount:   2,
		Errors:       []string{"a", "b"},
	}
	var buf bytes.Buffer
	if err := WriteHTML(&buf, summary); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "<title>Siphon Crawl Report</title>") {
		t.Errorf("expected HTML title")
	}
	if !strings.Contains(out, "ws1") {
		t.Errorf("expected HTML to contain the workspace id")
	}
}
