// Package report renders post-crawl summaries for CLI output, in text, JSON,
// or HTML form.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"text/template"
	"time"

	"github.com/FranksOps/siphon/internal/scraper"
)

// Summary contains aggregated metrics about one crawl.
type Summary struct {
	WorkspaceID   string        `json:"workspaceId"`
	RootURL       string        `json:"rootUrl"`
	PagesScraped  int           `json:"pagesScraped"`
	ChunksCreated int           `json:"chunksCreated"`
	ErrorCount    int           `json:"errorCount"`
	Errors        []string      `json:"errors,omitempty"`
	StartTime     time.Time     `json:"startTime"`
	EndTime       time.Time     `json:"endTime"`
	Duration      time.Duration `json:"duration"`
}

// GenerateSummary builds a Summary from a crawl result and its timing.
func GenerateSummary(workspaceID, rootURL string, result *scraper.Result, start, end time.Time) Summary {
	s := Summary{
		WorkspaceID: workspaceID,
		RootURL:     rootURL,
		StartTime:   start,
		EndTime:     end,
		Duration:    end.Sub(start),
	}
	if result != nil {
		s.PagesScraped = result.PagesScraped
		s.ChunksCreated = result.ChunksCreated
		s.ErrorCount = len(result.Errors)
		s.Errors = result.Errors
	}
	return s
}

// WriteJSON writes the summary to the provided writer in JSON format.
func WriteJSON(w io.Writer, summary Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	return nil
}

// WriteText writes a human-readable text summary to the provided writer.
func WriteText(w io.Writer, summary Summary) error {
	const textTmpl = `Siphon Crawl Summary
--------------------
Workspace:     {{.WorkspaceID}}
Root URL:      {{.RootURL}}
Time:          {{.StartTime.Format "2006-01-02 15:04:05"}} - {{.EndTime.Format "2006-01-02 15:04:05"}}
Duration:      {{.Duration}}
Pages Scraped: {{.PagesScraped}}
Chunks Stored: {{.ChunksCreated}}

Errors: {{.ErrorCount}}
{{- range .Errors}}
  {{.}}
{{- else}}
  None
{{- end}}
`

	t, err := template.New("textReport").Parse(textTmpl)
	if err != nil {
		return fmt.Errorf("parse text template: %w", err)
	}
	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("render text summary: %w", err)
	}
	return nil
}

// WriteHTML writes a basic HTML report to the provided writer.
func WriteHTML(w io.Writer, summary Summary) error {
	const htmlTmpl = `<!DOCTYPE html>
<html>
<head>
<title>Siphon Crawl Report</title>
<style>
  body { font-family: sans-serif; margin: 40px; color: #333; }
  h1 { border-bottom: 2px solid #ccc; padding-bottom: 10px; }
  .stat-card { display: inline-block; padding: 20px; margin: 10px 10px 10px 0; background: #f4f4f4; border-radius: 5px; min-width: 150px; }
  .stat-val { font-size: 24px; font-weight: bold; }
  table { border-collapse: collapse; margin-top: 10px; }
  th, td { padding: 8px 12px; border: 1px solid #ccc; text-align: left; }
  th { background: #eaeaea; }
</style>
</head>
<body>
  <h1>Siphon Crawl Report</h1>
  <p><strong>Workspace:</strong> {{.WorkspaceID}}</p>
  <p><strong>Root URL:</strong> {{.RootURL}}</p>
  <p><strong>Time:</strong> {{.StartTime.Format "2006-01-02 15:04:05"}} to {{.EndTime.Format "2006-01-02 15:04:05"}} ({{.Duration}})</p>

  <div class="stat-card">
    <div>Pages Scraped</div>
    <div class="stat-val">{{.PagesScraped}}</div>
  </div>
  <div class="stat-card">
    <div>Chunks Stored</div>
    <div class="stat-val">{{.ChunksCreated}}</div>
  </div>
  <div class="stat-card">
    <div>Errors</div>
    <div class="stat-val" style="color: {{if gt .ErrorCount 0}}red{{else}}green{{end}};">{{.ErrorCount}}</div>
  </div>

  <h3>Errors</h3>
  <table>
    <tr><th>Detail</th></tr>
    {{- range .Errors}}
    <tr><td>{{.}}</td></tr>
    {{- else}}
    <tr><td>None</td></tr>
    {{- end}}
  </table>
</body>
</html>
`
	t, err := template.New("htmlReport").Parse(htmlTmpl)
	if err != nil {
		return fmt.Errorf("parse html template: %w", err)
	}
	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("render html report: %w", err)
	}
	return nil
}
