// Package scraper turns a website into scraped pages: it resolves the
// site's sitemap, applies robots.txt and URL safety policy, and walks a
// bounded frontier through a headless browser. Persisting the pages is the
// pipeline's job, reached through the Processor interface.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/FranksOps/siphon/internal/analytics"
	"github.com/FranksOps/siphon/internal/metrics"
	"github.com/FranksOps/siphon/internal/progress"
	"github.com/FranksOps/siphon/internal/safeurl"
	"github.com/FranksOps/siphon/internal/storage"
	"github.com/FranksOps/siphon/pkg/httpclient"
	"github.com/FranksOps/siphon/pkg/ratelimit"
	"github.com/FranksOps/siphon/pkg/useragent"
)

// Processor turns scraped pages into persisted, embedded knowledge-base
// documents. The report callback feeds the second half of the progress bar.
type Processor interface {
	Process(ctx context.Context, opts Options, pages []ScrapedPage, report func(processed int, current string)) (chunksCreated int, errs []string)
}

// Result summarizes one finished crawl.
type Result struct {
	PagesScraped  int      `json:"pagesScraped"`
	ChunksCreated int      `json:"chunksCreated"`
	Errors        []string `json:"errors,omitempty"`
}

// Deps are the collaborators a Crawler needs. Sink, Events and Logger may be
// nil; New substitutes no-op implementations.
type Deps struct {
	Guard     *safeurl.Guard
	Client    *httpclient.Client
	Renderer  Renderer
	Store     storage.Backend
	Processor Processor
	Sink      progress.Sink
	Events    analytics.Logger
	Logger    *slog.Logger
}

// Crawler runs single-site crawls. One Crawler handles one crawl at a time;
// concurrent workspaces get their own Crawler via the scheduler.
type Crawler struct {
	guard     *safeurl.Guard
	client    *httpclient.Client
	renderer  Renderer
	store     storage.Backend
	processor Processor
	sink      progress.Sink
	events    analytics.Logger
	logger    *slog.Logger
}

func New(d Deps) *Crawler {
	if d.Sink == nil {
		d.Sink = progress.Nop{}
	}
	if d.Events == nil {
		d.Events = analytics.Nop{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Crawler{
		guard:     d.Guard,
		client:    d.Client,
		renderer:  d.Renderer,
		store:     d.Store,
		processor: d.Processor,
		sink:      d.Sink,
		events:    d.Events,
		logger:    d.Logger,
	}
}

// Run executes one crawl to completion. It returns a non-nil Result for
// every outcome except unrecoverable failures (invalid options, browser
// launch failure), which return an error instead. Per-page failures and a
// rejected root URL are recorded in Result.Errors, not returned.
func (c *Crawler) Run(ctx context.Context, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	f, err := compileFilters(opts)
	if err != nil {
		return nil, err
	}
	root, err := url.Parse(opts.RootURL)
	if err != nil {
		return nil, fmt.Errorf("parse root url: %w", err)
	}

	ua := useragent.Identity{Contact: opts.Contact}.String()
	start := time.Now()
	logger := c.logger.With("workspace_id", opts.WorkspaceID, "root_url", opts.RootURL)

	// Telemetry is best-effort: a sink failure downgrades to no events, it
	// never aborts the crawl.
	opID, err := c.sink.CreateOperation(ctx, opts.WorkspaceID, progress.OpTypeScrape)
	if err != nil {
		logger.Warn("progress sink unavailable", "error", err)
		opID = ""
	}
	emit := func(ev progress.Event) {
		if opID == "" {
			return
		}
		ev.OperationID = opID
		ev.WorkspaceID = opts.WorkspaceID
		ev.Type = progress.OpTypeScrape
		if err := c.sink.Publish(context.WithoutCancel(ctx), ev); err != nil {
			logger.Warn("progress publish failed", "error", err)
		}
	}

	emit(progress.Event{Status: progress.StatusRunning, Progress: 0})
	result := &Result{}

	// The root URL gets the same vetting as every discovered URL. A blocked
	// root ends the crawl with zero pages but is not an infrastructure
	// failure, so it reports as a completed, empty crawl.
	if err := c.guard.Check(ctx, opts.RootURL); err != nil {
		metrics.URLsBlocked.WithLabelValues("ssrf").Inc()
		result.Errors = append(result.Errors, fmt.Sprintf("root url rejected: %v", err))
		logger.Warn("root url rejected", "error", err)
		c.finish(ctx, emit, opts, result, start)
		return result, nil
	}

	robots := AllowAll()
	if opts.RespectRobots {
		robots = FetchRobots(ctx, c.client, opts.RootURL, ua, logger)
	}

	// Sitemap mode: when the site advertises a sitemap, it is authoritative.
	// Link discovery is disabled and only changed entries are fetched.
	linkDiscovery := true
	var frontier []string
	lastmods := make(map[string]*time.Time)
	totalItems := opts.MaxPages

	if opts.DetectSitemap {
		resolver := &SitemapResolver{Client: c.client, Guard: c.guard, UserAgent: ua, Logger: logger}
		if entries := resolver.Resolve(ctx, opts.RootURL); len(entries) > 0 {
			stored, err := c.store.StoredDates(ctx, opts.WorkspaceID)
			if err != nil {
				logger.Warn("stored dates unavailable, scraping all sitemap entries", "error", err)
				stored = nil
			}
			toScrape, unchanged := Partition(entries, stored)
			if unchanged > 0 {
				metrics.PagesSkipped.WithLabelValues("unchanged_sitemap").Add(float64(unchanged))
			}
			logger.Info("sitemap partitioned", "to_scrape", len(toScrape), "unchanged", unchanged)
			if len(toScrape) == 0 {
				// Nothing changed since the last crawl; no browser is
				// launched at all.
				c.finish(ctx, emit, opts, result, start)
				return result, nil
			}
			linkDiscovery = false
			for _, e := range toScrape {
				frontier = append(frontier, e.URL)
				lastmods[e.URL] = e.LastModified
			}
			if len(frontier) < totalItems {
				totalItems = len(frontier)
			}
		}
	}
	if linkDiscovery {
		frontier = []string{opts.RootURL}
	}

	// The browser launches only once there is real work. Launch failure is
	// the one mid-crawl condition treated as fatal.
	if err := c.renderer.Start(ctx); err != nil {
		emit(progress.Event{Status: progress.StatusFailed, Error: fmt.Sprintf("start browser: %v", err)})
		return nil, fmt.Errorf("start browser: %w", err)
	}
	defer c.renderer.Close()

	limiter := ratelimit.New(opts.RateLimit, 0.1)
	visited := make(map[string]bool)
	var pages []ScrapedPage

	for len(frontier) > 0 && len(pages) < opts.MaxPages {
		if ctx.Err() != nil {
			result.Errors = append(result.Errors, "crawl cancelled")
			break
		}
		raw := frontier[0]
		frontier = frontier[1:]

		norm := normalizeURL(raw)
		if visited[norm] {
			metrics.PagesSkipped.WithLabelValues("visited").Inc()
			continue
		}
		visited[norm] = true

		if ok, reason := f.shouldScrape(norm, root.Host); !ok {
			metrics.URLsBlocked.WithLabelValues(blockLabel(reason)).Inc()
			continue
		}
		if u, err := url.Parse(norm); err == nil && !robots.Allowed(u.Path) {
			metrics.URLsBlocked.WithLabelValues("robots").Inc()
			logger.Debug("robots disallow", "url", norm)
			continue
		}
		// Re-checked per URL: DNS may answer differently now, and sitemap or
		// page content may point anywhere.
		if err := c.guard.Check(ctx, norm); err != nil {
			metrics.URLsBlocked.WithLabelValues("ssrf").Inc()
			logger.Warn("url blocked", "url", norm, "error", err)
			continue
		}

		fetchStart := time.Now()
		html, err := c.renderer.Render(ctx, norm, opts.PageTimeout)
		metrics.FetchDuration.Observe(time.Since(fetchStart).Seconds())
		if err != nil {
			metrics.PageErrors.Inc()
			result.Errors = append(result.Errors, fmt.Sprintf("failed to scrape %s: %v", norm, err))
			logger.Warn("page fetch failed", "url", norm, "error", err)
			if limiter.Wait(ctx) != nil {
				break
			}
			continue
		}
		if blocked, source := detectChallenge(html); blocked {
			metrics.PageErrors.Inc()
			result.Errors = append(result.Errors, fmt.Sprintf("failed to scrape %s: blocked by %s challenge", norm, source))
			logger.Warn("challenge page detected", "url", norm, "source", source)
			if limiter.Wait(ctx) != nil {
				break
			}
			continue
		}

		page, links, err := extractPage(norm, html)
		if err != nil {
			metrics.PageErrors.Inc()
			result.Errors = append(result.Errors, fmt.Sprintf("failed to scrape %s: %v", norm, err))
			if limiter.Wait(ctx) != nil {
				break
			}
			continue
		}
		if page == nil {
			metrics.PagesSkipped.WithLabelValues("thin_content").Inc()
			logger.Debug("thin page skipped", "url", norm)
		} else {
			page.LastModified = lastmods[norm]
			pages = append(pages, *page)
			metrics.PagesScraped.WithLabelValues(opts.WorkspaceID).Inc()
		}

		if linkDiscovery {
			for _, l := range links {
				if !visited[normalizeURL(l)] {
					frontier = append(frontier, l)
				}
			}
		}

		emit(progress.Event{
			Status:         progress.StatusRunning,
			Progress:       scaleProgress(len(pages), totalItems, 0, 50),
			TotalItems:     totalItems,
			ProcessedItems: len(pages),
			CurrentItem:    norm,
		})

		if limiter.Wait(ctx) != nil {
			result.Errors = append(result.Errors, "crawl cancelled")
			break
		}
	}

	result.PagesScraped = len(pages)

	if len(pages) > 0 && ctx.Err() == nil {
		report := func(processed int, current string) {
			emit(progress.Event{
				Status:         progress.StatusRunning,
				Progress:       scaleProgress(processed, len(pages), 50, 100),
				TotalItems:     len(pages),
				ProcessedItems: processed,
				CurrentItem:    current,
			})
		}
		chunks, perrs := c.processor.Process(ctx, opts, pages, report)
		result.ChunksCreated = chunks
		result.Errors = append(result.Errors, perrs...)
	}

	logger.Info("crawl finished",
		"pages_scraped", result.PagesScraped,
		"chunks_created", result.ChunksCreated,
		"errors", len(result.Errors),
		"duration", time.Since(start),
	)
	c.finish(ctx, emit, opts, result, start)
	return result, nil
}

// finish records terminal telemetry. Every crawl that reaches this point
// reports completed; fatal paths emit failed before returning.
func (c *Crawler) finish(ctx context.Context, emit func(progress.Event), opts Options, result *Result, start time.Time) {
	ctx = context.WithoutCancel(ctx)
	metrics.CrawlDuration.WithLabelValues(opts.WorkspaceID).Observe(time.Since(start).Seconds())
	if err := c.events.Log(ctx, opts.WorkspaceID, analytics.EventScrapeCompleted, map[string]any{
		"pagesScraped":  result.PagesScraped,
		"chunksCreated": result.ChunksCreated,
		"errorCount":    len(result.Errors),
		"durationMs":    time.Since(start).Milliseconds(),
	}); err != nil {
		c.logger.Warn("analytics log failed", "error", err)
	}
	emit(progress.Event{
		Status:         progress.StatusCompleted,
		Progress:       100,
		TotalItems:     result.PagesScraped,
		ProcessedItems: result.PagesScraped,
		Result:         result,
	})
}

// normalizeURL strips fragments so frontier deduplication treats anchor
// variants of a page as one URL.
func normalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Fragment = ""
	return u.String()
}

func blockLabel(reason string) string {
	if reason == "cross_host" {
		return "cross_host"
	}
	return "filter"
}

func scaleProgress(done, total, lo, hi int) int {
	if total <= 0 {
		return hi
	}
	p := lo + done*(hi-lo)/total
	if p > hi {
		p = hi
	}
	return p
}
