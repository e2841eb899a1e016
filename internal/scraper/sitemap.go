package scraper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	sitemap "github.com/oxffaa/gopher-parse-sitemap"

	"github.com/FranksOps/siphon/internal/safeurl"
	"github.com/FranksOps/siphon/pkg/httpclient"
)

const (
	// sitemapMaxBytes bounds one sitemap document. The protocol itself caps
	// files at 50MB but we have no use for anything near that.
	sitemapMaxBytes = 16 * 1024 * 1024

	// sitemapMaxFetches bounds total documents fetched per crawl, including
	// nested index members, so a malicious index cannot spin us forever.
	sitemapMaxFetches = 50
)

// sitemapLocations are the conventional paths tried in order against the
// site root.
var sitemapLocations = []string{
	"/sitemap.xml",
	"/sitemap_index.xml",
	"/sitemap-index.xml",
	"/wp-sitemap.xml",
}

// SitemapResolver discovers a site's sitemap and flattens it, following
// sitemap index files recursively, into a list of page entries.
type SitemapResolver struct {
	Client    *httpclient.Client
	Guard     *safeurl.Guard
	UserAgent string
	Logger    *slog.Logger
}

// Resolve tries the conventional sitemap locations and returns the entries
// of the first one that parses to a non-empty set. A site without a sitemap
// yields nil, which callers treat as "fall back to link discovery".
func (r *SitemapResolver) Resolve(ctx context.Context, rootURL string) []SitemapEntry {
	root, err := url.Parse(rootURL)
	if err != nil {
		return nil
	}
	origin := root.Scheme + "://" + root.Host

	for _, loc := range sitemapLocations {
		visited := make(map[string]bool)
		fetches := 0
		entries := r.collect(ctx, origin+loc, visited, &fetches)
		if len(entries) > 0 {
			r.Logger.Info("sitemap resolved", "location", origin+loc, "entries", len(entries))
			return entries
		}
	}
	return nil
}

// collect fetches one sitemap document and returns its page entries,
// recursing into index members. Sitemap content is remote input: every URL
// found inside it is re-checked against the guard before fetching.
func (r *SitemapResolver) collect(ctx context.Context, sitemapURL string, visited map[string]bool, fetches *int) []SitemapEntry {
	if visited[sitemapURL] || *fetches >= sitemapMaxFetches {
		return nil
	}
	visited[sitemapURL] = true
	*fetches++

	if err := r.Guard.Check(ctx, sitemapURL); err != nil {
		r.Logger.Warn("sitemap url blocked", "url", sitemapURL, "error", err)
		return nil
	}

	body, err := r.fetch(ctx, sitemapURL)
	if err != nil {
		r.Logger.Debug("sitemap fetch failed", "url", sitemapURL, "error", err)
		return nil
	}

	var entries []SitemapEntry
	err = sitemap.Parse(bytes.NewReader(body), func(e sitemap.Entry) error {
		entries = append(entries, SitemapEntry{
			URL:          e.GetLocation(),
			LastModified: e.GetLastModified(),
		})
		return nil
	})
	if err == nil && len(entries) > 0 {
		return entries
	}

	// Not a urlset, or an empty one; try it as a sitemap index.
	var children []string
	err = sitemap.ParseIndex(bytes.NewReader(body), func(e sitemap.IndexEntry) error {
		children = append(children, e.GetLocation())
		return nil
	})
	if err != nil {
		return nil
	}
	for _, child := range children {
		entries = append(entries, r.collect(ctx, child, visited, fetches)...)
	}
	return entries
}

func (r *SitemapResolver) fetch(ctx context.Context, sitemapURL string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, sitemapURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", r.UserAgent)
	req.Header.Set("Accept", "application/xml, text/xml")

	resp, err := r.Client.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, sitemapMaxBytes))
}
