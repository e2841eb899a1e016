package scraper

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/temoto/robotstxt"

	"github.com/FranksOps/siphon/pkg/httpclient"
)

// robotsMaxBytes caps how much of /robots.txt we read. Real files are tiny;
// anything larger is hostile or broken.
const robotsMaxBytes = 512 * 1024

// RobotsPolicy answers whether a path may be crawled. A nil group allows
// everything, which is the fallback for missing or unfetchable robots.txt.
type RobotsPolicy struct {
	group *robotstxt.Group
}

// AllowAll is the policy used when robots.txt enforcement is disabled or the
// file could not be retrieved.
func AllowAll() *RobotsPolicy { return &RobotsPolicy{} }

// FetchRobots retrieves and parses robots.txt for the root URL's origin.
// Any failure, network, HTTP status, or parse, degrades to allow-all; robots
// handling must never abort a crawl.
func FetchRobots(ctx context.Context, client *httpclient.Client, rootURL, userAgent string, logger *slog.Logger) *RobotsPolicy {
	root, err := url.Parse(rootURL)
	if err != nil {
		return AllowAll()
	}
	robotsURL := root.Scheme + "://" + root.Host + "/robots.txt"

	req, err := http.NewRequest(http.MethodGet, robotsURL, nil)
	if err != nil {
		return AllowAll()
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(ctx, req)
	if err != nil {
		logger.Debug("robots.txt unavailable", "url", robotsURL, "error", err)
		return AllowAll()
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Debug("robots.txt not served", "url", robotsURL, "status", resp.StatusCode)
		return AllowAll()
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, robotsMaxBytes))
	if err != nil {
		return AllowAll()
	}
	data, err := robotstxt.FromBytes(body)
	if err != nil {
		logger.Debug("robots.txt unparseable", "url", robotsURL, "error", err)
		return AllowAll()
	}
	return &RobotsPolicy{group: data.FindGroup(userAgent)}
}

// Allowed reports whether the given path may be fetched under this policy.
func (p *RobotsPolicy) Allowed(path string) bool {
	if p == nil || p.group == nil {
		return true
	}
	if path == "" {
		path = "/"
	}
	return p.group.Test(path)
}
