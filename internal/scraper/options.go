package scraper

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"time"
)

// Defaults for one crawl invocation.
const (
	DefaultMaxPages    = 500
	DefaultRateLimit   = 1 * time.Second
	DefaultPageTimeout = 30 * time.Second

	// minContentLength is the threshold below which extracted text is
	// considered boilerplate or an empty shell and the page is dropped.
	minContentLength = 50
)

// defaultExcludePatterns rejects binary/document assets, admin and commerce
// paths, and any URL carrying a query string. Callers can extend but not
// remove these via Options.ExcludePatterns.
var defaultExcludePatterns = []string{
	`\.(pdf|zip|gz|tar|jpe?g|png|gif|svg|webp|ico|mp3|mp4|avi|mov|webm|docx?|xlsx?|pptx?|css|js|woff2?|ttf)$`,
	`\?`,
	`/(wp-admin|wp-login|admin|login|logout|signin|signup|cart|checkout)(/|$)`,
}

// Options configures a single crawl. It is immutable for the duration of one
// invocation; Run copies it before applying defaults.
type Options struct {
	WorkspaceID string
	BotID       string // optional sub-scope identifier
	RootURL     string

	MaxPages    int
	RateLimit   time.Duration // pause after every fetch attempt
	PageTimeout time.Duration // bound on one page load, not the whole crawl

	IncludePatterns []string // regex; empty means include everything
	ExcludePatterns []string // regex; appended to the built-in defaults

	RespectRobots bool
	DetectSitemap bool

	// Contact is the operator URL advertised in the User-Agent header.
	Contact string
}

// DefaultOptions returns Options with the deployment-wide defaults applied.
func DefaultOptions(workspaceID, rootURL string) Options {
	return Options{
		WorkspaceID:   workspaceID,
		RootURL:       rootURL,
		MaxPages:      DefaultMaxPages,
		RateLimit:     DefaultRateLimit,
		PageTimeout:   DefaultPageTimeout,
		RespectRobots: true,
		DetectSitemap: true,
	}
}

func (o Options) withDefaults() Options {
	if o.MaxPages <= 0 {
		o.MaxPages = DefaultMaxPages
	}
	if o.RateLimit <= 0 {
		o.RateLimit = DefaultRateLimit
	}
	if o.PageTimeout <= 0 {
		o.PageTimeout = DefaultPageTimeout
	}
	return o
}

func (o Options) validate() error {
	if o.WorkspaceID == "" {
		return errors.New("workspace id is required")
	}
	if o.RootURL == "" {
		return errors.New("root url is required")
	}
	return nil
}

// filters holds the compiled include/exclude rule sets for one crawl.
type filters struct {
	include []*regexp.Regexp
	exclude []*regexp.Regexp
}

func compileFilters(o Options) (*filters, error) {
	f := &filters{}
	for _, p := range o.IncludePatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("bad include pattern %q: %w", p, err)
		}
		f.include = append(f.include, re)
	}
	for _, p := range append(append([]string{}, defaultExcludePatterns...), o.ExcludePatterns...) {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("bad exclude pattern %q: %w", p, err)
		}
		f.exclude = append(f.exclude, re)
	}
	return f, nil
}

// shouldScrape applies host-match and include/exclude rules. Exclude rules
// take precedence over include rules. Returns the rejection reason for
// metrics when the URL is rejected.
func (f *filters) shouldScrape(raw string, rootHost string) (bool, string) {
	u, err := url.Parse(raw)
	if err != nil {
		return false, "unparseable"
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false, "scheme"
	}
	// Exact host string comparison: subdomains are a different site.
	if u.Host != rootHost {
		return false, "cross_host"
	}
	for _, re := range f.exclude {
		if re.MatchString(raw) {
			return false, "filter"
		}
	}
	if len(f.include) > 0 {
		for _, re := range f.include {
			if re.MatchString(raw) {
				return true, ""
			}
		}
		return false, "filter"
	}
	return true, ""
}
