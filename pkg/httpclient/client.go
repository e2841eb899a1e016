package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Config defines the setup for the HTTP client used for robots.txt and
// sitemap fetches (page fetches go through the headless renderer instead).
type Config struct {
	Timeout      time.Duration
	MaxRedirects int
	// Transport supplies the RoundTripper, e.g. an SSRF-validating transport.
	Transport http.RoundTripper
	// RedirectCheck, if set, is consulted on every redirect hop before it is
	// followed. Returning an error aborts the redirect chain. Redirect
	// targets are attacker-influenceable and need the same vetting as any
	// other URL.
	RedirectCheck func(req *http.Request) error
}

// Client wraps a standard http.Client with a bounded redirect policy and
// per-hop redirect validation.
type Client struct {
	*http.Client
}

// New creates a new HTTP client based on the provided configuration.
func New(cfg Config) (*Client, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = 5
	}

	c := &http.Client{
		Timeout: cfg.Timeout,
	}
	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= cfg.MaxRedirects {
			return fmt.Errorf("stopped after %d redirects", cfg.MaxRedirects)
		}
		if cfg.RedirectCheck != nil {
			if err := cfg.RedirectCheck(req); err != nil {
				return fmt.Errorf("redirect blocked: %w", err)
			}
		}
		return nil
	}

	if cfg.Transport != nil {
		c.Transport = cfg.Transport
	}

	return &Client{Client: c}, nil
}

// Do executes an HTTP request under the provided context.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if ctx == nil {
		return nil, errors.New("context cannot be nil")
	}
	resp, err := c.Client.Do(req.Clone(ctx))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}
