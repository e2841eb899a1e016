// Package render loads pages in headless Chromium via Rod so client-side
// rendered sites produce their final DOM before extraction. The renderer
// declares the crawler's User-Agent on every page load; it never uses
// stealth or fingerprint evasion.
package render

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/FranksOps/siphon/internal/scraper"
)

const renderStableDur = 500 * time.Millisecond

// blockedResourceTypes lists network resource types the renderer skips to
// save bandwidth and speed up page loads. Text extraction needs none of them.
var blockedResourceTypes = []proto.NetworkResourceType{
	proto.NetworkResourceTypeImage,
	proto.NetworkResourceTypeFont,
	proto.NetworkResourceTypeStylesheet,
	proto.NetworkResourceTypeMedia,
}

// Browser renders pages in a headless Chromium instance. Construct with New,
// launch with Start, and Close when the crawl finishes. One Browser serves
// one crawl; pages are loaded sequentially in fresh tabs.
type Browser struct {
	userAgent string
	browser   *rod.Browser
}

var _ scraper.Renderer = (*Browser)(nil)

// New prepares a renderer without launching anything. The browser process
// starts on the first call to Start, so crawls that exit early never pay the
// launch cost.
func New(userAgent string) *Browser {
	return &Browser{userAgent: userAgent}
}

// Start launches the headless Chromium process and connects to it.
func (b *Browser) Start(ctx context.Context) error {
	u, err := launcher.New().
		Headless(true).
		Set("disable-gpu").
		Set("no-sandbox").
		Set("disable-dev-shm-usage").
		Launch()
	if err != nil {
		return fmt.Errorf("launch headless browser: %w", err)
	}

	browser := rod.New().ControlURL(u).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to headless browser: %w", err)
	}
	b.browser = browser
	return nil
}

// Render navigates a fresh tab to pageURL, waits for the DOM to stabilize,
// and returns the rendered HTML.
func (b *Browser) Render(ctx context.Context, pageURL string, timeout time.Duration) (string, error) {
	if b.browser == nil {
		return "", fmt.Errorf("renderer not started")
	}

	page, err := b.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return "", fmt.Errorf("create tab: %w", err)
	}
	defer page.Close()

	renderCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	page = page.Context(renderCtx)

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: b.userAgent}); err != nil {
		return "", fmt.Errorf("set user agent: %w", err)
	}

	router := page.HijackRequests()
	for _, rt := range blockedResourceTypes {
		_ = router.Add("*", rt, func(h *rod.Hijack) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
		})
	}
	go router.Run()
	defer router.MustStop()

	if err := page.Navigate(pageURL); err != nil {
		return "", fmt.Errorf("navigate to %s: %w", pageURL, err)
	}

	// WaitStable waits until the DOM stops changing for the given duration,
	// which covers late-hydrating single page apps without a blind sleep.
	_ = page.WaitStable(renderStableDur)

	html, err := page.HTML()
	if err != nil {
		return "", fmt.Errorf("get html from %s: %w", pageURL, err)
	}
	return html, nil
}

// Close shuts down the browser process. Safe to call when Start never ran.
func (b *Browser) Close() {
	if b.browser != nil {
		_ = b.browser.Close()
		b.browser = nil
	}
}
