package scraper

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Renderer loads pages in a real browser so client-side rendered sites
// produce their final DOM. Start is called once per crawl, after the cheap
// early-exit checks, so no browser is launched for a no-op crawl.
type Renderer interface {
	Start(ctx context.Context) error
	Render(ctx context.Context, pageURL string, timeout time.Duration) (html string, err error)
	Close()
}

// ScrapedPage is the unit handed to the processing pipeline: one fetched
// page with its extracted text.
type ScrapedPage struct {
	URL     string
	Title   string
	Content string

	// LastModified carries the sitemap lastmod through to storage when the
	// crawl ran in sitemap mode; nil otherwise.
	LastModified *time.Time
}

// strippedSelectors are removed from the DOM before text extraction.
const strippedSelectors = "script, style, noscript, nav, header, footer, aside, form, template, iframe"

// contentSelectors are tried in order to locate the main content region;
// the page body is the fallback.
var contentSelectors = []string{"main", "article", "[role=main]", "#content", ".content"}

// extractPage parses rendered HTML into a ScrapedPage plus the same-host
// links found in the document. It returns a nil page (no error) when the
// extracted text is too short to be worth indexing.
func extractPage(pageURL, html string) (*ScrapedPage, []string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, nil, fmt.Errorf("parse html: %w", err)
	}

	// Links are collected before boilerplate removal: navigation menus are
	// exactly where most of a site's internal links live.
	links := extractLinks(doc, pageURL)

	rawTitle := strings.TrimSpace(doc.Find("title").First().Text())
	title := NormalizeTitle(rawTitle, pageURL)

	doc.Find(strippedSelectors).Remove()

	var region *goquery.Selection
	for _, sel := range contentSelectors {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			region = s
			break
		}
	}
	if region == nil {
		region = doc.Find("body")
	}

	content := collapseWhitespace(region.Text())
	if len(content) < minContentLength {
		return nil, links, nil
	}

	return &ScrapedPage{URL: pageURL, Title: title, Content: content}, links, nil
}

// extractLinks returns the absolute, normalized same-host links in the
// document. Fragments are dropped; relative URLs are resolved against the
// page URL. Filtering beyond the host match happens at enqueue time.
func extractLinks(doc *goquery.Document, pageURL string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "tel:") ||
			strings.HasPrefix(href, "javascript:") {
			return
		}
		u, err := base.Parse(href)
		if err != nil {
			return
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return
		}
		if u.Host != base.Host {
			return
		}
		u.Fragment = ""
		norm := u.String()
		if !seen[norm] {
			seen[norm] = true
			links = append(links, norm)
		}
	})
	return links
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
