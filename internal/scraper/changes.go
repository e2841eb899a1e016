package scraper

import "time"

// SitemapEntry is one URL advertised by a site's sitemap.
type SitemapEntry struct {
	URL          string
	LastModified *time.Time
}

// Partition splits sitemap entries into those that need scraping and a count
// of entries that can be skipped because the stored copy is current.
//
// An entry needs scraping when it has never been stored, when either side is
// missing a modification date, or when the sitemap date is strictly newer
// than the stored one. Pure function; no clock or network access.
func Partition(entries []SitemapEntry, stored map[string]time.Time) (toScrape []SitemapEntry, unchanged int) {
	for _, e := range entries {
		storedAt, ok := stored[e.URL]
		if !ok || e.LastModified == nil || storedAt.IsZero() {
			toScrape = append(toScrape, e)
			continue
		}
		if e.LastModified.After(storedAt) {
			toScrape = append(toScrape, e)
			continue
		}
		unchanged++
	}
	return toScrape, unchanged
}
