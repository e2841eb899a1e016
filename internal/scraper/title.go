package scraper

import (
	"net/url"
	"strings"
)

// titleSeparators are the site-name delimiters commonly appended to page
// titles, tried in order. Multi-character tokens come first so "::" wins
// over a stray ":".
var titleSeparators = []string{"::", "//", "»", "—", "·", "|", "-"}

// minTitlePrefix guards against chopping a title at a separator that is part
// of the first word, e.g. the hyphen in "How-To Guide".
const minTitlePrefix = 3

// NormalizeTitle strips trailing site-name decoration from a raw <title>
// value. When the title is empty or degenerate it falls back to a
// human-readable form of the URL's last path segment.
func NormalizeTitle(raw, pageURL string) string {
	title := strings.TrimSpace(raw)
	for _, sep := range titleSeparators {
		idx := strings.Index(title, sep)
		if idx > minTitlePrefix {
			title = strings.TrimSpace(title[:idx])
		}
	}
	if len(title) > minTitlePrefix {
		return title
	}
	return titleFromURL(pageURL)
}

func titleFromURL(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "Untitled"
	}
	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	last := ""
	for i := len(segs) - 1; i >= 0; i-- {
		if segs[i] != "" {
			last = segs[i]
			break
		}
	}
	if last == "" {
		if u.Host != "" {
			return u.Host
		}
		return "Untitled"
	}
	last = strings.NewReplacer("-", " ", "_", " ").Replace(last)
	words := strings.Fields(last)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
