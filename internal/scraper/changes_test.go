package scraper

import (
	"testing"
	"time"
)

func day(d int) time.Time {
	return time.Date(2026, time.March, d, 0, 0, 0, 0, time.UTC)
}

func TestPartition(t *testing.T) {
	d1, d2 := day(1), day(2)

	entries := []SitemapEntry{
		{URL: "https://s.example/a", LastModified: &d1},
		{URL: "https://s.example/b", LastModified: &d2},
		{URL: "https://s.example/c", LastModified: nil},
	}
	stored := map[string]time.Time{
		"https://s.example/a": day(1),
		"https://s.example/b": day(1),
	}

	toScrape, unchanged := Partition(entries, stored)

	if unchanged != 1 {
		t.Errorf("unchanged = %d, want 1", unchanged)
	}
	if len(toScrape) != 2 {
		t.Fatalf("toScrape has %d entries, want 2", len(toScrape))
	}
	if toScrape[0].URL != "https://s.example/b" || toScrape[1].URL != "https://s.example/c" {
		t.Errorf("toScrape = [%s, %s], want [b, c]", toScrape[0].URL, toScrape[1].URL)
	}
}

func TestPartition_EmptyStored(t *testing.T) {
	d1 := day(1)
	entries := []SitemapEntry{
		{URL: "https://s.example/a", LastModified: &d1},
		{URL: "https://s.example/b"},
	}

	toScrape, unchanged := Partition(entries, nil)
	if len(toScrape) != 2 || unchanged != 0 {
		t.Errorf("got %d toScrape, %d unchanged; want 2, 0", len(toScrape), unchanged)
	}
}

func TestPartition_EqualDatesUnchanged(t *testing.T) {
	d1 := day(1)
	entries := []SitemapEntry{{URL: "https://s.example/a", LastModified: &d1}}
	stored := map[string]time.Time{"https://s.example/a": day(1)}

	toScrape, unchanged := Partition(entries, stored)
	if len(toScrape) != 0 || unchanged != 1 {
		t.Errorf("equal dates: got %d toScrape, %d unchanged; want 0, 1", len(toScrape), unchanged)
	}
}

func TestPartition_OlderSitemapDateUnchanged(t *testing.T) {
	d1 := day(1)
	entries := []SitemapEntry{{URL: "https://s.example/a", LastModified: &d1}}
	stored := map[string]time.Time{"https://s.example/a": day(5)}

	toScrape, unchanged := Partition(entries, stored)
	if len(toScrape) != 0 || unchanged != 1 {
		t.Errorf("older sitemap date: got %d toScrape, %d unchanged; want 0, 1", len(toScrape), unchanged)
	}
}

func TestPartition_NoEntries(t *testing.T) {
	toScrape, unchanged := Partition(nil, map[string]time.Time{"x": day(1)})
	if len(toScrape) != 0 || unchanged != 0 {
		t.Errorf("empty entries: got %d toScrape, %d unchanged; want 0, 0", len(toScrape), unchanged)
	}
}
