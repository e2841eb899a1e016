package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PagesScraped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siphon_pages_scraped_total",
			Help: "Total number of pages fetched and extracted",
		},
		[]string{"workspace"},
	)

	PagesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siphon_pages_skipped_total",
			Help: "Pages skipped before or after fetch, by reason",
		},
		[]string{"reason"}, // unchanged_sitemap, unchanged_hash, thin_content, visited
	)

	URLsBlocked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siphon_urls_blocked_total",
			Help: "URLs rejected before fetch, by reason",
		},
		[]string{"reason"}, // ssrf, robots, filter, cross_host
	)

	PageErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "siphon_page_errors_total",
			Help: "Per-page fetch or processing failures",
		},
	)

	ChunksCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siphon_chunks_created_total",
			Help: "Chunks embedded and persisted",
		},
		[]string{"workspace"},
	)

	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "siphon_fetch_duration_seconds",
			Help:    "Duration of individual page renders",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)

	CrawlDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "siphon_crawl_duration_seconds",
			Help:    "End-to-end duration of a workspace crawl",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 3600},
		},
		[]string{"workspace"},
	)
)

// Server encapsulates an HTTP server exposing /metrics.
type Server struct {
	srv *http.Server
}

// Start begins listening on the specified port and exposes /metrics.
func Start(port int) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("metrics server failed: %v\n", err)
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
