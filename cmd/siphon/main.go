// Command siphon crawls websites into a workspace's knowledge base: it
// fetches pages through a headless browser, extracts their text, and stores
// embedded chunks for retrieval.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/FranksOps/siphon/internal/analytics"
	"github.com/FranksOps/siphon/internal/chunk"
	"github.com/FranksOps/siphon/internal/config"
	"github.com/FranksOps/siphon/internal/embed"
	"github.com/FranksOps/siphon/internal/metrics"
	"github.com/FranksOps/siphon/internal/pipeline"
	"github.com/FranksOps/siphon/internal/progress"
	"github.com/FranksOps/siphon/internal/render"
	"github.com/FranksOps/siphon/internal/report"
	"github.com/FranksOps/siphon/internal/safeurl"
	"github.com/FranksOps/siphon/internal/scheduler"
	"github.com/FranksOps/siphon/internal/scraper"
	"github.com/FranksOps/siphon/internal/storage"
	"github.com/FranksOps/siphon/internal/storage/postgres"
	"github.com/FranksOps/siphon/internal/storage/sqlite"
	"github.com/FranksOps/siphon/pkg/httpclient"
	"github.com/FranksOps/siphon/pkg/useragent"
)

const version = "1.0.0"

var (
	cfgFile     string
	workspaceID string
	botID       string
	urls        []string
	format      string
	outputPath  string
)

var rootCmd = &cobra.Command{
	Use:   "siphon",
	Short: "Website to knowledge-base crawler",
	Long:  "Siphon crawls websites and ingests their content into a workspace knowledge base as embedded chunks.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Crawl one or more sites into a workspace",
	RunE:  runCrawl,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./siphon.yaml)")

	crawlCmd.Flags().StringVar(&workspaceID, "workspace", "", "workspace id (required)")
	crawlCmd.Flags().StringVar(&botID, "bot", "", "bot id")
	crawlCmd.Flags().StringSliceVar(&urls, "url", nil, "root url to crawl (repeatable, required)")
	crawlCmd.Flags().StringVar(&format, "format", "text", "report format: text, json, or html")
	crawlCmd.Flags().StringVar(&outputPath, "output", "", "write report to file instead of stdout")
	_ = crawlCmd.MarkFlagRequired("workspace")
	_ = crawlCmd.MarkFlagRequired("url")

	rootCmd.AddCommand(crawlCmd)
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("siphon version %s\n", version)
		},
	})
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func runCrawl(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	var metricsSrv *metrics.Server
	if cfg.Metrics.Enabled {
		metricsSrv = metrics.Start(cfg.Metrics.Port)
		defer func() {
			if err := metricsSrv.Stop(context.Background()); err != nil {
				logger.Warn("metrics shutdown failed", "error", err)
			}
		}()
	}

	store, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()

	embedder, err := embed.NewOpenAI(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model)
	if err != nil {
		return fmt.Errorf("configure embeddings: %w", err)
	}
	chunker, err := chunk.New(cfg.Chunking.TokenLimit, cfg.Chunking.Overlap)
	if err != nil {
		return fmt.Errorf("configure chunking: %w", err)
	}

	events := analytics.Logger(analytics.Nop{})
	if cfg.Analytics.Path != "" {
		events, err = analytics.New(cfg.Analytics.Path)
		if err != nil {
			return fmt.Errorf("open analytics log: %w", err)
		}
		defer events.Close()
	}

	guard := &safeurl.Guard{AllowPrivate: cfg.Crawl.AllowPrivate}
	client, err := httpclient.New(httpclient.Config{
		Timeout:      15 * time.Second,
		MaxRedirects: 5,
		Transport:    guard.Transport(),
		RedirectCheck: func(req *http.Request) error {
			return guard.Check(req.Context(), req.URL.String())
		},
	})
	if err != nil {
		return fmt.Errorf("configure http client: %w", err)
	}

	ua := useragent.Identity{Contact: cfg.Crawl.Contact}.String()
	sink := &progress.LogSink{Logger: logger}
	proc := pipeline.New(store, chunker, embedder, logger)

	newRunner := func() scheduler.Runner {
		return scraper.New(scraper.Deps{
			Guard:     guard,
			Client:    client,
			Renderer:  render.New(ua),
			Store:     store,
			Processor: proc,
			Sink:      sink,
			Events:    events,
			Logger:    logger,
		})
	}
	sched := scheduler.New(newRunner, cfg.Crawl.Concurrency, logger)

	jobs := make([]scraper.Options, 0, len(urls))
	for _, u := range urls {
		jobs = append(jobs, cfg.Crawl.Options(workspaceID, botID, u))
	}

	start := time.Now()
	outcomes := sched.Run(ctx, jobs)
	end := time.Now()

	out := io.Writer(os.Stdout)
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("create report file: %w", err)
		}
		defer f.Close()
		out = f
	}

	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "crawl of %s failed: %v\n", o.Options.RootURL, o.Err)
			continue
		}
		summary := report.GenerateSummary(o.Options.WorkspaceID, o.Options.RootURL, o.Result, start, end)
		if err := writeReport(out, format, summary); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d crawls failed", failed, len(outcomes))
	}
	return nil
}

func openStore(ctx context.Context, cfg config.StorageConfig) (storage.Backend, error) {
	switch cfg.Driver {
	case "postgres":
		return postgres.New(ctx, cfg.DSN)
	case "sqlite":
		return sqlite.New(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %q (postgres or sqlite)", cfg.Driver)
	}
}

func writeReport(w io.Writer, format string, summary report.Summary) error {
	switch format {
	case "json":
		return report.WriteJSON(w, summary)
	case "html":
		return report.WriteHTML(w, summary)
	case "text":
		return report.WriteText(w, summary)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
