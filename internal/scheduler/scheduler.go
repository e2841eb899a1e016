// Package scheduler runs crawl jobs for multiple workspaces. Jobs for the
// same workspace run strictly in submission order; distinct workspaces run
// concurrently up to a limit. One browser per in-flight crawl is the real
// resource bound, which is why each job gets a fresh Runner.
package scheduler

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/FranksOps/siphon/internal/scraper"
)

// DefaultConcurrency bounds simultaneously crawling workspaces.
const DefaultConcurrency = 4

// Runner executes one crawl. *scraper.Crawler satisfies it.
type Runner interface {
	Run(ctx context.Context, opts scraper.Options) (*scraper.Result, error)
}

// Outcome pairs a job with its result. Exactly one of Result and Err is
// meaningful; fatal runner errors leave Result nil.
type Outcome struct {
	Options scraper.Options
	Result  *scraper.Result
	Err     error
}

// Scheduler fans crawl jobs out across workspaces.
type Scheduler struct {
	newRunner func() Runner
	limit     int
	logger    *slog.Logger
}

// New builds a scheduler. newRunner is invoked once per job so concurrent
// crawls never share a renderer.
func New(newRunner func() Runner, limit int, logger *slog.Logger) *Scheduler {
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{newRunner: newRunner, limit: limit, logger: logger}
}

// Run executes all jobs and returns one Outcome per job, in input order.
// A failing workspace never cancels the others; context cancellation does.
func (s *Scheduler) Run(ctx context.Context, jobs []scraper.Options) []Outcome {
	outcomes := make([]Outcome, len(jobs))

	byWorkspace := make(map[string][]int)
	var order []string
	for i, job := range jobs {
		if _, seen := byWorkspace[job.WorkspaceID]; !seen {
			order = append(order, job.WorkspaceID)
		}
		byWorkspace[job.WorkspaceID] = append(byWorkspace[job.WorkspaceID], i)
	}

	var g errgroup.Group
	g.SetLimit(s.limit)
	for _, ws := range order {
		indices := byWorkspace[ws]
		g.Go(func() error {
			for _, i := range indices {
				job := jobs[i]
				if err := ctx.Err(); err != nil {
					outcomes[i] = Outcome{Options: job, Err: err}
					continue
				}
				result, err := s.newRunner().Run(ctx, job)
				if err != nil {
					s.logger.Error("crawl failed", "workspace_id", job.WorkspaceID, "root_url", job.RootURL, "error", err)
				}
				outcomes[i] = Outcome{Options: job, Result: result, Err: err}
			}
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}
