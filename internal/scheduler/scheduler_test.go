package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/FranksOps/siphon/internal/scraper"
)

// trackingRunner records which workspace is active while it runs, so tests
// can assert that jobs for one workspace never overlap.
type trackingRunner struct {
	mu      *sync.Mutex
	active  map[string]int
	runs    *[]string
	failFor string
}

func (r *trackingRunner) Run(ctx context.Context, opts scraper.Options) (*scraper.Result, error) {
	r.mu.Lock()
	r.active[opts.WorkspaceID]++
	if r.active[opts.WorkspaceID] > 1 {
		r.mu.Unlock()
		return nil, errors.New("concurrent run within one workspace")
	}
	*r.runs = append(*r.runs, opts.WorkspaceID+":"+opts.RootURL)
	r.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	r.mu.Lock()
	r.active[opts.WorkspaceID]--
	r.mu.Unlock()

	if opts.WorkspaceID == r.failFor {
		return nil, errors.New("renderer exploded")
	}
	return &scraper.Result{PagesScraped: 1}, nil
}

func newTracking(failFor string) (func() Runner, *[]string) {
	mu := &sync.Mutex{}
	active := make(map[string]int)
	runs := &[]string{}
	return func() Runner {
		return &trackingRunner{mu: mu, active: active, runs: runs, failFor: failFor}
	}, runs
}

func TestRun_SerializesPerWorkspace(t *testing.T) {
	factory, runs := newTracking("")
	s := New(factory, 4, slog.New(slog.DiscardHandler))

	jobs := []scraper.Options{
		{WorkspaceID: "ws1", RootURL: "https://a.example/"},
		{WorkspaceID: "ws1", RootURL: "https://b.example/"},
		{WorkspaceID: "ws2", RootURL: "https://c.example/"},
		{WorkspaceID: "ws1", RootURL: "https://d.example/"},
	}

	outcomes := s.Run(context.Background(), jobs)

	if len(outcomes) != len(jobs) {
		t.Fatalf("got %d outcomes, want %d", len(outcomes), len(jobs))
	}
	for i, o := range outcomes {
		if o.Err != nil {
			t.Errorf("job %d failed: %v", i, o.Err)
		}
		if o.Options.RootURL != jobs[i].RootURL {
			t.Errorf("outcome %d is for %s, want %s", i, o.Options.RootURL, jobs[i].RootURL)
		}
	}

	// Within ws1, submission order must hold.
	var ws1 []string
	for _, r := range *runs {
		if r[:4] == "ws1:" {
			ws1 = append(ws1, r)
		}
	}
	want := []string{"ws1:https://a.example/", "ws1:https://b.example/", "ws1:https://d.example/"}
	if len(ws1) != len(want) {
		t.Fatalf("ws1 runs = %v", ws1)
	}
	for i := range want {
		if ws1[i] != want[i] {
			t.Errorf("ws1 run order = %v, want %v", ws1, want)
			break
		}
	}
}

func TestRun_FailingWorkspaceDoesNotCancelOthers(t *testing.T) {
	factory, _ := newTracking("ws1")
	s := New(factory, 2, slog.New(slog.DiscardHandler))

	outcomes := s.Run(context.Background(), []scraper.Options{
		{WorkspaceID: "ws1", RootURL: "https://a.example/"},
		{WorkspaceID: "ws2", RootURL: "https://b.example/"},
	})

	if outcomes[0].Err == nil {
		t.Errorf("ws1 job should have failed")
	}
	if outcomes[1].Err != nil || outcomes[1].Result == nil {
		t.Errorf("ws2 job should have succeeded, got %+v", outcomes[1])
	}
}

func TestRun_CancelledContext(t *testing.T) {
	factory, _ := newTracking("")
	s := New(factory, 2, slog.New(slog.DiscardHandler))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes := s.Run(ctx, []scraper.Options{
		{WorkspaceID: "ws1", RootURL: "https://a.example/"},
	})
	if outcomes[0].Err == nil {
		t.Errorf("expected context error for cancelled run")
	}
}

func TestRun_NoJobs(t *testing.T) {
	factory, _ := newTracking("")
	s := New(factory, 2, slog.New(slog.DiscardHandler))
	if outcomes := s.Run(context.Background(), nil); len(outcomes) != 0 {
		t.Errorf("expected no outcomes, got %d", len(outcomes))
	}
}
