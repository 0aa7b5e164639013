package devserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"reviewdeck/internal/client"
	"reviewdeck/internal/types"
)

type manualClock struct {
	mu sync.Mutex
	at time.Time
}

func (c *manualClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.at
}

func (c *manualClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.at = c.at.Add(d)
}

func newTestServer(t *testing.T) (*client.Client, *manualClock) {
	t.Helper()
	clock := &manualClock{at: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	srv := New(Options{ItemsPerJob: 10, Step: time.Second, Now: clock.now})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return client.New(ts.URL, 2*time.Second), clock
}

func TestSettingsRoundTrip(t *testing.T) {
	api, _ := newTestServer(t)
	ctx := context.Background()

	out := types.DefaultSettings()
	found, err := api.GetSettings(ctx, "scraper", out)
	if err != nil || found {
		t.Fatalf("expected absent settings, found=%v err=%v", found, err)
	}

	saved := types.DefaultSettings()
	saved.Global.MaxReviews = 50
	saved.SetOverride("440", types.ItemOverride{Enabled: true, MaxReviews: types.IntPtr(1000)})
	if err := api.SaveSettings(ctx, "scraper", saved); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}
	loaded := &types.Settings{}
	found, err = api.GetSettings(ctx, "scraper", loaded)
	if err != nil || !found {
		t.Fatalf("expected saved settings, found=%v err=%v", found, err)
	}
	if loaded.Effective("440").MaxReviews != 1000 || loaded.Effective("570").MaxReviews != 50 {
		t.Fatalf("unexpected settings after round trip: %#v", loaded)
	}

	if err := api.DeleteSettings(ctx, "scraper"); err != nil {
		t.Fatalf("DeleteSettings: %v", err)
	}
	if err := api.DeleteSettings(ctx, "scraper"); err != nil {
		t.Fatalf("expected repeated delete to be ignored: %v", err)
	}
	found, _ = api.GetSettings(ctx, "scraper", &types.Settings{})
	if found {
		t.Fatalf("expected settings gone after delete")
	}
}

func TestJobsProgressWithClock(t *testing.T) {
	api, clock := newTestServer(t)
	ctx := context.Background()

	id, err := api.StartJob(ctx, types.JobKindGames, map[string]any{"provider": "openai", "model": "gpt"})
	if err != nil {
		t.Fatalf("StartJob: %v", err)
	}
	clock.advance(4 * time.Second)
	status, err := api.Status(ctx, types.JobKindGames)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.IsRunning || status.GlobalProgress.Scraped != 4 || status.GlobalProgress.Total != 10 {
		t.Fatalf("unexpected status: %#v", status)
	}
	if status.CurrentItem != "game-005" {
		t.Fatalf("expected current item game-005, got %q", status.CurrentItem)
	}

	clock.advance(10 * time.Second)
	jobs, err := api.ListJobs(ctx, types.JobKindGames)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	job, ok := types.FindJob(jobs, id)
	if !ok || job.Status != types.JobStatusCompleted || job.Processed != 10 {
		t.Fatalf("expected completed job, got %#v", job)
	}
	if job.CompletedAt == nil {
		t.Fatalf("expected completion time")
	}
	status, _ = api.Status(ctx, types.JobKindGames)
	if status.IsRunning {
		t.Fatalf("expected idle status after completion")
	}
	if last := status.Logs[len(status.Logs)-1]; !strings.Contains(last, "completed") {
		t.Fatalf("expected completion log line, got %q", last)
	}
}

func TestSimulatedFailureAndStuckModels(t *testing.T) {
	api, clock := newTestServer(t)
	ctx := context.Background()

	failID, _ := api.StartJob(ctx, types.JobKindReviews, map[string]any{"provider": "p", "model": "fail"})
	stuckID, _ := api.StartJob(ctx, types.JobKindReviews, map[string]any{"provider": "p", "model": "stuck"})
	clock.advance(time.Hour)

	jobs, err := api.ListJobs(ctx, types.JobKindReviews)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	failed, _ := types.FindJob(jobs, failID)
	if failed.Status != types.JobStatusError || failed.Error == "" || failed.Processed != 5 {
		t.Fatalf("expected failed job halfway, got %#v", failed)
	}
	stuck, _ := types.FindJob(jobs, stuckID)
	if stuck.Status != types.JobStatusRunning || stuck.Processed != 9 {
		t.Fatalf("expected stuck job still running, got %#v", stuck)
	}
}

func TestMaxReviewsCapsJobSize(t *testing.T) {
	api, clock := newTestServer(t)
	ctx := context.Background()
	id, _ := api.StartJob(ctx, types.JobKindGames, map[string]any{"model": "m", "max_reviews": 3})
	clock.advance(time.Minute)
	jobs, _ := api.ListJobs(ctx, types.JobKindGames)
	job, _ := types.FindJob(jobs, id)
	if job.Total != 3 || job.Status != types.JobStatusCompleted {
		t.Fatalf("expected capped completed job, got %#v", job)
	}
}

func TestExportSetsAttachmentName(t *testing.T) {
	api, _ := newTestServer(t)
	ctx := context.Background()
	if _, err := api.StartJob(ctx, types.JobKindGames, map[string]any{"provider": "p", "model": "m"}); err != nil {
		t.Fatalf("StartJob: %v", err)
	}
	download, err := api.Export(ctx, types.JobKindGames)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if download.Filename != "games_export_20260301.csv" {
		t.Fatalf("unexpected filename %q", download.Filename)
	}
	lines := strings.Split(strings.TrimSpace(string(download.Data)), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "job_id,") {
		t.Fatalf("unexpected csv body: %q", download.Data)
	}
}

func TestUnknownKindIsNotFound(t *testing.T) {
	srv := New(Options{})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/widgets/status", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	srv := New(Options{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-Id", "abc")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Header().Get("X-Request-Id") != "abc" {
		t.Fatalf("unexpected response %d %q", rec.Code, rec.Header().Get("X-Request-Id"))
	}
}
