package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"reviewdeck/internal/app"
	"reviewdeck/internal/client"
	"reviewdeck/internal/config"
	"reviewdeck/internal/scheduler"
	"reviewdeck/internal/store"
	"reviewdeck/internal/types"
)

type fakeCommandClient struct {
	mu         sync.Mutex
	settings   map[string][]byte
	deleted    []string
	tree       *types.ProviderTree
	status     *types.StatusSnapshot
	statusErr  error
	jobs       []types.JobRecord
	started    []map[string]any
	failModels map[string]bool
	download   *client.Download
	statusHits int
}

func newFakeCommandClient() *fakeCommandClient {
	return &fakeCommandClient{
		settings: map[string][]byte{},
		tree: &types.ProviderTree{Providers: []types.ProviderConfig{{
			Name:    "openai",
			Enabled: true,
			Models: []types.ProviderModel{
				{Name: "gpt-4o", Enabled: true},
				{Name: "gpt-4o-mini", Enabled: true},
			},
		}}},
		failModels: map[string]bool{},
	}
}

func (f *fakeCommandClient) GetSettings(_ context.Context, scope string, out any) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.settings[scope]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, out)
}

func (f *fakeCommandClient) SaveSettings(_ context.Context, scope string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settings[scope] = raw
	return nil
}

func (f *fakeCommandClient) DeleteSettings(_ context.Context, scope string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, scope)
	delete(f.settings, scope)
	return nil
}

func (f *fakeCommandClient) Status(context.Context, types.JobKind) (*types.StatusSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusHits++
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	snapshot := *f.status
	return &snapshot, nil
}

func (f *fakeCommandClient) StartJob(_ context.Context, _ types.JobKind, payload map[string]any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	model, _ := payload["model"].(string)
	if f.failModels[model] {
		return "", errors.New("provider rejected the job")
	}
	f.started = append(f.started, payload)
	id := fmt.Sprintf("job-%d", len(f.started))
	provider, _ := payload["provider"].(string)
	f.jobs = append(f.jobs, types.JobRecord{
		ID:        id,
		Status:    types.JobStatusCompleted,
		Provider:  provider,
		Model:     model,
		Processed: 10,
		Total:     10,
	})
	return id, nil
}

func (f *fakeCommandClient) ListJobs(context.Context, types.JobKind) ([]types.JobRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.JobRecord(nil), f.jobs...), nil
}

func (f *fakeCommandClient) GetProviderTree(context.Context) (*types.ProviderTree, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tree == nil {
		return nil, false, nil
	}
	return f.tree.Clone(), true, nil
}

func (f *fakeCommandClient) SaveProviderTree(_ context.Context, tree *types.ProviderTree) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tree = tree.Clone()
	return nil
}

func (f *fakeCommandClient) Export(context.Context, types.JobKind) (*client.Download, error) {
	if f.download == nil {
		return nil, &client.APIError{StatusCode: 404, Message: "nothing to export"}
	}
	return f.download, nil
}

type testHarness struct {
	wiring   commandWiring
	stdout   *bytes.Buffer
	stderr   *bytes.Buffer
	kv       *store.MemoryKV
	exports  string
	uiCalled *uiOptions
}

func newHarness(t *testing.T, fake *fakeCommandClient) *testHarness {
	t.Helper()
	h := &testHarness{
		stdout:  &bytes.Buffer{},
		stderr:  &bytes.Buffer{},
		kv:      store.NewMemoryKV(),
		exports: t.TempDir(),
	}
	core := config.DefaultCoreConfig()
	core.Scheduler.PollIntervalMS = 1
	h.wiring = commandWiring{
		stdout: h.stdout,
		stderr: h.stderr,
		newClient: func(config.CoreConfig) (app.API, error) {
			return fake, nil
		},
		loadCore:   func() (config.CoreConfig, error) { return core, nil },
		loadUI:     func() (config.UIConfig, error) { return config.DefaultUIConfig(), nil },
		openStore:  func() (store.KVStore, error) { return h.kv, nil },
		exportsDir: func() (string, error) { return h.exports, nil },
		runUI: func(_ context.Context, opts uiOptions) error {
			h.uiCalled = &opts
			return nil
		},
		version: "abc123",
	}
	return h
}

func (h *testHarness) run(args ...string) error {
	cmd := newRootCommand(h.wiring)
	cmd.SetArgs(args)
	return cmd.Execute()
}

func TestRunCommandRunsEveryEnabledTarget(t *testing.T) {
	fake := newFakeCommandClient()
	h := newHarness(t, fake)

	if err := h.run("run", "games", "--destination", "reviews.csv"); err != nil {
		t.Fatalf("expected run to succeed, got err=%v stderr=%q", err, h.stderr.String())
	}
	if len(fake.started) != 2 {
		t.Fatalf("expected two jobs started, got %d", len(fake.started))
	}
	first := fake.started[0]
	if first["destination"] != "reviews.csv" || first["model"] != "gpt-4o" {
		t.Fatalf("unexpected first payload: %#v", first)
	}
	if _, ok := fake.settings["scraper"]; !ok {
		t.Fatalf("expected pre-run save of scraper settings")
	}
	out := h.stdout.String()
	if !strings.Contains(out, "Run started: 2 target(s)") {
		t.Fatalf("expected start line, got %q", out)
	}
	if !strings.Contains(out, "openai/gpt-4o-mini") || !strings.Contains(out, "Run finished: completed=2") {
		t.Fatalf("expected outcome table and summary, got %q", out)
	}
}

func TestRunCommandReportsFailures(t *testing.T) {
	fake := newFakeCommandClient()
	fake.failModels["gpt-4o"] = true
	h := newHarness(t, fake)

	err := h.run("run", "reviews", "-d", "out.csv", "--report")
	if err == nil || !strings.Contains(err.Error(), "run finished with failures") {
		t.Fatalf("expected failure summary error, got %v", err)
	}
	out := h.stdout.String()
	if !strings.Contains(out, "# Run report: reviews") || !strings.Contains(out, "provider rejected the job") {
		t.Fatalf("expected markdown report with failure note, got %q", out)
	}
	if len(fake.started) != 1 || fake.started[0]["model"] != "gpt-4o-mini" {
		t.Fatalf("expected the remaining target to run, got %#v", fake.started)
	}
}

func TestRunCommandRequiresDestination(t *testing.T) {
	fake := newFakeCommandClient()
	h := newHarness(t, fake)

	err := h.run("run", "games")
	if !errors.Is(err, scheduler.ErrNoDestination) {
		t.Fatalf("expected no destination error, got %v", err)
	}
	if len(fake.started) != 0 {
		t.Fatalf("expected no jobs started")
	}
}

func TestRunCommandWithoutProviderConfig(t *testing.T) {
	fake := newFakeCommandClient()
	fake.tree = nil
	h := newHarness(t, fake)

	err := h.run("run", "games", "-d", "out.csv")
	if !errors.Is(err, scheduler.ErrMissingConfig) {
		t.Fatalf("expected missing config error, got %v", err)
	}
}

func TestStatusCommandPrintsProgress(t *testing.T) {
	fake := newFakeCommandClient()
	fake.status = &types.StatusSnapshot{
		IsRunning:       true,
		CurrentItem:     "570",
		CurrentProgress: types.Progress{Scraped: 5, Total: 10},
		GlobalProgress:  types.Progress{Scraped: 50, Total: 200},
	}
	h := newHarness(t, fake)

	if err := h.run("status", "games"); err != nil {
		t.Fatalf("expected status to succeed, got %v", err)
	}
	out := h.stdout.String()
	for _, want := range []string{"KIND", "games", "running", "50% (5/10)", "25% (50/200)", "570"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got %q", want, out)
		}
	}
}

func TestStatusCommandUnreachableBackend(t *testing.T) {
	fake := newFakeCommandClient()
	fake.statusErr = errors.New("connection refused")
	h := newHarness(t, fake)

	err := h.run("status")
	if err == nil || !strings.Contains(err.Error(), "backend unreachable") {
		t.Fatalf("expected unreachable error, got %v", err)
	}
	if fake.statusHits != 2 {
		t.Fatalf("expected both kinds polled, got %d", fake.statusHits)
	}
}

func TestStatusWatchStopsAfterCount(t *testing.T) {
	fake := newFakeCommandClient()
	fake.status = &types.StatusSnapshot{IsRunning: true, GlobalProgress: types.Progress{Scraped: 1, Total: 4}}
	h := newHarness(t, fake)

	if err := h.run("status", "reviews", "--watch", "--count", "2", "--interval", "1ms"); err != nil {
		t.Fatalf("expected watch to succeed, got %v", err)
	}
	lines := strings.Split(strings.TrimSpace(h.stdout.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected two status lines, got %q", h.stdout.String())
	}
	if !strings.Contains(lines[0], "reviews running") || !strings.Contains(lines[0], "overall=25%") {
		t.Fatalf("unexpected status line %q", lines[0])
	}
}

func TestStatusWatchNeedsKind(t *testing.T) {
	h := newHarness(t, newFakeCommandClient())
	if err := h.run("status", "--watch"); err == nil {
		t.Fatalf("expected error without a kind")
	}
}

func TestJobsCommandPrintsTable(t *testing.T) {
	fake := newFakeCommandClient()
	fake.jobs = []types.JobRecord{{ID: "job-42", Status: types.JobStatusRunning, Provider: "openai", Model: "gpt-4o", Processed: 3, Total: 12}}
	h := newHarness(t, fake)

	if err := h.run("jobs", "games"); err != nil {
		t.Fatalf("expected jobs to succeed, got %v", err)
	}
	out := h.stdout.String()
	for _, want := range []string{"ID", "STATUS", "job-42", "openai/gpt-4o", "25% (3/12)"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got %q", want, out)
		}
	}
}

func TestJobsCommandRejectsUnknownKind(t *testing.T) {
	h := newHarness(t, newFakeCommandClient())
	if err := h.run("jobs", "movies"); err == nil || !strings.Contains(err.Error(), "unknown job kind") {
		t.Fatalf("expected unknown kind error, got %v", err)
	}
}

func TestSettingsGetPrintsYAML(t *testing.T) {
	fake := newFakeCommandClient()
	saved := types.DefaultSettings()
	saved.Global.MaxReviews = 250
	raw, _ := json.Marshal(saved)
	fake.settings["analyzer"] = raw
	h := newHarness(t, fake)

	if err := h.run("settings", "get", "analyzer"); err != nil {
		t.Fatalf("expected settings get to succeed, got %v", err)
	}
	out := h.stdout.String()
	if !strings.Contains(out, "global:") || !strings.Contains(out, "max_reviews: 250") {
		t.Fatalf("expected yaml settings, got %q", out)
	}
}

func TestSettingsGetDefaultsWhenMissing(t *testing.T) {
	h := newHarness(t, newFakeCommandClient())

	if err := h.run("settings", "get", "scraper", "-o", "json"); err != nil {
		t.Fatalf("expected settings get to succeed, got %v", err)
	}
	if !strings.Contains(h.stderr.String(), "showing defaults") {
		t.Fatalf("expected defaults notice, got %q", h.stderr.String())
	}
	if !strings.Contains(h.stdout.String(), `"max_reviews": 1000`) {
		t.Fatalf("expected default json, got %q", h.stdout.String())
	}
}

func TestSettingsResetClearsBackendAndLocal(t *testing.T) {
	fake := newFakeCommandClient()
	h := newHarness(t, fake)
	ctx := context.Background()
	ns, err := store.NewNamespace(h.kv, "analyzer")
	if err != nil {
		t.Fatalf("namespace: %v", err)
	}
	if err := ns.PutJSON(ctx, store.KeyGlobalSettings, types.DefaultGlobalSettings()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := ns.PutString(ctx, store.KeyDestination, "out.csv"); err != nil {
		t.Fatalf("seed destination: %v", err)
	}

	if err := h.run("settings", "reset", "analyzer", "--local"); err != nil {
		t.Fatalf("expected reset to succeed, got %v", err)
	}
	if len(fake.deleted) != 1 || fake.deleted[0] != "analyzer" {
		t.Fatalf("expected backend delete of analyzer, got %v", fake.deleted)
	}
	var global types.GlobalSettings
	if found, err := ns.GetJSON(ctx, store.KeyGlobalSettings, &global); err != nil || found {
		t.Fatalf("expected local settings cleared, found=%v err=%v", found, err)
	}
	if dest, ok, _ := ns.GetString(ctx, store.KeyDestination); !ok || dest != "out.csv" {
		t.Fatalf("expected destination kept, got %q ok=%v", dest, ok)
	}
}

func TestSettingsRejectsUnknownScope(t *testing.T) {
	h := newHarness(t, newFakeCommandClient())
	if err := h.run("settings", "reset", "review"); err == nil {
		t.Fatalf("expected review screen to be rejected")
	}
}

func TestExportCommandWritesArchive(t *testing.T) {
	fake := newFakeCommandClient()
	fake.download = &client.Download{Filename: "games.csv", Data: []byte("id\n1\n")}
	h := newHarness(t, fake)

	if err := h.run("export", "games"); err != nil {
		t.Fatalf("expected export to succeed, got %v", err)
	}
	path := strings.TrimSpace(strings.SplitN(h.stdout.String(), " (", 2)[0])
	if !strings.HasPrefix(path, h.exports) {
		t.Fatalf("expected archive path under %s, got %q", h.exports, path)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "id\n1\n" {
		t.Fatalf("expected archived data, got %q err=%v", data, err)
	}
}

func TestExportCommandWritesOutFile(t *testing.T) {
	fake := newFakeCommandClient()
	fake.download = &client.Download{Filename: "reviews.csv", Data: []byte("a,b\n")}
	h := newHarness(t, fake)
	out := filepath.Join(t.TempDir(), "nested", "reviews.csv")

	if err := h.run("export", "reviews", "--out", out); err != nil {
		t.Fatalf("expected export to succeed, got %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil || string(data) != "a,b\n" {
		t.Fatalf("expected written file, got %q err=%v", data, err)
	}
}

func TestExportCommandNotFound(t *testing.T) {
	h := newHarness(t, newFakeCommandClient())
	err := h.run("export", "games")
	if err == nil || !client.IsNotFound(err) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestUICommandPassesOverrides(t *testing.T) {
	h := newHarness(t, newFakeCommandClient())

	if err := h.run("ui", "--tab", "analyzer", "--server", "example.test:9000/"); err != nil {
		t.Fatalf("expected ui to succeed, got %v", err)
	}
	if h.uiCalled == nil {
		t.Fatalf("expected ui runner called")
	}
	if got := h.uiCalled.ui.InitialTab(); got != "analyzer" {
		t.Fatalf("expected analyzer tab, got %q", got)
	}
	if got := h.uiCalled.core.ServerURL(); got != "http://example.test:9000" {
		t.Fatalf("expected server override, got %q", got)
	}
}

func TestUICommandRejectsUnknownTab(t *testing.T) {
	h := newHarness(t, newFakeCommandClient())
	if err := h.run("ui", "--tab", "settings"); err == nil {
		t.Fatalf("expected unknown tab error")
	}
	if h.uiCalled != nil {
		t.Fatalf("expected ui runner not called")
	}
}

func TestVersionCommandPrintsCommit(t *testing.T) {
	h := newHarness(t, newFakeCommandClient())
	if err := h.run("version"); err != nil {
		t.Fatalf("expected version to succeed, got %v", err)
	}
	if !strings.Contains(h.stdout.String(), "abc123") {
		t.Fatalf("expected commit in output, got %q", h.stdout.String())
	}
}
