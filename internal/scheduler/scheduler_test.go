package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"

	"reviewdeck/internal/teaexec"
	"reviewdeck/internal/types"
)

type fakeJobs struct {
	mu       sync.Mutex
	events   []string
	payloads []map[string]any
	// statuses maps a model name to the statuses returned on successive polls.
	statuses map[string][]types.JobStatus
	startErr map[string]error
	polls    map[string]int
	jobModel map[string]string
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{
		statuses: map[string][]types.JobStatus{},
		startErr: map[string]error{},
		polls:    map[string]int{},
		jobModel: map[string]string{},
	}
}

func (f *fakeJobs) StartJob(ctx context.Context, kind types.JobKind, payload map[string]any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	model, _ := payload["model"].(string)
	f.events = append(f.events, "start "+model)
	f.payloads = append(f.payloads, payload)
	if err := f.startErr[model]; err != nil {
		return "", err
	}
	id := "job-" + model
	f.jobModel[id] = model
	return id, nil
}

func (f *fakeJobs) ListJobs(ctx context.Context, kind types.JobKind) ([]types.JobRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var jobs []types.JobRecord
	for id, model := range f.jobModel {
		seq := f.statuses[model]
		idx := f.polls[model]
		if idx >= len(seq) {
			idx = len(seq) - 1
		}
		status := types.JobStatusRunning
		if idx >= 0 {
			status = seq[idx]
		}
		jobs = append(jobs, types.JobRecord{ID: id, Status: status, Model: model, Processed: 1, Total: 2})
	}
	for _, model := range f.jobModel {
		f.polls[model]++
		f.events = append(f.events, "poll "+model)
	}
	return jobs, nil
}

func (f *fakeJobs) eventLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

type fakeSaver struct {
	jobs  *fakeJobs
	err   error
	saved *types.Settings
}

func (f *fakeSaver) Save(ctx context.Context, settings *types.Settings) error {
	f.jobs.mu.Lock()
	f.jobs.events = append(f.jobs.events, "save")
	f.jobs.mu.Unlock()
	f.saved = settings
	return f.err
}

type minuteClock struct {
	mu sync.Mutex
	at time.Time
}

func (c *minuteClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.at = c.at.Add(time.Minute)
	return c.at
}

func newTestScheduler(t *testing.T, jobs *fakeJobs, saver Saver, timeout time.Duration) *Scheduler {
	t.Helper()
	clock := &minuteClock{at: time.Unix(1_700_000_000, 0)}
	s, err := New(Options{
		Kind:         types.JobKindReviews,
		Jobs:         jobs,
		Saver:        saver,
		PollInterval: time.Millisecond,
		JobTimeout:   timeout,
		Now:          clock.now,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func tree(models ...string) *types.ProviderTree {
	provider := types.ProviderConfig{Name: "openai", Enabled: true}
	for _, model := range models {
		provider.Models = append(provider.Models, types.ProviderModel{Name: model, Enabled: true, ReasoningLevel: "low"})
	}
	return &types.ProviderTree{Providers: []types.ProviderConfig{provider}}
}

func runToCompletion(t *testing.T, s *Scheduler, start tea.Cmd) FinishedMsg {
	t.Helper()
	var finished *FinishedMsg
	update := func(msg tea.Msg) tea.Cmd {
		if done, ok := msg.(FinishedMsg); ok {
			finished = &done
			return nil
		}
		_, cmd := s.Update(msg)
		return cmd
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := teaexec.Run(ctx, start, update, func() bool { return finished != nil }); err != nil {
		t.Fatalf("run: %v", err)
	}
	if finished == nil {
		t.Fatalf("run ended without FinishedMsg")
	}
	return *finished
}

func TestRunPreconditionsIssueNoRequests(t *testing.T) {
	disabled := tree("gpt-4o")
	disabled.Providers[0].Enabled = false
	cases := []struct {
		name string
		req  RunRequest
		want error
	}{
		{name: "no destination", req: RunRequest{Providers: tree("gpt-4o")}, want: ErrNoDestination},
		{name: "missing config", req: RunRequest{Destination: "reports"}, want: ErrMissingConfig},
		{name: "empty providers", req: RunRequest{Destination: "reports", Providers: &types.ProviderTree{}}, want: ErrMissingConfig},
		{name: "no enabled targets", req: RunRequest{Destination: "reports", Providers: disabled}, want: ErrNoTargets},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			jobs := newFakeJobs()
			s := newTestScheduler(t, jobs, &fakeSaver{jobs: jobs}, time.Hour)
			cmd, err := s.Run(tc.req)
			if !errors.Is(err, tc.want) || cmd != nil {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if s.Running() {
				t.Fatalf("expected scheduler idle")
			}
			if len(jobs.eventLog()) != 0 {
				t.Fatalf("expected no requests, got %v", jobs.eventLog())
			}
		})
	}
}

func TestRunIsStrictlySequential(t *testing.T) {
	jobs := newFakeJobs()
	jobs.statuses["a"] = []types.JobStatus{types.JobStatusRunning, types.JobStatusCompleted}
	jobs.statuses["b"] = []types.JobStatus{types.JobStatusError}
	saver := &fakeSaver{jobs: jobs}
	s := newTestScheduler(t, jobs, saver, time.Hour)

	settings := types.DefaultSettings()
	settings.Global.MaxReviews = 25
	cmd, err := s.Run(RunRequest{Destination: "reports", Settings: settings, Providers: tree("a", "b")})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !s.Running() {
		t.Fatalf("expected running after Run")
	}
	finished := runToCompletion(t, s, cmd)
	if s.Running() {
		t.Fatalf("expected idle after finish")
	}

	events := jobs.eventLog()
	if events[0] != "save" || events[1] != "start a" {
		t.Fatalf("expected save then first start, got %v", events)
	}
	startB := indexOf(events, "start b")
	if startB < 0 {
		t.Fatalf("expected b to start, got %v", events)
	}
	lastPollA := -1
	for i, event := range events[:startB] {
		if event == "poll a" {
			lastPollA = i
		}
	}
	if lastPollA < 0 {
		t.Fatalf("expected b to start after a finished, got %v", events)
	}

	if len(finished.Outcomes) != 2 {
		t.Fatalf("expected two outcomes, got %#v", finished.Outcomes)
	}
	if finished.Outcomes[0].Status != OutcomeCompleted || finished.Outcomes[1].Status != OutcomeError {
		t.Fatalf("unexpected outcomes: %s", Summarize(finished.Outcomes))
	}
	if saver.saved == nil || saver.saved.Global.MaxReviews != 25 {
		t.Fatalf("expected pre-run save of current settings")
	}
}

func TestRunPayloadCarriesSettingsAndTarget(t *testing.T) {
	jobs := newFakeJobs()
	jobs.statuses["a"] = []types.JobStatus{types.JobStatusCompleted}
	s := newTestScheduler(t, jobs, nil, time.Hour)

	settings := types.DefaultSettings()
	settings.Global.Language = "russian"
	cmd, err := s.Run(RunRequest{Destination: "reports", Settings: settings, Providers: tree("a")})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	runToCompletion(t, s, cmd)

	payload := jobs.payloads[0]
	if payload["provider"] != "openai" || payload["model"] != "a" || payload["reasoning_level"] != "low" {
		t.Fatalf("missing target fields: %#v", payload)
	}
	if payload["language"] != "russian" || payload["destination"] != "reports" {
		t.Fatalf("missing settings fields: %#v", payload)
	}
}

func TestTimedOutTargetStillAdvances(t *testing.T) {
	jobs := newFakeJobs()
	jobs.statuses["stuck"] = []types.JobStatus{types.JobStatusRunning}
	jobs.statuses["next"] = []types.JobStatus{types.JobStatusCompleted}
	s := newTestScheduler(t, jobs, nil, 3*time.Minute)

	cmd, err := s.Run(RunRequest{Destination: "reports", Providers: tree("stuck", "next")})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	finished := runToCompletion(t, s, cmd)
	if len(finished.Outcomes) != 2 {
		t.Fatalf("expected two outcomes, got %d", len(finished.Outcomes))
	}
	timedOut := finished.Outcomes[0]
	if timedOut.Status != OutcomeTimedOut || timedOut.JobID != "job-stuck" {
		t.Fatalf("unexpected first outcome: %#v", timedOut)
	}
	if timedOut.Job == nil || timedOut.Job.Status != types.JobStatusRunning {
		t.Fatalf("expected last seen record on timed-out outcome")
	}
	if finished.Outcomes[1].Status != OutcomeCompleted {
		t.Fatalf("expected next target to complete, got %s", finished.Outcomes[1].Status)
	}
}

func TestStartFailureRecordsErrorAndAdvances(t *testing.T) {
	jobs := newFakeJobs()
	jobs.startErr["bad"] = errors.New("503 service unavailable")
	jobs.statuses["good"] = []types.JobStatus{types.JobStatusCompleted}
	s := newTestScheduler(t, jobs, nil, time.Hour)

	cmd, err := s.Run(RunRequest{Destination: "reports", Providers: tree("bad", "good")})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	finished := runToCompletion(t, s, cmd)
	if finished.Outcomes[0].Status != OutcomeError || finished.Outcomes[0].Err == nil {
		t.Fatalf("expected start failure outcome, got %#v", finished.Outcomes[0])
	}
	if finished.Outcomes[1].Status != OutcomeCompleted {
		t.Fatalf("expected second target to run")
	}
}

func TestSaveFailureDoesNotBlockRun(t *testing.T) {
	jobs := newFakeJobs()
	jobs.statuses["a"] = []types.JobStatus{types.JobStatusCompleted}
	s := newTestScheduler(t, jobs, &fakeSaver{jobs: jobs, err: errors.New("offline")}, time.Hour)

	cmd, _ := s.Run(RunRequest{Destination: "reports", Providers: tree("a")})
	finished := runToCompletion(t, s, cmd)
	if finished.SaveErr == nil {
		t.Fatalf("expected save error reported")
	}
	if len(finished.Outcomes) != 1 || finished.Outcomes[0].Status != OutcomeCompleted {
		t.Fatalf("expected run to proceed, got %#v", finished.Outcomes)
	}
}

func TestCancelSkipsRemainingTargets(t *testing.T) {
	jobs := newFakeJobs()
	s := newTestScheduler(t, jobs, nil, time.Hour)

	cmd, err := s.Run(RunRequest{Destination: "reports", Providers: tree("a", "b", "c")})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	saved := teaexec.Exec(cmd)
	if handled, startCmd := s.Update(saved); !handled || startCmd == nil {
		t.Fatalf("expected pre-run save to lead to the first start")
	}

	finished, ok := s.Cancel()().(FinishedMsg)
	if !ok || !finished.Cancelled {
		t.Fatalf("expected cancelled FinishedMsg")
	}
	if len(finished.Outcomes) != 3 {
		t.Fatalf("expected an outcome per target, got %d", len(finished.Outcomes))
	}
	for _, outcome := range finished.Outcomes {
		if outcome.Status != OutcomeSkipped {
			t.Fatalf("expected skipped, got %s", outcome.Status)
		}
	}
	if s.Running() {
		t.Fatalf("expected scheduler idle after cancel")
	}
	if handled, cmd := s.Update(startedMsg{kind: types.JobKindReviews, run: s.run - 1, index: 0, jobID: "late"}); !handled || cmd != nil {
		t.Fatalf("expected late message swallowed")
	}
	if s.Cancel() != nil {
		t.Fatalf("expected second cancel to be a no-op")
	}
}

func TestRunRejectsConcurrentRun(t *testing.T) {
	jobs := newFakeJobs()
	s := newTestScheduler(t, jobs, nil, time.Hour)
	if _, err := s.Run(RunRequest{Destination: "reports", Providers: tree("a")}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := s.Run(RunRequest{Destination: "reports", Providers: tree("a")}); !errors.Is(err, ErrRunning) {
		t.Fatalf("expected ErrRunning, got %v", err)
	}
}

func TestReportRendersOutcomes(t *testing.T) {
	outcomes := []Outcome{
		{Target: types.RunTarget{Provider: "openai", Model: "a"}, JobID: "j1", Status: OutcomeCompleted, Job: &types.JobRecord{Processed: 5, Total: 5}, Elapsed: 90 * time.Second},
		{Target: types.RunTarget{Provider: "openai", Model: "b|c"}, Status: OutcomeError, Err: errors.New("boom")},
	}
	report := Report(types.JobKindReviews, outcomes)
	for _, want := range []string{"# Run report: reviews", "| 1 | openai/a | completed | `j1` | 5/5 | 1m30s |", `openai/b\|c`, "boom", "completed=1 error=1"} {
		if !strings.Contains(report, want) {
			t.Fatalf("expected %q in report:\n%s", want, report)
		}
	}
	if Summarize(outcomes).Succeeded() {
		t.Fatalf("expected mixed summary not to succeed")
	}
}

func indexOf(values []string, want string) int {
	for i, value := range values {
		if value == want {
			return i
		}
	}
	return -1
}
