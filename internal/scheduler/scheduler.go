// Package scheduler runs one backend job per enabled provider/model target,
// strictly one after another, and collects an outcome for each.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "charm.land/bubbletea/v2"

	"reviewdeck/internal/logging"
	"reviewdeck/internal/types"
)

const (
	defaultPollInterval   = 3 * time.Second
	defaultJobTimeout     = 30 * time.Minute
	defaultRequestTimeout = 10 * time.Second
)

var (
	ErrNoDestination = errors.New("no destination selected")
	ErrMissingConfig = errors.New("provider configuration missing")
	ErrNoTargets     = errors.New("no enabled provider models")
	ErrRunning       = errors.New("a run is already in progress")
)

type JobAPI interface {
	StartJob(ctx context.Context, kind types.JobKind, payload map[string]any) (string, error)
	ListJobs(ctx context.Context, kind types.JobKind) ([]types.JobRecord, error)
}

type ProviderAPI interface {
	GetProviderTree(ctx context.Context) (*types.ProviderTree, bool, error)
}

// Saver performs the explicit pre-run save.
type Saver interface {
	Save(ctx context.Context, settings *types.Settings) error
}

type Options struct {
	Kind           types.JobKind
	Jobs           JobAPI
	Providers      ProviderAPI
	Saver          Saver
	PollInterval   time.Duration
	JobTimeout     time.Duration
	RequestTimeout time.Duration
	Logger         logging.Logger
	Now            func() time.Time
}

type RunRequest struct {
	Destination string
	Settings    *types.Settings
	Providers   *types.ProviderTree
}

type savedMsg struct {
	kind types.JobKind
	run  int
	err  error
}

type startedMsg struct {
	kind  types.JobKind
	run   int
	index int
	jobID string
	err   error
}

type pollTickMsg struct {
	kind  types.JobKind
	run   int
	index int
}

type polledMsg struct {
	kind  types.JobKind
	run   int
	index int
	jobs  []types.JobRecord
	err   error
}

// ProvidersMsg carries a freshly fetched provider tree.
type ProvidersMsg struct {
	Kind  types.JobKind
	Tree  *types.ProviderTree
	Found bool
	Err   error
}

// ProgressMsg is emitted whenever the watched job or the active target
// changes.
type ProgressMsg struct {
	Kind    types.JobKind
	Index   int
	Target  types.RunTarget
	Current *types.JobRecord
}

// FinishedMsg ends a run with one outcome per target in run order.
type FinishedMsg struct {
	Kind      types.JobKind
	Outcomes  []Outcome
	SaveErr   error
	Cancelled bool
}

type Scheduler struct {
	kind           types.JobKind
	jobs           JobAPI
	providers      ProviderAPI
	saver          Saver
	pollInterval   time.Duration
	jobTimeout     time.Duration
	requestTimeout time.Duration
	logger         logging.Logger
	now            func() time.Time

	run       int
	running   bool
	targets   []types.RunTarget
	payload   map[string]any
	settings  *types.Settings
	index     int
	jobID     string
	startedAt time.Time
	current   *types.JobRecord
	outcomes  []Outcome
	saveErr   error
}

func New(opts Options) (*Scheduler, error) {
	if opts.Jobs == nil {
		return nil, errors.New("job api is required")
	}
	if _, ok := types.ParseJobKind(string(opts.Kind)); !ok {
		return nil, fmt.Errorf("unknown job kind %q", opts.Kind)
	}
	s := &Scheduler{
		kind:           opts.Kind,
		jobs:           opts.Jobs,
		providers:      opts.Providers,
		saver:          opts.Saver,
		pollInterval:   opts.PollInterval,
		jobTimeout:     opts.JobTimeout,
		requestTimeout: opts.RequestTimeout,
		logger:         opts.Logger,
		now:            opts.Now,
	}
	if s.pollInterval <= 0 {
		s.pollInterval = defaultPollInterval
	}
	if s.jobTimeout <= 0 {
		s.jobTimeout = defaultJobTimeout
	}
	if s.requestTimeout <= 0 {
		s.requestTimeout = defaultRequestTimeout
	}
	if s.logger == nil {
		s.logger = logging.Nop()
	}
	s.logger = s.logger.With(logging.F("component", "scheduler"), logging.F("kind", string(s.kind)))
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

func (s *Scheduler) Kind() types.JobKind {
	if s == nil {
		return ""
	}
	return s.kind
}

// Running is true from Run until FinishedMsg is produced.
func (s *Scheduler) Running() bool {
	return s != nil && s.running
}

// Current returns the most recently polled job record of the run.
func (s *Scheduler) Current() (types.JobRecord, bool) {
	if s == nil || s.current == nil {
		return types.JobRecord{}, false
	}
	return *s.current, true
}

// Progress reports the 1-based index of the active target and the target
// count.
func (s *Scheduler) Progress() (int, int) {
	if s == nil || !s.running {
		return 0, 0
	}
	return s.index + 1, len(s.targets)
}

func (s *Scheduler) Outcomes() []Outcome {
	if s == nil {
		return nil
	}
	return append([]Outcome(nil), s.outcomes...)
}

// FetchProviderTree reads the provider configuration fresh from the
// backend. The app calls it right before Run.
func (s *Scheduler) FetchProviderTree() tea.Cmd {
	if s == nil || s.providers == nil {
		return nil
	}
	api := s.providers
	kind := s.kind
	timeout := s.requestTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		tree, found, err := api.GetProviderTree(ctx)
		return ProvidersMsg{Kind: kind, Tree: tree, Found: found, Err: err}
	}
}

// Run validates the request synchronously and returns the command that
// starts the run. No network call happens when an error is returned.
func (s *Scheduler) Run(req RunRequest) (tea.Cmd, error) {
	if s == nil {
		return nil, errors.New("scheduler is required")
	}
	if s.running {
		return nil, ErrRunning
	}
	destination := strings.TrimSpace(req.Destination)
	if destination == "" {
		return nil, ErrNoDestination
	}
	if req.Providers == nil || len(req.Providers.Providers) == 0 {
		return nil, ErrMissingConfig
	}
	targets := req.Providers.EnabledTargets()
	if len(targets) == 0 {
		return nil, ErrNoTargets
	}
	settings := req.Settings.Clone()
	if settings == nil {
		settings = types.DefaultSettings()
	}
	payload, err := settings.Payload()
	if err != nil {
		return nil, fmt.Errorf("build payload: %w", err)
	}
	payload["destination"] = destination

	s.run++
	s.running = true
	s.targets = targets
	s.payload = payload
	s.settings = settings
	s.index = 0
	s.jobID = ""
	s.startedAt = time.Time{}
	s.current = nil
	s.outcomes = make([]Outcome, 0, len(targets))
	s.saveErr = nil
	s.logger.Info("run started", logging.F("targets", len(targets)), logging.F("destination", destination))
	return s.saveCmd(s.run), nil
}

// Cancel stops watching the run. The active job keeps running on the
// backend; it and every later target are reported as skipped.
func (s *Scheduler) Cancel() tea.Cmd {
	if s == nil || !s.running {
		return nil
	}
	for i := s.index; i < len(s.targets); i++ {
		outcome := Outcome{Target: s.targets[i], Status: OutcomeSkipped}
		if i == s.index {
			outcome.JobID = s.jobID
			if !s.startedAt.IsZero() {
				outcome.Elapsed = s.now().Sub(s.startedAt)
			}
		}
		s.outcomes = append(s.outcomes, outcome)
	}
	s.logger.Info("run cancelled", logging.F("skipped", len(s.targets)-s.index))
	return s.finish(true)
}

// Update routes the scheduler's own messages. Messages from a previous or
// cancelled run are swallowed.
func (s *Scheduler) Update(msg tea.Msg) (bool, tea.Cmd) {
	if s == nil {
		return false, nil
	}
	switch msg := msg.(type) {
	case savedMsg:
		if msg.kind != s.kind {
			return false, nil
		}
		if !s.active(msg.run) {
			return true, nil
		}
		if msg.err != nil {
			s.saveErr = msg.err
			s.logger.Warn("pre-run save failed", logging.F("error", msg.err))
		}
		return true, s.startCmd(msg.run, s.index)
	case startedMsg:
		if msg.kind != s.kind {
			return false, nil
		}
		if !s.active(msg.run) || msg.index != s.index {
			return true, nil
		}
		return true, s.handleStarted(msg)
	case pollTickMsg:
		if msg.kind != s.kind {
			return false, nil
		}
		if !s.active(msg.run) || msg.index != s.index {
			return true, nil
		}
		return true, s.listCmd(msg.run, msg.index)
	case polledMsg:
		if msg.kind != s.kind {
			return false, nil
		}
		if !s.active(msg.run) || msg.index != s.index {
			return true, nil
		}
		return true, s.handlePolled(msg)
	}
	return false, nil
}

func (s *Scheduler) active(run int) bool {
	return s.running && run == s.run
}

func (s *Scheduler) saveCmd(run int) tea.Cmd {
	saver := s.saver
	settings := s.settings.Clone()
	kind := s.kind
	timeout := s.requestTimeout
	return func() tea.Msg {
		if saver == nil {
			return savedMsg{kind: kind, run: run}
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return savedMsg{kind: kind, run: run, err: saver.Save(ctx, settings)}
	}
}

func (s *Scheduler) startCmd(run, index int) tea.Cmd {
	target := s.targets[index]
	payload := targetPayload(s.payload, target)
	api := s.jobs
	kind := s.kind
	timeout := s.requestTimeout
	s.jobID = ""
	s.startedAt = time.Time{}
	s.logger.Info("starting target", logging.F("target", target.Label()), logging.F("index", index))
	progress := s.progressCmd()
	start := func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		jobID, err := api.StartJob(ctx, kind, payload)
		return startedMsg{kind: kind, run: run, index: index, jobID: jobID, err: err}
	}
	return tea.Batch(progress, start)
}

func (s *Scheduler) handleStarted(msg startedMsg) tea.Cmd {
	target := s.targets[msg.index]
	if msg.err != nil {
		s.logger.Warn("start failed", logging.F("target", target.Label()), logging.F("error", msg.err))
		s.outcomes = append(s.outcomes, Outcome{Target: target, Status: OutcomeError, Err: msg.err})
		return s.advance()
	}
	s.jobID = msg.jobID
	s.startedAt = s.now()
	s.logger.Info("job started", logging.F("target", target.Label()), logging.F("job_id", msg.jobID))
	return s.tickCmd(msg.run, msg.index)
}

func (s *Scheduler) tickCmd(run, index int) tea.Cmd {
	kind := s.kind
	return tea.Tick(s.pollInterval, func(time.Time) tea.Msg {
		return pollTickMsg{kind: kind, run: run, index: index}
	})
}

func (s *Scheduler) listCmd(run, index int) tea.Cmd {
	api := s.jobs
	kind := s.kind
	timeout := s.requestTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		jobs, err := api.ListJobs(ctx, kind)
		return polledMsg{kind: kind, run: run, index: index, jobs: jobs, err: err}
	}
}

func (s *Scheduler) handlePolled(msg polledMsg) tea.Cmd {
	target := s.targets[msg.index]
	elapsed := s.now().Sub(s.startedAt)
	var progress tea.Cmd
	if msg.err != nil {
		s.logger.Warn("job poll failed", logging.F("job_id", s.jobID), logging.F("error", msg.err))
	} else if job, ok := types.FindJob(msg.jobs, s.jobID); ok {
		s.current = &job
		progress = s.progressCmd()
		if job.Status.Terminal() {
			s.logger.Info("job finished", logging.F("job_id", job.ID), logging.F("status", string(job.Status)), logging.F("elapsed", elapsed))
			s.outcomes = append(s.outcomes, outcomeFromJob(target, job, elapsed))
			return tea.Batch(progress, s.advance())
		}
	}
	if elapsed >= s.jobTimeout {
		s.logger.Warn("job timed out", logging.F("job_id", s.jobID), logging.F("elapsed", elapsed))
		outcome := Outcome{Target: target, JobID: s.jobID, Status: OutcomeTimedOut, Elapsed: elapsed}
		if s.current != nil && s.current.ID == s.jobID {
			job := *s.current
			outcome.Job = &job
		}
		s.outcomes = append(s.outcomes, outcome)
		return tea.Batch(progress, s.advance())
	}
	return tea.Batch(progress, s.tickCmd(msg.run, msg.index))
}

func (s *Scheduler) advance() tea.Cmd {
	s.index++
	if s.index < len(s.targets) {
		return s.startCmd(s.run, s.index)
	}
	return s.finish(false)
}

func (s *Scheduler) finish(cancelled bool) tea.Cmd {
	s.running = false
	s.run++
	msg := FinishedMsg{
		Kind:      s.kind,
		Outcomes:  append([]Outcome(nil), s.outcomes...),
		SaveErr:   s.saveErr,
		Cancelled: cancelled,
	}
	s.logger.Info("run finished", logging.F("summary", Summarize(msg.Outcomes).String()))
	return func() tea.Msg { return msg }
}

func (s *Scheduler) progressCmd() tea.Cmd {
	msg := ProgressMsg{Kind: s.kind, Index: s.index}
	if s.index < len(s.targets) {
		msg.Target = s.targets[s.index]
	}
	if s.current != nil {
		job := *s.current
		msg.Current = &job
	}
	return func() tea.Msg { return msg }
}

func targetPayload(base map[string]any, target types.RunTarget) map[string]any {
	payload := make(map[string]any, len(base)+3)
	for key, value := range base {
		payload[key] = value
	}
	payload["provider"] = target.Provider
	payload["model"] = target.Model
	if target.ReasoningLevel != "" {
		payload["reasoning_level"] = target.ReasoningLevel
	}
	return payload
}
