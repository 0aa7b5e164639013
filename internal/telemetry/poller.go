// Package telemetry polls a job family's status endpoint on an adaptive
// cadence and derives a throughput rate from the cumulative counters.
package telemetry

import (
	"context"
	"errors"
	"time"

	tea "charm.land/bubbletea/v2"

	"reviewdeck/internal/logging"
	"reviewdeck/internal/ring"
	"reviewdeck/internal/types"
)

const (
	defaultActive     = 2 * time.Second
	defaultIdle       = 10 * time.Second
	defaultWindowSize = 60
	defaultTimeout    = 10 * time.Second
)

type StatusAPI interface {
	Status(ctx context.Context, kind types.JobKind) (*types.StatusSnapshot, error)
}

type Options struct {
	Kind       types.JobKind
	API        StatusAPI
	WindowSize int
	Timeout    time.Duration
	Logger     logging.Logger
	Now        func() time.Time
}

type pollTickMsg struct {
	kind types.JobKind
	gen  int
}

type statusMsg struct {
	kind     types.JobKind
	gen      int
	snapshot *types.StatusSnapshot
	err      error
	at       time.Time
}

// UpdatedMsg is emitted after every applied poll so views can refresh.
type UpdatedMsg struct {
	Kind types.JobKind
	Err  error
}

// Snapshot is a read-only copy of the poller's state.
type Snapshot struct {
	Status         types.StatusSnapshot
	Rate           float64
	AverageRate    float64
	CurrentPercent int
	GlobalPercent  int
	Samples        []types.TelemetrySample
	LastPolledAt   time.Time
	LastErr        error
	Polling        bool
}

type Poller struct {
	kind    types.JobKind
	api     StatusAPI
	timeout time.Duration
	logger  logging.Logger
	now     func() time.Time

	gen     int
	running bool
	active  time.Duration
	idle    time.Duration

	window       *ring.Window[types.TelemetrySample]
	status       types.StatusSnapshot
	rate         float64
	lastPolledAt time.Time
	lastErr      error
}

func New(opts Options) (*Poller, error) {
	if opts.API == nil {
		return nil, errors.New("status api is required")
	}
	if _, ok := types.ParseJobKind(string(opts.Kind)); !ok {
		return nil, errors.New("unknown job kind " + string(opts.Kind))
	}
	size := opts.WindowSize
	if size <= 0 {
		size = defaultWindowSize
	}
	p := &Poller{
		kind:    opts.Kind,
		api:     opts.API,
		timeout: opts.Timeout,
		logger:  opts.Logger,
		now:     opts.Now,
		window:  ring.New[types.TelemetrySample](size),
		active:  defaultActive,
		idle:    defaultIdle,
	}
	if p.timeout <= 0 {
		p.timeout = defaultTimeout
	}
	if p.logger == nil {
		p.logger = logging.Nop()
	}
	p.logger = p.logger.With(logging.F("component", "telemetry"), logging.F("kind", string(p.kind)))
	if p.now == nil {
		p.now = time.Now
	}
	return p, nil
}

func (p *Poller) Kind() types.JobKind {
	if p == nil {
		return ""
	}
	return p.kind
}

func (p *Poller) Polling() bool {
	return p != nil && p.running
}

// Start begins polling with the first request issued immediately. Starting a
// running poller restarts it with the new intervals.
func (p *Poller) Start(active, idle time.Duration) tea.Cmd {
	if p == nil {
		return nil
	}
	if active <= 0 {
		active = defaultActive
	}
	if idle <= 0 {
		idle = defaultIdle
	}
	p.gen++
	p.running = true
	p.active = active
	p.idle = idle
	return p.fetchCmd(p.gen)
}

// Stop ends polling. In-flight ticks and responses of the stopped generation
// are discarded. Calling Stop again is a no-op.
func (p *Poller) Stop() {
	if p == nil || !p.running {
		return
	}
	p.running = false
	p.gen++
}

// Update routes the poller's own messages. The bool reports whether msg
// belonged to this poller.
func (p *Poller) Update(msg tea.Msg) (bool, tea.Cmd) {
	if p == nil {
		return false, nil
	}
	switch msg := msg.(type) {
	case pollTickMsg:
		if msg.kind != p.kind {
			return false, nil
		}
		if !p.current(msg.gen) {
			return true, nil
		}
		return true, p.fetchCmd(msg.gen)
	case statusMsg:
		if msg.kind != p.kind {
			return false, nil
		}
		if !p.current(msg.gen) {
			p.logger.Debug("stale status dropped", logging.F("gen", msg.gen))
			return true, nil
		}
		p.apply(msg)
		next := p.scheduleNext(msg.gen)
		kind := p.kind
		err := msg.err
		updated := func() tea.Msg { return UpdatedMsg{Kind: kind, Err: err} }
		return true, tea.Batch(updated, next)
	}
	return false, nil
}

func (p *Poller) current(gen int) bool {
	return p.running && gen == p.gen
}

func (p *Poller) fetchCmd(gen int) tea.Cmd {
	api := p.api
	kind := p.kind
	timeout := p.timeout
	now := p.now
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		snapshot, err := api.Status(ctx, kind)
		return statusMsg{kind: kind, gen: gen, snapshot: snapshot, err: err, at: now()}
	}
}

func (p *Poller) apply(msg statusMsg) {
	p.lastPolledAt = msg.at
	if msg.err != nil {
		p.lastErr = msg.err
		p.logger.Warn("status poll failed", logging.F("error", msg.err))
		return
	}
	p.lastErr = nil
	if msg.snapshot != nil {
		p.status = cloneStatus(*msg.snapshot)
	}
	sample := types.TelemetrySample{Timestamp: msg.at, CumulativeCount: p.status.GlobalProgress.Scraped}
	if prev, ok := p.window.Last(); ok {
		p.rate = types.Rate(prev, sample)
	} else {
		p.rate = 0
	}
	p.window.Push(sample)
}

func (p *Poller) scheduleNext(gen int) tea.Cmd {
	interval := p.idle
	if p.lastErr == nil && p.status.IsRunning {
		interval = p.active
	}
	kind := p.kind
	return tea.Tick(interval, func(time.Time) tea.Msg {
		return pollTickMsg{kind: kind, gen: gen}
	})
}

// NextInterval reports the cadence the poller will use after the last
// response.
func (p *Poller) NextInterval() time.Duration {
	if p == nil {
		return 0
	}
	if p.lastErr == nil && p.status.IsRunning {
		return p.active
	}
	return p.idle
}

func (p *Poller) LastErr() error {
	if p == nil {
		return nil
	}
	return p.lastErr
}

// Rate is the items-per-minute rate between the two most recent samples.
func (p *Poller) Rate() float64 {
	if p == nil {
		return 0
	}
	return p.rate
}

// AverageRate is the items-per-minute rate across the whole window.
func (p *Poller) AverageRate() float64 {
	if p == nil || p.window.Len() < 2 {
		return 0
	}
	first, _ := p.window.First()
	last, _ := p.window.Last()
	return types.Rate(first, last)
}

func (p *Poller) Snapshot() Snapshot {
	if p == nil {
		return Snapshot{}
	}
	return Snapshot{
		Status:         cloneStatus(p.status),
		Rate:           p.rate,
		AverageRate:    p.AverageRate(),
		CurrentPercent: p.status.CurrentProgress.Percent(),
		GlobalPercent:  p.status.GlobalProgress.Percent(),
		Samples:        p.window.Items(),
		LastPolledAt:   p.lastPolledAt,
		LastErr:        p.lastErr,
		Polling:        p.running,
	}
}

func cloneStatus(s types.StatusSnapshot) types.StatusSnapshot {
	s.Logs = append([]string(nil), s.Logs...)
	return s
}
