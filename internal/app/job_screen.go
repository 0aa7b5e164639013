package app

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"charm.land/bubbles/v2/progress"
	"charm.land/bubbles/v2/viewport"
	"charm.land/lipgloss/v2"

	"reviewdeck/internal/guard"
	"reviewdeck/internal/persist"
	"reviewdeck/internal/scheduler"
	"reviewdeck/internal/store"
	"reviewdeck/internal/telemetry"
	"reviewdeck/internal/types"
)

// jobScreen is one editable screen driving a job family: its settings, the
// coordinator persisting them, the status poller and the run scheduler.
type jobScreen struct {
	screen types.Screen
	kind   types.JobKind
	ns     *store.Namespace
	coord  *persist.Coordinator
	poller *telemetry.Poller
	sched  *scheduler.Scheduler
	form   *settingsForm

	settings    *types.Settings
	saved       *types.Settings
	loaded      bool
	destination string
	fetching    bool

	logs       viewport.Model
	currentBar progress.Model
	globalBar  progress.Model
	followLogs bool
}

func newJobScreen(screen types.Screen, deps screenDeps) (*jobScreen, error) {
	kind, ok := screen.Kind()
	if !ok {
		return nil, fmt.Errorf("screen %s does not drive jobs", screen)
	}
	ns, err := store.NewNamespace(deps.kv, string(screen))
	if err != nil {
		return nil, err
	}
	remote, err := persist.NewRemoteTarget(deps.api, string(screen))
	if err != nil {
		return nil, err
	}
	local, err := persist.NewLocalTarget(ns)
	if err != nil {
		return nil, err
	}
	coord, err := persist.New(persist.Options{
		Scope:    string(screen),
		Targets:  []persist.Target{remote, local},
		Delay:    deps.core.DebounceDelay(),
		Cooldown: deps.core.ToastCooldown(),
		Timeout:  deps.core.RequestTimeout(),
		Notifier: deps.notifier,
		Logger:   deps.logger,
		Now:      deps.now,
	})
	if err != nil {
		return nil, err
	}
	poller, err := telemetry.New(telemetry.Options{
		Kind:       kind,
		API:        deps.api,
		WindowSize: deps.core.TelemetryWindowSize(),
		Timeout:    deps.core.RequestTimeout(),
		Logger:     deps.logger,
		Now:        deps.now,
	})
	if err != nil {
		return nil, err
	}
	sched, err := scheduler.New(scheduler.Options{
		Kind:           kind,
		Jobs:           deps.api,
		Providers:      deps.api,
		Saver:          coord,
		PollInterval:   deps.core.SchedulerPollInterval(),
		JobTimeout:     deps.core.JobTimeout(),
		RequestTimeout: deps.core.RequestTimeout(),
		Logger:         deps.logger,
		Now:            deps.now,
	})
	if err != nil {
		return nil, err
	}
	return &jobScreen{
		screen:      screen,
		kind:        kind,
		ns:          ns,
		coord:       coord,
		poller:      poller,
		sched:       sched,
		form:        newSettingsForm(),
		settings:    types.DefaultSettings(),
		saved:       types.DefaultSettings(),
		destination: deps.core.Destination(),
		logs:        viewport.New(viewport.WithWidth(80), viewport.WithHeight(6)),
		currentBar:  progress.New(progress.WithDefaultBlend(), progress.WithoutPercentage(), progress.WithWidth(40)),
		globalBar:   progress.New(progress.WithDefaultBlend(), progress.WithoutPercentage(), progress.WithWidth(40)),
		followLogs:  true,
	}, nil
}

// guardHandlers returns the save/reset pair for the navigation guard. The
// save writes snapshot, taken when the prompt is answered; the saved copy
// only moves once that write succeeded.
func (s *jobScreen) guardHandlers(snapshot *types.Settings) *guard.Handlers {
	coord := s.coord
	return &guard.Handlers{
		Save: func(ctx context.Context) error {
			if snapshot == nil {
				return nil
			}
			return coord.Save(ctx, snapshot)
		},
		Saved: func(err error) {
			if snapshot == nil {
				return
			}
			coord.HandleSaved(persist.SavedMsg{Scope: coord.Scope(), Settings: snapshot, Err: err})
			if err == nil {
				s.saved = snapshot.Clone()
			}
		},
		Reset: func() {
			coord.CancelPending()
			s.settings = s.saved.Clone()
			s.form.End()
			s.form.err = ""
		},
	}
}

// unsaved reports whether the working copy differs from the last persisted
// settings.
func (s *jobScreen) unsaved() bool {
	return !settingsEqual(s.settings, s.saved) || s.coord.HasPendingSave()
}

func settingsEqual(a, b *types.Settings) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Global != b.Global {
		return false
	}
	if len(a.PerItemOverrides) != len(b.PerItemOverrides) {
		return false
	}
	return len(a.PerItemOverrides) == 0 || reflect.DeepEqual(a.PerItemOverrides, b.PerItemOverrides)
}

func (s *jobScreen) resize(width, height int) {
	barWidth := max(10, width-34)
	s.currentBar.SetWidth(barWidth)
	s.globalBar.SetWidth(barWidth)
	s.logs.SetWidth(max(1, width))
	s.logs.SetHeight(max(1, height))
	s.refreshLogs()
}

// refreshLogs copies the poller's log lines into the viewport, following
// the tail unless the user scrolled up.
func (s *jobScreen) refreshLogs() {
	snap := s.poller.Snapshot()
	lines := make([]string, 0, len(snap.Status.Logs))
	for _, line := range snap.Status.Logs {
		lines = append(lines, logLineStyle.Render(line))
	}
	if len(lines) == 0 {
		lines = append(lines, helpStyle.Render("No log output yet."))
	}
	follow := s.followLogs || s.logs.AtBottom()
	s.logs.SetContent(strings.Join(lines, "\n"))
	if follow {
		s.logs.GotoBottom()
	}
}

func (s *jobScreen) lastLogLine() string {
	logs := s.poller.Snapshot().Status.Logs
	if len(logs) == 0 {
		return ""
	}
	return logs[len(logs)-1]
}

func (s *jobScreen) View(width, height int, spin string) string {
	form := s.form.View(s.settings, width, s.loaded)
	telemetryBlock := s.telemetryView(width, spin)
	divider := dividerStyle.Render(strings.Repeat("─", max(1, width)))
	used := lipgloss.Height(form) + lipgloss.Height(telemetryBlock) + 2
	logHeight := max(1, height-used)
	if s.logs.Height() != logHeight || s.logs.Width() != width {
		s.resize(width, logHeight)
	}
	return strings.Join([]string{form, divider, telemetryBlock, divider, s.logs.View()}, "\n")
}

func (s *jobScreen) telemetryView(width int, spin string) string {
	snap := s.poller.Snapshot()
	status := disabledStyle.Render("idle")
	switch {
	case snap.LastErr != nil:
		status = fieldErrorStyle.Render("status unavailable: " + snap.LastErr.Error())
	case snap.Status.IsRunning:
		status = activityStyle.Render(strings.TrimSpace(spin + " running"))
	case !snap.Polling:
		status = disabledStyle.Render("paused")
	}
	current := snap.Status.CurrentItem
	if current == "" {
		current = "-"
	}
	cur := snap.Status.CurrentProgress
	glob := snap.Status.GlobalProgress
	lines := []string{
		labelStyle.Render("Backend ") + status + labelStyle.Render("  item ") + valueStyle.Render(fitPlain(current, 24)),
		labelStyle.Render("Current ") + s.currentBar.ViewAs(float64(snap.CurrentPercent)/100) +
			valueStyle.Render(fmt.Sprintf(" %3d%% %d/%d", snap.CurrentPercent, cur.Scraped, cur.Total)),
		labelStyle.Render("Overall ") + s.globalBar.ViewAs(float64(snap.GlobalPercent)/100) +
			valueStyle.Render(fmt.Sprintf(" %3d%% %d/%d", snap.GlobalPercent, glob.Scraped, glob.Total)),
		labelStyle.Render("Rate    ") + valueStyle.Render(fmt.Sprintf("%.1f/min (avg %.1f/min)  ETA %s",
			snap.Rate, snap.AverageRate, types.FormatETA(glob.ETA()))),
		labelStyle.Render("Run     ") + s.runLine(),
	}
	for i, line := range lines {
		lines[i] = truncateToWidth(line, width)
	}
	return strings.Join(lines, "\n")
}

func (s *jobScreen) runLine() string {
	dest := s.destination
	if dest == "" {
		dest = "(none)"
	}
	if !s.sched.Running() {
		if s.fetching {
			return activityStyle.Render("fetching providers…") + labelStyle.Render("  dest ") + valueStyle.Render(dest)
		}
		return disabledStyle.Render("not running") + labelStyle.Render("  dest ") + valueStyle.Render(dest)
	}
	index, total := s.sched.Progress()
	line := fmt.Sprintf("%d/%d", index, total)
	if job, ok := s.sched.Current(); ok {
		line += fmt.Sprintf(" %s/%s %s %d/%d", job.Provider, job.Model, job.Status, job.Processed, job.Total)
	}
	return activityStyle.Render(line) + labelStyle.Render("  dest ") + valueStyle.Render(dest)
}

