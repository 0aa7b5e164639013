// Package app is the terminal UI. The Bubble Tea update loop is the single
// cooperative scheduler every controller runs on: persistence coordinators,
// status pollers, run schedulers and the unsaved-changes guard all hand
// their work back to it as commands and typed messages.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"golang.org/x/sync/errgroup"

	"reviewdeck/internal/config"
	"reviewdeck/internal/events"
	"reviewdeck/internal/guard"
	"reviewdeck/internal/logging"
	"reviewdeck/internal/notify"
	"reviewdeck/internal/persist"
	"reviewdeck/internal/scheduler"
	"reviewdeck/internal/store"
	"reviewdeck/internal/telemetry"
	"reviewdeck/internal/types"
)

type Options struct {
	API     API
	Store   store.KVStore
	Archive *store.ExportArchive
	Core    config.CoreConfig
	UI      config.UIConfig
	Logger  logging.Logger
	Now     func() time.Time
}

type screenDeps struct {
	api      API
	kv       store.KVStore
	core     config.CoreConfig
	notifier notify.Notifier
	logger   logging.Logger
	now      func() time.Time
}

type Model struct {
	api     API
	archive *store.ExportArchive
	core    config.CoreConfig
	ui      config.UIConfig
	logger  logging.Logger
	now     func() time.Time

	width  int
	height int
	active types.Screen

	toasts   *notify.Center
	expiring bool
	guard    *guard.Guard
	// owner is the job screen whose edits the guard tracks. It differs from
	// active only after a Review choice left those edits unsaved.
	owner    types.Screen
	confirm  *ConfirmController
	spinner  spinner.Model
	appNS    *store.Namespace

	jobs      map[types.Screen]*jobScreen
	jobOrder  []*jobScreen
	providers *providersPage
	review    *reviewPage
	exporting int
	quitting  bool
}

func New(opts Options) (*Model, error) {
	if opts.API == nil {
		return nil, errors.New("api is required")
	}
	if opts.Store == nil {
		return nil, errors.New("store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	toasts := notify.NewCenter(opts.UI.ToastQueueSize(), opts.UI.ToastTTL())
	toasts.SetClock(now)
	appNS, err := store.NewNamespace(opts.Store, appNamespace)
	if err != nil {
		return nil, err
	}
	m := &Model{
		api:       opts.API,
		archive:   opts.Archive,
		core:      opts.Core,
		ui:        opts.UI,
		logger:    logger.With(logging.F("component", "app")),
		now:       now,
		toasts:    toasts,
		guard:     guard.New(types.ScreenReview, logger),
		confirm:   NewConfirmController(),
		spinner:   spinner.New(spinner.WithSpinner(spinner.MiniDot), spinner.WithStyle(activityStyle)),
		appNS:     appNS,
		jobs:      map[types.Screen]*jobScreen{},
		providers: newProvidersPage(),
		review:    newReviewPage(opts.UI.ReportStyle()),
		active:    types.ScreenScraper,
	}
	deps := screenDeps{api: opts.API, kv: opts.Store, core: opts.Core, notifier: toasts, logger: logger, now: now}
	for _, screen := range types.Screens {
		if _, ok := screen.Kind(); !ok {
			continue
		}
		s, err := newJobScreen(screen, deps)
		if err != nil {
			return nil, fmt.Errorf("%s screen: %w", screen, err)
		}
		m.jobs[screen] = s
		m.jobOrder = append(m.jobOrder, s)
	}
	if tab, ok := types.ParseScreen(opts.UI.InitialTab()); ok {
		m.active = tab
	}
	if s := m.jobs[m.active]; s != nil {
		m.owner = m.active
		m.guard.Register(s.guardHandlers(s.settings.Clone()))
	}
	return m, nil
}

// Run starts the full-screen program and blocks until it exits.
func Run(ctx context.Context, opts Options) error {
	m, err := New(opts)
	if err != nil {
		return err
	}
	p := tea.NewProgram(m, tea.WithContext(ctx))
	_, err = p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.loadUIStateCmd(), m.spinner.Tick, m.enter(m.active)}
	for _, s := range m.jobOrder {
		cmds = append(cmds, s.coord.Load())
	}
	return tea.Batch(cmds...)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	cmd := m.update(msg)
	return m, tea.Batch(cmd, m.scheduleToastExpiry())
}

func (m *Model) update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return nil
	case notify.ExpireMsg:
		m.expiring = false
		m.toasts.Prune(m.now())
		return nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return cmd
	case uiStateLoadedMsg:
		return m.applyUIState(msg)
	case guard.NavigateMsg:
		if msg.KeepEdits {
			return m.switchKeepingEdits(msg.To)
		}
		return m.switchTo(msg.To)
	case persist.LoadedMsg:
		m.onSettingsLoaded(msg)
	case persist.SavedMsg:
		m.onSettingsSaved(msg)
	case persist.ResetMsg:
		m.onSettingsReset(msg)
	case telemetry.UpdatedMsg:
		if s := m.jobByKind(msg.Kind); s != nil {
			s.refreshLogs()
		}
		return nil
	case scheduler.ProvidersMsg:
		return m.onRunProviders(msg)
	case scheduler.ProgressMsg:
		return nil
	case scheduler.FinishedMsg:
		return m.onRunFinished(msg)
	case events.DeleteModelRequestMsg:
		return m.onDeleteRequest(msg)
	case events.SettingsEditedMsg:
		m.logger.Debug("settings edited", logging.F("event", msg.Describe()))
		return nil
	case providersLoadedMsg:
		if m.providers.applyLoaded(msg) && msg.err != nil {
			m.toasts.Notify(notify.LevelWarning, "providers:load", "Could not load providers: "+msg.err.Error())
		}
		return nil
	case providersSavedMsg:
		return m.onProvidersSaved(msg)
	case exportDoneMsg:
		return m.onExportDone(msg)
	case exportsListedMsg:
		m.review.setExports(msg.keys)
		return nil
	case tea.KeyPressMsg:
		return m.handleKey(msg)
	case tea.MouseMsg:
		return m.handleMouse(msg)
	}
	if handled, cmd := m.guard.Update(msg); handled {
		return cmd
	}
	for _, s := range m.jobOrder {
		if handled, cmd := s.coord.Update(msg); handled {
			return cmd
		}
		if handled, cmd := s.poller.Update(msg); handled {
			return cmd
		}
		if handled, cmd := s.sched.Update(msg); handled {
			return cmd
		}
	}
	return nil
}

func (m *Model) scheduleToastExpiry() tea.Cmd {
	if m.expiring || m.toasts.Len() == 0 {
		return nil
	}
	m.expiring = true
	return m.toasts.ExpireCmd()
}

func (m *Model) activeJob() *jobScreen {
	return m.jobs[m.active]
}

func (m *Model) jobByScope(scope string) *jobScreen {
	screen, ok := types.ParseScreen(scope)
	if !ok {
		return nil
	}
	return m.jobs[screen]
}

func (m *Model) jobByKind(kind types.JobKind) *jobScreen {
	for _, s := range m.jobOrder {
		if s.kind == kind {
			return s
		}
	}
	return nil
}

// requestNavigate asks the guard whether the active screen may be left.
func (m *Model) requestNavigate(to types.Screen) tea.Cmd {
	// Returning to the screen that owns the edits needs no decision.
	if to == m.owner && to != m.active {
		return m.switchTo(to)
	}
	switch m.guard.Navigate(m.active, to) {
	case guard.DecisionNavigate:
		return m.switchTo(to)
	case guard.DecisionPrompt:
		owner := m.owner
		if owner == "" {
			owner = m.active
		}
		m.confirm.Open(confirmPurposeUnsaved, "Unsaved changes",
			owner.Title()+" has changes that are not saved yet.",
			"Save", "Discard", "Review", "Cancel")
	}
	return nil
}

func (m *Model) switchTo(to types.Screen) tea.Cmd {
	return m.switchScreen(to, false)
}

// switchKeepingEdits leaves the guard dirty and owned by the screen being
// left, so its edits survive a visit to another screen.
func (m *Model) switchKeepingEdits(to types.Screen) tea.Cmd {
	return m.switchScreen(to, true)
}

func (m *Model) switchScreen(to types.Screen, keepEdits bool) tea.Cmd {
	if to == m.active || to == "" {
		return nil
	}
	m.leave(m.active, keepEdits)
	m.active = to
	return tea.Batch(m.enter(to), putUICmd(m.appNS, m.logger, store.KeyActiveTab, string(to)))
}

func (m *Model) leave(screen types.Screen, keepEdits bool) {
	if s := m.jobs[screen]; s != nil {
		s.poller.Stop()
		s.form.End()
	}
	if keepEdits && m.guard.Dirty() {
		return
	}
	m.guard.Register(nil)
	m.guard.MarkClean()
	m.owner = ""
}

func (m *Model) enter(screen types.Screen) tea.Cmd {
	switch screen {
	case types.ScreenProviders:
		return m.providers.load(m.api, m.core.RequestTimeout())
	case types.ScreenReview:
		return listExportsCmd(m.archive)
	}
	s := m.jobs[screen]
	if s == nil {
		return nil
	}
	m.owner = screen
	m.guard.Register(s.guardHandlers(s.settings.Clone()))
	if s.loaded && s.unsaved() {
		m.guard.MarkDirty()
	}
	active, idle := m.core.TelemetryIntervals()
	return s.poller.Start(active, idle)
}

func (m *Model) onSettingsLoaded(msg persist.LoadedMsg) {
	s := m.jobByScope(msg.Scope)
	if s == nil {
		return
	}
	settings := msg.Settings.Clone()
	if settings == nil {
		settings = types.DefaultSettings()
	}
	s.settings = settings
	s.saved = settings.Clone()
	s.loaded = true
	if s.screen == m.owner {
		m.guard.MarkClean()
	}
}

func (m *Model) onSettingsSaved(msg persist.SavedMsg) {
	s := m.jobByScope(msg.Scope)
	if s == nil || msg.Err != nil || msg.Settings == nil {
		return
	}
	s.saved = msg.Settings.Clone()
	if s.screen == m.owner && !s.unsaved() {
		m.guard.MarkClean()
	}
}

func (m *Model) onSettingsReset(msg persist.ResetMsg) {
	s := m.jobByScope(msg.Scope)
	if s == nil || msg.Err != nil {
		return
	}
	settings := msg.Settings.Clone()
	if settings == nil {
		settings = types.DefaultSettings()
	}
	s.settings = settings
	s.saved = settings.Clone()
	s.form.err = ""
	if s.screen == m.owner {
		m.guard.MarkClean()
	}
}

// commitSettings adopts an accepted candidate: the screen turns dirty and a
// debounced save is scheduled.
func (m *Model) commitSettings(s *jobScreen, candidate *types.Settings, field string) tea.Cmd {
	s.settings = candidate
	s.form.err = ""
	if s.screen == m.owner {
		m.guard.MarkDirty()
	}
	component := events.ComponentID("form-" + string(s.screen))
	edited := func() tea.Msg { return events.SettingsEditedMsg{Component: component, Field: field} }
	return tea.Batch(s.coord.ScheduleSave(candidate), edited)
}

// commitEdit validates raw for key; a rejected value stays in the form with
// its error and never reaches the coordinator.
func (m *Model) commitEdit(s *jobScreen, key, raw string) (tea.Cmd, bool) {
	candidate, err := applyEdit(s.settings, s.form.item, key, raw)
	if err != nil {
		s.form.err = err.Error()
		return nil, false
	}
	return m.commitSettings(s, candidate, key), true
}

// quit writes unsaved edits of every screen concurrently under one shared
// deadline before the program exits.
func (m *Model) quit() tea.Cmd {
	m.quitting = true
	ctx, cancel := context.WithTimeout(context.Background(), exitSaveTimeout)
	defer cancel()
	var group errgroup.Group
	for _, s := range m.jobOrder {
		s.poller.Stop()
		if !s.loaded {
			continue
		}
		if s.coord.HasPendingSave() || (s.screen == m.owner && m.guard.Dirty()) {
			s.coord.CancelPending()
			coord, settings := s.coord, s.settings.Clone()
			group.Go(func() error {
				coord.SaveOnExit(ctx, settings)
				return nil
			})
		}
	}
	_ = group.Wait()
	return tea.Quit
}

func (m *Model) neighbor(delta int) types.Screen {
	for i, screen := range types.Screens {
		if screen == m.active {
			return types.Screens[(i+delta+len(types.Screens))%len(types.Screens)]
		}
	}
	return types.Screens[0]
}

func (m *Model) View() tea.View {
	v := tea.NewView(m.render())
	v.AltScreen = true
	v.MouseMode = tea.MouseModeCellMotion
	v.WindowTitle = "reviewdeck"
	return v
}

func (m *Model) render() string {
	if m.quitting {
		return ""
	}
	width := m.width
	if width <= 0 {
		width = 100
	}
	height := m.height
	if height <= 0 {
		height = 30
	}
	header := m.renderTabs(width)
	toast := toastLine(m.toasts, width)
	help := helpStyle.Render(truncateToWidth(m.helpText(), width))
	bodyHeight := max(1, height-3)
	body := m.renderBody(width, bodyHeight)
	if m.confirm.IsOpen() {
		dialog, y := m.confirm.View(width, bodyHeight)
		body = overlayBlock(body, dialog, y)
	}
	body = lipgloss.NewStyle().Height(bodyHeight).MaxHeight(bodyHeight).Render(body)
	return strings.Join([]string{header, toast, body, help}, "\n")
}

func (m *Model) renderBody(width, height int) string {
	switch m.active {
	case types.ScreenProviders:
		return m.providers.View(width, height)
	case types.ScreenReview:
		return m.review.View(width, height)
	}
	if s := m.activeJob(); s != nil {
		return s.View(width, height, m.spinner.View())
	}
	return ""
}

func (m *Model) renderTabs(width int) string {
	parts := []string{headerStyle.Render("reviewdeck") + " "}
	for i, screen := range types.Screens {
		label := fmt.Sprintf("%d %s", i+1, screen.Title())
		if screen == m.owner && m.guard.Dirty() {
			label += tabDirtyMarkStyle.Render(" ●")
		}
		if screen == m.active {
			parts = append(parts, tabActiveStyle.Render(label))
			continue
		}
		if s := m.jobs[screen]; s != nil && s.sched.Running() {
			label += " " + m.spinner.View()
		}
		parts = append(parts, tabStyle.Render(label))
	}
	if m.exporting > 0 {
		parts = append(parts, " "+activityStyle.Render(m.spinner.View()+" exporting"))
	}
	return truncateToWidth(lipgloss.JoinHorizontal(lipgloss.Top, parts...), width)
}

func (m *Model) helpText() string {
	global := "tab/1-4 switch  q quit"
	switch m.active {
	case types.ScreenProviders:
		return "↑/↓ move  space toggle  d delete model  r reload  " + global
	case types.ScreenReview:
		return "↑/↓ scroll  " + global
	}
	if s := m.activeJob(); s != nil && s.form.Editing() {
		return "enter apply  esc cancel"
	}
	return "↑/↓ field  enter edit  ←/→ option  i item  g global  e override  d dest  s save  R reset  r run  c cancel  x export  y copy  " + global
}

// overlayBlock replaces body lines starting at y with block's lines.
func overlayBlock(body, block string, y int) string {
	if block == "" {
		return body
	}
	lines := strings.Split(body, "\n")
	for i, line := range strings.Split(block, "\n") {
		row := y + i
		for row >= len(lines) {
			lines = append(lines, "")
		}
		lines[row] = line
	}
	return strings.Join(lines, "\n")
}
