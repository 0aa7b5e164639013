package app

import (
	"context"
	"errors"
	"strconv"
	"strings"

	tea "charm.land/bubbletea/v2"

	"reviewdeck/internal/client"
	"reviewdeck/internal/logging"
	"reviewdeck/internal/notify"
	"reviewdeck/internal/scheduler"
	"reviewdeck/internal/store"
	"reviewdeck/internal/types"
)

type exportDoneMsg struct {
	kind types.JobKind
	name string
	path string
	err  error
}

// startRun checks the local preconditions and then fetches the provider
// tree fresh; the run itself starts when the tree arrives.
func (m *Model) startRun(s *jobScreen) tea.Cmd {
	if s.sched.Running() || s.fetching {
		m.toasts.Notify(notify.LevelWarning, string(s.screen)+":run", scheduler.ErrRunning.Error())
		return nil
	}
	if strings.TrimSpace(s.destination) == "" {
		m.toasts.Notify(notify.LevelError, string(s.screen)+":run", "Cannot start run: "+scheduler.ErrNoDestination.Error())
		return nil
	}
	if !s.loaded {
		m.toasts.Notify(notify.LevelWarning, string(s.screen)+":run", "Settings are still loading")
		return nil
	}
	s.fetching = true
	return s.sched.FetchProviderTree()
}

func (m *Model) onRunProviders(msg scheduler.ProvidersMsg) tea.Cmd {
	s := m.jobByKind(msg.Kind)
	if s == nil || !s.fetching {
		return nil
	}
	s.fetching = false
	id := string(s.screen) + ":run"
	if msg.Err != nil {
		m.toasts.Notify(notify.LevelError, id, "Could not fetch providers: "+msg.Err.Error())
		return nil
	}
	tree := msg.Tree
	if !msg.Found {
		tree = nil
	}
	cmd, err := s.sched.Run(scheduler.RunRequest{
		Destination: s.destination,
		Settings:    s.settings,
		Providers:   tree,
	})
	if err != nil {
		m.toasts.Notify(notify.LevelError, id, "Cannot start run: "+err.Error())
		return nil
	}
	targets := len(tree.EnabledTargets())
	m.toasts.Notify(notify.LevelInfo, id+"-start", "Run started for "+pluralTargets(targets))
	return cmd
}

func (m *Model) cancelRun(s *jobScreen) tea.Cmd {
	if s.fetching {
		s.fetching = false
		return nil
	}
	if !s.sched.Running() {
		m.toasts.Notify(notify.LevelInfo, string(s.screen)+":cancel", "No run in progress")
		return nil
	}
	return s.sched.Cancel()
}

func (m *Model) onRunFinished(msg scheduler.FinishedMsg) tea.Cmd {
	s := m.jobByKind(msg.Kind)
	if s == nil {
		return nil
	}
	summary := scheduler.Summarize(msg.Outcomes)
	m.review.addReport(runReport{
		kind:      msg.Kind,
		at:        m.now(),
		markdown:  scheduler.Report(msg.Kind, msg.Outcomes),
		summary:   summary,
		cancelled: msg.Cancelled,
	})
	id := string(s.screen) + ":run-finish"
	switch {
	case msg.Cancelled:
		m.toasts.Notify(notify.LevelInfo, id, "Run cancelled: "+summary.String())
	case summary.Succeeded():
		m.toasts.Notify(notify.LevelSuccess, id, "Run finished: "+summary.String())
	default:
		m.toasts.Notify(notify.LevelWarning, id, "Run finished with failures: "+summary.String())
	}
	if msg.SaveErr != nil {
		m.toasts.Notify(notify.LevelWarning, id+":save", "Settings were not saved before the run: "+msg.SaveErr.Error())
	}
	return nil
}

// startExport downloads the family's export and stores it in the archive.
func (m *Model) startExport(s *jobScreen) tea.Cmd {
	if m.archive == nil {
		m.toasts.Notify(notify.LevelError, "export", "No export archive configured")
		return nil
	}
	m.exporting++
	api := m.api
	archive := m.archive
	kind := s.kind
	timeout := m.core.RequestTimeout()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		download, err := api.Export(ctx, kind)
		if err != nil {
			return exportDoneMsg{kind: kind, err: err}
		}
		if download == nil {
			return exportDoneMsg{kind: kind, err: errors.New("empty export")}
		}
		name := store.SanitizeFilename(download.Filename, "export.csv")
		path, err := archive.Save(string(kind), name, download.Data)
		return exportDoneMsg{kind: kind, name: name, path: path, err: err}
	}
}

func (m *Model) onExportDone(msg exportDoneMsg) tea.Cmd {
	if m.exporting > 0 {
		m.exporting--
	}
	if msg.err != nil {
		m.logger.Warn("export failed", logging.F("kind", string(msg.kind)), logging.F("error", msg.err))
		text := "Export failed: " + msg.err.Error()
		if client.IsNotFound(msg.err) {
			text = "Nothing to export for " + string(msg.kind)
		}
		m.toasts.Notify(notify.LevelError, "export:"+string(msg.kind), text)
		return nil
	}
	m.logger.Info("export saved", logging.F("kind", string(msg.kind)), logging.F("path", msg.path))
	m.toasts.Notify(notify.LevelSuccess, "export:"+string(msg.kind), "Exported "+msg.name+" to "+msg.path)
	return listExportsCmd(m.archive)
}

// copyFromScreen copies the id of the watched job, or the newest log line
// when no job is being watched.
func (m *Model) copyFromScreen(s *jobScreen) tea.Cmd {
	text := ""
	what := ""
	if job, ok := s.sched.Current(); ok && job.ID != "" {
		text, what = job.ID, "job id"
	} else if line := s.lastLogLine(); line != "" {
		text, what = line, "log line"
	}
	if text == "" {
		m.toasts.Notify(notify.LevelInfo, "copy", "Nothing to copy yet")
		return nil
	}
	backend, err := copyText(text)
	if err != nil {
		m.toasts.Notify(notify.LevelError, "copy", "Could not copy "+what+": "+err.Error())
		return nil
	}
	m.logger.Debug("copied to clipboard", logging.F("what", what), logging.F("backend", backend))
	m.toasts.Notify(notify.LevelSuccess, "copy", "Copied "+what)
	return nil
}

func pluralTargets(n int) string {
	if n == 1 {
		return "1 target"
	}
	return strconv.Itoa(n) + " targets"
}
