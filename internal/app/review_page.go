package app

import (
	"context"
	"strings"
	"time"

	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"

	"reviewdeck/internal/scheduler"
	"reviewdeck/internal/store"
	"reviewdeck/internal/types"
)

const maxReports = 10

type exportsListedMsg struct {
	keys []string
}

type runReport struct {
	kind      types.JobKind
	at        time.Time
	markdown  string
	summary   scheduler.Summary
	cancelled bool
}

// reviewPage shows the reports of finished runs, newest first, followed by
// the archived exports.
type reviewPage struct {
	style   string
	reports []runReport
	exports []string
	vp      viewport.Model
	width   int
	stale   bool
}

func newReviewPage(style string) *reviewPage {
	return &reviewPage{
		style: style,
		vp:    viewport.New(viewport.WithWidth(80), viewport.WithHeight(10)),
		stale: true,
	}
}

func (p *reviewPage) addReport(report runReport) {
	p.reports = append([]runReport{report}, p.reports...)
	if len(p.reports) > maxReports {
		p.reports = p.reports[:maxReports]
	}
	p.stale = true
}

func (p *reviewPage) setExports(keys []string) {
	p.exports = append([]string(nil), keys...)
	p.stale = true
}

func listExportsCmd(archive *store.ExportArchive) tea.Cmd {
	if archive == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return exportsListedMsg{keys: archive.List(ctx, "")}
	}
}

func (p *reviewPage) document() string {
	var b strings.Builder
	if len(p.reports) == 0 {
		b.WriteString("# Run reports\n\n_No runs finished in this session._\n")
	}
	for i, report := range p.reports {
		if i > 0 {
			b.WriteString("\n---\n\n")
		}
		b.WriteString(report.markdown)
		b.WriteString("\n_Finished " + report.at.Format("2006-01-02 15:04:05"))
		if report.cancelled {
			b.WriteString(", cancelled")
		}
		b.WriteString("._\n")
	}
	b.WriteString("\n## Exports\n\n")
	if len(p.exports) == 0 {
		b.WriteString("_Nothing exported yet._\n")
	}
	for _, key := range p.exports {
		b.WriteString("- `" + key + "`\n")
	}
	return b.String()
}

func (p *reviewPage) resize(width, height int) {
	if width != p.width {
		p.stale = true
	}
	p.width = width
	p.vp.SetWidth(max(1, width))
	p.vp.SetHeight(max(1, height))
}

func (p *reviewPage) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	p.vp, cmd = p.vp.Update(msg)
	return cmd
}

func (p *reviewPage) View(width, height int) string {
	if p.vp.Width() != width || p.vp.Height() != height {
		p.resize(width, height)
	}
	if p.stale {
		p.vp.SetContent(renderMarkdown(p.document(), max(20, width), p.style))
		p.vp.GotoTop()
		p.stale = false
	}
	return p.vp.View()
}
