package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "charm.land/bubbletea/v2"

	"reviewdeck/internal/events"
	"reviewdeck/internal/types"
)

type providersLoadedMsg struct {
	seq   int
	tree  *types.ProviderTree
	found bool
	err   error
}

type providersSavedMsg struct {
	seq  int
	tree *types.ProviderTree
	err  error
}

type providerRow struct {
	provider string
	model    string
}

func (r providerRow) isModel() bool {
	return r.model != ""
}

// providersPage lists the provider tree. Toggles and deletions are written
// straight to the backend; there is no draft state to guard.
type providersPage struct {
	tree    *types.ProviderTree
	found   bool
	loading bool
	err     error
	cursor  int
	seq     int

	pendingDelete *events.DeleteModelRequestMsg
}

func newProvidersPage() *providersPage {
	return &providersPage{}
}

func (p *providersPage) rows() []providerRow {
	if p.tree == nil {
		return nil
	}
	var rows []providerRow
	for _, provider := range p.tree.Providers {
		rows = append(rows, providerRow{provider: provider.Name})
		for _, model := range provider.Models {
			rows = append(rows, providerRow{provider: provider.Name, model: model.Name})
		}
	}
	return rows
}

func (p *providersPage) selected() (providerRow, bool) {
	rows := p.rows()
	if p.cursor < 0 || p.cursor >= len(rows) {
		return providerRow{}, false
	}
	return rows[p.cursor], true
}

func (p *providersPage) move(delta int) {
	rows := p.rows()
	if len(rows) == 0 {
		p.cursor = 0
		return
	}
	p.cursor = (p.cursor + delta + len(rows)) % len(rows)
}

func (p *providersPage) load(api API, timeout time.Duration) tea.Cmd {
	if api == nil {
		return nil
	}
	p.seq++
	p.loading = true
	seq := p.seq
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		tree, found, err := api.GetProviderTree(ctx)
		return providersLoadedMsg{seq: seq, tree: tree, found: found, err: err}
	}
}

// save applies tree optimistically and writes it.
func (p *providersPage) save(api API, tree *types.ProviderTree, timeout time.Duration) tea.Cmd {
	if api == nil || tree == nil {
		return nil
	}
	p.seq++
	seq := p.seq
	p.tree = tree
	p.found = true
	p.move(0)
	snapshot := tree.Clone()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return providersSavedMsg{seq: seq, tree: snapshot, err: api.SaveProviderTree(ctx, snapshot)}
	}
}

func (p *providersPage) applyLoaded(msg providersLoadedMsg) bool {
	if msg.seq != p.seq {
		return false
	}
	p.loading = false
	p.err = msg.err
	if msg.err != nil {
		return true
	}
	p.found = msg.found
	p.tree = msg.tree
	if p.tree == nil {
		p.tree = &types.ProviderTree{}
	}
	p.move(0)
	return true
}

// toggle flips the selected provider or model and returns the edited copy.
func (p *providersPage) toggle() (*types.ProviderTree, bool) {
	row, ok := p.selected()
	if !ok {
		return nil, false
	}
	tree := p.tree.Clone()
	if row.isModel() {
		return tree, tree.ToggleModel(row.provider, row.model)
	}
	return tree, tree.ToggleProvider(row.provider)
}

// requestDelete emits the typed delete request for the selected model card.
func (p *providersPage) requestDelete() tea.Cmd {
	row, ok := p.selected()
	if !ok || !row.isModel() {
		return nil
	}
	component := events.ComponentID("card-" + row.provider + "-" + row.model)
	return events.RequestDeleteModel(component, row.provider, row.model)
}

// acceptDelete records a delete request. A second request while one is
// awaiting confirmation is refused.
func (p *providersPage) acceptDelete(msg events.DeleteModelRequestMsg) bool {
	if p.pendingDelete != nil {
		return false
	}
	req := msg
	p.pendingDelete = &req
	return true
}

// resolveDelete consumes the pending request. It returns the edited tree
// when confirmed and the model existed.
func (p *providersPage) resolveDelete(confirmed bool) (*types.ProviderTree, bool) {
	req := p.pendingDelete
	p.pendingDelete = nil
	if req == nil || !confirmed || p.tree == nil {
		return nil, false
	}
	tree := p.tree.Clone()
	if !tree.RemoveModel(req.GroupKey, req.ItemKey) {
		return nil, false
	}
	return tree, true
}

func (p *providersPage) View(width, height int) string {
	lines := []string{headerStyle.Render("LLM providers")}
	switch {
	case p.loading && p.tree == nil:
		lines = append(lines, statusStyle.Render("Loading providers…"))
	case p.err != nil && p.tree == nil:
		lines = append(lines, fieldErrorStyle.Render("Could not load providers: "+p.err.Error()))
	case p.tree == nil || !p.found || len(p.tree.Providers) == 0:
		lines = append(lines, statusStyle.Render("No provider configuration on the backend."))
	default:
		for i, row := range p.rows() {
			lines = append(lines, truncateToWidth(p.renderRow(i, row), width))
		}
		targets := p.tree.EnabledTargets()
		lines = append(lines, "", labelStyle.Render(fmt.Sprintf("%d enabled target(s)", len(targets))))
	}
	if height > 0 && len(lines) > height {
		start := min(max(0, p.cursor+1-height/2), len(lines)-height)
		lines = lines[start : start+height]
	}
	return strings.Join(lines, "\n")
}

func (p *providersPage) renderRow(index int, row providerRow) string {
	enabled := false
	label := row.provider
	indent := ""
	for _, provider := range p.tree.Providers {
		if provider.Name != row.provider {
			continue
		}
		if !row.isModel() {
			enabled = provider.Enabled
			break
		}
		indent = "    "
		for _, model := range provider.Models {
			if model.Name == row.model {
				enabled = model.Enabled
				label = model.Name
				if model.ReasoningLevel != "" {
					label += " (" + model.ReasoningLevel + ")"
				}
			}
		}
	}
	mark := disabledStyle.Render("[ ]")
	text := disabledStyle.Render(label)
	if enabled {
		mark = enabledMarkStyle.Render("[x]")
		text = valueStyle.Render(label)
	}
	line := indent + mark + " " + text
	if index == p.cursor {
		return selectedStyle.Render("›") + " " + line
	}
	return "  " + line
}
