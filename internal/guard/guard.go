// Package guard tracks unsaved edits on the active screen and intercepts
// navigation away from it until the user decides what to do with them.
package guard

import (
	"context"
	"time"

	tea "charm.land/bubbletea/v2"

	"reviewdeck/internal/logging"
	"reviewdeck/internal/types"
)

const defaultSaveTimeout = 10 * time.Second

type Choice int

const (
	ChoiceSave Choice = iota
	ChoiceDiscard
	ChoiceReview
	ChoiceCancel
)

func (c Choice) String() string {
	switch c {
	case ChoiceSave:
		return "save"
	case ChoiceDiscard:
		return "discard"
	case ChoiceReview:
		return "review"
	case ChoiceCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

type Decision int

const (
	DecisionStay Decision = iota
	DecisionNavigate
	DecisionPrompt
)

// Handlers are supplied by the screen that owns the edits. Saved, when set,
// runs on the update loop once the save started by Resolve has finished.
type Handlers struct {
	Save  func(ctx context.Context) error
	Saved func(err error)
	Reset func()
}

// NavigateMsg asks the app to switch to another screen. KeepEdits is set when
// the edits stay unsaved and owned by the screen being left.
type NavigateMsg struct {
	To        types.Screen
	KeepEdits bool
}

type saveDoneMsg struct {
	seq int
	err error
}

type Guard struct {
	dirty    bool
	handlers *Handlers
	pending  types.Screen
	review   types.Screen
	onSaved  func(error)
	seq      int
	timeout  time.Duration
	logger   logging.Logger
}

// New returns a clean guard. The Review choice navigates to review.
func New(review types.Screen, logger logging.Logger) *Guard {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Guard{
		review:  review,
		timeout: defaultSaveTimeout,
		logger:  logger.With(logging.F("component", "guard")),
	}
}

func (g *Guard) MarkDirty() {
	if g == nil {
		return
	}
	g.dirty = true
}

func (g *Guard) MarkClean() {
	if g == nil {
		return
	}
	g.dirty = false
}

func (g *Guard) Dirty() bool {
	return g != nil && g.dirty
}

// Register installs the save/reset pair of the screen taking ownership.
// Passing nil removes the current pair.
func (g *Guard) Register(h *Handlers) {
	if g == nil {
		return
	}
	g.handlers = h
}

func (g *Guard) Registered() bool {
	return g != nil && g.handlers != nil
}

// Navigate decides whether moving from one screen to another may happen now.
func (g *Guard) Navigate(from, to types.Screen) Decision {
	if g == nil || from == to {
		return DecisionStay
	}
	if !g.dirty {
		return DecisionNavigate
	}
	g.pending = to
	return DecisionPrompt
}

// Pending reports the navigation target waiting on a decision.
func (g *Guard) Pending() (types.Screen, bool) {
	if g == nil || g.pending == "" {
		return "", false
	}
	return g.pending, true
}

// Resolve applies the user's answer to the prompt raised by Navigate.
func (g *Guard) Resolve(choice Choice) tea.Cmd {
	if g == nil {
		return nil
	}
	target, ok := g.Pending()
	if !ok {
		return nil
	}
	switch choice {
	case ChoiceSave:
		g.seq++
		seq := g.seq
		var save func(context.Context) error
		g.onSaved = nil
		if g.handlers != nil {
			save = g.handlers.Save
			g.onSaved = g.handlers.Saved
		}
		timeout := g.timeout
		return func() tea.Msg {
			if save == nil {
				return saveDoneMsg{seq: seq}
			}
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			return saveDoneMsg{seq: seq, err: save(ctx)}
		}
	case ChoiceDiscard:
		if g.handlers != nil && g.handlers.Reset != nil {
			g.handlers.Reset()
		}
		g.dirty = false
		g.pending = ""
		return navigateCmd(target)
	case ChoiceReview:
		g.pending = ""
		if g.review == "" {
			return nil
		}
		review := g.review
		return func() tea.Msg { return NavigateMsg{To: review, KeepEdits: true} }
	default:
		g.pending = ""
		return nil
	}
}

// Update consumes the completion of a save started by Resolve.
func (g *Guard) Update(msg tea.Msg) (bool, tea.Cmd) {
	if g == nil {
		return false, nil
	}
	done, ok := msg.(saveDoneMsg)
	if !ok {
		return false, nil
	}
	if done.seq != g.seq {
		return true, nil
	}
	if done.err != nil {
		g.logger.Warn("save before navigation failed", logging.F("error", done.err))
	}
	if saved := g.onSaved; saved != nil {
		g.onSaved = nil
		saved(done.err)
	}
	target, pending := g.Pending()
	g.dirty = false
	g.pending = ""
	if !pending {
		return true, nil
	}
	return true, navigateCmd(target)
}

func navigateCmd(to types.Screen) tea.Cmd {
	return func() tea.Msg { return NavigateMsg{To: to} }
}
