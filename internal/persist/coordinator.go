// Package persist decides when edited settings are written and where. Saves
// go to an ordered list of targets: the first is authoritative, the rest
// mirror it.
package persist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "charm.land/bubbletea/v2"
	"golang.org/x/sync/errgroup"

	"reviewdeck/internal/logging"
	"reviewdeck/internal/notify"
	"reviewdeck/internal/types"
)

const (
	defaultDelay    = 800 * time.Millisecond
	defaultCooldown = 3 * time.Second
	defaultTimeout  = 10 * time.Second
)

var ErrNoTargets = errors.New("no persistence targets configured")

type Options struct {
	Scope    string
	Targets  []Target
	Delay    time.Duration
	Cooldown time.Duration
	Timeout  time.Duration
	Notifier notify.Notifier
	Logger   logging.Logger
	Now      func() time.Time
}

type saveFlushMsg struct {
	scope string
	seq   int
}

// SavedMsg reports the outcome of a save. Degraded is set when an automatic
// save could not reach the primary target and fell back to a mirror.
type SavedMsg struct {
	Scope    string
	Notify   bool
	Auto     bool
	Degraded bool
	Settings *types.Settings
	Err      error
}

// LoadedMsg carries the settings adopted at startup. Err holds the first
// target failure even when a later target or the defaults were used.
type LoadedMsg struct {
	Scope    string
	Settings *types.Settings
	Source   string
	Err      error
}

type ResetMsg struct {
	Scope    string
	Settings *types.Settings
	Err      error
}

type Coordinator struct {
	scope    string
	targets  []Target
	delay    time.Duration
	cooldown time.Duration
	timeout  time.Duration
	notifier notify.Notifier
	logger   logging.Logger
	now      func() time.Time

	primed         bool
	saveSeq        int
	pending        *types.Settings
	lastNotifiedAt time.Time
}

func New(opts Options) (*Coordinator, error) {
	targets := make([]Target, 0, len(opts.Targets))
	for _, target := range opts.Targets {
		if target != nil {
			targets = append(targets, target)
		}
	}
	if len(targets) == 0 {
		return nil, ErrNoTargets
	}
	c := &Coordinator{
		scope:    strings.TrimSpace(opts.Scope),
		targets:  targets,
		delay:    opts.Delay,
		cooldown: opts.Cooldown,
		timeout:  opts.Timeout,
		notifier: opts.Notifier,
		logger:   opts.Logger,
		now:      opts.Now,
	}
	if c.delay <= 0 {
		c.delay = defaultDelay
	}
	if c.cooldown <= 0 {
		c.cooldown = defaultCooldown
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if c.logger == nil {
		c.logger = logging.Nop()
	}
	c.logger = c.logger.With(logging.F("component", "persist"), logging.F("scope", c.scope))
	if c.now == nil {
		c.now = time.Now
	}
	return c, nil
}

func (c *Coordinator) Scope() string {
	if c == nil {
		return ""
	}
	return c.scope
}

// Primed reports whether the initial load finished. Automatic saves are
// refused until then.
func (c *Coordinator) Primed() bool {
	return c != nil && c.primed
}

// ScheduleSave debounces an automatic save of settings. Each call replaces
// the previous pending snapshot; only the last one inside the delay window
// is written.
func (c *Coordinator) ScheduleSave(settings *types.Settings) tea.Cmd {
	if c == nil || settings == nil {
		return nil
	}
	if !c.primed {
		c.logger.Debug("auto save skipped before load")
		return nil
	}
	c.saveSeq++
	c.pending = settings.Clone()
	seq := c.saveSeq
	scope := c.scope
	return tea.Tick(c.delay, func(time.Time) tea.Msg {
		return saveFlushMsg{scope: scope, seq: seq}
	})
}

// HasPendingSave reports whether a debounced save is waiting to flush.
func (c *Coordinator) HasPendingSave() bool {
	return c != nil && c.pending != nil
}

// Update routes the coordinator's own messages. The bool reports whether msg
// belonged to this coordinator.
func (c *Coordinator) Update(msg tea.Msg) (bool, tea.Cmd) {
	if c == nil {
		return false, nil
	}
	switch msg := msg.(type) {
	case saveFlushMsg:
		if msg.scope != c.scope {
			return false, nil
		}
		return true, c.HandleFlush(msg.seq)
	case SavedMsg:
		if msg.Scope != c.scope {
			return false, nil
		}
		return true, c.HandleSaved(msg)
	case LoadedMsg:
		if msg.Scope != c.scope {
			return false, nil
		}
		c.HandleLoaded(msg)
		return true, nil
	case ResetMsg:
		if msg.Scope != c.scope {
			return false, nil
		}
		c.HandleReset(msg)
		return true, nil
	}
	return false, nil
}

func (c *Coordinator) HandleFlush(seq int) tea.Cmd {
	if seq != c.saveSeq || c.pending == nil {
		c.logger.Debug("stale save flush dropped", logging.F("seq", seq), logging.F("latest", c.saveSeq))
		return nil
	}
	settings := c.pending
	c.pending = nil
	return c.saveCmd(settings, true, false)
}

// SaveNow writes settings immediately through the authoritative target and
// then the mirrors. It supersedes any pending debounced save.
func (c *Coordinator) SaveNow(settings *types.Settings, notify bool) tea.Cmd {
	if c == nil || settings == nil {
		return nil
	}
	c.CancelPending()
	return c.saveCmd(settings.Clone(), false, notify)
}

// Save is the blocking form of SaveNow used outside the update loop, for
// example by the pre-run save of the job scheduler.
func (c *Coordinator) Save(ctx context.Context, settings *types.Settings) error {
	if c == nil || settings == nil {
		return errors.New("settings are required")
	}
	msg := c.write(ctx, settings, false)
	return msg.Err
}

func (c *Coordinator) saveCmd(settings *types.Settings, auto, notify bool) tea.Cmd {
	timeout := c.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		msg := c.write(ctx, settings, auto)
		msg.Notify = notify
		return msg
	}
}

// write runs on a command goroutine. It only reads immutable coordinator
// fields.
func (c *Coordinator) write(ctx context.Context, settings *types.Settings, auto bool) SavedMsg {
	msg := SavedMsg{Scope: c.scope, Auto: auto, Settings: settings}
	primary := c.targets[0]
	primaryErr := primary.Save(ctx, settings)
	if primaryErr != nil && !auto {
		c.logger.Warn("save failed", logging.F("target", primary.Name()), logging.F("error", primaryErr))
		msg.Err = fmt.Errorf("save to %s: %w", primary.Name(), primaryErr)
		return msg
	}
	if primaryErr != nil {
		c.logger.Warn("auto save degraded", logging.F("target", primary.Name()), logging.F("error", primaryErr))
	}
	mirrored := false
	var mirrorErr error
	for _, target := range c.targets[1:] {
		if err := target.Save(ctx, settings); err != nil {
			c.logger.Warn("mirror save failed", logging.F("target", target.Name()), logging.F("error", err))
			if mirrorErr == nil {
				mirrorErr = err
			}
			continue
		}
		mirrored = true
	}
	if primaryErr != nil {
		if !mirrored {
			msg.Err = errors.Join(primaryErr, mirrorErr)
			return msg
		}
		msg.Degraded = true
	}
	return msg
}

func (c *Coordinator) HandleSaved(msg SavedMsg) tea.Cmd {
	if msg.Err != nil {
		c.report(notify.LevelError, "save-error", "Could not save settings: "+msg.Err.Error())
		return nil
	}
	if !msg.Notify {
		return nil
	}
	at := c.now()
	if !c.lastNotifiedAt.IsZero() && at.Sub(c.lastNotifiedAt) < c.cooldown {
		return nil
	}
	c.lastNotifiedAt = at
	c.report(notify.LevelSuccess, "saved", "Settings saved")
	return nil
}

// Load reads settings from the targets in priority order. The first
// non-empty record wins; if none exists the defaults are used.
func (c *Coordinator) Load() tea.Cmd {
	if c == nil {
		return nil
	}
	timeout := c.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return c.load(ctx)
	}
}

func (c *Coordinator) load(ctx context.Context) LoadedMsg {
	msg := LoadedMsg{Scope: c.scope}
	for _, target := range c.targets {
		settings, found, err := target.Load(ctx)
		if err != nil {
			c.logger.Warn("load failed", logging.F("target", target.Name()), logging.F("error", err))
			if msg.Err == nil {
				msg.Err = err
			}
			continue
		}
		if found && !settings.IsZero() {
			msg.Settings = settings
			msg.Source = target.Name()
			return msg
		}
	}
	msg.Settings = types.DefaultSettings()
	msg.Source = SourceDefaults
	return msg
}

// HandleLoaded primes the coordinator whichever source won. A failed target
// is only logged; the fallback is silent.
func (c *Coordinator) HandleLoaded(msg LoadedMsg) {
	c.primed = true
	if msg.Err != nil {
		c.logger.Warn("settings loaded from fallback", logging.F("source", msg.Source), logging.F("error", msg.Err))
		return
	}
	c.logger.Info("settings loaded", logging.F("source", msg.Source))
}

// Reset clears every target concurrently and restores defaults. It does not
// require priming.
func (c *Coordinator) Reset() tea.Cmd {
	if c == nil {
		return nil
	}
	c.CancelPending()
	timeout := c.timeout
	targets := append([]Target(nil), c.targets...)
	scope := c.scope
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		group, groupCtx := errgroup.WithContext(ctx)
		for _, target := range targets {
			group.Go(func() error {
				if err := target.Clear(groupCtx); err != nil {
					return fmt.Errorf("clear %s: %w", target.Name(), err)
				}
				return nil
			})
		}
		return ResetMsg{Scope: scope, Settings: types.DefaultSettings(), Err: group.Wait()}
	}
}

func (c *Coordinator) HandleReset(msg ResetMsg) {
	if msg.Err != nil {
		c.logger.Warn("reset failed", logging.F("error", msg.Err))
		c.report(notify.LevelError, "reset-error", "Could not reset settings: "+msg.Err.Error())
		return
	}
	c.report(notify.LevelInfo, "reset", "Settings reset to defaults")
}

// SaveOnExit makes a final attempt to write settings on quit, bounded by
// ctx. Errors are logged and otherwise ignored. Nothing is written before
// priming.
func (c *Coordinator) SaveOnExit(ctx context.Context, settings *types.Settings) {
	if c == nil || settings == nil || !c.primed {
		return
	}
	msg := c.write(ctx, settings.Clone(), true)
	if msg.Err != nil {
		c.logger.Warn("exit save failed", logging.F("error", msg.Err))
	}
}

// CancelPending drops a debounced save that has not flushed yet.
func (c *Coordinator) CancelPending() {
	if c == nil {
		return
	}
	c.saveSeq++
	c.pending = nil
}

func (c *Coordinator) report(level notify.Level, id, message string) {
	if c.notifier == nil {
		return
	}
	c.notifier.Notify(level, c.scope+":"+id, message)
}
