// Package notify keeps the short-lived toast messages shown to the user.
// Messages are de-duplicated by id while active and held in a bounded queue
// that evicts the oldest entry when full.
package notify

import (
	"strings"
	"time"

	tea "charm.land/bubbletea/v2"

	"reviewdeck/internal/ring"
)

type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

type Toast struct {
	ID        string
	Level     Level
	Message   string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Notifier is the sink components report user-facing messages to. Notify
// returns false when the message was suppressed as a duplicate.
type Notifier interface {
	Notify(level Level, id, message string) bool
}

// ExpireMsg asks the center to drop expired toasts.
type ExpireMsg struct{}

type Center struct {
	active *ring.Window[Toast]
	ttl    time.Duration
	now    func() time.Time
}

func NewCenter(capacity int, ttl time.Duration) *Center {
	if ttl <= 0 {
		ttl = 4 * time.Second
	}
	return &Center{
		active: ring.New[Toast](capacity),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (c *Center) SetClock(now func() time.Time) {
	if c == nil || now == nil {
		return
	}
	c.now = now
}

func (c *Center) Notify(level Level, id, message string) bool {
	if c == nil {
		return false
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return false
	}
	id = strings.TrimSpace(id)
	if id == "" {
		id = level.String() + ":" + message
	}
	at := c.now()
	c.Prune(at)
	for _, toast := range c.active.Items() {
		if toast.ID == id {
			return false
		}
	}
	c.active.Push(Toast{
		ID:        id,
		Level:     level,
		Message:   message,
		CreatedAt: at,
		ExpiresAt: at.Add(c.ttl),
	})
	return true
}

// Active returns unexpired toasts, oldest first.
func (c *Center) Active() []Toast {
	if c == nil {
		return nil
	}
	c.Prune(c.now())
	return c.active.Items()
}

func (c *Center) Latest() (Toast, bool) {
	if c == nil {
		return Toast{}, false
	}
	c.Prune(c.now())
	return c.active.Last()
}

func (c *Center) Dismiss(id string) bool {
	if c == nil {
		return false
	}
	id = strings.TrimSpace(id)
	return c.active.RemoveFunc(func(t Toast) bool { return t.ID == id }) > 0
}

func (c *Center) Prune(at time.Time) int {
	if c == nil {
		return 0
	}
	return c.active.RemoveFunc(func(t Toast) bool { return !at.Before(t.ExpiresAt) })
}

func (c *Center) Len() int {
	if c == nil {
		return 0
	}
	return c.active.Len()
}

// ExpireCmd schedules an ExpireMsg once the current toasts' lifetime ends.
func (c *Center) ExpireCmd() tea.Cmd {
	if c == nil {
		return nil
	}
	return tea.Tick(c.ttl, func(time.Time) tea.Msg {
		return ExpireMsg{}
	})
}
