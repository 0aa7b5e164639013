// Package teaexec runs Bubble Tea commands without a renderer. Commands run
// concurrently, their messages are handed to a single update function one at
// a time, the same contract tea.Program gives a model.
package teaexec

import (
	"context"

	tea "charm.land/bubbletea/v2"
)

// UpdateFunc consumes one message and returns follow-up work.
type UpdateFunc func(msg tea.Msg) tea.Cmd

// Run executes init and every command it leads to until done reports true,
// a tea.QuitMsg arrives, no work is outstanding, or ctx ends.
func Run(ctx context.Context, init tea.Cmd, update UpdateFunc, done func() bool) error {
	results := make(chan tea.Msg)
	stop := make(chan struct{})
	defer close(stop)

	pending := 0
	spawn := func(cmd tea.Cmd) {
		if cmd == nil {
			return
		}
		pending++
		go func() {
			msg := cmd()
			select {
			case results <- msg:
			case <-stop:
			}
		}()
	}

	spawn(init)
	for {
		if done != nil && done() {
			return nil
		}
		if pending == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-results:
			pending--
			switch msg := msg.(type) {
			case nil:
				continue
			case tea.BatchMsg:
				for _, cmd := range msg {
					spawn(cmd)
				}
				continue
			case tea.QuitMsg:
				return nil
			default:
				if update != nil {
					spawn(update(msg))
				}
			}
		}
	}
}

// Exec runs a single command synchronously and returns its message. Batches
// are flattened and the first non-nil message wins.
func Exec(cmd tea.Cmd) tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		for _, inner := range batch {
			if out := Exec(inner); out != nil {
				return out
			}
		}
		return nil
	}
	return msg
}
