package teaexec

import (
	"context"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
)

type countMsg int

func TestRunDeliversMessagesUntilDone(t *testing.T) {
	var seen []int
	update := func(msg tea.Msg) tea.Cmd {
		n, ok := msg.(countMsg)
		if !ok {
			return nil
		}
		seen = append(seen, int(n))
		return func() tea.Msg { return n + 1 }
	}
	done := func() bool { return len(seen) >= 3 }

	err := Run(context.Background(), func() tea.Msg { return countMsg(1) }, update, done)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(seen) != 3 || seen[0] != 1 || seen[2] != 3 {
		t.Fatalf("unexpected sequence: %v", seen)
	}
}

func TestRunFlattensBatchAndStopsWhenIdle(t *testing.T) {
	total := 0
	update := func(msg tea.Msg) tea.Cmd {
		if n, ok := msg.(countMsg); ok {
			total += int(n)
		}
		return nil
	}
	init := tea.Batch(
		func() tea.Msg { return countMsg(2) },
		func() tea.Msg { return countMsg(3) },
		nil,
	)
	if err := Run(context.Background(), init, update, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if total != 5 {
		t.Fatalf("expected both batch messages, total=%d", total)
	}
}

func TestRunStopsOnQuit(t *testing.T) {
	calls := 0
	update := func(msg tea.Msg) tea.Cmd {
		calls++
		return tea.Quit
	}
	if err := Run(context.Background(), func() tea.Msg { return countMsg(1) }, update, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected single update before quit, got %d", calls)
	}
}

func TestRunHonoursContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	slow := func() tea.Msg {
		time.Sleep(time.Second)
		return countMsg(1)
	}
	if err := Run(ctx, slow, nil, nil); err != context.DeadlineExceeded {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestExecFirstMessage(t *testing.T) {
	msg := Exec(tea.Batch(nil, func() tea.Msg { return countMsg(7) }))
	if msg != countMsg(7) {
		t.Fatalf("unexpected msg %#v", msg)
	}
	if Exec(nil) != nil {
		t.Fatalf("expected nil for nil cmd")
	}
}
