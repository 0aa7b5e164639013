package notify

import (
	"testing"
	"time"
)

type fakeClock struct {
	at time.Time
}

func (f *fakeClock) now() time.Time { return f.at }

func newTestCenter(capacity int, ttl time.Duration) (*Center, *fakeClock) {
	clock := &fakeClock{at: time.Unix(1_700_000_000, 0)}
	center := NewCenter(capacity, ttl)
	center.SetClock(clock.now)
	return center, clock
}

func TestNotifyDeduplicatesActiveIDs(t *testing.T) {
	center, _ := newTestCenter(4, time.Second)
	if !center.Notify(LevelSuccess, "save", "Settings saved") {
		t.Fatalf("expected first toast accepted")
	}
	if center.Notify(LevelSuccess, "save", "Settings saved") {
		t.Fatalf("expected duplicate suppressed")
	}
	if center.Len() != 1 {
		t.Fatalf("expected one active toast, got %d", center.Len())
	}
}

func TestNotifyDefaultsIDToLevelAndMessage(t *testing.T) {
	center, _ := newTestCenter(4, time.Second)
	center.Notify(LevelError, "", "Network error")
	if center.Notify(LevelError, "", "  Network error ") {
		t.Fatalf("expected derived id to dedupe")
	}
	if !center.Notify(LevelWarning, "", "Network error") {
		t.Fatalf("expected different level to be distinct")
	}
}

func TestExpiredToastCanBeShownAgain(t *testing.T) {
	center, clock := newTestCenter(4, time.Second)
	center.Notify(LevelInfo, "poll", "Polling paused")
	clock.at = clock.at.Add(time.Second)
	if len(center.Active()) != 0 {
		t.Fatalf("expected toast expired")
	}
	if !center.Notify(LevelInfo, "poll", "Polling paused") {
		t.Fatalf("expected toast accepted after expiry")
	}
}

func TestQueueEvictsOldest(t *testing.T) {
	center, _ := newTestCenter(2, time.Minute)
	center.Notify(LevelInfo, "a", "first")
	center.Notify(LevelInfo, "b", "second")
	center.Notify(LevelInfo, "c", "third")

	active := center.Active()
	if len(active) != 2 || active[0].ID != "b" || active[1].ID != "c" {
		t.Fatalf("unexpected active toasts: %#v", active)
	}
	if !center.Notify(LevelInfo, "a", "first") {
		t.Fatalf("expected evicted id to be accepted again")
	}
	latest, ok := center.Latest()
	if !ok || latest.ID != "a" {
		t.Fatalf("unexpected latest: %#v", latest)
	}
}

func TestDismissAndEmptyMessage(t *testing.T) {
	center, _ := newTestCenter(2, time.Minute)
	if center.Notify(LevelInfo, "x", "   ") {
		t.Fatalf("expected empty message ignored")
	}
	center.Notify(LevelInfo, "x", "hello")
	if !center.Dismiss("x") || center.Len() != 0 {
		t.Fatalf("expected toast dismissed")
	}
	var nilCenter *Center
	if nilCenter.Notify(LevelInfo, "x", "hello") {
		t.Fatalf("expected nil center to drop messages")
	}
}
