package schedule

import (
	"testing"
	"time"
)

func TestWindowDeadlineAndRemaining(t *testing.T) {
	w := Window{Interval: 2 * time.Second, MaxAttempts: 15}
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	if got := w.Deadline(start); !got.Equal(start.Add(30 * time.Second)) {
		t.Fatalf("deadline: %s", got)
	}
	if r := w.Remaining(start, start.Add(25*time.Second)); r != 5*time.Second {
		t.Fatalf("remaining: %s", r)
	}
	if r := w.Remaining(start, start.Add(time.Minute)); r != 0 {
		t.Fatalf("remaining after deadline: %s", r)
	}
}

func TestEmptyWindow(t *testing.T) {
	w := Window{Interval: time.Second}
	now := time.Now()
	if w.Length() != 0 || w.Remaining(now, now) != 0 {
		t.Fatalf("expected empty window")
	}
}
