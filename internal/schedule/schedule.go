package schedule

import (
	"time"
)

// Window is the fixed cadence a reconciliation run samples on.
type Window struct {
	Interval    time.Duration
	MaxAttempts int
}

// Deadline returns when the last planned sample of a run started at start
// is due.
func (w Window) Deadline(start time.Time) time.Time {
	return start.Add(w.Length())
}

// Length is the total wait the window allows.
func (w Window) Length() time.Duration {
	if w.MaxAttempts <= 0 {
		return 0
	}
	return time.Duration(w.MaxAttempts) * w.Interval
}

// Remaining is the time left until the deadline, never negative.
func (w Window) Remaining(start, now time.Time) time.Duration {
	if d := w.Deadline(start).Sub(now); d > 0 {
		return d
	}
	return 0
}
