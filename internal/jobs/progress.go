package jobs

import (
	"sync"

	"glossary-review/internal/domain"
)

// Tracker aggregates progress across the rounds of one job. Current never
// decreases while a job runs.
type Tracker struct {
	mu       sync.Mutex
	progress domain.Progress
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{progress: domain.NewProgress(0, 0, "Idle")}
}

// Reset starts counting towards total.
func (t *Tracker) Reset(total int, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.progress = domain.NewProgress(0, total, message)
}

// Advance adds n finished items and replaces the message.
func (t *Tracker) Advance(n int, message string) domain.Progress {
	t.mu.Lock()
	defer t.mu.Unlock()

	current := t.progress.Current
	if n > 0 {
		current += n
	}
	if t.progress.Total > 0 && current > t.progress.Total {
		current = t.progress.Total
	}
	if message == "" {
		message = t.progress.Message
	}
	t.progress = domain.NewProgress(current, t.progress.Total, message)
	return t.progress
}

// SetMessage replaces the message without moving the counter.
func (t *Tracker) SetMessage(message string) {
	t.Advance(0, message)
}

// Snapshot returns the current progress.
func (t *Tracker) Snapshot() domain.Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progress
}
