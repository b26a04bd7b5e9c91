package jobs

import (
	"fmt"
	"sync"
	"time"

	"glossary-review/internal/domain"
)

// Manager tracks the single allowed job and its state transitions.
type Manager struct {
	mu      sync.RWMutex
	current domain.Job
}

// NewManager creates a manager in idle state.
func NewManager() *Manager {
	return &Manager{
		current: domain.Job{State: domain.JobStateIdle},
	}
}

// Start claims the manager for a new job of the given number of rounds.
func (m *Manager) Start(jobID string, rounds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.transition(domain.JobStateRunning); err != nil {
		return domain.ErrAlreadyRunning
	}
	m.current = domain.Job{
		ID:        jobID,
		State:     domain.JobStateRunning,
		Rounds:    rounds,
		StartedAt: time.Now().UTC(),
	}
	return nil
}

// SetRound records the round currently executing.
func (m *Manager) SetRound(round int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.Round = round
}

// Current returns a snapshot of the current job.
func (m *Manager) Current() domain.Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// IsRunning reports whether a job is active, including one that is stopping.
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.State != domain.JobStateIdle
}

// RequestStop moves a running job to stopping. It reports whether the call
// changed the state; a second call or a call while idle is a no-op.
func (m *Manager) RequestStop() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transition(domain.JobStateStopping) == nil
}

// Finish returns a running or stopping job to idle. The finished job's
// identity and last round stay visible until the next Start.
func (m *Manager) Finish() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transition(domain.JobStateIdle)
}

// transition applies one edge of the job state machine. m.mu must be held.
func (m *Manager) transition(to domain.JobState) error {
	if !isValidTransition(m.current.State, to) {
		return fmt.Errorf("invalid transition: %s -> %s", m.current.State, to)
	}
	m.current.State = to
	return nil
}

// isValidTransition enforces the allowed job state machine edges.
func isValidTransition(from, to domain.JobState) bool {
	switch from {
	case domain.JobStateIdle:
		return to == domain.JobStateRunning
	case domain.JobStateRunning:
		return to == domain.JobStateStopping || to == domain.JobStateIdle
	case domain.JobStateStopping:
		return to == domain.JobStateIdle
	default:
		return false
	}
}
