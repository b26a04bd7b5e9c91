package jobs

import (
	"errors"
	"testing"

	"glossary-review/internal/domain"
)

// TestManagerLifecycle verifies idle -> running -> idle.
func TestManagerLifecycle(t *testing.T) {
	m := NewManager()
	if m.IsRunning() {
		t.Fatal("new manager should be idle")
	}

	if err := m.Start("job-1", 3); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !m.IsRunning() {
		t.Fatal("expected running after start")
	}
	m.SetRound(2)

	current := m.Current()
	if current.Round != 2 || current.Rounds != 3 {
		t.Fatalf("round = %d/%d, want 2/3", current.Round, current.Rounds)
	}

	if err := m.Finish(); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if m.IsRunning() {
		t.Fatal("expected idle after finish")
	}
	if m.Current().ID != "job-1" {
		t.Fatalf("id = %q, want job-1 kept after finish", m.Current().ID)
	}
}

// TestManagerRejectsSecondStart checks the single active job rule.
func TestManagerRejectsSecondStart(t *testing.T) {
	m := NewManager()
	if err := m.Start("job-1", 1); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Start("job-2", 1); !errors.Is(err, domain.ErrAlreadyRunning) {
		t.Fatalf("second start error = %v, want %v", err, domain.ErrAlreadyRunning)
	}
	m.RequestStop()
	if err := m.Start("job-3", 1); !errors.Is(err, domain.ErrAlreadyRunning) {
		t.Fatalf("start while stopping error = %v, want %v", err, domain.ErrAlreadyRunning)
	}
}

// TestManagerRejectsInvalidTransition checks state machine constraints.
func TestManagerRejectsInvalidTransition(t *testing.T) {
	m := NewManager()
	if err := m.Finish(); err == nil {
		t.Fatal("expected error finishing an idle manager")
	}
	if err := m.Start("job-1", 1); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !m.RequestStop() {
		t.Fatal("running -> stopping should succeed")
	}
	if err := m.Start("job-2", 1); !errors.Is(err, domain.ErrAlreadyRunning) {
		t.Fatalf("stopping -> running error = %v, want %v", err, domain.ErrAlreadyRunning)
	}
	if m.Current().ID != "job-1" {
		t.Fatalf("id = %q, want job-1 untouched by rejected start", m.Current().ID)
	}
	if err := m.Finish(); err != nil {
		t.Fatalf("stopping -> idle: %v", err)
	}
	if m.RequestStop() {
		t.Fatal("idle -> stopping should be rejected")
	}
	if err := m.Finish(); err == nil {
		t.Fatal("expected error for idle -> idle")
	}
}

// TestIsValidTransition covers every edge of the state machine.
func TestIsValidTransition(t *testing.T) {
	states := []domain.JobState{domain.JobStateIdle, domain.JobStateRunning, domain.JobStateStopping}
	allowed := map[[2]domain.JobState]bool{
		{domain.JobStateIdle, domain.JobStateRunning}:     true,
		{domain.JobStateRunning, domain.JobStateStopping}: true,
		{domain.JobStateRunning, domain.JobStateIdle}:     true,
		{domain.JobStateStopping, domain.JobStateIdle}:    true,
	}
	for _, from := range states {
		for _, to := range states {
			want := allowed[[2]domain.JobState{from, to}]
			if got := isValidTransition(from, to); got != want {
				t.Fatalf("isValidTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

// TestManagerRequestStop verifies stop behavior and repeated stop handling.
func TestManagerRequestStop(t *testing.T) {
	m := NewManager()
	if m.RequestStop() {
		t.Fatal("stop while idle should be a no-op")
	}
	if err := m.Start("job-1", 1); err != nil {
		t.Fatalf("start: %v", err)
	}

	if !m.RequestStop() {
		t.Fatal("first stop should change state")
	}
	if m.Current().State != domain.JobStateStopping {
		t.Fatalf("state = %s, want stopping", m.Current().State)
	}
	if m.RequestStop() {
		t.Fatal("second stop should be a no-op")
	}
	if !m.IsRunning() {
		t.Fatal("stopping job still counts as running")
	}
}
