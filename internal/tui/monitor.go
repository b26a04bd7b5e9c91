// Package tui renders a running review job in the terminal.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"glossary-review/internal/domain"
)

const (
	refreshInterval = 500 * time.Millisecond
	logTail         = 12
)

// JobSource is the part of the job controller the monitor polls.
type JobSource interface {
	Status(since int64) domain.JobStatus
	Stop()
}

type statusMsg domain.JobStatus

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	stateStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB454"))
	logStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Foreground(lipgloss.Color("#AAAAAA")).
			Padding(0, 1)
	hintStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).MarginTop(1)
)

// Monitor polls a job and draws its progress and log tail until it ends.
type Monitor struct {
	jobs     JobSource
	bar      progress.Model
	status   domain.JobStatus
	lines    []string
	since    int64
	width    int
	stopping bool
	done     bool
}

// NewMonitor creates a monitor for the job already started on jobs.
func NewMonitor(jobs JobSource) *Monitor {
	return &Monitor{
		jobs: jobs,
		bar:  progress.New(progress.WithDefaultGradient()),
	}
}

// Done reports whether the job ended while the monitor was running.
func (m *Monitor) Done() bool { return m.done }

// Lines returns every log line the monitor has seen.
func (m *Monitor) Lines() []string { return m.lines }

func (m *Monitor) Init() tea.Cmd {
	return m.poll()
}

func (m *Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = max(20, msg.Width-4)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if m.stopping {
				return m, tea.Quit
			}
			m.stopping = true
			m.jobs.Stop()
			return m, m.poll()
		}
		return m, nil

	case statusMsg:
		m.status = domain.JobStatus(msg)
		m.lines = append(m.lines, msg.Logs...)
		m.since = msg.LastSeq
		if !msg.Running {
			m.done = true
			return m, tea.Quit
		}
		return m, m.schedule()
	}
	return m, nil
}

func (m *Monitor) View() string {
	st := m.status
	header := titleStyle.Render("Glossary Review")
	state := stateStyle.Render(string(st.State))
	if st.Rounds > 0 {
		state += fmt.Sprintf("  round %d, %d planned", st.Round, st.Rounds)
	}

	bar := m.bar.ViewAs(float64(st.Progress.Percent) / 100)
	counts := fmt.Sprintf("%d/%d  %s", st.Progress.Current, st.Progress.Total, st.Progress.Message)

	tail := m.lines
	if len(tail) > logTail {
		tail = tail[len(tail)-logTail:]
	}
	logs := logStyle.Width(max(20, m.width-2)).Render(strings.Join(tail, "\n"))

	hint := "q: stop job"
	if m.stopping {
		hint = "stopping, waiting for in-flight requests (q again to detach)"
	}
	return strings.Join([]string{header, state, bar, counts, logs, hintStyle.Render(hint)}, "\n") + "\n"
}

func (m *Monitor) poll() tea.Cmd {
	since := m.since
	return func() tea.Msg {
		return statusMsg(m.jobs.Status(since))
	}
}

func (m *Monitor) schedule() tea.Cmd {
	since := m.since
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg {
		return statusMsg(m.jobs.Status(since))
	})
}
