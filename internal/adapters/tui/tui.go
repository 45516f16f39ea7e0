// Package tui implements the windowed shell: a scrollable task list with
// cursor navigation, filter cycling and single-key actions. Rendering only;
// every mutation is a store call.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/taskbook/core/internal/domain/entities"
	"github.com/taskbook/core/internal/ports"
)

var (
	titleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	itemStyle     = lipgloss.NewStyle().PaddingLeft(2)
	selectedStyle = lipgloss.NewStyle().PaddingLeft(2).Foreground(lipgloss.Color("12")).Bold(true)
	overdueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	doneStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).PaddingLeft(2)
)

// Model is the bubbletea model for the task list.
type Model struct {
	store    ports.TaskStore
	tasks    []entities.Task
	cursor   int
	filter   ports.StatusFilter
	now      time.Time
	status   string
	quitting bool
}

// NewModel creates a model showing every task.
func NewModel(store ports.TaskStore) Model {
	m := Model{
		store:  store,
		filter: ports.FilterAll,
		now:    time.Now(),
	}
	m.reload()
	return m
}

// reload re-reads the visible window from the store.
func (m *Model) reload() {
	m.tasks = m.store.ListSorted(ports.TaskFilter{Status: m.filter}, ports.SortByDueDate, false)
	if m.cursor >= len(m.tasks) {
		m.cursor = len(m.tasks) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit

		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}

		case "down", "j":
			if m.cursor < len(m.tasks)-1 {
				m.cursor++
			}

		case " ", "enter":
			if t := m.current(); t != nil {
				_, err := m.store.SetCompleted(context.Background(), t.ID, !t.Completed)
				m.report(err, "Toggled #%d", t.ID)
				m.reload()
			}

		case "d", "delete":
			if t := m.current(); t != nil {
				err := m.store.Delete(context.Background(), t.ID)
				m.report(err, "Deleted #%d", t.ID)
				m.reload()
			}

		case "c":
			removed, err := m.store.ClearCompleted(context.Background())
			m.report(err, "Removed %d completed", removed)
			m.reload()

		case "f":
			m.filter = nextFilter(m.filter)
			m.cursor = 0
			m.reload()

		case "r":
			m.now = time.Now()
			m.reload()
		}
	}

	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var s strings.Builder

	stats := m.store.Statistics()
	s.WriteString(titleStyle.Render(fmt.Sprintf("TaskBook  [%s]  %d/%d done (%.1f%%)",
		m.filter, stats.Completed, stats.Total, stats.CompletionRate)))
	s.WriteString("\n\n")

	if len(m.tasks) == 0 {
		s.WriteString(itemStyle.Render("no tasks"))
		s.WriteString("\n")
	}

	for i, t := range m.tasks {
		line := t.Render()
		switch {
		case t.Completed:
			line = doneStyle.Render(line)
		case t.IsOverdue(m.now):
			line = overdueStyle.Render(line)
		}

		if i == m.cursor {
			s.WriteString(selectedStyle.Render("> " + line))
		} else {
			s.WriteString(itemStyle.Render("  " + line))
		}
		s.WriteString("\n")
	}

	if m.status != "" {
		s.WriteString("\n")
		s.WriteString(statusStyle.Render(m.status))
		s.WriteString("\n")
	}

	s.WriteString("\n(j/k move, space toggle, d delete, c clear done, f filter, r refresh, q quit)\n")

	return s.String()
}

func (m *Model) current() *entities.Task {
	if m.cursor < 0 || m.cursor >= len(m.tasks) {
		return nil
	}
	return &m.tasks[m.cursor]
}

func (m *Model) report(err error, format string, args ...interface{}) {
	if err != nil {
		m.status = err.Error()
		return
	}
	m.status = fmt.Sprintf(format, args...)
}

func nextFilter(f ports.StatusFilter) ports.StatusFilter {
	switch f {
	case ports.FilterAll:
		return ports.FilterPending
	case ports.FilterPending:
		return ports.FilterCompleted
	default:
		return ports.FilterAll
	}
}

// Run starts the TUI and blocks until the user quits.
func Run(store ports.TaskStore) error {
	p := tea.NewProgram(NewModel(store))
	_, err := p.Run()
	return err
}
