// Package menu implements the interactive text shell. It is a numbered
// prompt loop over an injected reader and writer; every action is a single
// call into the task store.
package menu

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/taskbook/core/internal/domain/entities"
	"github.com/taskbook/core/internal/ports"
)

// Menu drives the prompt loop.
type Menu struct {
	store ports.TaskStore
	in    *bufio.Scanner
	out   io.Writer
}

// New creates a menu bound to the given streams.
func New(store ports.TaskStore, in io.Reader, out io.Writer) *Menu {
	return &Menu{
		store: store,
		in:    bufio.NewScanner(in),
		out:   out,
	}
}

const prompt = `
1) Add task
2) List tasks
3) Edit task
4) Toggle complete
5) Delete task
6) Clear completed
7) Overdue report
8) Statistics
9) Export
10) Import
0) Quit
> `

// Run loops until the user quits or input is exhausted.
func (m *Menu) Run(ctx context.Context) error {
	for {
		fmt.Fprint(m.out, prompt)

		choice, ok := m.readLine()
		if !ok {
			return nil
		}

		var err error
		switch choice {
		case "0", "q", "quit":
			return nil
		case "1":
			err = m.addTask(ctx)
		case "2":
			err = m.listTasks()
		case "3":
			err = m.editTask(ctx)
		case "4":
			err = m.toggleComplete(ctx)
		case "5":
			err = m.deleteTask(ctx)
		case "6":
			err = m.clearCompleted(ctx)
		case "7":
			err = m.overdueReport()
		case "8":
			err = m.statistics()
		case "9":
			err = m.exportTasks(ctx)
		case "10":
			err = m.importTasks(ctx)
		default:
			fmt.Fprintln(m.out, "Unknown choice")
			continue
		}

		if err != nil {
			fmt.Fprintf(m.out, "Error: %v\n", err)
		}
	}
}

func (m *Menu) addTask(ctx context.Context) error {
	req := ports.CreateTaskRequest{
		Title:       m.ask("Title: "),
		Description: m.ask("Description: "),
		Priority:    m.ask("Priority (High/Medium/Low, default Medium): "),
		DueDate:     m.ask("Due date (YYYY-MM-DD, optional): "),
	}

	task, err := m.store.Add(ctx, req)
	if err != nil {
		return err
	}

	fmt.Fprintf(m.out, "Added %s\n", task.Render())
	return nil
}

func (m *Menu) listTasks() error {
	filter := ports.TaskFilter{Status: ports.FilterAll}

	switch strings.ToLower(m.ask("Filter (all/pending/completed, default all): ")) {
	case "pending":
		filter.Status = ports.FilterPending
	case "completed":
		filter.Status = ports.FilterCompleted
	}

	filter.Search = m.ask("Search (optional): ")

	n := 0
	for t := range m.store.List(filter) {
		fmt.Fprintln(m.out, t.Render())
		n++
	}
	if n == 0 {
		fmt.Fprintln(m.out, "No tasks")
	}
	return nil
}

func (m *Menu) editTask(ctx context.Context) error {
	id, err := m.askID()
	if err != nil {
		return err
	}

	current, err := m.store.Get(id)
	if err != nil {
		return err
	}
	fmt.Fprintf(m.out, "Editing %s (empty input keeps the current value)\n", current.Render())

	req := ports.UpdateTaskRequest{}
	if v := m.ask("Title: "); v != "" {
		req.Title = &v
	}
	if v := m.ask("Description: "); v != "" {
		req.Description = &v
	}
	if v := m.ask("Priority (High/Medium/Low): "); v != "" {
		req.Priority = &v
	}
	if v := m.ask("Due date (YYYY-MM-DD, 'none' to clear): "); v != "" {
		if v == "none" {
			empty := ""
			req.DueDate = &empty
		} else {
			req.DueDate = &v
		}
	}

	task, err := m.store.Edit(ctx, id, req)
	if err != nil {
		return err
	}

	fmt.Fprintf(m.out, "Updated %s\n", task.Render())
	return nil
}

func (m *Menu) toggleComplete(ctx context.Context) error {
	id, err := m.askID()
	if err != nil {
		return err
	}

	current, err := m.store.Get(id)
	if err != nil {
		return err
	}

	task, err := m.store.SetCompleted(ctx, id, !current.Completed)
	if err != nil {
		return err
	}

	fmt.Fprintf(m.out, "%s\n", task.Render())
	return nil
}

func (m *Menu) deleteTask(ctx context.Context) error {
	id, err := m.askID()
	if err != nil {
		return err
	}

	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}

	fmt.Fprintf(m.out, "Deleted task #%d\n", id)
	return nil
}

func (m *Menu) clearCompleted(ctx context.Context) error {
	removed, err := m.store.ClearCompleted(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(m.out, "Removed %d completed task(s)\n", removed)
	return nil
}

func (m *Menu) overdueReport() error {
	n := 0
	for t := range m.store.FindOverdue(time.Now()) {
		fmt.Fprintln(m.out, t.Render())
		n++
	}
	if n == 0 {
		fmt.Fprintln(m.out, "Nothing overdue")
	}
	return nil
}

func (m *Menu) statistics() error {
	stats := m.store.Statistics()

	fmt.Fprintf(m.out, "Total: %d  Completed: %d  Pending: %d  Completion: %.1f%%\n",
		stats.Total, stats.Completed, stats.Pending, stats.CompletionRate)
	for _, p := range entities.Priorities() {
		fmt.Fprintf(m.out, "  %s: %d\n", p, stats.ByPriority[p])
	}
	return nil
}

func (m *Menu) exportTasks(ctx context.Context) error {
	path := m.ask("Export path: ")
	if path == "" {
		return fmt.Errorf("export path is required")
	}

	if err := m.store.Export(ctx, path); err != nil {
		return err
	}

	fmt.Fprintf(m.out, "Exported to %s\n", path)
	return nil
}

func (m *Menu) importTasks(ctx context.Context) error {
	path := m.ask("Import path: ")
	if path == "" {
		return fmt.Errorf("import path is required")
	}

	count, err := m.store.Import(ctx, path)
	if err != nil {
		return err
	}

	fmt.Fprintf(m.out, "Imported %d task(s)\n", count)
	return nil
}

func (m *Menu) ask(label string) string {
	fmt.Fprint(m.out, label)
	line, _ := m.readLine()
	return strings.TrimSpace(line)
}

func (m *Menu) askID() (int, error) {
	raw := m.ask("Task ID: ")
	id, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid task id %q", entities.ErrValidation, raw)
	}
	return id, nil
}

func (m *Menu) readLine() (string, bool) {
	if !m.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(m.in.Text()), true
}
