package entities

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Date and timestamp layouts used throughout the store and its backing file.
const (
	DateLayout      = "2006-01-02"
	TimestampLayout = "2006-01-02T15:04:05"
)

// Error taxonomy. Validation failures all wrap ErrValidation so shells can
// classify with a single errors.Is check.
var (
	ErrValidation   = errors.New("validation failed")
	ErrTaskNotFound = errors.New("task not found")
	ErrPersistence  = errors.New("persistence failure")

	ErrEmptyTitle      = fmt.Errorf("%w: title is required", ErrValidation)
	ErrInvalidDueDate  = fmt.Errorf("%w: due date must be in YYYY-MM-DD format", ErrValidation)
	ErrInvalidPriority = fmt.Errorf("%w: priority must be High, Medium or Low", ErrValidation)
)

// Priority levels
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	default:
		return false
	}
}

// Weight returns a numeric rank for sorting; High sorts first.
func (p Priority) Weight() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	default:
		return 1
	}
}

// Priorities lists all valid priority values in display order.
func Priorities() []Priority {
	return []Priority{PriorityHigh, PriorityMedium, PriorityLow}
}

// ParsePriority converts user input to a Priority, case-insensitively.
// Empty input yields the default priority.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return PriorityHigh, nil
	case "medium", "":
		return PriorityMedium, nil
	case "low":
		return PriorityLow, nil
	default:
		return "", ErrInvalidPriority
	}
}

// Task represents a single to-do item
type Task struct {
	ID          int        `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    Priority   `json:"priority"`
	DueDate     *time.Time `json:"due_date"`
	Completed   bool       `json:"completed"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ParseDueDate parses a YYYY-MM-DD string. An empty string means no deadline
// and yields nil without error.
func ParseDueDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	d, err := time.ParseInLocation(DateLayout, s, time.Local)
	if err != nil {
		return nil, ErrInvalidDueDate
	}
	return &d, nil
}

// IsOverdue reports whether the task's due date has passed relative to ref.
// The comparison is at calendar-date granularity; completed tasks and tasks
// without a deadline are never overdue.
func (t *Task) IsOverdue(ref time.Time) bool {
	if t.Completed || t.DueDate == nil {
		return false
	}
	return t.DueDate.Format(DateLayout) < ref.Format(DateLayout)
}

// DueDateString returns the due date as YYYY-MM-DD, or "" when unset.
func (t *Task) DueDateString() string {
	if t.DueDate == nil {
		return ""
	}
	return t.DueDate.Format(DateLayout)
}

// StatusLabel returns the display status of the task.
func (t *Task) StatusLabel() string {
	if t.Completed {
		return "Completed"
	}
	return "Active"
}

// Render returns a one-line human-readable summary of the task.
func (t *Task) Render() string {
	marker := "[ ]"
	if t.Completed {
		marker = "[x]"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s #%d (%s) %s", marker, t.ID, t.Priority, t.Title)
	if t.DueDate != nil {
		fmt.Fprintf(&b, " due %s", t.DueDateString())
	}
	return b.String()
}

// MatchesSearch reports whether the query occurs in the task's title or
// description, case-insensitively. An empty query matches everything.
func (t *Task) MatchesSearch(query string) bool {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(t.Title), query) ||
		strings.Contains(strings.ToLower(t.Description), query)
}
