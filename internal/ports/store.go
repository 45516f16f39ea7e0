package ports

import (
	"context"
	"iter"
	"time"

	"github.com/taskbook/core/internal/domain/entities"
)

// TaskStore defines the operations of the task collection. It is the only
// component allowed to mutate the collection or touch the backing file;
// presentation shells consume this interface and never call back into each
// other.
type TaskStore interface {
	Add(ctx context.Context, req CreateTaskRequest) (*entities.Task, error)
	Edit(ctx context.Context, id int, req UpdateTaskRequest) (*entities.Task, error)
	Delete(ctx context.Context, id int) error
	SetCompleted(ctx context.Context, id int, completed bool) (*entities.Task, error)
	ClearCompleted(ctx context.Context) (int, error)

	Get(id int) (*entities.Task, error)
	List(filter TaskFilter) iter.Seq[entities.Task]
	ListSorted(filter TaskFilter, key SortKey, descending bool) []entities.Task
	FindOverdue(ref time.Time) iter.Seq[entities.Task]
	Statistics() Statistics

	Load(ctx context.Context) error
	Save(ctx context.Context) error
	Export(ctx context.Context, path string) error
	Import(ctx context.Context, path string) (int, error)
}

// TaskRepository defines the persistence boundary: reading and atomically
// writing the JSON backing file.
type TaskRepository interface {
	Load(ctx context.Context) ([]entities.Task, error)
	Save(ctx context.Context, tasks []entities.Task) error
	LoadFrom(ctx context.Context, path string) ([]entities.Task, error)
	SaveTo(ctx context.Context, path string, tasks []entities.Task) error
	Path() string
}

// CreateTaskRequest carries the caller-supplied fields of a new task.
// Priority defaults to Medium and DueDate may be empty (no deadline).
type CreateTaskRequest struct {
	Title       string `json:"title" validate:"required,max=500"`
	Description string `json:"description" validate:"omitempty,max=2000"`
	Priority    string `json:"priority" validate:"omitempty,oneof=High Medium Low"`
	DueDate     string `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
}

// UpdateTaskRequest is a partial update: nil fields are left untouched.
// An empty DueDate string clears the deadline. ID and creation time are
// never editable.
type UpdateTaskRequest struct {
	Title       *string `json:"title" validate:"omitempty,max=500"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	Priority    *string `json:"priority" validate:"omitempty,oneof=High Medium Low"`
	DueDate     *string `json:"due_date" validate:"omitempty"`
}

// StatusFilter narrows a listing by completion state.
type StatusFilter string

const (
	FilterAll       StatusFilter = "all"
	FilterPending   StatusFilter = "pending"
	FilterCompleted StatusFilter = "completed"
)

// Matches reports whether a task passes the status filter.
func (f StatusFilter) Matches(t *entities.Task) bool {
	switch f {
	case FilterPending:
		return !t.Completed
	case FilterCompleted:
		return t.Completed
	default:
		return true
	}
}

// TaskFilter selects tasks for listing. The zero value selects everything.
type TaskFilter struct {
	Status StatusFilter
	Search string
}

// SortKey identifies a listing order for ListSorted.
type SortKey string

const (
	SortByDueDate  SortKey = "due"
	SortByPriority SortKey = "priority"
	SortByTitle    SortKey = "title"
	SortByCreated  SortKey = "created"
	SortByStatus   SortKey = "status"
)

// Statistics summarizes the collection.
type Statistics struct {
	Total          int                       `json:"total"`
	Completed      int                       `json:"completed"`
	Pending        int                       `json:"pending"`
	CompletionRate float64                   `json:"completion_rate"`
	ByPriority     map[entities.Priority]int `json:"by_priority"`
}
