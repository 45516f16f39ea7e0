package services

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/taskbook/core/internal/domain/entities"
	"github.com/taskbook/core/internal/infrastructure/logger"
	"github.com/taskbook/core/internal/ports"
)

// TaskService owns the in-memory task collection and is the sole mutator of
// it and the sole client of the repository. Every mutating operation
// persists the full collection (write-through).
//
// The store model is single-writer; the mutex serializes callers so the HTTP
// shell's concurrent requests observe the same discipline as the
// single-threaded shells.
type TaskService struct {
	mu       sync.Mutex
	tasks    []entities.Task
	nextID   int
	repo     ports.TaskRepository
	validate *validator.Validate
	logger   *logger.Logger
}

// NewTaskService creates an empty store bound to the given repository.
// Call Load to populate it from the backing file.
func NewTaskService(repo ports.TaskRepository, appLogger *logger.Logger) *TaskService {
	return &TaskService{
		nextID:   1,
		repo:     repo,
		validate: validator.New(),
		logger:   appLogger,
	}
}

// Load reads the backing file into the store. A missing file initializes an
// empty store without error. A malformed or unreadable file leaves the store
// empty and returns a persistence error; callers degrade to the empty store
// rather than crash.
func (s *TaskService) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks = nil
	s.nextID = 1

	tasks, err := s.repo.Load(ctx)
	if err != nil {
		return err
	}

	seen := make(map[int]bool, len(tasks))
	maxID := 0
	for _, t := range tasks {
		if seen[t.ID] {
			return fmt.Errorf("%w: duplicate task id %d in %s", entities.ErrPersistence, t.ID, s.repo.Path())
		}
		seen[t.ID] = true
		if t.ID > maxID {
			maxID = t.ID
		}
	}

	s.tasks = tasks
	s.nextID = maxID + 1

	s.logger.Info("Task store loaded", "path", s.repo.Path(), "tasks", len(tasks))
	return nil
}

// Save persists the full collection to the backing file.
func (s *TaskService) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.Save(ctx, s.tasks)
}

// Add validates the request, constructs a task with the next id and appends
// it. The store is unchanged on validation failure.
func (s *TaskService) Add(ctx context.Context, req ports.CreateTaskRequest) (*entities.Task, error) {
	if err := s.validateCreate(req); err != nil {
		return nil, err
	}

	dueDate, err := entities.ParseDueDate(req.DueDate)
	if err != nil {
		return nil, err
	}
	priority, err := entities.ParsePriority(req.Priority)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	task := entities.Task{
		ID:          s.nextID,
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Priority:    priority,
		DueDate:     dueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.nextID++
	s.tasks = append(s.tasks, task)

	if err := s.repo.Save(ctx, s.tasks); err != nil {
		return &task, err
	}

	s.logger.Info("Task created", "task_id", task.ID, "title", task.Title)
	return &task, nil
}

// Edit applies the supplied fields to the task with the given id. Validation
// failures leave the task untouched; id and creation time are not editable.
func (s *TaskService) Edit(ctx context.Context, id int, req ports.UpdateTaskRequest) (*entities.Task, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, mapFieldError(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return nil, entities.ErrTaskNotFound
	}

	updated := s.tasks[idx]

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, entities.ErrEmptyTitle
		}
		updated.Title = title
	}
	if req.Description != nil {
		updated.Description = strings.TrimSpace(*req.Description)
	}
	if req.Priority != nil {
		priority, err := entities.ParsePriority(*req.Priority)
		if err != nil {
			return nil, err
		}
		updated.Priority = priority
	}
	if req.DueDate != nil {
		dueDate, err := entities.ParseDueDate(*req.DueDate)
		if err != nil {
			return nil, err
		}
		updated.DueDate = dueDate
	}

	updated.UpdatedAt = time.Now()
	s.tasks[idx] = updated

	if err := s.repo.Save(ctx, s.tasks); err != nil {
		return &updated, err
	}

	s.logger.Info("Task updated", "task_id", id, "title", updated.Title)
	return &updated, nil
}

// Delete removes the task with the given id.
func (s *TaskService) Delete(ctx context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return entities.ErrTaskNotFound
	}

	s.tasks = slices.Delete(s.tasks, idx, idx+1)

	if err := s.repo.Save(ctx, s.tasks); err != nil {
		return err
	}

	s.logger.Info("Task deleted", "task_id", id)
	return nil
}

// SetCompleted sets the completion state of the task with the given id.
func (s *TaskService) SetCompleted(ctx context.Context, id int, completed bool) (*entities.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return nil, entities.ErrTaskNotFound
	}

	s.tasks[idx].Completed = completed
	s.tasks[idx].UpdatedAt = time.Now()
	task := s.tasks[idx]

	if err := s.repo.Save(ctx, s.tasks); err != nil {
		return &task, err
	}

	s.logger.Info("Task status changed", "task_id", id, "completed", completed)
	return &task, nil
}

// ClearCompleted removes every completed task and returns the count removed.
// A second call is a no-op and does not rewrite the backing file.
func (s *TaskService) ClearCompleted(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	remaining := s.tasks[:0:0]
	for _, t := range s.tasks {
		if !t.Completed {
			remaining = append(remaining, t)
		}
	}

	removed := len(s.tasks) - len(remaining)
	if removed == 0 {
		return 0, nil
	}

	s.tasks = remaining

	if err := s.repo.Save(ctx, s.tasks); err != nil {
		return removed, err
	}

	s.logger.Info("Completed tasks cleared", "removed", removed)
	return removed, nil
}

// Get returns a copy of the task with the given id.
func (s *TaskService) Get(id int) (*entities.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return nil, entities.ErrTaskNotFound
	}

	task := s.tasks[idx]
	return &task, nil
}

// List returns a restartable read-only sequence of the tasks matching the
// filter, in insertion order. The sequence iterates a snapshot taken at call
// time, so later mutations do not affect it.
func (s *TaskService) List(filter ports.TaskFilter) iter.Seq[entities.Task] {
	snapshot := s.snapshot()
	return func(yield func(entities.Task) bool) {
		for _, t := range snapshot {
			if !filter.Status.Matches(&t) || !t.MatchesSearch(filter.Search) {
				continue
			}
			if !yield(t) {
				return
			}
		}
	}
}

// ListSorted returns the filtered tasks ordered by the given key. Tasks
// without a due date sort after dated ones; priority sorts High first.
func (s *TaskService) ListSorted(filter ports.TaskFilter, key ports.SortKey, descending bool) []entities.Task {
	tasks := slices.Collect(s.List(filter))

	less := func(a, b *entities.Task) bool {
		switch key {
		case ports.SortByDueDate:
			switch {
			case a.DueDate == nil && b.DueDate == nil:
				return false
			case a.DueDate == nil:
				return false
			case b.DueDate == nil:
				return true
			default:
				return a.DueDate.Before(*b.DueDate)
			}
		case ports.SortByPriority:
			return a.Priority.Weight() < b.Priority.Weight()
		case ports.SortByTitle:
			return strings.ToLower(a.Title) < strings.ToLower(b.Title)
		case ports.SortByCreated:
			return a.CreatedAt.Before(b.CreatedAt)
		case ports.SortByStatus:
			return !a.Completed && b.Completed
		default:
			return false
		}
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		if descending {
			return less(&tasks[j], &tasks[i])
		}
		return less(&tasks[i], &tasks[j])
	})

	return tasks
}

// FindOverdue returns the non-completed tasks whose due date precedes the
// reference date, insertion order preserved.
func (s *TaskService) FindOverdue(ref time.Time) iter.Seq[entities.Task] {
	snapshot := s.snapshot()
	return func(yield func(entities.Task) bool) {
		for _, t := range snapshot {
			if !t.IsOverdue(ref) {
				continue
			}
			if !yield(t) {
				return
			}
		}
	}
}

// Statistics summarizes the collection. The completion rate is a percentage
// rounded to one decimal place; an empty store reports 0.0.
func (s *TaskService) Statistics() ports.Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := ports.Statistics{
		Total:      len(s.tasks),
		ByPriority: make(map[entities.Priority]int, 3),
	}
	for _, p := range entities.Priorities() {
		stats.ByPriority[p] = 0
	}

	for _, t := range s.tasks {
		if t.Completed {
			stats.Completed++
		}
		stats.ByPriority[t.Priority]++
	}
	stats.Pending = stats.Total - stats.Completed

	if stats.Total > 0 {
		rate := 100 * float64(stats.Completed) / float64(stats.Total)
		stats.CompletionRate = math.Round(rate*10) / 10
	}

	return stats
}

// Export writes the full collection to an arbitrary path with the same
// atomic-write contract as Save. The store's own backing file is untouched.
func (s *TaskService) Export(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.SaveTo(ctx, path, s.tasks); err != nil {
		return err
	}

	s.logger.Info("Tasks exported", "path", path, "tasks", len(s.tasks))
	return nil
}

// Import reads a task file and appends its tasks to the collection. Every
// imported task gets a freshly assigned id; ids from the file are never
// trusted. Returns the number of tasks imported.
func (s *TaskService) Import(ctx context.Context, path string) (int, error) {
	imported, err := s.repo.LoadFrom(ctx, path)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range imported {
		imported[i].ID = s.nextID
		s.nextID++
		s.tasks = append(s.tasks, imported[i])
	}

	if err := s.repo.Save(ctx, s.tasks); err != nil {
		return len(imported), err
	}

	s.logger.Info("Tasks imported", "path", path, "tasks", len(imported))
	return len(imported), nil
}

// snapshot copies the current collection under the lock so query sequences
// never observe a mid-mutation state.
func (s *TaskService) snapshot() []entities.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.tasks)
}

// indexOf must be called with the mutex held.
func (s *TaskService) indexOf(id int) int {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// validateCreate maps struct-level validation failures onto the store's
// error taxonomy.
func (s *TaskService) validateCreate(req ports.CreateTaskRequest) error {
	if strings.TrimSpace(req.Title) == "" {
		return entities.ErrEmptyTitle
	}

	if err := s.validate.Struct(req); err != nil {
		return mapFieldError(err)
	}

	return nil
}

// mapFieldError translates validator failures onto the sentinel errors.
func mapFieldError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			switch fe.Field() {
			case "Title":
				return entities.ErrEmptyTitle
			case "DueDate":
				return entities.ErrInvalidDueDate
			case "Priority":
				return entities.ErrInvalidPriority
			}
		}
	}
	return fmt.Errorf("%w: %v", entities.ErrValidation, err)
}
