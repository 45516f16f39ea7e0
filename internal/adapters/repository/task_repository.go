package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/taskbook/core/internal/domain/entities"
)

// TaskRepository reads and writes the JSON backing file. It holds no task
// state of its own; the store owns the in-memory collection.
type TaskRepository struct {
	path string
}

// NewTaskRepository creates a repository bound to the given backing file.
func NewTaskRepository(path string) *TaskRepository {
	return &TaskRepository{path: path}
}

// Path returns the backing file path.
func (r *TaskRepository) Path() string {
	return r.path
}

// taskRecord is the wire form of a task in the backing file. Timestamps are
// stored without a zone offset and the due date as a plain calendar date.
type taskRecord struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Priority    string  `json:"priority"`
	DueDate     *string `json:"due_date"`
	Completed   bool    `json:"completed"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at,omitempty"`
}

// Load reads the backing file. A missing file is not an error: the store
// starts empty in that case.
func (r *TaskRepository) Load(ctx context.Context) ([]entities.Task, error) {
	if _, err := os.Stat(r.path); os.IsNotExist(err) {
		return nil, nil
	}
	return r.LoadFrom(ctx, r.path)
}

// LoadFrom reads a task file from an arbitrary path. Unlike Load, a missing
// file is a persistence failure here.
func (r *TaskRepository) LoadFrom(ctx context.Context, path string) ([]entities.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrPersistence, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", entities.ErrPersistence, path, err)
	}

	var records []taskRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", entities.ErrPersistence, path, err)
	}

	tasks := make([]entities.Task, 0, len(records))
	for _, rec := range records {
		task, err := rec.toTask()
		if err != nil {
			return nil, fmt.Errorf("%w: task %d in %s: %v", entities.ErrPersistence, rec.ID, path, err)
		}
		tasks = append(tasks, task)
	}

	return tasks, nil
}

// Save serializes the full collection to the backing file.
func (r *TaskRepository) Save(ctx context.Context, tasks []entities.Task) error {
	return r.SaveTo(ctx, r.path, tasks)
}

// SaveTo writes the collection to path atomically: the JSON is written to a
// temporary file in the same directory and renamed over the target, so a
// failure mid-write leaves any prior file intact.
func (r *TaskRepository) SaveTo(ctx context.Context, path string, tasks []entities.Task) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", entities.ErrPersistence, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: creating %s: %v", entities.ErrPersistence, dir, err)
	}

	records := make([]taskRecord, 0, len(tasks))
	for _, t := range tasks {
		records = append(records, toRecord(t))
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encoding tasks: %v", entities.ErrPersistence, err)
	}

	tempFile, err := os.CreateTemp(dir, "tasks-*.json")
	if err != nil {
		return fmt.Errorf("%w: creating temp file: %v", entities.ErrPersistence, err)
	}
	defer func() {
		if tempFile != nil {
			tempFile.Close()
			os.Remove(tempFile.Name())
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		return fmt.Errorf("%w: writing temp file: %v", entities.ErrPersistence, err)
	}
	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("%w: syncing temp file: %v", entities.ErrPersistence, err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("%w: closing temp file: %v", entities.ErrPersistence, err)
	}

	filename := tempFile.Name()
	tempFile = nil // prevent the deferred cleanup from removing it

	if err := os.Rename(filename, path); err != nil {
		os.Remove(filename)
		return fmt.Errorf("%w: replacing %s: %v", entities.ErrPersistence, path, err)
	}

	return nil
}

func toRecord(t entities.Task) taskRecord {
	rec := taskRecord{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Priority:    string(t.Priority),
		Completed:   t.Completed,
		CreatedAt:   t.CreatedAt.Format(entities.TimestampLayout),
		UpdatedAt:   t.UpdatedAt.Format(entities.TimestampLayout),
	}
	if t.DueDate != nil {
		due := t.DueDate.Format(entities.DateLayout)
		rec.DueDate = &due
	}
	return rec
}

func (rec taskRecord) toTask() (entities.Task, error) {
	priority, err := entities.ParsePriority(rec.Priority)
	if err != nil {
		return entities.Task{}, fmt.Errorf("invalid priority %q", rec.Priority)
	}

	var dueDate *time.Time
	if rec.DueDate != nil && *rec.DueDate != "" {
		dueDate, err = entities.ParseDueDate(*rec.DueDate)
		if err != nil {
			return entities.Task{}, fmt.Errorf("invalid due date %q", *rec.DueDate)
		}
	}

	createdAt := time.Now()
	if rec.CreatedAt != "" {
		createdAt, err = parseTimestamp(rec.CreatedAt)
		if err != nil {
			return entities.Task{}, fmt.Errorf("invalid created_at %q", rec.CreatedAt)
		}
	}

	updatedAt := createdAt
	if rec.UpdatedAt != "" {
		updatedAt, err = parseTimestamp(rec.UpdatedAt)
		if err != nil {
			return entities.Task{}, fmt.Errorf("invalid updated_at %q", rec.UpdatedAt)
		}
	}

	title := rec.Title
	if title == "" {
		title = "Untitled"
	}

	return entities.Task{
		ID:          rec.ID,
		Title:       title,
		Description: rec.Description,
		Priority:    priority,
		DueDate:     dueDate,
		Completed:   rec.Completed,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}, nil
}

// parseTimestamp accepts the store's own layout and falls back to RFC 3339
// for files produced by other tooling.
func parseTimestamp(s string) (time.Time, error) {
	if ts, err := time.ParseInLocation(entities.TimestampLayout, s, time.Local); err == nil {
		return ts, nil
	}
	return time.Parse(time.RFC3339, s)
}
