package services_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskbook/core/internal/adapters/repository"
	"github.com/taskbook/core/internal/application/services"
	"github.com/taskbook/core/internal/domain/entities"
	"github.com/taskbook/core/internal/infrastructure/logger"
	"github.com/taskbook/core/internal/ports"
)

func newStore(t *testing.T) (*services.TaskService, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tasks.json")
	store := services.NewTaskService(repository.NewTaskRepository(path), logger.NewNop())
	require.NoError(t, store.Load(context.Background()))
	return store, path
}

func mustAdd(t *testing.T, store *services.TaskService, req ports.CreateTaskRequest) *entities.Task {
	t.Helper()
	task, err := store.Add(context.Background(), req)
	require.NoError(t, err)
	return task
}

func collect(seq func(func(entities.Task) bool)) []entities.Task {
	var tasks []entities.Task
	seq(func(t entities.Task) bool {
		tasks = append(tasks, t)
		return true
	})
	return tasks
}

func TestAdd(t *testing.T) {
	store, _ := newStore(t)

	task := mustAdd(t, store, ports.CreateTaskRequest{
		Title:    "Pay rent",
		Priority: "High",
		DueDate:  "2024-01-15",
	})

	assert.Equal(t, 1, task.ID)
	assert.Equal(t, "Pay rent", task.Title)
	assert.Equal(t, entities.PriorityHigh, task.Priority)
	assert.Equal(t, "2024-01-15", task.DueDateString())
	assert.False(t, task.Completed)
	assert.False(t, task.CreatedAt.IsZero())

	listed := collect(store.List(ports.TaskFilter{}))
	require.Len(t, listed, 1)
	assert.Equal(t, task.ID, listed[0].ID)
}

func TestAdd_AssignsSequentialIDs(t *testing.T) {
	store, _ := newStore(t)

	first := mustAdd(t, store, ports.CreateTaskRequest{Title: "one"})
	second := mustAdd(t, store, ports.CreateTaskRequest{Title: "two"})

	assert.Equal(t, 1, first.ID)
	assert.Equal(t, 2, second.ID)
}

func TestAdd_EmptyTitle(t *testing.T) {
	store, _ := newStore(t)

	for _, title := range []string{"", "   ", "\t"} {
		_, err := store.Add(context.Background(), ports.CreateTaskRequest{Title: title})
		require.Error(t, err)
		assert.ErrorIs(t, err, entities.ErrValidation)
		assert.ErrorIs(t, err, entities.ErrEmptyTitle)
	}

	// Store is unchanged after rejected adds.
	assert.Empty(t, collect(store.List(ports.TaskFilter{})))
	assert.Equal(t, 0, store.Statistics().Total)
}

func TestAdd_TrimsFields(t *testing.T) {
	store, _ := newStore(t)

	task := mustAdd(t, store, ports.CreateTaskRequest{
		Title:       "  Buy milk  ",
		Description: "  two liters  ",
	})

	assert.Equal(t, "Buy milk", task.Title)
	assert.Equal(t, "two liters", task.Description)
}

func TestAdd_InvalidDueDate(t *testing.T) {
	store, _ := newStore(t)

	_, err := store.Add(context.Background(), ports.CreateTaskRequest{
		Title:   "task",
		DueDate: "15/01/2024",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, entities.ErrInvalidDueDate)
}

func TestAdd_InvalidPriority(t *testing.T) {
	store, _ := newStore(t)

	_, err := store.Add(context.Background(), ports.CreateTaskRequest{
		Title:    "task",
		Priority: "urgent",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, entities.ErrInvalidPriority)
}

func TestAdd_DefaultPriority(t *testing.T) {
	store, _ := newStore(t)

	task := mustAdd(t, store, ports.CreateTaskRequest{Title: "task"})
	assert.Equal(t, entities.PriorityMedium, task.Priority)
}

func TestEdit(t *testing.T) {
	store, _ := newStore(t)
	task := mustAdd(t, store, ports.CreateTaskRequest{Title: "draft", Priority: "Low"})

	title := "final"
	priority := "High"
	updated, err := store.Edit(context.Background(), task.ID, ports.UpdateTaskRequest{
		Title:    &title,
		Priority: &priority,
	})
	require.NoError(t, err)

	assert.Equal(t, "final", updated.Title)
	assert.Equal(t, entities.PriorityHigh, updated.Priority)
	assert.Equal(t, task.ID, updated.ID)
	assert.Equal(t, task.CreatedAt, updated.CreatedAt)
}

func TestEdit_NilFieldsUntouched(t *testing.T) {
	store, _ := newStore(t)
	task := mustAdd(t, store, ports.CreateTaskRequest{
		Title:       "keep me",
		Description: "original",
		DueDate:     "2024-03-01",
	})

	desc := "changed"
	updated, err := store.Edit(context.Background(), task.ID, ports.UpdateTaskRequest{Description: &desc})
	require.NoError(t, err)

	assert.Equal(t, "keep me", updated.Title)
	assert.Equal(t, "changed", updated.Description)
	assert.Equal(t, "2024-03-01", updated.DueDateString())
}

func TestEdit_ClearDueDate(t *testing.T) {
	store, _ := newStore(t)
	task := mustAdd(t, store, ports.CreateTaskRequest{Title: "task", DueDate: "2024-03-01"})

	empty := ""
	updated, err := store.Edit(context.Background(), task.ID, ports.UpdateTaskRequest{DueDate: &empty})
	require.NoError(t, err)
	assert.Nil(t, updated.DueDate)
}

func TestEdit_MalformedDueDateLeavesTaskUnchanged(t *testing.T) {
	store, _ := newStore(t)
	task := mustAdd(t, store, ports.CreateTaskRequest{Title: "task", DueDate: "2024-03-01"})

	bad := "not-a-date"
	_, err := store.Edit(context.Background(), task.ID, ports.UpdateTaskRequest{DueDate: &bad})
	require.Error(t, err)
	assert.ErrorIs(t, err, entities.ErrInvalidDueDate)

	current, err := store.Get(task.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", current.DueDateString())
}

func TestEdit_EmptyTitleRejected(t *testing.T) {
	store, _ := newStore(t)
	task := mustAdd(t, store, ports.CreateTaskRequest{Title: "task"})

	empty := "   "
	_, err := store.Edit(context.Background(), task.ID, ports.UpdateTaskRequest{Title: &empty})
	require.Error(t, err)
	assert.ErrorIs(t, err, entities.ErrEmptyTitle)
}

func TestEdit_NotFound(t *testing.T) {
	store, _ := newStore(t)

	_, err := store.Edit(context.Background(), 42, ports.UpdateTaskRequest{})
	assert.ErrorIs(t, err, entities.ErrTaskNotFound)
}

func TestDelete(t *testing.T) {
	store, _ := newStore(t)
	task := mustAdd(t, store, ports.CreateTaskRequest{Title: "task"})

	require.NoError(t, store.Delete(context.Background(), task.ID))

	_, err := store.Get(task.ID)
	assert.ErrorIs(t, err, entities.ErrTaskNotFound)
}

func TestDelete_Twice(t *testing.T) {
	store, _ := newStore(t)
	task := mustAdd(t, store, ports.CreateTaskRequest{Title: "task"})

	require.NoError(t, store.Delete(context.Background(), task.ID))

	err := store.Delete(context.Background(), task.ID)
	assert.ErrorIs(t, err, entities.ErrTaskNotFound)
}

func TestDelete_DoesNotReuseIDs(t *testing.T) {
	store, _ := newStore(t)
	first := mustAdd(t, store, ports.CreateTaskRequest{Title: "one"})
	require.NoError(t, store.Delete(context.Background(), first.ID))

	second := mustAdd(t, store, ports.CreateTaskRequest{Title: "two"})
	assert.Equal(t, 2, second.ID)
}

func TestSetCompleted(t *testing.T) {
	store, _ := newStore(t)
	task := mustAdd(t, store, ports.CreateTaskRequest{Title: "task"})

	done, err := store.SetCompleted(context.Background(), task.ID, true)
	require.NoError(t, err)
	assert.True(t, done.Completed)

	undone, err := store.SetCompleted(context.Background(), task.ID, false)
	require.NoError(t, err)
	assert.False(t, undone.Completed)
}

func TestSetCompleted_NotFound(t *testing.T) {
	store, _ := newStore(t)

	_, err := store.SetCompleted(context.Background(), 7, true)
	assert.ErrorIs(t, err, entities.ErrTaskNotFound)
}

func TestClearCompleted(t *testing.T) {
	store, _ := newStore(t)
	keep := mustAdd(t, store, ports.CreateTaskRequest{Title: "keep"})
	done1 := mustAdd(t, store, ports.CreateTaskRequest{Title: "done one"})
	done2 := mustAdd(t, store, ports.CreateTaskRequest{Title: "done two"})

	_, err := store.SetCompleted(context.Background(), done1.ID, true)
	require.NoError(t, err)
	_, err = store.SetCompleted(context.Background(), done2.ID, true)
	require.NoError(t, err)

	removed, err := store.ClearCompleted(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	listed := collect(store.List(ports.TaskFilter{}))
	require.Len(t, listed, 1)
	assert.Equal(t, keep.ID, listed[0].ID)

	// Second call removes nothing.
	removed, err = store.ClearCompleted(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}

func TestList_StatusFilter(t *testing.T) {
	store, _ := newStore(t)
	pending := mustAdd(t, store, ports.CreateTaskRequest{Title: "pending"})
	done := mustAdd(t, store, ports.CreateTaskRequest{Title: "done"})
	_, err := store.SetCompleted(context.Background(), done.ID, true)
	require.NoError(t, err)

	all := collect(store.List(ports.TaskFilter{Status: ports.FilterAll}))
	assert.Len(t, all, 2)

	pendingOnly := collect(store.List(ports.TaskFilter{Status: ports.FilterPending}))
	require.Len(t, pendingOnly, 1)
	assert.Equal(t, pending.ID, pendingOnly[0].ID)

	completedOnly := collect(store.List(ports.TaskFilter{Status: ports.FilterCompleted}))
	require.Len(t, completedOnly, 1)
	assert.Equal(t, done.ID, completedOnly[0].ID)
}

func TestList_Search(t *testing.T) {
	store, _ := newStore(t)
	mustAdd(t, store, ports.CreateTaskRequest{Title: "Buy groceries", Description: "milk"})
	mustAdd(t, store, ports.CreateTaskRequest{Title: "Pay rent"})

	matches := collect(store.List(ports.TaskFilter{Search: "GROCERIES"}))
	require.Len(t, matches, 1)
	assert.Equal(t, "Buy groceries", matches[0].Title)

	matches = collect(store.List(ports.TaskFilter{Search: "milk"}))
	assert.Len(t, matches, 1)

	matches = collect(store.List(ports.TaskFilter{Search: "nothing"}))
	assert.Empty(t, matches)
}

func TestList_InsertionOrder(t *testing.T) {
	store, _ := newStore(t)
	for _, title := range []string{"c", "a", "b"} {
		mustAdd(t, store, ports.CreateTaskRequest{Title: title})
	}

	listed := collect(store.List(ports.TaskFilter{}))
	require.Len(t, listed, 3)
	assert.Equal(t, "c", listed[0].Title)
	assert.Equal(t, "a", listed[1].Title)
	assert.Equal(t, "b", listed[2].Title)
}

func TestList_SnapshotUnaffectedByLaterMutations(t *testing.T) {
	store, _ := newStore(t)
	task := mustAdd(t, store, ports.CreateTaskRequest{Title: "task"})

	seq := store.List(ports.TaskFilter{})
	require.NoError(t, store.Delete(context.Background(), task.ID))

	// The sequence iterates the snapshot taken before the delete.
	assert.Len(t, collect(seq), 1)
}

func TestListSorted_ByDueDate(t *testing.T) {
	store, _ := newStore(t)
	mustAdd(t, store, ports.CreateTaskRequest{Title: "later", DueDate: "2024-06-01"})
	mustAdd(t, store, ports.CreateTaskRequest{Title: "no due date"})
	mustAdd(t, store, ports.CreateTaskRequest{Title: "sooner", DueDate: "2024-01-01"})

	sorted := store.ListSorted(ports.TaskFilter{}, ports.SortByDueDate, false)
	require.Len(t, sorted, 3)
	assert.Equal(t, "sooner", sorted[0].Title)
	assert.Equal(t, "later", sorted[1].Title)
	assert.Equal(t, "no due date", sorted[2].Title)
}

func TestListSorted_ByPriority(t *testing.T) {
	store, _ := newStore(t)
	mustAdd(t, store, ports.CreateTaskRequest{Title: "low", Priority: "Low"})
	mustAdd(t, store, ports.CreateTaskRequest{Title: "high", Priority: "High"})
	mustAdd(t, store, ports.CreateTaskRequest{Title: "medium", Priority: "Medium"})

	sorted := store.ListSorted(ports.TaskFilter{}, ports.SortByPriority, false)
	require.Len(t, sorted, 3)
	assert.Equal(t, "high", sorted[0].Title)
	assert.Equal(t, "medium", sorted[1].Title)
	assert.Equal(t, "low", sorted[2].Title)
}

func TestListSorted_ByTitleDescending(t *testing.T) {
	store, _ := newStore(t)
	for _, title := range []string{"banana", "Apple", "cherry"} {
		mustAdd(t, store, ports.CreateTaskRequest{Title: title})
	}

	sorted := store.ListSorted(ports.TaskFilter{}, ports.SortByTitle, true)
	require.Len(t, sorted, 3)
	assert.Equal(t, "cherry", sorted[0].Title)
	assert.Equal(t, "banana", sorted[1].Title)
	assert.Equal(t, "Apple", sorted[2].Title)
}

func TestFindOverdue(t *testing.T) {
	store, _ := newStore(t)

	mustAdd(t, store, ports.CreateTaskRequest{Title: "past", DueDate: "2020-01-01"})
	mustAdd(t, store, ports.CreateTaskRequest{Title: "future", DueDate: "2100-01-01"})
	mustAdd(t, store, ports.CreateTaskRequest{Title: "undated"})
	donePast := mustAdd(t, store, ports.CreateTaskRequest{Title: "done past", DueDate: "2020-01-01"})
	_, err := store.SetCompleted(context.Background(), donePast.ID, true)
	require.NoError(t, err)

	overdue := collect(store.FindOverdue(time.Now()))
	require.Len(t, overdue, 1)
	assert.Equal(t, "past", overdue[0].Title)
}

func TestFindOverdue_DueTodayNotOverdue(t *testing.T) {
	store, _ := newStore(t)
	today := time.Now().Format(entities.DateLayout)
	mustAdd(t, store, ports.CreateTaskRequest{Title: "today", DueDate: today})

	assert.Empty(t, collect(store.FindOverdue(time.Now())))
}

func TestStatistics_Empty(t *testing.T) {
	store, _ := newStore(t)

	stats := store.Statistics()
	assert.Equal(t, 0, stats.Total)
	assert.Equal(t, 0, stats.Completed)
	assert.Equal(t, 0, stats.Pending)
	assert.Equal(t, 0.0, stats.CompletionRate)
	assert.Equal(t, 0, stats.ByPriority[entities.PriorityHigh])
	assert.Equal(t, 0, stats.ByPriority[entities.PriorityMedium])
	assert.Equal(t, 0, stats.ByPriority[entities.PriorityLow])
}

func TestStatistics(t *testing.T) {
	store, _ := newStore(t)

	mustAdd(t, store, ports.CreateTaskRequest{Title: "one", Priority: "High"})
	mustAdd(t, store, ports.CreateTaskRequest{Title: "two", Priority: "High"})
	done := mustAdd(t, store, ports.CreateTaskRequest{Title: "three", Priority: "Low"})
	_, err := store.SetCompleted(context.Background(), done.ID, true)
	require.NoError(t, err)

	stats := store.Statistics()
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, 2, stats.Pending)
	assert.Equal(t, 33.3, stats.CompletionRate)
	assert.Equal(t, 2, stats.ByPriority[entities.PriorityHigh])
	assert.Equal(t, 0, stats.ByPriority[entities.PriorityMedium])
	assert.Equal(t, 1, stats.ByPriority[entities.PriorityLow])
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	ctx := context.Background()

	store := services.NewTaskService(repository.NewTaskRepository(path), logger.NewNop())
	require.NoError(t, store.Load(ctx))

	original := mustAdd(t, store, ports.CreateTaskRequest{
		Title:       "Pay rent",
		Description: "before the 1st",
		Priority:    "High",
		DueDate:     "2024-01-15",
	})
	done := mustAdd(t, store, ports.CreateTaskRequest{Title: "done"})
	_, err := store.SetCompleted(ctx, done.ID, true)
	require.NoError(t, err)

	// A fresh store over the same file sees identical content.
	reloaded := services.NewTaskService(repository.NewTaskRepository(path), logger.NewNop())
	require.NoError(t, reloaded.Load(ctx))

	tasks := collect(reloaded.List(ports.TaskFilter{}))
	require.Len(t, tasks, 2)
	assert.Equal(t, original.ID, tasks[0].ID)
	assert.Equal(t, "Pay rent", tasks[0].Title)
	assert.Equal(t, "before the 1st", tasks[0].Description)
	assert.Equal(t, entities.PriorityHigh, tasks[0].Priority)
	assert.Equal(t, "2024-01-15", tasks[0].DueDateString())
	assert.True(t, tasks[1].Completed)

	// New ids continue after the highest persisted id.
	next := mustAdd(t, reloaded, ports.CreateTaskRequest{Title: "next"})
	assert.Equal(t, 3, next.ID)
}

func TestLoad_MissingFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.json")
	store := services.NewTaskService(repository.NewTaskRepository(path), logger.NewNop())

	require.NoError(t, store.Load(context.Background()))
	assert.Equal(t, 0, store.Statistics().Total)
}

func TestLoad_MalformedFileDegradesToEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	store := services.NewTaskService(repository.NewTaskRepository(path), logger.NewNop())
	err := store.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, entities.ErrPersistence)

	// The store stays usable and empty after the failed load.
	assert.Equal(t, 0, store.Statistics().Total)
	task := mustAdd(t, store, ports.CreateTaskRequest{Title: "fresh start"})
	assert.Equal(t, 1, task.ID)
}

func TestLoad_DuplicateIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	content := `[
  {"id": 1, "title": "one", "priority": "Medium", "due_date": null, "completed": false, "created_at": "2024-01-01T10:00:00"},
  {"id": 1, "title": "dup", "priority": "Medium", "due_date": null, "completed": false, "created_at": "2024-01-01T10:00:00"}
]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	store := services.NewTaskService(repository.NewTaskRepository(path), logger.NewNop())
	err := store.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, entities.ErrPersistence)
}

func TestExportImport(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store := services.NewTaskService(repository.NewTaskRepository(filepath.Join(dir, "tasks.json")), logger.NewNop())
	require.NoError(t, store.Load(ctx))

	mustAdd(t, store, ports.CreateTaskRequest{Title: "one", DueDate: "2024-01-15"})
	mustAdd(t, store, ports.CreateTaskRequest{Title: "two"})

	exportPath := filepath.Join(dir, "export.json")
	require.NoError(t, store.Export(ctx, exportPath))

	count, err := store.Import(ctx, exportPath)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// Imported tasks get fresh ids; nothing collides.
	tasks := collect(store.List(ports.TaskFilter{}))
	require.Len(t, tasks, 4)
	seen := make(map[int]bool)
	for _, task := range tasks {
		assert.False(t, seen[task.ID], "id %d assigned twice", task.ID)
		seen[task.ID] = true
	}
	assert.Equal(t, "one", tasks[2].Title)
	assert.Equal(t, "2024-01-15", tasks[2].DueDateString())
}

func TestImport_MissingFile(t *testing.T) {
	store, _ := newStore(t)

	_, err := store.Import(context.Background(), filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.ErrorIs(t, err, entities.ErrPersistence)
}

func TestWriteThrough(t *testing.T) {
	store, path := newStore(t)

	mustAdd(t, store, ports.CreateTaskRequest{Title: "task"})

	// The backing file reflects the mutation without an explicit Save.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"task"`)
}
