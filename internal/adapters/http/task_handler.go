package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/taskbook/core/internal/domain/entities"
	"github.com/taskbook/core/internal/infrastructure/logger"
	"github.com/taskbook/core/internal/ports"
)

// TaskHandler exposes the task store over HTTP. It is a thin shell: input
// collection and rendering only, every decision lives in the store.
type TaskHandler struct {
	store  ports.TaskStore
	logger *logger.Logger
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(store ports.TaskStore, logger *logger.Logger) *TaskHandler {
	return &TaskHandler{
		store:  store,
		logger: logger,
	}
}

// CreateTask handles POST /tasks
func (h *TaskHandler) CreateTask(c echo.Context) error {
	var req ports.CreateTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	task, err := h.store.Add(c.Request().Context(), req)
	if err != nil {
		return h.storeError(c, err)
	}

	return c.JSON(http.StatusCreated, task)
}

// GetTask handles GET /tasks/:id
func (h *TaskHandler) GetTask(c echo.Context) error {
	id, err := taskID(c)
	if err != nil {
		return err
	}

	task, err := h.store.Get(id)
	if err != nil {
		return h.storeError(c, err)
	}

	return c.JSON(http.StatusOK, task)
}

// UpdateTask handles PUT /tasks/:id
func (h *TaskHandler) UpdateTask(c echo.Context) error {
	id, err := taskID(c)
	if err != nil {
		return err
	}

	var req ports.UpdateTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	task, err := h.store.Edit(c.Request().Context(), id, req)
	if err != nil {
		return h.storeError(c, err)
	}

	return c.JSON(http.StatusOK, task)
}

// DeleteTask handles DELETE /tasks/:id
func (h *TaskHandler) DeleteTask(c echo.Context) error {
	id, err := taskID(c)
	if err != nil {
		return err
	}

	if err := h.store.Delete(c.Request().Context(), id); err != nil {
		return h.storeError(c, err)
	}

	return c.JSON(http.StatusOK, MessageResponse{Message: "Task deleted"})
}

// SetCompleted handles PUT /tasks/:id/complete
func (h *TaskHandler) SetCompleted(c echo.Context) error {
	id, err := taskID(c)
	if err != nil {
		return err
	}

	var req SetCompletedRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	task, err := h.store.SetCompleted(c.Request().Context(), id, req.Completed)
	if err != nil {
		return h.storeError(c, err)
	}

	return c.JSON(http.StatusOK, task)
}

// ClearCompleted handles POST /tasks/clear-completed
func (h *TaskHandler) ClearCompleted(c echo.Context) error {
	removed, err := h.store.ClearCompleted(c.Request().Context())
	if err != nil {
		return h.storeError(c, err)
	}

	return c.JSON(http.StatusOK, ClearCompletedResponse{Removed: removed})
}

// ListTasks handles GET /tasks with optional status, search, sort and order
// query parameters.
func (h *TaskHandler) ListTasks(c echo.Context) error {
	filter := ports.TaskFilter{
		Status: ports.FilterAll,
		Search: c.QueryParam("search"),
	}

	switch status := c.QueryParam("status"); status {
	case "", string(ports.FilterAll):
	case string(ports.FilterPending):
		filter.Status = ports.FilterPending
	case string(ports.FilterCompleted):
		filter.Status = ports.FilterCompleted
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid status filter")
	}

	key := ports.SortKey(c.QueryParam("sort"))
	descending := c.QueryParam("order") == "desc"

	tasks := h.store.ListSorted(filter, key, descending)
	return c.JSON(http.StatusOK, TaskListResponse{Data: tasks, Total: len(tasks)})
}

// GetOverdue handles GET /tasks/overdue
func (h *TaskHandler) GetOverdue(c echo.Context) error {
	tasks := make([]entities.Task, 0)
	for t := range h.store.FindOverdue(time.Now()) {
		tasks = append(tasks, t)
	}

	return c.JSON(http.StatusOK, TaskListResponse{Data: tasks, Total: len(tasks)})
}

// GetStatistics handles GET /stats
func (h *TaskHandler) GetStatistics(c echo.Context) error {
	return c.JSON(http.StatusOK, h.store.Statistics())
}

// ExportTasks handles POST /export
func (h *TaskHandler) ExportTasks(c echo.Context) error {
	var req TransferRequest
	if err := c.Bind(&req); err != nil || req.Path == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Export path is required")
	}

	if err := h.store.Export(c.Request().Context(), req.Path); err != nil {
		return h.storeError(c, err)
	}

	return c.JSON(http.StatusOK, MessageResponse{Message: "Tasks exported"})
}

// ImportTasks handles POST /import
func (h *TaskHandler) ImportTasks(c echo.Context) error {
	var req TransferRequest
	if err := c.Bind(&req); err != nil || req.Path == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Import path is required")
	}

	count, err := h.store.Import(c.Request().Context(), req.Path)
	if err != nil {
		return h.storeError(c, err)
	}

	return c.JSON(http.StatusOK, ImportResponse{Imported: count})
}

// storeError maps the store's error taxonomy onto HTTP status codes.
func (h *TaskHandler) storeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, entities.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, entities.ErrTaskNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		h.logger.Error("Store operation failed", "error", err, "path", c.Request().URL.Path)
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func taskID(c echo.Context) (int, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "Invalid task ID")
	}
	return id, nil
}

// Request/Response types

type SetCompletedRequest struct {
	Completed bool `json:"completed"`
}

type TransferRequest struct {
	Path string `json:"path"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ClearCompletedResponse struct {
	Removed int `json:"removed"`
}

type ImportResponse struct {
	Imported int `json:"imported"`
}

type TaskListResponse struct {
	Data  []entities.Task `json:"data"`
	Total int             `json:"total"`
}
