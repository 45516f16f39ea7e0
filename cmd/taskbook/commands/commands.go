package commands

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskbook/core/internal/adapters/menu"
	"github.com/taskbook/core/internal/adapters/repository"
	"github.com/taskbook/core/internal/adapters/tui"
	"github.com/taskbook/core/internal/application/services"
	"github.com/taskbook/core/internal/domain/entities"
	"github.com/taskbook/core/internal/infrastructure/config"
	"github.com/taskbook/core/internal/infrastructure/logger"
	"github.com/taskbook/core/internal/infrastructure/server"
	"github.com/taskbook/core/internal/ports"
)

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the TaskBook HTTP API server",
		Long:  "Start the TaskBook HTTP API server with all configured routes and middleware",
		Run: func(cmd *cobra.Command, args []string) {
			runServer()
		},
	}
}

// NewTuiCommand creates the interactive list view command
func NewTuiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive task list",
		Run: func(cmd *cobra.Command, args []string) {
			store, _ := mustStore(logger.NewNop())
			if err := tui.Run(store); err != nil {
				log.Fatalf("TUI failed: %v", err)
			}
		},
	}
}

// NewMenuCommand creates the text menu command
func NewMenuCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "menu",
		Short: "Open the text menu",
		Run: func(cmd *cobra.Command, args []string) {
			store, _ := mustStore(logger.NewNop())
			m := menu.New(store, os.Stdin, os.Stdout)
			if err := m.Run(cmd.Context()); err != nil {
				log.Fatalf("Menu failed: %v", err)
			}
		},
	}
}

// NewTaskCommand creates the one-shot task commands
func NewTaskCommand() *cobra.Command {
	taskCmd := &cobra.Command{
		Use:   "task",
		Short: "One-shot task operations",
		Long:  "Scriptable task operations against the backing file",
	}

	addCmd := &cobra.Command{
		Use:   "add [title]",
		Short: "Add a task",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			store, _ := mustStore(logger.NewNop())

			description, _ := cmd.Flags().GetString("description")
			priority, _ := cmd.Flags().GetString("priority")
			dueDate, _ := cmd.Flags().GetString("due")

			task, err := store.Add(cmd.Context(), ports.CreateTaskRequest{
				Title:       args[0],
				Description: description,
				Priority:    priority,
				DueDate:     dueDate,
			})
			if err != nil {
				log.Fatalf("Failed to add task: %v", err)
			}
			fmt.Println(task.Render())
		},
	}
	addCmd.Flags().String("description", "", "Task description")
	addCmd.Flags().String("priority", "", "Priority (High, Medium, Low)")
	addCmd.Flags().String("due", "", "Due date (YYYY-MM-DD)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Run: func(cmd *cobra.Command, args []string) {
			store, _ := mustStore(logger.NewNop())

			status, _ := cmd.Flags().GetString("status")
			search, _ := cmd.Flags().GetString("search")
			sortKey, _ := cmd.Flags().GetString("sort")
			desc, _ := cmd.Flags().GetBool("desc")

			filter := ports.TaskFilter{Status: ports.StatusFilter(status), Search: search}
			for _, t := range store.ListSorted(filter, ports.SortKey(sortKey), desc) {
				fmt.Println(t.Render())
			}
		},
	}
	listCmd.Flags().String("status", "all", "Status filter (all, pending, completed)")
	listCmd.Flags().String("search", "", "Match against title and description")
	listCmd.Flags().String("sort", "due", "Sort key (due, priority, title, created, status)")
	listCmd.Flags().Bool("desc", false, "Sort descending")

	doneCmd := &cobra.Command{
		Use:   "done [id]",
		Short: "Mark a task completed",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			store, _ := mustStore(logger.NewNop())
			task, err := store.SetCompleted(cmd.Context(), parseID(args[0]), true)
			if err != nil {
				log.Fatalf("Failed to complete task: %v", err)
			}
			fmt.Println(task.Render())
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			store, _ := mustStore(logger.NewNop())
			id := parseID(args[0])
			if err := store.Delete(cmd.Context(), id); err != nil {
				log.Fatalf("Failed to delete task: %v", err)
			}
			fmt.Printf("Deleted task #%d\n", id)
		},
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Print store statistics",
		Run: func(cmd *cobra.Command, args []string) {
			store, _ := mustStore(logger.NewNop())
			stats := store.Statistics()

			fmt.Printf("Total: %d\n", stats.Total)
			fmt.Printf("Completed: %d\n", stats.Completed)
			fmt.Printf("Pending: %d\n", stats.Pending)
			fmt.Printf("Completion rate: %.1f%%\n", stats.CompletionRate)
			for _, p := range entities.Priorities() {
				fmt.Printf("  %s: %d\n", p, stats.ByPriority[p])
			}
		},
	}

	overdueCmd := &cobra.Command{
		Use:   "overdue",
		Short: "List overdue tasks",
		Run: func(cmd *cobra.Command, args []string) {
			store, _ := mustStore(logger.NewNop())
			for t := range store.FindOverdue(time.Now()) {
				fmt.Println(t.Render())
			}
		},
	}

	exportCmd := &cobra.Command{
		Use:   "export [path]",
		Short: "Export all tasks to a JSON file",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			store, _ := mustStore(logger.NewNop())
			if err := store.Export(cmd.Context(), args[0]); err != nil {
				log.Fatalf("Failed to export: %v", err)
			}
			fmt.Printf("Exported to %s\n", args[0])
		},
	}

	importCmd := &cobra.Command{
		Use:   "import [path]",
		Short: "Import tasks from a JSON file",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			store, _ := mustStore(logger.NewNop())
			count, err := store.Import(cmd.Context(), args[0])
			if err != nil {
				log.Fatalf("Failed to import: %v", err)
			}
			fmt.Printf("Imported %d task(s)\n", count)
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear-completed",
		Short: "Remove every completed task",
		Run: func(cmd *cobra.Command, args []string) {
			store, _ := mustStore(logger.NewNop())
			removed, err := store.ClearCompleted(cmd.Context())
			if err != nil {
				log.Fatalf("Failed to clear completed tasks: %v", err)
			}
			fmt.Printf("Removed %d completed task(s)\n", removed)
		},
	}

	taskCmd.AddCommand(addCmd, listCmd, doneCmd, deleteCmd, statsCmd, overdueCmd, exportCmd, importCmd, clearCmd)
	return taskCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print TaskBook version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("TaskBook v1.0.0")
		},
	}
}

func runServer() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLogger.Sync()

	store := services.NewTaskService(repository.NewTaskRepository(cfg.Storage.Path), appLogger)
	if err := store.Load(context.Background()); err != nil {
		appLogger.Warn("Backing file unreadable, starting empty", "error", err)
	}

	srv, err := server.New(cfg, store, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize server", "error", err)
	}

	// Periodic overdue re-check. The store holds no timer state; the ticker
	// lives here for the lifetime of the server.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go overdueTicker(ctx, store, cfg.Overdue.CheckInterval, appLogger)

	go func() {
		appLogger.Info("Starting TaskBook API server",
			"port", cfg.Server.Port,
			"environment", cfg.App.Environment,
		)
		if err := srv.Start(fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)); err != nil {
			appLogger.Error("Server stopped", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Shutdown failed", "error", err)
	}
}

func overdueTicker(ctx context.Context, store ports.TaskStore, interval time.Duration, appLogger *logger.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			count := 0
			for range store.FindOverdue(now) {
				count++
			}
			if count > 0 {
				appLogger.Info("Overdue tasks", "count", count)
			}
		}
	}
}

// mustStore builds a loaded store from the ambient configuration. A missing
// or unreadable backing file degrades to an empty store with a warning.
func mustStore(appLogger *logger.Logger) (*services.TaskService, *config.Config) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	store := services.NewTaskService(repository.NewTaskRepository(cfg.Storage.Path), appLogger)
	if err := store.Load(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not read %s, starting empty: %v\n", cfg.Storage.Path, err)
	}

	return store, cfg
}

func parseID(raw string) int {
	var id int
	if _, err := fmt.Sscanf(raw, "%d", &id); err != nil {
		log.Fatalf("Invalid task id %q", raw)
	}
	return id
}
