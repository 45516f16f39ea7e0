package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/taskbook/core/cmd/taskbook/commands"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "taskbook",
		Short: "TaskBook personal task tracker",
		Long:  `TaskBook is a personal task tracker backed by a JSON file, with an interactive list view, a text menu, an HTTP API and scriptable one-shot commands.`,
	}

	// Add commands
	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewTuiCommand())
	rootCmd.AddCommand(commands.NewMenuCommand())
	rootCmd.AddCommand(commands.NewTaskCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	// Execute root command
	if err := rootCmd.Execute(); err != nil {
		log.Printf("Command execution failed: %v", err)
		os.Exit(1)
	}
}
