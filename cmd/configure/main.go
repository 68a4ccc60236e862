package main

import (
	"fmt"
	"os"

	"github.com/benvon/todo-reset/cmd/configure/commands"
	"github.com/spf13/cobra"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "todo-reset-configure",
		Short: "Configuration tool for the todo list reset service",
		Long:  "CLI tool for managing reset entries, API tokens and the database schema",
	}

	rootCmd.AddCommand(commands.NewEntriesCmd())
	rootCmd.AddCommand(commands.NewTokenCmd())
	rootCmd.AddCommand(commands.NewResourcesCmd())
	rootCmd.AddCommand(commands.NewMigrateCmd())
	rootCmd.AddCommand(commands.NewCheckCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
