package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/benvon/todo-reset/internal/database"
	"github.com/benvon/todo-reset/internal/homeassistant"
	"github.com/benvon/todo-reset/internal/integration"
	"github.com/benvon/todo-reset/internal/queue"
	"github.com/benvon/todo-reset/internal/reset"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewEntriesCmd creates the entries command with list, add, remove and reset subcommands.
func NewEntriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entries",
		Short: "Manage configured reset entries",
		Long:  "List, add or remove reset entries stored in the database. A running server picks up added or removed entries on restart.",
	}
	cmd.AddCommand(newEntriesListCmd())
	cmd.AddCommand(newEntriesAddCmd())
	cmd.AddCommand(newEntriesRemoveCmd())
	cmd.AddCommand(newEntriesResetCmd())
	return cmd
}

func newEntriesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, closeDB, err := openDB()
			if err != nil {
				return err
			}
			defer closeDB()

			entries, err := database.NewEntryRepository(db).List(context.Background())
			if err != nil {
				return fmt.Errorf("failed to list entries: %w", err)
			}
			if len(entries) == 0 {
				fmt.Println("No entries configured")
				return nil
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tLIST\tRESET TIME\tDISPLAY")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s %dh\n", e.ID, e.Title, e.TargetEntityID, e.ResetTime, e.DisplayPosition, e.DisplayHours)
			}
			return tw.Flush()
		},
	}
}

func newEntriesAddCmd() *cobra.Command {
	var in integration.SetupInput
	var position string
	var hours int

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a reset entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			in.DisplayPosition = position
			if cmd.Flags().Changed("display-hours") {
				in.DisplayHours = &hours
			}
			if err := in.Validate(); err != nil {
				return err
			}

			_, db, closeDB, err := openDB()
			if err != nil {
				return err
			}
			defer closeDB()

			entry := in.Entry()
			if err := database.NewEntryRepository(db).Create(context.Background(), &entry); err != nil {
				if errors.Is(err, database.ErrDuplicateEntry) {
					return fmt.Errorf("an entry for %s at %s already exists", entry.TargetEntityID, entry.ResetTime)
				}
				return fmt.Errorf("failed to create entry: %w", err)
			}
			fmt.Printf("Created entry %s (%s resets at %s)\n", entry.ID, entry.TargetEntityID, entry.ResetTime)
			return nil
		},
	}

	cmd.Flags().StringVar(&in.Name, "name", "", "Entry title (required)")
	cmd.Flags().StringVar(&in.EntityID, "entity-id", "", "Target todo entity, e.g. todo.chores (required)")
	cmd.Flags().StringVar(&in.ResetTime, "reset-time", "", "Daily reset time HH:MM[:SS] (default 00:00:00)")
	cmd.Flags().StringVar(&position, "display-position", "", "Countdown position on the card: before or after")
	cmd.Flags().IntVar(&hours, "display-hours", 0, "Hours before the reset to show the countdown")
	return cmd
}

func newEntriesRemoveCmd() *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove a reset entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			entryID, err := uuid.Parse(id)
			if err != nil {
				return fmt.Errorf("--id must be an entry id: %w", err)
			}
			_, db, closeDB, err := openDB()
			if err != nil {
				return err
			}
			defer closeDB()

			if err := database.NewEntryRepository(db).Delete(context.Background(), entryID); err != nil {
				return fmt.Errorf("failed to remove entry: %w", err)
			}
			fmt.Printf("Removed entry %s\n", entryID)
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Entry id (required)")
	return cmd
}

func newEntriesResetCmd() *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset an entry's completed items now",
		Long:  "Queue a manual reset for the worker when RabbitMQ is configured, otherwise reset the list directly.",
		RunE: func(cmd *cobra.Command, args []string) error {
			entryID, err := uuid.Parse(id)
			if err != nil {
				return fmt.Errorf("--id must be an entry id: %w", err)
			}
			cfg, db, closeDB, err := openDB()
			if err != nil {
				return err
			}
			defer closeDB()

			ctx := context.Background()
			entry, err := database.NewEntryRepository(db).GetByID(ctx, entryID)
			if err != nil {
				return fmt.Errorf("failed to load entry: %w", err)
			}

			if cfg.QueueEnabled() {
				q, err := queue.NewRabbitMQQueue(cfg.RabbitMQURL, zap.NewNop())
				if err != nil {
					return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
				}
				defer func() { _ = q.Close() }()

				job := queue.NewResetJob(entry.ID, queue.ReasonManual, time.Now())
				if err := q.Enqueue(ctx, job); err != nil {
					return fmt.Errorf("failed to enqueue reset: %w", err)
				}
				fmt.Printf("Queued reset job %s for %s\n", job.ID, entry.TargetEntityID)
				return nil
			}

			client := homeassistant.NewRESTClient(cfg.HomeAssistantURL, cfg.HomeAssistantToken, cfg.HomeAssistantTimeout)
			result, err := reset.New(client, zap.NewNop()).Reset(ctx, entry.TargetEntityID)
			if err != nil {
				return fmt.Errorf("reset failed: %w", err)
			}
			fmt.Printf("Reset %d of %d items on %s\n", result.Reset, result.Total, entry.TargetEntityID)
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Entry id (required)")
	return cmd
}
