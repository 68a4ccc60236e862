package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// NewMigrateCmd creates the migrate command
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, closeDB, err := openDB()
			if err != nil {
				return err
			}
			defer closeDB()

			if err := db.Migrate(context.Background()); err != nil {
				return fmt.Errorf("failed to migrate database: %w", err)
			}
			fmt.Println("Database schema is up to date")
			return nil
		},
	}
}
