package commands

import (
	"context"
	"fmt"

	"github.com/benvon/todo-reset/internal/database"
	"github.com/spf13/cobra"
)

// NewResourcesCmd creates the resources command with its list subcommand.
func NewResourcesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resources",
		Short: "Inspect registered dashboard resources",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List dashboard resources",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, closeDB, err := openDB()
			if err != nil {
				return err
			}
			defer closeDB()

			resources, err := database.NewResourceRepository(db).List(context.Background())
			if err != nil {
				return fmt.Errorf("failed to list resources: %w", err)
			}
			if len(resources) == 0 {
				fmt.Println("No dashboard resources registered")
				return nil
			}
			for _, res := range resources {
				fmt.Printf("  - %s  %-8s %s\n", res.ID, res.ResType, res.URL)
			}
			return nil
		},
	})
	return cmd
}
