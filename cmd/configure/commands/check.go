package commands

import (
	"context"
	"fmt"

	"github.com/benvon/todo-reset/internal/config"
	"github.com/benvon/todo-reset/internal/homeassistant"
	"github.com/spf13/cobra"
)

// NewCheckCmd creates the check command
func NewCheckCmd() *cobra.Command {
	var entityID string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check the Home Assistant connection",
		Long:  "Verify HOME_ASSISTANT_URL and HOME_ASSISTANT_TOKEN, and optionally that a todo list exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			client := homeassistant.NewRESTClient(cfg.HomeAssistantURL, cfg.HomeAssistantToken, cfg.HomeAssistantTimeout)
			ctx := context.Background()

			fmt.Printf("Testing Home Assistant API: %s\n", cfg.HomeAssistantURL)
			if err := client.CheckAPI(ctx); err != nil {
				return fmt.Errorf("home assistant API check failed: %w", err)
			}
			fmt.Println("✓ API is reachable and the token is accepted")

			if entityID == "" {
				return nil
			}
			exists, err := client.EntityExists(ctx, entityID)
			if err != nil {
				return fmt.Errorf("failed to look up %s: %w", entityID, err)
			}
			if !exists {
				return fmt.Errorf("%s does not exist", entityID)
			}
			items, err := client.GetItems(ctx, entityID)
			if err != nil {
				return fmt.Errorf("failed to read items of %s: %w", entityID, err)
			}
			fmt.Printf("✓ %s exists with %d items\n", entityID, len(items))
			return nil
		},
	}

	cmd.Flags().StringVar(&entityID, "entity-id", "", "Todo entity to look up, e.g. todo.chores")
	return cmd
}
