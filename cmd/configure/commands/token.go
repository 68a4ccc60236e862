package commands

import (
	"fmt"
	"time"

	"github.com/benvon/todo-reset/internal/config"
	"github.com/benvon/todo-reset/internal/services/apitoken"
	"github.com/spf13/cobra"
)

// NewTokenCmd creates the token command with its issue subcommand.
func NewTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage API tokens",
	}
	cmd.AddCommand(newTokenIssueCmd())
	return cmd
}

func newTokenIssueCmd() *cobra.Command {
	var subject string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a signed API token",
		Long:  "Issue an HS256 token signed with API_SIGNING_KEY for calling the API.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if subject == "" {
				return fmt.Errorf("--subject is required")
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			authority, err := apitoken.New(cfg.APISigningKey, cfg.APITokenIssuer, nil)
			if err != nil {
				return fmt.Errorf("failed to create token authority: %w", err)
			}
			token, err := authority.Issue(subject, ttl)
			if err != nil {
				return fmt.Errorf("failed to issue token: %w", err)
			}
			fmt.Println(token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "Token subject, e.g. the client name (required)")
	cmd.Flags().DurationVar(&ttl, "ttl", 365*24*time.Hour, "Token lifetime")
	return cmd
}
