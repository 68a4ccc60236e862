package commands

import (
	"fmt"
	"os"

	"github.com/benvon/todo-reset/internal/config"
	"github.com/benvon/todo-reset/internal/database"
)

// openDB loads the configuration and connects to the database.
// The returned close func reports but does not fail on close errors.
func openDB() (*config.Config, *database.DB, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	closeFn := func() {
		if err := db.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
		}
	}
	return cfg, db, closeFn, nil
}
