package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/verveo/todo-generator/internal/config"
	"github.com/verveo/todo-generator/internal/database"
)

// openDB loads the configuration and connects to the database. The returned
// func closes the pool.
func openDB(ctx context.Context) (*config.Config, *database.DB, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.DatabaseURL == "" {
		return nil, nil, nil, fmt.Errorf("DATABASE_URL is required")
	}

	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
		}
	}
	return cfg, db, closeDB, nil
}
