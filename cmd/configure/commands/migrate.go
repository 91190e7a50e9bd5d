package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewMigrateCmd creates the migrate command
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Long:  "Apply the idempotent schema for users, todos and rate limit configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, db, closeDB, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer closeDB()

			if err := db.EnsureSchema(ctx); err != nil {
				return fmt.Errorf("failed to apply schema: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date.")
			return nil
		},
	}
}
