package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/verveo/todo-generator/internal/database"
	"github.com/verveo/todo-generator/internal/middleware"
	"github.com/verveo/todo-generator/internal/models"
)

// NewRatelimitCmd creates the ratelimit configuration command with show and set subcommands.
func NewRatelimitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ratelimit",
		Short: "Manage rate limit configuration",
		Long:  "Show or update the API rate limit (e.g. 5-S, 100-M). Stored in database; the server reloads it every minute.",
	}
	cmd.AddCommand(newRatelimitShowCmd())
	cmd.AddCommand(newRatelimitSetCmd())
	return cmd
}

func newRatelimitShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current rate limit configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, db, closeDB, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer closeDB()

			repo := database.NewRatelimitConfigRepository(db)
			c, err := repo.Get(ctx, models.RatelimitKeyAPI)
			if err != nil {
				return fmt.Errorf("get ratelimit config: %w", err)
			}
			out := cmd.OutOrStdout()
			if c == nil {
				fmt.Fprintf(out, "No rate limit stored; the default %s applies. Use 'ratelimit set' to change it.\n", middleware.DefaultRate)
				return nil
			}
			fmt.Fprintln(out, "Rate limit configuration:")
			fmt.Fprintf(out, "  Rate: %s\n", c.Rate)
			fmt.Fprintf(out, "  Updated: %s\n", c.UpdatedAt.Format("2006-01-02 15:04:05"))
			return nil
		},
	}
}

func newRatelimitSetCmd() *cobra.Command {
	var rate string
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set rate limit configuration",
		Long:  "Update the API rate limit (e.g. 5-S, 100-M, 1000-H). Stored in database.",
		RunE: func(cmd *cobra.Command, args []string) error {
			rate = strings.TrimSpace(rate)
			if rate == "" {
				return fmt.Errorf("--rate is required (e.g. 5-S, 100-M)")
			}

			ctx := cmd.Context()
			_, db, closeDB, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer closeDB()

			repo := database.NewRatelimitConfigRepository(db)
			if err := repo.Set(ctx, models.RatelimitKeyAPI, rate); err != nil {
				return fmt.Errorf("set ratelimit config: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Rate limit configuration updated.")
			return nil
		},
	}
	cmd.Flags().StringVar(&rate, "rate", "", "Rate (e.g. 5-S, 100-M, 1000-H) (required)")
	return cmd
}
