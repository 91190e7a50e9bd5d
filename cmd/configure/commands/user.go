package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/verveo/todo-generator/internal/database"
)

// NewUserCmd creates the user command with its subcommands
func NewUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}
	cmd.AddCommand(newUserVerifyCmd())
	return cmd
}

func newUserVerifyCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Mark a user's e-mail address as verified",
		Long:  "Verify an account without the e-mailed link, for example when mail delivery failed",
		RunE: func(cmd *cobra.Command, args []string) error {
			email = strings.ToLower(strings.TrimSpace(email))
			if email == "" {
				return fmt.Errorf("--email is required")
			}

			ctx := cmd.Context()
			_, db, closeDB, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer closeDB()

			repo := database.NewUserRepository(db)
			if err := repo.VerifyByEmail(ctx, email); err != nil {
				if errors.Is(err, database.ErrNotFound) {
					return fmt.Errorf("no user with email %s", email)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "User %s verified.\n", email)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "E-mail address of the account (required)")
	return cmd
}
