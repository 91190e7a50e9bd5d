package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/verveo/todo-generator/internal/config"
	"github.com/verveo/todo-generator/internal/logger"
	"github.com/verveo/todo-generator/internal/services/ai"
)

// NewGenerateCmd creates the generate command
func NewGenerateCmd() *cobra.Command {
	var (
		prompt string
		debug  bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a todo from a prompt",
		Long:  "Run the todo generator with the environment configuration and print the result as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt = strings.TrimSpace(prompt)
			if prompt == "" {
				return fmt.Errorf("--prompt is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			zapLogger := zap.NewNop()
			if debug {
				zapLogger, err = logger.NewDevelopmentLogger(true)
				if err != nil {
					return fmt.Errorf("failed to initialize logger: %w", err)
				}
				defer func() { _ = logger.Sync(zapLogger) }()
			}

			generator := ai.NewGenerator(cfg.AI(), zapLogger, ai.WithDebug(debug))
			if !generator.Enabled() {
				fmt.Fprintln(cmd.ErrOrStderr(), "OPENROUTER_API_KEY is not set; the result is synthesized locally.")
			}

			todo := generator.Generate(cmd.Context(), prompt)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			return enc.Encode(todo)
		},
	}

	cmd.Flags().StringVar(&prompt, "prompt", "", "Free-text description of the task (required)")
	cmd.Flags().BoolVar(&debug, "debug", false, "Log the model request and response")
	return cmd
}
