package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/verveo/todo-generator/internal/config"
	"github.com/verveo/todo-generator/internal/database"
	"github.com/verveo/todo-generator/internal/middleware"
	"github.com/verveo/todo-generator/internal/queue"
)

// NewTestCmd creates the test command
func NewTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Test service configuration",
		Long:  "Check that the configured database, Redis and RabbitMQ are reachable and report optional settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			out := cmd.OutOrStdout()
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			failed := 0
			report := func(name string, err error) {
				if err != nil {
					failed++
					fmt.Fprintf(out, "✗ %s: %v\n", name, err)
					return
				}
				fmt.Fprintf(out, "✓ %s\n", name)
			}

			report("configuration", cfg.ValidateServer())
			report("database", checkDatabase(ctx, cfg))
			if cfg.RedisURL != "" {
				report("redis", checkRedis(ctx, cfg))
			} else {
				fmt.Fprintln(out, "- redis not configured, rate limits are kept in memory")
			}
			if cfg.RabbitMQURL != "" {
				report("rabbitmq", checkRabbitMQ(ctx, cfg))
			} else {
				fmt.Fprintln(out, "- rabbitmq not configured, verification e-mails are sent inline")
			}
			describeOptional(out, cfg)

			if failed > 0 {
				return fmt.Errorf("%d check(s) failed", failed)
			}
			fmt.Fprintln(out, "\n✓ Configuration test passed")
			return nil
		},
	}
}

func checkDatabase(ctx context.Context, cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is not set")
	}
	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	return db.HealthCheck(ctx)
}

func checkRedis(ctx context.Context, cfg *config.Config) error {
	client, err := middleware.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	return client.Close()
}

func checkRabbitMQ(ctx context.Context, cfg *config.Config) error {
	q, err := queue.NewRabbitMQQueue(cfg.RabbitMQURL, zap.NewNop())
	if err != nil {
		return err
	}
	defer func() { _ = q.Close() }()
	return q.HealthCheck(ctx)
}

func describeOptional(out io.Writer, cfg *config.Config) {
	if cfg.OpenRouterAPIKey == "" {
		fmt.Fprintln(out, "- OPENROUTER_API_KEY not set, todos are synthesized locally")
	} else {
		fmt.Fprintf(out, "✓ OpenRouter key loaded, model %s\n", cfg.Model)
	}
	if cfg.SMTPEnabled() {
		fmt.Fprintf(out, "✓ SMTP %s:%d\n", cfg.SMTPHost, cfg.SMTPPort)
	} else {
		fmt.Fprintln(out, "- SMTP not configured, e-mails are written to the log")
	}
}
