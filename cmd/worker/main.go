package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/verveo/todo-generator/internal/config"
	"github.com/verveo/todo-generator/internal/logger"
	"github.com/verveo/todo-generator/internal/queue"
	"github.com/verveo/todo-generator/internal/services/mail"
	"github.com/verveo/todo-generator/internal/workers"
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.ValidateWorker(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	debugMode := cfg.WorkerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync(zapLogger) }()

	zapLogger.Info("starting_worker",
		zap.Bool("debug_mode", debugMode),
		zap.Bool("smtp_enabled", cfg.SMTPEnabled()),
	)

	jobQueue, err := queue.NewRabbitMQQueue(cfg.RabbitMQURL, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_rabbitmq", zap.String("error", logger.SanitizeError(err)))
	}
	defer func() {
		if err := jobQueue.Close(); err != nil {
			zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
		}
	}()

	zapLogger.Info("connected_to_rabbitmq", zap.Int("prefetch", cfg.RabbitMQPrefetch))

	var mailer mail.Mailer
	if cfg.SMTPEnabled() {
		mailer = mail.NewSMTPMailer(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.EmailUser,
			Password: cfg.EmailPass,
			From:     cfg.EmailFrom,
		})
	} else {
		zapLogger.Warn("smtp_not_configured_using_log_mailer")
		mailer = mail.NewLogMailer(zapLogger)
	}

	sender := workers.NewEmailSender(mailer, jobQueue, cfg.AppURL, zapLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	msgChan, errChan, err := jobQueue.Consume(ctx, cfg.RabbitMQPrefetch)
	if err != nil {
		zapLogger.Fatal("failed_to_start_consuming", zap.Error(err))
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		sender.Run(ctx, msgChan, errChan)
	}()

	zapLogger.Info("worker_started")

	select {
	case <-sigChan:
		zapLogger.Info("worker_shutdown_signal_received")
	case <-done:
		zapLogger.Warn("worker_consumer_stopped")
	}

	cancel()
	<-done

	zapLogger.Info("worker_stopped")
}
