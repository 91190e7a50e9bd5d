package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"

	"github.com/verveo/todo-generator/internal/config"
	"github.com/verveo/todo-generator/internal/database"
	"github.com/verveo/todo-generator/internal/datetime"
	"github.com/verveo/todo-generator/internal/handlers"
	"github.com/verveo/todo-generator/internal/logger"
	"github.com/verveo/todo-generator/internal/middleware"
	"github.com/verveo/todo-generator/internal/queue"
	"github.com/verveo/todo-generator/internal/request"
	"github.com/verveo/todo-generator/internal/services/ai"
	"github.com/verveo/todo-generator/internal/services/auth"
	"github.com/verveo/todo-generator/internal/services/mail"
	"github.com/verveo/todo-generator/internal/telemetry"
)

const serviceName = "verveo-todo-generator"

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug mode for LLM API logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.ValidateServer(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync(zapLogger) }()

	zapLogger.Info("starting_server",
		zap.Bool("debug_mode", debugMode),
		zap.String("port", cfg.Port),
		zap.String("ai_model", cfg.Model),
		zap.Bool("ai_enabled", cfg.OpenRouterAPIKey != ""),
		zap.String("timezone", cfg.Location.String()),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tracingEnabled := false
	if cfg.OTELEnabled {
		tp, err := telemetry.InitTracer(ctx, telemetry.Config{
			ServiceName:    serviceName,
			ServiceVersion: cfg.AppVersion,
			Endpoint:       cfg.OTELEndpoint,
			Insecure:       true,
		})
		if err != nil {
			zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
		} else {
			tracingEnabled = true
			zapLogger.Info("otel_tracer_initialized", zap.String("endpoint", cfg.OTELEndpoint))
			defer func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				if err := telemetry.Shutdown(shutdownCtx, tp); err != nil {
					zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
				}
			}()
		}
	}

	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.String("error", logger.SanitizeError(err)))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()
	if err := db.EnsureSchema(ctx); err != nil {
		zapLogger.Fatal("failed_to_ensure_schema", zap.Error(err))
	}
	zapLogger.Info("connected_to_database")

	// Redis is optional; without it rate-limit counters are per process.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = middleware.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			zapLogger.Fatal("failed_to_connect_to_redis", zap.String("error", logger.SanitizeError(err)))
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
			}
		}()
		zapLogger.Info("connected_to_redis")
	}

	// RabbitMQ is optional; without it verification e-mails are sent inline.
	var jobQueue *queue.RabbitMQQueue
	if cfg.RabbitMQURL != "" {
		jobQueue, err = connectRabbitMQ(cfg.RabbitMQURL, zapLogger)
		if err != nil {
			zapLogger.Fatal("failed_to_connect_to_rabbitmq_after_retries", zap.String("error", logger.SanitizeError(err)))
		}
		defer func() {
			if err := jobQueue.Close(); err != nil {
				zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
			}
		}()
	}

	userRepo := database.NewUserRepository(db)
	todoRepo := database.NewTodoRepository(db)
	ratelimitConfigRepo := database.NewRatelimitConfigRepository(db)

	generator := ai.NewGenerator(cfg.AI(), zapLogger, ai.WithDebug(debugMode))
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTTTL)
	mailer := newMailer(cfg, zapLogger)
	userCache := middleware.NewUserCache(0, 0)

	proxies, err := request.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		zapLogger.Fatal("invalid_trusted_proxies", zap.Error(err))
	}
	rateLimiter, err := middleware.NewRateLimiter(redisClient, ratelimitConfigRepo, proxies, middleware.DefaultRate, middleware.DefaultReloadInterval, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limiter", zap.Error(err))
	}

	// nil interfaces keep the handlers from seeing a typed nil queue
	var enqueuer handlers.JobEnqueuer
	checks := map[string]handlers.CheckFunc{
		"database": db.HealthCheck,
		"redis":    nil,
		"rabbitmq": nil,
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	if jobQueue != nil {
		enqueuer = jobQueue
		checks["rabbitmq"] = jobQueue.HealthCheck
	}

	healthChecker := handlers.NewHealthChecker(handlers.ServiceInfo{
		Title:       cfg.AppTitle,
		Version:     cfg.AppVersion,
		Description: cfg.AppDescription,
		Port:        cfg.Port,
	}, generator, checks, zapLogger)
	generateHandler := handlers.NewGenerateHandler(generator, zapLogger)
	authHandler := handlers.NewAuthHandler(userRepo, tokens, enqueuer, mailer, cfg.AppURL, zapLogger)
	todoHandler := handlers.NewTodoHandler(todoRepo, generator, datetime.NewClock(cfg.Location), zapLogger)
	openAPIHandler := handlers.NewOpenAPIHandler()

	r := mux.NewRouter()

	// gorilla/mux runs middleware in registration order; the first one
	// registered is the outermost.
	if tracingEnabled {
		r.Use(otelmux.Middleware(serviceName))
	}
	r.Use(middleware.RequestID)
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins, zapLogger))
	r.Use(middleware.Logging(zapLogger))
	r.Use(middleware.Audit(zapLogger, proxies))
	r.Use(middleware.ErrorHandler(zapLogger))
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize))
	r.Use(middleware.ContentType)
	r.Use(middleware.Timeout(middleware.DefaultRequestTimeout))

	authMW := middleware.Auth(tokens, userRepo, userCache, zapLogger)

	// Public routes (no rate limiting for health checks)
	healthChecker.RegisterRoutes(r)
	openAPIHandler.RegisterRoutes(r)

	genRouter := r.PathPrefix("/gen_todo").Subrouter()
	genRouter.Use(rateLimiter.Middleware)
	genRouter.HandleFunc("", generateHandler.GenerateTodo).Methods("POST")

	authRouter := r.PathPrefix("/auth").Subrouter()
	authRouter.Use(rateLimiter.Middleware)
	authHandler.RegisterRoutes(authRouter)

	protectedAuthRouter := authRouter.PathPrefix("").Subrouter()
	protectedAuthRouter.Use(authMW)
	protectedAuthRouter.HandleFunc("/me", authHandler.GetMe).Methods("GET")

	todosRouter := r.PathPrefix("/todos").Subrouter()
	todosRouter.Use(authMW)
	todosRouter.Use(rateLimiter.Middleware)
	todoHandler.RegisterRoutes(todosRouter)

	// Catch-all OPTIONS route so the CORS middleware sees preflight requests
	r.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      middleware.DefaultRequestTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go rateLimiter.Start(ctx)

	if jobQueue != nil {
		dlqGC := queue.NewGarbageCollector(jobQueue, time.Hour, 24*time.Hour, zapLogger)
		go func() {
			if err := dlqGC.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				zapLogger.Error("dlq_garbage_collector_stopped_with_error", zap.Error(err))
			}
		}()
		zapLogger.Info("started_dlq_garbage_collector",
			zap.Duration("interval", time.Hour),
			zap.Duration("retention", 24*time.Hour),
		)
	}

	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("server_forced_to_shutdown", zap.Error(err))
	}

	zapLogger.Info("server_exited")
}

// connectRabbitMQ retries with exponential backoff to ride out broker startup.
func connectRabbitMQ(url string, zapLogger *zap.Logger) (*queue.RabbitMQQueue, error) {
	const maxRetries = 10
	const initialDelay = 2 * time.Second

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		q, err := queue.NewRabbitMQQueue(url, zapLogger)
		if err == nil {
			zapLogger.Info("connected_to_rabbitmq")
			return q, nil
		}
		lastErr = err

		delay := initialDelay * time.Duration(1<<uint(attempt))
		if delay > 30*time.Second {
			delay = 30 * time.Second
		}
		zapLogger.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxRetries),
			zap.String("error", logger.SanitizeError(err)),
			zap.Duration("retry_delay", delay),
		)
		time.Sleep(delay)
	}
	return nil, lastErr
}

func newMailer(cfg *config.Config, zapLogger *zap.Logger) mail.Mailer {
	if !cfg.SMTPEnabled() {
		zapLogger.Warn("smtp_not_configured_using_log_mailer")
		return mail.NewLogMailer(zapLogger)
	}
	return mail.NewSMTPMailer(mail.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.EmailUser,
		Password: cfg.EmailPass,
		From:     cfg.EmailFrom,
	})
}
