package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/verveo/todo-generator/internal/services/ai"
)

// Config holds application configuration. It is built once at startup and
// treated as read-only afterwards.
type Config struct {
	// Service
	Port           string
	AppTitle       string
	AppVersion     string
	AppDescription string
	AppURL         string
	Location       *time.Location

	// Storage and messaging
	DatabaseURL      string
	RedisURL         string
	RabbitMQURL      string
	RabbitMQPrefetch int

	// Auth
	JWTSecret string
	JWTTTL    time.Duration

	// OpenRouter
	OpenRouterAPIKey    string
	OpenRouterBaseURL   string
	Model               string
	APITimeout          time.Duration
	MaxTokens           int
	Temperature         float64
	TopP                float64
	HTTPReferer         string
	TodoDurationHours   int
	AIRequestsPerSecond float64

	// Mail
	SMTPHost  string
	SMTPPort  int
	EmailUser string
	EmailPass string
	EmailFrom string

	// HTTP
	EnableHSTS         bool
	CORSAllowedOrigins []string
	TrustedProxies     []string

	// Diagnostics
	ServerDebugMode bool
	WorkerDebugMode bool
	OTELEnabled     bool
	OTELEndpoint    string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (*Config, error) {
	env := envReader{getenv: getenv}

	cfg := &Config{
		Port:           env.getEnv("PORT", "8000"),
		AppTitle:       env.getEnv("APP_TITLE", "Verveo Todo Generator"),
		AppVersion:     env.getEnv("APP_VERSION", "2.0.0"),
		AppDescription: env.getEnv("APP_DESCRIPTION", "API thông minh để tạo todo từ prompt sử dụng DeepSeek AI"),
		AppURL:         env.getEnv("APP_URL", "http://localhost:8000"),

		DatabaseURL:      env.getEnv("DATABASE_URL", ""),
		RedisURL:         env.getEnv("REDIS_URL", ""),
		RabbitMQURL:      env.getEnv("RABBITMQ_URL", ""),
		RabbitMQPrefetch: env.getEnvInt("RABBITMQ_PREFETCH", 1),

		JWTSecret: env.getEnv("JWT_SECRET", ""),
		JWTTTL:    time.Duration(env.getEnvInt("JWT_TTL_HOURS", 24)) * time.Hour,

		OpenRouterAPIKey:    env.getEnv("OPENROUTER_API_KEY", ""),
		OpenRouterBaseURL:   env.getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		Model:               env.getEnv("DEEPSEEK_MODEL", "deepseek/deepseek-v3.1-terminus"),
		APITimeout:          time.Duration(env.getEnvInt("API_TIMEOUT", 30000)) * time.Millisecond,
		MaxTokens:           env.getEnvInt("MAX_TOKENS", 500),
		Temperature:         env.getEnvFloat("TEMPERATURE", 0.7),
		TopP:                env.getEnvFloat("TOP_P", 0.9),
		HTTPReferer:         env.getEnv("HTTP_REFERER", "http://localhost:8000"),
		TodoDurationHours:   env.getEnvInt("TODO_DURATION_HOURS", 2),
		AIRequestsPerSecond: env.getEnvFloat("AI_REQUESTS_PER_SECOND", 0),

		SMTPHost:  env.getEnv("SMTP_HOST", ""),
		SMTPPort:  env.getEnvInt("SMTP_PORT", 587),
		EmailUser: env.getEnv("EMAIL_USER", ""),
		EmailPass: env.getEnv("EMAIL_PASS", ""),
		EmailFrom: env.getEnv("EMAIL_FROM", ""),

		EnableHSTS:         env.getEnvBool("ENABLE_HSTS", false),
		CORSAllowedOrigins: env.getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		TrustedProxies:     env.getEnvList("TRUSTED_PROXIES", nil),

		ServerDebugMode: env.getEnvBool("SERVER_DEBUG_MODE", false),
		WorkerDebugMode: env.getEnvBool("WORKER_DEBUG_MODE", false),
		OTELEnabled:     env.getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:    env.getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	if cfg.EmailFrom == "" {
		cfg.EmailFrom = cfg.EmailUser
	}

	cfg.Location = time.Local
	if tz := env.getEnv("APP_TIMEZONE", ""); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("invalid APP_TIMEZONE %q: %w", tz, err)
		}
		cfg.Location = loc
	}

	if cfg.APITimeout <= 0 {
		return nil, fmt.Errorf("API_TIMEOUT must be positive")
	}
	if cfg.MaxTokens <= 0 {
		return nil, fmt.Errorf("MAX_TOKENS must be positive")
	}
	if cfg.TodoDurationHours <= 0 {
		return nil, fmt.Errorf("TODO_DURATION_HOURS must be positive")
	}

	return cfg, nil
}

// ValidateServer checks the settings the API server cannot start without.
func (c *Config) ValidateServer() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	return nil
}

// ValidateWorker checks the settings the e-mail worker cannot start without.
func (c *Config) ValidateWorker() error {
	if c.RabbitMQURL == "" {
		return fmt.Errorf("RABBITMQ_URL is required for the worker")
	}
	return nil
}

// SMTPEnabled reports whether outbound mail should go through SMTP.
func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != "" && c.EmailFrom != ""
}

// AI projects the generator settings out of the process configuration.
func (c *Config) AI() ai.Config {
	return ai.Config{
		APIKey:            c.OpenRouterAPIKey,
		BaseURL:           c.OpenRouterBaseURL,
		Model:             c.Model,
		Timeout:           c.APITimeout,
		MaxTokens:         c.MaxTokens,
		Temperature:       c.Temperature,
		TopP:              c.TopP,
		HTTPReferer:       c.HTTPReferer,
		AppTitle:          c.AppTitle,
		DurationHours:     c.TodoDurationHours,
		RequestsPerSecond: c.AIRequestsPerSecond,
		Location:          c.Location,
	}
}

type envReader struct {
	getenv func(string) string
}

func (e envReader) getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(e.getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func (e envReader) getEnvBool(key string, defaultValue bool) bool {
	if value := e.getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func (e envReader) getEnvInt(key string, defaultValue int) int {
	if value := e.getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func (e envReader) getEnvFloat(key string, defaultValue float64) float64 {
	if value := e.getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func (e envReader) getEnvList(key string, defaultValue []string) []string {
	value := e.getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
