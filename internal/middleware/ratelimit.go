package middleware

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	stdlibmw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	memorystore "github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"

	"github.com/verveo/todo-generator/internal/apperr"
	"github.com/verveo/todo-generator/internal/database"
	"github.com/verveo/todo-generator/internal/models"
	"github.com/verveo/todo-generator/internal/request"
)

const (
	// DefaultRate applies until a rate is stored under models.RatelimitKeyAPI
	DefaultRate = "100-M"
	// DefaultReloadInterval is how often the stored rate is re-read
	DefaultReloadInterval = time.Minute

	storePrefix = "verveo:ratelimit"

	rateLimitedKey apperr.Key = "error.rate_limited"
)

// NewRedisClient parses redisURL and checks the server is reachable.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// RateLimiter limits requests per client IP with ulule/limiter. The IP is the
// connecting peer unless it is one of the trusted proxies. Counters live
// in Redis when a client is given and in process memory otherwise. The rate
// is read from the ratelimit_config table and hot-reloaded.
type RateLimiter struct {
	store       limiter.Store
	repo        database.RatelimitConfigStore
	defaultRate limiter.Rate
	interval    time.Duration
	proxies     *request.TrustedProxies
	logger      *zap.Logger

	mu       sync.RWMutex
	instance *limiter.Limiter
}

// NewRateLimiter creates a rate limiter. redisClient, repo and proxies may be nil.
func NewRateLimiter(redisClient *redis.Client, repo database.RatelimitConfigStore, proxies *request.TrustedProxies, defaultRate string, interval time.Duration, logger *zap.Logger) (*RateLimiter, error) {
	if defaultRate == "" {
		defaultRate = DefaultRate
	}
	rate, err := limiter.NewRateFromFormatted(defaultRate)
	if err != nil {
		return nil, fmt.Errorf("invalid default rate %q: %w", defaultRate, err)
	}
	if interval <= 0 {
		interval = DefaultReloadInterval
	}

	var store limiter.Store
	if redisClient != nil {
		store, err = redisstore.NewStoreWithOptions(redisClient, limiter.StoreOptions{Prefix: storePrefix})
		if err != nil {
			return nil, fmt.Errorf("failed to create redis limiter store: %w", err)
		}
	} else {
		store = memorystore.NewStoreWithOptions(limiter.StoreOptions{
			Prefix:          storePrefix,
			CleanUpInterval: time.Minute,
		})
	}

	return &RateLimiter{
		store:       store,
		repo:        repo,
		defaultRate: rate,
		interval:    interval,
		proxies:     proxies,
		logger:      logger,
		instance:    limiter.New(store, rate),
	}, nil
}

// Rate returns the rate currently enforced.
func (rl *RateLimiter) Rate() limiter.Rate {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return rl.instance.Rate
}

// Reload re-reads the stored rate. A missing row means the default rate; a
// read failure or an unparsable row keeps the current rate.
func (rl *RateLimiter) Reload(ctx context.Context) {
	if rl.repo == nil {
		return
	}

	rate := rl.defaultRate
	cfg, err := rl.repo.Get(ctx, models.RatelimitKeyAPI)
	if err != nil {
		rl.logger.Warn("ratelimit_config_load_failed", zap.Error(err))
		return
	}
	if cfg != nil && cfg.Rate != "" {
		parsed, err := limiter.NewRateFromFormatted(cfg.Rate)
		if err != nil {
			rl.logger.Error("ratelimit_config_invalid",
				zap.String("rate", cfg.Rate),
				zap.Error(err),
			)
			return
		}
		rate = parsed
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.instance.Rate.Formatted == rate.Formatted {
		return
	}
	rl.instance = limiter.New(rl.store, rate)
	rl.logger.Info("ratelimit_reloaded", zap.String("rate", rate.Formatted))
}

// Start reloads the rate every interval until ctx is cancelled.
func (rl *RateLimiter) Start(ctx context.Context) {
	rl.Reload(ctx)

	ticker := time.NewTicker(rl.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.Reload(ctx)
		}
	}
}

// Middleware wraps next with per-IP rate limiting. Store failures let the
// request through.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rl.mu.RLock()
		instance := rl.instance
		rl.mu.RUnlock()

		mw := stdlibmw.NewMiddleware(instance,
			stdlibmw.WithKeyGetter(rl.proxies.ClientIP),
			stdlibmw.WithLimitReachedHandler(limitReached),
			stdlibmw.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
				rl.logger.Warn("ratelimit_store_error", zap.Error(err))
				next.ServeHTTP(w, r)
			}),
		)
		mw.Handler(next).ServeHTTP(w, r)
	})
}

func limitReached(w http.ResponseWriter, _ *http.Request) {
	apperr.Write(w, &apperr.Error{
		Key:         rateLimitedKey,
		Status:      http.StatusTooManyRequests,
		Description: "Too many requests, please try again later",
	})
}
