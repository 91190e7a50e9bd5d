package handlers

import (
	"context"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const dependencyCheckTimeout = 5 * time.Second

// CheckFunc probes one backing service. A nil error means healthy.
type CheckFunc func(ctx context.Context) error

// AIStatus reports what the health endpoint shows about the generator
type AIStatus interface {
	Enabled() bool
	Model() string
}

// ServiceInfo describes the running service
type ServiceInfo struct {
	Title       string
	Version     string
	Description string
	Port        string
}

// HealthChecker handles the root, ping and health endpoints
type HealthChecker struct {
	info    ServiceInfo
	ai      AIStatus
	checks  map[string]CheckFunc
	started time.Time
	now     func() time.Time
	logger  *zap.Logger
}

// NewHealthChecker creates a new health checker. checks maps dependency
// names to probes; a nil probe is reported as "not_configured".
func NewHealthChecker(info ServiceInfo, ai AIStatus, checks map[string]CheckFunc, logger *zap.Logger) *HealthChecker {
	return &HealthChecker{
		info:    info,
		ai:      ai,
		checks:  checks,
		started: time.Now(),
		now:     time.Now,
		logger:  logger,
	}
}

// RegisterRoutes registers health routes
func (h *HealthChecker) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/", h.Root).Methods("GET")
	r.HandleFunc("/ping", h.Ping).Methods("GET")
	r.HandleFunc("/health", h.Health).Methods("GET")
}

// RootResponse is the body of GET /
type RootResponse struct {
	Message     string `json:"message"`
	Version     string `json:"version"`
	Description string `json:"description"`
}

// Root handles GET /
func (h *HealthChecker) Root(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, RootResponse{
		Message:     h.info.Title + " is running!",
		Version:     h.info.Version,
		Description: h.info.Description,
	})
}

// Ping handles GET /ping
func (h *HealthChecker) Ping(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":    "pong",
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status       string            `json:"status"`
	Timestamp    string            `json:"timestamp"`
	Version      string            `json:"version"`
	AI           AIHealth          `json:"ai"`
	Server       ServerHealth      `json:"server"`
	Dependencies map[string]string `json:"dependencies"`
	Runtime      RuntimeHealth     `json:"runtime"`
}

// AIHealth reports the generator configuration without exposing the key
type AIHealth struct {
	Enabled          bool   `json:"enabled"`
	Model            string `json:"model"`
	OpenRouterAPIKey string `json:"openrouter_api_key"`
	ConnectionStatus string `json:"connection_status"`
}

type ServerHealth struct {
	Uptime float64 `json:"uptime"`
	Port   string  `json:"port"`
}

type RuntimeHealth struct {
	GoVersion   string `json:"go_version"`
	Goroutines  int    `json:"goroutines"`
	NumCPU      int    `json:"num_cpu"`
	MemoryAlloc uint64 `json:"memory_alloc"`
}

// Health handles GET /health. It always answers 200; the status field
// carries "degraded" when the AI key is missing or a dependency fails.
func (h *HealthChecker) Health(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	response := HealthResponse{
		Status:       "healthy",
		Timestamp:    now.UTC().Format(time.RFC3339),
		Version:      h.info.Version,
		AI:           h.aiHealth(),
		Server:       ServerHealth{Uptime: now.Sub(h.started).Seconds(), Port: h.info.Port},
		Dependencies: h.checkDependencies(r.Context()),
		Runtime:      runtimeHealth(),
	}

	if !response.AI.Enabled {
		response.Status = "degraded"
	}
	for _, state := range response.Dependencies {
		if state == "unhealthy" {
			response.Status = "degraded"
		}
	}

	respondJSON(w, http.StatusOK, response)
}

func (h *HealthChecker) aiHealth() AIHealth {
	out := AIHealth{
		OpenRouterAPIKey: "not_found",
		ConnectionStatus: "no_api_key",
	}
	if h.ai == nil {
		return out
	}
	out.Enabled = h.ai.Enabled()
	out.Model = h.ai.Model()
	if out.Enabled {
		out.OpenRouterAPIKey = "loaded"
		out.ConnectionStatus = "ready"
	}
	return out
}

func (h *HealthChecker) checkDependencies(ctx context.Context) map[string]string {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]string, len(names))
	for _, name := range names {
		check := h.checks[name]
		if check == nil {
			out[name] = "not_configured"
			continue
		}
		checkCtx, cancel := context.WithTimeout(ctx, dependencyCheckTimeout)
		err := check(checkCtx)
		cancel()
		if err != nil {
			h.logger.Warn("health_check_failed", zap.String("dependency", name), zap.Error(err))
			out[name] = "unhealthy"
			continue
		}
		out[name] = "healthy"
	}
	return out
}

func runtimeHealth() RuntimeHealth {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return RuntimeHealth{
		GoVersion:   runtime.Version(),
		Goroutines:  runtime.NumGoroutine(),
		NumCPU:      runtime.NumCPU(),
		MemoryAlloc: mem.Alloc,
	}
}
