package ai

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/verveo/todo-generator/internal/datetime"
	"github.com/verveo/todo-generator/internal/models"
	"github.com/verveo/todo-generator/internal/request"
)

const tracerName = "github.com/verveo/todo-generator/internal/services/ai"

// Generator turns free-text prompts into complete todo records. It is safe
// for concurrent use; each call is independent.
type Generator struct {
	cfg       Config
	client    CompletionClient
	clock     datetime.Clock
	limiter   *rate.Limiter
	logger    *zap.Logger
	tracer    trace.Tracer
	debugMode bool
}

// Option customizes a Generator.
type Option func(*Generator)

// WithClient replaces the OpenRouter client.
func WithClient(client CompletionClient) Option {
	return func(g *Generator) { g.client = client }
}

// WithClock replaces the wall clock.
func WithClock(clock datetime.Clock) Option {
	return func(g *Generator) { g.clock = clock }
}

// WithDebug enables prompt and completion previews in debug logs.
func WithDebug(debug bool) Option {
	return func(g *Generator) { g.debugMode = debug }
}

// NewGenerator creates a generator from cfg. Without WithClient it talks to
// OpenRouter using cfg's credential.
func NewGenerator(cfg Config, logger *zap.Logger, opts ...Option) *Generator {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	g := &Generator{
		cfg:    cfg,
		clock:  datetime.NewClock(cfg.Location),
		logger: logger,
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(g)
	}

	if g.client == nil && cfg.Enabled() {
		g.client = NewOpenRouterClient(cfg, logger, g.debugMode)
	}
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return g
}

// Enabled reports whether prompts are sent to the model.
func (g *Generator) Enabled() bool {
	return g.cfg.Enabled() && g.client != nil
}

// Model returns the configured model identifier.
func (g *Generator) Model() string {
	return g.cfg.Model
}

// Generate always returns a complete record. Model output is used where it is
// valid; everything else is synthesized from the prompt.
func (g *Generator) Generate(ctx context.Context, prompt string) (todo models.GeneratedTodo) {
	ctx, span := g.tracer.Start(ctx, "ai.generate_todo",
		trace.WithAttributes(attribute.String("ai.model", g.cfg.Model)))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("todo_generation_panic",
				zap.String("panic", fmt.Sprint(r)),
				zap.String("request_id", request.RequestIDFromContext(ctx)),
			)
			todo = g.fallback(ctx, span, prompt, ReasonPanic)
		}
	}()

	if !g.Enabled() {
		return g.fallback(ctx, span, prompt, ReasonNoAPIKey)
	}

	if g.limiter != nil {
		waitCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
		err := g.limiter.Wait(waitCtx)
		cancel()
		if err != nil {
			return g.fallback(ctx, span, prompt, ReasonThrottled)
		}
	}

	userPrompt := BuildUserPrompt(prompt, g.clock.Now())
	text, ok := g.client.Complete(ctx, SystemPrompt, userPrompt)
	if !ok {
		return g.fallback(ctx, span, prompt, ReasonNoText)
	}

	result, ok := Normalize(text, prompt, g.clock, g.cfg.DurationHours)
	if !ok {
		if g.debugMode {
			g.logger.Debug("llm_response_unparsable",
				zap.String("response_preview", SanitizeResponse(text, false)),
				zap.String("request_id", request.RequestIDFromContext(ctx)),
			)
		}
		return g.fallback(ctx, span, prompt, ReasonUnparsable)
	}

	span.SetAttributes(
		attribute.String("ai.outcome", "generated"),
		attribute.Float64("ai.confidence", result.Confidence),
	)
	return result
}

func (g *Generator) fallback(ctx context.Context, span trace.Span, prompt string, reason FallbackReason) models.GeneratedTodo {
	span.SetAttributes(
		attribute.String("ai.outcome", "fallback"),
		attribute.String("ai.fallback_reason", string(reason)),
	)
	level := zap.InfoLevel
	if reason == ReasonNoAPIKey {
		level = zap.DebugLevel
	}
	g.logger.Log(level, "todo_generation_fallback",
		zap.String("reason", string(reason)),
		zap.String("request_id", request.RequestIDFromContext(ctx)),
	)
	return Fallback(prompt, g.clock, g.cfg.DurationHours)
}
