package ai

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"go.uber.org/zap"

	"github.com/verveo/todo-generator/internal/request"
)

// CompletionClient sends a system/user prompt pair to a chat model. Every
// failure collapses to ok == false; implementations never return an error.
type CompletionClient interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (text string, ok bool)
}

// OpenRouterClient talks to an OpenAI-compatible /chat/completions endpoint.
type OpenRouterClient struct {
	client      openai.Client
	model       string
	maxTokens   int
	temperature float64
	topP        float64
	timeout     time.Duration
	logger      *zap.Logger
	debugMode   bool
}

// NewOpenRouterClient creates a client from cfg. A nil logger disables logging.
func NewOpenRouterClient(cfg Config, logger *zap.Logger, debugMode bool) *OpenRouterClient {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := &http.Client{
		Timeout: cfg.Timeout,
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if cfg.HTTPReferer != "" {
		opts = append(opts, option.WithHeader("HTTP-Referer", cfg.HTTPReferer))
	}
	if cfg.AppTitle != "" {
		opts = append(opts, option.WithHeader("X-Title", cfg.AppTitle))
	}

	return &OpenRouterClient{
		client:      openai.NewClient(opts...),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		topP:        cfg.TopP,
		timeout:     cfg.Timeout,
		logger:      logger,
		debugMode:   debugMode,
	}
}

// Complete returns the trimmed text of the first choice.
func (c *OpenRouterClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	requestID := request.RequestIDFromContext(ctx)
	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		MaxTokens:   openai.Int(int64(c.maxTokens)),
		Temperature: openai.Float(c.temperature),
		TopP:        openai.Float(c.topP),
	}

	if c.debugMode {
		c.logger.Debug("llm_api_request",
			zap.String("operation", "generate_todo"),
			zap.String("model", c.model),
			zap.Int("prompt_length", len(userPrompt)),
			zap.String("prompt_preview", SanitizePrompt(userPrompt, true)),
			zap.String("request_id", requestID),
		)
	}

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, params)
	latency := time.Since(start)
	if err != nil {
		c.logger.Warn("llm_api_error",
			zap.String("operation", "generate_todo"),
			zap.String("model", c.model),
			zap.String("reason", string(ClassifyError(err))),
			zap.Int("status_code", StatusCode(err)),
			zap.String("error", SanitizeResponse(err.Error(), false)),
			zap.String("request_id", requestID),
			zap.Int64("latency_ms", latency.Milliseconds()),
		)
		return "", false
	}

	if len(resp.Choices) == 0 {
		c.logger.Warn("llm_api_error",
			zap.String("operation", "generate_todo"),
			zap.String("model", c.model),
			zap.String("reason", string(ReasonNoChoices)),
			zap.String("request_id", requestID),
			zap.Int64("latency_ms", latency.Milliseconds()),
		)
		return "", false
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if c.debugMode {
		c.logger.Debug("llm_api_response",
			zap.String("operation", "generate_todo"),
			zap.String("model", c.model),
			zap.Int("response_length", len(content)),
			zap.String("response_preview", SanitizeResponse(content, true)),
			zap.String("request_id", requestID),
			zap.Int64("latency_ms", latency.Milliseconds()),
		)
	}
	if content == "" {
		return "", false
	}
	return content, true
}
