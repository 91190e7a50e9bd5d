package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type capturedRequest struct {
	path    string
	headers http.Header
	body    struct {
		Model       string  `json:"model"`
		MaxTokens   int     `json:"max_tokens"`
		Temperature float64 `json:"temperature"`
		TopP        float64 `json:"top_p"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
}

func completionBody(content string) string {
	payload := map[string]any{
		"id":      "gen-1",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "deepseek/deepseek-v3.1-terminus",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	}
	b, _ := json.Marshal(payload)
	return string(b)
}

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func clientConfig(baseURL string) Config {
	return Config{
		APIKey:      "sk-or-test",
		BaseURL:     baseURL,
		Model:       "deepseek/deepseek-v3.1-terminus",
		Timeout:     2 * time.Second,
		MaxTokens:   500,
		Temperature: 0.7,
		TopP:        0.9,
		HTTPReferer: "http://localhost:8000",
		AppTitle:    "Verveo Todo Generator",
	}
}

func TestOpenRouterClient_Complete(t *testing.T) {
	t.Parallel()

	captured := make(chan capturedRequest, 1)
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var c capturedRequest
		c.path = r.URL.Path
		c.headers = r.Header.Clone()
		_ = json.NewDecoder(r.Body).Decode(&c.body)
		captured <- c

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody("  {\"title\":\"Buy milk\"}\n")))
	})

	client := NewOpenRouterClient(clientConfig(srv.URL+"/api/v1"), zap.NewNop(), true)
	text, ok := client.Complete(context.Background(), "system text", "user text")

	require.True(t, ok)
	assert.Equal(t, `{"title":"Buy milk"}`, text)

	c := <-captured
	assert.Equal(t, "/api/v1/chat/completions", c.path)
	assert.Equal(t, "Bearer sk-or-test", c.headers.Get("Authorization"))
	assert.Equal(t, "http://localhost:8000", c.headers.Get("HTTP-Referer"))
	assert.Equal(t, "Verveo Todo Generator", c.headers.Get("X-Title"))
	assert.Equal(t, "deepseek/deepseek-v3.1-terminus", c.body.Model)
	assert.Equal(t, 500, c.body.MaxTokens)
	assert.InDelta(t, 0.7, c.body.Temperature, 1e-9)
	assert.InDelta(t, 0.9, c.body.TopP, 1e-9)
	require.Len(t, c.body.Messages, 2)
	assert.Equal(t, "system", c.body.Messages[0].Role)
	assert.Equal(t, "system text", c.body.Messages[0].Content)
	assert.Equal(t, "user", c.body.Messages[1].Role)
	assert.Equal(t, "user text", c.body.Messages[1].Content)
}

func TestOpenRouterClient_FailuresCollapseToNoText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		timeout time.Duration
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, `{"error":{"message":"upstream down"}}`, http.StatusBadGateway)
			},
		},
		{
			name: "rate limited",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":{"message":"slow down","code":429}}`))
			},
		},
		{
			name: "no choices",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"id":"gen-1","object":"chat.completion","choices":[]}`))
			},
		},
		{
			name: "blank content",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(completionBody("   ")))
			},
		},
		{
			name:    "timeout",
			timeout: 50 * time.Millisecond,
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := newTestServer(t, tt.handler)
			cfg := clientConfig(srv.URL)
			if tt.timeout > 0 {
				cfg.Timeout = tt.timeout
			}

			text, ok := NewOpenRouterClient(cfg, zap.NewNop(), false).Complete(context.Background(), "s", "u")
			assert.False(t, ok)
			assert.Empty(t, text)
		})
	}
}

func TestOpenRouterClient_UnreachableHost(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	text, ok := NewOpenRouterClient(clientConfig(url), nil, false).Complete(context.Background(), "s", "u")
	assert.False(t, ok)
	assert.Empty(t, text)
}

func TestGenerator_EndToEnd(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody(`Kết quả: {"title":"Tập gym","priority":"low","labels":["Sức khỏe"],"startTime":"2024-05-10 18:00:00"}`)))
	})

	cfg := clientConfig(srv.URL)
	cfg.Location = testNow.Location()
	g := NewGenerator(cfg, zap.NewNop(), WithClock(testClock()))
	require.True(t, g.Enabled())

	got := g.Generate(context.Background(), "tập gym chiều nay")
	assert.Equal(t, "Tập gym", got.Title)
	assert.Equal(t, "low", string(got.Priority))
	assert.Equal(t, "2024-05-10 20:00:00", got.EndTime)
	require.NotNil(t, got.CreatedBy)
}
