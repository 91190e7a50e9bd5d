package middleware

import (
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/verveo/todo-generator/internal/apperr"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestContentType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		method      string
		contentType string
		body        string
		wantStatus  int
	}{
		{name: "GET without body", method: "GET", wantStatus: http.StatusOK},
		{name: "POST json", method: "POST", contentType: "application/json", body: `{}`, wantStatus: http.StatusOK},
		{name: "POST json with charset", method: "POST", contentType: "application/json; charset=utf-8", body: `{}`, wantStatus: http.StatusOK},
		{name: "PUT missing content type", method: "PUT", body: `{}`, wantStatus: http.StatusUnprocessableEntity},
		{name: "POST form", method: "POST", contentType: "application/x-www-form-urlencoded", body: "a=b", wantStatus: http.StatusUnsupportedMediaType},
		{name: "POST empty body", method: "POST", wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var body io.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}
			req := httptest.NewRequest(tt.method, "/todos", body)
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			w := httptest.NewRecorder()
			ContentType(okHandler).ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if w.Code != http.StatusOK {
				if key := decodeErrorKey(t, w); key != apperr.RequestInvalid {
					t.Errorf("Expected key %s, got %s", apperr.RequestInvalid, key)
				}
			}
		})
	}
}

func TestMaxRequestSize(t *testing.T) {
	t.Parallel()

	readAll := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name       string
		body       string
		chunked    bool
		wantStatus int
	}{
		{name: "within limit", body: strings.Repeat("a", 16), wantStatus: http.StatusOK},
		{name: "declared too large", body: strings.Repeat("a", 64), wantStatus: http.StatusRequestEntityTooLarge},
		{name: "streamed too large", body: strings.Repeat("a", 64), chunked: true, wantStatus: http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest("POST", "/gen_todo", strings.NewReader(tt.body))
			if tt.chunked {
				req.ContentLength = -1
			}
			w := httptest.NewRecorder()
			MaxRequestSize(32)(readAll).ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		enableHSTS bool
		https      bool
		proxied    bool
		wantHSTS   bool
	}{
		{name: "plain http", enableHSTS: true},
		{name: "tls without hsts", https: true},
		{name: "tls with hsts", enableHSTS: true, https: true, wantHSTS: true},
		{name: "proxied tls with hsts", enableHSTS: true, proxied: true, wantHSTS: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest("GET", "/", nil)
			if tt.https {
				req.TLS = &tls.ConnectionState{}
			}
			if tt.proxied {
				req.Header.Set("X-Forwarded-Proto", "https")
			}
			w := httptest.NewRecorder()
			SecurityHeaders(tt.enableHSTS)(okHandler).ServeHTTP(w, req)

			if w.Header().Get("X-Content-Type-Options") != "nosniff" {
				t.Error("Expected X-Content-Type-Options nosniff")
			}
			if w.Header().Get("X-Frame-Options") != "DENY" {
				t.Error("Expected X-Frame-Options DENY")
			}
			if got := w.Header().Get("Strict-Transport-Security") != ""; got != tt.wantHSTS {
				t.Errorf("HSTS present = %v, want %v", got, tt.wantHSTS)
			}
		})
	}
}

func TestTimeout(t *testing.T) {
	t.Parallel()

	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
			w.WriteHeader(http.StatusOK)
		}
	})

	w := httptest.NewRecorder()
	Timeout(20*time.Millisecond)(slow).ServeHTTP(w, httptest.NewRequest("GET", "/gen_todo", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected status 503, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected JSON content type, got %q", ct)
	}
	if key := decodeErrorKey(t, w); key != apperr.Internal {
		t.Errorf("Expected key %s, got %s", apperr.Internal, key)
	}
}

func TestCORS(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		allowed    []string
		origin     string
		wantOrigin string
		wantCreds  bool
	}{
		{name: "wildcard", allowed: []string{"*"}, origin: "https://any.example", wantOrigin: "*"},
		{name: "listed origin", allowed: []string{"https://app.example"}, origin: "https://app.example", wantOrigin: "https://app.example", wantCreds: true},
		{name: "unlisted origin", allowed: []string{"https://app.example"}, origin: "https://evil.example"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodOptions, "/todos", nil)
			req.Header.Set("Origin", tt.origin)
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			w := httptest.NewRecorder()
			CORS(tt.allowed, zap.NewNop())(okHandler).ServeHTTP(w, req)

			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if got := w.Header().Get("Access-Control-Allow-Credentials") == "true"; got != tt.wantCreds {
				t.Errorf("Allow-Credentials = %v, want %v", got, tt.wantCreds)
			}
		})
	}
}
