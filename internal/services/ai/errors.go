package ai

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/openai/openai-go/v3"
)

// FallbackReason names why a generation fell back to locally synthesized
// values. It is recorded in logs and spans only; callers see a valid record
// either way.
type FallbackReason string

const (
	ReasonNoAPIKey     FallbackReason = "no_api_key"
	ReasonThrottled    FallbackReason = "throttled"
	ReasonTimeout      FallbackReason = "timeout"
	ReasonCanceled     FallbackReason = "canceled"
	ReasonRateLimited  FallbackReason = "rate_limited"
	ReasonUnauthorized FallbackReason = "unauthorized"
	ReasonHTTPStatus   FallbackReason = "http_status"
	ReasonTransport    FallbackReason = "transport"
	ReasonNoChoices    FallbackReason = "no_choices"
	ReasonNoText       FallbackReason = "no_text"
	ReasonUnparsable   FallbackReason = "unparsable"
	ReasonPanic        FallbackReason = "panic"
)

// ClassifyError maps a completion error onto a FallbackReason.
func ClassifyError(err error) FallbackReason {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	if errors.Is(err, context.Canceled) {
		return ReasonCanceled
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests:
			return ReasonRateLimited
		case http.StatusUnauthorized, http.StatusForbidden:
			return ReasonUnauthorized
		default:
			return ReasonHTTPStatus
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReasonTimeout
	}
	return ReasonTransport
}

// StatusCode returns the upstream HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
