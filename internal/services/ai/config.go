package ai

import (
	"time"
)

const (
	// DefaultBaseURL is the OpenRouter API root
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	// DefaultModel is the model requested when none is configured
	DefaultModel = "deepseek/deepseek-v3.1-terminus"
	// DefaultTimeout bounds a single completion request
	DefaultTimeout = 30 * time.Second
	// DefaultMaxTokens is the completion token budget
	DefaultMaxTokens = 500
	// DefaultDurationHours is the length of a todo when only its start is known
	DefaultDurationHours = 2
)

// Config is the immutable generator configuration. It is captured once by
// NewGenerator; later changes to the caller's copy have no effect.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
	TopP        float64
	// HTTPReferer and AppTitle identify the application to OpenRouter.
	HTTPReferer string
	AppTitle    string
	// DurationHours is added to a resolved start time to derive a missing end time.
	DurationHours int
	// RequestsPerSecond throttles outbound completions. Zero disables throttling.
	RequestsPerSecond float64
	Location          *time.Location
}

// Enabled reports whether a credential is configured.
func (c Config) Enabled() bool {
	return c.APIKey != ""
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.DurationHours <= 0 {
		c.DurationHours = DefaultDurationHours
	}
	if c.Location == nil {
		c.Location = time.Local
	}
	return c
}
