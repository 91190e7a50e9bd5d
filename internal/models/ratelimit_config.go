package models

import "time"

// RatelimitKeyAPI names the rate applied to the public API routes.
const RatelimitKeyAPI = "api"

// RatelimitConfig holds a stored rate in limiter notation (e.g. "5-S", "100-M").
type RatelimitConfig struct {
	ConfigKey string    `json:"config_key"`
	Rate      string    `json:"rate"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
