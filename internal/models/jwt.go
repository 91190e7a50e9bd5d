package models

import "time"

// JWTClaims represents the claims carried by an access token
type JWTClaims struct {
	UserID    int64     `json:"userId"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}
