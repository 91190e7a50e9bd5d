package models

import (
	"time"
)

// User represents a registered account
type User struct {
	ID                int64     `json:"id"`
	Email             string    `json:"email"`
	PasswordHash      string    `json:"-"`
	Name              string    `json:"name"`
	IsVerified        bool      `json:"is_verified"`
	VerificationToken *string   `json:"-"`
	CreatedAt         time.Time `json:"created_at"`
}

// PublicUser is the subset of a user returned to clients
type PublicUser struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Public strips credentials from the user.
func (u *User) Public() PublicUser {
	return PublicUser{ID: u.ID, Email: u.Email, Name: u.Name}
}
