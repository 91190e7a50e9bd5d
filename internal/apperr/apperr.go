// Package apperr defines the client-facing error catalog. Every error a
// handler returns is one of these keys, rendered with its HTTP status.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Key identifies a catalog entry
type Key string

const (
	Internal       Key = "error.internal"
	RequestInvalid Key = "error.request.invalid"
	Forbidden      Key = "error.forbidden"
	Unauthorized   Key = "error.unauthorized"

	AuthUserExists               Key = "error.auth.user_exists"
	AuthInvalidCredentials       Key = "error.auth.invalid_credentials"
	AuthCurrentPasswordIncorrect Key = "error.auth.current_password_incorrect"
	AuthEmailNotVerified         Key = "error.auth.email_not_verified"
	AuthInvalidToken             Key = "error.auth.invalid_token"
	AuthTokenExpired             Key = "error.auth.token_expired"
	AuthResetTokenExpired        Key = "error.auth.reset_token_expired"

	TodoNotFound Key = "error.todo.not_found"
)

type entry struct {
	message string
	status  int
}

var catalog = map[Key]entry{
	Internal:       {"Internal Server Error", http.StatusInternalServerError},
	RequestInvalid: {"Invalid request format", http.StatusUnprocessableEntity},
	Forbidden:      {"Forbidden", http.StatusForbidden},
	Unauthorized:   {"Unauthorized", http.StatusUnauthorized},

	AuthUserExists:               {"User already exists", http.StatusConflict},
	AuthInvalidCredentials:       {"Invalid email or password", http.StatusUnauthorized},
	AuthCurrentPasswordIncorrect: {"Current password is incorrect", http.StatusForbidden},
	AuthEmailNotVerified:         {"Please verify your email first", http.StatusForbidden},
	AuthInvalidToken:             {"Invalid token", http.StatusUnauthorized},
	AuthTokenExpired:             {"Token has expired", http.StatusUnauthorized},
	AuthResetTokenExpired:        {"Reset token has expired", http.StatusUnauthorized},

	TodoNotFound: {"Todo not found or access denied", http.StatusNotFound},
}

// Message returns the catalog message for key, or the key itself when unknown.
func Message(key Key) string {
	if e, ok := catalog[key]; ok {
		return e.message
	}
	return string(key)
}

// Status returns the HTTP status for key, or 500 when unknown.
func Status(key Key) int {
	if e, ok := catalog[key]; ok {
		return e.status
	}
	return http.StatusInternalServerError
}

// Error is a catalog error with an optional description and cause.
type Error struct {
	Key         Key
	Status      int
	Description string
	Err         error
}

// New returns an Error for key with the catalog message as description.
func New(key Key) *Error {
	return &Error{Key: key, Status: Status(key), Description: Message(key)}
}

// Wrap returns an Error for key that keeps err as its cause.
func Wrap(key Key, err error) *Error {
	e := New(key)
	e.Err = err
	return e
}

// WithDescription returns a copy of e with a custom description.
func (e *Error) WithDescription(desc string) *Error {
	c := *e
	c.Description = desc
	return &c
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Key, e.Err)
	}
	return string(e.Key)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// From converts any error into a catalog error. Unknown errors become
// error.internal with their cause kept for logging.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Wrap(Internal, err)
}

// ErrorData is the detail block of an error payload.
type ErrorData struct {
	ErrorCode   int    `json:"errorCode"`
	ErrorKey    Key    `json:"errorKey"`
	Description string `json:"description"`
}

// Payload is the JSON body written for every failed request.
type Payload struct {
	Status      int       `json:"status"`
	Message     Key       `json:"message"`
	Data        ErrorData `json:"data"`
	Description string    `json:"description"`
}

// Payload renders e as a response body.
func (e *Error) Payload() Payload {
	desc := e.Description
	if desc == "" {
		desc = Message(e.Key)
	}
	return Payload{
		Status:  1,
		Message: e.Key,
		Data: ErrorData{
			ErrorCode:   e.Status,
			ErrorKey:    e.Key,
			Description: desc,
		},
		Description: desc,
	}
}
