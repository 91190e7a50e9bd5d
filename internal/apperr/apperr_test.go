package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogStatuses(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key    Key
		status int
	}{
		{Internal, http.StatusInternalServerError},
		{RequestInvalid, http.StatusUnprocessableEntity},
		{Forbidden, http.StatusForbidden},
		{Unauthorized, http.StatusUnauthorized},
		{AuthUserExists, http.StatusConflict},
		{AuthInvalidCredentials, http.StatusUnauthorized},
		{AuthCurrentPasswordIncorrect, http.StatusForbidden},
		{AuthEmailNotVerified, http.StatusForbidden},
		{AuthInvalidToken, http.StatusUnauthorized},
		{AuthTokenExpired, http.StatusUnauthorized},
		{AuthResetTokenExpired, http.StatusUnauthorized},
		{TodoNotFound, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(string(tt.key), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.status, Status(tt.key))
			assert.NotEqual(t, string(tt.key), Message(tt.key))
		})
	}
}

func TestUnknownKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "error.something", Message(Key("error.something")))
	assert.Equal(t, http.StatusInternalServerError, Status(Key("error.something")))
}

func TestFrom(t *testing.T) {
	t.Parallel()

	cause := errors.New("db down")
	wrapped := fmt.Errorf("handler: %w", New(TodoNotFound))

	assert.Equal(t, TodoNotFound, From(wrapped).Key)

	internal := From(cause)
	assert.Equal(t, Internal, internal.Key)
	assert.ErrorIs(t, internal, cause)
}

func TestPayloadShape(t *testing.T) {
	t.Parallel()

	body, err := json.Marshal(New(TodoNotFound).Payload())
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"status": 1,
		"message": "error.todo.not_found",
		"data": {
			"errorCode": 404,
			"errorKey": "error.todo.not_found",
			"description": "Todo not found or access denied"
		},
		"description": "Todo not found or access denied"
	}`, string(body))
}

func TestWithDescription(t *testing.T) {
	t.Parallel()

	base := New(RequestInvalid)
	custom := base.WithDescription("prompt is required")

	assert.Equal(t, "prompt is required", custom.Payload().Description)
	assert.Equal(t, "Invalid request format", base.Description)
}
