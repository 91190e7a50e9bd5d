package database

import (
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when a row does not exist or is not visible to the caller
	ErrNotFound = errors.New("not found")
	// ErrUserExists is returned when registering an e-mail that is already taken
	ErrUserExists = errors.New("user already exists")
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
