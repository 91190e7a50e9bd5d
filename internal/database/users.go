package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/verveo/todo-generator/internal/models"
)

// UserRepository handles user database operations
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, email, password_hash, name, is_verified, verification_token, created_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	u := &models.User{}
	var token sql.NullString
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.IsVerified, &token, &u.CreatedAt); err != nil {
		return nil, err
	}
	if token.Valid {
		u.VerificationToken = &token.String
	}
	return u, nil
}

// Create inserts a user and fills in its id and creation time.
// A duplicate e-mail yields ErrUserExists.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (email, password_hash, name, is_verified, verification_token)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		user.Email,
		user.PasswordHash,
		user.Name,
		user.IsVerified,
		user.VerificationToken,
	).Scan(&user.ID, &user.CreatedAt)
	if isUniqueViolation(err) {
		return ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// GetByEmail retrieves a user by e-mail address
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return u, nil
}

// VerifyByToken marks the owner of token verified and clears the token.
// An unknown token yields ErrNotFound.
func (r *UserRepository) VerifyByToken(ctx context.Context, token string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET is_verified = TRUE, verification_token = NULL
		WHERE verification_token = $1
	`, token)
	if err != nil {
		return fmt.Errorf("failed to verify user: %w", err)
	}
	return expectRows(res)
}

// VerifyByEmail marks a user verified without a token.
func (r *UserRepository) VerifyByEmail(ctx context.Context, email string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET is_verified = TRUE, verification_token = NULL
		WHERE email = $1
	`, email)
	if err != nil {
		return fmt.Errorf("failed to verify user: %w", err)
	}
	return expectRows(res)
}

func expectRows(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
