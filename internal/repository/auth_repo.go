package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"reflow_oven/internal/models"
)

var (
	// ErrUserExists is returned by Create when the username is taken.
	ErrUserExists = errors.New("username already taken")
	// ErrUserNotFound is returned by GetByUsername for an unknown username.
	ErrUserNotFound = errors.New("user not found")
)

const (
	createUserSQL = `INSERT INTO users (username, password_hash) VALUES (?, ?)`
	findUserSQL   = `SELECT id, username, password_hash FROM users WHERE username = ?`
)

// UserRepository keeps operator accounts in the users table.
type UserRepository struct {
	db *sql.DB
}

var _ Authorization = (*UserRepository)(nil)

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create stores a new account and returns its id.
func (r *UserRepository) Create(ctx context.Context, username, passwordHash string) (int, error) {
	res, err := r.db.ExecContext(ctx, createUserSQL, username, passwordHash)
	switch {
	case err != nil && isUniqueViolation(err):
		return 0, fmt.Errorf("create user %q: %w", username, ErrUserExists)
	case err != nil:
		return 0, fmt.Errorf("create user %q: %w", username, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create user %q: read id: %w", username, err)
	}
	return int(id), nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (models.User, error) {
	var u models.User
	err := r.db.QueryRowContext(ctx, findUserSQL, username).Scan(&u.ID, &u.Username, &u.PasswordHash)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return models.User{}, fmt.Errorf("find user %q: %w", username, ErrUserNotFound)
	case err != nil:
		return models.User{}, fmt.Errorf("find user %q: %w", username, err)
	}
	return u, nil
}

// sqlite reports constraint violations only through the message text.
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
