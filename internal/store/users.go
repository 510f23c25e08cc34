// ABOUTME: User account persistence on SQLiteStore
// ABOUTME: Backs the seeded local user and the web-auth signup/signin endpoints

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// CreateUser inserts a new account row.
// Returns ErrDuplicateEmail if the email is already registered.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *User) error {
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = now
	}
	if user.Plan == "" {
		user.Plan = PlanFree
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, email_verified, password, image, plan, token_balance, context_used, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		user.ID,
		user.Name,
		user.Email,
		user.EmailVerified,
		user.Password,
		nullString(user.Image),
		user.Plan,
		user.TokenBalance,
		user.ContextUsed,
		user.CreatedAt.Format(time.RFC3339),
		user.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isDuplicateEmail(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	s.logger.Debug("created user", "id", user.ID, "email", user.Email)
	return nil
}

// GetUser retrieves a user by ID.
// Returns ErrNotFound if the user doesn't exist.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*User, error) {
	return s.getUser(ctx, `WHERE id = ?`, id)
}

// GetUserByEmail retrieves a user by email.
// Returns ErrNotFound if the user doesn't exist.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.getUser(ctx, `WHERE email = ?`, email)
}

func (s *SQLiteStore) getUser(ctx context.Context, where string, arg any) (*User, error) {
	query := `
		SELECT id, name, email, email_verified, password, image, plan, token_balance, context_used, created_at, updated_at
		FROM users ` + where

	var user User
	var image sql.NullString
	var createdAt, updatedAt string

	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.EmailVerified,
		&user.Password,
		&image,
		&user.Plan,
		&user.TokenBalance,
		&user.ContextUsed,
		&createdAt,
		&updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	user.Image = image.String
	if parsed, err := time.Parse(time.RFC3339, createdAt); err != nil {
		slog.Warn("failed to parse user created_at", "id", user.ID, "error", err)
	} else {
		user.CreatedAt = parsed
	}
	if parsed, err := time.Parse(time.RFC3339, updatedAt); err != nil {
		slog.Warn("failed to parse user updated_at", "id", user.ID, "error", err)
	} else {
		user.UpdatedAt = parsed
	}

	return &user, nil
}

// CountUsers returns the number of account rows
func (s *SQLiteStore) CountUsers(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}
