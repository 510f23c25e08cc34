// ABOUTME: Persistence for the singleton API credential record
// ABOUTME: auth_credentials always holds at most one row with fixed id 1

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// UpsertCredentials stores the credential record, replacing any previous one.
// last_validated and updated_at are set to now.
func (s *SQLiteStore) UpsertCredentials(ctx context.Context, creds *Credentials) error {
	now := time.Now().UTC()
	createdAt := creds.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	query := `
		INSERT OR REPLACE INTO auth_credentials (id, api_key, email, subscription_tier, last_validated, created_at, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		creds.APIKey,
		nullString(creds.Email),
		nullString(creds.SubscriptionTier),
		now.Format(time.RFC3339),
		createdAt.Format(time.RFC3339),
		now.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving credentials: %w", err)
	}

	s.logger.Debug("saved credentials", "email", creds.Email)
	return nil
}

// GetCredentials retrieves the stored credential record.
// Returns ErrNotFound if no credentials have been saved.
func (s *SQLiteStore) GetCredentials(ctx context.Context) (*Credentials, error) {
	query := `
		SELECT api_key, email, subscription_tier, last_validated, created_at, updated_at
		FROM auth_credentials
		WHERE id = 1
	`

	var creds Credentials
	var email, tier, lastValidated sql.NullString
	var createdAt, updatedAt string

	err := s.db.QueryRowContext(ctx, query).Scan(
		&creds.APIKey,
		&email,
		&tier,
		&lastValidated,
		&createdAt,
		&updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying credentials: %w", err)
	}

	creds.Email = email.String
	creds.SubscriptionTier = tier.String
	if lastValidated.Valid {
		if parsed, err := time.Parse(time.RFC3339, lastValidated.String); err != nil {
			slog.Warn("failed to parse credentials last_validated", "error", err)
		} else {
			creds.LastValidated = parsed
		}
	}
	if parsed, err := time.Parse(time.RFC3339, createdAt); err != nil {
		slog.Warn("failed to parse credentials created_at", "error", err)
	} else {
		creds.CreatedAt = parsed
	}
	if parsed, err := time.Parse(time.RFC3339, updatedAt); err != nil {
		slog.Warn("failed to parse credentials updated_at", "error", err)
	} else {
		creds.UpdatedAt = parsed
	}

	return &creds, nil
}
