// ABOUTME: Settings persistence on SQLiteStore backed by a key/value table
// ABOUTME: Saves the four recognized keys as upserts and applies defaults on load

package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/2389/grimoire/internal/ident"
)

// Setting keys persisted in the settings table
const (
	settingAnthropicAPIKey    = "anthropic_api_key"
	settingTheme              = "theme"
	settingAutoSave           = "auto_save"
	settingDefaultProjectPath = "default_project_path"
)

// Defaults applied when a setting has never been written
const (
	defaultTheme       = "dark"
	defaultProjectPath = "~/Documents/GrimoireProjects"
)

// SaveSettings upserts all recognized settings in one transaction.
// An unset API key is stored as an empty string.
func (s *SQLiteStore) SaveSettings(ctx context.Context, settings *Settings) error {
	now := time.Now().UTC().Format(time.RFC3339)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	pairs := []struct {
		key   string
		value string
	}{
		{settingAnthropicAPIKey, settings.AnthropicAPIKey},
		{settingTheme, settings.Theme},
		{settingAutoSave, strconv.FormatBool(settings.AutoSave)},
		{settingDefaultProjectPath, settings.DefaultProjectPath},
	}

	for _, p := range pairs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO settings (id, key, value, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
		`, ident.New("setting"), p.key, p.value, now); err != nil {
			return fmt.Errorf("saving setting %s: %w", p.key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing settings: %w", err)
	}

	s.logger.Debug("saved settings", "theme", settings.Theme, "auto_save", settings.AutoSave)
	return nil
}

// LoadSettings reads all settings rows into a typed struct.
// Missing keys get defaults, an unparseable auto_save falls back to true,
// and unknown keys are skipped.
func (s *SQLiteStore) LoadSettings(ctx context.Context) (*Settings, error) {
	settings := &Settings{
		Theme:              defaultTheme,
		AutoSave:           true,
		DefaultProjectPath: defaultProjectPath,
	}

	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("querying settings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scanning setting row: %w", err)
		}

		switch key {
		case settingAnthropicAPIKey:
			settings.AnthropicAPIKey = value
		case settingTheme:
			settings.Theme = value
		case settingAutoSave:
			parsed, err := strconv.ParseBool(value)
			if err != nil {
				parsed = true
			}
			settings.AutoSave = parsed
		case settingDefaultProjectPath:
			settings.DefaultProjectPath = value
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating settings rows: %w", err)
	}

	return settings, nil
}
