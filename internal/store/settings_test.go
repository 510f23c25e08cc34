// ABOUTME: Tests for settings persistence
// ABOUTME: Covers defaults, round trips, auto_save parsing fallback, and unknown keys

package store

import (
	"context"
	"testing"
)

func TestLoadSettings_Defaults(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	settings, err := store.LoadSettings(ctx)
	if err != nil {
		t.Fatalf("LoadSettings failed: %v", err)
	}

	if settings.Theme != "dark" {
		t.Errorf("default theme mismatch: got %q, want %q", settings.Theme, "dark")
	}
	if !settings.AutoSave {
		t.Error("expected auto save default true")
	}
	if settings.DefaultProjectPath != "~/Documents/GrimoireProjects" {
		t.Errorf("default project path mismatch: got %q", settings.DefaultProjectPath)
	}
	if settings.AnthropicAPIKey != "" {
		t.Errorf("expected unset API key, got %q", settings.AnthropicAPIKey)
	}
}

func TestSaveSettings_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	err := store.SaveSettings(ctx, &Settings{
		AnthropicAPIKey:    "sk-ant-abc123",
		Theme:              "light",
		AutoSave:           false,
		DefaultProjectPath: "/tmp/projects",
	})
	if err != nil {
		t.Fatalf("SaveSettings failed: %v", err)
	}

	got, err := store.LoadSettings(ctx)
	if err != nil {
		t.Fatalf("LoadSettings failed: %v", err)
	}

	if got.AnthropicAPIKey != "sk-ant-abc123" {
		t.Errorf("API key mismatch: got %q", got.AnthropicAPIKey)
	}
	if got.Theme != "light" {
		t.Errorf("theme mismatch: got %q", got.Theme)
	}
	if got.AutoSave {
		t.Error("expected auto save false")
	}
	if got.DefaultProjectPath != "/tmp/projects" {
		t.Errorf("project path mismatch: got %q", got.DefaultProjectPath)
	}
}

func TestSaveSettings_OverwritesPrevious(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	if err := store.SaveSettings(ctx, &Settings{Theme: "light", AutoSave: true}); err != nil {
		t.Fatalf("first SaveSettings failed: %v", err)
	}
	if err := store.SaveSettings(ctx, &Settings{Theme: "dark", AutoSave: false}); err != nil {
		t.Fatalf("second SaveSettings failed: %v", err)
	}

	got, err := store.LoadSettings(ctx)
	if err != nil {
		t.Fatalf("LoadSettings failed: %v", err)
	}
	if got.Theme != "dark" {
		t.Errorf("theme not overwritten: got %q", got.Theme)
	}
	if got.AutoSave {
		t.Error("auto save not overwritten")
	}

	// Upserts must not accumulate rows
	var count int
	if err := store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM settings`).Scan(&count); err != nil {
		t.Fatalf("counting settings failed: %v", err)
	}
	if count != 4 {
		t.Errorf("expected 4 settings rows, got %d", count)
	}
}

func TestLoadSettings_GarbageAutoSave(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	_, err := store.db.ExecContext(ctx, `
		INSERT INTO settings (id, key, value, updated_at)
		VALUES ('setting-x', 'auto_save', 'banana', '2026-01-01T00:00:00Z')
	`)
	if err != nil {
		t.Fatalf("inserting garbage setting failed: %v", err)
	}

	got, err := store.LoadSettings(ctx)
	if err != nil {
		t.Fatalf("LoadSettings failed: %v", err)
	}
	if !got.AutoSave {
		t.Error("expected auto save to fall back to true on unparseable value")
	}
}

func TestLoadSettings_UnknownKeysSkipped(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	_, err := store.db.ExecContext(ctx, `
		INSERT INTO settings (id, key, value, updated_at)
		VALUES ('setting-y', 'experimental_flag', 'whatever', '2026-01-01T00:00:00Z')
	`)
	if err != nil {
		t.Fatalf("inserting unknown setting failed: %v", err)
	}

	got, err := store.LoadSettings(ctx)
	if err != nil {
		t.Fatalf("LoadSettings failed: %v", err)
	}

	// Unknown keys must not disturb the typed fields
	if got.Theme != "dark" {
		t.Errorf("theme mismatch: got %q", got.Theme)
	}
	if !got.AutoSave {
		t.Error("expected auto save default true")
	}
}
