// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Handles schema creation, migrations, and default local user seeding

package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"
)

// maxOpenConns caps the connection pool. SQLite allows one writer at a time;
// a handful of connections is plenty for a single desktop client.
const maxOpenConns = 5

// localUserPassword is the password of the seeded local account
const localUserPassword = "local"

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	if err := s.ensureLocalUser(); err != nil {
		db.Close()
		return nil, fmt.Errorf("seeding local user: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id             TEXT PRIMARY KEY,
			name           TEXT NOT NULL,
			email          TEXT NOT NULL UNIQUE,
			email_verified INTEGER NOT NULL DEFAULT 0,
			password       TEXT NOT NULL,
			image          TEXT,
			plan           TEXT NOT NULL DEFAULT 'FREE',
			token_balance  INTEGER NOT NULL DEFAULT 10000,
			context_used   REAL NOT NULL DEFAULT 0,
			created_at     TEXT NOT NULL,
			updated_at     TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);

		CREATE TABLE IF NOT EXISTS projects (
			id            TEXT PRIMARY KEY,
			name          TEXT NOT NULL,
			description   TEXT,
			project_type  TEXT NOT NULL,
			active_agents TEXT NOT NULL DEFAULT '[]',
			current_code  TEXT,
			visibility    TEXT NOT NULL DEFAULT 'PRIVATE',
			likes         INTEGER NOT NULL DEFAULT 0,
			forks         INTEGER NOT NULL DEFAULT 0,
			user_id       TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at    TEXT NOT NULL,
			updated_at    TEXT NOT NULL,

			CHECK (visibility IN ('PRIVATE', 'PUBLIC'))
		);

		CREATE INDEX IF NOT EXISTS idx_projects_user ON projects(user_id);
		CREATE INDEX IF NOT EXISTS idx_projects_user_updated ON projects(user_id, updated_at);

		CREATE TABLE IF NOT EXISTS project_files (
			id         TEXT PRIMARY KEY,
			project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			path       TEXT NOT NULL,
			content    TEXT NOT NULL,
			language   TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,

			UNIQUE(project_id, path)
		);

		CREATE INDEX IF NOT EXISTS idx_project_files_project ON project_files(project_id);

		CREATE TABLE IF NOT EXISTS messages (
			id         TEXT PRIMARY KEY,
			role       TEXT NOT NULL,
			content    TEXT NOT NULL,
			project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_messages_project ON messages(project_id);
		CREATE INDEX IF NOT EXISTS idx_messages_project_created ON messages(project_id, created_at);

		CREATE TABLE IF NOT EXISTS settings (
			id         TEXT PRIMARY KEY,
			key        TEXT NOT NULL UNIQUE,
			value      TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS auth_credentials (
			id                INTEGER PRIMARY KEY DEFAULT 1,
			api_key           TEXT NOT NULL,
			email             TEXT,
			subscription_tier TEXT,
			last_validated    TEXT,
			created_at        TEXT NOT NULL,
			updated_at        TEXT NOT NULL
		);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// runMigrations applies schema migrations for existing databases.
// These are idempotent - safe to run multiple times.
func (s *SQLiteStore) runMigrations() error {
	// SQLite doesn't support ADD COLUMN IF NOT EXISTS, so we check first
	migrations := []struct {
		check  string // Query that succeeds if the column exists
		apply  string // Migration to apply if it doesn't
		column string // Column name for logging
	}{
		{
			check:  `SELECT 1 FROM pragma_table_info('auth_credentials') WHERE name = 'subscription_tier'`,
			apply:  `ALTER TABLE auth_credentials ADD COLUMN subscription_tier TEXT`,
			column: "subscription_tier",
		},
		{
			check:  `SELECT 1 FROM pragma_table_info('projects') WHERE name = 'current_code'`,
			apply:  `ALTER TABLE projects ADD COLUMN current_code TEXT`,
			column: "current_code",
		},
	}

	for _, m := range migrations {
		var exists int
		err := s.db.QueryRow(m.check).Scan(&exists)
		if err == nil {
			// Column already exists, skip
			continue
		}
		// Column doesn't exist, apply migration
		if _, err := s.db.Exec(m.apply); err != nil {
			return fmt.Errorf("adding %s column: %w", m.column, err)
		}
		s.logger.Info("applied migration", "column", m.column)
	}

	return nil
}

// ensureLocalUser seeds the single local account on first run
func (s *SQLiteStore) ensureLocalUser() error {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return fmt.Errorf("counting users: %w", err)
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(localUserPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing default password: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = s.db.Exec(`
		INSERT INTO users (id, name, email, email_verified, password, plan, token_balance, context_used, created_at, updated_at)
		VALUES (?, ?, ?, 0, ?, ?, ?, 0, ?, ?)
	`, LocalUserID, "Local User", LocalUserEmail, string(hash), PlanFree, DefaultTokenBalance, now, now)
	if err != nil {
		return fmt.Errorf("inserting local user: %w", err)
	}

	s.logger.Info("seeded default local user", "email", LocalUserEmail)
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// nullString returns nil for empty strings, otherwise the string
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// isDuplicateEmail checks if the error is the users.email UNIQUE violation.
// The driver only exposes constraint failures as text, so match the exact
// constraint name; a broader match would misreport primary-key or CHECK
// violations as duplicate emails.
func isDuplicateEmail(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed: users.email")
}

// Ensure SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)
