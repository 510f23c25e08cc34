// Package store provides persistent storage for grimoire-desktop using SQLite.
//
// # Architecture
//
// The Store interface covers every durable concern of the app: projects with
// their chat history, per-project files, typed settings, the singleton API
// credential record, and user accounts. SQLiteStore implements the whole
// interface in a single struct over database/sql with the pure-Go
// modernc.org/sqlite driver.
//
// # Data Models
//
//   - Project: one workspace with type, active agents, and generated code
//   - Message: chat message belonging to a project ("user" or "assistant")
//   - ProjectFile: generated file belonging to a project, unique per path
//   - Settings: typed application settings backed by a key/value table
//   - Credentials: the single stored Anthropic API credential record
//   - User: account row; a local user is seeded on first run
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// The connection pool is capped at 5. Database file locations:
//
//   - Production: ~/.local/share/grimoire/grimoire.db (or $XDG_DATA_HOME)
//   - Testing: t.TempDir() or :memory:
//
// # Error Handling
//
// Common errors:
//
//   - ErrNotFound: Requested entity does not exist
//   - ErrDuplicateEmail: Email already registered
//
// All methods accept context.Context for cancellation support.
//
// # Writes
//
// Multi-statement writes (SaveProject, SaveSettings) run in a single
// transaction; a failure anywhere rolls back the whole snapshot. Timestamps
// are stored as RFC 3339 TEXT in UTC. Message timestamps carry a fixed-width
// millisecond fraction so that TEXT ordering equals chronological ordering.
package store
