// ABOUTME: Store interface and data types for grimoire-desktop persistence
// ABOUTME: Defines Project, Message, Settings structs and the Store interface for database operations

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned when creating a user with an email that is already taken
var ErrDuplicateEmail = errors.New("email already registered")

// LocalUserID is the fixed owner of every project created through the desktop app
const LocalUserID = "local-user"

// LocalUserEmail is the email of the seeded local account
const LocalUserEmail = "local@grimoire.app"

// DefaultTokenBalance is the starting token balance for new accounts
const DefaultTokenBalance = 10000

// PlanFree is the plan assigned to local and newly created accounts
const PlanFree = "FREE"

// Visibility constants for projects
const (
	VisibilityPrivate = "PRIVATE"
	VisibilityPublic  = "PUBLIC"
)

// Role constants for message authors
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Project represents one workspace: a named project of a given type with its
// active agent list and the current generated code
type Project struct {
	ID           string
	Name         string
	Description  string
	ProjectType  string
	ActiveAgents []string
	CurrentCode  string
	Visibility   string // "PRIVATE" or "PUBLIC"
	Likes        int
	Forks        int
	UserID       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Message represents a single chat message within a project
type Message struct {
	ID        string
	Role      string // "user" or "assistant"
	Content   string
	ProjectID string
	CreatedAt time.Time
}

// ProjectWithMessages is a project together with its full message history,
// ordered oldest first
type ProjectWithMessages struct {
	Project  *Project
	Messages []*Message
}

// SaveProjectRequest carries one full project snapshot to persist.
// The stored message history is replaced wholesale by Messages.
type SaveProjectRequest struct {
	ProjectID    string // empty = create with a fresh ID
	Name         string
	ProjectType  string
	ActiveAgents []string
	CurrentCode  string
	Messages     []*Message
}

// Settings holds the typed application settings
type Settings struct {
	AnthropicAPIKey    string // empty = unset
	Theme              string
	AutoSave           bool
	DefaultProjectPath string
}

// Credentials is the singleton stored API credential record
type Credentials struct {
	APIKey           string
	Email            string
	SubscriptionTier string
	LastValidated    time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ProjectFile represents one stored file belonging to a project.
// Paths are unique within a project.
type ProjectFile struct {
	ID        string
	ProjectID string
	Path      string
	Content   string
	Language  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// User represents an account row. The app seeds a single local user on first
// run; additional rows come from the web-auth endpoints.
type User struct {
	ID            string
	Name          string
	Email         string
	EmailVerified bool
	Password      string // bcrypt hash
	Image         string
	Plan          string
	TokenBalance  int
	ContextUsed   float64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Store defines the interface for project, settings, credential, and user persistence
type Store interface {
	// Projects
	SaveProject(ctx context.Context, req *SaveProjectRequest) (string, error)
	GetProject(ctx context.Context, id string) (*ProjectWithMessages, error)
	ListProjects(ctx context.Context) ([]*Project, error)
	DeleteProject(ctx context.Context, id string) error

	// Project files
	UpsertProjectFile(ctx context.Context, file *ProjectFile) error
	ListProjectFiles(ctx context.Context, projectID string) ([]*ProjectFile, error)
	DeleteProjectFile(ctx context.Context, projectID, path string) error

	// Settings
	SaveSettings(ctx context.Context, settings *Settings) error
	LoadSettings(ctx context.Context) (*Settings, error)

	// Credentials (singleton row)
	UpsertCredentials(ctx context.Context, creds *Credentials) error
	GetCredentials(ctx context.Context) (*Credentials, error)

	// Users
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	CountUsers(ctx context.Context) (int, error)

	// Close releases any resources held by the store
	Close() error
}
