// ABOUTME: Project and message persistence on SQLiteStore
// ABOUTME: SaveProject replaces one full snapshot (project row + message history) transactionally

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/2389/grimoire/internal/ident"
)

// msgTimeFormat stamps messages with a fixed-width millisecond fraction so
// that created_at sorts chronologically as TEXT.
const msgTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// SaveProject persists one full project snapshot in a single transaction:
// the project row is inserted or updated, then the stored message history is
// replaced by req.Messages. Returns the resolved project ID.
func (s *SQLiteStore) SaveProject(ctx context.Context, req *SaveProjectRequest) (string, error) {
	projectID := req.ProjectID
	if projectID == "" {
		projectID = ident.New("proj")
	}
	now := time.Now().UTC()

	agents := req.ActiveAgents
	if agents == nil {
		agents = []string{}
	}
	agentsJSON, err := json.Marshal(agents)
	if err != nil {
		return "", fmt.Errorf("encoding active agents: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existing string
	err = tx.QueryRowContext(ctx, `SELECT id FROM projects WHERE id = ?`, projectID).Scan(&existing)
	switch {
	case err == sql.ErrNoRows:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO projects (id, name, project_type, active_agents, current_code, user_id, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			projectID,
			req.Name,
			req.ProjectType,
			string(agentsJSON),
			nullString(req.CurrentCode),
			LocalUserID,
			now.Format(time.RFC3339),
			now.Format(time.RFC3339),
		)
		if err != nil {
			return "", fmt.Errorf("inserting project: %w", err)
		}
	case err != nil:
		return "", fmt.Errorf("checking project existence: %w", err)
	default:
		// Existing project: created_at is preserved
		_, err = tx.ExecContext(ctx, `
			UPDATE projects
			SET name = ?, project_type = ?, active_agents = ?, current_code = ?, updated_at = ?
			WHERE id = ?
		`,
			req.Name,
			req.ProjectType,
			string(agentsJSON),
			nullString(req.CurrentCode),
			now.Format(time.RFC3339),
			projectID,
		)
		if err != nil {
			return "", fmt.Errorf("updating project: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE project_id = ?`, projectID); err != nil {
		return "", fmt.Errorf("clearing messages: %w", err)
	}

	// Stamp each message 1ms after the previous one so insertion order is
	// the chronological order
	for i, msg := range req.Messages {
		msgID := msg.ID
		if msgID == "" {
			msgID = ident.New("msg")
		}
		createdAt := now.Add(time.Duration(i) * time.Millisecond)
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO messages (id, role, content, project_id, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, msgID, msg.Role, msg.Content, projectID, createdAt.Format(msgTimeFormat)); err != nil {
			return "", fmt.Errorf("inserting message %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing project save: %w", err)
	}

	s.logger.Debug("saved project", "id", projectID, "messages", len(req.Messages))
	return projectID, nil
}

// GetProject retrieves a project and its messages in chronological order.
// Returns ErrNotFound if the project doesn't exist.
func (s *SQLiteStore) GetProject(ctx context.Context, id string) (*ProjectWithMessages, error) {
	query := `
		SELECT id, name, description, project_type, active_agents, current_code,
		       visibility, likes, forks, user_id, created_at, updated_at
		FROM projects
		WHERE id = ?
	`

	var project Project
	var description, currentCode sql.NullString
	var agentsJSON, createdAt, updatedAt string

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&project.ID,
		&project.Name,
		&description,
		&project.ProjectType,
		&agentsJSON,
		&currentCode,
		&project.Visibility,
		&project.Likes,
		&project.Forks,
		&project.UserID,
		&createdAt,
		&updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying project: %w", err)
	}

	project.Description = description.String
	project.CurrentCode = currentCode.String
	if err := json.Unmarshal([]byte(agentsJSON), &project.ActiveAgents); err != nil {
		slog.Warn("failed to parse active_agents", "id", project.ID, "error", err)
		project.ActiveAgents = []string{}
	}
	if project.ActiveAgents == nil {
		project.ActiveAgents = []string{}
	}
	if parsed, err := time.Parse(time.RFC3339, createdAt); err != nil {
		slog.Warn("failed to parse project created_at", "id", project.ID, "error", err)
	} else {
		project.CreatedAt = parsed
	}
	if parsed, err := time.Parse(time.RFC3339, updatedAt); err != nil {
		slog.Warn("failed to parse project updated_at", "id", project.ID, "error", err)
	} else {
		project.UpdatedAt = parsed
	}

	messages, err := s.getProjectMessages(ctx, id)
	if err != nil {
		return nil, err
	}

	return &ProjectWithMessages{Project: &project, Messages: messages}, nil
}

// getProjectMessages returns all messages for a project, oldest first
func (s *SQLiteStore) getProjectMessages(ctx context.Context, projectID string) ([]*Message, error) {
	query := `
		SELECT id, role, content, project_id, created_at
		FROM messages
		WHERE project_id = ?
		ORDER BY created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	messages := []*Message{}
	for rows.Next() {
		var msg Message
		var createdAt string
		if err := rows.Scan(&msg.ID, &msg.Role, &msg.Content, &msg.ProjectID, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}
		if parsed, err := time.Parse(time.RFC3339, createdAt); err != nil {
			slog.Warn("failed to parse message created_at", "id", msg.ID, "error", err)
		} else {
			msg.CreatedAt = parsed
		}
		messages = append(messages, &msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating message rows: %w", err)
	}

	return messages, nil
}

// ListProjects returns the local user's projects, most recently updated first.
// An empty slice is returned when no projects exist.
func (s *SQLiteStore) ListProjects(ctx context.Context) ([]*Project, error) {
	query := `
		SELECT id, name, description, project_type, active_agents, current_code,
		       visibility, likes, forks, user_id, created_at, updated_at
		FROM projects
		WHERE user_id = ?
		ORDER BY updated_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, LocalUserID)
	if err != nil {
		return nil, fmt.Errorf("querying projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	projects := []*Project{}
	for rows.Next() {
		var project Project
		var description, currentCode sql.NullString
		var agentsJSON, createdAt, updatedAt string

		if err := rows.Scan(
			&project.ID,
			&project.Name,
			&description,
			&project.ProjectType,
			&agentsJSON,
			&currentCode,
			&project.Visibility,
			&project.Likes,
			&project.Forks,
			&project.UserID,
			&createdAt,
			&updatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning project row: %w", err)
		}

		project.Description = description.String
		project.CurrentCode = currentCode.String
		if err := json.Unmarshal([]byte(agentsJSON), &project.ActiveAgents); err != nil {
			slog.Warn("failed to parse active_agents", "id", project.ID, "error", err)
			project.ActiveAgents = []string{}
		}
		if project.ActiveAgents == nil {
			project.ActiveAgents = []string{}
		}
		if parsed, err := time.Parse(time.RFC3339, createdAt); err != nil {
			slog.Warn("failed to parse project created_at", "id", project.ID, "error", err)
		} else {
			project.CreatedAt = parsed
		}
		if parsed, err := time.Parse(time.RFC3339, updatedAt); err != nil {
			slog.Warn("failed to parse project updated_at", "id", project.ID, "error", err)
		} else {
			project.UpdatedAt = parsed
		}

		projects = append(projects, &project)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating project rows: %w", err)
	}

	return projects, nil
}

// DeleteProject removes a project; messages and files cascade.
// Returns ErrNotFound if the project doesn't exist.
func (s *SQLiteStore) DeleteProject(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted project", "id", id)
	return nil
}
