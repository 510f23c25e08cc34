// ABOUTME: Project file persistence on SQLiteStore
// ABOUTME: Files are upserted by (project_id, path) and removed with their project

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/2389/grimoire/internal/ident"
)

// UpsertProjectFile inserts or updates a file by (project_id, path).
// Returns ErrNotFound if the project doesn't exist.
func (s *SQLiteStore) UpsertProjectFile(ctx context.Context, file *ProjectFile) error {
	var exists string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM projects WHERE id = ?`, file.ProjectID).Scan(&exists)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("checking project existence: %w", err)
	}

	fileID := file.ID
	if fileID == "" {
		fileID = ident.New("file")
	}
	now := time.Now().UTC().Format(time.RFC3339)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO project_files (id, project_id, path, content, language, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id, path) DO UPDATE SET
			content = excluded.content,
			language = excluded.language,
			updated_at = excluded.updated_at
	`, fileID, file.ProjectID, file.Path, file.Content, nullString(file.Language), now, now)
	if err != nil {
		return fmt.Errorf("saving project file: %w", err)
	}

	s.logger.Debug("saved project file", "project_id", file.ProjectID, "path", file.Path)
	return nil
}

// ListProjectFiles returns all files for a project ordered by path
func (s *SQLiteStore) ListProjectFiles(ctx context.Context, projectID string) ([]*ProjectFile, error) {
	query := `
		SELECT id, project_id, path, content, language, created_at, updated_at
		FROM project_files
		WHERE project_id = ?
		ORDER BY path
	`

	rows, err := s.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("querying project files: %w", err)
	}
	defer func() { _ = rows.Close() }()

	files := []*ProjectFile{}
	for rows.Next() {
		var file ProjectFile
		var language sql.NullString
		var createdAt, updatedAt string

		if err := rows.Scan(
			&file.ID,
			&file.ProjectID,
			&file.Path,
			&file.Content,
			&language,
			&createdAt,
			&updatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning project file row: %w", err)
		}

		file.Language = language.String
		if parsed, err := time.Parse(time.RFC3339, createdAt); err != nil {
			slog.Warn("failed to parse file created_at", "id", file.ID, "error", err)
		} else {
			file.CreatedAt = parsed
		}
		if parsed, err := time.Parse(time.RFC3339, updatedAt); err != nil {
			slog.Warn("failed to parse file updated_at", "id", file.ID, "error", err)
		} else {
			file.UpdatedAt = parsed
		}

		files = append(files, &file)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating project file rows: %w", err)
	}

	return files, nil
}

// DeleteProjectFile removes one file by (project_id, path).
// Returns ErrNotFound if no such file exists.
func (s *SQLiteStore) DeleteProjectFile(ctx context.Context, projectID, path string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM project_files WHERE project_id = ? AND path = ?`, projectID, path)
	if err != nil {
		return fmt.Errorf("deleting project file: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted project file", "project_id", projectID, "path", path)
	return nil
}
