// ABOUTME: Writes a project's stored files to disk with a TOML manifest
// ABOUTME: Destination defaults to the configured project path plus the project name

package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/2389/grimoire/internal/store"
)

// ManifestName is the manifest file written alongside exported files
const ManifestName = "grimoire.toml"

// fallbackFileName receives current_code when a project has no stored files
const fallbackFileName = "main.txt"

// Result describes a completed export
type Result struct {
	Dir   string   `json:"dir"`
	Files []string `json:"files"`
}

// manifest is the TOML document written to ManifestName
type manifest struct {
	Project manifestProject `toml:"project"`
	Files   []string        `toml:"files"`
}

type manifestProject struct {
	ID           string   `toml:"id"`
	Name         string   `toml:"name"`
	ProjectType  string   `toml:"project_type"`
	ActiveAgents []string `toml:"active_agents"`
	ExportedAt   string   `toml:"exported_at"`
}

// Exporter materializes stored projects on disk
type Exporter struct {
	store  store.Store
	logger *slog.Logger
}

// New creates an exporter over the given store
func New(st store.Store, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		store:  st,
		logger: logger.With("component", "export"),
	}
}

// Export writes the project's files under destDir and returns what was written.
// An empty destDir resolves to <default_project_path>/<sanitized name> from the
// stored settings. When the project has no stored files, current_code (if any)
// is written to a single fallback file instead. File paths that escape the
// destination directory abort the export.
func (e *Exporter) Export(ctx context.Context, projectID, destDir string) (*Result, error) {
	pw, err := e.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	project := pw.Project

	if destDir == "" {
		destDir, err = e.defaultDir(ctx, project.Name)
		if err != nil {
			return nil, err
		}
	}

	files, err := e.store.ListProjectFiles(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing project files: %w", err)
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, fmt.Errorf("creating export directory: %w", err)
	}

	var written []string
	for _, file := range files {
		if !filepath.IsLocal(file.Path) {
			return nil, fmt.Errorf("refusing to export unsafe file path %q", file.Path)
		}

		target := filepath.Join(destDir, filepath.FromSlash(file.Path))
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return nil, fmt.Errorf("creating directory for %s: %w", file.Path, err)
		}
		if err := os.WriteFile(target, []byte(file.Content), 0644); err != nil {
			return nil, fmt.Errorf("writing %s: %w", file.Path, err)
		}
		written = append(written, file.Path)
	}

	// The scratch buffer only stands in when there is no real file tree
	if len(written) == 0 && project.CurrentCode != "" {
		target := filepath.Join(destDir, fallbackFileName)
		if err := os.WriteFile(target, []byte(project.CurrentCode), 0644); err != nil {
			return nil, fmt.Errorf("writing %s: %w", fallbackFileName, err)
		}
		written = append(written, fallbackFileName)
	}

	if err := e.writeManifest(destDir, project, written); err != nil {
		return nil, err
	}

	e.logger.Info("exported project", "id", projectID, "dir", destDir, "files", len(written))
	return &Result{Dir: destDir, Files: written}, nil
}

// defaultDir resolves the destination from settings and the project name
func (e *Exporter) defaultDir(ctx context.Context, projectName string) (string, error) {
	settings, err := e.store.LoadSettings(ctx)
	if err != nil {
		return "", fmt.Errorf("loading settings: %w", err)
	}

	base, err := expandHome(settings.DefaultProjectPath)
	if err != nil {
		return "", err
	}
	return filepath.Join(base, sanitizeName(projectName)), nil
}

// writeManifest writes the grimoire.toml manifest into dir
func (e *Exporter) writeManifest(dir string, project *store.Project, files []string) error {
	m := manifest{
		Project: manifestProject{
			ID:           project.ID,
			Name:         project.Name,
			ProjectType:  project.ProjectType,
			ActiveAgents: project.ActiveAgents,
			ExportedAt:   time.Now().UTC().Format(time.RFC3339),
		},
		Files: files,
	}

	f, err := os.Create(filepath.Join(dir, ManifestName))
	if err != nil {
		return fmt.Errorf("creating manifest: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := toml.NewEncoder(f).Encode(m); err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	return nil
}

// expandHome replaces a leading ~ with the user's home directory
func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// sanitizeName reduces a project name to a safe directory name
func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('-')
		}
	}
	if b.Len() == 0 {
		return "project"
	}
	return b.String()
}
