// ABOUTME: JSON handlers for the project, settings, and credential commands
// ABOUTME: Maps store and resolver errors to HTTP statuses

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/2389/grimoire/internal/credentials"
	"github.com/2389/grimoire/internal/store"
)

// SaveProjectRequest is the JSON request body for POST /api/projects.
type SaveProjectRequest struct {
	ProjectID    string           `json:"project_id,omitempty"`
	Name         string           `json:"name"`
	ProjectType  string           `json:"project_type"`
	ActiveAgents []string         `json:"active_agents"`
	CurrentCode  string           `json:"current_code,omitempty"`
	Messages     []MessagePayload `json:"messages"`
}

// MessagePayload is one message in a project snapshot.
type MessagePayload struct {
	ID      string `json:"id,omitempty"`
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SaveProjectResponse is the JSON response for POST /api/projects.
type SaveProjectResponse struct {
	ProjectID string `json:"project_id"`
}

// ProjectResponse is the JSON shape of one project.
type ProjectResponse struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	ProjectType  string   `json:"project_type"`
	ActiveAgents []string `json:"active_agents"`
	CurrentCode  string   `json:"current_code,omitempty"`
	Visibility   string   `json:"visibility"`
	CreatedAt    string   `json:"created_at"`
	UpdatedAt    string   `json:"updated_at"`
}

// MessageResponse is the JSON shape of one message.
type MessageResponse struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

// ProjectWithMessagesResponse is the JSON response for GET /api/projects/{id}.
type ProjectWithMessagesResponse struct {
	ProjectResponse
	Messages []MessageResponse `json:"messages"`
}

// ProjectFileRequest is the JSON request body for PUT /api/projects/{id}/files.
type ProjectFileRequest struct {
	Path     string `json:"path"`
	Content  string `json:"content"`
	Language string `json:"language,omitempty"`
}

// ProjectFileResponse is the JSON shape of one project file.
type ProjectFileResponse struct {
	Path      string `json:"path"`
	Content   string `json:"content"`
	Language  string `json:"language,omitempty"`
	UpdatedAt string `json:"updated_at"`
}

// ExportRequest is the JSON request body for POST /api/projects/{id}/export.
// An empty dir exports under the configured default project path.
type ExportRequest struct {
	Dir string `json:"dir,omitempty"`
}

// SettingsPayload is the JSON shape of the application settings.
type SettingsPayload struct {
	AnthropicAPIKey    string `json:"anthropic_api_key,omitempty"`
	Theme              string `json:"theme"`
	AutoSave           bool   `json:"auto_save"`
	DefaultProjectPath string `json:"default_project_path"`
}

// SubmitKeyRequest is the JSON request body for POST /api/credentials/key.
type SubmitKeyRequest struct {
	APIKey string `json:"api_key"`
	Email  string `json:"email,omitempty"`
}

// CredentialsResponse is the JSON response for GET /api/credentials.
type CredentialsResponse struct {
	APIKey           string `json:"api_key"`
	Email            string `json:"email,omitempty"`
	SubscriptionTier string `json:"subscription_tier,omitempty"`
	LastValidated    string `json:"last_validated,omitempty"`
}

func projectToResponse(p *store.Project) ProjectResponse {
	return ProjectResponse{
		ID:           p.ID,
		Name:         p.Name,
		Description:  p.Description,
		ProjectType:  p.ProjectType,
		ActiveAgents: p.ActiveAgents,
		CurrentCode:  p.CurrentCode,
		Visibility:   p.Visibility,
		CreatedAt:    p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    p.UpdatedAt.Format(time.RFC3339),
	}
}

// handleSaveProject handles POST /api/projects
func (s *Server) handleSaveProject(w http.ResponseWriter, r *http.Request) {
	var req SaveProjectRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	if req.Name == "" {
		s.sendJSONError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.ProjectType == "" {
		s.sendJSONError(w, http.StatusBadRequest, "project_type is required")
		return
	}
	// Content may be empty; only the role is required
	for _, msg := range req.Messages {
		if msg.Role == "" {
			s.sendJSONError(w, http.StatusBadRequest, "messages require a role")
			return
		}
	}

	messages := make([]*store.Message, len(req.Messages))
	for i, msg := range req.Messages {
		messages[i] = &store.Message{ID: msg.ID, Role: msg.Role, Content: msg.Content}
	}

	id, err := s.store.SaveProject(r.Context(), &store.SaveProjectRequest{
		ProjectID:    req.ProjectID,
		Name:         req.Name,
		ProjectType:  req.ProjectType,
		ActiveAgents: req.ActiveAgents,
		CurrentCode:  req.CurrentCode,
		Messages:     messages,
	})
	if err != nil {
		s.logger.Error("failed to save project", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.sendJSON(w, http.StatusOK, SaveProjectResponse{ProjectID: id})
}

// handleGetProject handles GET /api/projects/{id}
func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	pw, err := s.store.GetProject(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		s.sendJSONError(w, http.StatusNotFound, "project not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to load project", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := ProjectWithMessagesResponse{
		ProjectResponse: projectToResponse(pw.Project),
		Messages:        make([]MessageResponse, len(pw.Messages)),
	}
	for i, msg := range pw.Messages {
		resp.Messages[i] = MessageResponse{
			ID:        msg.ID,
			Role:      msg.Role,
			Content:   msg.Content,
			CreatedAt: msg.CreatedAt.Format(time.RFC3339),
		}
	}

	s.sendJSON(w, http.StatusOK, resp)
}

// handleListProjects handles GET /api/projects
func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.ListProjects(r.Context())
	if err != nil {
		s.logger.Error("failed to list projects", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]ProjectResponse, len(projects))
	for i, p := range projects {
		resp[i] = projectToResponse(p)
	}

	s.sendJSON(w, http.StatusOK, resp)
}

// handleDeleteProject handles DELETE /api/projects/{id}
func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	err := s.store.DeleteProject(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		s.sendJSONError(w, http.StatusNotFound, "project not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to delete project", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleUpsertProjectFile handles PUT /api/projects/{id}/files
func (s *Server) handleUpsertProjectFile(w http.ResponseWriter, r *http.Request) {
	var req ProjectFileRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.Path == "" {
		s.sendJSONError(w, http.StatusBadRequest, "path is required")
		return
	}

	err := s.store.UpsertProjectFile(r.Context(), &store.ProjectFile{
		ProjectID: r.PathValue("id"),
		Path:      req.Path,
		Content:   req.Content,
		Language:  req.Language,
	})
	if errors.Is(err, store.ErrNotFound) {
		s.sendJSONError(w, http.StatusNotFound, "project not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to save project file", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleListProjectFiles handles GET /api/projects/{id}/files
func (s *Server) handleListProjectFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.store.ListProjectFiles(r.Context(), r.PathValue("id"))
	if err != nil {
		s.logger.Error("failed to list project files", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]ProjectFileResponse, len(files))
	for i, f := range files {
		resp[i] = ProjectFileResponse{
			Path:      f.Path,
			Content:   f.Content,
			Language:  f.Language,
			UpdatedAt: f.UpdatedAt.Format(time.RFC3339),
		}
	}

	s.sendJSON(w, http.StatusOK, resp)
}

// handleExportProject handles POST /api/projects/{id}/export
func (s *Server) handleExportProject(w http.ResponseWriter, r *http.Request) {
	var req ExportRequest
	if r.ContentLength != 0 && !s.decodeJSON(w, r, &req) {
		return
	}

	result, err := s.exporter.Export(r.Context(), r.PathValue("id"), req.Dir)
	if errors.Is(err, store.ErrNotFound) {
		s.sendJSONError(w, http.StatusNotFound, "project not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to export project", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.sendJSON(w, http.StatusOK, result)
}

// handleLoadSettings handles GET /api/settings
func (s *Server) handleLoadSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.store.LoadSettings(r.Context())
	if err != nil {
		s.logger.Error("failed to load settings", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.sendJSON(w, http.StatusOK, SettingsPayload{
		AnthropicAPIKey:    settings.AnthropicAPIKey,
		Theme:              settings.Theme,
		AutoSave:           settings.AutoSave,
		DefaultProjectPath: settings.DefaultProjectPath,
	})
}

// handleSaveSettings handles PUT /api/settings
func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	var req SettingsPayload
	if !s.decodeJSON(w, r, &req) {
		return
	}

	err := s.store.SaveSettings(r.Context(), &store.Settings{
		AnthropicAPIKey:    req.AnthropicAPIKey,
		Theme:              req.Theme,
		AutoSave:           req.AutoSave,
		DefaultProjectPath: req.DefaultProjectPath,
	})
	if err != nil {
		s.logger.Error("failed to save settings", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleCredentialsStatus handles GET /api/credentials/status
func (s *Server) handleCredentialsStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.resolver.CheckStatus(r.Context())
	if err != nil {
		s.logger.Error("failed to check credential status", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.sendJSON(w, http.StatusOK, status)
}

// handleSubmitKey handles POST /api/credentials/key.
// A rejected key is 401; a validation transport failure is 502 so the UI
// can tell "bad key" from "could not check".
func (s *Server) handleSubmitKey(w http.ResponseWriter, r *http.Request) {
	var req SubmitKeyRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.APIKey == "" {
		s.sendJSONError(w, http.StatusBadRequest, "api_key is required")
		return
	}

	err := s.resolver.SubmitKey(r.Context(), req.APIKey, req.Email)
	if errors.Is(err, credentials.ErrInvalidKey) {
		s.sendJSONError(w, http.StatusUnauthorized, "invalid api key")
		return
	}
	if err != nil {
		s.logger.Error("api key validation failed", "error", err)
		s.sendJSONError(w, http.StatusBadGateway, "validation failed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleGetCredentials handles GET /api/credentials
func (s *Server) handleGetCredentials(w http.ResponseWriter, r *http.Request) {
	creds, err := s.resolver.Credentials(r.Context())
	if errors.Is(err, store.ErrNotFound) {
		s.sendJSONError(w, http.StatusNotFound, "no credentials stored")
		return
	}
	if err != nil {
		s.logger.Error("failed to load credentials", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := CredentialsResponse{
		APIKey:           creds.APIKey,
		Email:            creds.Email,
		SubscriptionTier: creds.SubscriptionTier,
	}
	if !creds.LastValidated.IsZero() {
		resp.LastValidated = creds.LastValidated.Format(time.RFC3339)
	}

	s.sendJSON(w, http.StatusOK, resp)
}

// decodeJSON decodes a size-limited JSON body into v.
// Writes a 400 response and returns false on failure.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// sendJSON writes a JSON response with the given status
func (s *Server) sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// sendJSONError writes a JSON error response
func (s *Server) sendJSONError(w http.ResponseWriter, status int, message string) {
	s.sendJSON(w, status, map[string]string{"error": message})
}
