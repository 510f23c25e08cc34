// ABOUTME: Read-only HTML preview of a project's conversation
// ABOUTME: Message content is rendered as markdown via goldmark

package server

import (
	"bytes"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/yuin/goldmark"

	"github.com/2389/grimoire/internal/store"
)

var previewTemplate = template.Must(template.New("preview").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Name}} - Grimoire</title>
<style>
body { font-family: sans-serif; max-width: 780px; margin: 2rem auto; padding: 0 1rem; }
.meta { color: #666; font-size: 0.85rem; }
.message { border: 1px solid #ddd; border-radius: 6px; padding: 0.5rem 1rem; margin: 1rem 0; }
.message.user { background: #f3f6fb; }
.message .role { font-weight: bold; font-size: 0.8rem; text-transform: uppercase; color: #888; }
pre.code { background: #1e1e1e; color: #ddd; padding: 1rem; border-radius: 6px; overflow-x: auto; }
</style>
</head>
<body>
<h1>{{.Name}}</h1>
<p class="meta">{{.ProjectType}} &middot; updated {{.UpdatedAt}}</p>
{{range .Messages}}
<div class="message {{.Role}}">
<div class="role">{{.Role}}</div>
{{.HTML}}
</div>
{{end}}
{{if .CurrentCode}}
<h2>Current code</h2>
<pre class="code">{{.CurrentCode}}</pre>
{{end}}
</body>
</html>
`))

type previewMessage struct {
	Role string
	HTML template.HTML
}

type previewData struct {
	Name        string
	ProjectType string
	UpdatedAt   string
	Messages    []previewMessage
	CurrentCode string
}

// handleProjectPreview handles GET /ui/projects/{id}
func (s *Server) handleProjectPreview(w http.ResponseWriter, r *http.Request) {
	pw, err := s.store.GetProject(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "project not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Error("failed to load project for preview", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	data := previewData{
		Name:        pw.Project.Name,
		ProjectType: pw.Project.ProjectType,
		UpdatedAt:   pw.Project.UpdatedAt.Format(time.RFC1123),
		CurrentCode: pw.Project.CurrentCode,
		Messages:    make([]previewMessage, len(pw.Messages)),
	}
	for i, msg := range pw.Messages {
		data.Messages[i] = previewMessage{
			Role: msg.Role,
			HTML: renderMarkdown(msg.Content),
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := previewTemplate.Execute(w, data); err != nil {
		s.logger.Error("failed to render preview", "error", err)
	}
}

// renderMarkdown converts markdown to HTML, falling back to escaped text
// when conversion fails
func renderMarkdown(content string) template.HTML {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(content), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(content))
	}
	return template.HTML(buf.String())
}
