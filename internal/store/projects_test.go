// ABOUTME: Tests for project and message persistence
// ABOUTME: Covers snapshot save/load round trips, history replacement, listing, and deletion

package store

import (
	"context"
	"strings"
	"testing"
)

func TestSaveProject_GeneratesID(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	id, err := store.SaveProject(ctx, &SaveProjectRequest{
		Name:        "Test Project",
		ProjectType: "web",
	})
	if err != nil {
		t.Fatalf("SaveProject failed: %v", err)
	}

	if !strings.HasPrefix(id, "proj-") {
		t.Errorf("expected generated ID with proj- prefix, got %q", id)
	}
}

func TestSaveProject_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	id, err := store.SaveProject(ctx, &SaveProjectRequest{
		Name:         "Test Project",
		ProjectType:  "web",
		ActiveAgents: []string{"coder", "reviewer"},
		CurrentCode:  "<html>hello</html>",
		Messages: []*Message{
			{Role: RoleUser, Content: "Create a todo app"},
			{Role: RoleAssistant, Content: "Here is your todo app"},
		},
	})
	if err != nil {
		t.Fatalf("SaveProject failed: %v", err)
	}

	got, err := store.GetProject(ctx, id)
	if err != nil {
		t.Fatalf("GetProject failed: %v", err)
	}

	if got.Project.Name != "Test Project" {
		t.Errorf("name mismatch: got %q", got.Project.Name)
	}
	if got.Project.ProjectType != "web" {
		t.Errorf("project type mismatch: got %q", got.Project.ProjectType)
	}
	if len(got.Project.ActiveAgents) != 2 || got.Project.ActiveAgents[0] != "coder" || got.Project.ActiveAgents[1] != "reviewer" {
		t.Errorf("active agents mismatch: got %v", got.Project.ActiveAgents)
	}
	if got.Project.CurrentCode != "<html>hello</html>" {
		t.Errorf("current code mismatch: got %q", got.Project.CurrentCode)
	}
	if got.Project.Visibility != VisibilityPrivate {
		t.Errorf("visibility mismatch: got %q, want %q", got.Project.Visibility, VisibilityPrivate)
	}
	if got.Project.UserID != LocalUserID {
		t.Errorf("user ID mismatch: got %q, want %q", got.Project.UserID, LocalUserID)
	}

	if len(got.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got.Messages))
	}
	if got.Messages[0].Role != RoleUser || got.Messages[0].Content != "Create a todo app" {
		t.Errorf("first message mismatch: %+v", got.Messages[0])
	}
	if got.Messages[1].Role != RoleAssistant || got.Messages[1].Content != "Here is your todo app" {
		t.Errorf("second message mismatch: %+v", got.Messages[1])
	}
	if !got.Messages[0].CreatedAt.Before(got.Messages[1].CreatedAt) {
		t.Error("message timestamps are not strictly ascending")
	}
}

func TestSaveProject_KeepsSuppliedMessageIDs(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	id, err := store.SaveProject(ctx, &SaveProjectRequest{
		Name:        "Test Project",
		ProjectType: "web",
		Messages: []*Message{
			{ID: "msg-fixed-1", Role: RoleUser, Content: "hello"},
			{Role: RoleAssistant, Content: "hi"},
		},
	})
	if err != nil {
		t.Fatalf("SaveProject failed: %v", err)
	}

	got, err := store.GetProject(ctx, id)
	if err != nil {
		t.Fatalf("GetProject failed: %v", err)
	}

	if got.Messages[0].ID != "msg-fixed-1" {
		t.Errorf("expected supplied message ID to be kept, got %q", got.Messages[0].ID)
	}
	if !strings.HasPrefix(got.Messages[1].ID, "msg-") {
		t.Errorf("expected generated msg- ID, got %q", got.Messages[1].ID)
	}
}

func TestSaveProject_UpdateReplacesHistory(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	id, err := store.SaveProject(ctx, &SaveProjectRequest{
		Name:        "Test Project",
		ProjectType: "web",
		Messages: []*Message{
			{Role: RoleUser, Content: "first"},
			{Role: RoleAssistant, Content: "second"},
			{Role: RoleUser, Content: "third"},
		},
	})
	if err != nil {
		t.Fatalf("initial SaveProject failed: %v", err)
	}

	first, err := store.GetProject(ctx, id)
	if err != nil {
		t.Fatalf("GetProject failed: %v", err)
	}
	createdAt := first.Project.CreatedAt

	// Saving again with the same ID replaces the message history wholesale
	returnedID, err := store.SaveProject(ctx, &SaveProjectRequest{
		ProjectID:   id,
		Name:        "Renamed Project",
		ProjectType: "mobile",
		Messages: []*Message{
			{Role: RoleUser, Content: "fresh start"},
		},
	})
	if err != nil {
		t.Fatalf("second SaveProject failed: %v", err)
	}
	if returnedID != id {
		t.Errorf("expected same ID back, got %q, want %q", returnedID, id)
	}

	got, err := store.GetProject(ctx, id)
	if err != nil {
		t.Fatalf("GetProject after update failed: %v", err)
	}

	if got.Project.Name != "Renamed Project" {
		t.Errorf("name not updated: got %q", got.Project.Name)
	}
	if got.Project.ProjectType != "mobile" {
		t.Errorf("project type not updated: got %q", got.Project.ProjectType)
	}
	if !got.Project.CreatedAt.Equal(createdAt) {
		t.Errorf("created_at changed on update: got %v, want %v", got.Project.CreatedAt, createdAt)
	}
	if len(got.Messages) != 1 {
		t.Fatalf("expected history to be replaced with 1 message, got %d", len(got.Messages))
	}
	if got.Messages[0].Content != "fresh start" {
		t.Errorf("message mismatch: got %q", got.Messages[0].Content)
	}
}

func TestSaveProject_ExplicitNewID(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	id, err := store.SaveProject(ctx, &SaveProjectRequest{
		ProjectID:   "proj-supplied",
		Name:        "Supplied",
		ProjectType: "web",
	})
	if err != nil {
		t.Fatalf("SaveProject failed: %v", err)
	}
	if id != "proj-supplied" {
		t.Errorf("expected supplied ID back, got %q", id)
	}

	if _, err := store.GetProject(ctx, "proj-supplied"); err != nil {
		t.Errorf("GetProject by supplied ID failed: %v", err)
	}
}

func TestSaveProject_MessageOrderPreserved(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	var msgs []*Message
	contents := []string{"one", "two", "three", "four", "five", "six", "seven"}
	for i, c := range contents {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		msgs = append(msgs, &Message{Role: role, Content: c})
	}

	id, err := store.SaveProject(ctx, &SaveProjectRequest{
		Name:        "Ordered",
		ProjectType: "web",
		Messages:    msgs,
	})
	if err != nil {
		t.Fatalf("SaveProject failed: %v", err)
	}

	got, err := store.GetProject(ctx, id)
	if err != nil {
		t.Fatalf("GetProject failed: %v", err)
	}
	if len(got.Messages) != len(contents) {
		t.Fatalf("expected %d messages, got %d", len(contents), len(got.Messages))
	}
	for i, c := range contents {
		if got.Messages[i].Content != c {
			t.Errorf("message %d out of order: got %q, want %q", i, got.Messages[i].Content, c)
		}
	}
	for i := 1; i < len(got.Messages); i++ {
		if !got.Messages[i-1].CreatedAt.Before(got.Messages[i].CreatedAt) {
			t.Errorf("timestamps not strictly ascending at index %d", i)
		}
	}
}

func TestGetProject_NotFound(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	_, err := store.GetProject(ctx, "nonexistent")
	if err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListProjects_Empty(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	projects, err := store.ListProjects(ctx)
	if err != nil {
		t.Fatalf("ListProjects failed: %v", err)
	}
	if projects == nil {
		t.Error("expected empty slice, got nil")
	}
	if len(projects) != 0 {
		t.Errorf("expected no projects, got %d", len(projects))
	}
}

func TestListProjects_OrderedByUpdatedAt(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	firstID, err := store.SaveProject(ctx, &SaveProjectRequest{Name: "First", ProjectType: "web"})
	if err != nil {
		t.Fatalf("SaveProject failed: %v", err)
	}
	if _, err := store.SaveProject(ctx, &SaveProjectRequest{Name: "Second", ProjectType: "web"}); err != nil {
		t.Fatalf("SaveProject failed: %v", err)
	}

	// Touch the first project so it becomes the most recently updated.
	// RFC 3339 second precision means equal stamps are possible, so force
	// a distinct updated_at directly.
	if _, err := store.db.ExecContext(ctx,
		`UPDATE projects SET updated_at = ? WHERE id = ?`,
		"2099-01-01T00:00:00Z", firstID); err != nil {
		t.Fatalf("touching project failed: %v", err)
	}

	projects, err := store.ListProjects(ctx)
	if err != nil {
		t.Fatalf("ListProjects failed: %v", err)
	}
	if len(projects) != 2 {
		t.Fatalf("expected 2 projects, got %d", len(projects))
	}
	if projects[0].ID != firstID {
		t.Errorf("expected most recently updated project first, got %q", projects[0].Name)
	}
}

func TestDeleteProject(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	id, err := store.SaveProject(ctx, &SaveProjectRequest{
		Name:        "Doomed",
		ProjectType: "web",
		Messages:    []*Message{{Role: RoleUser, Content: "bye"}},
	})
	if err != nil {
		t.Fatalf("SaveProject failed: %v", err)
	}

	if err := store.DeleteProject(ctx, id); err != nil {
		t.Fatalf("DeleteProject failed: %v", err)
	}

	if _, err := store.GetProject(ctx, id); err != ErrNotFound {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	// Messages must be gone via cascade
	var count int
	if err := store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE project_id = ?`, id).Scan(&count); err != nil {
		t.Fatalf("counting messages failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected cascade to remove messages, found %d", count)
	}
}

func TestDeleteProject_Twice(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	id, err := store.SaveProject(ctx, &SaveProjectRequest{Name: "Once", ProjectType: "web"})
	if err != nil {
		t.Fatalf("SaveProject failed: %v", err)
	}

	if err := store.DeleteProject(ctx, id); err != nil {
		t.Fatalf("first delete failed: %v", err)
	}
	if err := store.DeleteProject(ctx, id); err != ErrNotFound {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestSaveProject_NilAgentsStoredAsEmptyList(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	id, err := store.SaveProject(ctx, &SaveProjectRequest{Name: "No Agents", ProjectType: "web"})
	if err != nil {
		t.Fatalf("SaveProject failed: %v", err)
	}

	got, err := store.GetProject(ctx, id)
	if err != nil {
		t.Fatalf("GetProject failed: %v", err)
	}
	if got.Project.ActiveAgents == nil {
		t.Error("expected empty agent list, got nil")
	}
	if len(got.Project.ActiveAgents) != 0 {
		t.Errorf("expected no agents, got %v", got.Project.ActiveAgents)
	}
}
