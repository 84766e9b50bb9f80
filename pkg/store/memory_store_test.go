package store

import (
	"testing"
	"time"

	"planhub/pkg/domain"
)

func TestMemoryStoreSessionLifecycle(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now().UTC()
	if err := s.SaveProject(domain.Project{ID: "demo", CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("save project: %v", err)
	}
	if err := s.SaveSession(domain.Session{
		ID: "s1", ProjectID: "demo", UserName: "alice",
		JoinedAt: now, LastActivity: now, Active: true,
	}); err != nil {
		t.Fatalf("save session: %v", err)
	}

	active, err := s.ListActiveSessions("demo")
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 1 || active[0].ID != "s1" {
		t.Fatalf("expected one active session s1, got %+v", active)
	}

	if err := s.SetSessionInactive("s1"); err != nil {
		t.Fatalf("set inactive: %v", err)
	}
	active, err = s.ListActiveSessions("demo")
	if err != nil {
		t.Fatalf("list active after leave: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("expected no active sessions after leave, got %d", len(active))
	}

	// Leave is best-effort: unknown session is not an error.
	if err := s.SetSessionInactive("ghost"); err != nil {
		t.Fatalf("leave for unknown session should be a no-op, got %v", err)
	}
}

func TestMemoryStorePurgeSessions(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now().UTC()
	stale := now.Add(-time.Hour)
	_ = s.SaveSession(domain.Session{ID: "ghost", ProjectID: "demo", JoinedAt: stale, LastActivity: stale, Active: true})
	_ = s.SaveSession(domain.Session{ID: "live", ProjectID: "demo", JoinedAt: now, LastActivity: now, Active: true})

	purged, err := s.PurgeSessions("demo", now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if purged != 1 {
		t.Fatalf("expected 1 purged session, got %d", purged)
	}
	active, _ := s.ListActiveSessions("demo")
	if len(active) != 1 || active[0].ID != "live" {
		t.Fatalf("expected only live session to survive, got %+v", active)
	}
}

func TestMemoryStoreMessagesKeepAppendOrder(t *testing.T) {
	s := NewMemoryStore()
	base := time.Now().UTC()
	for i, content := range []string{"first", "second", "third"} {
		if err := s.AppendMessage(domain.Message{
			ID: content, ProjectID: "demo", Role: domain.RoleUser,
			Content: content, CreatedAt: base.Add(time.Duration(i) * time.Millisecond),
		}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	msgs, err := s.ListMessages("demo", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 3 || msgs[0].Content != "first" || msgs[2].Content != "third" {
		t.Fatalf("messages out of append order: %+v", msgs)
	}

	tail, err := s.ListMessages("demo", 2)
	if err != nil {
		t.Fatalf("list limited: %v", err)
	}
	if len(tail) != 2 || tail[0].Content != "second" {
		t.Fatalf("limit should keep the newest messages in order, got %+v", tail)
	}
}

func TestMemoryStoreDeleteProjectCascades(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now().UTC()
	_ = s.SaveProject(domain.Project{ID: "demo", CreatedAt: now, UpdatedAt: now})
	_ = s.SaveSession(domain.Session{ID: "s1", ProjectID: "demo", JoinedAt: now, LastActivity: now, Active: true})
	_ = s.AppendMessage(domain.Message{ID: "m1", ProjectID: "demo", Role: domain.RoleUser, Content: "hi", CreatedAt: now})
	_ = s.ReplaceDocument(domain.ProjectDocument{ProjectID: "demo", Content: "# Plan", UpdatedAt: now})
	_ = s.SaveUpload(domain.UploadedDocument{ID: "u1", ProjectID: "demo", Filename: "spec.pdf", UploadedAt: now})

	if err := s.DeleteProject("demo"); err != nil {
		t.Fatalf("delete project: %v", err)
	}
	if _, ok, _ := s.GetProject("demo"); ok {
		t.Fatal("project should be gone")
	}
	if msgs, _ := s.ListMessages("demo", 0); len(msgs) != 0 {
		t.Fatalf("messages should be gone, got %d", len(msgs))
	}
	if _, ok, _ := s.GetDocument("demo"); ok {
		t.Fatal("document should be gone")
	}
	if _, ok, _ := s.GetUpload("u1"); ok {
		t.Fatal("upload should be gone")
	}
	if err := s.DeleteProject("demo"); err != ErrNotFound {
		t.Fatalf("second delete should report ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreInvitationSingleUse(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now().UTC()
	_ = s.SaveInvitation(domain.Invitation{
		ID: "inv1", ProjectID: "demo", Email: "a@example.com",
		CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	})
	if err := s.MarkInvitationUsed("inv1", now); err != nil {
		t.Fatalf("first use: %v", err)
	}
	if err := s.MarkInvitationUsed("inv1", now); err != ErrNotFound {
		t.Fatalf("second use should fail with ErrNotFound, got %v", err)
	}
	inv, ok, _ := s.GetInvitation("inv1")
	if !ok || !inv.Used() {
		t.Fatalf("invitation should be marked used: %+v", inv)
	}
}
