package sessions

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackzampolin/promptbox/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := store.OpenInMemory()
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db)
}

func TestStore_CreateGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess := &Session{
		Name:     "planning",
		Provider: "mock",
		Model:    "mock-small",
		Messages: []*Message{
			{Role: "system", Content: "be brief"},
			{Role: "user", Content: "hi"},
			{Role: "assistant", Content: "hello"},
		},
	}
	if err := s.Create(ctx, sess); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := s.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(got.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(got.Messages))
	}
	for i, m := range got.Messages {
		if m.Position != i {
			t.Errorf("message %d has position %d", i, m.Position)
		}
	}
	if got.Messages[1].Content != "hi" {
		t.Errorf("unexpected transcript order: %+v", got.Messages)
	}
}

func TestStore_SaveMessagesReplaces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess := &Session{
		Name:     "s",
		Provider: "mock",
		Messages: []*Message{
			{Role: "user", Content: "old one"},
			{Role: "assistant", Content: "old two"},
			{Role: "user", Content: "old three"},
		},
	}
	if err := s.Create(ctx, sess); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Saving a shorter transcript drops the tail entirely.
	err := s.SaveMessages(ctx, sess.ID, []*Message{
		{Role: "user", Content: "new one"},
	})
	if err != nil {
		t.Fatalf("SaveMessages failed: %v", err)
	}

	got, err := s.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(got.Messages) != 1 || got.Messages[0].Content != "new one" {
		t.Errorf("expected transcript replaced, got %+v", got.Messages)
	}

	if err := s.SaveMessages(ctx, "missing", nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_DeleteCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess := &Session{
		Name:     "s",
		Provider: "mock",
		Messages: []*Message{{Role: "user", Content: "hi"}},
	}
	if err := s.Create(ctx, sess); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := s.Delete(ctx, sess.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get(ctx, sess.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_UpdateMetadata(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess := &Session{Name: "s", Provider: "mock", Model: "a"}
	if err := s.Create(ctx, sess); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	sess.Provider = "openrouter"
	sess.Model = "b"
	if err := s.Update(ctx, sess); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, _ := s.Get(ctx, sess.ID)
	if got.Provider != "openrouter" || got.Model != "b" {
		t.Errorf("unexpected session: %+v", got)
	}
}

func TestExportMarkdown(t *testing.T) {
	sess := &Session{
		Name:     "demo",
		Provider: "mock",
		Model:    "mock-small",
		Messages: []*Message{
			{Role: "system", Content: "be brief"},
			{Role: "user", Content: "hi"},
			{Role: "assistant", Content: "hello\n"},
		},
	}

	md := ExportMarkdown(sess)
	if !strings.HasPrefix(md, "# demo\n") {
		t.Errorf("expected title, got %q", md[:20])
	}
	for _, want := range []string{"## System", "## User", "## Assistant", "**Provider:** mock", "**Turns:** 3"} {
		if !strings.Contains(md, want) {
			t.Errorf("expected %q in export", want)
		}
	}
	if strings.Contains(md, "hello\n\n\n") {
		t.Error("expected trailing newlines trimmed")
	}
}
