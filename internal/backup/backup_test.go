package backup

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackzampolin/promptbox/internal/cards"
	"github.com/jackzampolin/promptbox/internal/prompts"
	"github.com/jackzampolin/promptbox/internal/store"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	dir := t.TempDir()
	db, err := store.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewManager(filepath.Join(dir, "backups"), db, prompts.NewStore(db), cards.NewStore(db))
}

func TestManager_Database(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	if err := m.prompts.Create(ctx, &prompts.Prompt{Name: "p", Text: "t"}); err != nil {
		t.Fatalf("create prompt: %v", err)
	}

	dest, err := m.Database(ctx)
	if err != nil {
		t.Fatalf("Database failed: %v", err)
	}

	// The snapshot opens as a database holding the prompt.
	snap, err := store.Open(dest)
	if err != nil {
		t.Fatalf("open snapshot: %v", err)
	}
	defer snap.Close()

	var count int
	if err := snap.QueryRow("SELECT COUNT(*) FROM prompts").Scan(&count); err != nil {
		t.Fatalf("query snapshot: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 prompt in snapshot, got %d", count)
	}
}

func TestManager_WriteArchive(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	if err := m.prompts.Create(ctx, &prompts.Prompt{
		Name:   "blog post",
		Folder: "writing",
		Text:   "Write about [[topic]]",
		Tags:   []string{"drafting"},
	}); err != nil {
		t.Fatalf("create prompt: %v", err)
	}
	if err := m.cards.Create(ctx, &cards.Card{
		Name:              "reviewer",
		SystemInstruction: "You review code.",
		FirstMessage:      "Paste the diff.",
	}); err != nil {
		t.Fatalf("create card: %v", err)
	}

	var buf bytes.Buffer
	if err := m.WriteArchive(ctx, &buf); err != nil {
		t.Fatalf("WriteArchive failed: %v", err)
	}

	gz, err := gzip.NewReader(&buf)
	if err != nil {
		t.Fatalf("open gzip: %v", err)
	}
	tr := tar.NewReader(gz)

	entries := map[string]string{}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("read archive: %v", err)
		}
		content, err := io.ReadAll(tr)
		if err != nil {
			t.Fatalf("read entry: %v", err)
		}
		entries[hdr.Name] = string(content)
	}

	promptDoc, ok := entries["prompts/writing/blog-post.md"]
	if !ok {
		t.Fatalf("missing prompt entry, got %v", keys(entries))
	}
	if !strings.HasPrefix(promptDoc, "---\n") {
		t.Error("expected YAML frontmatter")
	}
	if !strings.Contains(promptDoc, "Write about [[topic]]") {
		t.Error("expected template text in body")
	}
	if !strings.Contains(promptDoc, "name: blog post") {
		t.Error("expected name in frontmatter")
	}
	if !strings.Contains(promptDoc, "drafting") {
		t.Error("expected tags in frontmatter")
	}

	cardDoc, ok := entries["cards/reviewer.md"]
	if !ok {
		t.Fatalf("missing card entry, got %v", keys(entries))
	}
	if !strings.Contains(cardDoc, "## System") {
		t.Error("expected instruction section in card body")
	}
	if !strings.Contains(cardDoc, "## First Message") {
		t.Error("expected first message section in card body")
	}
	if !strings.Contains(cardDoc, "kind: character") {
		t.Error("expected kind in frontmatter")
	}
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
