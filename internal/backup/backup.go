// Package backup produces point-in-time copies of the database and portable
// tar.gz archives of the prompt library.
package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jackzampolin/promptbox/internal/cards"
	"github.com/jackzampolin/promptbox/internal/prompts"
)

// timestamp layout used in backup file names.
const stampLayout = "20060102-150405"

// Manager writes backups into a target directory.
type Manager struct {
	dir     string
	db      *sql.DB
	prompts *prompts.Store
	cards   *cards.Store
}

// NewManager creates a backup manager writing into dir.
func NewManager(dir string, db *sql.DB, prom *prompts.Store, crd *cards.Store) *Manager {
	return &Manager{dir: dir, db: db, prompts: prom, cards: crd}
}

// Database snapshots the live database into the backup directory and returns
// the written path. VACUUM INTO produces a consistent copy without stopping
// writers.
func (m *Manager) Database(ctx context.Context) (string, error) {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup dir: %w", err)
	}
	dest := filepath.Join(m.dir, fmt.Sprintf("promptbox-%s.db", time.Now().Format(stampLayout)))

	if _, err := m.db.ExecContext(ctx, "VACUUM INTO ?", dest); err != nil {
		return "", fmt.Errorf("failed to snapshot database: %w", err)
	}
	return dest, nil
}

// Archive writes a tar.gz of the whole library into the backup directory and
// returns the written path.
func (m *Manager) Archive(ctx context.Context) (string, error) {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup dir: %w", err)
	}
	dest := filepath.Join(m.dir, fmt.Sprintf("promptbox-%s.tar.gz", time.Now().Format(stampLayout)))

	f, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("failed to create archive: %w", err)
	}
	defer f.Close()

	if err := m.WriteArchive(ctx, f); err != nil {
		os.Remove(dest)
		return "", err
	}
	return dest, nil
}

// WriteArchive streams a tar.gz of every prompt and card to w. Each entry is
// a markdown file with YAML frontmatter, so an archive unpacks into something
// readable without the database.
func (m *Manager) WriteArchive(ctx context.Context, w io.Writer) error {
	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)

	allPrompts, err := m.prompts.List(ctx, "")
	if err != nil {
		return err
	}
	for _, p := range allPrompts {
		doc := renderFrontmatter(map[string]any{
			"id":          p.ID,
			"name":        p.Name,
			"folder":      p.Folder,
			"description": p.Description,
			"tags":        p.Tags,
			"hash":        p.Hash,
			"variables":   p.Variables,
			"created_at":  p.CreatedAt.Format(time.RFC3339),
			"updated_at":  p.UpdatedAt.Format(time.RFC3339),
		}, p.Text)
		name := archivePath("prompts", p.Folder, p.Name)
		if err := writeEntry(tw, name, doc, p.UpdatedAt); err != nil {
			return err
		}
	}

	allCards, err := m.cards.List(ctx, "")
	if err != nil {
		return err
	}
	for _, c := range allCards {
		body := cardBody(c)
		doc := renderFrontmatter(map[string]any{
			"id":          c.ID,
			"name":        c.Name,
			"folder":      c.Folder,
			"kind":        c.Kind,
			"description": c.Description,
			"variables":   c.Variables,
			"created_at":  c.CreatedAt.Format(time.RFC3339),
			"updated_at":  c.UpdatedAt.Format(time.RFC3339),
		}, body)
		name := archivePath("cards", c.Folder, c.Name)
		if err := writeEntry(tw, name, doc, c.UpdatedAt); err != nil {
			return err
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	return nil
}

func writeEntry(tw *tar.Writer, name, content string, modTime time.Time) error {
	hdr := &tar.Header{
		Name:    name,
		Mode:    0o644,
		Size:    int64(len(content)),
		ModTime: modTime,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("failed to write archive header: %w", err)
	}
	if _, err := io.WriteString(tw, content); err != nil {
		return fmt.Errorf("failed to write archive entry: %w", err)
	}
	return nil
}

func renderFrontmatter(meta map[string]any, body string) string {
	out, err := yaml.Marshal(meta)
	if err != nil {
		// map[string]any of scalars and string slices always marshals
		out = []byte{}
	}
	return "---\n" + string(out) + "---\n\n" + body + "\n"
}

func cardBody(c *cards.Card) string {
	var b strings.Builder
	if c.SystemInstruction != "" {
		fmt.Fprintf(&b, "## System\n\n%s\n\n", c.SystemInstruction)
	}
	if c.UserInstruction != "" {
		fmt.Fprintf(&b, "## User\n\n%s\n\n", c.UserInstruction)
	}
	if c.AssistantInstruction != "" {
		fmt.Fprintf(&b, "## Assistant\n\n%s\n\n", c.AssistantInstruction)
	}
	if c.FirstMessage != "" {
		fmt.Fprintf(&b, "## First Message\n\n%s\n\n", c.FirstMessage)
	}
	return strings.TrimRight(b.String(), "\n")
}

var unsafePathChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

func archivePath(kind, folder, name string) string {
	clean := func(s string) string {
		s = unsafePathChars.ReplaceAllString(s, "-")
		return strings.Trim(s, "-")
	}
	parts := []string{kind}
	if folder != "" {
		parts = append(parts, clean(folder))
	}
	parts = append(parts, clean(name)+".md")
	return strings.Join(parts, "/")
}
