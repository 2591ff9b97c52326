package prompts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

// Store persists prompts in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore creates a prompt store over an open database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const promptColumns = "id, name, folder, text, description, tags, hash, created_at, updated_at"

func scanPrompt(row interface{ Scan(...any) error }) (*Prompt, error) {
	var p Prompt
	var tags string
	err := row.Scan(&p.ID, &p.Name, &p.Folder, &p.Text, &p.Description, &tags, &p.Hash, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Tags = splitTags(tags)
	p.Variables = ExtractVariables(p.Text)
	return &p, nil
}

// Tags are stored as a comma-separated column.
func joinTags(tags []string) string {
	var kept []string
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			kept = append(kept, t)
		}
	}
	return strings.Join(kept, ",")
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

// Create stores a new prompt. Name must be non-empty and unique within its
// folder.
func (s *Store) Create(ctx context.Context, p *Prompt) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("prompt name is required")
	}
	if strings.TrimSpace(p.Text) == "" {
		return fmt.Errorf("prompt text is required")
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	p.refresh()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO prompts (id, name, folder, text, description, tags, hash, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Folder, p.Text, p.Description, joinTags(p.Tags), p.Hash, p.CreatedAt, p.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s/%s", ErrDuplicateName, p.Folder, p.Name)
	}
	if err != nil {
		return fmt.Errorf("failed to create prompt: %w", err)
	}
	return nil
}

// Get fetches a prompt by ID.
func (s *Store) Get(ctx context.Context, id string) (*Prompt, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+promptColumns+" FROM prompts WHERE id = ?", id)
	p, err := scanPrompt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prompt: %w", err)
	}
	return p, nil
}

// GetByName fetches a prompt by folder and name.
func (s *Store) GetByName(ctx context.Context, folder, name string) (*Prompt, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+promptColumns+" FROM prompts WHERE folder = ? AND name = ?", folder, name)
	p, err := scanPrompt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, folder, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prompt: %w", err)
	}
	return p, nil
}

// List returns all prompts, optionally restricted to a folder, ordered by
// folder then name.
func (s *Store) List(ctx context.Context, folder string) ([]*Prompt, error) {
	query := "SELECT " + promptColumns + " FROM prompts"
	var args []any
	if folder != "" {
		query += " WHERE folder = ?"
		args = append(args, folder)
	}
	query += " ORDER BY folder, name"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list prompts: %w", err)
	}
	defer rows.Close()

	var out []*Prompt
	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prompt: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Search returns prompts whose name, text, description or tags contain q,
// case-insensitive.
func (s *Store) Search(ctx context.Context, q string) ([]*Prompt, error) {
	pattern := "%" + strings.ToLower(q) + "%"
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+promptColumns+` FROM prompts
		 WHERE lower(name) LIKE ? OR lower(text) LIKE ? OR lower(description) LIKE ? OR lower(tags) LIKE ?
		 ORDER BY folder, name`,
		pattern, pattern, pattern, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to search prompts: %w", err)
	}
	defer rows.Close()

	var out []*Prompt
	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prompt: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Update rewrites a prompt's mutable fields.
func (s *Store) Update(ctx context.Context, p *Prompt) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("prompt name is required")
	}
	if strings.TrimSpace(p.Text) == "" {
		return fmt.Errorf("prompt text is required")
	}
	p.UpdatedAt = time.Now().UTC()
	p.refresh()

	res, err := s.db.ExecContext(ctx,
		`UPDATE prompts SET name = ?, folder = ?, text = ?, description = ?, tags = ?, hash = ?, updated_at = ?
		 WHERE id = ?`,
		p.Name, p.Folder, p.Text, p.Description, joinTags(p.Tags), p.Hash, p.UpdatedAt, p.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s/%s", ErrDuplicateName, p.Folder, p.Name)
	}
	if err != nil {
		return fmt.Errorf("failed to update prompt: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update prompt: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, p.ID)
	}
	return nil
}

// Delete removes a prompt by ID.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM prompts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete prompt: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete prompt: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Folders returns the distinct folder names in use, sorted.
func (s *Store) Folders(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT folder FROM prompts ORDER BY folder")
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, fmt.Errorf("failed to scan folder: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
