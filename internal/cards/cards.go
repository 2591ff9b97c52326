// Package cards implements prompt cards: a named triplet of system, user and
// assistant instructions that seeds a chat session in one step.
package cards

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/jackzampolin/promptbox/internal/prompts"
)

var (
	// ErrNotFound is returned when a card does not exist.
	ErrNotFound = errors.New("card not found")

	// ErrDuplicateName is returned when a folder already holds a card with
	// the same name.
	ErrDuplicateName = errors.New("card name already exists in folder")

	// ErrNoInstructions is returned when all instruction fields and the
	// description are empty.
	ErrNoInstructions = errors.New("card requires at least one instruction")
)

// Card kinds.
const (
	KindCharacter = "character"
	KindScenario  = "scenario"
)

// Card groups the three instruction roles under one name. Any field may be
// empty as long as at least one instruction or the description is set.
// FirstMessage, when set, seeds the opening assistant turn of a session.
type Card struct {
	ID                   string    `json:"id"`
	Name                 string    `json:"name"`
	Folder               string    `json:"folder"`
	Kind                 string    `json:"kind"`
	Description          string    `json:"description,omitempty"`
	FirstMessage         string    `json:"first_message,omitempty"`
	SystemInstruction    string    `json:"system_instruction,omitempty"`
	UserInstruction      string    `json:"user_instruction,omitempty"`
	AssistantInstruction string    `json:"assistant_instruction,omitempty"`
	Variables            []string  `json:"variables"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// ExtractVariables returns the unique placeholder names across the
// instruction fields and the first message, sorted.
func (c *Card) ExtractVariables() []string {
	seen := make(map[string]bool)
	var names []string
	for _, text := range []string{c.SystemInstruction, c.UserInstruction, c.AssistantInstruction, c.FirstMessage} {
		for _, name := range prompts.ExtractVariables(text) {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names
}

func (c *Card) validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("card name is required")
	}
	if c.Kind == "" {
		c.Kind = KindCharacter
	}
	if c.Kind != KindCharacter && c.Kind != KindScenario {
		return fmt.Errorf("card kind must be %q or %q", KindCharacter, KindScenario)
	}
	if strings.TrimSpace(c.SystemInstruction) == "" &&
		strings.TrimSpace(c.UserInstruction) == "" &&
		strings.TrimSpace(c.AssistantInstruction) == "" &&
		strings.TrimSpace(c.Description) == "" {
		return ErrNoInstructions
	}
	return nil
}

// Store persists cards in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore creates a card store over an open database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const cardColumns = "id, name, folder, kind, description, first_message, system_instruction, user_instruction, assistant_instruction, created_at, updated_at"

func scanCard(row interface{ Scan(...any) error }) (*Card, error) {
	var c Card
	err := row.Scan(&c.ID, &c.Name, &c.Folder, &c.Kind, &c.Description, &c.FirstMessage,
		&c.SystemInstruction, &c.UserInstruction, &c.AssistantInstruction,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Variables = c.ExtractVariables()
	return &c, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

// Create stores a new card.
func (s *Store) Create(ctx context.Context, c *Card) error {
	if err := c.validate(); err != nil {
		return err
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	c.Variables = c.ExtractVariables()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cards (id, name, folder, kind, description, first_message, system_instruction, user_instruction, assistant_instruction, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Folder, c.Kind, c.Description, c.FirstMessage,
		c.SystemInstruction, c.UserInstruction, c.AssistantInstruction,
		c.CreatedAt, c.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s/%s", ErrDuplicateName, c.Folder, c.Name)
	}
	if err != nil {
		return fmt.Errorf("failed to create card: %w", err)
	}
	return nil
}

// Get fetches a card by ID.
func (s *Store) Get(ctx context.Context, id string) (*Card, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+cardColumns+" FROM cards WHERE id = ?", id)
	c, err := scanCard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get card: %w", err)
	}
	return c, nil
}

// GetByName fetches a card by folder and name.
func (s *Store) GetByName(ctx context.Context, folder, name string) (*Card, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+cardColumns+" FROM cards WHERE folder = ? AND name = ?", folder, name)
	c, err := scanCard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, folder, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get card: %w", err)
	}
	return c, nil
}

// List returns all cards, optionally restricted to a folder.
func (s *Store) List(ctx context.Context, folder string) ([]*Card, error) {
	query := "SELECT " + cardColumns + " FROM cards"
	var args []any
	if folder != "" {
		query += " WHERE folder = ?"
		args = append(args, folder)
	}
	query += " ORDER BY folder, name"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	defer rows.Close()

	var out []*Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Search returns cards whose name, description or any instruction contains
// q, case-insensitive.
func (s *Store) Search(ctx context.Context, q string) ([]*Card, error) {
	pattern := "%" + strings.ToLower(q) + "%"
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+cardColumns+` FROM cards
		 WHERE lower(name) LIKE ? OR lower(description) LIKE ?
		    OR lower(system_instruction) LIKE ? OR lower(user_instruction) LIKE ? OR lower(assistant_instruction) LIKE ?
		 ORDER BY folder, name`,
		pattern, pattern, pattern, pattern, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to search cards: %w", err)
	}
	defer rows.Close()

	var out []*Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Update rewrites a card's mutable fields.
func (s *Store) Update(ctx context.Context, c *Card) error {
	if err := c.validate(); err != nil {
		return err
	}
	c.UpdatedAt = time.Now().UTC()
	c.Variables = c.ExtractVariables()

	res, err := s.db.ExecContext(ctx,
		`UPDATE cards SET name = ?, folder = ?, kind = ?, description = ?, first_message = ?, system_instruction = ?, user_instruction = ?, assistant_instruction = ?, updated_at = ?
		 WHERE id = ?`,
		c.Name, c.Folder, c.Kind, c.Description, c.FirstMessage,
		c.SystemInstruction, c.UserInstruction, c.AssistantInstruction,
		c.UpdatedAt, c.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s/%s", ErrDuplicateName, c.Folder, c.Name)
	}
	if err != nil {
		return fmt.Errorf("failed to update card: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update card: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, c.ID)
	}
	return nil
}

// Delete removes a card by ID.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM cards WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete card: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete card: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
