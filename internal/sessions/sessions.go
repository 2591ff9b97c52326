// Package sessions persists chat sessions and their transcripts. A save
// always replaces the whole transcript, so the stored message order is
// exactly the in-memory conversation order.
package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("session not found")

// Message is one transcript entry. Position is the zero-based conversation
// order within the session.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Position  int       `json:"position"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is a named conversation bound to a provider and model. PromptID and
// CardID record what seeded it, if anything.
type Session struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Provider  string     `json:"provider"`
	Model     string     `json:"model"`
	PromptID  string     `json:"prompt_id,omitempty"`
	CardID    string     `json:"card_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Messages  []*Message `json:"messages,omitempty"`
}

// Store persists sessions in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore creates a session store over an open database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create stores a new session. Any attached messages are stored too.
func (s *Store) Create(ctx context.Context, sess *Session) error {
	if strings.TrimSpace(sess.Name) == "" {
		return fmt.Errorf("session name is required")
	}
	if sess.Provider == "" {
		return fmt.Errorf("session provider is required")
	}
	if sess.ID == "" {
		sess.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	sess.CreatedAt = now
	sess.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (id, name, provider, model, prompt_id, card_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Name, sess.Provider, sess.Model,
		nullable(sess.PromptID), nullable(sess.CardID),
		sess.CreatedAt, sess.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	if err := insertMessages(ctx, tx, sess.ID, sess.Messages); err != nil {
		return err
	}
	return tx.Commit()
}

// Get fetches a session with its full transcript.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, provider, model, COALESCE(prompt_id, ''), COALESCE(card_id, ''), created_at, updated_at
		 FROM sessions WHERE id = ?`, id)

	var sess Session
	err := row.Scan(&sess.ID, &sess.Name, &sess.Provider, &sess.Model,
		&sess.PromptID, &sess.CardID, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, position, role, content, created_at
		 FROM messages WHERE session_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Position, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		sess.Messages = append(sess.Messages, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &sess, nil
}

// List returns session metadata without transcripts, newest first.
func (s *Store) List(ctx context.Context) ([]*Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, provider, model, COALESCE(prompt_id, ''), COALESCE(card_id, ''), created_at, updated_at
		 FROM sessions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		var sess Session
		err := rows.Scan(&sess.ID, &sess.Name, &sess.Provider, &sess.Model,
			&sess.PromptID, &sess.CardID, &sess.CreatedAt, &sess.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		out = append(out, &sess)
	}
	return out, rows.Err()
}

// Update rewrites session metadata. The transcript is untouched.
func (s *Store) Update(ctx context.Context, sess *Session) error {
	if strings.TrimSpace(sess.Name) == "" {
		return fmt.Errorf("session name is required")
	}
	sess.UpdatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET name = ?, provider = ?, model = ?, updated_at = ? WHERE id = ?`,
		sess.Name, sess.Provider, sess.Model, sess.UpdatedAt, sess.ID)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, sess.ID)
	}
	return nil
}

// SaveMessages replaces the session's entire transcript with msgs, in order.
// Positions are assigned from the slice order.
func (s *Store) SaveMessages(ctx context.Context, sessionID string, msgs []*Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE sessions SET updated_at = ? WHERE id = ?`, time.Now().UTC(), sessionID)
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to clear transcript: %w", err)
	}
	if err := insertMessages(ctx, tx, sessionID, msgs); err != nil {
		return err
	}
	return tx.Commit()
}

// Delete removes a session. Messages go with it via the cascade.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func insertMessages(ctx context.Context, tx *sql.Tx, sessionID string, msgs []*Message) error {
	for i, m := range msgs {
		if m.ID == "" {
			m.ID = uuid.New().String()
		}
		m.SessionID = sessionID
		m.Position = i
		if m.CreatedAt.IsZero() {
			m.CreatedAt = time.Now().UTC()
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO messages (id, session_id, position, role, content, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			m.ID, m.SessionID, m.Position, m.Role, m.Content, m.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert message %d: %w", i, err)
		}
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
