// Package calls records every LLM invocation for inspection: tokens, timing
// and failures, one row per request.
package calls

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/promptbox/internal/providers"
)

// ErrNotFound is returned when a call record does not exist.
var ErrNotFound = errors.New("call not found")

// Call is one recorded LLM invocation.
type Call struct {
	ID               string        `json:"id"`
	RequestID        string        `json:"request_id"`
	SessionID        string        `json:"session_id,omitempty"`
	Provider         string        `json:"provider"`
	Model            string        `json:"model"`
	Success          bool          `json:"success"`
	ErrorType        string        `json:"error_type,omitempty"`
	ErrorMessage     string        `json:"error_message,omitempty"`
	PromptTokens     int           `json:"prompt_tokens"`
	CompletionTokens int           `json:"completion_tokens"`
	TotalTokens      int           `json:"total_tokens"`
	ExecutionTime    time.Duration `json:"execution_ms"`
	CreatedAt        time.Time     `json:"created_at"`
}

// FromChatResult builds a record from a provider result.
func FromChatResult(sessionID string, result *providers.ChatResult) *Call {
	return &Call{
		ID:               uuid.New().String(),
		RequestID:        result.RequestID,
		SessionID:        sessionID,
		Provider:         result.Provider,
		Model:            result.ModelUsed,
		Success:          result.Success,
		ErrorType:        result.ErrorType,
		ErrorMessage:     result.ErrorMessage,
		PromptTokens:     result.PromptTokens,
		CompletionTokens: result.CompletionTokens,
		TotalTokens:      result.TotalTokens,
		ExecutionTime:    result.ExecutionTime,
	}
}

// Stats summarizes recorded calls.
type Stats struct {
	TotalCalls  int `json:"total_calls"`
	Failures    int `json:"failures"`
	TotalTokens int `json:"total_tokens"`
}

// Store persists call records in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore creates a call store over an open database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Record stores one call.
func (s *Store) Record(ctx context.Context, c *Call) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO llm_calls (id, request_id, session_id, provider, model, success, error_type, error_message,
		                        prompt_tokens, completion_tokens, total_tokens, execution_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.RequestID, c.SessionID, c.Provider, c.Model, c.Success, c.ErrorType, c.ErrorMessage,
		c.PromptTokens, c.CompletionTokens, c.TotalTokens, c.ExecutionTime.Milliseconds(), c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record call: %w", err)
	}
	return nil
}

const callColumns = `id, request_id, session_id, provider, model, success, error_type, error_message,
	prompt_tokens, completion_tokens, total_tokens, execution_ms, created_at`

func scanCall(row interface{ Scan(...any) error }) (*Call, error) {
	var c Call
	var ms int64
	err := row.Scan(&c.ID, &c.RequestID, &c.SessionID, &c.Provider, &c.Model, &c.Success,
		&c.ErrorType, &c.ErrorMessage, &c.PromptTokens, &c.CompletionTokens, &c.TotalTokens,
		&ms, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	c.ExecutionTime = time.Duration(ms) * time.Millisecond
	return &c, nil
}

// Get fetches one call record by ID.
func (s *Store) Get(ctx context.Context, id string) (*Call, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+callColumns+" FROM llm_calls WHERE id = ?", id)
	c, err := scanCall(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get call: %w", err)
	}
	return c, nil
}

// List returns the most recent calls, newest first, up to limit.
func (s *Store) List(ctx context.Context, limit int) ([]*Call, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+callColumns+" FROM llm_calls ORDER BY created_at DESC, id LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list calls: %w", err)
	}
	defer rows.Close()

	var out []*Call
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan call: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListBySession returns the calls made for one session, oldest first.
func (s *Store) ListBySession(ctx context.Context, sessionID string) ([]*Call, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+callColumns+" FROM llm_calls WHERE session_id = ? ORDER BY created_at, id", sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list calls: %w", err)
	}
	defer rows.Close()

	var out []*Call
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan call: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Stats aggregates all recorded calls.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END), 0), COALESCE(SUM(total_tokens), 0)
		 FROM llm_calls`).Scan(&st.TotalCalls, &st.Failures, &st.TotalTokens)
	if err != nil {
		return nil, fmt.Errorf("failed to compute stats: %w", err)
	}
	return &st, nil
}
