// Package prompts implements the prompt template library: [[variable]]
// templates organized into folders, persisted in SQLite.
package prompts

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a prompt does not exist.
	ErrNotFound = errors.New("prompt not found")

	// ErrDuplicateName is returned when a folder already holds a prompt
	// with the same name.
	ErrDuplicateName = errors.New("prompt name already exists in folder")
)

// Prompt is a stored template. Variables is derived from Text on every read
// and write, never stored.
type Prompt struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Folder      string    `json:"folder"`
	Text        string    `json:"text"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Hash        string    `json:"hash"`
	Variables   []string  `json:"variables"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (p *Prompt) refresh() {
	p.Hash = HashText(p.Text)
	p.Variables = ExtractVariables(p.Text)
}
