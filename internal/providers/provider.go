package providers

import (
	"context"
	"errors"
	"time"
)

// Message roles used across all providers.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrNoAPIKey is returned when a provider is invoked without credentials.
var ErrNoAPIKey = errors.New("no API key configured")

// LLMClient is the primary interface for chat completion requests.
// Each provider type implements this behind a config-selected tag; callers
// never see vendor SDK types.
type LLMClient interface {
	// Chat sends a chat completion request and returns the full response.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error)

	// ChatStream sends a chat completion request and invokes onDelta for
	// each content chunk as it arrives. The returned result contains the
	// accumulated content.
	ChatStream(ctx context.Context, req *ChatRequest, onDelta func(string) error) (*ChatResult, error)

	// ListModels returns the model identifiers this provider currently serves.
	ListModels(ctx context.Context) ([]string, error)

	// Name returns the client identifier (e.g., "openrouter").
	Name() string
}

// Message represents a single chat turn.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// ChatRequest is a normalized request to an LLM.
type ChatRequest struct {
	// Required
	Messages []Message `json:"messages"`

	// Model selection (uses client default if empty)
	Model string `json:"model,omitempty"`

	// Generation parameters
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Timeout     time.Duration

	// Request tracking
	RequestID string `json:"-"`
}

// ChatResult is the complete response from an LLM call.
type ChatResult struct {
	// Response content
	Content string `json:"content"`

	// Token counts
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`

	// Timing
	ExecutionTime time.Duration `json:"execution_time"`

	// Provider info
	Provider  string `json:"provider"`
	ModelUsed string `json:"model_used"`

	// Request tracking
	RequestID string `json:"request_id"`

	// Success/error
	Success      bool   `json:"success"`
	ErrorType    string `json:"error_type,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// failedResult builds an error-state result for a request.
func failedResult(requestID, provider, errType string, start time.Time, err error) *ChatResult {
	return &ChatResult{
		RequestID:     requestID,
		Provider:      provider,
		Success:       false,
		ErrorType:     errType,
		ErrorMessage:  err.Error(),
		ExecutionTime: time.Since(start),
	}
}
