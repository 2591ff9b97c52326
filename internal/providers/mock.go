package providers

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockClient is an in-memory LLMClient for tests and offline development. It
// records every request it receives and replies with a canned response, or
// echoes the last user message when no response is set.
type MockClient struct {
	mu       sync.Mutex
	name     string
	response string
	err      error
	models   []string
	requests []*ChatRequest
}

// NewMockClient creates a mock client with the given identifier.
func NewMockClient(name string) *MockClient {
	if name == "" {
		name = "mock"
	}
	return &MockClient{
		name:   name,
		models: []string{"mock-small", "mock-large"},
	}
}

// SetResponse sets the canned reply for subsequent calls.
func (c *MockClient) SetResponse(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.response = s
}

// SetError makes subsequent calls fail with err.
func (c *MockClient) SetError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

// SetModels sets the catalog returned by ListModels.
func (c *MockClient) SetModels(models []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.models = models
}

// Requests returns a copy of all recorded requests.
func (c *MockClient) Requests() []*ChatRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*ChatRequest, len(c.requests))
	copy(out, c.requests)
	return out
}

// Name returns the client identifier.
func (c *MockClient) Name() string {
	return c.name
}

func (c *MockClient) reply(req *ChatRequest) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	if c.err != nil {
		return "", c.err
	}
	if c.response != "" {
		return c.response, nil
	}
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == RoleUser {
			return "echo: " + req.Messages[i].Content, nil
		}
	}
	return "echo:", nil
}

// Chat returns the canned response.
func (c *MockClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}

	content, err := c.reply(req)
	if err != nil {
		return failedResult(requestID, c.name, "mock_error", start, err), err
	}

	model := req.Model
	if model == "" {
		model = "mock-small"
	}

	return &ChatResult{
		RequestID:        requestID,
		Provider:         c.name,
		Success:          true,
		Content:          content,
		ModelUsed:        model,
		PromptTokens:     len(req.Messages),
		CompletionTokens: len(strings.Fields(content)),
		TotalTokens:      len(req.Messages) + len(strings.Fields(content)),
		ExecutionTime:    time.Since(start),
	}, nil
}

// ChatStream returns the canned response in word-sized deltas.
func (c *MockClient) ChatStream(ctx context.Context, req *ChatRequest, onDelta func(string) error) (*ChatResult, error) {
	result, err := c.Chat(ctx, req)
	if err != nil {
		return result, err
	}

	words := strings.SplitAfter(result.Content, " ")
	for _, w := range words {
		if w == "" {
			continue
		}
		if err := onDelta(w); err != nil {
			result.Success = false
			result.ErrorType = "stream_aborted"
			result.ErrorMessage = err.Error()
			return result, err
		}
	}
	return result, nil
}

// ListModels returns the configured mock catalog.
func (c *MockClient) ListModels(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, fmt.Errorf("mock list models: %w", c.err)
	}
	out := make([]string, len(c.models))
	copy(out, c.models)
	return out, nil
}

var _ LLMClient = (*MockClient)(nil)
