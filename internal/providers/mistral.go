package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"
)

const (
	MistralName    = "mistral"
	MistralBaseURL = "https://api.mistral.ai/v1"
)

// MistralConfig holds configuration for the Mistral client.
type MistralConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	Timeout      time.Duration
}

// MistralClient implements LLMClient using the Mistral AI API.
type MistralClient struct {
	apiKey       string
	baseURL      string
	defaultModel string
	client       *http.Client
}

// NewMistralClient creates a new Mistral client.
func NewMistralClient(cfg MistralConfig) *MistralClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = MistralBaseURL
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "mistral-small-latest"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	return &MistralClient{
		apiKey:       cfg.APIKey,
		baseURL:      cfg.BaseURL,
		defaultModel: cfg.DefaultModel,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Name returns the client identifier.
func (c *MistralClient) Name() string {
	return MistralName
}

// Chat sends a chat completion request.
func (c *MistralClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	return c.doChat(ctx, req, nil)
}

// ChatStream sends a chat completion request and streams content deltas.
func (c *MistralClient) ChatStream(ctx context.Context, req *ChatRequest, onDelta func(string) error) (*ChatResult, error) {
	return c.doChat(ctx, req, onDelta)
}

func (c *MistralClient) doChat(ctx context.Context, req *ChatRequest, onDelta func(string) error) (*ChatResult, error) {
	start := time.Now()

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}

	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	msgs := make([]mistralMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, mistralMessage{Role: m.Role, Content: m.Content})
	}

	body, err := json.Marshal(mistralRequest{
		Model:       model,
		Messages:    msgs,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      onDelta != nil,
	})
	if err != nil {
		err = fmt.Errorf("failed to marshal request: %w", err)
		return failedResult(requestID, MistralName, "request_error", start, err), err
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		err = fmt.Errorf("failed to create request: %w", err)
		return failedResult(requestID, MistralName, "request_error", start, err), err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		err = fmt.Errorf("request failed: %w", err)
		return failedResult(requestID, MistralName, "http_error", start, err), err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		err = fmt.Errorf("Mistral error (status %d): %s", resp.StatusCode, string(respBody))
		return failedResult(requestID, MistralName, "http_error", start, err), err
	}

	if onDelta != nil {
		result := &ChatResult{
			RequestID: requestID,
			Provider:  MistralName,
			ModelUsed: model,
		}
		return consumeSSE(resp.Body, result, start, onDelta)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		err = fmt.Errorf("failed to read response: %w", err)
		return failedResult(requestID, MistralName, "http_error", start, err), err
	}

	var mResp mistralResponse
	if err := json.Unmarshal(respBody, &mResp); err != nil {
		err = fmt.Errorf("failed to unmarshal response: %w", err)
		return failedResult(requestID, MistralName, "decode_error", start, err), err
	}
	if len(mResp.Choices) == 0 {
		err = fmt.Errorf("no choices in response")
		return failedResult(requestID, MistralName, "empty_response", start, err), err
	}

	return &ChatResult{
		RequestID:        requestID,
		Provider:         MistralName,
		Success:          true,
		Content:          mResp.Choices[0].Message.Content,
		ModelUsed:        mResp.Model,
		PromptTokens:     mResp.Usage.PromptTokens,
		CompletionTokens: mResp.Usage.CompletionTokens,
		TotalTokens:      mResp.Usage.TotalTokens,
		ExecutionTime:    time.Since(start),
	}, nil
}

// ListModels fetches the model catalog from Mistral.
func (c *MistralClient) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Mistral error (status %d): %s", resp.StatusCode, string(body))
	}

	var list struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("failed to unmarshal models: %w", err)
	}

	models := make([]string, 0, len(list.Data))
	for _, m := range list.Data {
		models = append(models, m.ID)
	}
	sort.Strings(models)
	return models, nil
}

// Mistral API types

type mistralRequest struct {
	Model       string           `json:"model"`
	Messages    []mistralMessage `json:"messages"`
	Temperature float64          `json:"temperature,omitempty"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
	Stream      bool             `json:"stream,omitempty"`
}

type mistralMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type mistralResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

var _ LLMClient = (*MistralClient)(nil)
