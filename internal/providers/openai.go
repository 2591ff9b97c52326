package providers

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const OpenAIName = "openai"

// OpenAIConfig holds configuration for an OpenAI-protocol client. BaseURL
// selects the vendor: empty means api.openai.com, otherwise any
// OpenAI-compatible endpoint (Groq, Cerebras, and similar).
type OpenAIConfig struct {
	Name         string
	APIKey       string
	BaseURL      string
	DefaultModel string
	Timeout      time.Duration
}

// OpenAIClient implements LLMClient over the OpenAI chat completions protocol.
type OpenAIClient struct {
	name         string
	defaultModel string
	client       openai.Client
}

// NewOpenAIClient creates a client for OpenAI or any compatible endpoint.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.Name == "" {
		cfg.Name = OpenAIName
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gpt-4o-mini"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIClient{
		name:         cfg.Name,
		defaultModel: cfg.DefaultModel,
		client:       openai.NewClient(opts...),
	}
}

// Name returns the client identifier.
func (c *OpenAIClient) Name() string {
	return c.name
}

func (c *OpenAIClient) buildParams(req *ChatRequest) openai.ChatCompletionNewParams {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			messages = append(messages, openai.SystemMessage(m.Content))
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    model,
		Messages: messages,
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	return params
}

// Chat sends a chat completion request.
func (c *OpenAIClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}

	params := c.buildParams(req)
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		err = fmt.Errorf("chat completion failed: %w", err)
		return failedResult(requestID, c.name, "api_error", start, err), err
	}
	if len(resp.Choices) == 0 {
		err = fmt.Errorf("no choices in response")
		return failedResult(requestID, c.name, "empty_response", start, err), err
	}

	return &ChatResult{
		RequestID:        requestID,
		Provider:         c.name,
		Success:          true,
		Content:          resp.Choices[0].Message.Content,
		ModelUsed:        resp.Model,
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
		ExecutionTime:    time.Since(start),
	}, nil
}

// ChatStream sends a chat completion request and streams content deltas.
func (c *OpenAIClient) ChatStream(ctx context.Context, req *ChatRequest, onDelta func(string) error) (*ChatResult, error) {
	start := time.Now()

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}

	params := c.buildParams(req)
	stream := c.client.Chat.Completions.NewStreaming(ctx, params)

	result := &ChatResult{
		RequestID: requestID,
		Provider:  c.name,
		ModelUsed: params.Model,
	}

	var content string
	for stream.Next() {
		chunk := stream.Current()
		if chunk.Model != "" {
			result.ModelUsed = chunk.Model
		}
		if chunk.Usage.TotalTokens > 0 {
			result.PromptTokens = int(chunk.Usage.PromptTokens)
			result.CompletionTokens = int(chunk.Usage.CompletionTokens)
			result.TotalTokens = int(chunk.Usage.TotalTokens)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		content += delta
		if err := onDelta(delta); err != nil {
			result.Content = content
			result.Success = false
			result.ErrorType = "stream_aborted"
			result.ErrorMessage = err.Error()
			result.ExecutionTime = time.Since(start)
			return result, err
		}
	}
	if err := stream.Err(); err != nil {
		err = fmt.Errorf("stream failed: %w", err)
		result.Content = content
		result.Success = false
		result.ErrorType = "stream_error"
		result.ErrorMessage = err.Error()
		result.ExecutionTime = time.Since(start)
		return result, err
	}

	result.Content = content
	result.Success = true
	result.ExecutionTime = time.Since(start)
	return result, nil
}

// ListModels fetches the model catalog.
func (c *OpenAIClient) ListModels(ctx context.Context) ([]string, error) {
	page, err := c.client.Models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	models := make([]string, 0, len(page.Data))
	for _, m := range page.Data {
		models = append(models, m.ID)
	}
	sort.Strings(models)
	return models, nil
}

var _ LLMClient = (*OpenAIClient)(nil)
