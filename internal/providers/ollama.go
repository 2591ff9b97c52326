package providers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	OllamaName    = "ollama"
	OllamaBaseURL = "http://localhost:11434"
)

// OllamaConfig holds configuration for the Ollama client.
type OllamaConfig struct {
	BaseURL      string
	DefaultModel string
	Timeout      time.Duration
}

// OllamaClient implements LLMClient against a local Ollama server. No API key
// is required; the server is reachable over plain HTTP.
type OllamaClient struct {
	baseURL      string
	defaultModel string
	client       *http.Client
}

// NewOllamaClient creates a new Ollama client.
func NewOllamaClient(cfg OllamaConfig) *OllamaClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = OllamaBaseURL
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "llama3.2"
	}
	if cfg.Timeout == 0 {
		// Local models can be slow to first token while loading weights.
		cfg.Timeout = 300 * time.Second
	}

	return &OllamaClient{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		defaultModel: cfg.DefaultModel,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Name returns the client identifier.
func (c *OllamaClient) Name() string {
	return OllamaName
}

// Chat sends a chat request to the local Ollama server.
func (c *OllamaClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	return c.doChat(ctx, req, nil)
}

// ChatStream sends a chat request and streams content deltas. Ollama streams
// newline-delimited JSON objects rather than SSE frames.
func (c *OllamaClient) ChatStream(ctx context.Context, req *ChatRequest, onDelta func(string) error) (*ChatResult, error) {
	return c.doChat(ctx, req, onDelta)
}

func (c *OllamaClient) doChat(ctx context.Context, req *ChatRequest, onDelta func(string) error) (*ChatResult, error) {
	start := time.Now()

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}

	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	msgs := make([]ollamaMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, ollamaMessage{Role: m.Role, Content: m.Content})
	}

	oReq := ollamaChatRequest{
		Model:    model,
		Messages: msgs,
		Stream:   onDelta != nil,
	}
	if req.Temperature > 0 {
		oReq.Options.Temperature = req.Temperature
	}
	if req.MaxTokens > 0 {
		oReq.Options.NumPredict = req.MaxTokens
	}

	body, err := json.Marshal(&oReq)
	if err != nil {
		err = fmt.Errorf("failed to marshal request: %w", err)
		return failedResult(requestID, OllamaName, "request_error", start, err), err
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		err = fmt.Errorf("failed to create request: %w", err)
		return failedResult(requestID, OllamaName, "request_error", start, err), err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		err = fmt.Errorf("request failed: %w", err)
		return failedResult(requestID, OllamaName, "http_error", start, err), err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		err = fmt.Errorf("Ollama error (status %d): %s", resp.StatusCode, string(respBody))
		return failedResult(requestID, OllamaName, "http_error", start, err), err
	}

	if onDelta != nil {
		return c.consumeNDJSON(resp.Body, requestID, model, start, onDelta)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		err = fmt.Errorf("failed to read response: %w", err)
		return failedResult(requestID, OllamaName, "http_error", start, err), err
	}

	var oResp ollamaChatResponse
	if err := json.Unmarshal(respBody, &oResp); err != nil {
		err = fmt.Errorf("failed to unmarshal response: %w", err)
		return failedResult(requestID, OllamaName, "decode_error", start, err), err
	}

	return &ChatResult{
		RequestID:        requestID,
		Provider:         OllamaName,
		Success:          true,
		Content:          oResp.Message.Content,
		ModelUsed:        oResp.Model,
		PromptTokens:     oResp.PromptEvalCount,
		CompletionTokens: oResp.EvalCount,
		TotalTokens:      oResp.PromptEvalCount + oResp.EvalCount,
		ExecutionTime:    time.Since(start),
	}, nil
}

func (c *OllamaClient) consumeNDJSON(body io.Reader, requestID, model string, start time.Time, onDelta func(string) error) (*ChatResult, error) {
	result := &ChatResult{
		RequestID: requestID,
		Provider:  OllamaName,
		ModelUsed: model,
	}
	var content strings.Builder

	fail := func(errType string, err error) (*ChatResult, error) {
		result.Content = content.String()
		result.Success = false
		result.ErrorType = errType
		result.ErrorMessage = err.Error()
		result.ExecutionTime = time.Since(start)
		return result, err
	}

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var chunk ollamaChatResponse
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			return fail("decode_error", fmt.Errorf("failed to unmarshal stream chunk: %w", err))
		}
		if chunk.Model != "" {
			result.ModelUsed = chunk.Model
		}
		if chunk.Done {
			result.PromptTokens = chunk.PromptEvalCount
			result.CompletionTokens = chunk.EvalCount
			result.TotalTokens = chunk.PromptEvalCount + chunk.EvalCount
		}
		if chunk.Message.Content == "" {
			continue
		}
		content.WriteString(chunk.Message.Content)
		if err := onDelta(chunk.Message.Content); err != nil {
			return fail("stream_aborted", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fail("stream_error", fmt.Errorf("stream read failed: %w", err))
	}

	result.Content = content.String()
	result.Success = true
	result.ExecutionTime = time.Since(start)
	return result, nil
}

// ListModels fetches the locally installed model tags.
func (c *OllamaClient) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

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
		return nil, fmt.Errorf("Ollama error (status %d): %s", resp.StatusCode, string(body))
	}

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.Unmarshal(body, &tags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
	}

	models := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		models = append(models, m.Name)
	}
	sort.Strings(models)
	return models, nil
}

// Ollama API types

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  struct {
		Temperature float64 `json:"temperature,omitempty"`
		NumPredict  int     `json:"num_predict,omitempty"`
	} `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatResponse struct {
	Model           string        `json:"model"`
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
}

var _ LLMClient = (*OllamaClient)(nil)
