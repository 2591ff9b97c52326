package providers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

type sseStreamChunk struct {
	Model   string `json:"model"`
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
}

// consumeSSE reads "data:" events from an OpenAI-style SSE stream, forwarding
// content deltas to onDelta and accumulating the final result. The result must
// arrive with RequestID, Provider and ModelUsed pre-populated.
func consumeSSE(body io.Reader, result *ChatResult, start time.Time, onDelta func(string) error) (*ChatResult, error) {
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
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}

		var chunk sseStreamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue // Skip malformed keep-alive frames
		}
		if chunk.Model != "" {
			result.ModelUsed = chunk.Model
		}
		if chunk.Usage != nil {
			result.PromptTokens = chunk.Usage.PromptTokens
			result.CompletionTokens = chunk.Usage.CompletionTokens
			result.TotalTokens = chunk.Usage.TotalTokens
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		content.WriteString(delta)
		if err := onDelta(delta); err != nil {
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
