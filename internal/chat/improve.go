package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackzampolin/promptbox/internal/calls"
	"github.com/jackzampolin/promptbox/internal/providers"
)

const improveSystemPrompt = `You improve prompt templates. The user gives you a template that may contain [[variable]] placeholders. Rewrite it to be clearer and more effective while keeping every placeholder exactly as written. Respond with a JSON object only, no prose: {"improved": "<the rewritten template>", "notes": "<one or two sentences on what you changed>"}`

// Improvement is the structured reply from the improve operation.
type Improvement struct {
	Improved string `json:"improved"`
	Notes    string `json:"notes,omitempty"`
}

// ImprovePrompt asks a provider to rewrite a template. Models often wrap JSON
// in prose or code fences, so the reply is trimmed to the outermost object
// before decoding.
func (o *Orchestrator) ImprovePrompt(ctx context.Context, provider, model, text string) (*Improvement, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("prompt text is empty")
	}

	client, err := o.registry.Get(provider)
	if err != nil {
		return nil, err
	}

	result, err := client.Chat(ctx, &providers.ChatRequest{
		Model: model,
		Messages: []providers.Message{
			{Role: providers.RoleSystem, Content: improveSystemPrompt},
			{Role: providers.RoleUser, Content: text},
		},
	})
	if result != nil {
		if recErr := o.calls.Record(ctx, calls.FromChatResult("", result)); recErr != nil {
			o.logger.Warn("failed to record call", "error", recErr)
		}
	}
	if err != nil {
		return nil, err
	}

	imp, err := parseImprovement(result.Content)
	if err != nil {
		return nil, fmt.Errorf("provider returned unusable reply: %w", err)
	}
	return imp, nil
}

func parseImprovement(reply string) (*Improvement, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in reply")
	}

	var imp Improvement
	if err := json.Unmarshal([]byte(reply[start:end+1]), &imp); err != nil {
		return nil, fmt.Errorf("failed to decode reply: %w", err)
	}
	if strings.TrimSpace(imp.Improved) == "" {
		return nil, fmt.Errorf("reply has no improved text")
	}
	return &imp, nil
}
