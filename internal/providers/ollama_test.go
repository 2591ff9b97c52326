package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOllamaClient_Chat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req ollamaChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Stream {
			t.Error("expected stream=false")
		}
		json.NewEncoder(w).Encode(map[string]any{
			"model":             req.Model,
			"message":           map[string]string{"role": "assistant", "content": "local reply"},
			"done":              true,
			"prompt_eval_count": 10,
			"eval_count":        5,
		})
	}))
	defer server.Close()

	client := NewOllamaClient(OllamaConfig{BaseURL: server.URL})

	result, err := client.Chat(context.Background(), &ChatRequest{
		Model:    "llama3.2",
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if result.Content != "local reply" {
		t.Errorf("unexpected content: %q", result.Content)
	}
	if result.TotalTokens != 15 {
		t.Errorf("expected 15 total tokens, got %d", result.TotalTokens)
	}
}

func TestOllamaClient_ChatStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.Write([]byte(`{"model":"llama3.2","message":{"role":"assistant","content":"loc"},"done":false}` + "\n"))
		w.Write([]byte(`{"model":"llama3.2","message":{"role":"assistant","content":"al"},"done":false}` + "\n"))
		w.Write([]byte(`{"model":"llama3.2","message":{"role":"assistant","content":""},"done":true,"prompt_eval_count":7,"eval_count":2}` + "\n"))
	}))
	defer server.Close()

	client := NewOllamaClient(OllamaConfig{BaseURL: server.URL})

	var got string
	result, err := client.ChatStream(context.Background(), &ChatRequest{
		Model:    "llama3.2",
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	}, func(d string) error {
		got += d
		return nil
	})
	if err != nil {
		t.Fatalf("ChatStream failed: %v", err)
	}
	if got != "local" || result.Content != "local" {
		t.Errorf("unexpected content: %q / %q", got, result.Content)
	}
	if result.PromptTokens != 7 || result.CompletionTokens != 2 {
		t.Errorf("expected usage from done chunk, got %+v", result)
	}
}

func TestOllamaClient_ListModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"models": []map[string]string{
				{"name": "qwen2.5:7b"},
				{"name": "llama3.2:latest"},
			},
		})
	}))
	defer server.Close()

	client := NewOllamaClient(OllamaConfig{BaseURL: server.URL})

	models, err := client.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels failed: %v", err)
	}
	if len(models) != 2 || models[0] != "llama3.2:latest" {
		t.Errorf("expected sorted tags, got %v", models)
	}
}
