package providers

import (
	"context"
	"errors"
	"testing"
)

func TestRegistry_RegisterGet(t *testing.T) {
	r := NewRegistry()
	mock := NewMockClient("local")
	r.Register("local", mock)

	got, err := r.Get("local")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Name() != "local" {
		t.Errorf("unexpected client: %s", got.Name())
	}

	if _, err := r.Get("missing"); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestRegistry_Reload(t *testing.T) {
	r := NewRegistry()
	r.Register("stale", NewMockClient("stale"))

	r.Reload(RegistryConfig{
		Providers: map[string]ProviderConfig{
			"openrouter": {Type: "openrouter", APIKey: "sk-or-test"},
			"local":      {Type: "ollama"},
			"broken":     {Type: "openai"}, // no api key, should be skipped
			"weird":      {Type: "carrier-pigeon"},
		},
	})

	if r.Has("stale") {
		t.Error("expected stale entry removed")
	}
	if !r.Has("openrouter") || !r.Has("local") {
		t.Errorf("expected configured providers, got %v", r.List())
	}
	if r.Has("broken") {
		t.Error("expected provider without api key skipped")
	}
	if r.Has("weird") {
		t.Error("expected unknown type skipped")
	}
}

func TestRegistry_ReloadReplacesClients(t *testing.T) {
	r := NewRegistry()
	cfg := RegistryConfig{
		Providers: map[string]ProviderConfig{
			"m": {Type: "mock"},
		},
	}
	r.Reload(cfg)
	first, _ := r.Get("m")

	r.Reload(cfg)
	second, _ := r.Get("m")
	if first == second {
		t.Error("expected reload to reconstruct clients")
	}
}

func TestCreateLLMClient_Compatible(t *testing.T) {
	if _, err := createLLMClient("groq", ProviderConfig{Type: "openai-compatible", APIKey: "k"}); err == nil {
		t.Error("expected error without base_url")
	}

	client, err := createLLMClient("groq", ProviderConfig{
		Type:    "openai-compatible",
		APIKey:  "k",
		BaseURL: "https://api.groq.com/openai/v1",
	})
	if err != nil {
		t.Fatalf("createLLMClient failed: %v", err)
	}
	if client.Name() != "groq" {
		t.Errorf("expected client named groq, got %s", client.Name())
	}

	if _, err := createLLMClient("o", ProviderConfig{Type: "openai"}); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}
}

func TestMockClient_Echo(t *testing.T) {
	mock := NewMockClient("")

	result, err := mock.Chat(context.Background(), &ChatRequest{
		Messages: []Message{
			{Role: RoleSystem, Content: "sys"},
			{Role: RoleUser, Content: "ping"},
		},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if result.Content != "echo: ping" {
		t.Errorf("unexpected content: %q", result.Content)
	}
	if len(mock.Requests()) != 1 {
		t.Errorf("expected 1 recorded request")
	}
}
