package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jackzampolin/promptbox/internal/home"
)

func newTestManager(t *testing.T) (*Manager, *home.Dir) {
	t.Helper()
	h, err := home.New(t.TempDir())
	if err != nil {
		t.Fatalf("home.New failed: %v", err)
	}
	if err := h.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists failed: %v", err)
	}
	return NewManager(h, nil), h
}

func TestManager_LoadDefaults(t *testing.T) {
	m, _ := newTestManager(t)

	if err := m.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	cfg := m.Get()
	if cfg.Server.Port != 8990 {
		t.Errorf("expected default port, got %d", cfg.Server.Port)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected default log level, got %q", cfg.Log.Level)
	}
	if cfg.Server.Addr() != "127.0.0.1:8990" {
		t.Errorf("unexpected addr: %s", cfg.Server.Addr())
	}
}

func TestManager_LoadFile(t *testing.T) {
	m, h := newTestManager(t)

	content := `
server:
  port: 9999
providers:
  local:
    type: ollama
  remote:
    type: openrouter
    api_key: "${TEST_OPENROUTER_KEY}"
`
	if err := os.WriteFile(h.ConfigPath(), []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("TEST_OPENROUTER_KEY", "sk-or-resolved")

	if err := m.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	cfg := m.Get()
	if cfg.Server.Port != 9999 {
		t.Errorf("expected port from file, got %d", cfg.Server.Port)
	}
	if cfg.Providers["remote"].APIKey != "sk-or-resolved" {
		t.Errorf("expected env reference resolved, got %q", cfg.Providers["remote"].APIKey)
	}
	if cfg.Providers["local"].Type != "ollama" {
		t.Errorf("unexpected providers: %+v", cfg.Providers)
	}

	rc := cfg.RegistryConfig()
	if len(rc.Providers) != 2 {
		t.Errorf("expected registry config with 2 providers, got %d", len(rc.Providers))
	}
}

func TestManager_EnvOverride(t *testing.T) {
	m, _ := newTestManager(t)
	t.Setenv("PROMPTBOX_SERVER_PORT", "7777")

	if err := m.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := m.Get().Server.Port; got != 7777 {
		t.Errorf("expected env override, got %d", got)
	}
}

func TestManager_DotEnv(t *testing.T) {
	m, h := newTestManager(t)

	if err := os.WriteFile(h.EnvPath(), []byte("DOTENV_PROBE_KEY=from-dotenv\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	content := `
providers:
  remote:
    type: mistral
    api_key: "${DOTENV_PROBE_KEY}"
`
	if err := os.WriteFile(h.ConfigPath(), []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("DOTENV_PROBE_KEY") })

	if err := m.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := m.Get().Providers["remote"].APIKey; got != "from-dotenv" {
		t.Errorf("expected key from .env, got %q", got)
	}
}

func TestManager_WriteDefault(t *testing.T) {
	m, h := newTestManager(t)

	if err := m.WriteDefault(); err != nil {
		t.Fatalf("WriteDefault failed: %v", err)
	}
	if !h.ConfigExists() {
		t.Fatal("expected config file written")
	}
	if err := m.WriteDefault(); err == nil {
		t.Error("expected error when config exists")
	}

	// The written file round-trips through Load.
	if err := m.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	cfg := m.Get()
	if cfg.Providers["ollama"].Type != "ollama" {
		t.Errorf("unexpected default providers: %+v", cfg.Providers)
	}

	info, err := os.Stat(filepath.Join(h.Path(), home.ConfigFileName))
	if err != nil {
		t.Fatalf("stat config: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("expected restrictive permissions, got %v", info.Mode().Perm())
	}
}
