package providers

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// ProviderConfig describes one configured provider entry. Type selects the
// wire protocol; Name (the map key in RegistryConfig) is the identifier the
// rest of the system uses.
type ProviderConfig struct {
	Type         string        `mapstructure:"type" yaml:"type"`
	APIKey       string        `mapstructure:"api_key" yaml:"api_key,omitempty"`
	BaseURL      string        `mapstructure:"base_url" yaml:"base_url,omitempty"`
	DefaultModel string        `mapstructure:"default_model" yaml:"default_model,omitempty"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout,omitempty"`
}

// RegistryConfig is the providers section of the application config.
type RegistryConfig struct {
	Providers map[string]ProviderConfig `mapstructure:"providers" yaml:"providers"`
}

// Registry is a thread-safe collection of named LLM clients. It is rebuilt
// from configuration on startup and on config reload.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]LLMClient
	logger  *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]LLMClient),
		logger:  slog.Default(),
	}
}

// SetLogger sets the logger used for lifecycle events.
func (r *Registry) SetLogger(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if logger != nil {
		r.logger = logger
	}
}

// Register adds or replaces a client under the given name.
func (r *Registry) Register(name string, client LLMClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[name] = client
	r.logger.Debug("provider registered", "provider", name)
}

// Unregister removes a client by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, name)
	r.logger.Debug("provider unregistered", "provider", name)
}

// Get returns the client registered under name.
func (r *Registry) Get(name string) (LLMClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.clients[name]
	if !ok {
		return nil, fmt.Errorf("provider %q not configured", name)
	}
	return client, nil
}

// Has reports whether a client is registered under name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.clients[name]
	return ok
}

// List returns the sorted names of all registered clients.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reload rebuilds the registry from configuration. Entries absent from the
// config are dropped, new entries are constructed, and existing entries are
// reconstructed so credential changes take effect. Construction errors are
// logged and skip the entry rather than failing the whole reload.
func (r *Registry) Reload(cfg RegistryConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	want := make(map[string]bool, len(cfg.Providers))
	for name := range cfg.Providers {
		want[name] = true
	}

	for name := range r.clients {
		if !want[name] {
			delete(r.clients, name)
			r.logger.Info("provider removed", "provider", name)
		}
	}

	for name, pc := range cfg.Providers {
		client, err := createLLMClient(name, pc)
		if err != nil {
			r.logger.Warn("skipping provider", "provider", name, "error", err)
			delete(r.clients, name)
			continue
		}
		if _, existed := r.clients[name]; !existed {
			r.logger.Info("provider configured", "provider", name, "type", pc.Type)
		}
		r.clients[name] = client
	}
}

// createLLMClient constructs a client for a single config entry.
func createLLMClient(name string, pc ProviderConfig) (LLMClient, error) {
	switch pc.Type {
	case "openai":
		if pc.APIKey == "" {
			return nil, ErrNoAPIKey
		}
		return NewOpenAIClient(OpenAIConfig{
			Name:         name,
			APIKey:       pc.APIKey,
			BaseURL:      pc.BaseURL,
			DefaultModel: pc.DefaultModel,
			Timeout:      pc.Timeout,
		}), nil
	case "openai-compatible":
		if pc.APIKey == "" {
			return nil, ErrNoAPIKey
		}
		if pc.BaseURL == "" {
			return nil, fmt.Errorf("openai-compatible provider requires base_url")
		}
		return NewOpenAIClient(OpenAIConfig{
			Name:         name,
			APIKey:       pc.APIKey,
			BaseURL:      pc.BaseURL,
			DefaultModel: pc.DefaultModel,
			Timeout:      pc.Timeout,
		}), nil
	case "openrouter":
		if pc.APIKey == "" {
			return nil, ErrNoAPIKey
		}
		return NewOpenRouterClient(OpenRouterConfig{
			APIKey:       pc.APIKey,
			BaseURL:      pc.BaseURL,
			DefaultModel: pc.DefaultModel,
			Timeout:      pc.Timeout,
		}), nil
	case "mistral":
		if pc.APIKey == "" {
			return nil, ErrNoAPIKey
		}
		return NewMistralClient(MistralConfig{
			APIKey:       pc.APIKey,
			BaseURL:      pc.BaseURL,
			DefaultModel: pc.DefaultModel,
			Timeout:      pc.Timeout,
		}), nil
	case "ollama":
		return NewOllamaClient(OllamaConfig{
			BaseURL:      pc.BaseURL,
			DefaultModel: pc.DefaultModel,
			Timeout:      pc.Timeout,
		}), nil
	case "mock":
		return NewMockClient(name), nil
	default:
		return nil, fmt.Errorf("unknown provider type %q", pc.Type)
	}
}
