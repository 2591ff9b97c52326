package config

import (
	"fmt"

	"github.com/jackzampolin/promptbox/internal/providers"
)

// Config is the full application configuration, loaded from config.yaml with
// PROMPTBOX_* environment overrides.
type Config struct {
	Server    ServerConfig                        `mapstructure:"server" yaml:"server"`
	Log       LogConfig                           `mapstructure:"log" yaml:"log"`
	Ollama    OllamaConfig                        `mapstructure:"ollama" yaml:"ollama"`
	Telemetry TelemetryConfig                     `mapstructure:"telemetry" yaml:"telemetry"`
	Defaults  DefaultsConfig                      `mapstructure:"defaults" yaml:"defaults"`
	Providers map[string]providers.ProviderConfig `mapstructure:"providers" yaml:"providers"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LogConfig controls structured logging and file rotation.
type LogConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	File       string `mapstructure:"file" yaml:"file,omitempty"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
}

// OllamaConfig controls the optional managed local Ollama container.
type OllamaConfig struct {
	Managed       bool   `mapstructure:"managed" yaml:"managed"`
	Image         string `mapstructure:"image" yaml:"image"`
	ContainerName string `mapstructure:"container_name" yaml:"container_name"`
	Port          int    `mapstructure:"port" yaml:"port"`
}

// TelemetryConfig toggles the OpenTelemetry stdout exporters.
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// DefaultsConfig holds the fallback chat target used when a session does not
// name one.
type DefaultsConfig struct {
	Provider string `mapstructure:"provider" yaml:"provider"`
	Model    string `mapstructure:"model" yaml:"model"`
}

// RegistryConfig extracts the providers section in the shape the provider
// registry consumes.
func (c *Config) RegistryConfig() providers.RegistryConfig {
	return providers.RegistryConfig{Providers: c.Providers}
}

// DefaultConfig returns the configuration written by `promptbox config init`.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8990,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  20,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Ollama: OllamaConfig{
			Managed:       false,
			Image:         "ollama/ollama",
			ContainerName: "promptbox-ollama",
			Port:          11434,
		},
		Defaults: DefaultsConfig{
			Provider: "ollama",
			Model:    "llama3.2",
		},
		Providers: map[string]providers.ProviderConfig{
			"ollama": {
				Type: "ollama",
			},
			"openrouter": {
				Type:   "openrouter",
				APIKey: "${OPENROUTER_API_KEY}",
			},
			"mistral": {
				Type:   "mistral",
				APIKey: "${MISTRAL_API_KEY}",
			},
			"openai": {
				Type:   "openai",
				APIKey: "${OPENAI_API_KEY}",
			},
			"groq": {
				Type:    "openai-compatible",
				APIKey:  "${GROQ_API_KEY}",
				BaseURL: "https://api.groq.com/openai/v1",
			},
			"cerebras": {
				Type:    "openai-compatible",
				APIKey:  "${CEREBRAS_API_KEY}",
				BaseURL: "https://api.cerebras.ai/v1",
			},
		},
	}
}
