// Package config loads and watches the application configuration: a YAML
// file in the promptbox home, overlaid with PROMPTBOX_* environment
// variables, with ${ENV_VAR} references resolved from the environment. A
// .env file in the home or working directory is loaded first, so API keys
// can live outside the config file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
	yaml "gopkg.in/yaml.v2"

	"github.com/jackzampolin/promptbox/internal/home"
)

// envRefPattern matches ${NAME} references in config values.
var envRefPattern = regexp.MustCompile(`\$\{(\w+)\}`)

// Manager owns the loaded configuration and its reload lifecycle.
type Manager struct {
	home   *home.Dir
	logger *slog.Logger

	mu  sync.RWMutex
	cfg *Config

	onChange []func(*Config)
}

// NewManager creates a config manager for the given home directory.
func NewManager(h *home.Dir, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{home: h, logger: logger}
}

// Load reads .env files, the config file and environment overrides. Call once
// at startup; Watch handles subsequent changes.
func (m *Manager) Load() error {
	loadDotEnv(m.home, m.logger)

	cfg, err := m.read()
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()
	return nil
}

func (m *Manager) read() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(m.home.ConfigPath())
	v.SetConfigType("yaml")
	v.SetEnvPrefix("PROMPTBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		m.logger.Debug("no config file, using defaults", "path", m.home.ConfigPath())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	resolveEnvRefs(&cfg)
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	def := DefaultConfig()
	v.SetDefault("server.host", def.Server.Host)
	v.SetDefault("server.port", def.Server.Port)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.max_size_mb", def.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", def.Log.MaxBackups)
	v.SetDefault("log.max_age_days", def.Log.MaxAgeDays)
	v.SetDefault("ollama.image", def.Ollama.Image)
	v.SetDefault("ollama.container_name", def.Ollama.ContainerName)
	v.SetDefault("ollama.port", def.Ollama.Port)
	v.SetDefault("defaults.provider", def.Defaults.Provider)
	v.SetDefault("defaults.model", def.Defaults.Model)
}

// loadDotEnv loads <home>/.env then ./.env without overriding variables that
// are already set.
func loadDotEnv(h *home.Dir, logger *slog.Logger) {
	for _, path := range []string{h.EnvPath(), ".env"} {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := gotenv.Load(path); err != nil {
			logger.Warn("failed to load env file", "path", path, "error", err)
			continue
		}
		logger.Debug("loaded env file", "path", path)
	}
}

// resolveEnvRefs expands ${NAME} references in provider credentials. An
// unset variable resolves to empty, which the registry treats as a missing
// key.
func resolveEnvRefs(cfg *Config) {
	expand := func(s string) string {
		return envRefPattern.ReplaceAllStringFunc(s, func(match string) string {
			name := envRefPattern.FindStringSubmatch(match)[1]
			return os.Getenv(name)
		})
	}
	for name, pc := range cfg.Providers {
		pc.APIKey = expand(pc.APIKey)
		pc.BaseURL = expand(pc.BaseURL)
		cfg.Providers[name] = pc
	}
}

// Get returns the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// OnChange registers a callback invoked with the new configuration after
// every successful reload. Register before calling Watch.
func (m *Manager) OnChange(fn func(*Config)) {
	m.onChange = append(m.onChange, fn)
}

// Watch reloads the configuration whenever the config file changes on disk.
// Editors replace files rather than writing in place, so the watcher covers
// the directory and re-adds interest after renames. Blocks until stop is
// closed.
func (m *Manager) Watch(stop <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(m.home.Path()); err != nil {
		return fmt.Errorf("failed to watch %s: %w", m.home.Path(), err)
	}

	var debounce *time.Timer
	reload := func() {
		cfg, err := m.read()
		if err != nil {
			m.logger.Warn("config reload failed, keeping previous config", "error", err)
			return
		}
		m.mu.Lock()
		m.cfg = cfg
		callbacks := m.onChange
		m.mu.Unlock()

		m.logger.Info("config reloaded", "path", m.home.ConfigPath())
		for _, fn := range callbacks {
			fn(cfg)
		}
	}

	for {
		select {
		case <-stop:
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != m.home.ConfigPath() {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(200*time.Millisecond, reload)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			m.logger.Warn("config watcher error", "error", err)
		}
	}
}

// WriteDefault writes the default configuration to the home config path.
// Fails if a config file already exists.
func (m *Manager) WriteDefault() error {
	if m.home.ConfigExists() {
		return fmt.Errorf("config already exists at %s", m.home.ConfigPath())
	}
	if err := m.home.EnsureExists(); err != nil {
		return err
	}

	out, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to marshal default config: %w", err)
	}
	if err := os.WriteFile(m.home.ConfigPath(), out, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
