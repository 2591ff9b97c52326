package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jackzampolin/promptbox/internal/api"
	"github.com/jackzampolin/promptbox/internal/backup"
	"github.com/jackzampolin/promptbox/internal/calls"
	"github.com/jackzampolin/promptbox/internal/cards"
	"github.com/jackzampolin/promptbox/internal/chat"
	"github.com/jackzampolin/promptbox/internal/config"
	"github.com/jackzampolin/promptbox/internal/home"
	"github.com/jackzampolin/promptbox/internal/ollama"
	"github.com/jackzampolin/promptbox/internal/prompts"
	"github.com/jackzampolin/promptbox/internal/providers"
	"github.com/jackzampolin/promptbox/internal/sessions"
	"github.com/jackzampolin/promptbox/internal/server/endpoints"
	"github.com/jackzampolin/promptbox/internal/store"
	"github.com/jackzampolin/promptbox/internal/svcctx"
)

// Server is the promptbox HTTP server. When the config asks for a managed
// Ollama container it owns that container's lifecycle too, starting it
// before serving and stopping it on shutdown.
type Server struct {
	httpServer    *http.Server
	db            *sql.DB
	ollamaManager *ollama.Manager
	registry      *providers.Registry
	configMgr     *config.Manager
	home          *home.Dir
	logger        *slog.Logger

	// services holds all core services for context enrichment
	services *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 8990)
	Port int
	// Home is the promptbox home directory
	Home *home.Dir
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8990
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Home == nil {
		return nil, errors.New("home directory is required")
	}
	if err := cfg.Home.EnsureExists(); err != nil {
		return nil, fmt.Errorf("failed to prepare home directory: %w", err)
	}

	s := &Server{
		configMgr: cfg.ConfigManager,
		home:      cfg.Home,
		logger:    cfg.Logger,
	}

	// Managed Ollama container, opt-in via config
	if cfg.ConfigManager != nil && cfg.ConfigManager.Get().Ollama.Managed {
		mgr, err := ollama.NewManager(cfg.ConfigManager.Get().Ollama, cfg.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama manager: %w", err)
		}
		s.ollamaManager = mgr
	}

	// Provider registry with hot reload
	s.registry = providers.NewRegistry()
	s.registry.SetLogger(cfg.Logger)
	if cfg.ConfigManager != nil {
		s.reloadRegistry(cfg.ConfigManager.Get())
		cfg.ConfigManager.OnChange(func(c *config.Config) {
			s.reloadRegistry(c)
			cfg.Logger.Info("provider registry reloaded from config")
		})
	}

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All(endpoints.Config{OllamaManager: s.ollamaManager}) {
		s.endpointRegistry.Register(ep)
	}

	// Set up HTTP server
	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:     s.withServices(mux),
		ReadTimeout: 30 * time.Second,
		// Streaming chat turns hold the response open well past any
		// sensible write timeout.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// reloadRegistry pushes the providers section into the registry. When a
// managed Ollama container is configured, ollama providers without an
// explicit base URL are pointed at it.
func (s *Server) reloadRegistry(c *config.Config) {
	rc := c.RegistryConfig()
	if s.ollamaManager != nil {
		patched := make(map[string]providers.ProviderConfig, len(rc.Providers))
		for name, pc := range rc.Providers {
			if pc.Type == "ollama" && pc.BaseURL == "" {
				pc.BaseURL = s.ollamaManager.BaseURL()
			}
			patched[name] = pc
		}
		rc.Providers = patched
	}
	s.registry.Reload(rc)
}

// Start starts the server and, when managed, the Ollama container.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	if s.ollamaManager != nil {
		s.logger.Info("starting ollama container")
		if err := s.ollamaManager.Start(ctx); err != nil {
			s.setNotRunning()
			return fmt.Errorf("failed to start ollama: %w", err)
		}
		s.logger.Info("ollama is ready", "url", s.ollamaManager.BaseURL())
	}

	db, err := store.Open(s.home.DatabasePath())
	if err != nil {
		s.setNotRunning()
		return fmt.Errorf("failed to open database: %w", err)
	}
	s.db = db

	promptStore := prompts.NewStore(db)
	cardStore := cards.NewStore(db)
	sessionStore := sessions.NewStore(db)
	callStore := calls.NewStore(db)

	orchestrator := chat.New(s.registry, sessionStore, promptStore, cardStore, callStore, s.logger)
	backups := backup.NewManager(s.home.BackupsPath(), db, promptStore, cardStore)

	s.mu.Lock()
	s.services = &svcctx.Services{
		DB:           db,
		Prompts:      promptStore,
		Cards:        cardStore,
		Sessions:     sessionStore,
		Calls:        callStore,
		Registry:     s.registry,
		Orchestrator: orchestrator,
		Backups:      backups,
		Config:       s.configMgr,
		Logger:       s.logger,
		Home:         s.home,
	}
	s.mu.Unlock()

	// Watch the config file for the life of the server
	if s.configMgr != nil {
		stop := make(chan struct{})
		defer close(stop)
		if err := s.configMgr.Watch(stop); err != nil {
			s.logger.Warn("config watch unavailable", "error", err)
		}
	}

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			_ = s.shutdown()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// shutdown performs graceful shutdown of the HTTP server, the database and
// any managed Ollama container.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		}
	}

	if s.ollamaManager != nil {
		s.logger.Info("stopping ollama container")
		if err := s.ollamaManager.Stop(shutdownCtx); err != nil {
			s.logger.Error("ollama stop error", "error", err)
		}
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Registry returns the provider registry.
func (s *Server) Registry() *providers.Registry {
	return s.registry
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		s.mu.RLock()
		services := s.services
		s.mu.RUnlock()
		if services != nil {
			ctx = svcctx.WithServices(ctx, services)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures the server is fully initialized.
// Returns 503 Service Unavailable until the database and services are ready.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		ready := s.services != nil
		s.mu.RUnlock()
		if !ready {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}
