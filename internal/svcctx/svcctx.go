// Package svcctx provides service context for dependency injection via context.
// This package is separate from server to avoid import cycles with endpoints.
package svcctx

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/jackzampolin/promptbox/internal/backup"
	"github.com/jackzampolin/promptbox/internal/calls"
	"github.com/jackzampolin/promptbox/internal/cards"
	"github.com/jackzampolin/promptbox/internal/chat"
	"github.com/jackzampolin/promptbox/internal/config"
	"github.com/jackzampolin/promptbox/internal/home"
	"github.com/jackzampolin/promptbox/internal/prompts"
	"github.com/jackzampolin/promptbox/internal/providers"
	"github.com/jackzampolin/promptbox/internal/sessions"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	DB           *sql.DB
	Prompts      *prompts.Store
	Cards        *cards.Store
	Sessions     *sessions.Store
	Calls        *calls.Store
	Registry     *providers.Registry
	Orchestrator *chat.Orchestrator
	Backups      *backup.Manager
	Config       *config.Manager
	Logger       *slog.Logger
	Home         *home.Dir
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// DBFrom extracts the database handle from context.
func DBFrom(ctx context.Context) *sql.DB {
	if s := ServicesFrom(ctx); s != nil {
		return s.DB
	}
	return nil
}

// PromptsFrom extracts the prompt store from context.
func PromptsFrom(ctx context.Context) *prompts.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.Prompts
	}
	return nil
}

// CardsFrom extracts the card store from context.
func CardsFrom(ctx context.Context) *cards.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.Cards
	}
	return nil
}

// SessionsFrom extracts the session store from context.
func SessionsFrom(ctx context.Context) *sessions.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.Sessions
	}
	return nil
}

// CallsFrom extracts the call store from context.
func CallsFrom(ctx context.Context) *calls.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.Calls
	}
	return nil
}

// RegistryFrom extracts the provider registry from context.
func RegistryFrom(ctx context.Context) *providers.Registry {
	if s := ServicesFrom(ctx); s != nil {
		return s.Registry
	}
	return nil
}

// OrchestratorFrom extracts the chat orchestrator from context.
func OrchestratorFrom(ctx context.Context) *chat.Orchestrator {
	if s := ServicesFrom(ctx); s != nil {
		return s.Orchestrator
	}
	return nil
}

// BackupsFrom extracts the backup manager from context.
func BackupsFrom(ctx context.Context) *backup.Manager {
	if s := ServicesFrom(ctx); s != nil {
		return s.Backups
	}
	return nil
}

// ConfigFrom extracts the config manager from context.
func ConfigFrom(ctx context.Context) *config.Manager {
	if s := ServicesFrom(ctx); s != nil {
		return s.Config
	}
	return nil
}

// LoggerFrom extracts the logger from context, falling back to the default
// logger when none is set.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil && s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// HomeFrom extracts the home directory from context.
func HomeFrom(ctx context.Context) *home.Dir {
	if s := ServicesFrom(ctx); s != nil {
		return s.Home
	}
	return nil
}
