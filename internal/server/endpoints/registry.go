package endpoints

import (
	"github.com/jackzampolin/promptbox/internal/api"
	"github.com/jackzampolin/promptbox/internal/ollama"
)

// Config holds dependencies needed by some endpoints.
type Config struct {
	OllamaManager *ollama.Manager
}

// All returns all endpoint instances.
func All(cfg Config) []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&ReadyEndpoint{},
		&StatusEndpoint{OllamaManager: cfg.OllamaManager},

		// Prompt endpoints
		&ListPromptsEndpoint{},
		&GetPromptEndpoint{},
		&CreatePromptEndpoint{},
		&UpdatePromptEndpoint{},
		&DeletePromptEndpoint{},
		&PromptFoldersEndpoint{},
		&PromptVariablesEndpoint{},
		&RenderPromptEndpoint{},
		&ImportPromptsEndpoint{},
		&ImprovePromptEndpoint{},

		// Card endpoints
		&ListCardsEndpoint{},
		&GetCardEndpoint{},
		&CreateCardEndpoint{},
		&UpdateCardEndpoint{},
		&DeleteCardEndpoint{},

		// Session endpoints
		&ListSessionsEndpoint{},
		&GetSessionEndpoint{},
		&RenameSessionEndpoint{},
		&SaveMessagesEndpoint{},
		&DeleteSessionEndpoint{},
		&ExportSessionEndpoint{},

		// Chat endpoints
		&StartChatEndpoint{},
		&SendChatEndpoint{},
		&EditChatEndpoint{},
		&SwitchModelEndpoint{},

		// Provider endpoints
		&ListProvidersEndpoint{},
		&ModelsEndpoint{},

		// Call history endpoints
		&ListCallsEndpoint{},
		&GetCallEndpoint{},
		&CallStatsEndpoint{},

		// Backup endpoints
		&BackupDatabaseEndpoint{},
		&BackupArchiveEndpoint{},
		&ExportArchiveEndpoint{},
	}
}

// PromptCommands returns endpoints for prompt operations.
// This groups prompt-related commands under the "prompts" subcommand.
func PromptCommands() []api.Endpoint {
	return []api.Endpoint{
		&ListPromptsEndpoint{},
		&GetPromptEndpoint{},
		&CreatePromptEndpoint{},
		&UpdatePromptEndpoint{},
		&DeletePromptEndpoint{},
		&PromptFoldersEndpoint{},
		&PromptVariablesEndpoint{},
		&RenderPromptEndpoint{},
		&ImportPromptsEndpoint{},
		&ImprovePromptEndpoint{},
	}
}

// CardCommands returns endpoints for card operations.
// This groups card-related commands under the "cards" subcommand.
func CardCommands() []api.Endpoint {
	return []api.Endpoint{
		&ListCardsEndpoint{},
		&GetCardEndpoint{},
		&CreateCardEndpoint{},
		&UpdateCardEndpoint{},
		&DeleteCardEndpoint{},
	}
}

// SessionCommands returns endpoints for session operations.
// This groups session-related commands under the "sessions" subcommand.
func SessionCommands() []api.Endpoint {
	return []api.Endpoint{
		&ListSessionsEndpoint{},
		&GetSessionEndpoint{},
		&RenameSessionEndpoint{},
		&SaveMessagesEndpoint{},
		&DeleteSessionEndpoint{},
		&ExportSessionEndpoint{},
	}
}

// ChatCommands returns endpoints for chat operations.
// This groups chat-related commands under the "chat" subcommand.
func ChatCommands() []api.Endpoint {
	return []api.Endpoint{
		&StartChatEndpoint{},
		&SendChatEndpoint{},
		&EditChatEndpoint{},
		&SwitchModelEndpoint{},
	}
}

// ProviderCommands returns endpoints for provider catalog operations.
// These sit directly under the "api" command.
func ProviderCommands() []api.Endpoint {
	return []api.Endpoint{
		&ListProvidersEndpoint{},
		&ModelsEndpoint{},
	}
}

// CallCommands returns endpoints for call history operations.
// This groups call-related commands under the "calls" subcommand.
func CallCommands() []api.Endpoint {
	return []api.Endpoint{
		&ListCallsEndpoint{},
		&GetCallEndpoint{},
		&CallStatsEndpoint{},
	}
}

// BackupCommands returns endpoints for backup operations.
// This groups backup-related commands under the "backup" subcommand.
func BackupCommands() []api.Endpoint {
	return []api.Endpoint{
		&BackupDatabaseEndpoint{},
		&BackupArchiveEndpoint{},
		&ExportArchiveEndpoint{},
	}
}
