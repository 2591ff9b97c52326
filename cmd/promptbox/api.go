package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/promptbox/internal/server/endpoints"
)

var serverURL string

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Commands that call the running server",
	Long: `API commands call the running promptbox server via HTTP.

These commands require a running server (promptbox serve).
Use --server to specify a custom server URL.

Examples:
  promptbox api health                  # Check server health
  promptbox api prompts list            # List all prompts
  promptbox api chat start --provider ollama`,
}

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Prompt template commands",
}

var cardsCmd = &cobra.Command{
	Use:   "cards",
	Short: "Character card commands",
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Session management commands",
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat commands",
}

var callsCmd = &cobra.Command{
	Use:   "calls",
	Short: "LLM call history commands",
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Backup and export commands",
}

// getServerURL returns the server URL at runtime (after flag parsing).
func getServerURL() string {
	return serverURL
}

func init() {
	// Add --server flag to api command (persistent so all subcommands inherit it)
	apiCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://localhost:8990", "Server URL",
	)

	// Health and catalog endpoints at top level of api
	apiCmd.AddCommand((&endpoints.HealthEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.ReadyEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.StatusEndpoint{}).Command(getServerURL))
	for _, ep := range endpoints.ProviderCommands() {
		apiCmd.AddCommand(ep.Command(getServerURL))
	}

	for _, ep := range endpoints.PromptCommands() {
		promptsCmd.AddCommand(ep.Command(getServerURL))
	}
	for _, ep := range endpoints.CardCommands() {
		cardsCmd.AddCommand(ep.Command(getServerURL))
	}
	for _, ep := range endpoints.SessionCommands() {
		sessionsCmd.AddCommand(ep.Command(getServerURL))
	}
	for _, ep := range endpoints.ChatCommands() {
		chatCmd.AddCommand(ep.Command(getServerURL))
	}
	for _, ep := range endpoints.CallCommands() {
		callsCmd.AddCommand(ep.Command(getServerURL))
	}
	for _, ep := range endpoints.BackupCommands() {
		backupCmd.AddCommand(ep.Command(getServerURL))
	}

	apiCmd.AddCommand(promptsCmd)
	apiCmd.AddCommand(cardsCmd)
	apiCmd.AddCommand(sessionsCmd)
	apiCmd.AddCommand(chatCmd)
	apiCmd.AddCommand(callsCmd)
	apiCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(apiCmd)
}
