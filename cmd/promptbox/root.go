package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/promptbox/internal/api"
	"github.com/jackzampolin/promptbox/version"
)

var (
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "promptbox",
	Short: "Prompt library and multi-provider chat workbench",
	Long: `Promptbox organizes reusable prompt templates and runs chat sessions
against any configured LLM provider.

It keeps:
  - Prompt templates with [[variable]] placeholders, organized in folders
  - Character cards with system, user and assistant instructions
  - Chat sessions with full transcripts, editable and regenerable
  - A record of every LLM call with tokens and timing`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "promptbox home directory (default: ~/.promptbox)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}
