package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/promptbox/internal/config"
	"github.com/jackzampolin/promptbox/internal/home"
	"github.com/jackzampolin/promptbox/internal/ollama"
)

var ollamaCmd = &cobra.Command{
	Use:   "ollama",
	Short: "Manage the local Ollama container",
	Long: `Manage the local Ollama container lifecycle.

The container serves local models at the configured port. Model weights
live in a named Docker volume and survive container removal.

Examples:
  promptbox ollama start   # Start the Ollama container
  promptbox ollama stop    # Stop the container (models preserved)
  promptbox ollama status  # Check container status`,
}

var ollamaStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the Ollama container",
	Long: `Start the Ollama container.

If the container doesn't exist, it will be created and started.
If it exists but is stopped, it will be started.
If it's already running, this is a no-op.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := getOllamaManager()
		if err != nil {
			return err
		}

		fmt.Println("Starting Ollama...")
		if err := mgr.Start(cmd.Context()); err != nil {
			return fmt.Errorf("failed to start Ollama: %w", err)
		}

		fmt.Printf("Ollama is running at %s\n", mgr.BaseURL())
		return nil
	},
}

var ollamaStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the Ollama container",
	Long: `Stop the Ollama container.

This stops the container but preserves downloaded models. Use
'promptbox ollama start' to restart it later.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := getOllamaManager()
		if err != nil {
			return err
		}

		fmt.Println("Stopping Ollama...")
		if err := mgr.Stop(cmd.Context()); err != nil {
			return fmt.Errorf("failed to stop Ollama: %w", err)
		}

		fmt.Println("Ollama stopped")
		return nil
	},
}

var ollamaStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show Ollama container status",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := getOllamaManager()
		if err != nil {
			return err
		}

		running, err := mgr.Running(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get status: %w", err)
		}
		if running {
			fmt.Printf("Status: running\nURL: %s\n", mgr.BaseURL())
		} else {
			fmt.Println("Status: not running (use 'promptbox ollama start' to start)")
		}
		return nil
	},
}

func init() {
	ollamaCmd.AddCommand(ollamaStartCmd)
	ollamaCmd.AddCommand(ollamaStopCmd)
	ollamaCmd.AddCommand(ollamaStatusCmd)

	rootCmd.AddCommand(ollamaCmd)
}

// getHome returns the home directory manager.
func getHome() (*home.Dir, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}
	if err := h.EnsureExists(); err != nil {
		return nil, fmt.Errorf("failed to create home directory: %w", err)
	}
	return h, nil
}

// getOllamaManager creates an ollama manager from the current config.
func getOllamaManager() (*ollama.Manager, error) {
	h, err := getHome()
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	cfgMgr := config.NewManager(h, logger)
	if err := cfgMgr.Load(); err != nil {
		return nil, err
	}

	return ollama.NewManager(cfgMgr.Get().Ollama, logger)
}
