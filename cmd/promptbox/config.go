package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/promptbox/internal/api"
	"github.com/jackzampolin/promptbox/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage promptbox configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Long: `Write a default config.yaml to the promptbox home directory.

Fails if a config file already exists. API keys are referenced as
${VAR} placeholders, resolved from the environment or a .env file
at load time.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := getHome()
		if err != nil {
			return err
		}

		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		mgr := config.NewManager(h, logger)
		if err := mgr.WriteDefault(); err != nil {
			return err
		}

		fmt.Printf("Wrote %s\n", h.ConfigPath())
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := getHome()
		if err != nil {
			return err
		}

		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		mgr := config.NewManager(h, logger)
		if err := mgr.Load(); err != nil {
			return err
		}

		return api.Output(mgr.Get())
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)

	rootCmd.AddCommand(configCmd)
}
