package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/promptbox/internal/config"
	"github.com/jackzampolin/promptbox/internal/home"
	"github.com/jackzampolin/promptbox/internal/server"
	"github.com/jackzampolin/promptbox/internal/telemetry"
	"github.com/jackzampolin/promptbox/version"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the promptbox server",
	Long: `Start the promptbox HTTP server.

When the config enables a managed Ollama container, it is started alongside
the server and stopped on shutdown (Ctrl+C or SIGTERM).

Examples:
  promptbox serve                    # Start on default port 8990
  promptbox serve --port 3000        # Start on custom port
  promptbox serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}

		bootLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		cfgMgr := config.NewManager(h, bootLogger)
		if err := cfgMgr.Load(); err != nil {
			return err
		}
		cfg := cfgMgr.Get()

		logger := telemetry.InitLogger(cfg.Log, h.LogsPath())
		slog.SetDefault(logger)

		if cfg.Telemetry.Enabled {
			shutdown, err := telemetry.InitTelemetry(ctx, "promptbox", version.GitRelease)
			if err != nil {
				return err
			}
			defer func() {
				if err := shutdown(ctx); err != nil {
					logger.Error("telemetry shutdown error", "error", err)
				}
			}()
		}

		host := cfg.Server.Host
		port := cfg.Server.Port
		if cmd.Flags().Changed("host") {
			host = serveHost
		}
		if cmd.Flags().Changed("port") {
			port = servePort
		}

		srv, err := server.New(server.Config{
			Host:          host,
			Port:          port,
			Home:          h,
			ConfigManager: cfgMgr,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		// Blocks until shutdown
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Host to bind to")
	serveCmd.Flags().IntVar(&servePort, "port", 8990, "Port to listen on")

	rootCmd.AddCommand(serveCmd)
}
