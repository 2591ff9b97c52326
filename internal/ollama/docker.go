// Package ollama manages an optional local Ollama container, so chatting
// against local models needs nothing beyond a Docker daemon.
package ollama

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"

	"github.com/jackzampolin/promptbox/internal/config"
)

const ollamaPort = "11434/tcp"

// Manager starts and stops the managed Ollama container.
type Manager struct {
	cli    client.APIClient
	cfg    config.OllamaConfig
	logger *slog.Logger
}

// NewManager creates a container manager from the local Docker environment.
func NewManager(cfg config.OllamaConfig, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &Manager{cli: cli, cfg: cfg, logger: logger}, nil
}

// BaseURL returns the HTTP address the managed container listens on.
func (m *Manager) BaseURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d", m.cfg.Port)
}

// Start brings the container up, pulling the image if needed, and blocks
// until the Ollama API answers. Reuses an existing container with the
// configured name.
func (m *Manager) Start(ctx context.Context) error {
	id, running, err := m.find(ctx)
	if err != nil {
		return err
	}

	switch {
	case running:
		m.logger.Debug("ollama container already running", "container", m.cfg.ContainerName)
	case id != "":
		if err := m.cli.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
			return fmt.Errorf("failed to start container: %w", err)
		}
		m.logger.Info("ollama container started", "container", m.cfg.ContainerName)
	default:
		if err := m.create(ctx); err != nil {
			return err
		}
	}
	return m.waitReady(ctx)
}

func (m *Manager) create(ctx context.Context) error {
	reader, err := m.cli.ImagePull(ctx, m.cfg.Image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", m.cfg.Image, err)
	}
	// Pull progress must be drained for the pull to complete.
	io.Copy(io.Discard, reader)
	reader.Close()

	resp, err := m.cli.ContainerCreate(ctx,
		&container.Config{
			Image:        m.cfg.Image,
			ExposedPorts: nat.PortSet{ollamaPort: struct{}{}},
		},
		&container.HostConfig{
			PortBindings: nat.PortMap{
				ollamaPort: []nat.PortBinding{{
					HostIP:   "127.0.0.1",
					HostPort: strconv.Itoa(m.cfg.Port),
				}},
			},
			Binds: []string{m.cfg.ContainerName + "-models:/root/.ollama"},
		},
		nil, nil, m.cfg.ContainerName)
	if err != nil {
		return fmt.Errorf("failed to create container: %w", err)
	}
	if err := m.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return fmt.Errorf("failed to start container: %w", err)
	}
	m.logger.Info("ollama container created", "container", m.cfg.ContainerName, "image", m.cfg.Image)
	return nil
}

// waitReady polls the Ollama API until it answers. Model servers take a few
// seconds to come up after the container starts.
func (m *Manager) waitReady(ctx context.Context) error {
	url := m.BaseURL() + "/api/tags"
	httpClient := &http.Client{Timeout: 2 * time.Second}

	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
			if err != nil {
				return err
			}
			resp, err := httpClient.Do(req)
			if err != nil {
				return err
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("status %d", resp.StatusCode)
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(30),
		retry.Delay(time.Second),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("ollama did not become ready: %w", err)
	}
	m.logger.Info("ollama ready", "url", m.BaseURL())
	return nil
}

// Stop stops the managed container if it is running.
func (m *Manager) Stop(ctx context.Context) error {
	id, running, err := m.find(ctx)
	if err != nil {
		return err
	}
	if !running {
		return nil
	}
	if err := m.cli.ContainerStop(ctx, id, container.StopOptions{}); err != nil {
		return fmt.Errorf("failed to stop container: %w", err)
	}
	m.logger.Info("ollama container stopped", "container", m.cfg.ContainerName)
	return nil
}

// Running reports whether the managed container is up.
func (m *Manager) Running(ctx context.Context) (bool, error) {
	_, running, err := m.find(ctx)
	return running, err
}

// find returns the container ID and running state, or empty when no
// container with the configured name exists.
func (m *Manager) find(ctx context.Context) (string, bool, error) {
	list, err := m.cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("name", m.cfg.ContainerName)),
	})
	if err != nil {
		return "", false, fmt.Errorf("failed to list containers: %w", err)
	}
	for _, c := range list {
		for _, name := range c.Names {
			if name == "/"+m.cfg.ContainerName {
				return c.ID, c.State == "running", nil
			}
		}
	}
	return "", false, nil
}
