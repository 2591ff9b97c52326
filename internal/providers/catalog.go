package providers

import (
	"context"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"
)

// ModelCatalog is the per-provider model listing.
type ModelCatalog struct {
	Provider string   `json:"provider"`
	Models   []string `json:"models"`
	Error    string   `json:"error,omitempty"`
}

// Catalog fetches the model listing from every registered provider. Listing
// is a read-only metadata fetch, so transient failures are retried with
// backoff. A provider that still fails after retries contributes an entry
// with its error set rather than failing the whole catalog.
func (r *Registry) Catalog(ctx context.Context, logger *slog.Logger) []ModelCatalog {
	if logger == nil {
		logger = slog.Default()
	}

	names := r.List()
	out := make([]ModelCatalog, 0, len(names))
	for _, name := range names {
		client, err := r.Get(name)
		if err != nil {
			continue
		}

		models, err := retry.DoWithData(
			func() ([]string, error) {
				return client.ListModels(ctx)
			},
			retry.Context(ctx),
			retry.Attempts(3),
			retry.Delay(500*time.Millisecond),
			retry.DelayType(retry.BackOffDelay),
			retry.LastErrorOnly(true),
		)
		entry := ModelCatalog{Provider: name, Models: models}
		if err != nil {
			logger.Warn("model listing failed", "provider", name, "error", err)
			entry.Models = nil
			entry.Error = err.Error()
		}
		out = append(out, entry)
	}
	return out
}
