package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/promptbox/internal/api"
	"github.com/jackzampolin/promptbox/internal/providers"
	"github.com/jackzampolin/promptbox/internal/svcctx"
)

// ProvidersResponse lists the configured provider names.
type ProvidersResponse struct {
	Providers []string `json:"providers"`
}

// ListProvidersEndpoint handles GET /api/providers.
type ListProvidersEndpoint struct{}

func (e *ListProvidersEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/providers", e.handler
}

func (e *ListProvidersEndpoint) RequiresInit() bool { return true }

func (e *ListProvidersEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ProvidersResponse{Providers: svcctx.RegistryFrom(r.Context()).List()})
}

func (e *ListProvidersEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List configured providers",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ProvidersResponse
			if err := client.Get(cmd.Context(), "/api/providers", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// ModelsResponse is the per-provider model catalog.
type ModelsResponse struct {
	Catalog []providers.ModelCatalog `json:"catalog"`
}

// ModelsEndpoint handles GET /api/models. Catalog fetches hit every
// configured provider, so this can take a few seconds.
type ModelsEndpoint struct{}

func (e *ModelsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/models", e.handler
}

func (e *ModelsEndpoint) RequiresInit() bool { return true }

func (e *ModelsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	catalog := svcctx.RegistryFrom(r.Context()).Catalog(r.Context(), svcctx.LoggerFrom(r.Context()))
	writeJSON(w, http.StatusOK, ModelsResponse{Catalog: catalog})
}

func (e *ModelsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List available models from every configured provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ModelsResponse
			if err := client.Get(cmd.Context(), "/api/models", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
