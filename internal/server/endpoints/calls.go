package endpoints

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/promptbox/internal/api"
	"github.com/jackzampolin/promptbox/internal/calls"
	"github.com/jackzampolin/promptbox/internal/svcctx"
)

// CallsListResponse contains recorded LLM calls.
type CallsListResponse struct {
	Calls []*calls.Call `json:"calls"`
}

// ListCallsEndpoint handles GET /api/calls. ?session filters to one session,
// ?limit caps the newest-first listing.
type ListCallsEndpoint struct{}

func (e *ListCallsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/calls", e.handler
}

func (e *ListCallsEndpoint) RequiresInit() bool { return true }

func (e *ListCallsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.CallsFrom(r.Context())

	if sessionID := r.URL.Query().Get("session"); sessionID != "" {
		list, err := store.ListBySession(r.Context(), sessionID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, CallsListResponse{Calls: list})
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	list, err := store.List(r.Context(), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CallsListResponse{Calls: list})
}

func (e *ListCallsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var limit int
	var sessionID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded LLM calls",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			path := "/api/calls"
			query := url.Values{}
			if sessionID != "" {
				query.Set("session", sessionID)
			} else if limit > 0 {
				query.Set("limit", strconv.Itoa(limit))
			}
			if len(query) > 0 {
				path += "?" + query.Encode()
			}
			var resp CallsListResponse
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum calls to return")
	cmd.Flags().StringVar(&sessionID, "session", "", "list calls for one session")
	return cmd
}

// GetCallEndpoint handles GET /api/calls/{id}.
type GetCallEndpoint struct{}

func (e *GetCallEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/calls/{id}", e.handler
}

func (e *GetCallEndpoint) RequiresInit() bool { return true }

func (e *GetCallEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	call, err := svcctx.CallsFrom(r.Context()).Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, call)
}

func (e *GetCallEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get a recorded LLM call",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp calls.Call
			if err := client.Get(cmd.Context(), "/api/calls/"+url.PathEscape(args[0]), &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// CallStatsEndpoint handles GET /api/calls/stats.
type CallStatsEndpoint struct{}

func (e *CallStatsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/calls/stats", e.handler
}

func (e *CallStatsEndpoint) RequiresInit() bool { return true }

func (e *CallStatsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	stats, err := svcctx.CallsFrom(r.Context()).Stats(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (e *CallStatsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show aggregate call statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp calls.Stats
			if err := client.Get(cmd.Context(), "/api/calls/stats", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
