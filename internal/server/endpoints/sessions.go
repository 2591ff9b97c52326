package endpoints

import (
	"fmt"
	"net/http"
	"net/url"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/promptbox/internal/api"
	"github.com/jackzampolin/promptbox/internal/sessions"
	"github.com/jackzampolin/promptbox/internal/svcctx"
)

// SessionsListResponse contains session metadata.
type SessionsListResponse struct {
	Sessions []*sessions.Session `json:"sessions"`
}

// ListSessionsEndpoint handles GET /api/sessions.
type ListSessionsEndpoint struct{}

func (e *ListSessionsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/sessions", e.handler
}

func (e *ListSessionsEndpoint) RequiresInit() bool { return true }

func (e *ListSessionsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	list, err := svcctx.SessionsFrom(r.Context()).List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionsListResponse{Sessions: list})
}

func (e *ListSessionsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp SessionsListResponse
			if err := client.Get(cmd.Context(), "/api/sessions", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// GetSessionEndpoint handles GET /api/sessions/{id}, transcript included.
type GetSessionEndpoint struct{}

func (e *GetSessionEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/sessions/{id}", e.handler
}

func (e *GetSessionEndpoint) RequiresInit() bool { return true }

func (e *GetSessionEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	sess, err := svcctx.SessionsFrom(r.Context()).Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (e *GetSessionEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get a session with its transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp sessions.Session
			if err := client.Get(cmd.Context(), "/api/sessions/"+url.PathEscape(args[0]), &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// RenameSessionEndpoint handles PATCH /api/sessions/{id}.
type RenameSessionEndpoint struct{}

func (e *RenameSessionEndpoint) Route() (string, string, http.HandlerFunc) {
	return "PATCH", "/api/sessions/{id}", e.handler
}

func (e *RenameSessionEndpoint) RequiresInit() bool { return true }

func (e *RenameSessionEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.SessionsFrom(r.Context())
	sess, err := store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	sess.Name = req.Name
	if err := store.Update(r.Context(), sess); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (e *RenameSessionEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <name>",
		Short: "Rename a session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp sessions.Session
			body := map[string]string{"name": args[1]}
			if err := client.Patch(cmd.Context(), "/api/sessions/"+url.PathEscape(args[0]), body, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// SaveMessagesRequest replaces a session transcript.
type SaveMessagesRequest struct {
	Messages []*sessions.Message `json:"messages"`
}

// SaveMessagesEndpoint handles PUT /api/sessions/{id}/messages. The body
// replaces the whole transcript; positions follow the body order.
type SaveMessagesEndpoint struct{}

func (e *SaveMessagesEndpoint) Route() (string, string, http.HandlerFunc) {
	return "PUT", "/api/sessions/{id}/messages", e.handler
}

func (e *SaveMessagesEndpoint) RequiresInit() bool { return true }

func (e *SaveMessagesEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req SaveMessagesRequest
	if !decodeBody(w, r, &req) {
		return
	}

	store := svcctx.SessionsFrom(r.Context())
	id := r.PathValue("id")
	if err := store.SaveMessages(r.Context(), id, req.Messages); err != nil {
		writeDomainError(w, err)
		return
	}
	sess, err := store.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (e *SaveMessagesEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "save <id> <file>",
		Short: "Replace a session transcript from a JSON file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[1], err)
			}
			var body SaveMessagesRequest
			if err := unmarshalJSON(raw, &body); err != nil {
				return fmt.Errorf("%s is not valid JSON: %w", args[1], err)
			}
			client := api.NewClient(getServerURL())
			var resp sessions.Session
			if err := client.Put(cmd.Context(), "/api/sessions/"+url.PathEscape(args[0])+"/messages", body, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// DeleteSessionEndpoint handles DELETE /api/sessions/{id}.
type DeleteSessionEndpoint struct{}

func (e *DeleteSessionEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/sessions/{id}", e.handler
}

func (e *DeleteSessionEndpoint) RequiresInit() bool { return true }

func (e *DeleteSessionEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	if err := svcctx.SessionsFrom(r.Context()).Delete(r.Context(), r.PathValue("id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (e *DeleteSessionEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a session and its transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			if err := client.Delete(cmd.Context(), "/api/sessions/"+url.PathEscape(args[0])); err != nil {
				return err
			}
			fmt.Println("deleted")
			return nil
		},
	}
}

// ExportSessionEndpoint handles GET /api/sessions/{id}/export, returning the
// transcript as markdown.
type ExportSessionEndpoint struct{}

func (e *ExportSessionEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/sessions/{id}/export", e.handler
}

func (e *ExportSessionEndpoint) RequiresInit() bool { return true }

func (e *ExportSessionEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	sess, err := svcctx.SessionsFrom(r.Context()).Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, sessions.ExportMarkdown(sess))
}

func (e *ExportSessionEndpoint) Command(getServerURL func() string) *cobra.Command {
	var outFile string
	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Export a session transcript as markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			out := cmd.OutOrStdout()
			if outFile != "" {
				f, err := os.Create(outFile)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", outFile, err)
				}
				defer f.Close()
				out = f
			}
			return client.GetRaw(cmd.Context(), "/api/sessions/"+url.PathEscape(args[0])+"/export", out)
		},
	}
	cmd.Flags().StringVarP(&outFile, "out", "o", "", "write to a file instead of stdout")
	return cmd
}
