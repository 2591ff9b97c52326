package endpoints

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/promptbox/internal/api"
	"github.com/jackzampolin/promptbox/internal/prompts"
	"github.com/jackzampolin/promptbox/internal/svcctx"
)

// PromptsListResponse contains a set of prompts.
type PromptsListResponse struct {
	Prompts []*prompts.Prompt `json:"prompts"`
}

// PromptRequest is the request body for creating or updating a prompt.
type PromptRequest struct {
	Name        string   `json:"name"`
	Folder      string   `json:"folder,omitempty"`
	Text        string   `json:"text"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// ListPromptsEndpoint handles GET /api/prompts. The q parameter searches
// name, text and description; folder restricts to one folder.
type ListPromptsEndpoint struct{}

func (e *ListPromptsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/prompts", e.handler
}

func (e *ListPromptsEndpoint) RequiresInit() bool { return true }

func (e *ListPromptsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.PromptsFrom(r.Context())

	var (
		list []*prompts.Prompt
		err  error
	)
	if q := r.URL.Query().Get("q"); q != "" {
		list, err = store.Search(r.Context(), q)
	} else {
		list, err = store.List(r.Context(), r.URL.Query().Get("folder"))
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PromptsListResponse{Prompts: list})
}

func (e *ListPromptsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var folder, query string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List or search prompts",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			path := "/api/prompts"
			params := url.Values{}
			if folder != "" {
				params.Set("folder", folder)
			}
			if query != "" {
				params.Set("q", query)
			}
			if len(params) > 0 {
				path += "?" + params.Encode()
			}
			var resp PromptsListResponse
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&folder, "folder", "", "restrict to one folder")
	cmd.Flags().StringVarP(&query, "query", "q", "", "search name, text and description")
	return cmd
}

// GetPromptEndpoint handles GET /api/prompts/{id}.
type GetPromptEndpoint struct{}

func (e *GetPromptEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/prompts/{id}", e.handler
}

func (e *GetPromptEndpoint) RequiresInit() bool { return true }

func (e *GetPromptEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	p, err := svcctx.PromptsFrom(r.Context()).Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (e *GetPromptEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get a prompt by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp prompts.Prompt
			if err := client.Get(cmd.Context(), "/api/prompts/"+url.PathEscape(args[0]), &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// CreatePromptEndpoint handles POST /api/prompts.
type CreatePromptEndpoint struct{}

func (e *CreatePromptEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/prompts", e.handler
}

func (e *CreatePromptEndpoint) RequiresInit() bool { return true }

func (e *CreatePromptEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req PromptRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p := &prompts.Prompt{
		Name:        req.Name,
		Folder:      req.Folder,
		Text:        req.Text,
		Description: req.Description,
		Tags:        req.Tags,
	}
	if err := svcctx.PromptsFrom(r.Context()).Create(r.Context(), p); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (e *CreatePromptEndpoint) Command(getServerURL func() string) *cobra.Command {
	var req PromptRequest
	var textFile string
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Name = args[0]
			if textFile != "" {
				raw, err := os.ReadFile(textFile)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", textFile, err)
				}
				req.Text = string(raw)
			}
			client := api.NewClient(getServerURL())
			var resp prompts.Prompt
			if err := client.Post(cmd.Context(), "/api/prompts", req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&req.Folder, "folder", "", "folder to file the prompt under")
	cmd.Flags().StringVar(&req.Text, "text", "", "template text")
	cmd.Flags().StringVar(&textFile, "file", "", "read template text from a file")
	cmd.Flags().StringVar(&req.Description, "description", "", "prompt description")
	cmd.Flags().StringArrayVar(&req.Tags, "tag", nil, "tag to attach (repeatable)")
	return cmd
}

// UpdatePromptEndpoint handles PUT /api/prompts/{id}.
type UpdatePromptEndpoint struct{}

func (e *UpdatePromptEndpoint) Route() (string, string, http.HandlerFunc) {
	return "PUT", "/api/prompts/{id}", e.handler
}

func (e *UpdatePromptEndpoint) RequiresInit() bool { return true }

func (e *UpdatePromptEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.PromptsFrom(r.Context())
	p, err := store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var req PromptRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name != "" {
		p.Name = req.Name
	}
	if req.Folder != "" {
		p.Folder = req.Folder
	}
	if req.Text != "" {
		p.Text = req.Text
	}
	if req.Description != "" {
		p.Description = req.Description
	}
	if len(req.Tags) > 0 {
		p.Tags = req.Tags
	}
	if err := store.Update(r.Context(), p); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (e *UpdatePromptEndpoint) Command(getServerURL func() string) *cobra.Command {
	var req PromptRequest
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp prompts.Prompt
			if err := client.Put(cmd.Context(), "/api/prompts/"+url.PathEscape(args[0]), req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&req.Name, "name", "", "new name")
	cmd.Flags().StringVar(&req.Folder, "folder", "", "new folder")
	cmd.Flags().StringVar(&req.Text, "text", "", "new template text")
	cmd.Flags().StringVar(&req.Description, "description", "", "new description")
	cmd.Flags().StringArrayVar(&req.Tags, "tag", nil, "replacement tags (repeatable)")
	return cmd
}

// DeletePromptEndpoint handles DELETE /api/prompts/{id}.
type DeletePromptEndpoint struct{}

func (e *DeletePromptEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/prompts/{id}", e.handler
}

func (e *DeletePromptEndpoint) RequiresInit() bool { return true }

func (e *DeletePromptEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	if err := svcctx.PromptsFrom(r.Context()).Delete(r.Context(), r.PathValue("id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (e *DeletePromptEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			if err := client.Delete(cmd.Context(), "/api/prompts/"+url.PathEscape(args[0])); err != nil {
				return err
			}
			fmt.Println("deleted")
			return nil
		},
	}
}

// PromptFoldersEndpoint handles GET /api/prompts/folders.
type PromptFoldersEndpoint struct{}

func (e *PromptFoldersEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/prompts/folders", e.handler
}

func (e *PromptFoldersEndpoint) RequiresInit() bool { return true }

func (e *PromptFoldersEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	folders, err := svcctx.PromptsFrom(r.Context()).Folders(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"folders": folders})
}

func (e *PromptFoldersEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "folders",
		Short: "List prompt folders",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp map[string][]string
			if err := client.Get(cmd.Context(), "/api/prompts/folders", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// VariablesResponse lists the placeholder names found in a template.
type VariablesResponse struct {
	Variables []string `json:"variables"`
}

// PromptVariablesEndpoint handles GET /api/prompts/{id}/variables.
type PromptVariablesEndpoint struct{}

func (e *PromptVariablesEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/prompts/{id}/variables", e.handler
}

func (e *PromptVariablesEndpoint) RequiresInit() bool { return true }

func (e *PromptVariablesEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	p, err := svcctx.PromptsFrom(r.Context()).Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, VariablesResponse{Variables: prompts.ExtractVariables(p.Text)})
}

func (e *PromptVariablesEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "variables <id>",
		Short: "List the variables a prompt expects",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp VariablesResponse
			if err := client.Get(cmd.Context(), "/api/prompts/"+url.PathEscape(args[0])+"/variables", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// RenderRequest carries values for a template render.
type RenderRequest struct {
	Variables map[string]string `json:"variables"`
}

// RenderResponse is a fully substituted template.
type RenderResponse struct {
	Text string `json:"text"`
}

// RenderPromptEndpoint handles POST /api/prompts/{id}/render. Every
// placeholder must be covered or the render fails with 422.
type RenderPromptEndpoint struct{}

func (e *RenderPromptEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/prompts/{id}/render", e.handler
}

func (e *RenderPromptEndpoint) RequiresInit() bool { return true }

func (e *RenderPromptEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	p, err := svcctx.PromptsFrom(r.Context()).Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var req RenderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	text, err := prompts.Substitute(p.Text, req.Variables)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RenderResponse{Text: text})
}

func (e *RenderPromptEndpoint) Command(getServerURL func() string) *cobra.Command {
	var vars []string
	cmd := &cobra.Command{
		Use:   "render <id>",
		Short: "Render a prompt with variable values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := RenderRequest{Variables: map[string]string{}}
			for _, v := range vars {
				name, value, ok := strings.Cut(v, "=")
				if !ok {
					return fmt.Errorf("invalid --var %q, expected name=value", v)
				}
				req.Variables[name] = value
			}
			client := api.NewClient(getServerURL())
			var resp RenderResponse
			if err := client.Post(cmd.Context(), "/api/prompts/"+url.PathEscape(args[0])+"/render", req, &resp); err != nil {
				return err
			}
			fmt.Println(resp.Text)
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&vars, "var", nil, "variable value as name=value (repeatable)")
	return cmd
}

// ImportPromptsEndpoint handles POST /api/prompts/import. The body is a JSON
// batch validated against the import schema.
type ImportPromptsEndpoint struct{}

func (e *ImportPromptsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/prompts/import", e.handler
}

func (e *ImportPromptsEndpoint) RequiresInit() bool { return true }

func (e *ImportPromptsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	imported, err := svcctx.PromptsFrom(r.Context()).Import(r.Context(), r.Body)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, PromptsListResponse{Prompts: imported})
}

func (e *ImportPromptsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import prompts from a JSON batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			var body any
			if err := unmarshalJSON(raw, &body); err != nil {
				return fmt.Errorf("%s is not valid JSON: %w", args[0], err)
			}
			client := api.NewClient(getServerURL())
			var resp PromptsListResponse
			if err := client.Post(cmd.Context(), "/api/prompts/import", body, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// ImproveRequest asks a provider to rewrite a template.
type ImproveRequest struct {
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`
	Text     string `json:"text"`
	PromptID string `json:"prompt_id,omitempty"`
}

// ImprovePromptEndpoint handles POST /api/prompts/improve. Either Text or
// PromptID supplies the template.
type ImprovePromptEndpoint struct{}

func (e *ImprovePromptEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/prompts/improve", e.handler
}

func (e *ImprovePromptEndpoint) RequiresInit() bool { return true }

func (e *ImprovePromptEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req ImproveRequest
	if !decodeBody(w, r, &req) {
		return
	}

	text := req.Text
	if text == "" && req.PromptID != "" {
		p, err := svcctx.PromptsFrom(r.Context()).Get(r.Context(), req.PromptID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		text = p.Text
	}

	imp, err := svcctx.OrchestratorFrom(r.Context()).ImprovePrompt(r.Context(), req.Provider, req.Model, text)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, imp)
}

func (e *ImprovePromptEndpoint) Command(getServerURL func() string) *cobra.Command {
	var req ImproveRequest
	cmd := &cobra.Command{
		Use:   "improve <prompt-id>",
		Short: "Ask a provider to improve a prompt",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				req.PromptID = args[0]
			}
			if req.PromptID == "" && req.Text == "" {
				return fmt.Errorf("provide a prompt ID or --text")
			}
			client := api.NewClient(getServerURL())
			var resp map[string]string
			if err := client.Post(cmd.Context(), "/api/prompts/improve", req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&req.Provider, "provider", "", "provider to use")
	cmd.Flags().StringVar(&req.Model, "model", "", "model to use")
	cmd.Flags().StringVar(&req.Text, "text", "", "template text to improve")
	cmd.MarkFlagRequired("provider")
	return cmd
}
