package endpoints

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/promptbox/internal/api"
	"github.com/jackzampolin/promptbox/internal/cards"
	"github.com/jackzampolin/promptbox/internal/svcctx"
)

// CardsListResponse contains a set of cards.
type CardsListResponse struct {
	Cards []*cards.Card `json:"cards"`
}

// CardRequest is the request body for creating or updating a card.
type CardRequest struct {
	Name                 string `json:"name"`
	Folder               string `json:"folder,omitempty"`
	Kind                 string `json:"kind,omitempty"`
	Description          string `json:"description,omitempty"`
	FirstMessage         string `json:"first_message,omitempty"`
	SystemInstruction    string `json:"system_instruction,omitempty"`
	UserInstruction      string `json:"user_instruction,omitempty"`
	AssistantInstruction string `json:"assistant_instruction,omitempty"`
}

// ListCardsEndpoint handles GET /api/cards. The q parameter searches name,
// description and instructions; folder restricts to one folder.
type ListCardsEndpoint struct{}

func (e *ListCardsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/cards", e.handler
}

func (e *ListCardsEndpoint) RequiresInit() bool { return true }

func (e *ListCardsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.CardsFrom(r.Context())

	var list []*cards.Card
	var err error
	if q := r.URL.Query().Get("q"); q != "" {
		list, err = store.Search(r.Context(), q)
	} else {
		list, err = store.List(r.Context(), r.URL.Query().Get("folder"))
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CardsListResponse{Cards: list})
}

func (e *ListCardsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var folder, query string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List or search cards",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			path := "/api/cards"
			switch {
			case query != "":
				path += "?q=" + url.QueryEscape(query)
			case folder != "":
				path += "?folder=" + url.QueryEscape(folder)
			}
			var resp CardsListResponse
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&folder, "folder", "", "restrict to one folder")
	cmd.Flags().StringVarP(&query, "query", "q", "", "search name, description and instructions")
	return cmd
}

// GetCardEndpoint handles GET /api/cards/{id}.
type GetCardEndpoint struct{}

func (e *GetCardEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/cards/{id}", e.handler
}

func (e *GetCardEndpoint) RequiresInit() bool { return true }

func (e *GetCardEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	c, err := svcctx.CardsFrom(r.Context()).Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (e *GetCardEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get a card by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp cards.Card
			if err := client.Get(cmd.Context(), "/api/cards/"+url.PathEscape(args[0]), &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// CreateCardEndpoint handles POST /api/cards.
type CreateCardEndpoint struct{}

func (e *CreateCardEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/cards", e.handler
}

func (e *CreateCardEndpoint) RequiresInit() bool { return true }

func (e *CreateCardEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req CardRequest
	if !decodeBody(w, r, &req) {
		return
	}
	c := &cards.Card{
		Name:                 req.Name,
		Folder:               req.Folder,
		Kind:                 req.Kind,
		Description:          req.Description,
		FirstMessage:         req.FirstMessage,
		SystemInstruction:    req.SystemInstruction,
		UserInstruction:      req.UserInstruction,
		AssistantInstruction: req.AssistantInstruction,
	}
	if err := svcctx.CardsFrom(r.Context()).Create(r.Context(), c); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (e *CreateCardEndpoint) Command(getServerURL func() string) *cobra.Command {
	var req CardRequest
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Name = args[0]
			client := api.NewClient(getServerURL())
			var resp cards.Card
			if err := client.Post(cmd.Context(), "/api/cards", req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&req.Folder, "folder", "", "folder to file the card under")
	cmd.Flags().StringVar(&req.Kind, "kind", "", "card kind: character or scenario")
	cmd.Flags().StringVar(&req.Description, "description", "", "card description")
	cmd.Flags().StringVar(&req.FirstMessage, "first-message", "", "opening assistant message")
	cmd.Flags().StringVar(&req.SystemInstruction, "system", "", "system instruction")
	cmd.Flags().StringVar(&req.UserInstruction, "user", "", "user instruction")
	cmd.Flags().StringVar(&req.AssistantInstruction, "assistant", "", "assistant instruction")
	return cmd
}

// UpdateCardEndpoint handles PUT /api/cards/{id}.
type UpdateCardEndpoint struct{}

func (e *UpdateCardEndpoint) Route() (string, string, http.HandlerFunc) {
	return "PUT", "/api/cards/{id}", e.handler
}

func (e *UpdateCardEndpoint) RequiresInit() bool { return true }

func (e *UpdateCardEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.CardsFrom(r.Context())
	c, err := store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var req CardRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name != "" {
		c.Name = req.Name
	}
	if req.Folder != "" {
		c.Folder = req.Folder
	}
	if req.Kind != "" {
		c.Kind = req.Kind
	}
	if req.Description != "" {
		c.Description = req.Description
	}
	if req.FirstMessage != "" {
		c.FirstMessage = req.FirstMessage
	}
	if req.SystemInstruction != "" {
		c.SystemInstruction = req.SystemInstruction
	}
	if req.UserInstruction != "" {
		c.UserInstruction = req.UserInstruction
	}
	if req.AssistantInstruction != "" {
		c.AssistantInstruction = req.AssistantInstruction
	}
	if err := store.Update(r.Context(), c); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (e *UpdateCardEndpoint) Command(getServerURL func() string) *cobra.Command {
	var req CardRequest
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp cards.Card
			if err := client.Put(cmd.Context(), "/api/cards/"+url.PathEscape(args[0]), req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&req.Name, "name", "", "new name")
	cmd.Flags().StringVar(&req.Folder, "folder", "", "new folder")
	cmd.Flags().StringVar(&req.Kind, "kind", "", "new kind: character or scenario")
	cmd.Flags().StringVar(&req.Description, "description", "", "new description")
	cmd.Flags().StringVar(&req.FirstMessage, "first-message", "", "new opening assistant message")
	cmd.Flags().StringVar(&req.SystemInstruction, "system", "", "new system instruction")
	cmd.Flags().StringVar(&req.UserInstruction, "user", "", "new user instruction")
	cmd.Flags().StringVar(&req.AssistantInstruction, "assistant", "", "new assistant instruction")
	return cmd
}

// DeleteCardEndpoint handles DELETE /api/cards/{id}.
type DeleteCardEndpoint struct{}

func (e *DeleteCardEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/cards/{id}", e.handler
}

func (e *DeleteCardEndpoint) RequiresInit() bool { return true }

func (e *DeleteCardEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	if err := svcctx.CardsFrom(r.Context()).Delete(r.Context(), r.PathValue("id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (e *DeleteCardEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			if err := client.Delete(cmd.Context(), "/api/cards/"+url.PathEscape(args[0])); err != nil {
				return err
			}
			fmt.Println("deleted")
			return nil
		},
	}
}
