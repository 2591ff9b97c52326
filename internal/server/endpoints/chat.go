package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/promptbox/internal/api"
	"github.com/jackzampolin/promptbox/internal/chat"
	"github.com/jackzampolin/promptbox/internal/providers"
	"github.com/jackzampolin/promptbox/internal/sessions"
	"github.com/jackzampolin/promptbox/internal/svcctx"
)

// ChatResponse is the payload for a completed chat turn.
type ChatResponse struct {
	Session *sessions.Session     `json:"session"`
	Result  *providers.ChatResult `json:"result"`
}

// StartChatEndpoint handles POST /api/chat/start.
type StartChatEndpoint struct{}

func (e *StartChatEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/chat/start", e.handler
}

func (e *StartChatEndpoint) RequiresInit() bool { return true }

func (e *StartChatEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var opts chat.StartOptions
	if !decodeBody(w, r, &opts) {
		return
	}

	sess, err := svcctx.OrchestratorFrom(r.Context()).Start(r.Context(), opts)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (e *StartChatEndpoint) Command(getServerURL func() string) *cobra.Command {
	var opts chat.StartOptions
	var vars []string
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a chat session",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Variables = map[string]string{}
			for _, v := range vars {
				name, value, ok := strings.Cut(v, "=")
				if !ok {
					return fmt.Errorf("invalid --var %q, expected name=value", v)
				}
				opts.Variables[name] = value
			}
			client := api.NewClient(getServerURL())
			var resp sessions.Session
			if err := client.Post(cmd.Context(), "/api/chat/start", opts, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&opts.Name, "name", "", "session name")
	cmd.Flags().StringVar(&opts.Provider, "provider", "", "provider to chat with (required)")
	cmd.Flags().StringVar(&opts.Model, "model", "", "model override")
	cmd.Flags().StringVar(&opts.PromptID, "prompt", "", "seed from a prompt ID")
	cmd.Flags().StringVar(&opts.CardID, "card", "", "seed from a card ID")
	cmd.Flags().StringVar(&opts.SystemText, "system", "", "system instruction")
	cmd.Flags().Float64Var(&opts.Temperature, "temperature", 0, "sampling temperature")
	cmd.Flags().StringArrayVar(&vars, "var", nil, "template variable as name=value, repeatable")
	cobra.CheckErr(cmd.MarkFlagRequired("provider"))
	return cmd
}

// SendRequest carries a chat turn.
type SendRequest struct {
	Content string `json:"content"`
	Stream  bool   `json:"stream,omitempty"`
}

// SendChatEndpoint handles POST /api/chat/{id}/send. With "stream": true the
// response is SSE: "delta" events carry JSON-encoded content chunks and a
// final "result" event carries the ChatResponse.
type SendChatEndpoint struct{}

func (e *SendChatEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/chat/{id}/send", e.handler
}

func (e *SendChatEndpoint) RequiresInit() bool { return true }

func (e *SendChatEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if !decodeBody(w, r, &req) {
		return
	}

	orch := svcctx.OrchestratorFrom(r.Context())
	id := r.PathValue("id")

	if !req.Stream {
		sess, result, err := orch.Send(r.Context(), id, req.Content, nil)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ChatResponse{Session: sess, Result: result})
		return
	}

	streamTurn(w, func(onDelta func(string) error) (*sessions.Session, *providers.ChatResult, error) {
		return orch.Send(r.Context(), id, req.Content, onDelta)
	})
}

func (e *SendChatEndpoint) Command(getServerURL func() string) *cobra.Command {
	var stream bool
	cmd := &cobra.Command{
		Use:   "send <id> <message>",
		Short: "Send a message in a chat session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			path := "/api/chat/" + url.PathEscape(args[0]) + "/send"
			if stream {
				return streamToStdout(cmd, client, path, SendRequest{Content: args[1], Stream: true})
			}
			var resp ChatResponse
			if err := client.Post(cmd.Context(), path, SendRequest{Content: args[1]}, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().BoolVar(&stream, "stream", false, "stream the reply as it is generated")
	return cmd
}

// EditRequest rewrites a user turn and regenerates from there.
type EditRequest struct {
	Position int    `json:"position"`
	Content  string `json:"content"`
	Stream   bool   `json:"stream,omitempty"`
}

// EditChatEndpoint handles POST /api/chat/{id}/edit. Everything after the
// edited turn is discarded and the reply is regenerated.
type EditChatEndpoint struct{}

func (e *EditChatEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/chat/{id}/edit", e.handler
}

func (e *EditChatEndpoint) RequiresInit() bool { return true }

func (e *EditChatEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req EditRequest
	if !decodeBody(w, r, &req) {
		return
	}

	orch := svcctx.OrchestratorFrom(r.Context())
	id := r.PathValue("id")

	if !req.Stream {
		sess, result, err := orch.EditTurn(r.Context(), id, req.Position, req.Content, nil)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ChatResponse{Session: sess, Result: result})
		return
	}

	streamTurn(w, func(onDelta func(string) error) (*sessions.Session, *providers.ChatResult, error) {
		return orch.EditTurn(r.Context(), id, req.Position, req.Content, onDelta)
	})
}

func (e *EditChatEndpoint) Command(getServerURL func() string) *cobra.Command {
	var position int
	var stream bool
	cmd := &cobra.Command{
		Use:   "edit <id> <message>",
		Short: "Rewrite a user turn and regenerate the conversation from there",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			path := "/api/chat/" + url.PathEscape(args[0]) + "/edit"
			body := EditRequest{Position: position, Content: args[1], Stream: stream}
			if stream {
				return streamToStdout(cmd, client, path, body)
			}
			var resp ChatResponse
			if err := client.Post(cmd.Context(), path, body, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().IntVar(&position, "position", 0, "position of the user turn to edit")
	cmd.Flags().BoolVar(&stream, "stream", false, "stream the reply as it is generated")
	cobra.CheckErr(cmd.MarkFlagRequired("position"))
	return cmd
}

// SwitchModelRequest retargets a session at another provider or model.
type SwitchModelRequest struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// SwitchModelEndpoint handles PATCH /api/chat/{id}/model. The transcript is
// kept; only future turns use the new target.
type SwitchModelEndpoint struct{}

func (e *SwitchModelEndpoint) Route() (string, string, http.HandlerFunc) {
	return "PATCH", "/api/chat/{id}/model", e.handler
}

func (e *SwitchModelEndpoint) RequiresInit() bool { return true }

func (e *SwitchModelEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req SwitchModelRequest
	if !decodeBody(w, r, &req) {
		return
	}

	sess, err := svcctx.OrchestratorFrom(r.Context()).SwitchModel(r.Context(), r.PathValue("id"), req.Provider, req.Model)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (e *SwitchModelEndpoint) Command(getServerURL func() string) *cobra.Command {
	var req SwitchModelRequest
	cmd := &cobra.Command{
		Use:   "switch <id>",
		Short: "Point a session at a different provider or model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp sessions.Session
			if err := client.Patch(cmd.Context(), "/api/chat/"+url.PathEscape(args[0])+"/model", req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&req.Provider, "provider", "", "new provider (required)")
	cmd.Flags().StringVar(&req.Model, "model", "", "new model")
	cobra.CheckErr(cmd.MarkFlagRequired("provider"))
	return cmd
}

// streamTurn runs a chat turn and relays it as SSE. Content chunks go out as
// "delta" events; the completed turn follows as a single "result" event.
func streamTurn(w http.ResponseWriter, run func(onDelta func(string) error) (*sessions.Session, *providers.ChatResult, error)) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	sess, result, err := run(func(chunk string) error {
		return writeSSE(w, flusher, "delta", chunk)
	})
	if err != nil {
		// Headers are already out, so errors ride the stream too.
		writeSSE(w, flusher, "error", err.Error())
		return
	}
	writeSSE(w, flusher, "result", ChatResponse{Session: sess, Result: result})
}

// writeSSE emits one event. The payload is JSON-encoded so multi-line chunks
// stay on a single data line.
func writeSSE(w http.ResponseWriter, flusher http.Flusher, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

// streamToStdout consumes a streamed chat turn, printing deltas as they
// arrive and the recorded result once the turn completes.
func streamToStdout(cmd *cobra.Command, client *api.Client, path string, body any) error {
	out := cmd.OutOrStdout()
	err := client.PostStream(cmd.Context(), path, body, func(event, data string) error {
		switch event {
		case "delta":
			var chunk string
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				return fmt.Errorf("bad delta event: %w", err)
			}
			fmt.Fprint(out, chunk)
		case "error":
			var msg string
			if err := json.Unmarshal([]byte(data), &msg); err != nil {
				msg = data
			}
			return fmt.Errorf("chat failed: %s", msg)
		case "result":
			var resp ChatResponse
			if err := json.Unmarshal([]byte(data), &resp); err != nil {
				return fmt.Errorf("bad result event: %w", err)
			}
			fmt.Fprintln(out)
			if resp.Result != nil {
				fmt.Fprintf(out, "[%s/%s %d tokens %dms]\n",
					resp.Result.Provider, resp.Result.ModelUsed, resp.Result.TotalTokens,
					resp.Result.ExecutionTime.Milliseconds())
			}
		}
		return nil
	})
	return err
}
