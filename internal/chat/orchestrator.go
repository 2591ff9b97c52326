// Package chat coordinates sessions, prompt templates and LLM providers into
// conversations. All operations on one session are serialized; a session has
// no concurrent turns.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jackzampolin/promptbox/internal/calls"
	"github.com/jackzampolin/promptbox/internal/cards"
	"github.com/jackzampolin/promptbox/internal/prompts"
	"github.com/jackzampolin/promptbox/internal/providers"
	"github.com/jackzampolin/promptbox/internal/sessions"
	"github.com/jackzampolin/promptbox/internal/telemetry"
)

var (
	// ErrNotUserTurn is returned when an edit targets a message that is not
	// a user turn.
	ErrNotUserTurn = errors.New("only user turns can be edited")

	// ErrEmptyMessage is returned when a send or edit carries no content.
	ErrEmptyMessage = errors.New("message content is empty")
)

// Orchestrator drives chat sessions end to end: seeding from prompts or
// cards, sending turns, editing history and recording every provider call.
type Orchestrator struct {
	registry *providers.Registry
	sessions *sessions.Store
	prompts  *prompts.Store
	cards    *cards.Store
	calls    *calls.Store
	logger   *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates an orchestrator over the given stores and provider registry.
func New(registry *providers.Registry, sess *sessions.Store, prom *prompts.Store, crd *cards.Store, rec *calls.Store, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		registry: registry,
		sessions: sess,
		prompts:  prom,
		cards:    crd,
		calls:    rec,
		logger:   logger,
		locks:    make(map[string]*sync.Mutex),
	}
}

func (o *Orchestrator) sessionLock(id string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	l, ok := o.locks[id]
	if !ok {
		l = &sync.Mutex{}
		o.locks[id] = l
	}
	return l
}

// StartOptions configures a new session. PromptID and CardID are mutually
// exclusive; Variables fill any placeholders in the seed text.
type StartOptions struct {
	Name        string            `json:"name"`
	Provider    string            `json:"provider"`
	Model       string            `json:"model"`
	PromptID    string            `json:"prompt_id,omitempty"`
	CardID      string            `json:"card_id,omitempty"`
	Variables   map[string]string `json:"variables,omitempty"`
	SystemText  string            `json:"system_text,omitempty"`
	Temperature float64           `json:"temperature,omitempty"`
}

// Start creates a session, seeded from a prompt or card if requested. The
// seed is substituted before anything is stored, so a missing variable fails
// the whole start.
func (o *Orchestrator) Start(ctx context.Context, opts StartOptions) (*sessions.Session, error) {
	if opts.Provider == "" {
		return nil, fmt.Errorf("provider is required")
	}
	if !o.registry.Has(opts.Provider) {
		return nil, fmt.Errorf("provider %q not configured", opts.Provider)
	}
	if opts.PromptID != "" && opts.CardID != "" {
		return nil, fmt.Errorf("prompt and card are mutually exclusive")
	}

	sess := &sessions.Session{
		Name:     opts.Name,
		Provider: opts.Provider,
		Model:    opts.Model,
		PromptID: opts.PromptID,
		CardID:   opts.CardID,
	}
	if sess.Name == "" {
		sess.Name = "session " + time.Now().Format("2006-01-02 15:04")
	}

	if opts.SystemText != "" {
		sess.Messages = append(sess.Messages, &sessions.Message{
			Role:    providers.RoleSystem,
			Content: opts.SystemText,
		})
	}

	switch {
	case opts.PromptID != "":
		p, err := o.prompts.Get(ctx, opts.PromptID)
		if err != nil {
			return nil, err
		}
		text, err := prompts.Substitute(p.Text, opts.Variables)
		if err != nil {
			return nil, err
		}
		sess.Messages = append(sess.Messages, &sessions.Message{
			Role:    providers.RoleUser,
			Content: text,
		})

	case opts.CardID != "":
		c, err := o.cards.Get(ctx, opts.CardID)
		if err != nil {
			return nil, err
		}
		seed := []struct{ role, text string }{
			{providers.RoleSystem, c.SystemInstruction},
			{providers.RoleUser, c.UserInstruction},
			{providers.RoleAssistant, c.AssistantInstruction},
			{providers.RoleAssistant, c.FirstMessage},
		}
		for _, m := range seed {
			if strings.TrimSpace(m.text) == "" {
				continue
			}
			text, err := prompts.Substitute(m.text, opts.Variables)
			if err != nil {
				return nil, err
			}
			sess.Messages = append(sess.Messages, &sessions.Message{
				Role:    m.role,
				Content: text,
			})
		}
	}

	if err := o.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}
	o.logger.Info("session started",
		"session", sess.ID,
		"provider", sess.Provider,
		"model", sess.Model,
		"seeded", len(sess.Messages) > 0)
	return sess, nil
}

// Send appends a user turn, asks the session's provider for a reply and
// appends it. When onDelta is non-nil the reply is streamed through it. The
// returned session carries the updated transcript.
func (o *Orchestrator) Send(ctx context.Context, sessionID, content string, onDelta func(string) error) (*sessions.Session, *providers.ChatResult, error) {
	if strings.TrimSpace(content) == "" {
		return nil, nil, ErrEmptyMessage
	}

	lock := o.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := o.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}

	sess.Messages = append(sess.Messages, &sessions.Message{
		Role:    providers.RoleUser,
		Content: content,
	})
	return o.complete(ctx, sess, onDelta)
}

// EditTurn replaces the user turn at position, drops everything after it and
// regenerates the reply from the edited history.
func (o *Orchestrator) EditTurn(ctx context.Context, sessionID string, position int, content string, onDelta func(string) error) (*sessions.Session, *providers.ChatResult, error) {
	if strings.TrimSpace(content) == "" {
		return nil, nil, ErrEmptyMessage
	}

	lock := o.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := o.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if position < 0 || position >= len(sess.Messages) {
		return nil, nil, fmt.Errorf("position %d out of range", position)
	}
	if sess.Messages[position].Role != providers.RoleUser {
		return nil, nil, fmt.Errorf("%w: position %d is %s", ErrNotUserTurn, position, sess.Messages[position].Role)
	}

	sess.Messages = sess.Messages[:position+1]
	sess.Messages[position] = &sessions.Message{
		Role:    providers.RoleUser,
		Content: content,
	}
	return o.complete(ctx, sess, onDelta)
}

// complete sends the session transcript to its provider, appends the reply
// and persists the whole transcript. The transcript is saved even when the
// call fails, so the user turn is not lost.
func (o *Orchestrator) complete(ctx context.Context, sess *sessions.Session, onDelta func(string) error) (*sessions.Session, *providers.ChatResult, error) {
	client, err := o.registry.Get(sess.Provider)
	if err != nil {
		return nil, nil, err
	}

	ctx, span := telemetry.StartChatSpan(ctx, sess.Provider, sess.Model)
	defer span.End()
	started := time.Now()

	req := &providers.ChatRequest{
		Model:    sess.Model,
		Messages: make([]providers.Message, 0, len(sess.Messages)),
	}
	for _, m := range sess.Messages {
		req.Messages = append(req.Messages, providers.Message{Role: m.Role, Content: m.Content})
	}

	var result *providers.ChatResult
	if onDelta != nil {
		result, err = client.ChatStream(ctx, req, onDelta)
	} else {
		result, err = client.Chat(ctx, req)
	}

	telemetry.RecordChat(ctx, sess.Provider, time.Since(started), err == nil)
	if result != nil {
		if recErr := o.calls.Record(ctx, calls.FromChatResult(sess.ID, result)); recErr != nil {
			o.logger.Warn("failed to record call", "session", sess.ID, "error", recErr)
		}
	}

	if err != nil {
		o.logger.Warn("chat turn failed",
			"session", sess.ID,
			"provider", sess.Provider,
			"error", err)
		if saveErr := o.sessions.SaveMessages(ctx, sess.ID, sess.Messages); saveErr != nil {
			o.logger.Error("failed to save transcript", "session", sess.ID, "error", saveErr)
		}
		return sess, result, err
	}

	sess.Messages = append(sess.Messages, &sessions.Message{
		Role:    providers.RoleAssistant,
		Content: result.Content,
	})
	if err := o.sessions.SaveMessages(ctx, sess.ID, sess.Messages); err != nil {
		return nil, result, err
	}

	o.logger.Info("chat turn completed",
		"session", sess.ID,
		"provider", sess.Provider,
		"model", result.ModelUsed,
		"tokens", result.TotalTokens,
		"duration", result.ExecutionTime)
	return sess, result, nil
}

// SwitchModel changes the session's provider and model. The transcript is
// preserved; the next turn goes to the new target.
func (o *Orchestrator) SwitchModel(ctx context.Context, sessionID, provider, model string) (*sessions.Session, error) {
	if provider != "" && !o.registry.Has(provider) {
		return nil, fmt.Errorf("provider %q not configured", provider)
	}

	lock := o.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := o.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if provider != "" {
		sess.Provider = provider
	}
	if model != "" {
		sess.Model = model
	}
	if err := o.sessions.Update(ctx, sess); err != nil {
		return nil, err
	}
	o.logger.Info("session retargeted", "session", sess.ID, "provider", sess.Provider, "model", sess.Model)
	return sess, nil
}
