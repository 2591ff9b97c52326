package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackzampolin/promptbox/internal/calls"
	"github.com/jackzampolin/promptbox/internal/cards"
	"github.com/jackzampolin/promptbox/internal/prompts"
	"github.com/jackzampolin/promptbox/internal/providers"
	"github.com/jackzampolin/promptbox/internal/sessions"
	"github.com/jackzampolin/promptbox/internal/store"
)

type fixture struct {
	orch     *Orchestrator
	mock     *providers.MockClient
	prompts  *prompts.Store
	cards    *cards.Store
	sessions *sessions.Store
	calls    *calls.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := store.OpenInMemory()
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	f := &fixture{
		mock:     providers.NewMockClient("mock"),
		prompts:  prompts.NewStore(db),
		cards:    cards.NewStore(db),
		sessions: sessions.NewStore(db),
		calls:    calls.NewStore(db),
	}
	registry := providers.NewRegistry()
	registry.Register("mock", f.mock)
	registry.Register("other", providers.NewMockClient("other"))
	f.orch = New(registry, f.sessions, f.prompts, f.cards, f.calls, nil)
	return f
}

func TestStart_FromPrompt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := &prompts.Prompt{Name: "p", Text: "Write about [[topic]]."}
	if err := f.prompts.Create(ctx, p); err != nil {
		t.Fatalf("create prompt: %v", err)
	}

	sess, err := f.orch.Start(ctx, StartOptions{
		Provider:  "mock",
		Model:     "mock-small",
		PromptID:  p.ID,
		Variables: map[string]string{"topic": "rivers"},
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if len(sess.Messages) != 1 || sess.Messages[0].Content != "Write about rivers." {
		t.Errorf("unexpected seed: %+v", sess.Messages)
	}
	if sess.Messages[0].Role != providers.RoleUser {
		t.Errorf("expected user seed, got %s", sess.Messages[0].Role)
	}
}

func TestStart_MissingVariableFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := &prompts.Prompt{Name: "p", Text: "[[a]] and [[b]]"}
	if err := f.prompts.Create(ctx, p); err != nil {
		t.Fatalf("create prompt: %v", err)
	}

	_, err := f.orch.Start(ctx, StartOptions{
		Provider:  "mock",
		PromptID:  p.ID,
		Variables: map[string]string{"a": "x"},
	})
	if !errors.Is(err, prompts.ErrMissingVariables) {
		t.Fatalf("expected ErrMissingVariables, got %v", err)
	}

	// Nothing was persisted.
	list, _ := f.sessions.List(ctx)
	if len(list) != 0 {
		t.Error("expected no session on failed start")
	}
}

func TestStart_FromCard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := &cards.Card{
		Name:                 "c",
		SystemInstruction:    "You are a [[role]].",
		UserInstruction:      "Introduce yourself.",
		AssistantInstruction: "",
	}
	if err := f.cards.Create(ctx, c); err != nil {
		t.Fatalf("create card: %v", err)
	}

	sess, err := f.orch.Start(ctx, StartOptions{
		Provider:  "mock",
		CardID:    c.ID,
		Variables: map[string]string{"role": "pirate"},
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if len(sess.Messages) != 2 {
		t.Fatalf("expected 2 seed messages, got %d", len(sess.Messages))
	}
	if sess.Messages[0].Role != providers.RoleSystem || sess.Messages[0].Content != "You are a pirate." {
		t.Errorf("unexpected system seed: %+v", sess.Messages[0])
	}
}

func TestStart_CardFirstMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := &cards.Card{
		Name:              "opener",
		Kind:              cards.KindScenario,
		SystemInstruction: "A rainy train platform.",
		FirstMessage:      "The [[time]] train is late again.",
	}
	if err := f.cards.Create(ctx, c); err != nil {
		t.Fatalf("create card: %v", err)
	}

	sess, err := f.orch.Start(ctx, StartOptions{
		Provider:  "mock",
		CardID:    c.ID,
		Variables: map[string]string{"time": "6:15"},
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if len(sess.Messages) != 2 {
		t.Fatalf("expected 2 seed messages, got %d", len(sess.Messages))
	}
	last := sess.Messages[1]
	if last.Role != providers.RoleAssistant || last.Content != "The 6:15 train is late again." {
		t.Errorf("unexpected opening turn: %+v", last)
	}
}

func TestSend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mock.SetResponse("a reply")

	sess, err := f.orch.Start(ctx, StartOptions{Provider: "mock", Model: "mock-small"})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	updated, result, err := f.orch.Send(ctx, sess.ID, "hello", nil)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if len(updated.Messages) != 2 {
		t.Fatalf("expected user and assistant turns, got %d", len(updated.Messages))
	}
	if updated.Messages[1].Content != "a reply" {
		t.Errorf("unexpected reply: %q", updated.Messages[1].Content)
	}
	if !result.Success {
		t.Error("expected success")
	}

	// The turn was persisted and the call recorded.
	stored, _ := f.sessions.Get(ctx, sess.ID)
	if len(stored.Messages) != 2 {
		t.Errorf("expected persisted transcript, got %d messages", len(stored.Messages))
	}
	recorded, _ := f.calls.ListBySession(ctx, sess.ID)
	if len(recorded) != 1 {
		t.Errorf("expected 1 recorded call, got %d", len(recorded))
	}

	if _, _, err := f.orch.Send(ctx, sess.ID, "   ", nil); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("expected ErrEmptyMessage, got %v", err)
	}
}

func TestSend_Streaming(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mock.SetResponse("streamed words here")

	sess, _ := f.orch.Start(ctx, StartOptions{Provider: "mock"})

	var got strings.Builder
	_, result, err := f.orch.Send(ctx, sess.ID, "go", func(d string) error {
		got.WriteString(d)
		return nil
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if got.String() != "streamed words here" {
		t.Errorf("unexpected streamed content: %q", got.String())
	}
	if result.Content != "streamed words here" {
		t.Errorf("unexpected result content: %q", result.Content)
	}
}

func TestSend_FailureKeepsUserTurn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess, _ := f.orch.Start(ctx, StartOptions{Provider: "mock"})
	f.mock.SetError(errors.New("vendor down"))

	_, _, err := f.orch.Send(ctx, sess.ID, "hello", nil)
	if err == nil {
		t.Fatal("expected error")
	}

	stored, _ := f.sessions.Get(ctx, sess.ID)
	if len(stored.Messages) != 1 || stored.Messages[0].Content != "hello" {
		t.Errorf("expected user turn preserved, got %+v", stored.Messages)
	}

	recorded, _ := f.calls.ListBySession(ctx, sess.ID)
	if len(recorded) != 1 || recorded[0].Success {
		t.Errorf("expected failed call recorded, got %+v", recorded)
	}
}

func TestEditTurn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess, _ := f.orch.Start(ctx, StartOptions{Provider: "mock"})
	if _, _, err := f.orch.Send(ctx, sess.ID, "first", nil); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if _, _, err := f.orch.Send(ctx, sess.ID, "second", nil); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	// Transcript: user, assistant, user, assistant.

	f.mock.SetResponse("regenerated")
	updated, _, err := f.orch.EditTurn(ctx, sess.ID, 0, "edited first", nil)
	if err != nil {
		t.Fatalf("EditTurn failed: %v", err)
	}
	if len(updated.Messages) != 2 {
		t.Fatalf("expected truncation to edited turn plus reply, got %d", len(updated.Messages))
	}
	if updated.Messages[0].Content != "edited first" || updated.Messages[1].Content != "regenerated" {
		t.Errorf("unexpected transcript: %+v", updated.Messages)
	}

	stored, _ := f.sessions.Get(ctx, sess.ID)
	if len(stored.Messages) != 2 {
		t.Errorf("expected persisted truncation, got %d messages", len(stored.Messages))
	}

	// Editing an assistant turn is rejected.
	if _, _, err := f.orch.EditTurn(ctx, sess.ID, 1, "nope", nil); !errors.Is(err, ErrNotUserTurn) {
		t.Errorf("expected ErrNotUserTurn, got %v", err)
	}
	if _, _, err := f.orch.EditTurn(ctx, sess.ID, 99, "nope", nil); err == nil {
		t.Error("expected out of range error")
	}
}

func TestSwitchModel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess, _ := f.orch.Start(ctx, StartOptions{Provider: "mock", Model: "mock-small"})
	if _, _, err := f.orch.Send(ctx, sess.ID, "hi", nil); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	updated, err := f.orch.SwitchModel(ctx, sess.ID, "other", "other-large")
	if err != nil {
		t.Fatalf("SwitchModel failed: %v", err)
	}
	if updated.Provider != "other" || updated.Model != "other-large" {
		t.Errorf("unexpected target: %+v", updated)
	}
	// Transcript survives the switch.
	if len(updated.Messages) != 2 {
		t.Errorf("expected preserved transcript, got %d messages", len(updated.Messages))
	}

	if _, err := f.orch.SwitchModel(ctx, sess.ID, "unknown", ""); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestImprovePrompt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.mock.SetResponse("Sure! Here you go:\n```json\n{\"improved\": \"Write about [[topic]] clearly.\", \"notes\": \"tightened wording\"}\n```")

	imp, err := f.orch.ImprovePrompt(ctx, "mock", "mock-small", "write about [[topic]]")
	if err != nil {
		t.Fatalf("ImprovePrompt failed: %v", err)
	}
	if imp.Improved != "Write about [[topic]] clearly." {
		t.Errorf("unexpected improvement: %+v", imp)
	}

	f.mock.SetResponse("no json at all")
	if _, err := f.orch.ImprovePrompt(ctx, "mock", "", "text"); err == nil {
		t.Error("expected error on unusable reply")
	}
}
