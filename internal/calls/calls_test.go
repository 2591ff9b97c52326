package calls

import (
	"context"
	"testing"
	"time"

	"github.com/jackzampolin/promptbox/internal/providers"
	"github.com/jackzampolin/promptbox/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := store.OpenInMemory()
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db)
}

func TestStore_RecordList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	result := &providers.ChatResult{
		RequestID:        "req-1",
		Provider:         "mock",
		ModelUsed:        "mock-small",
		Success:          true,
		PromptTokens:     10,
		CompletionTokens: 5,
		TotalTokens:      15,
		ExecutionTime:    1500 * time.Millisecond,
	}
	call := FromChatResult("sess-1", result)
	if err := s.Record(ctx, call); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	got, err := s.Get(ctx, call.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.TotalTokens != 15 || got.ExecutionTime != 1500*time.Millisecond {
		t.Errorf("unexpected call: %+v", got)
	}

	bySession, err := s.ListBySession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("ListBySession failed: %v", err)
	}
	if len(bySession) != 1 {
		t.Errorf("expected 1 call, got %d", len(bySession))
	}
}

func TestStore_Stats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i, ok := range []bool{true, true, false} {
		c := &Call{
			RequestID:   "r",
			Provider:    "mock",
			Model:       "m",
			Success:     ok,
			TotalTokens: 10 * (i + 1),
		}
		if err := s.Record(ctx, c); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if st.TotalCalls != 3 || st.Failures != 1 || st.TotalTokens != 60 {
		t.Errorf("unexpected stats: %+v", st)
	}

	recent, err := s.List(ctx, 2)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(recent) != 2 {
		t.Errorf("expected limit applied, got %d", len(recent))
	}
}
