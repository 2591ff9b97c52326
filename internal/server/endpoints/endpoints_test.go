package endpoints

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jackzampolin/promptbox/internal/api"
	"github.com/jackzampolin/promptbox/internal/backup"
	"github.com/jackzampolin/promptbox/internal/calls"
	"github.com/jackzampolin/promptbox/internal/cards"
	"github.com/jackzampolin/promptbox/internal/chat"
	"github.com/jackzampolin/promptbox/internal/prompts"
	"github.com/jackzampolin/promptbox/internal/providers"
	"github.com/jackzampolin/promptbox/internal/sessions"
	"github.com/jackzampolin/promptbox/internal/store"
	"github.com/jackzampolin/promptbox/internal/svcctx"
)

type testStack struct {
	server *httptest.Server
	mock   *providers.MockClient
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()

	db, err := store.OpenInMemory()
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	promptStore := prompts.NewStore(db)
	cardStore := cards.NewStore(db)
	sessionStore := sessions.NewStore(db)
	callStore := calls.NewStore(db)

	registry := providers.NewRegistry()
	registry.SetLogger(logger)
	mock := providers.NewMockClient("mock")
	registry.Register("mock", mock)

	services := &svcctx.Services{
		DB:           db,
		Prompts:      promptStore,
		Cards:        cardStore,
		Sessions:     sessionStore,
		Calls:        callStore,
		Registry:     registry,
		Orchestrator: chat.New(registry, sessionStore, promptStore, cardStore, callStore, logger),
		Backups:      backup.NewManager(t.TempDir(), db, promptStore, cardStore),
		Logger:       logger,
	}

	reg := api.NewRegistry()
	for _, ep := range All(Config{}) {
		reg.Register(ep)
	}
	mux := http.NewServeMux()
	reg.RegisterRoutes(mux, func(next http.HandlerFunc) http.HandlerFunc { return next })

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mux.ServeHTTP(w, r.WithContext(svcctx.WithServices(r.Context(), services)))
	})

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &testStack{server: srv, mock: mock}
}

func (ts *testStack) do(t *testing.T, method, path string, body, result any) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, ts.server.URL+path, reader)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := ts.server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	if result != nil && resp.StatusCode < 400 {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			t.Fatalf("failed to decode %s %s response: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestStack(t)

	var health HealthResponse
	if status := ts.do(t, "GET", "/health", nil, &health); status != http.StatusOK {
		t.Fatalf("health status = %d, want %d", status, http.StatusOK)
	}
	if health.Status != "ok" {
		t.Errorf("health.Status = %q, want %q", health.Status, "ok")
	}

	var ready HealthResponse
	if status := ts.do(t, "GET", "/ready", nil, &ready); status != http.StatusOK {
		t.Fatalf("ready status = %d, want %d", status, http.StatusOK)
	}
	if ready.Database != "ok" {
		t.Errorf("ready.Database = %q, want %q", ready.Database, "ok")
	}

	var st StatusResponse
	if status := ts.do(t, "GET", "/status", nil, &st); status != http.StatusOK {
		t.Fatalf("status status = %d, want %d", status, http.StatusOK)
	}
	if len(st.Providers) != 1 || st.Providers[0] != "mock" {
		t.Errorf("status.Providers = %v, want [mock]", st.Providers)
	}
	if st.Ollama.Managed {
		t.Error("status.Ollama.Managed = true, want false")
	}
}

func TestPromptEndpoints(t *testing.T) {
	ts := newTestStack(t)

	var created prompts.Prompt
	status := ts.do(t, "POST", "/api/prompts", PromptRequest{
		Name:   "greeting",
		Folder: "writing",
		Text:   "Say hello to [[name]].",
		Tags:   []string{"smalltalk"},
	}, &created)
	if status != http.StatusCreated {
		t.Fatalf("create status = %d, want %d", status, http.StatusCreated)
	}
	if created.ID == "" {
		t.Fatal("created prompt has no ID")
	}
	if len(created.Variables) != 1 || created.Variables[0] != "name" {
		t.Errorf("Variables = %v, want [name]", created.Variables)
	}
	if len(created.Tags) != 1 || created.Tags[0] != "smalltalk" {
		t.Errorf("Tags = %v, want [smalltalk]", created.Tags)
	}

	// Duplicate name in the same folder conflicts
	status = ts.do(t, "POST", "/api/prompts", PromptRequest{
		Name:   "greeting",
		Folder: "writing",
		Text:   "something else",
	}, nil)
	if status != http.StatusConflict {
		t.Errorf("duplicate create status = %d, want %d", status, http.StatusConflict)
	}

	var got prompts.Prompt
	if status := ts.do(t, "GET", "/api/prompts/"+created.ID, nil, &got); status != http.StatusOK {
		t.Fatalf("get status = %d, want %d", status, http.StatusOK)
	}
	if got.Text != created.Text {
		t.Errorf("Text = %q, want %q", got.Text, created.Text)
	}

	if status := ts.do(t, "GET", "/api/prompts/nope", nil, nil); status != http.StatusNotFound {
		t.Errorf("missing get status = %d, want %d", status, http.StatusNotFound)
	}

	var vars VariablesResponse
	if status := ts.do(t, "GET", "/api/prompts/"+created.ID+"/variables", nil, &vars); status != http.StatusOK {
		t.Fatalf("variables status = %d, want %d", status, http.StatusOK)
	}
	if len(vars.Variables) != 1 || vars.Variables[0] != "name" {
		t.Errorf("variables = %v, want [name]", vars.Variables)
	}

	// Render with the variable filled
	var rendered RenderResponse
	status = ts.do(t, "POST", "/api/prompts/"+created.ID+"/render", RenderRequest{
		Variables: map[string]string{"name": "Ada"},
	}, &rendered)
	if status != http.StatusOK {
		t.Fatalf("render status = %d, want %d", status, http.StatusOK)
	}
	if rendered.Text != "Say hello to Ada." {
		t.Errorf("rendered = %q", rendered.Text)
	}

	// Render without it fails
	status = ts.do(t, "POST", "/api/prompts/"+created.ID+"/render", RenderRequest{}, nil)
	if status != http.StatusUnprocessableEntity {
		t.Errorf("render missing variable status = %d, want %d", status, http.StatusUnprocessableEntity)
	}

	var folders struct {
		Folders []string `json:"folders"`
	}
	if status := ts.do(t, "GET", "/api/prompts/folders", nil, &folders); status != http.StatusOK {
		t.Fatalf("folders status = %d, want %d", status, http.StatusOK)
	}
	if len(folders.Folders) != 1 || folders.Folders[0] != "writing" {
		t.Errorf("folders = %v, want [writing]", folders.Folders)
	}

	var list PromptsListResponse
	if status := ts.do(t, "GET", "/api/prompts?q=hello", nil, &list); status != http.StatusOK {
		t.Fatalf("search status = %d, want %d", status, http.StatusOK)
	}
	if len(list.Prompts) != 1 {
		t.Errorf("search returned %d prompts, want 1", len(list.Prompts))
	}

	// Tags are searchable too
	var byTag PromptsListResponse
	if status := ts.do(t, "GET", "/api/prompts?q=smalltalk", nil, &byTag); status != http.StatusOK {
		t.Fatalf("tag search status = %d, want %d", status, http.StatusOK)
	}
	if len(byTag.Prompts) != 1 {
		t.Errorf("tag search returned %d prompts, want 1", len(byTag.Prompts))
	}

	if status := ts.do(t, "DELETE", "/api/prompts/"+created.ID, nil, nil); status != http.StatusNoContent {
		t.Errorf("delete status = %d, want %d", status, http.StatusNoContent)
	}
}

func TestCardEndpoints(t *testing.T) {
	ts := newTestStack(t)

	// A card without any instruction is rejected
	status := ts.do(t, "POST", "/api/cards", CardRequest{Name: "empty"}, nil)
	if status != http.StatusBadRequest {
		t.Errorf("empty card status = %d, want %d", status, http.StatusBadRequest)
	}

	var created cards.Card
	status = ts.do(t, "POST", "/api/cards", CardRequest{
		Name:              "reviewer",
		SystemInstruction: "You review [[language]] code.",
	}, &created)
	if status != http.StatusCreated {
		t.Fatalf("create status = %d, want %d", status, http.StatusCreated)
	}
	if len(created.Variables) != 1 || created.Variables[0] != "language" {
		t.Errorf("Variables = %v, want [language]", created.Variables)
	}

	var list CardsListResponse
	if status := ts.do(t, "GET", "/api/cards", nil, &list); status != http.StatusOK {
		t.Fatalf("list status = %d, want %d", status, http.StatusOK)
	}
	if len(list.Cards) != 1 {
		t.Errorf("list returned %d cards, want 1", len(list.Cards))
	}
}

func TestChatFlow(t *testing.T) {
	ts := newTestStack(t)
	ts.mock.SetResponse("hello from the model")

	var sess sessions.Session
	status := ts.do(t, "POST", "/api/chat/start", chat.StartOptions{
		Name:     "test chat",
		Provider: "mock",
	}, &sess)
	if status != http.StatusCreated {
		t.Fatalf("start status = %d, want %d", status, http.StatusCreated)
	}

	var turn ChatResponse
	status = ts.do(t, "POST", "/api/chat/"+sess.ID+"/send", SendRequest{Content: "hi"}, &turn)
	if status != http.StatusOK {
		t.Fatalf("send status = %d, want %d", status, http.StatusOK)
	}
	if turn.Result == nil || !turn.Result.Success {
		t.Fatal("send result missing or unsuccessful")
	}
	if got := len(turn.Session.Messages); got != 2 {
		t.Fatalf("transcript has %d messages, want 2", got)
	}
	if turn.Session.Messages[1].Content != "hello from the model" {
		t.Errorf("assistant reply = %q", turn.Session.Messages[1].Content)
	}

	// Edit the first user turn, transcript regenerates from there
	ts.mock.SetResponse("a different reply")
	status = ts.do(t, "POST", "/api/chat/"+sess.ID+"/edit", EditRequest{
		Position: 0,
		Content:  "hi again",
	}, &turn)
	if status != http.StatusOK {
		t.Fatalf("edit status = %d, want %d", status, http.StatusOK)
	}
	if got := len(turn.Session.Messages); got != 2 {
		t.Fatalf("transcript has %d messages after edit, want 2", got)
	}
	if turn.Session.Messages[0].Content != "hi again" {
		t.Errorf("edited turn = %q, want %q", turn.Session.Messages[0].Content, "hi again")
	}

	// Editing the assistant turn is rejected
	status = ts.do(t, "POST", "/api/chat/"+sess.ID+"/edit", EditRequest{
		Position: 1,
		Content:  "nope",
	}, nil)
	if status != http.StatusBadRequest {
		t.Errorf("edit assistant turn status = %d, want %d", status, http.StatusBadRequest)
	}

	// Every turn was recorded
	var callList CallsListResponse
	if status := ts.do(t, "GET", "/api/calls?session="+sess.ID, nil, &callList); status != http.StatusOK {
		t.Fatalf("calls status = %d, want %d", status, http.StatusOK)
	}
	if len(callList.Calls) != 2 {
		t.Errorf("recorded %d calls, want 2", len(callList.Calls))
	}

	var stats calls.Stats
	if status := ts.do(t, "GET", "/api/calls/stats", nil, &stats); status != http.StatusOK {
		t.Fatalf("stats status = %d, want %d", status, http.StatusOK)
	}
	if stats.TotalCalls != 2 {
		t.Errorf("stats.TotalCalls = %d, want 2", stats.TotalCalls)
	}
}

func TestChatSendStreaming(t *testing.T) {
	ts := newTestStack(t)
	ts.mock.SetResponse("streamed reply here")

	var sess sessions.Session
	if status := ts.do(t, "POST", "/api/chat/start", chat.StartOptions{Provider: "mock"}, &sess); status != http.StatusCreated {
		t.Fatalf("start status = %d", status)
	}

	body, _ := json.Marshal(SendRequest{Content: "hi", Stream: true})
	resp, err := ts.server.Client().Post(
		ts.server.URL+"/api/chat/"+sess.ID+"/send", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q, want text/event-stream", ct)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read stream: %v", err)
	}
	stream := string(raw)
	if !strings.Contains(stream, "event: delta") {
		t.Error("stream has no delta events")
	}
	if !strings.Contains(stream, "event: result") {
		t.Error("stream has no result event")
	}

	// The completed turn was persisted
	var got sessions.Session
	if status := ts.do(t, "GET", "/api/sessions/"+sess.ID, nil, &got); status != http.StatusOK {
		t.Fatalf("get session status = %d", status)
	}
	if len(got.Messages) != 2 {
		t.Fatalf("transcript has %d messages, want 2", len(got.Messages))
	}
	if got.Messages[1].Content != "streamed reply here" {
		t.Errorf("assistant reply = %q", got.Messages[1].Content)
	}
}

func TestSessionEndpoints(t *testing.T) {
	ts := newTestStack(t)
	ts.mock.SetResponse("ok")

	var sess sessions.Session
	if status := ts.do(t, "POST", "/api/chat/start", chat.StartOptions{Provider: "mock", Name: "exportable"}, &sess); status != http.StatusCreated {
		t.Fatalf("start status = %d", status)
	}
	var turn ChatResponse
	if status := ts.do(t, "POST", "/api/chat/"+sess.ID+"/send", SendRequest{Content: "hi"}, &turn); status != http.StatusOK {
		t.Fatalf("send status = %d", status)
	}

	var list SessionsListResponse
	if status := ts.do(t, "GET", "/api/sessions", nil, &list); status != http.StatusOK {
		t.Fatalf("list status = %d", status)
	}
	if len(list.Sessions) != 1 {
		t.Fatalf("list returned %d sessions, want 1", len(list.Sessions))
	}

	var renamed sessions.Session
	status := ts.do(t, "PATCH", "/api/sessions/"+sess.ID, map[string]string{"name": "renamed"}, &renamed)
	if status != http.StatusOK {
		t.Fatalf("rename status = %d", status)
	}
	if renamed.Name != "renamed" {
		t.Errorf("Name = %q, want %q", renamed.Name, "renamed")
	}

	resp, err := ts.server.Client().Get(ts.server.URL + "/api/sessions/" + sess.ID + "/export")
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	md := string(raw)
	if !strings.Contains(md, "# renamed") {
		t.Errorf("export missing title, got:\n%s", md)
	}
	if !strings.Contains(md, "## User") || !strings.Contains(md, "## Assistant") {
		t.Errorf("export missing turn headings, got:\n%s", md)
	}

	if status := ts.do(t, "DELETE", "/api/sessions/"+sess.ID, nil, nil); status != http.StatusNoContent {
		t.Errorf("delete status = %d, want %d", status, http.StatusNoContent)
	}
	if status := ts.do(t, "GET", "/api/sessions/"+sess.ID, nil, nil); status != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want %d", status, http.StatusNotFound)
	}
}

func TestProviderEndpoints(t *testing.T) {
	ts := newTestStack(t)
	ts.mock.SetModels([]string{"alpha", "beta"})

	var provs ProvidersResponse
	if status := ts.do(t, "GET", "/api/providers", nil, &provs); status != http.StatusOK {
		t.Fatalf("providers status = %d", status)
	}
	if len(provs.Providers) != 1 || provs.Providers[0] != "mock" {
		t.Errorf("providers = %v, want [mock]", provs.Providers)
	}

	var models ModelsResponse
	if status := ts.do(t, "GET", "/api/models", nil, &models); status != http.StatusOK {
		t.Fatalf("models status = %d", status)
	}
	if len(models.Catalog) != 1 {
		t.Fatalf("catalog has %d entries, want 1", len(models.Catalog))
	}
	if len(models.Catalog[0].Models) != 2 {
		t.Errorf("catalog models = %v, want 2 entries", models.Catalog[0].Models)
	}
}

func TestBackupEndpoints(t *testing.T) {
	ts := newTestStack(t)

	var created prompts.Prompt
	status := ts.do(t, "POST", "/api/prompts", PromptRequest{Name: "keep", Text: "keep me"}, &created)
	if status != http.StatusCreated {
		t.Fatalf("create status = %d", status)
	}

	var db BackupResponse
	if status := ts.do(t, "POST", "/api/backup/db", nil, &db); status != http.StatusCreated {
		t.Fatalf("backup db status = %d", status)
	}
	if db.Path == "" {
		t.Error("backup db returned empty path")
	}

	var archive BackupResponse
	if status := ts.do(t, "POST", "/api/backup/archive", nil, &archive); status != http.StatusCreated {
		t.Fatalf("backup archive status = %d", status)
	}
	if !strings.HasSuffix(archive.Path, ".tar.gz") {
		t.Errorf("archive path = %q, want .tar.gz suffix", archive.Path)
	}

	resp, err := ts.server.Client().Get(ts.server.URL + "/api/export/archive")
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "application/gzip" {
		t.Errorf("Content-Type = %q, want application/gzip", ct)
	}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) == 0 {
		t.Error("export returned empty body")
	}
}
