package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jackzampolin/promptbox/internal/home"
)

func newTestHome(t *testing.T) *home.Dir {
	t.Helper()
	h, err := home.New(t.TempDir())
	if err != nil {
		t.Fatalf("home.New() error = %v", err)
	}
	return h
}

func TestNew_Defaults(t *testing.T) {
	srv, err := New(Config{Home: newTestHome(t)})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if srv.Addr() != "127.0.0.1:8990" {
		t.Errorf("Addr() = %q, want %q", srv.Addr(), "127.0.0.1:8990")
	}
	if srv.IsRunning() {
		t.Error("IsRunning() = true before Start")
	}
}

func TestNew_RequiresHome(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("New() without home succeeded, want error")
	}
}

func TestRequireInit_BeforeStart(t *testing.T) {
	srv, err := New(Config{Home: newTestHome(t)})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// Health needs no services
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d, want %d", rec.Code, http.StatusOK)
	}

	// API routes 503 until Start wires the database
	rec = httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/prompts", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("prompts status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Error == "" {
		t.Error("503 body has no error message")
	}
}
