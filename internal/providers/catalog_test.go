package providers

import (
	"context"
	"errors"
	"testing"
)

func TestRegistry_Catalog(t *testing.T) {
	r := NewRegistry()

	ok := NewMockClient("ok")
	ok.SetModels([]string{"a", "b"})
	r.Register("ok", ok)

	bad := NewMockClient("bad")
	bad.SetError(errors.New("unreachable"))
	r.Register("bad", bad)

	catalog := r.Catalog(context.Background(), nil)
	if len(catalog) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(catalog))
	}

	byName := map[string]ModelCatalog{}
	for _, e := range catalog {
		byName[e.Provider] = e
	}
	if got := byName["ok"]; len(got.Models) != 2 || got.Error != "" {
		t.Errorf("unexpected ok entry: %+v", got)
	}
	if got := byName["bad"]; got.Error == "" || got.Models != nil {
		t.Errorf("expected error entry for bad provider: %+v", got)
	}
}
