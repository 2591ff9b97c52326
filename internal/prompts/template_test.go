package prompts

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestExtractVariables(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"none", "plain text with no placeholders", nil},
		{"single", "Write about [[topic]]", []string{"topic"}},
		{"sorted unique", "[[zebra]] and [[apple]] and [[zebra]] again", []string{"apple", "zebra"}},
		{"inner whitespace", "[[ topic ]] vs [[topic]]", []string{"topic"}},
		{"underscores and digits", "[[var_1]] [[var_2]]", []string{"var_1", "var_2"}},
		{"not a variable", "[single] brackets and [[spaced name]]", nil},
		{"adjacent", "[[a]][[b]]", []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractVariables(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractVariables(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestSubstitute(t *testing.T) {
	got, err := Substitute("Write a [[tone]] post about [[ topic ]].", map[string]string{
		"tone":  "cheerful",
		"topic": "compilers",
	})
	if err != nil {
		t.Fatalf("Substitute failed: %v", err)
	}
	if got != "Write a cheerful post about compilers." {
		t.Errorf("unexpected result: %q", got)
	}
}

func TestSubstitute_MissingVariables(t *testing.T) {
	_, err := Substitute("[[a]] then [[b]] then [[c]]", map[string]string{"b": "x"})
	if !errors.Is(err, ErrMissingVariables) {
		t.Fatalf("expected ErrMissingVariables, got %v", err)
	}
	// All missing names are reported, not just the first.
	if !strings.Contains(err.Error(), "a") || !strings.Contains(err.Error(), "c") {
		t.Errorf("expected both missing names in error: %v", err)
	}
}

func TestSubstitute_ExtraValuesIgnored(t *testing.T) {
	got, err := Substitute("no placeholders here", map[string]string{"unused": "v"})
	if err != nil {
		t.Fatalf("Substitute failed: %v", err)
	}
	if got != "no placeholders here" {
		t.Errorf("unexpected result: %q", got)
	}
}

func TestSubstitute_RejectsNestedPlaceholders(t *testing.T) {
	_, err := Substitute("[[a]]", map[string]string{"a": "sneaky [[b]]"})
	if err == nil {
		t.Fatal("expected error when a value introduces a placeholder")
	}
}

func TestHashText(t *testing.T) {
	a := HashText("same text")
	b := HashText("same text")
	c := HashText("different text")
	if a != b {
		t.Error("expected identical hashes for identical text")
	}
	if a == c {
		t.Error("expected different hashes for different text")
	}
	if len(a) != 64 {
		t.Errorf("expected hex sha256, got %d chars", len(a))
	}
}
