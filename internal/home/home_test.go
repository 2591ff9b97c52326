package home

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNew_DefaultPath(t *testing.T) {
	d, err := New("")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	userHome, _ := os.UserHomeDir()
	want := filepath.Join(userHome, DefaultDirName)
	if d.Path() != want {
		t.Errorf("Path() = %q, want %q", d.Path(), want)
	}
}

func TestDir_Paths(t *testing.T) {
	root := t.TempDir()
	d, err := New(root)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if got := d.DataPath(); got != filepath.Join(root, "data") {
		t.Errorf("DataPath() = %q", got)
	}
	if got := d.BackupsPath(); got != filepath.Join(root, "backups") {
		t.Errorf("BackupsPath() = %q", got)
	}
	if got := d.ConfigPath(); got != filepath.Join(root, "config.yaml") {
		t.Errorf("ConfigPath() = %q", got)
	}
	if got := d.DatabasePath(); got != filepath.Join(root, "data", "promptbox.db") {
		t.Errorf("DatabasePath() = %q", got)
	}
}

func TestDir_EnsureExists(t *testing.T) {
	root := filepath.Join(t.TempDir(), "pb")
	d, err := New(root)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if d.Exists() {
		t.Error("Exists() = true before EnsureExists")
	}
	if err := d.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists() error = %v", err)
	}
	if !d.Exists() {
		t.Error("Exists() = false after EnsureExists")
	}

	for _, p := range []string{d.DataPath(), d.BackupsPath(), d.LogsPath()} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("expected directory %s: %v", p, err)
		}
	}

	if d.ConfigExists() {
		t.Error("ConfigExists() = true with no config file")
	}
	if err := os.WriteFile(d.ConfigPath(), []byte("{}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !d.ConfigExists() {
		t.Error("ConfigExists() = false after writing config")
	}
}
