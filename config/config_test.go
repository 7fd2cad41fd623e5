package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadResolvesLimits(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.json")
	cfg := ServerConfig{
		ServerID:   "ss1",
		DataDir:    "/data/ss1",
		NMAddr:     "ws://localhost:9000/nm",
		ClientPort: 9100,
		Limits: Limits{
			MaxLocks:    64,
			MaxFiles:    1000,
			MaxFileSize: "8MB",
		},
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.ServerID != "ss1" {
		t.Errorf("ServerID = %q, want ss1", loaded.ServerID)
	}
	want := int64(8 * 1024 * 1024)
	if got := loaded.Limits.MaxFileSizeBytes(); got != want {
		t.Errorf("MaxFileSizeBytes = %d, want %d", got, want)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLimitsResolveEmptySize(t *testing.T) {
	l := Limits{}
	if err := l.Resolve(); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if l.MaxFileSizeBytes() != 0 {
		t.Errorf("MaxFileSizeBytes = %d, want 0", l.MaxFileSizeBytes())
	}
}

func TestLimitsResolveInvalidSize(t *testing.T) {
	l := Limits{MaxFileSize: "not-a-size"}
	if err := l.Resolve(); err == nil {
		t.Fatal("expected error for invalid max_file_size")
	}
}

func TestPermWatcherLoadsAndReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "perms.json")
	initial, _ := json.Marshal(Permissions{"notes.txt": "alice"})
	if err := os.WriteFile(path, initial, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	w, err := NewPermWatcher(path)
	if err != nil {
		t.Fatalf("NewPermWatcher: %v", err)
	}
	defer w.Close()

	if got := w.Owner("notes.txt"); got != "alice" {
		t.Errorf("Owner(notes.txt) = %q, want alice", got)
	}
	if got := w.Owner("missing.txt"); got != "" {
		t.Errorf("Owner(missing.txt) = %q, want empty", got)
	}

	updated, _ := json.Marshal(Permissions{"notes.txt": "bob"})
	if err := os.WriteFile(path, updated, 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if w.Owner("notes.txt") == "bob" {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Errorf("Owner(notes.txt) never reloaded to bob, got %q", w.Owner("notes.txt"))
}
