package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("expected defaults when no file is present, got %+v", cfg)
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("expected defaults for an empty path, got %+v", cfg)
	}
}

func TestLoadOverridesOnlyNonZeroFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	if err := os.WriteFile(path, []byte("app_name: MyChat\ncommit_every: 1000\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AppName != "MyChat" {
		t.Fatalf("expected overridden AppName, got %q", cfg.AppName)
	}
	if cfg.CommitEvery != 1000 {
		t.Fatalf("expected overridden CommitEvery, got %d", cfg.CommitEvery)
	}
	if cfg.CheckpointEvery != Default().CheckpointEvery {
		t.Fatalf("expected untouched field to keep its default, got %d", cfg.CheckpointEvery)
	}
}

func TestLoadTolerantJSONSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	content := `{
	// hand-edited by a user
	appName: "MyChat",
	rawSqlRowLimit: 500,
}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AppName != "MyChat" {
		t.Fatalf("expected overridden AppName, got %q", cfg.AppName)
	}
	if cfg.RawSQLRowLimit != 500 {
		t.Fatalf("expected overridden RawSQLRowLimit, got %d", cfg.RawSQLRowLimit)
	}
	if cfg.CommitEvery != Default().CommitEvery {
		t.Fatalf("expected untouched field to keep its default, got %d", cfg.CommitEvery)
	}
}

func TestDirectoryHelpers(t *testing.T) {
	cfg := Config{DocumentsRoot: "/root", AppName: "ChatLab"}
	if got := cfg.DatabasesDir(); got != filepath.Join("/root", "ChatLab", "databases") {
		t.Fatalf("unexpected DatabasesDir: %q", got)
	}
	if got := cfg.SessionDBPath("chat_1"); got != filepath.Join("/root", "ChatLab", "databases", "chat_1.db") {
		t.Fatalf("unexpected SessionDBPath: %q", got)
	}
}
