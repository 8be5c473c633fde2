package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.DefaultSession = "work"
	cfg.Bot.HandlerTimeout = Duration(5 * time.Second)
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultSession != "work" {
		t.Errorf("DefaultSession = %q, want %q", loaded.DefaultSession, "work")
	}
	if loaded.Bot.HandlerTimeout.Std() != 5*time.Second {
		t.Errorf("HandlerTimeout = %v, want 5s", loaded.Bot.HandlerTimeout.Std())
	}
	if !slices.Equal(loaded.Bot.Prefixes, []string{"#", "-", "!"}) {
		t.Errorf("Prefixes = %v", loaded.Bot.Prefixes)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
default_session = "bot"

[bot]
prefixes = ["/"]
handler_timeout = "2m"

[state]
checkpoint_every = 25

[log]
level = "debug"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !slices.Equal(cfg.Bot.Prefixes, []string{"/"}) {
		t.Errorf("Prefixes = %v, want [/]", cfg.Bot.Prefixes)
	}
	if cfg.Bot.HandlerTimeout.Std() != 2*time.Minute {
		t.Errorf("HandlerTimeout = %v, want 2m", cfg.Bot.HandlerTimeout.Std())
	}
	if cfg.State.CheckpointEvery != 25 {
		t.Errorf("CheckpointEvery = %d, want 25", cfg.State.CheckpointEvery)
	}
	// Untouched keys keep their defaults.
	if cfg.Bot.DeviceName != "wppbot" {
		t.Errorf("DeviceName = %q, want wppbot", cfg.Bot.DeviceName)
	}
	if cfg.State.FlushInterval.Std() != 5*time.Minute {
		t.Errorf("FlushInterval = %v, want 5m", cfg.State.FlushInterval.Std())
	}
	if cfg.Messages.HandlerError != DefaultHandlerError {
		t.Errorf("HandlerError = %q", cfg.Messages.HandlerError)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"ambiguous prefixes", "[bot]\nprefixes = [\"!\", \"!!\"]"},
		{"duplicate prefixes", "[bot]\nprefixes = [\"#\", \"#\"]"},
		{"empty prefix", "[bot]\nprefixes = [\"#\", \"\"]"},
		{"no prefixes", "[bot]\nprefixes = []"},
		{"zero timeout", "[bot]\nhandler_timeout = \"0s\""},
		{"bad duration", "[bot]\nhandler_timeout = \"soon\""},
		{"negative checkpoint", "[state]\ncheckpoint_every = -1"},
		{"unknown level", "[log]\nlevel = \"loud\""},
		{"empty not found", "[messages]\nnot_found = \"\""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Errorf("Load() expected error for %s", tt.name)
			}
		})
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Load() error = %v, want fs.ErrNotExist", err)
	}

	cfg, err := LoadOrDefault("/nonexistent/config.toml")
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if cfg.State.CheckpointEvery != 10 {
		t.Errorf("CheckpointEvery = %d, want 10", cfg.State.CheckpointEvery)
	}
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Default().Validate() = %v", err)
	}
}

func TestSavePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	if err := Save(path, Default()); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}
