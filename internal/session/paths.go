// Package session lays out the per-session data directory:
//
//	~/.wppbot/sessions/<name>/
//	  LOCK          single-instance lock
//	  session.db    whatsmeow device store
//	  state.json    bot counters and command registry
//	  journal.db    command runs and outbound sends
//	  health.sock   gRPC health endpoint
//	  plugins/      reply plugins (*.toml)
//	  logs/         wppbotd.log
package session

import (
	"os"
	"path/filepath"
)

// HomeEnv overrides the base directory when set.
const HomeEnv = "WPPBOT_HOME"

// BaseDir returns $WPPBOT_HOME or ~/.wppbot.
func BaseDir() string {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".wppbot")
}

// Dir returns the session-specific directory.
func Dir(name string) string {
	return filepath.Join(BaseDir(), "sessions", name)
}

// SocketPath returns the health UDS path for a session.
func SocketPath(name string) string {
	return filepath.Join(Dir(name), "health.sock")
}

// LockPath returns the lock file path for a session.
func LockPath(name string) string {
	return filepath.Join(Dir(name), "LOCK")
}

// SessionDBPath returns the whatsmeow session.db path.
func SessionDBPath(name string) string {
	return filepath.Join(Dir(name), "session.db")
}

// StatePath returns the bot state snapshot path.
func StatePath(name string) string {
	return filepath.Join(Dir(name), "state.json")
}

// JournalPath returns the command journal path.
func JournalPath(name string) string {
	return filepath.Join(Dir(name), "journal.db")
}

// PluginDir returns the default reply plugin directory.
func PluginDir(name string) string {
	return filepath.Join(Dir(name), "plugins")
}

// LogDir returns the log directory for a session.
func LogDir(name string) string {
	return filepath.Join(Dir(name), "logs")
}

// LogPath returns the daemon log file path.
func LogPath(name string) string {
	return filepath.Join(LogDir(name), "wppbotd.log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnsureDir creates the session directory tree with proper permissions.
func EnsureDir(name string) error {
	for _, d := range []string{Dir(name), LogDir(name), PluginDir(name)} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
