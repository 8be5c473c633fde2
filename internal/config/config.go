// Package config loads ~/.wppbot/config.toml.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/matheus3301/wppbot/internal/command"
)

// Config represents the global ~/.wppbot/config.toml.
type Config struct {
	DefaultSession string   `toml:"default_session" validate:"omitempty,max=64"`
	Bot            Bot      `toml:"bot"`
	State          State    `toml:"state"`
	Plugins        Plugins  `toml:"plugins"`
	Messages       Messages `toml:"messages"`
	Log            Log      `toml:"log"`
}

// Bot configures command recognition and handler execution.
type Bot struct {
	Prefixes       []string `toml:"prefixes" validate:"required,min=1,dive,required,max=8"`
	DeviceName     string   `toml:"device_name" validate:"required,max=64"`
	HandlerTimeout Duration `toml:"handler_timeout" validate:"gt=0"`
}

// State configures persistence of the bot's counters.
type State struct {
	// CheckpointEvery flushes after this many messages; 0 disables.
	CheckpointEvery int `toml:"checkpoint_every" validate:"gte=0"`
	// FlushInterval flushes on a timer; 0 disables.
	FlushInterval Duration `toml:"flush_interval" validate:"gte=0"`
}

// Plugins configures the reply plugin directory.
type Plugins struct {
	Dir   string `toml:"dir"` // empty means <session>/plugins
	Watch bool   `toml:"watch"`
}

// Messages holds the fixed replies users can see.
type Messages struct {
	NotFound string `toml:"not_found" validate:"required"`
	// HandlerError is a format string receiving the command name and the error.
	HandlerError string `toml:"handler_error" validate:"required"`
}

// Log configures the daemon logger.
type Log struct {
	Level string `toml:"level" validate:"oneof=debug info warn error"`
}

// Duration is a time.Duration written as "30s" in TOML.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

const (
	DefaultNotFound = "⚠ *Command not recognized*\n" +
		"─────────────────────────────\n" +
		"→ Send *#menu* to see the full list of available commands"
	DefaultHandlerError = "❌ Error running command \"%s\": %s"
)

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Bot: Bot{
			Prefixes:       []string{"#", "-", "!"},
			DeviceName:     "wppbot",
			HandlerTimeout: Duration(30 * time.Second),
		},
		State: State{
			CheckpointEvery: 10,
			FlushInterval:   Duration(5 * time.Minute),
		},
		Plugins: Plugins{Watch: true},
		Messages: Messages{
			NotFound:     DefaultNotFound,
			HandlerError: DefaultHandlerError,
		},
		Log: Log{Level: "info"},
	}
}

// Load reads config from the given path over the defaults and validates it.
// A missing file is an error wrapping fs.ErrNotExist; use LoadOrDefault to
// tolerate it.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is Load with a missing file meaning defaults.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		bot := sl.Current().Interface().(Bot)
		if a, b, ok := command.Ambiguous(bot.Prefixes); ok {
			sl.ReportError(bot.Prefixes, "Prefixes", "prefixes", "unambiguous", a+" "+b)
		}
	}, Bot{})
	return v
}

// Validate checks field constraints and rejects prefix sets where one prefix
// starts another, since the shorter one would always win.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
