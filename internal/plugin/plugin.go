// Package plugin defines the command plugin contract and the registry that
// binds command names to handlers.
package plugin

import (
	"context"
	"strings"

	"github.com/matheus3301/wppbot/internal/command"
	"github.com/matheus3301/wppbot/internal/inbound"
	"github.com/matheus3301/wppbot/internal/state"
)

// DefaultCategory is used for plugins that do not declare one.
const DefaultCategory = "general"

// Handler runs a command. Returning an error makes the dispatcher reply with
// the configured error template.
type Handler func(ctx context.Context, c *Context) error

// Plugin binds a command name to a handler plus help metadata.
type Plugin struct {
	Command     string
	Description string
	Category    string
	Usage       string
	Handler     Handler

	// Origin identifies where the plugin was loaded from, e.g. "builtin/ping"
	// or a file path. Set by the registry.
	Origin string
}

// Info is the help metadata of a registered plugin.
type Info struct {
	Command     string `json:"command"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Usage       string `json:"usage"`
}

// Info returns the plugin's metadata with defaults applied.
func (p *Plugin) Info() Info {
	info := Info{
		Command:     p.Command,
		Description: p.Description,
		Category:    p.Category,
		Usage:       p.Usage,
	}
	if info.Description == "" {
		info.Description = "No description"
	}
	if info.Category == "" {
		info.Category = DefaultCategory
	}
	if info.Usage == "" {
		info.Usage = p.Command
	}
	return info
}

// Host is the dispatcher as seen from a handler.
type Host interface {
	// Send delivers text to a conversation. Failures are logged by the host
	// and returned so the handler can decide whether to abort.
	Send(ctx context.Context, to, text string) error
	// Commands lists the registered plugins ordered by command name.
	Commands() []Info
	// Reload rescans every plugin source.
	Reload(ctx context.Context) LoadResult
	// Summary reports the bot's counters including the plugin count.
	Summary() state.Summary
	// Prefix returns the primary command prefix, for help texts.
	Prefix() string
}

// Context is what a handler receives for one invocation.
type Context struct {
	Record  *inbound.Record
	Command *command.Parsed
	State   *state.Store
	Host    Host
}

// Reply sends text back to the conversation the command came from.
func (c *Context) Reply(ctx context.Context, text string) error {
	return c.Host.Send(ctx, c.Record.From, text)
}

// Arg returns the i-th argument or "" when absent.
func (c *Context) Arg(i int) string {
	if c.Command == nil || i < 0 || i >= len(c.Command.Args) {
		return ""
	}
	return c.Command.Args[i]
}

// ArgString returns all arguments joined by single spaces.
func (c *Context) ArgString() string {
	if c.Command == nil {
		return ""
	}
	return strings.Join(c.Command.Args, " ")
}
