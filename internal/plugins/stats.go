package plugins

import (
	"context"
	"fmt"

	"github.com/matheus3301/wppbot/internal/plugin"
	"github.com/matheus3301/wppbot/internal/state"
)

// NewStats reports the bot's aggregate counters.
func NewStats() (*plugin.Plugin, error) {
	return &plugin.Plugin{
		Command:     "stats",
		Description: "Shows the bot's message and command counters",
		Category:    CategoryInformation,
		Usage:       "stats",
		Handler: func(ctx context.Context, c *plugin.Context) error {
			return c.Reply(ctx, renderStats(c.Host.Summary()))
		},
	}, nil
}

func renderStats(s state.Summary) string {
	return fmt.Sprintf("📊 *BOT STATS*\n\n"+
		"• 💬 Messages: %d\n"+
		"• ⚙️ Commands: %d\n"+
		"• 👤 Users: %d\n"+
		"• 🏠 Groups: %d\n"+
		"• 🧩 Plugins: %d\n"+
		"• ⏱️ Uptime: %s",
		s.TotalMessages, s.TotalCommands, s.TotalUsers, s.TotalGroups, s.TotalPlugins, s.UptimeString())
}
