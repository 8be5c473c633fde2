package plugins

import (
	"context"
	"fmt"
	"time"

	"github.com/matheus3301/wppbot/internal/plugin"
)

// NewPing answers with pong and the time spent since the message was sent.
func NewPing() (*plugin.Plugin, error) {
	return &plugin.Plugin{
		Command:     "ping",
		Description: "Test command that replies with pong",
		Category:    CategoryUtilities,
		Usage:       "ping",
		Handler: func(ctx context.Context, c *plugin.Context) error {
			latency := time.Since(c.Record.Timestamp)
			if latency < 0 {
				latency = 0
			}
			return c.Reply(ctx, fmt.Sprintf("🏓 Pong!\n⏱️ Latency: %dms", latency.Milliseconds()))
		},
	}, nil
}
