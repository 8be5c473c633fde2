package plugins

import (
	"context"
	"fmt"

	"github.com/matheus3301/wppbot/internal/plugin"
)

// NewReload rescans every plugin source.
func NewReload() (*plugin.Plugin, error) {
	return &plugin.Plugin{
		Command:     "reload",
		Description: "Reloads every plugin",
		Category:    CategorySystem,
		Usage:       "reload",
		Handler: func(ctx context.Context, c *plugin.Context) error {
			res := c.Host.Reload(ctx)
			return c.Reply(ctx, fmt.Sprintf("🔄 Plugins reloaded: %d loaded, %d failed, %d total", res.Loaded, res.Failed, res.Total))
		},
	}, nil
}
