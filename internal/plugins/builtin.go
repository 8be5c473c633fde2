// Package plugins holds the command plugins compiled into the bot.
package plugins

import "github.com/matheus3301/wppbot/internal/plugin"

// SourceName prefixes the origin of every built-in plugin.
const SourceName = "builtin"

// Categories used by the built-ins.
const (
	CategoryUtilities     = "utilities"
	CategoryInformation   = "information"
	CategoryCommunication = "communication"
	CategorySystem        = "system"
)

// Builtin returns the source offering every compiled-in plugin.
func Builtin() *plugin.StaticSource {
	return plugin.NewStaticSource(SourceName,
		plugin.Constructor{Name: "ping", New: NewPing},
		plugin.Constructor{Name: "menu", New: NewMenu},
		plugin.Constructor{Name: "groups", New: NewGroups},
		plugin.Constructor{Name: "grupos", New: NewGrupos},
		plugin.Constructor{Name: "stats", New: NewStats},
		plugin.Constructor{Name: "reload", New: NewReload},
		plugin.Constructor{Name: "send", New: NewSend},
	)
}
