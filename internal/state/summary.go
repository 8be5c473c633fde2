package state

import (
	"fmt"
	"time"
)

// Summary is a point-in-time report of the bot's counters.
type Summary struct {
	TotalMessages int64         `json:"total_messages"`
	TotalCommands int64         `json:"total_commands"`
	TotalUsers    int           `json:"total_users"`
	TotalGroups   int           `json:"total_groups"`
	TotalPlugins  int           `json:"total_plugins"`
	StartTime     time.Time     `json:"start_time"`
	Uptime        time.Duration `json:"uptime"`
}

// Summarize reports the document's counters as of now. TotalPlugins is left
// for the caller, which owns the plugin registry.
func Summarize(doc *Document, now time.Time) Summary {
	uptime := now.Sub(doc.Stats.StartTime)
	if uptime < 0 {
		uptime = 0
	}
	return Summary{
		TotalMessages: doc.Stats.TotalMessages,
		TotalCommands: doc.Stats.TotalCommands,
		TotalUsers:    len(doc.Users),
		TotalGroups:   len(doc.Groups),
		StartTime:     doc.Stats.StartTime,
		Uptime:        uptime,
	}
}

// Summary reports the store's counters.
func (s *Store) Summary() Summary {
	return Summarize(s.doc, s.now())
}

// UptimeString formats the uptime as "Xh Ym".
func (s Summary) UptimeString() string {
	return FormatUptime(s.Uptime)
}

// FormatUptime formats d as whole hours and minutes, e.g. "26h 5m".
func FormatUptime(d time.Duration) string {
	h := int64(d / time.Hour)
	m := int64((d % time.Hour) / time.Minute)
	return fmt.Sprintf("%dh %dm", h, m)
}
