package plugins

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/matheus3301/wppbot/internal/plugin"
	"github.com/matheus3301/wppbot/internal/state"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04"
)

const noGroupsText = "📭 No group information available.\n\n" +
	"The bot needs to receive at least one message in a group to register it."

// NewGroups reports the groups the bot has seen.
func NewGroups() (*plugin.Plugin, error) {
	return groupsPlugin("groups"), nil
}

// NewGrupos is the Spanish alias of groups kept for existing users.
func NewGrupos() (*plugin.Plugin, error) {
	return groupsPlugin("grupos"), nil
}

func groupsPlugin(name string) *plugin.Plugin {
	return &plugin.Plugin{
		Command:     name,
		Description: "Shows information about the groups the bot is in",
		Category:    CategoryInformation,
		Usage:       name + " [list|detail|stats]",
		Handler: func(ctx context.Context, c *plugin.Context) error {
			groups := c.State.Groups()
			if len(groups) == 0 {
				return c.Reply(ctx, noGroupsText)
			}
			now := time.Now()
			switch strings.ToLower(c.Arg(0)) {
			case "detail", "detalle":
				return c.Reply(ctx, renderGroupDetails(groups, now))
			case "stats", "estadisticas":
				return c.Reply(ctx, renderGroupStats(groups))
			default:
				return c.Reply(ctx, renderGroupList(groups, name))
			}
		},
	}
}

func renderGroupList(groups []state.GroupRecord, name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📋 *REGISTERED GROUPS* (%d)\n%s\n\n", len(groups), strings.Repeat("═", 30))
	for i, g := range groups {
		fmt.Fprintf(&b, "%d. 🏠 %s\n", i+1, g.ID)
		fmt.Fprintf(&b, "   📊 %d messages\n", g.MessageCount)
		fmt.Fprintf(&b, "   👥 %d participants\n", len(g.Participants))
		fmt.Fprintf(&b, "   📅 Last activity: %s\n\n", formatDate(g.LastActivity, dateLayout))
	}
	fmt.Fprintf(&b, "💡 *Subcommands:*\n• %s detail\n• %s stats", name, name)
	return b.String()
}

func renderGroupDetails(groups []state.GroupRecord, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 *GROUP DETAILS*\n%s\n\n", strings.Repeat("═", 40))
	for i, g := range groups {
		days := 0
		if !g.FirstSeen.IsZero() {
			days = int(now.Sub(g.FirstSeen) / (24 * time.Hour))
		}
		fmt.Fprintf(&b, "🏠 *GROUP %d*\n", i+1)
		fmt.Fprintf(&b, "│ 🆔 ID: %s\n", g.ID)
		fmt.Fprintf(&b, "│ 💬 Messages: %d\n", g.MessageCount)
		fmt.Fprintf(&b, "│ 👥 Participants: %d\n", len(g.Participants))
		fmt.Fprintf(&b, "│ 📅 First seen: %s\n", formatDate(g.FirstSeen, dateTimeLayout))
		fmt.Fprintf(&b, "│ 🕐 Last activity: %s\n", formatDate(g.LastActivity, dateTimeLayout))
		fmt.Fprintf(&b, "│ 📊 Days active: %d\n\n", days)
	}
	return strings.TrimRight(b.String(), "\n")
}

// activity buckets, most active first.
var activityBuckets = []struct {
	label string
	min   int64
}{
	{"Very active (>50 messages)", 51},
	{"Active (11-50 messages)", 11},
	{"Moderate (1-10 messages)", 1},
	{"Inactive (0 messages)", 0},
}

func renderGroupStats(groups []state.GroupRecord) string {
	var totalMessages int64
	var totalParticipants int
	mostActive, oldest := -1, -1
	counts := make([]int, len(activityBuckets))

	for i, g := range groups {
		totalMessages += g.MessageCount
		totalParticipants += len(g.Participants)
		if g.MessageCount > 0 && (mostActive < 0 || g.MessageCount > groups[mostActive].MessageCount) {
			mostActive = i
		}
		if !g.FirstSeen.IsZero() && (oldest < 0 || g.FirstSeen.Before(groups[oldest].FirstSeen)) {
			oldest = i
		}
		for j, bucket := range activityBuckets {
			if g.MessageCount >= bucket.min {
				counts[j]++
				break
			}
		}
	}

	n := len(groups)
	var b strings.Builder
	fmt.Fprintf(&b, "📊 *GROUP STATS*\n%s\n\n", strings.Repeat("═", 30))
	b.WriteString("📈 *Overview:*\n")
	fmt.Fprintf(&b, "• 🏠 Groups: %d\n", n)
	fmt.Fprintf(&b, "• 💬 Messages: %d\n", totalMessages)
	fmt.Fprintf(&b, "• 👥 Participants: %d\n", totalParticipants)
	fmt.Fprintf(&b, "• 📊 Messages per group: %d\n", roundDiv(totalMessages, int64(n)))
	fmt.Fprintf(&b, "• 👥 Participants per group: %d\n\n", roundDiv(int64(totalParticipants), int64(n)))

	if mostActive >= 0 {
		g := groups[mostActive]
		fmt.Fprintf(&b, "🔥 *Most active:*\n• 🆔 %s\n• 💬 %d messages\n\n", g.ID, g.MessageCount)
	}
	if oldest >= 0 {
		g := groups[oldest]
		fmt.Fprintf(&b, "👴 *Oldest:*\n• 🆔 %s\n• 📅 %s\n\n", g.ID, formatDate(g.FirstSeen, dateLayout))
	}

	b.WriteString("📊 *Activity:*")
	for j, bucket := range activityBuckets {
		if counts[j] > 0 {
			fmt.Fprintf(&b, "\n• %s: %d", bucket.label, counts[j])
		}
	}
	return b.String()
}

func roundDiv(a, b int64) int64 {
	if b == 0 {
		return 0
	}
	return (a + b/2) / b
}

func formatDate(t time.Time, layout string) string {
	if t.IsZero() {
		return "N/A"
	}
	return t.Format(layout)
}
