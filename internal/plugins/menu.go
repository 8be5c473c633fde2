package plugins

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/matheus3301/wppbot/internal/plugin"
)

var categoryIcons = map[string]string{
	CategoryUtilities:     "▣",
	CategoryCommunication: "◈",
	CategoryInformation:   "◉",
	CategorySystem:        "⚡",
	plugin.DefaultCategory: "●",
}

func categoryIcon(category string) string {
	if icon, ok := categoryIcons[strings.ToLower(category)]; ok {
		return icon
	}
	return "●"
}

// NewMenu lists the registered commands grouped by category. An argument
// filters categories by substring.
func NewMenu() (*plugin.Plugin, error) {
	return &plugin.Plugin{
		Command:     "menu",
		Description: "Lists the available commands with their description and usage",
		Category:    CategoryUtilities,
		Usage:       "menu [category]",
		Handler: func(ctx context.Context, c *plugin.Context) error {
			return c.Reply(ctx, renderMenu(c.Host.Commands(), strings.ToLower(c.ArgString()), c.Host.Prefix()))
		},
	}, nil
}

func renderMenu(cmds []plugin.Info, filter, prefix string) string {
	if len(cmds) == 0 {
		return "No commands are available right now."
	}

	byCategory := make(map[string][]plugin.Info)
	for _, info := range cmds {
		byCategory[info.Category] = append(byCategory[info.Category], info)
	}
	categories := make([]string, 0, len(byCategory))
	for cat := range byCategory {
		categories = append(categories, cat)
	}
	slices.Sort(categories)

	shown := categories
	if filter != "" {
		shown = slices.DeleteFunc(slices.Clone(categories), func(cat string) bool {
			return !strings.Contains(strings.ToLower(cat), filter)
		})
		if len(shown) == 0 {
			return fmt.Sprintf("*Category not found*\n\n*Available categories:*\n%s", strings.Join(categories, " • "))
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*COMMAND MENU*\n%d commands available\n\n", len(cmds))
	for _, cat := range shown {
		fmt.Fprintf(&b, "%s *%s*\n", categoryIcon(cat), strings.ToUpper(cat))
		for _, info := range byCategory[cat] {
			fmt.Fprintf(&b, "  ∟ %s%s\n     %s\n", prefix, info.Command, info.Description)
			if info.Usage != "" && info.Usage != info.Command {
				usage, _, _ := strings.Cut(info.Usage, "\n")
				fmt.Fprintf(&b, "     ◦ `%s%s`\n", prefix, usage)
			}
			b.WriteString("\n")
		}
	}
	fmt.Fprintf(&b, "Filter by category: %smenu [category]", prefix)
	return b.String()
}
