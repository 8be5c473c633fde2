// Package command detects command invocations in message text and splits
// them into a name and arguments.
package command

import "strings"

// Parsed is a command extracted from message text.
type Parsed struct {
	Prefix   string
	Name     string
	Args     []string
	FullText string
}

// Parser matches text against an ordered set of command prefixes.
// Prefixes are checked in configured order; the first match wins.
type Parser struct {
	prefixes []string
}

// NewParser creates a parser for the given prefixes. Empty prefixes are ignored.
func NewParser(prefixes []string) *Parser {
	p := &Parser{}
	for _, prefix := range prefixes {
		if prefix != "" {
			p.prefixes = append(p.prefixes, prefix)
		}
	}
	return p
}

// Prefixes returns the configured prefixes in match order.
func (p *Parser) Prefixes() []string {
	return append([]string(nil), p.prefixes...)
}

// IsCommand reports whether text starts with one of the configured prefixes.
func (p *Parser) IsCommand(text string) bool {
	_, ok := p.match(text)
	return ok
}

// Parse returns the command in text, or nil when text is not a command.
// A bare prefix yields a command with an empty Name.
func (p *Parser) Parse(text string) *Parsed {
	prefix, ok := p.match(text)
	if !ok {
		return nil
	}
	body := strings.TrimSpace(text[len(prefix):])
	parts := strings.Split(body, " ")
	return &Parsed{
		Prefix:   prefix,
		Name:     strings.ToLower(parts[0]),
		Args:     parts[1:],
		FullText: body,
	}
}

func (p *Parser) match(text string) (string, bool) {
	if text == "" {
		return "", false
	}
	for _, prefix := range p.prefixes {
		if strings.HasPrefix(text, prefix) {
			return prefix, true
		}
	}
	return "", false
}

// Ambiguous returns the first pair of prefixes where one is a prefix of the
// other, or ok=false when the set is unambiguous.
func Ambiguous(prefixes []string) (a, b string, ok bool) {
	for i, x := range prefixes {
		for j, y := range prefixes {
			if i != j && x != "" && strings.HasPrefix(y, x) {
				return x, y, true
			}
		}
	}
	return "", "", false
}
