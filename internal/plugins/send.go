package plugins

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/matheus3301/wppbot/internal/plugin"
	"go.mau.fi/whatsmeow/types"
)

// MaxRepeat caps n=<count>.
const MaxRepeat = 20

const sendUsage = `send [message] [n=count]
send me [message]
send group [message]
send [number|group id][,...] [message] [n=count]

Examples:
  ◦ send Hello world
  ◦ send Hello world n=3
  ◦ send 51987654321 Hello from the bot
  ◦ send 51987654321,51923456789 Broadcast
  ◦ send 120363417034970626@g.us Hello group
  ◦ send me Reminder`

var (
	repeatArg   = regexp.MustCompile(`^n=(\d+)$`)
	phoneNumber = regexp.MustCompile(`^\+?[\d\-]{5,}$`)
	groupID     = regexp.MustCompile(`^[\d\-]+@` + regexp.QuoteMeta(types.GroupServer) + `$`)
)

// NewSend sends text to the current chat, the sender, or explicit recipients.
func NewSend() (*plugin.Plugin, error) {
	return &plugin.Plugin{
		Command:     "send",
		Description: "Sends messages to numbers, groups or the current chat",
		Category:    CategoryCommunication,
		Usage:       sendUsage,
		Handler:     handleSend,
	}, nil
}

// sendRequest is a parsed send invocation.
type sendRequest struct {
	recipients []string
	text       string
	repeat     int
}

func handleSend(ctx context.Context, c *plugin.Context) error {
	if len(c.Command.Args) == 0 {
		return c.Reply(ctx, sendUsage)
	}
	req, problem := parseSend(c)
	if problem != "" {
		return c.Reply(ctx, "⚠ "+problem)
	}

	sent, failed := 0, 0
	var details []string
	for _, to := range req.recipients {
		err := sendRepeated(ctx, c.Host, to, req.text, req.repeat)
		name := recipientName(c, to)
		if err != nil {
			failed++
			details = append(details, fmt.Sprintf("✗ %s - %v", name, err))
			continue
		}
		sent++
		details = append(details, "✓ "+name)
	}

	if len(req.recipients) == 1 {
		if failed > 0 {
			return c.Reply(ctx, "⚠ "+strings.TrimPrefix(details[0], "✗ "))
		}
		if req.repeat > 1 {
			return c.Reply(ctx, fmt.Sprintf("✓ %d messages sent to %s", req.repeat, recipientName(c, req.recipients[0])))
		}
		return c.Reply(ctx, "✓ Message sent to "+recipientName(c, req.recipients[0]))
	}

	return c.Reply(ctx, fmt.Sprintf("*DELIVERY REPORT*\n\n"+
		"◦ Sent: %d\n◦ Failed: %d\n◦ Recipients: %d\n◦ Repeats: %d\n◦ Total messages: %d\n\n*DETAILS*\n%s",
		sent, failed, len(req.recipients), req.repeat, sent*req.repeat, strings.Join(details, "\n")))
}

// parseSend interprets the arguments. A non-empty problem is the reason the
// request was rejected.
func parseSend(c *plugin.Context) (sendRequest, string) {
	req := sendRequest{repeat: 1}
	args := make([]string, 0, len(c.Command.Args))
	for i, a := range c.Command.Args {
		if m := repeatArg.FindStringSubmatch(a); m != nil && i > 0 {
			n, err := strconv.Atoi(m[1])
			if err != nil || n < 1 {
				return req, "The repeat count must be greater than 0"
			}
			if n > MaxRepeat {
				return req, fmt.Sprintf("The repeat count cannot exceed %d", MaxRepeat)
			}
			req.repeat = n
			continue
		}
		if a != "" {
			args = append(args, a)
		}
	}
	if len(args) == 0 {
		return req, "Specify a message to send"
	}

	rest := args[1:]
	switch first := strings.ToLower(args[0]); {
	case first == "group":
		if !c.Record.IsGroup() {
			return req, "This command must be used in a group"
		}
		req.recipients = []string{c.Record.From}
	case first == "me":
		req.recipients = []string{c.Record.Participant}
	default:
		if recipients, ok := parseRecipients(args[0]); ok {
			req.recipients = recipients
		} else {
			req.recipients = []string{c.Record.From}
			rest = args
		}
	}

	req.text = strings.Join(rest, " ")
	if strings.TrimSpace(req.text) == "" {
		return req, "Specify a message to send"
	}
	return req, ""
}

// parseRecipients accepts a comma separated list of phone numbers and group
// ids. It reports false if any element is neither.
func parseRecipients(arg string) ([]string, bool) {
	var out []string
	for _, part := range strings.Split(arg, ",") {
		part = strings.TrimSpace(part)
		switch {
		case part == "":
			continue
		case groupID.MatchString(part):
			out = append(out, part)
		case phoneNumber.MatchString(part):
			digits := strings.Map(func(r rune) rune {
				if r >= '0' && r <= '9' {
					return r
				}
				return -1
			}, part)
			out = append(out, types.NewJID(digits, types.DefaultUserServer).String())
		default:
			return nil, false
		}
	}
	return out, len(out) > 0
}

func sendRepeated(ctx context.Context, host plugin.Host, to, text string, repeat int) error {
	for i := 1; i <= repeat; i++ {
		msg := text
		if repeat > 1 {
			msg = fmt.Sprintf("%s (%d/%d)", text, i, repeat)
		}
		if err := host.Send(ctx, to, msg); err != nil {
			return err
		}
	}
	return nil
}

func recipientName(c *plugin.Context, to string) string {
	switch {
	case to == c.Record.From:
		return "this chat"
	case to == c.Record.Participant:
		return "you"
	case strings.HasSuffix(to, "@"+types.GroupServer):
		return "group " + strings.TrimSuffix(to, "@"+types.GroupServer)
	default:
		return strings.TrimSuffix(to, "@"+types.DefaultUserServer)
	}
}
