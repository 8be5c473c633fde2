// Package inbound turns raw transport events into canonical message records.
package inbound

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/matheus3301/wppbot/internal/command"
	"go.mau.fi/whatsmeow/types"
)

// ErrMalformedEvent is returned for events that cannot be normalized.
var ErrMalformedEvent = errors.New("malformed event")

// ChatKind is derived from the conversation identifier's server suffix.
type ChatKind string

const (
	ChatGroup   ChatKind = "group"
	ChatChannel ChatKind = "channel"
	ChatDirect  ChatKind = "direct"
	ChatUnknown ChatKind = "unknown"
)

var chatSuffixes = []struct {
	suffix string
	kind   ChatKind
}{
	{"@" + types.GroupServer, ChatGroup},
	{"@" + types.NewsletterServer, ChatChannel},
	{"@" + types.DefaultUserServer, ChatDirect},
}

// KindOf returns the chat kind for a conversation identifier.
func KindOf(chatID string) ChatKind {
	for _, s := range chatSuffixes {
		if strings.HasSuffix(chatID, s.suffix) {
			return s.kind
		}
	}
	return ChatUnknown
}

// Event is a raw inbound message as delivered by the transport.
type Event struct {
	ID       string
	ChatID   string
	SenderID string // empty when the transport has no explicit sender (direct chats)
	PushName string
	Payload  Payload
	SentAt   time.Time
}

// Record is the canonical representation of one inbound message.
type Record struct {
	ID          string
	From        string
	Participant string
	PushName    string
	Text        string
	Type        MessageType
	Chat        ChatKind
	IsCommand   bool
	Command     *command.Parsed
	Timestamp   time.Time
}

// IsGroup reports whether the record came from a group conversation.
func (r *Record) IsGroup() bool { return r.Chat == ChatGroup }

// Normalizer converts events into records and annotates commands.
type Normalizer struct {
	parser *command.Parser
	now    func() time.Time
}

// NewNormalizer creates a normalizer that detects commands with parser.
func NewNormalizer(parser *command.Parser) *Normalizer {
	return &Normalizer{parser: parser, now: time.Now}
}

// Normalize builds a Record from evt. It fails with ErrMalformedEvent when
// the event has no conversation identifier or no payload.
func (n *Normalizer) Normalize(evt Event) (*Record, error) {
	if evt.ChatID == "" {
		return nil, fmt.Errorf("%w: missing chat id (msg %q)", ErrMalformedEvent, evt.ID)
	}
	if evt.Payload == nil {
		return nil, fmt.Errorf("%w: missing payload (msg %q)", ErrMalformedEvent, evt.ID)
	}

	msgType, text := Classify(evt.Payload)
	participant := evt.SenderID
	if participant == "" {
		participant = evt.ChatID
	}
	ts := evt.SentAt
	if ts.IsZero() {
		ts = n.now()
	}

	rec := &Record{
		ID:          evt.ID,
		From:        evt.ChatID,
		Participant: participant,
		PushName:    evt.PushName,
		Text:        text,
		Type:        msgType,
		Chat:        KindOf(evt.ChatID),
		Timestamp:   ts,
	}
	if n.parser != nil {
		rec.Command = n.parser.Parse(text)
		rec.IsCommand = rec.Command != nil
	}
	return rec, nil
}
