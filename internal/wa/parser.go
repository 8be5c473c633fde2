package wa

import (
	"github.com/matheus3301/wppbot/internal/inbound"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
)

// ToEvent converts a live whatsmeow message into an inbound event.
// It returns false for messages the bot must not see: its own messages,
// status broadcasts and events without content.
func ToEvent(evt *events.Message) (inbound.Event, bool) {
	if evt == nil || evt.Message == nil || evt.Info.IsFromMe {
		return inbound.Event{}, false
	}
	if evt.Info.Chat == types.StatusBroadcastJID {
		return inbound.Event{}, false
	}

	out := inbound.Event{
		ID:       evt.Info.ID,
		ChatID:   evt.Info.Chat.ToNonAD().String(),
		PushName: evt.Info.PushName,
		Payload:  payloadOf(evt.Message),
		SentAt:   evt.Info.Timestamp,
	}
	if evt.Info.IsGroup {
		out.SenderID = evt.Info.Sender.ToNonAD().String()
	}
	return out, true
}

// payloadOf picks the first content variant present on msg.
func payloadOf(msg *waE2E.Message) inbound.Payload {
	switch {
	case msg == nil:
		return inbound.Unsupported{Kind: "empty"}
	case msg.Conversation != nil:
		return inbound.Text{Body: msg.GetConversation()}
	case msg.GetExtendedTextMessage() != nil:
		return inbound.ExtendedText{Body: msg.GetExtendedTextMessage().GetText()}
	case msg.GetImageMessage() != nil:
		return inbound.Image{Caption: msg.GetImageMessage().GetCaption()}
	case msg.GetVideoMessage() != nil:
		return inbound.Video{Caption: msg.GetVideoMessage().GetCaption()}
	case msg.GetDocumentMessage() != nil:
		return inbound.Document{Caption: msg.GetDocumentMessage().GetCaption()}
	case msg.GetAudioMessage() != nil:
		return inbound.Audio{}
	case msg.GetStickerMessage() != nil:
		return inbound.Sticker{}
	}
	return inbound.Unsupported{Kind: unsupportedKind(msg)}
}

func unsupportedKind(msg *waE2E.Message) string {
	switch {
	case msg.GetReactionMessage() != nil:
		return "reaction"
	case msg.GetContactMessage() != nil:
		return "contact"
	case msg.GetLocationMessage() != nil:
		return "location"
	case msg.GetProtocolMessage() != nil:
		return "protocol"
	}
	return "unknown"
}
