package inbound

// MessageType classifies the payload of an inbound message.
type MessageType string

const (
	TypeText         MessageType = "text"
	TypeExtendedText MessageType = "extended_text"
	TypeImage        MessageType = "image"
	TypeVideo        MessageType = "video"
	TypeDocument     MessageType = "document"
	TypeAudio        MessageType = "audio"
	TypeSticker      MessageType = "sticker"
	TypeUnknown      MessageType = "unknown"
)

// Payload is the content variant carried by an inbound event. The set of
// variants is closed; Normalize switches on it exhaustively.
type Payload interface {
	payload()
}

// Text is a plain conversation message.
type Text struct{ Body string }

// ExtendedText is a text message with link previews, quotes or mentions.
type ExtendedText struct{ Body string }

// Image is an image with an optional caption.
type Image struct{ Caption string }

// Video is a video with an optional caption.
type Video struct{ Caption string }

// Document is a file attachment with an optional caption.
type Document struct{ Caption string }

// Audio is a voice note or audio file. It never carries text.
type Audio struct{}

// Sticker never carries text.
type Sticker struct{}

// Unsupported is any payload kind the router does not classify
// (reactions, polls, locations, contacts, protocol messages).
type Unsupported struct{ Kind string }

func (Text) payload()         {}
func (ExtendedText) payload() {}
func (Image) payload()        {}
func (Video) payload()        {}
func (Document) payload()     {}
func (Audio) payload()        {}
func (Sticker) payload()      {}
func (Unsupported) payload()  {}

// Classify returns the message type and text of a payload.
func Classify(p Payload) (MessageType, string) {
	switch v := p.(type) {
	case Text:
		return TypeText, v.Body
	case ExtendedText:
		return TypeExtendedText, v.Body
	case Image:
		return TypeImage, v.Caption
	case Video:
		return TypeVideo, v.Caption
	case Document:
		return TypeDocument, v.Caption
	case Audio:
		return TypeAudio, ""
	case Sticker:
		return TypeSticker, ""
	default:
		return TypeUnknown, ""
	}
}
