package bus

import "time"

// Event kinds. Subscribers filter by namespace prefix, e.g. "wa." or "command.".
const (
	KindInbound      = "wa.messages"     // Payload: []inbound.Event
	KindConnected    = "wa.connected"    // Payload: nil
	KindDisconnected = "wa.disconnected" // Payload: nil
	KindLoggedOut    = "wa.logged_out"   // Payload: reason string
	KindPairCode     = "wa.pair_code"    // Payload: QR code string
	KindPaired       = "wa.paired"       // Payload: nil
	KindPairFailed   = "wa.pair_failed"  // Payload: reason string

	KindStatusChanged = "bot.status_changed" // Payload: status.StatusChange
	KindPluginsLoaded = "bot.plugins_loaded" // Payload: plugin.LoadResult
	KindStateFlushed  = "bot.state_flushed"  // Payload: reason string

	KindCommandExecuted = "command.executed" // Payload: dispatch.Outcome

	KindMessageSent       = "message.sent"        // Payload: map[string]string
	KindMessageSendFailed = "message.send_failed" // Payload: map[string]string
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
