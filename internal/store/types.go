package store

// Command run outcomes.
const (
	RunOK       = "ok"
	RunFailed   = "failed"
	RunNotFound = "not_found"
)

// Outbound send states.
const (
	OutboundSending = "sending"
	OutboundSent    = "sent"
	OutboundFailed  = "failed"
)

// CommandRun is one dispatched command.
type CommandRun struct {
	ID           string
	Command      string
	ChatJID      string
	SenderJID    string
	Args         string
	Status       string // ok, failed, not_found
	ErrorMessage string
	DurationMs   int64
	StartedAt    int64 // unix millis
}

// OutboundEntry is one text sent by the bot.
type OutboundEntry struct {
	ID           int64
	ClientMsgID  string
	ChatJID      string
	Body         string
	Status       string // sending, sent, failed
	ErrorMessage string
	ServerMsgID  string
	CreatedAt    int64
}
