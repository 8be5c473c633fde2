// Package outbox delivers the bot's replies through the WhatsApp adapter and
// journals every attempt.
package outbox

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/matheus3301/wppbot/internal/bus"
	"github.com/matheus3301/wppbot/internal/store"
	"go.uber.org/zap"
)

// TextSender is the interface for sending text messages via WhatsApp.
type TextSender interface {
	SendText(ctx context.Context, jid string, text string) (serverMsgID string, err error)
}

// SendError reports a failed delivery.
type SendError struct {
	To  string
	Err error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send to %s: %v", e.To, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// Sender sends texts synchronously. Sends are fire-and-forget from the bot's
// point of view: there is no retry, the outcome is journaled and returned.
type Sender struct {
	db     *store.DB
	sender TextSender
	bus    *bus.Bus
	logger *zap.Logger
}

// NewSender creates a sender. db and b may be nil.
func NewSender(db *store.DB, sender TextSender, b *bus.Bus, logger *zap.Logger) *Sender {
	return &Sender{
		db:     db,
		sender: sender,
		bus:    b,
		logger: logger,
	}
}

// Send delivers text to the conversation to.
func (s *Sender) Send(ctx context.Context, to, text string) error {
	clientMsgID := uuid.NewString()
	if s.db != nil {
		if err := s.db.InsertOutbound(clientMsgID, to, text); err != nil {
			s.logger.Warn("failed to journal outbound", zap.Error(err), zap.String("client_msg_id", clientMsgID))
		}
	}

	serverMsgID, err := s.sender.SendText(ctx, to, text)
	if err != nil {
		s.logger.Error("failed to send message", zap.Error(err), zap.String("to", to), zap.String("client_msg_id", clientMsgID))
		if s.db != nil {
			_ = s.db.MarkOutboundFailed(clientMsgID, err.Error())
		}
		s.emit(bus.KindMessageSendFailed, map[string]string{
			"client_msg_id": clientMsgID,
			"to":            to,
			"error":         err.Error(),
		})
		return &SendError{To: to, Err: err}
	}

	if s.db != nil {
		if err := s.db.MarkOutboundSent(clientMsgID, serverMsgID); err != nil {
			s.logger.Warn("failed to mark sent", zap.Error(err), zap.String("client_msg_id", clientMsgID))
		}
	}
	s.logger.Debug("message sent", zap.String("to", to), zap.String("server_msg_id", serverMsgID))
	s.emit(bus.KindMessageSent, map[string]string{
		"client_msg_id": clientMsgID,
		"to":            to,
		"server_msg_id": serverMsgID,
	})
	return nil
}

func (s *Sender) emit(kind string, payload map[string]string) {
	if s.bus != nil {
		s.bus.Emit(kind, payload)
	}
}
