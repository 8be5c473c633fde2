package wa

import (
	"github.com/matheus3301/wppbot/internal/bus"
	"github.com/matheus3301/wppbot/internal/inbound"
	"github.com/matheus3301/wppbot/internal/status"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"
)

// EventHandler processes whatsmeow events, drives the state machine and
// publishes inbound batches on the bus. It never calls the router: the
// router consumes wa.messages on its own goroutine.
type EventHandler struct {
	bus     *bus.Bus
	machine *status.Machine
	logger  *zap.Logger
}

// NewEventHandler creates a new event handler.
func NewEventHandler(b *bus.Bus, machine *status.Machine, logger *zap.Logger) *EventHandler {
	return &EventHandler{
		bus:     b,
		machine: machine,
		logger:  logger,
	}
}

// Handle is the whatsmeow event handler function.
func (h *EventHandler) Handle(rawEvt any) {
	switch evt := rawEvt.(type) {
	case *events.Message:
		h.handleMessage(evt)
	case *events.Connected:
		h.logger.Info("WhatsApp connected")
		if err := h.machine.Advance(status.Connecting, status.Ready); err != nil {
			h.logger.Warn("unexpected state on connect", zap.Error(err))
		}
		h.bus.Emit(bus.KindConnected, nil)
	case *events.Disconnected:
		h.logger.Warn("WhatsApp disconnected")
		_ = h.machine.Transition(status.Reconnecting)
		h.bus.Emit(bus.KindDisconnected, nil)
	case *events.LoggedOut:
		h.logger.Warn("WhatsApp logged out", zap.String("reason", evt.Reason.String()))
		_ = h.machine.Transition(status.AuthRequired)
		h.bus.Emit(bus.KindLoggedOut, evt.Reason.String())
	}
}

func (h *EventHandler) handleMessage(evt *events.Message) {
	in, ok := ToEvent(evt)
	if !ok {
		return
	}
	h.bus.Emit(bus.KindInbound, []inbound.Event{in})
}
