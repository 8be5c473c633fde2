package wa

import (
	"context"
	"errors"
	"fmt"

	"github.com/matheus3301/wppbot/internal/bus"
	"github.com/matheus3301/wppbot/internal/logging"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	wastore "go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"

	_ "github.com/mattn/go-sqlite3"
)

// ErrAlreadyPaired is returned when pairing is requested for a linked device.
var ErrAlreadyPaired = errors.New("device already paired")

// Adapter wraps the whatsmeow client and manages the WhatsApp connection.
type Adapter struct {
	client    *whatsmeow.Client
	container *sqlstore.Container
	bus       *bus.Bus
	logger    *zap.Logger
}

// NewAdapter opens the credential store at dbPath and builds a client
// announced to the phone as deviceName.
func NewAdapter(ctx context.Context, dbPath, deviceName string, b *bus.Bus, logger *zap.Logger) (*Adapter, error) {
	wastore.SetOSInfo(deviceName, [3]uint32{0, 1, 0})

	waLogger := logging.WhatsmeowLogger(logger.Named("whatsmeow"))
	container, err := sqlstore.New(ctx, "sqlite3",
		fmt.Sprintf("file:%s?_foreign_keys=on", dbPath),
		waLogger.Sub("store"),
	)
	if err != nil {
		return nil, fmt.Errorf("open credential store: %w", err)
	}

	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		_ = container.Close()
		return nil, fmt.Errorf("get device: %w", err)
	}

	return &Adapter{
		client:    whatsmeow.NewClient(device, waLogger.Sub("client")),
		container: container,
		bus:       b,
		logger:    logger,
	}, nil
}

// IsLoggedIn reports whether the device store holds credentials.
func (a *Adapter) IsLoggedIn() bool {
	return a.client.Store.ID != nil
}

// OwnJID returns the bot's own account identifier, or "" before pairing.
func (a *Adapter) OwnJID() string {
	if a.client.Store.ID == nil {
		return ""
	}
	return a.client.Store.ID.ToNonAD().String()
}

// Connect opens the WhatsApp connection.
func (a *Adapter) Connect() error {
	a.logger.Info("connecting to WhatsApp")
	return a.client.Connect()
}

// Disconnect closes the connection.
func (a *Adapter) Disconnect() {
	a.logger.Info("disconnecting from WhatsApp")
	a.client.Disconnect()
}

// Close disconnects and releases the credential store.
func (a *Adapter) Close() error {
	a.client.Disconnect()
	return a.container.Close()
}

// RegisterEventHandler adds a handler for whatsmeow events.
func (a *Adapter) RegisterEventHandler(handler whatsmeow.EventHandler) {
	a.client.AddEventHandler(handler)
}

// SendText sends a plain text message to jid and returns the server id.
func (a *Adapter) SendText(ctx context.Context, jid string, text string) (string, error) {
	to, err := types.ParseJID(jid)
	if err != nil {
		return "", fmt.Errorf("parse JID: %w", err)
	}
	if !a.client.IsConnected() {
		return "", errors.New("not connected")
	}
	resp, err := a.client.SendMessage(ctx, to, &waE2E.Message{
		Conversation: proto.String(text),
	})
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	return resp.ID, nil
}
