package notify

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/sirupsen/logrus"
	"github.com/skip2/go-qrcode"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"
)

// Status represents the WhatsApp connection status
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusPairing      Status = "pairing"
)

// ErrNotConnected is returned by SendText before the session is up.
var ErrNotConnected = errors.New("whatsapp is not connected")

// WhatsAppClient is a linked-device WhatsApp session whose credentials live
// in Postgres.
type WhatsAppClient struct {
	client      *whatsmeow.Client
	container   *sqlstore.Container
	deviceStore *store.Device
	status      Status
	qrCode      string // base64 PNG
	mu          sync.RWMutex
	logger      *logrus.Logger
}

// NewWhatsAppClient opens the device store at storeURL.
func NewWhatsAppClient(ctx context.Context, storeURL string, logger *logrus.Logger) (*WhatsAppClient, error) {
	store.SetOSInfo("PathLab", [3]uint32{1, 0, 0})

	container, err := sqlstore.New(ctx, "pgx", storeURL, NewWALogger(logger, "store"))
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlstore: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	return &WhatsAppClient{
		container:   container,
		deviceStore: deviceStore,
		status:      StatusDisconnected,
		logger:      logger,
	}, nil
}

// Paired reports whether the device store holds credentials.
func (c *WhatsAppClient) Paired() bool {
	return c.deviceStore.ID != nil
}

// Status returns the current connection status
func (c *WhatsAppClient) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// QRCode returns the pending pairing code as a base64 PNG, or "".
func (c *WhatsAppClient) QRCode() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.qrCode
}

func (c *WhatsAppClient) setStatus(status Status) {
	c.mu.Lock()
	c.status = status
	c.mu.Unlock()
}

func (c *WhatsAppClient) setQRCode(qrCode string) {
	c.mu.Lock()
	c.qrCode = qrCode
	c.mu.Unlock()
}

// Connect starts the session. An unpaired device enters pairing mode; the
// QR code is available from QRCode and, if onCode is non-nil, handed to it
// as the raw pairing string.
func (c *WhatsAppClient) Connect(ctx context.Context, onCode func(code string)) error {
	c.setStatus(StatusConnecting)

	c.client = whatsmeow.NewClient(c.deviceStore, NewWALogger(c.logger, "client"))
	c.client.AddEventHandler(c.handleEvent)
	c.client.EnableAutoReconnect = true

	if c.client.Store.ID != nil {
		if err := c.client.Connect(); err != nil {
			c.setStatus(StatusDisconnected)
			return fmt.Errorf("failed to connect: %w", err)
		}
		c.setStatus(StatusConnected)
		return nil
	}

	// the QR channel must be requested before connecting
	c.setStatus(StatusPairing)
	qrChan, err := c.client.GetQRChannel(ctx)
	if err != nil {
		c.setStatus(StatusDisconnected)
		return fmt.Errorf("failed to get QR channel: %w", err)
	}

	if err := c.client.Connect(); err != nil {
		c.setStatus(StatusDisconnected)
		return fmt.Errorf("failed to connect: %w", err)
	}

	go func() {
		for evt := range qrChan {
			c.logger.WithField("event", evt.Event).Debug("WhatsApp QR event")
			switch evt.Event {
			case "code":
				png, err := qrcode.Encode(evt.Code, qrcode.Medium, 256)
				if err != nil {
					c.logger.WithError(err).Warn("Failed to generate QR code")
					continue
				}
				c.setQRCode(base64.StdEncoding.EncodeToString(png))
				if onCode != nil {
					onCode(evt.Code)
				}
			case "success":
				c.setQRCode("")
				c.setStatus(StatusConnected)
				c.logger.Info("WhatsApp pairing successful")
			case "timeout":
				c.setQRCode("")
				c.setStatus(StatusDisconnected)
				c.logger.Warn("WhatsApp QR code timeout")
			case "error":
				c.setQRCode("")
				c.setStatus(StatusDisconnected)
				c.logger.WithError(evt.Error).Error("WhatsApp pairing error")
			}
		}
	}()

	return nil
}

// SendText implements Sender.
func (c *WhatsAppClient) SendText(ctx context.Context, to types.JID, text string) error {
	if c.client == nil || c.Status() != StatusConnected {
		return ErrNotConnected
	}
	_, err := c.client.SendMessage(ctx, to, &waE2E.Message{
		Conversation: proto.String(text),
	})
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// Disconnect cleanly disconnects the WhatsApp client
func (c *WhatsAppClient) Disconnect() {
	if c.client != nil {
		c.client.Disconnect()
	}
	c.setStatus(StatusDisconnected)
	c.setQRCode("")
}

// Logout unlinks the device and starts over with a fresh device store.
func (c *WhatsAppClient) Logout(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	if err := c.client.Logout(ctx); err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}
	c.setStatus(StatusDisconnected)
	c.setQRCode("")

	deviceStore, err := c.container.GetFirstDevice(ctx)
	if err != nil {
		return fmt.Errorf("failed to get new device: %w", err)
	}
	c.deviceStore = deviceStore
	return nil
}

func (c *WhatsAppClient) handleEvent(evt interface{}) {
	switch evt.(type) {
	case *events.Connected:
		c.setStatus(StatusConnected)
		c.logger.Info("WhatsApp connected")
	case *events.Disconnected:
		c.setStatus(StatusDisconnected)
		c.logger.Warn("WhatsApp disconnected")
	case *events.LoggedOut:
		c.setStatus(StatusDisconnected)
		c.logger.Warn("WhatsApp logged out")
	}
}
