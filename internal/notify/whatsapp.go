package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/BTreeMap/CaseTrack/internal/store"
	"github.com/mdp/qrterminal/v3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	waLog "go.mau.fi/whatsmeow/util/log"
)

const (
	// DefaultWhatsAppDBPath is the default whatsmeow device database, relative to the state directory.
	DefaultWhatsAppDBPath = "whatsmeow.db"
	// JIDSuffix is the WhatsApp JID suffix for regular users
	JIDSuffix = "s.whatsapp.net"
)

// WhatsAppOpts holds configuration options for the WhatsApp sender.
type WhatsAppOpts struct {
	DBDSN       string // whatsmeow device store connection string
	QRPath      string // path to write the login QR code
	NumericCode bool   // print the pairing code instead of a QR code
}

// WhatsAppOption defines a configuration option for the WhatsApp sender.
type WhatsAppOption func(*WhatsAppOpts)

// WithWhatsAppDBDSN sets the whatsmeow device store connection string.
func WithWhatsAppDBDSN(dsn string) WhatsAppOption {
	return func(o *WhatsAppOpts) { o.DBDSN = dsn }
}

// WithQRCodeOutput writes the login QR code to path instead of stdout.
func WithQRCodeOutput(path string) WhatsAppOption {
	return func(o *WhatsAppOpts) { o.QRPath = path }
}

// WithNumericCode prints the raw pairing code instead of rendering a QR code.
func WithNumericCode() WhatsAppOption {
	return func(o *WhatsAppOpts) { o.NumericCode = true }
}

// WhatsAppSender sends notifications from a linked WhatsApp device.
type WhatsAppSender struct {
	client *whatsmeow.Client
}

// NewWhatsAppSender opens the device store, logging in with a QR code when the device is not
// linked yet, and connects to WhatsApp.
func NewWhatsAppSender(ctx context.Context, opts ...WhatsAppOption) (*WhatsAppSender, error) {
	var cfg WhatsAppOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	dsn := cfg.DBDSN
	if dsn == "" {
		dsn = DefaultWhatsAppDBPath
	}

	driver := store.DetectDSNType(dsn)
	if driver == store.DriverSQLite && !strings.Contains(dsn, "foreign_keys") {
		slog.Warn("NewWhatsAppSender: SQLite device store without foreign keys; whatsmeow recommends '?_foreign_keys=on'",
			"dsn_example", "file:"+dsn+"?_foreign_keys=on")
	}

	container, err := sqlstore.New(ctx, driver, dsn, waLog.Stdout("Database", "INFO", true))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize WhatsApp database store: %w", err)
	}
	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get device from WhatsApp store: %w", err)
	}
	client := whatsmeow.NewClient(device, waLog.Stdout("Client", "INFO", true))

	if client.Store.ID == nil {
		slog.Info("NewWhatsAppSender: login required, starting QR code flow")
		qrChan, _ := client.GetQRChannel(ctx)
		if err := client.Connect(); err != nil {
			return nil, fmt.Errorf("failed to connect to WhatsApp during login: %w", err)
		}
		writer := io.Writer(os.Stdout)
		if cfg.QRPath != "" {
			f, err := os.Create(cfg.QRPath)
			if err != nil {
				return nil, fmt.Errorf("failed to create QR file: %w", err)
			}
			defer f.Close()
			writer = f
		}
		for evt := range qrChan {
			if evt.Event != "code" {
				slog.Info("NewWhatsAppSender: login event", "event", evt.Event)
				continue
			}
			if cfg.NumericCode {
				fmt.Fprintln(writer, evt.Code)
			} else {
				qrterminal.GenerateHalfBlock(evt.Code, qrterminal.L, writer)
			}
		}
	} else if err := client.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to WhatsApp server: %w", err)
	}
	slog.Info("NewWhatsAppSender: connected")
	return &WhatsAppSender{client: client}, nil
}

// SendMessage sends body as a plain text message to the canonical phone number to.
func (s *WhatsAppSender) SendMessage(ctx context.Context, to string, body string) error {
	if s.client == nil || s.client.Store == nil {
		return fmt.Errorf("whatsapp client not initialized")
	}
	if body == "" {
		return fmt.Errorf("message body cannot be empty")
	}
	msg := &waE2E.Message{Conversation: &body}
	if _, err := s.client.SendMessage(ctx, types.NewJID(to, JIDSuffix), msg); err != nil {
		slog.Error("WhatsAppSender.SendMessage failed", "to", to, "error", err)
		return fmt.Errorf("failed to send message to %s: %w", to, err)
	}
	slog.Debug("WhatsAppSender.SendMessage: sent", "to", to)
	return nil
}

// Close disconnects from WhatsApp.
func (s *WhatsAppSender) Close() {
	if s.client != nil {
		s.client.Disconnect()
	}
}
