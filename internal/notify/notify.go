// Package notify delivers outbound chat messages. The engine produces
// (recipient, content) pairs; implementations here carry them to WhatsApp or,
// for local runs, to stdout.
package notify

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/jilsnshah/alignflow/internal/config"
	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Notifier sends one message to one recipient. Fire-and-forget from the
// workflow's perspective; failures are logged and reported, never retried
// here.
type Notifier interface {
	Send(ctx context.Context, recipientID, content string) error
}

// WhatsApp sends messages through the Twilio WhatsApp API.
type WhatsApp struct {
	client *twilio.RestClient
	from   string
}

// NewWhatsApp builds a Twilio-backed notifier.
func NewWhatsApp(cfg config.WhatsAppConfig) (*WhatsApp, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("notify: twilio account sid and auth token are required")
	}
	if cfg.FromNumber == "" {
		return nil, fmt.Errorf("notify: from number is required")
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &WhatsApp{client: client, from: Address(cfg.FromNumber)}, nil
}

// Send delivers one WhatsApp message.
func (w *WhatsApp) Send(ctx context.Context, recipientID, content string) error {
	params := &twilioapi.CreateMessageParams{}
	params.SetTo(Address(recipientID))
	params.SetFrom(w.from)
	params.SetBody(content)

	if _, err := w.client.Api.CreateMessage(params); err != nil {
		return fmt.Errorf("notify: send to %s: %w", recipientID, err)
	}
	return nil
}

// Address normalizes a recipient identifier to the Twilio WhatsApp form.
func Address(id string) string {
	if strings.HasPrefix(id, "whatsapp:") {
		return id
	}
	return "whatsapp:" + id
}

// Console logs messages instead of sending them, for the simulator and
// development runs without Twilio credentials.
type Console struct{}

func (Console) Send(ctx context.Context, recipientID, content string) error {
	log.Printf("notify: [to %s] %s", recipientID, content)
	return nil
}
