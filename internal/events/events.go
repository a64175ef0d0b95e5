package events

import (
	"context"

	"github.com/mystery-box/client/internal/models"
)

// Event types
const (
	EventPaymentReceived  = "payment_received"
	EventPaymentFailed    = "payment_failed"
	EventPaymentCancelled = "payment_cancelled"
)

// Payload keys
const (
	PayloadInvoiceLink    = "invoice_link"
	PayloadTelegramUserID = "telegram_user_id"
)

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

// Subscriber delivers events to handler in the background until ctx ends.
type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}

// InvoiceStatusOf maps a payment event to the Telegram invoice status.
// ok is false for events unrelated to payments.
func InvoiceStatusOf(event Event) (status string, ok bool) {
	switch event.Type {
	case EventPaymentReceived:
		return models.InvoiceStatusPaid, true
	case EventPaymentFailed:
		return models.InvoiceStatusFailed, true
	case EventPaymentCancelled:
		return models.InvoiceStatusCancelled, true
	}
	return "", false
}

// InvoiceLinkOf returns the invoice link carried by the event, if any.
func InvoiceLinkOf(event Event) string {
	link, _ := event.Payload[PayloadInvoiceLink].(string)
	return link
}
