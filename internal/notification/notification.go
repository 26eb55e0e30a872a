package notification

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindWelcome          Kind = "welcome"
	KindAdminNewUser     Kind = "admin_new_user"
	KindAccountApproved  Kind = "account_approved"
	KindAccountRejected  Kind = "account_rejected"
	KindWorkAssigned     Kind = "work_assigned"
	KindWorkCompleted    Kind = "work_completed"
	KindMaterialLowStock Kind = "material_low_stock"
)

// Message is one queued notification. Rendering and delivery happen downstream.
type Message struct {
	ID        string                 `json:"id"`
	Kind      Kind                   `json:"kind"`
	Recipient string                 `json:"recipient"`
	Subject   string                 `json:"subject"`
	Data      map[string]interface{} `json:"data,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

func NewMessage(kind Kind, recipient, subject string, data map[string]interface{}) Message {
	return Message{
		ID:        uuid.New().String(),
		Kind:      kind,
		Recipient: recipient,
		Subject:   subject,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	}
}

// Notifier accepts a message for later delivery.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Sender delivers a message to its recipient.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogNotifier writes messages to the log. It serves as both Notifier and Sender
// when no outbox is configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, msg Message) error {
	return n.Send(ctx, msg)
}

func (n *LogNotifier) Send(_ context.Context, msg Message) error {
	n.logger.Info("notification",
		"notification_id", msg.ID,
		"kind", msg.Kind,
		"recipient", msg.Recipient,
		"subject", msg.Subject)
	return nil
}
