package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/maintenance-management/internal/core/events"
	"github.com/frahmantamala/maintenance-management/internal/user"
)

type Recipients interface {
	GetByID(ctx context.Context, id int64) (*user.User, error)
}

// Dispatcher turns domain events into queued messages. Its handlers never return
// an error: a failed notification is logged and dropped.
type Dispatcher struct {
	notifier   Notifier
	recipients Recipients
	adminEmail string
	logger     *slog.Logger
}

func NewDispatcher(notifier Notifier, recipients Recipients, adminEmail string, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		notifier:   notifier,
		recipients: recipients,
		adminEmail: adminEmail,
		logger:     logger,
	}
}

func (d *Dispatcher) Register(bus *events.EventBus) {
	bus.Subscribe(events.EventTypeUserRegistered, d.handle)
	bus.Subscribe(events.EventTypeUserApproved, d.handle)
	bus.Subscribe(events.EventTypeUserRejected, d.handle)
	bus.Subscribe(events.EventTypeWorkItemAssigned, d.handle)
	bus.Subscribe(events.EventTypeWorkItemCompleted, d.handle)
	bus.Subscribe(events.EventTypeMaterialLowStock, d.handle)
}

func (d *Dispatcher) handle(ctx context.Context, event events.Event) error {
	msgs, err := d.messagesFor(ctx, event)
	if err != nil {
		d.logger.Warn("notification skipped",
			"error", err,
			"event_type", event.EventType(),
			"event_id", event.EventID())
		return nil
	}
	for _, msg := range msgs {
		d.Notify(ctx, msg)
	}
	return nil
}

// Notify hands msg to the notifier and logs a failure instead of returning it.
func (d *Dispatcher) Notify(ctx context.Context, msg Message) {
	if msg.Recipient == "" {
		d.logger.Debug("notification without recipient dropped", "kind", msg.Kind)
		return
	}
	if err := d.notifier.Notify(ctx, msg); err != nil {
		d.logger.Error("failed to queue notification",
			"error", err,
			"kind", msg.Kind,
			"recipient", msg.Recipient)
	}
}

func (d *Dispatcher) messagesFor(ctx context.Context, event events.Event) ([]Message, error) {
	switch e := event.(type) {
	case *events.UserRegisteredEvent:
		return []Message{
			NewMessage(KindWelcome, e.Email, "Your account is awaiting approval", map[string]interface{}{"name": e.Name}),
			NewMessage(KindAdminNewUser, d.adminEmail, "New account awaiting approval", map[string]interface{}{
				"user_id": e.UserID, "email": e.Email, "name": e.Name,
			}),
		}, nil

	case *events.UserApprovedEvent:
		return []Message{
			NewMessage(KindAccountApproved, e.Email, "Your account has been approved", map[string]interface{}{
				"name": e.Name, "role": e.Role,
			}),
		}, nil

	case *events.UserRejectedEvent:
		return []Message{
			NewMessage(KindAccountRejected, e.Email, "Your registration has been rejected", map[string]interface{}{
				"name": e.Name, "reason": e.Reason,
			}),
		}, nil

	case *events.WorkItemAssignedEvent:
		to, err := d.recipients.GetByID(ctx, e.AssigneeID)
		if err != nil {
			return nil, fmt.Errorf("resolve assignee %d: %w", e.AssigneeID, err)
		}
		return []Message{
			NewMessage(KindWorkAssigned, to.Email, fmt.Sprintf("New %s assigned: %s", e.Kind, e.Title), map[string]interface{}{
				"kind": e.Kind, "item_id": e.ItemID, "title": e.Title, "assigned_by": e.AssignedBy,
			}),
		}, nil

	case *events.WorkItemCompletedEvent:
		to, err := d.recipients.GetByID(ctx, e.CreatorID)
		if err != nil {
			return nil, fmt.Errorf("resolve creator %d: %w", e.CreatorID, err)
		}
		return []Message{
			NewMessage(KindWorkCompleted, to.Email, fmt.Sprintf("Completed: %s", e.Title), map[string]interface{}{
				"kind": e.Kind, "item_id": e.ItemID, "title": e.Title, "completed_by": e.CompletedBy, "completed_at": e.CompletedAt,
			}),
		}, nil

	case *events.MaterialLowStockEvent:
		return []Message{
			NewMessage(KindMaterialLowStock, d.adminEmail, fmt.Sprintf("Low stock: %s", e.Name), map[string]interface{}{
				"material_id": e.MaterialID, "name": e.Name, "unit": e.Unit,
				"current_stock": e.CurrentStock, "min_stock": e.MinStock,
			}),
		}, nil
	}
	return nil, fmt.Errorf("unsupported event %T", event)
}
