package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/frahmantamala/maintenance-management/internal/core/events"
	"github.com/spf13/cobra"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Event management commands",
	Long:  `Manage events: publish domain events through the configured notification pipeline`,
}

var publishEventCmd = &cobra.Command{
	Use:       "publish [event-type]",
	Short:     "Publish a domain event",
	Long:      `Publish a domain event to the event bus, with the notification dispatcher subscribed, for testing and debugging`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: publishableEvents,
	Run: func(cmd *cobra.Command, args []string) {
		if err := publishEvent(args[0]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	},
}

var publishableEvents = []string{
	events.EventTypeUserRegistered,
	events.EventTypeUserApproved,
	events.EventTypeUserRejected,
	events.EventTypeWorkItemAssigned,
	events.EventTypeWorkItemCompleted,
	events.EventTypeMaterialLowStock,
}

var (
	eventID      int64
	eventUserID  int64
	eventEmail   string
	eventName    string
	eventDetail  string
	eventKind    string
	eventCurrent int64
	eventMinimum int64
)

func buildEvent(eventType string) (events.Event, error) {
	switch eventType {
	case events.EventTypeUserRegistered:
		return events.NewUserRegisteredEvent(eventUserID, eventEmail, eventName), nil
	case events.EventTypeUserApproved:
		return events.NewUserApprovedEvent(eventUserID, eventEmail, eventName, eventDetail), nil
	case events.EventTypeUserRejected:
		return events.NewUserRejectedEvent(eventUserID, eventEmail, eventName, eventDetail), nil
	case events.EventTypeWorkItemAssigned:
		return events.NewWorkItemAssignedEvent(eventKind, eventID, eventName, eventUserID, eventUserID), nil
	case events.EventTypeWorkItemCompleted:
		return events.NewWorkItemCompletedEvent(eventKind, eventID, eventName, eventUserID, eventUserID, time.Now()), nil
	case events.EventTypeMaterialLowStock:
		return events.NewMaterialLowStockEvent(eventID, eventName, eventDetail, eventCurrent, eventMinimum), nil
	}
	return nil, fmt.Errorf("unknown event type %q, expected one of %v", eventType, publishableEvents)
}

func publishEvent(eventType string) error {
	event, err := buildEvent(eventType)
	if err != nil {
		return err
	}

	ctx := context.Background()
	deps, err := initializeDependencies(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer closeWorker(deps)

	log := deps.Logger
	log.Info("publishing event", "event_type", event.EventType(), "event_id", event.EventID())

	if err := deps.Bus.PublishSync(ctx, event); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	log.Info("event published", "event_id", event.EventID(), "payload", event.Payload())
	return nil
}

func init() {
	f := publishEventCmd.Flags()
	f.Int64Var(&eventID, "id", 1, "Work item or material id")
	f.Int64Var(&eventUserID, "user", 1, "User id (subject, assignee or creator)")
	f.StringVar(&eventEmail, "email", "user@example.com", "User email")
	f.StringVar(&eventName, "name", "test", "User name, work item title or material name")
	f.StringVar(&eventDetail, "detail", "", "Role, rejection reason or material unit")
	f.StringVar(&eventKind, "kind", "task", "Work item kind: task or defect")
	f.Int64Var(&eventCurrent, "current", 0, "Current stock")
	f.Int64Var(&eventMinimum, "min", 1, "Minimum stock")

	eventCmd.AddCommand(publishEventCmd)

	rootCmd.AddCommand(eventCmd)
}
