package notification

import (
	"context"
	"log/slog"
	"time"
)

const DefaultPollTimeout = 5 * time.Second

// Relay moves messages from the outbox to a Sender.
type Relay struct {
	outbox  *RedisOutbox
	sender  Sender
	timeout time.Duration
	logger  *slog.Logger
}

func NewRelay(outbox *RedisOutbox, sender Sender, pollTimeout time.Duration, logger *slog.Logger) *Relay {
	if pollTimeout <= 0 {
		pollTimeout = DefaultPollTimeout
	}
	return &Relay{outbox: outbox, sender: sender, timeout: pollTimeout, logger: logger}
}

// Run relays until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	r.logger.Info("notification relay started", "poll_timeout", r.timeout)
	for {
		if _, err := r.Step(ctx); err != nil {
			if ctx.Err() != nil {
				r.logger.Info("notification relay stopped")
				return nil
			}
			r.logger.Error("notification relay step failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
		}
		if ctx.Err() != nil {
			r.logger.Info("notification relay stopped")
			return nil
		}
	}
}

// Step relays at most one message and reports whether one was handled.
// A message the sender refuses is logged and dropped.
func (r *Relay) Step(ctx context.Context) (bool, error) {
	msg, err := r.outbox.Pop(ctx, r.timeout)
	if err != nil {
		return false, err
	}
	if msg == nil {
		return false, nil
	}

	if err := r.sender.Send(ctx, *msg); err != nil {
		r.logger.Error("failed to deliver notification",
			"error", err,
			"notification_id", msg.ID,
			"kind", msg.Kind,
			"recipient", msg.Recipient)
	}
	return true, nil
}
