package worker

import (
	"context"
	"fmt"
	"log/slog"

	"subtrack/internal/amqp"
)

// EventSource is the slice of the AMQP client the consume loop needs.
type EventSource interface {
	ConsumeSubscriptionEvents(ctx context.Context, handler func(*amqp.SubscriptionEventMessage) error) error
	Reconnect(ctx context.Context) error
}

// ConsumeWithRecovery runs the consume loop and dials the broker again when
// it drops. It returns when the context is cancelled or the reconnect itself
// gives up, so a broker restart never permanently kills the consumer.
func ConsumeWithRecovery(ctx context.Context, src EventSource, handler func(*amqp.SubscriptionEventMessage) error) error {
	for {
		err := src.ConsumeSubscriptionEvents(ctx, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.ErrorContext(ctx, "Message consumption stopped, reconnecting", "error", err)

		if rerr := src.Reconnect(ctx); rerr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("reconnect after consume failure: %w", rerr)
		}
	}
}
