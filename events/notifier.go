package events

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Handler processes one decoded order event.
type Handler func(ctx context.Context, event OrderEvent) error

// Notifier turns order events into customer notifications. Delivery is a structured log
// entry; there is no mail transport.
type Notifier struct {
	logger *zap.Logger
}

func NewNotifier(logger *zap.Logger) *Notifier {
	return &Notifier{logger: logger}
}

func (n *Notifier) Handle(ctx context.Context, event OrderEvent) error {
	ctx, span := otel.Tracer("shop-svc").Start(ctx, "ProcessNotification")
	defer span.End()

	span.SetAttributes(
		attribute.String("event.type", string(event.EventType)),
		attribute.String("order.id", event.OrderID),
	)

	var subject, message string
	switch event.EventType {
	case OrderCreated:
		subject = "Order Confirmation"
		message = fmt.Sprintf("Your order #%s has been placed successfully. Total: %.2f", event.OrderID, event.TotalAmount)
	case OrderStatusUpdated:
		subject = "Order Update"
		message = fmt.Sprintf("Your order #%s is now %s", event.OrderID, event.Status)
	default:
		n.logger.Debug("Unknown event type", zap.String("event_type", string(event.EventType)))
		return nil
	}

	n.logger.Info("Order notification sent",
		zap.String("trace_id", traceID(ctx)),
		zap.String("event_id", event.EventID),
		zap.String("user_id", event.UserID),
		zap.String("subject", subject),
		zap.String("message", message),
	)
	return nil
}

// withRetry retries handler with a linearly growing backoff.
func withRetry(ctx context.Context, handler Handler, event OrderEvent, maxRetries int, logger *zap.Logger) error {
	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		err := handler(ctx, event)
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt == maxRetries {
			break
		}

		backoff := time.Duration(attempt) * retryBackoff
		logger.Warn("Retrying event handling",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", maxRetries, lastErr)
}

var retryBackoff = time.Second
