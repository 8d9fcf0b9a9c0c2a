package events

import (
	"context"
	"fmt"
	"time"

	"shop-svc/config"
	"shop-svc/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type EventType string

const (
	OrderCreated       EventType = "order_created"
	OrderStatusUpdated EventType = "order_status_updated"
)

type OrderEvent struct {
	EventID        string             `json:"event_id"`
	EventType      EventType          `json:"event_type"`
	OrderID        string             `json:"order_id"`
	UserID         string             `json:"user_id"`
	Status         models.OrderStatus `json:"status"`
	PreviousStatus models.OrderStatus `json:"previous_status,omitempty"`
	TotalAmount    float64            `json:"total_amount"`
	Items          []models.OrderItem `json:"items,omitempty"`
	OccurredAt     time.Time          `json:"occurred_at"`
}

func NewOrderEvent(eventType EventType, order *models.Order) OrderEvent {
	return OrderEvent{
		EventID:     uuid.NewString(),
		EventType:   eventType,
		OrderID:     order.ID.Hex(),
		UserID:      order.User.Hex(),
		Status:      order.Status,
		TotalAmount: order.TotalAmount,
		Items:       order.Items,
		OccurredAt:  time.Now().UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, event OrderEvent) error
	Close() error
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, OrderEvent) error { return nil }
func (NoopPublisher) Close() error                              { return nil }

// NewPublisher builds the publisher selected by EVENTS_BACKEND.
func NewPublisher(cfg config.EventsConfig, logger *zap.Logger) (Publisher, error) {
	switch cfg.Backend {
	case config.EventsKafka:
		producer, err := InitProducer(cfg.KafkaBrokers, logger)
		if err != nil {
			return nil, err
		}
		return NewKafkaPublisher(producer, cfg.KafkaTopic, logger), nil
	case config.EventsNATS:
		return NewNatsPublisher(cfg.NATSURL, logger)
	case config.EventsNone, "":
		logger.Info("Event publishing disabled")
		return NoopPublisher{}, nil
	}
	return nil, fmt.Errorf("unknown events backend %q", cfg.Backend)
}
