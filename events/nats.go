package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

const subjectPrefix = "orders."

type NatsPublisher struct {
	nc     *nats.Conn
	logger *zap.Logger
}

func NewNatsPublisher(url string, logger *zap.Logger) (*NatsPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("shop-svc"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	logger.Info("Connected to NATS", zap.String("url", url))
	return &NatsPublisher{nc: nc, logger: logger}, nil
}

func Subject(eventType EventType) string {
	return subjectPrefix + string(eventType)
}

func (p *NatsPublisher) Publish(ctx context.Context, event OrderEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := nats.NewMsg(Subject(event.EventType))
	msg.Data = data
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(msg.Header))

	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish to NATS: %w", err)
	}
	if err := p.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("failed to flush NATS connection: %w", err)
	}

	p.logger.Info("Event published",
		zap.String("trace_id", traceID(ctx)),
		zap.String("event_type", string(event.EventType)),
		zap.String("order_id", event.OrderID),
		zap.String("subject", msg.Subject),
	)
	return nil
}

func (p *NatsPublisher) Close() error {
	if p.nc != nil && !p.nc.IsClosed() {
		if err := p.nc.Drain(); err != nil {
			p.nc.Close()
			return err
		}
		p.logger.Info("NATS connection closed")
	}
	return nil
}
