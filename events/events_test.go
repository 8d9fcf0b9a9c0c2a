package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"shop-svc/config"
	"shop-svc/models"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func testOrder() *models.Order {
	return &models.Order{
		ID:          primitive.NewObjectID(),
		User:        primitive.NewObjectID(),
		Items:       []models.OrderItem{{Product: primitive.NewObjectID(), Quantity: 3, Price: 10}},
		TotalAmount: 30,
		Status:      models.OrderStatusPending,
	}
}

func TestNewOrderEvent(t *testing.T) {
	order := testOrder()
	event := NewOrderEvent(OrderCreated, order)

	assert.NotEmpty(t, event.EventID)
	assert.Equal(t, OrderCreated, event.EventType)
	assert.Equal(t, order.ID.Hex(), event.OrderID)
	assert.Equal(t, order.User.Hex(), event.UserID)
	assert.Equal(t, 30.0, event.TotalAmount)
	assert.False(t, event.OccurredAt.IsZero())

	other := NewOrderEvent(OrderCreated, order)
	assert.NotEqual(t, event.EventID, other.EventID)
}

func TestKafkaPublisher_Publish(t *testing.T) {
	logger := zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel))
	producer := mocks.NewSyncProducer(t, nil)
	event := NewOrderEvent(OrderCreated, testOrder())

	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var got OrderEvent
		if err := json.Unmarshal(val, &got); err != nil {
			return err
		}
		if got.EventID != event.EventID || got.EventType != OrderCreated {
			return errors.New("unexpected event payload")
		}
		return nil
	})

	publisher := NewKafkaPublisher(producer, "order_events", logger)
	require.NoError(t, publisher.Publish(context.Background(), event))
	require.NoError(t, publisher.Close())
}

func TestKafkaPublisher_PublishFailure(t *testing.T) {
	logger := zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel))
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	publisher := NewKafkaPublisher(producer, "order_events", logger)
	err := publisher.Publish(context.Background(), NewOrderEvent(OrderStatusUpdated, testOrder()))
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, publisher.Close())
}

func TestSaramaHeaderCarrier(t *testing.T) {
	carrier := make(saramaHeaderCarrier, 0)
	carrier.Set("traceparent", "00-abc-def-01")

	assert.Equal(t, "00-abc-def-01", carrier.Get("traceparent"))
	assert.Equal(t, "", carrier.Get("missing"))
	assert.Equal(t, []string{"traceparent"}, carrier.Keys())
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "orders.order_created", Subject(OrderCreated))
	assert.Equal(t, "orders.order_status_updated", Subject(OrderStatusUpdated))
}

func TestNewPublisher_None(t *testing.T) {
	logger := zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel))

	publisher, err := NewPublisher(config.EventsConfig{Backend: config.EventsNone}, logger)
	require.NoError(t, err)
	assert.IsType(t, NoopPublisher{}, publisher)
	assert.NoError(t, publisher.Publish(context.Background(), NewOrderEvent(OrderCreated, testOrder())))

	_, err = NewPublisher(config.EventsConfig{Backend: "carrier-pigeon"}, logger)
	assert.Error(t, err)
}
