package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"shop-svc/config"

	"github.com/IBM/sarama"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

const maxHandleRetries = 3

func InitConsumer(brokers []string, logger *zap.Logger) (sarama.Consumer, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Consumer.Return.Errors = true
	saramaCfg.Consumer.Retry.Backoff = 1 * time.Second

	consumer, err := sarama.NewConsumer(brokers, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer: %w", err)
	}

	logger.Info("Kafka consumer initialized", zap.Strings("brokers", brokers))
	return consumer, nil
}

// ConsumeKafka feeds every partition of topic, from the newest offset, to handler until ctx
// is done.
func ConsumeKafka(ctx context.Context, consumer sarama.Consumer, topic string, handler Handler, logger *zap.Logger) error {
	partitions, err := consumer.Partitions(topic)
	if err != nil {
		return fmt.Errorf("failed to list partitions: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for _, partition := range partitions {
		pc, err := consumer.ConsumePartition(topic, partition, sarama.OffsetNewest)
		if err != nil {
			// Stop the partitions already started before reporting.
			cancel()
			wg.Wait()
			return fmt.Errorf("failed to consume partition %d: %w", partition, err)
		}

		wg.Add(1)
		go func(pc sarama.PartitionConsumer) {
			defer wg.Done()
			defer pc.Close()

			for {
				select {
				case message, ok := <-pc.Messages():
					if !ok {
						return
					}
					if err := handleKafkaMessage(ctx, message, handler, logger); err != nil {
						logger.Error("Failed to handle message after retries",
							zap.Int32("partition", message.Partition),
							zap.Int64("offset", message.Offset),
							zap.Error(err),
						)
					}
				case err, ok := <-pc.Errors():
					if !ok {
						return
					}
					logger.Error("Kafka consumer error", zap.Error(err))
				case <-ctx.Done():
					return
				}
			}
		}(pc)
	}

	logger.Info("Kafka consumer started", zap.String("topic", topic), zap.Int("partitions", len(partitions)))
	wg.Wait()
	return nil
}

func handleKafkaMessage(ctx context.Context, message *sarama.ConsumerMessage, handler Handler, logger *zap.Logger) error {
	ctx = otel.GetTextMapPropagator().Extract(ctx, saramaConsumerCarrier(message.Headers))

	var event OrderEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return withRetry(ctx, handler, event, maxHandleRetries, logger)
}

// SubscribeNATS delivers every orders.* event to handler until the subscription is drained.
func SubscribeNATS(nc *nats.Conn, handler Handler, logger *zap.Logger) (*nats.Subscription, error) {
	sub, err := nc.Subscribe(subjectPrefix+">", func(msg *nats.Msg) {
		ctx := context.Background()
		if msg.Header != nil {
			ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(msg.Header))
		}

		var event OrderEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			logger.Error("Failed to unmarshal event", zap.String("subject", msg.Subject), zap.Error(err))
			return
		}
		if err := withRetry(ctx, handler, event, maxHandleRetries, logger); err != nil {
			logger.Error("Failed to handle message after retries", zap.String("subject", msg.Subject), zap.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to NATS: %w", err)
	}

	logger.Info("NATS subscription started", zap.String("subject", sub.Subject))
	return sub, nil
}

// saramaConsumerCarrier reads trace context from consumed Kafka record headers.
type saramaConsumerCarrier []*sarama.RecordHeader

func (c saramaConsumerCarrier) Get(key string) string {
	for _, h := range c {
		if string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c saramaConsumerCarrier) Set(string, string) {}

func (c saramaConsumerCarrier) Keys() []string {
	keys := make([]string, len(c))
	for i, h := range c {
		keys[i] = string(h.Key)
	}
	return keys
}

// StartNotifier runs handler against the configured backend in the background. The returned
// stop function blocks until the consumer has exited.
func StartNotifier(ctx context.Context, cfg config.EventsConfig, publisher Publisher, handler Handler, logger *zap.Logger) (func(), error) {
	switch cfg.Backend {
	case config.EventsKafka:
		consumer, err := InitConsumer(cfg.KafkaBrokers, logger)
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := ConsumeKafka(ctx, consumer, cfg.KafkaTopic, handler, logger); err != nil {
				logger.Error("Kafka consumer stopped", zap.Error(err))
			}
		}()
		return func() {
			cancel()
			<-done
			if err := consumer.Close(); err != nil {
				logger.Error("Failed to close Kafka consumer", zap.Error(err))
			}
		}, nil
	case config.EventsNATS:
		np, ok := publisher.(*NatsPublisher)
		if !ok {
			return nil, fmt.Errorf("notifier requires a NATS publisher, got %T", publisher)
		}
		sub, err := SubscribeNATS(np.nc, handler, logger)
		if err != nil {
			return nil, err
		}
		return func() {
			if err := sub.Unsubscribe(); err != nil {
				logger.Error("Failed to unsubscribe", zap.Error(err))
			}
		}, nil
	}
	logger.Info("Notifier disabled: no events backend")
	return func() {}, nil
}
