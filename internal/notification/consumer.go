package notification

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"gameexchange/internal/platform/kafka"
	"gameexchange/internal/platform/observability"
)

// ConsumerService drives the read loop for the email service.
type ConsumerService interface {
	Start(ctx context.Context) error
}

// KafkaConsumerService reads events one at a time per partition and feeds
// them to the handler. Handler errors are logged and never stop the loop.
type KafkaConsumerService struct {
	consumer kafka.Consumer
	handler  MessageHandler
	logger   observability.Logger
}

// NewConsumerService creates the consumer loop with explicit dependencies.
func NewConsumerService(consumer kafka.Consumer, handler MessageHandler, logger observability.Logger) *KafkaConsumerService {
	return &KafkaConsumerService{
		consumer: consumer,
		handler:  handler,
		logger:   logger,
	}
}

func (c *KafkaConsumerService) Start(ctx context.Context) error {
	c.logger.Info("Kafka consumer started. Waiting for messages...")

	for {
		msg, err := c.consumer.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				c.logger.Info("Context done, exiting Kafka read loop.", zap.Error(err))
				break
			}
			c.logger.Error("❌ Error reading from Kafka", zap.Error(err))
			continue
		}

		if err := c.handler.Handle(ctx, *msg); err != nil {
			c.logger.Error("❌ Handler failed; message skipped", zap.Error(err))
			continue
		}
	}

	c.logger.Info("Consumer service finished. Shutting down...")
	return nil
}
