// Package messaging carries the event bus contract between the exchange
// service and the email service. Every domain transition publishes exactly
// one message: topic names the action, the key is the entity id (keeping
// events about the same offer or user on one partition), and the value is
// the bare UTF-8 decimal id. A message-id header rides along so consumers
// can drop redeliveries; it is additive and never part of the contract.
package messaging

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"gameexchange/internal/platform/kafka"
)

// MessageIDHeader is the idempotency header attached to every message.
const MessageIDHeader = "message-id"

// Publisher emits one domain event. Implementations must be safe for
// concurrent use.
type Publisher interface {
	Publish(ctx context.Context, topic string, entityID int64) error
}

// KafkaPublisher writes events through the platform producer.
type KafkaPublisher struct {
	producer kafka.Producer
	logger   *zap.Logger
}

// NewKafkaPublisher wraps a producer. The producer must have no fixed
// topic; the topic travels on each message.
func NewKafkaPublisher(producer kafka.Producer, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, logger: logger}
}

func (p *KafkaPublisher) Publish(ctx context.Context, topic string, entityID int64) error {
	id := strconv.FormatInt(entityID, 10)
	msg := kafkago.Message{
		Topic: topic,
		Key:   []byte(id),
		Value: []byte(id),
		Headers: []kafkago.Header{
			{Key: MessageIDHeader, Value: []byte(uuid.NewString())},
		},
	}
	if err := p.producer.WriteMessage(ctx, msg); err != nil {
		p.logger.Error("failed to publish event",
			zap.String("topic", topic),
			zap.String("entity_id", id),
			zap.Error(err),
		)
		return err
	}
	p.logger.Info("📤 published event", zap.String("topic", topic), zap.String("entity_id", id))
	return nil
}

// Capture is a Publisher that records messages for assertions in tests.
type Capture struct {
	Messages []CapturedMessage
	Err      error
}

// CapturedMessage is one recorded publish call.
type CapturedMessage struct {
	Topic    string
	EntityID int64
}

func (c *Capture) Publish(_ context.Context, topic string, entityID int64) error {
	if c.Err != nil {
		return c.Err
	}
	c.Messages = append(c.Messages, CapturedMessage{Topic: topic, EntityID: entityID})
	return nil
}

// ByTopic returns the recorded messages for one topic.
func (c *Capture) ByTopic(topic string) []CapturedMessage {
	var out []CapturedMessage
	for _, m := range c.Messages {
		if m.Topic == topic {
			out = append(out, m)
		}
	}
	return out
}
