package messaging_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gameexchange/internal/messaging"
)

type recordingProducer struct {
	messages []kafkago.Message
	err      error
}

func (r *recordingProducer) WriteMessage(_ context.Context, msg kafkago.Message) error {
	if r.err != nil {
		return r.err
	}
	r.messages = append(r.messages, msg)
	return nil
}

func (r *recordingProducer) Close() error { return nil }

func TestPublishWiresTopicKeyAndValue(t *testing.T) {
	producer := &recordingProducer{}
	publisher := messaging.NewKafkaPublisher(producer, zap.NewNop())

	err := publisher.Publish(context.Background(), "offer-accepted", 42)
	require.NoError(t, err)

	require.Len(t, producer.messages, 1)
	msg := producer.messages[0]
	assert.Equal(t, "offer-accepted", msg.Topic)
	assert.Equal(t, "42", string(msg.Key), "key partitions by entity id")
	assert.Equal(t, "42", string(msg.Value), "value is the bare decimal id")
}

func TestPublishAttachesUniqueMessageID(t *testing.T) {
	producer := &recordingProducer{}
	publisher := messaging.NewKafkaPublisher(producer, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, publisher.Publish(ctx, "offer-created", 7))
	require.NoError(t, publisher.Publish(ctx, "offer-created", 7))

	require.Len(t, producer.messages, 2)
	first := headerValue(t, producer.messages[0], messaging.MessageIDHeader)
	second := headerValue(t, producer.messages[1], messaging.MessageIDHeader)
	assert.NotEqual(t, first, second, "each delivery carries its own id")
}

func TestPublishPropagatesProducerError(t *testing.T) {
	producer := &recordingProducer{err: errors.New("broker unreachable")}
	publisher := messaging.NewKafkaPublisher(producer, zap.NewNop())

	err := publisher.Publish(context.Background(), "password-changed", 3)
	assert.Error(t, err)
}

func headerValue(t *testing.T, msg kafkago.Message, key string) string {
	t.Helper()
	for _, h := range msg.Headers {
		if h.Key == key {
			id, err := uuid.Parse(string(h.Value))
			require.NoError(t, err, "message id must be a uuid")
			return id.String()
		}
	}
	t.Fatalf("header %q not found", key)
	return ""
}
