package notification_test

import (
	"context"
	"errors"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gameexchange/internal/config"
	"gameexchange/internal/domain"
	"gameexchange/internal/mail"
	"gameexchange/internal/messaging"
	"gameexchange/internal/notification"
	"gameexchange/internal/storage/memory"
)

const from = "exchange@example.com"

type fakeProducer struct {
	messages []kafkago.Message
	err      error
}

func (f *fakeProducer) WriteMessage(_ context.Context, msg kafkago.Message) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeProducer) Close() error { return nil }

func owner(id int64) *int64 { return &id }

func seededStore(t *testing.T) *memory.Engine {
	t.Helper()
	store := memory.New()
	store.SeedUser(domain.User{ID: 10, Username: "alice", Email: "alice@example.com"})
	store.SeedUser(domain.User{ID: 20, Username: "bob", Email: "bob@example.com"})
	store.SeedGame(domain.Game{ID: 1, Name: "Chrono Trigger", Publisher: "Square", ReleaseYear: 1995, ReleaseSystem: "SNES", Condition: "Good", PreviousOwner: owner(10)})
	store.SeedGame(domain.Game{ID: 2, Name: "Earthbound", Publisher: "Nintendo", ReleaseYear: 1994, ReleaseSystem: "SNES", Condition: "Fair", PreviousOwner: owner(20)})

	offer := &domain.Offer{GameRequested: 1, GameOffered: 2, RequestedOwner: 10, OfferedOwner: 20}
	require.NoError(t, store.CreateOffer(context.Background(), offer))
	return store
}

func newHandler(t *testing.T, store *memory.Engine, sender mail.Sender, dlq *fakeProducer) *notification.EmailHandler {
	t.Helper()
	formatter := notification.NewFormatter(store, from)
	return notification.NewEmailHandler(formatter, sender, dlq, zap.NewNop())
}

func event(topic, payload, messageID string) kafkago.Message {
	msg := kafkago.Message{Topic: topic, Key: []byte(payload), Value: []byte(payload)}
	if messageID != "" {
		msg.Headers = []kafkago.Header{{Key: messaging.MessageIDHeader, Value: []byte(messageID)}}
	}
	return msg
}

func TestOfferAcceptedEmailsBothOwners(t *testing.T) {
	store := seededStore(t)
	sender := &mail.Capture{}
	dlq := &fakeProducer{}
	handler := newHandler(t, store, sender, dlq)

	err := handler.Handle(context.Background(), event(config.OfferAcceptedTopic, "1", "m1"))
	require.NoError(t, err)

	require.Len(t, sender.Messages, 1)
	sent := sender.Messages[0]
	assert.Equal(t, from, sent.From)
	assert.ElementsMatch(t, []string{"alice@example.com", "bob@example.com"}, sent.To)
	assert.Equal(t, "Offer Accepted", sent.Subject)
	assert.Contains(t, sent.Body, "Chrono Trigger")
	assert.Contains(t, sent.Body, "Earthbound")
	assert.Contains(t, sent.Body, "swapped")
	assert.Empty(t, dlq.messages)
}

func TestOfferCreatedAndRejectedBodies(t *testing.T) {
	store := seededStore(t)
	sender := &mail.Capture{}
	handler := newHandler(t, store, sender, &fakeProducer{})
	ctx := context.Background()

	require.NoError(t, handler.Handle(ctx, event(config.OfferCreatedTopic, "1", "m1")))
	require.NoError(t, handler.Handle(ctx, event(config.OfferRejectedTopic, "1", "m2")))

	require.Len(t, sender.Messages, 2)
	assert.Equal(t, "Offer Created", sender.Messages[0].Subject)
	assert.Contains(t, sender.Messages[0].Body, "has been offered in exchange for")
	assert.Equal(t, "Offer Rejected", sender.Messages[1].Subject)
	assert.Contains(t, sender.Messages[1].Body, "stay the same")
}

func TestPasswordChangedEmailsAffectedUser(t *testing.T) {
	store := seededStore(t)
	sender := &mail.Capture{}
	handler := newHandler(t, store, sender, &fakeProducer{})

	err := handler.Handle(context.Background(), event(config.PasswordChangedTopic, "20", "m1"))
	require.NoError(t, err)

	require.Len(t, sender.Messages, 1)
	assert.Equal(t, []string{"bob@example.com"}, sender.Messages[0].To)
	assert.Equal(t, "Password Updated", sender.Messages[0].Subject)
	assert.Contains(t, sender.Messages[0].Body, config.SupportAddress)
}

func TestUnrecognizedTopicGoesToSupport(t *testing.T) {
	store := seededStore(t)
	sender := &mail.Capture{}
	dlq := &fakeProducer{}
	handler := newHandler(t, store, sender, dlq)

	err := handler.Handle(context.Background(), event("mystery-topic", "whatever", "m1"))
	require.NoError(t, err, "unknown topics must never crash the consumer")

	require.Len(t, sender.Messages, 1)
	assert.Equal(t, []string{config.SupportAddress}, sender.Messages[0].To)
	assert.Empty(t, dlq.messages, "the fallback notice is a delivery, not a dead letter")
}

func TestMissingOfferDeadLetters(t *testing.T) {
	store := seededStore(t)
	sender := &mail.Capture{}
	dlq := &fakeProducer{}
	handler := newHandler(t, store, sender, dlq)

	err := handler.Handle(context.Background(), event(config.OfferAcceptedTopic, "404", "m1"))
	require.NoError(t, err)

	assert.Empty(t, sender.Messages)
	require.Len(t, dlq.messages, 1)
	dead := dlq.messages[0]
	assert.Equal(t, config.DeadLetterTopic, dead.Topic)
	assert.Equal(t, "404", string(dead.Value))
	assert.Equal(t, config.OfferAcceptedTopic, headerValue(dead, "original-topic"))
}

func TestMalformedPayloadDeadLetters(t *testing.T) {
	store := seededStore(t)
	sender := &mail.Capture{}
	dlq := &fakeProducer{}
	handler := newHandler(t, store, sender, dlq)

	err := handler.Handle(context.Background(), event(config.OfferCreatedTopic, "not-a-number", "m1"))
	require.NoError(t, err)

	assert.Empty(t, sender.Messages)
	require.Len(t, dlq.messages, 1)
	assert.Equal(t, "malformed payload", headerValue(dlq.messages[0], "failure-reason"))
}

func TestRedeliveredMessageSkipped(t *testing.T) {
	store := seededStore(t)
	sender := &mail.Capture{}
	handler := newHandler(t, store, sender, &fakeProducer{})
	ctx := context.Background()

	msg := event(config.OfferCreatedTopic, "1", "same-id")
	require.NoError(t, handler.Handle(ctx, msg))
	require.NoError(t, handler.Handle(ctx, msg))

	assert.Len(t, sender.Messages, 1, "a redelivered message-id sends no second email")
}

func TestFailedHandleStaysEligibleForRedelivery(t *testing.T) {
	store := seededStore(t)
	sender := &mail.Capture{}
	dlq := &fakeProducer{err: errors.New("dlq broker unreachable")}
	handler := newHandler(t, store, sender, dlq)
	ctx := context.Background()

	// The missing offer must be dead-lettered, but the dead-letter write
	// itself fails, so the message is not yet handled.
	msg := event(config.OfferAcceptedTopic, "404", "same-id")
	require.Error(t, handler.Handle(ctx, msg))

	// The broker recovers; the redelivery must not be skipped as a dupe.
	dlq.err = nil
	require.NoError(t, handler.Handle(ctx, msg))
	assert.Len(t, dlq.messages, 1)
}

func TestMessageWithoutIDIsAlwaysProcessed(t *testing.T) {
	store := seededStore(t)
	sender := &mail.Capture{}
	handler := newHandler(t, store, sender, &fakeProducer{})
	ctx := context.Background()

	msg := event(config.OfferCreatedTopic, "1", "")
	require.NoError(t, handler.Handle(ctx, msg))
	require.NoError(t, handler.Handle(ctx, msg))

	assert.Len(t, sender.Messages, 2, "at-least-once stands without a message id")
}

// flakySender fails a fixed number of times before succeeding.
type flakySender struct {
	failures int
	sent     []mail.Message
}

func (f *flakySender) Send(_ context.Context, msg mail.Message) error {
	if f.failures > 0 {
		f.failures--
		return domain.E(domain.KindTransient, "smtp connection refused")
	}
	f.sent = append(f.sent, msg)
	return nil
}

func TestTransientSendFailureIsRetried(t *testing.T) {
	store := seededStore(t)
	sender := &flakySender{failures: 1}
	dlq := &fakeProducer{}
	handler := newHandler(t, store, sender, dlq)

	err := handler.Handle(context.Background(), event(config.OfferAcceptedTopic, "1", "m1"))
	require.NoError(t, err)

	assert.Len(t, sender.sent, 1, "second attempt must succeed")
	assert.Empty(t, dlq.messages)
}

func headerValue(msg kafkago.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
