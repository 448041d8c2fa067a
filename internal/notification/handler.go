package notification

import (
	"context"
	"strconv"
	"sync"

	"github.com/cenkalti/backoff/v4"
	kafkago "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"gameexchange/internal/config"
	"gameexchange/internal/domain"
	"gameexchange/internal/mail"
	"gameexchange/internal/messaging"
	"gameexchange/internal/platform/kafka"
	"gameexchange/internal/platform/observability"
)

// MessageHandler processes one delivered event.
type MessageHandler interface {
	Handle(ctx context.Context, msg kafkago.Message) error
}

// EmailHandler resolves events into emails. Failures never escape to kill
// the consumer loop: they are classified as retryable (retried with capped
// backoff) or permanent, and anything that cannot be delivered ends up on
// the dead-letter topic.
type EmailHandler struct {
	formatter  *Formatter
	sender     mail.Sender
	deadLetter kafka.Producer
	logger     observability.Logger
	seen       *seenSet
}

// NewEmailHandler creates a handler with explicit dependencies.
func NewEmailHandler(formatter *Formatter, sender mail.Sender, deadLetter kafka.Producer, logger observability.Logger) *EmailHandler {
	return &EmailHandler{
		formatter:  formatter,
		sender:     sender,
		deadLetter: deadLetter,
		logger:     logger,
		seen:       newSeenSet(1024),
	}
}

// Handle processes a single message. Delivery is at-least-once; a
// redelivered message-id is acknowledged without sending a second email.
// The id is only recorded once the message is fully handled (delivered or
// dead-lettered), so a failed handle stays eligible for redelivery.
func (h *EmailHandler) Handle(ctx context.Context, msg kafkago.Message) error {
	msgCtx := h.extractTraceContext(ctx, msg.Headers)

	h.logger.Info("📨 event received",
		zap.String("topic", msg.Topic),
		zap.ByteString("key", msg.Key),
		zap.Int("partition", msg.Partition),
		zap.Int64("offset", msg.Offset),
	)

	id := messageID(msg.Headers)
	if id != "" && h.seen.has(id) {
		h.logger.Info("duplicate delivery skipped",
			zap.String("topic", msg.Topic),
			zap.String("message_id", id),
		)
		return nil
	}

	entityID, err := strconv.ParseInt(string(msg.Value), 10, 64)
	if err != nil && known(msg.Topic) {
		// A known topic with a garbage payload can never succeed.
		h.logger.Error("❌ malformed event payload",
			zap.String("topic", msg.Topic),
			zap.ByteString("raw_value", msg.Value),
			zap.Error(err),
		)
		return h.finish(id, h.sendToDeadLetter(msgCtx, msg, "malformed payload"))
	}

	if err := h.deliverWithRetry(msgCtx, msg.Topic, entityID); err != nil {
		h.logger.Error("❌ notification undeliverable",
			zap.String("topic", msg.Topic),
			zap.Int64("entity_id", entityID),
			zap.Error(err),
		)
		return h.finish(id, h.sendToDeadLetter(msgCtx, msg, err.Error()))
	}
	return h.finish(id, nil)
}

// finish marks the message-id as handled unless the handle failed.
func (h *EmailHandler) finish(id string, err error) error {
	if err == nil && id != "" {
		h.seen.add(id)
	}
	return err
}

// deliverWithRetry formats and sends the email. Permanent failures
// (missing entities, malformed addresses) abort immediately; everything
// else is retried with capped exponential backoff.
func (h *EmailHandler) deliverWithRetry(ctx context.Context, topic string, entityID int64) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = config.NotifyRetryInitialInterval
	bo.MaxElapsedTime = config.NotifyRetryMaxElapsed

	return backoff.Retry(func() error {
		msg, err := h.formatter.Format(ctx, topic, entityID)
		if err != nil {
			return classify(err)
		}
		if err := h.sender.Send(ctx, *msg); err != nil {
			return classify(err)
		}
		h.logger.Info("✉️ email sent",
			zap.String("topic", topic),
			zap.Strings("to", msg.To),
			zap.String("subject", msg.Subject),
		)
		return nil
	}, backoff.WithContext(bo, ctx))
}

// classify marks failure kinds that can never heal as permanent so the
// backoff loop stops immediately.
func classify(err error) error {
	switch domain.KindOf(err) {
	case domain.KindNotFound, domain.KindInvalidArgument:
		return backoff.Permanent(err)
	}
	return err
}

// sendToDeadLetter parks an undeliverable message, preserving the original
// topic and failure reason in headers. Dead-lettering failures are the one
// place we surface an error to the loop, which logs and moves on.
func (h *EmailHandler) sendToDeadLetter(ctx context.Context, msg kafkago.Message, reason string) error {
	dead := kafkago.Message{
		Topic: config.DeadLetterTopic,
		Key:   msg.Key,
		Value: msg.Value,
		Headers: append(msg.Headers,
			kafkago.Header{Key: "original-topic", Value: []byte(msg.Topic)},
			kafkago.Header{Key: "failure-reason", Value: []byte(reason)},
		),
	}
	if err := h.deadLetter.WriteMessage(ctx, dead); err != nil {
		return err
	}
	h.logger.Info("event dead-lettered",
		zap.String("original_topic", msg.Topic),
		zap.String("reason", reason),
	)
	return nil
}

// extractTraceContext extracts OpenTelemetry trace context from Kafka message headers
func (h *EmailHandler) extractTraceContext(ctx context.Context, headers []kafkago.Header) context.Context {
	propagator := otel.GetTextMapPropagator()
	carrier := propagation.MapCarrier{}
	for _, header := range headers {
		carrier[string(header.Key)] = string(header.Value)
	}
	return propagator.Extract(ctx, carrier)
}

func messageID(headers []kafkago.Header) string {
	for _, header := range headers {
		if header.Key == messaging.MessageIDHeader {
			return string(header.Value)
		}
	}
	return ""
}

func known(topic string) bool {
	switch topic {
	case config.OfferCreatedTopic, config.OfferAcceptedTopic,
		config.OfferRejectedTopic, config.PasswordChangedTopic:
		return true
	}
	return false
}

// seenSet is a bounded FIFO set of recently processed message ids.
type seenSet struct {
	mu    sync.Mutex
	ids   map[string]struct{}
	order []string
	limit int
}

func newSeenSet(limit int) *seenSet {
	return &seenSet{ids: make(map[string]struct{}, limit), limit: limit}
}

func (s *seenSet) has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

func (s *seenSet) add(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		return
	}
	s.ids[id] = struct{}{}
	s.order = append(s.order, id)
	if len(s.order) > s.limit {
		delete(s.ids, s.order[0])
		s.order = s.order[1:]
	}
}
