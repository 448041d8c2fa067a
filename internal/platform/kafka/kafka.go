// Package kafka builds the OpenTelemetry-instrumented reader and writer the
// services share.
package kafka

import (
	otelkafka "github.com/Trendyol/otel-kafka-konsumer"
	kafkago "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"gameexchange/internal/config"
)

// NewProducer creates a writer with no fixed topic; each message names its
// own destination. Trace context is propagated in message headers.
func NewProducer(broker, clientID string, tp trace.TracerProvider) (Producer, error) {
	baseWriter := &kafkago.Writer{
		Addr:         kafkago.TCP(broker),
		Balancer:     &kafkago.LeastBytes{},
		BatchTimeout: config.BatchTimeout,
		BatchSize:    config.BatchSize,
	}

	return otelkafka.NewWriter(baseWriter,
		otelkafka.WithTracerProvider(tp),
		otelkafka.WithPropagator(propagation.TraceContext{}),
		otelkafka.WithAttributes(
			[]attribute.KeyValue{
				attribute.String("messaging.kafka.client_id", clientID),
			},
		),
	)
}

// NewConsumer creates a group reader subscribed to the given topics.
func NewConsumer(broker, groupID string, topics []string) (Consumer, error) {
	baseReader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		GroupTopics: topics,
		GroupID:     groupID,
	})
	return otelkafka.NewReader(baseReader)
}

// EventTopics lists every topic the email service subscribes to.
func EventTopics() []string {
	return []string{
		config.OfferCreatedTopic,
		config.OfferAcceptedTopic,
		config.OfferRejectedTopic,
		config.PasswordChangedTopic,
	}
}
