package config

import (
	"fmt"
	"os"
	"time"
)

const (
	ExchangeServiceName = "exchange-service"
	EmailServiceName    = "email-service"
	ServiceVersion      = "0.1.0"
)

// Event bus contract. One topic per action, message key is the entity id,
// message value is the bare decimal id.
const (
	OfferCreatedTopic    = "offer-created"
	OfferAcceptedTopic   = "offer-accepted"
	OfferRejectedTopic   = "offer-rejected"
	PasswordChangedTopic = "password-changed"
	DeadLetterTopic      = "email-notifications-dlq"

	ConsumerGroupID = "email-notification-consumers"

	BatchTimeout = 10 * time.Millisecond
	BatchSize    = 100
)

// Store and notification resilience bounds.
const (
	StoreRetryInitialInterval = 50 * time.Millisecond
	StoreRetryMaxElapsed      = 2 * time.Second

	NotifyRetryInitialInterval = 250 * time.Millisecond
	NotifyRetryMaxElapsed      = 15 * time.Second

	MailBreakerErrorThreshold   = 3
	MailBreakerSuccessThreshold = 1
	MailBreakerTimeout          = 30 * time.Second
)

const (
	LogsPath      = "/otlp/v1/logs"
	TracesPath    = "/otlp/v1/traces"
	ExportTimeout = 30 * time.Second
	MaxQueueSize  = 2048
)

const SupportAddress = "fakeemail@gameexchange.com"

type Config struct {
	KafkaBroker string
	DatabaseDSN string

	HTTPAddr string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	MailFrom     string

	OtelEndpoint   string
	OtelAuthHeader string
}

// LoadExchange reads the exchange-service configuration from the
// environment. KAFKA_BROKER and DB_DSN are required; the OTel endpoint is
// optional and telemetry is skipped when it is absent.
func LoadExchange() (*Config, error) {
	cfg := load()
	cfg.HTTPAddr = envOr("HTTP_ADDR", ":8080")

	if cfg.KafkaBroker == "" {
		return nil, fmt.Errorf("KAFKA_BROKER environment variable is required")
	}
	if cfg.DatabaseDSN == "" {
		return nil, fmt.Errorf("DB_DSN environment variable is required")
	}
	return cfg, nil
}

// LoadEmail reads the email-service configuration from the environment.
// On top of the exchange requirements it needs the SMTP host and sender.
func LoadEmail() (*Config, error) {
	cfg := load()

	if cfg.KafkaBroker == "" {
		return nil, fmt.Errorf("KAFKA_BROKER environment variable is required")
	}
	if cfg.DatabaseDSN == "" {
		return nil, fmt.Errorf("DB_DSN environment variable is required")
	}
	if cfg.SMTPHost == "" {
		return nil, fmt.Errorf("SMTP_HOST environment variable is required")
	}
	if cfg.MailFrom == "" {
		return nil, fmt.Errorf("MAIL_FROM environment variable is required")
	}
	return cfg, nil
}

func load() *Config {
	return &Config{
		KafkaBroker:    os.Getenv("KAFKA_BROKER"),
		DatabaseDSN:    os.Getenv("DB_DSN"),
		SMTPHost:       os.Getenv("SMTP_HOST"),
		SMTPPort:       587,
		SMTPUsername:   os.Getenv("SMTP_USERNAME"),
		SMTPPassword:   os.Getenv("SMTP_PASSWORD"),
		MailFrom:       os.Getenv("MAIL_FROM"),
		OtelEndpoint:   os.Getenv("OTEL_ENDPOINT"),
		OtelAuthHeader: os.Getenv("OTEL_AUTH_HEADER"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
