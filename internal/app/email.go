package app

import (
	"context"
	"os"
	"os/signal"

	"go.uber.org/zap"

	"gameexchange/internal/config"
	"gameexchange/internal/mail"
	"gameexchange/internal/notification"
	"gameexchange/internal/platform/kafka"
)

// EmailApplication is the notification-side deployable: the Kafka consumer
// loop resolving events into outgoing email.
type EmailApplication struct {
	ctx      context.Context
	cancel   context.CancelFunc
	c        *container
	consumer kafka.Consumer
	producer kafka.Producer
	loop     notification.ConsumerService
}

// NewEmailApplication creates and fully initializes the email service.
func NewEmailApplication(ctx context.Context) (*EmailApplication, error) {
	appCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, os.Kill)

	cfg, err := config.LoadEmail()
	if err != nil {
		cancel()
		return nil, err
	}

	app := &EmailApplication{ctx: appCtx, cancel: cancel, c: &container{}}
	if err := app.c.initBase(appCtx, cfg, config.EmailServiceName); err != nil {
		cancel()
		return nil, err
	}

	consumer, err := kafka.NewConsumer(cfg.KafkaBroker, config.ConsumerGroupID, kafka.EventTopics())
	if err != nil {
		app.c.shutdownBase(context.Background())
		cancel()
		return nil, err
	}
	app.consumer = consumer

	// The producer carries dead-lettered messages.
	producer, err := kafka.NewProducer(cfg.KafkaBroker, config.EmailServiceName, app.c.traceProvider)
	if err != nil {
		app.Shutdown()
		return nil, err
	}
	app.producer = producer

	smtpSender, err := mail.NewSMTPSender(cfg)
	if err != nil {
		app.Shutdown()
		return nil, err
	}
	sender := mail.NewBreakerSender(smtpSender)

	formatter := notification.NewFormatter(app.c.store, cfg.MailFrom)
	handler := notification.NewEmailHandler(formatter, sender, producer, app.c.logger)
	app.loop = notification.NewConsumerService(consumer, handler, app.c.logger)

	app.c.logger.Info("Application initialized successfully")
	return app, nil
}

// Run starts the main event processing loop.
func (app *EmailApplication) Run() error {
	return app.loop.Start(app.ctx)
}

// Shutdown gracefully shuts down all application components.
func (app *EmailApplication) Shutdown() {
	app.c.logger.Info("Starting application shutdown...")

	if app.cancel != nil {
		app.cancel()
	}
	if app.consumer != nil {
		if err := app.consumer.Close(); err != nil {
			app.c.logger.Error("Failed to close message consumer", zap.Error(err))
		}
		app.consumer = nil
	}
	if app.producer != nil {
		if err := app.producer.Close(); err != nil {
			app.c.logger.Error("Failed to close message producer", zap.Error(err))
		}
		app.producer = nil
	}
	app.c.shutdownBase(context.Background())
}
