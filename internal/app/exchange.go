package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"

	"gameexchange/internal/config"
	delivery "gameexchange/internal/delivery/http"
	"gameexchange/internal/exchange"
	"gameexchange/internal/messaging"
	"gameexchange/internal/platform/kafka"
)

// ExchangeApplication is the API-side deployable: the HTTP delivery layer
// over the exchange service, publishing domain events to Kafka.
type ExchangeApplication struct {
	ctx      context.Context
	cancel   context.CancelFunc
	c        *container
	producer kafka.Producer
	server   *http.Server
}

// NewExchangeApplication creates and fully initializes the exchange service.
func NewExchangeApplication(ctx context.Context) (*ExchangeApplication, error) {
	appCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, os.Kill)

	cfg, err := config.LoadExchange()
	if err != nil {
		cancel()
		return nil, err
	}

	app := &ExchangeApplication{ctx: appCtx, cancel: cancel, c: &container{}}
	if err := app.c.initBase(appCtx, cfg, config.ExchangeServiceName); err != nil {
		cancel()
		return nil, err
	}

	producer, err := kafka.NewProducer(cfg.KafkaBroker, config.ExchangeServiceName, app.c.traceProvider)
	if err != nil {
		app.c.shutdownBase(context.Background())
		cancel()
		return nil, err
	}
	app.producer = producer

	publisher := messaging.NewKafkaPublisher(producer, app.c.logger.With(zap.String("component", "publisher")))
	service := exchange.NewService(app.c.store, publisher, app.c.logger, app.c.tracer)
	app.server = &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: delivery.NewRouter(service),
	}

	app.c.logger.Info("Application initialized successfully")
	return app, nil
}

// Run serves HTTP until the context is cancelled, then drains in-flight
// requests.
func (app *ExchangeApplication) Run() error {
	errChan := make(chan error, 1)
	go func() {
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	app.c.logger.Info("HTTP server listening", zap.String("addr", app.server.Addr))

	select {
	case err := <-errChan:
		return err
	case <-app.ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return app.server.Shutdown(shutdownCtx)
}

// Shutdown gracefully shuts down all application components.
func (app *ExchangeApplication) Shutdown() {
	app.c.logger.Info("Starting application shutdown...")

	if app.cancel != nil {
		app.cancel()
	}
	if app.producer != nil {
		if err := app.producer.Close(); err != nil {
			app.c.logger.Error("Failed to close message producer", zap.Error(err))
		}
	}
	app.c.shutdownBase(context.Background())
}
