package app

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"gameexchange/internal/config"
	"gameexchange/internal/platform/observability"
	"gameexchange/internal/storage"
	"gameexchange/internal/storage/mysql"
)

// container holds the singletons both services share: configuration,
// logging, telemetry, and the store.
type container struct {
	config        *config.Config
	logger        observability.Logger
	tracer        observability.Tracer
	traceProvider trace.TracerProvider
	store         storage.Store

	otelLogShutdown   func(context.Context) error
	otelTraceShutdown func(context.Context) error
}

// initBase sets up logging, telemetry and the store. Telemetry is optional:
// without an OTel endpoint (or when setup fails) the service runs with the
// console logger only.
func (c *container) initBase(ctx context.Context, cfg *config.Config, serviceName string) error {
	c.config = cfg

	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	c.logger = logger

	if cfg.OtelEndpoint != "" {
		otelLogShutdown, err := observability.SetupLoggingSDK(ctx, cfg, serviceName)
		if err != nil {
			c.logger.Error("Failed to setup OpenTelemetry logging", zap.Error(err))
		}
		c.otelLogShutdown = otelLogShutdown

		tracerProvider, otelTraceShutdown, err := observability.SetupTracingSDK(ctx, cfg, serviceName)
		if err != nil {
			c.logger.Error("Failed to setup OpenTelemetry tracing", zap.Error(err))
		}
		c.otelTraceShutdown = otelTraceShutdown
		if tracerProvider != nil {
			c.traceProvider = tracerProvider
		}

		c.logger = observability.BuildLogger(serviceName)
	}
	if c.traceProvider == nil {
		c.traceProvider = otel.GetTracerProvider()
	}
	c.tracer = otel.Tracer(serviceName)

	store, err := mysql.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	c.store = store
	return nil
}

// shutdownBase releases the shared resources in reverse order.
func (c *container) shutdownBase(ctx context.Context) {
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			c.logger.Error("Failed to close store", zap.Error(err))
		}
	}
	if c.otelTraceShutdown != nil {
		if err := c.otelTraceShutdown(ctx); err != nil {
			c.logger.Error("Failed to shutdown OTel tracing", zap.Error(err))
		}
	}
	if c.otelLogShutdown != nil {
		if err := c.otelLogShutdown(ctx); err != nil {
			c.logger.Error("Failed to shutdown OTel logging", zap.Error(err))
		}
	}
	if err := c.logger.Sync(); err != nil {
		fmt.Printf("Failed to sync logger: %v\n", err)
	}
}
