package app

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dmehra2102/checkout-engine/internal/config"
	"github.com/dmehra2102/checkout-engine/pkg/metrics"
	"github.com/dmehra2102/checkout-engine/pkg/tracing"
)

// StartTelemetry installs the trace and meter providers when an OTLP
// endpoint is configured. The returned function flushes both.
func StartTelemetry(ctx context.Context, log *slog.Logger, cfg *config.Config) (func(context.Context) error, error) {
	if cfg.OTLPEndpoint == "" {
		log.Info("telemetry export disabled")
		return func(context.Context) error { return nil }, nil
	}
	stopTraces, err := tracing.Init(ctx, tracing.Config{
		ServiceName: cfg.ServiceName,
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    cfg.OTLPInsecure,
	})
	if err != nil {
		return nil, err
	}
	mp, err := metrics.Init(ctx, metrics.Config{
		ServiceName: cfg.ServiceName,
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    cfg.OTLPInsecure,
	})
	if err != nil {
		_ = stopTraces(ctx)
		return nil, err
	}
	log.Info("telemetry exporting", "endpoint", cfg.OTLPEndpoint)
	return func(ctx context.Context) error {
		return errors.Join(stopTraces(ctx), mp.Shutdown(ctx))
	}, nil
}
