// Package metrics owns the OpenTelemetry meter provider and the engine's
// business instruments.
package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

type Config struct {
	ServiceName string
	Endpoint    string
	Insecure    bool
	Interval    time.Duration
}

// Init installs a global meter provider exporting over OTLP/HTTP.
func Init(ctx context.Context, cfg Config) (*sdkmetric.MeterProvider, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(cfg.ServiceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("metrics resource: %w", err)
	}

	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(cfg.Endpoint),
		otlpmetrichttp.WithURLPath("/v1/metrics"),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("metrics exporter: %w", err)
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	)
	otel.SetMeterProvider(mp)
	return mp, nil
}

// Engine holds the business instruments recorded by the checkout engine.
type Engine struct {
	OrdersPlaced    metric.Int64Counter
	OrdersRejected  metric.Int64Counter
	OrdersCancelled metric.Int64Counter
	UnitsReserved   metric.Int64Counter
	UnitsReleased   metric.Int64Counter
	LowStock        metric.Int64Counter
	PaymentUpdates  metric.Int64Counter
}

func NewEngine(meter metric.Meter) (*Engine, error) {
	var (
		e   Engine
		err error
	)
	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&e.OrdersPlaced, "orders.placed", "Orders successfully placed"},
		{&e.OrdersRejected, "orders.rejected", "Order batches rejected, by reason"},
		{&e.OrdersCancelled, "orders.cancelled", "Orders cancelled"},
		{&e.UnitsReserved, "inventory.units.reserved", "Units reserved from stock"},
		{&e.UnitsReleased, "inventory.units.released", "Units returned to stock"},
		{&e.LowStock, "inventory.low_stock", "Reservations that left a variant at or below its reorder level"},
		{&e.PaymentUpdates, "payments.status_updates", "Recorded payment status transitions, by status"},
	}
	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit("1"))
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", c.name, err)
		}
	}
	return &e, nil
}

// Default builds the engine instruments from the global meter provider.
func Default() *Engine {
	e, err := NewEngine(otel.Meter("checkout-engine"))
	if err != nil {
		panic(err)
	}
	return e
}

func Reason(r string) metric.AddOption {
	return metric.WithAttributes(attribute.String("reason", r))
}

func Status(s string) metric.AddOption {
	return metric.WithAttributes(attribute.String("status", s))
}
