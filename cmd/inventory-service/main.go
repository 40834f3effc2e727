package main

import (
	"context"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/dmehra2102/checkout-engine/internal/app"
	"github.com/dmehra2102/checkout-engine/internal/config"
	"github.com/dmehra2102/checkout-engine/internal/inventory/application"
	inventoryKafka "github.com/dmehra2102/checkout-engine/internal/inventory/infrastructure/kafka"
	inventoryDB "github.com/dmehra2102/checkout-engine/internal/inventory/infrastructure/postgres"
	"github.com/dmehra2102/checkout-engine/internal/platform/postgres"
	"github.com/dmehra2102/checkout-engine/pkg/idempotency"
	"github.com/dmehra2102/checkout-engine/pkg/logging"
	"github.com/dmehra2102/checkout-engine/pkg/metrics"
	"github.com/dmehra2102/checkout-engine/pkg/shutdown"
)

// inventory-service mirrors the product catalog topic into the variant
// ledger: new variants, restocks and price changes.
func main() {
	cfg, err := config.Load("inventory-service")
	if err != nil {
		logging.New("info").Error("config load failed", "err", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	stopTelemetry, err := app.StartTelemetry(ctx, log, cfg)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = stopTelemetry(context.Background()) }()

	pool, err := postgres.Connect(ctx, log, cfg.PGURL)
	if err != nil {
		log.Error("pg connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	idem := idempotency.NewStore(rdb, cfg.IdempotencyTTL)

	ledger := application.NewLedger(log, inventoryDB.NewRepository(log, pool), postgres.NewTxRunner(pool), metrics.Default())
	consumer := inventoryKafka.NewConsumer(log, cfg.KafkaBrokers, cfg.CatalogTopic, cfg.ConsumerGroup, ledger, idem)

	go func() {
		if err := consumer.Run(ctx); err != nil {
			log.Error("consumer stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info("inventory-service shutdown")
}
