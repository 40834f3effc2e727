package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmehra2102/checkout-engine/internal/app"
	"github.com/dmehra2102/checkout-engine/internal/config"
	orderkafka "github.com/dmehra2102/checkout-engine/internal/order/infrastructure/kafka"
	"github.com/dmehra2102/checkout-engine/internal/platform/memdb"
	"github.com/dmehra2102/checkout-engine/internal/platform/postgres"
	"github.com/dmehra2102/checkout-engine/pkg/idempotency"
	"github.com/dmehra2102/checkout-engine/pkg/logging"
	"github.com/dmehra2102/checkout-engine/pkg/outbox"
	"github.com/dmehra2102/checkout-engine/pkg/shutdown"
)

func main() {
	cfg, err := config.Load("checkout-service")
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

	// Stores
	var stores app.Stores
	switch cfg.StoreDriver {
	case config.DriverMemory:
		log.Warn("using in-memory store; data is lost on exit")
		stores = app.MemoryStores(memdb.New())
	default:
		pool, err := postgres.Connect(ctx, log, cfg.PGURL)
		if err != nil {
			log.Error("pg connect failed", "err", err)
			os.Exit(1)
		}
		defer pool.Close()
		if err := postgres.Migrate(ctx, pool); err != nil {
			log.Error("migrate failed", "err", err)
			os.Exit(1)
		}
		stores = app.PostgresStores(log, pool)
	}

	// Idempotency-Key claims
	var idem idempotency.Guard
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Error("redis ping failed", "addr", cfg.RedisAddr, "err", err)
			os.Exit(1)
		}
		idem = idempotency.NewStore(rdb, cfg.IdempotencyTTL)
	}

	engine := app.New(log, stores, app.Options{
		CancelPolicy: cfg.CancelPolicy,
		Pricing:      cfg.Pricing,
	})

	// Outbox relay
	if cfg.RelayEnabled {
		writer := orderkafka.NewWriter(cfg.KafkaBrokers)
		defer writer.Close()
		dispatch := outbox.NewDispatcher(log, writer, cfg.OutboxTopic)
		relay := outbox.NewRelay(log, stores.Outbox, dispatch, cfg.ServiceName+"-relay")
		go func() {
			if err := relay.Run(ctx); err != nil {
				log.Error("relay stopped with error", "err", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      engine.Router(idem),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr, "store", cfg.StoreDriver, "cancel_policy", cfg.CancelPolicy)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	log.Info("checkout-service shutdown complete")
}
