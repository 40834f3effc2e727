//go:build integration

// Package integration starts the Postgres and Kafka containers used by the
// integration suites.
package integration

import (
	"context"
	"time"

	"github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

type Env struct {
	PG     *postgres.PostgresContainer
	Kafka  *kafka.KafkaContainer
	PGURL  string
	KAddr  []string
	Cancel context.CancelFunc
}

// Setup starts both containers. Callers must Teardown even on test failure.
func Setup(ctx context.Context) (*Env, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Minute)

	pgC, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("checkout"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		cancel()
		return nil, err
	}

	pgURL, err := pgC.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		cancel()
		_ = pgC.Terminate(context.Background())
		return nil, err
	}

	kafkaC, err := kafka.Run(ctx,
		"confluentinc/confluent-local:7.5.0",
		kafka.WithClusterID("checkout-engine-test"),
	)
	if err != nil {
		cancel()
		_ = pgC.Terminate(context.Background())
		return nil, err
	}

	brokers, err := kafkaC.Brokers(ctx)
	if err != nil {
		cancel()
		_ = kafkaC.Terminate(context.Background())
		_ = pgC.Terminate(context.Background())
		return nil, err
	}
	return &Env{
		PG:     pgC,
		Kafka:  kafkaC,
		PGURL:  pgURL,
		KAddr:  brokers,
		Cancel: cancel,
	}, nil
}

func (e *Env) Teardown(ctx context.Context) {
	e.Cancel()
	_ = e.Kafka.Terminate(ctx)
	_ = e.PG.Terminate(ctx)
}
