package kafka

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/cenkalti/backoff/v5"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/checkout-engine/internal/inventory/domain"
	"github.com/dmehra2102/checkout-engine/internal/platform/apperr"
	"github.com/dmehra2102/checkout-engine/pkg/idempotency"
	"github.com/dmehra2102/checkout-engine/pkg/tracing"
)

type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type CatalogApplier interface {
	Apply(ctx context.Context, ev domain.CatalogEvent) error
}

// Consumer keeps the ledger's variant rows in step with the catalog topic.
type Consumer struct {
	log     *slog.Logger
	reader  Reader
	svc     CatalogApplier
	idem    idempotency.Guard
	keyer   func(topic string, partition int, offset int64) string
	backoff func() backoff.BackOff
	tracer  trace.Tracer
}

func NewConsumer(log *slog.Logger, brokers []string, topic, group string, svc CatalogApplier, idem *idempotency.Store) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
	return &Consumer{
		log:     log,
		reader:  r,
		svc:     svc,
		idem:    idem,
		keyer:   idem.Key,
		backoff: idempotency.RetryForever,
		tracer:  otel.Tracer("catalog-consumer"),
	}
}

// Run applies catalog events in partition order, retrying store failures in
// place and committing each offset only after its event is applied or skipped.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return err
		}
		key := c.keyer(msg.Topic, msg.Partition, msg.Offset)
		if err := idempotency.Process(ctx, c.log, c.idem, key, c.backoff(), func(ctx context.Context) error {
			return c.handle(ctx, msg)
		}); err != nil {
			return err
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.log.Error("commit failed", "key", key, "err", err)
		}
	}
}

// handle returns only retryable errors. Events the ledger refuses are logged
// and dropped.
func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
	msgCtx, span := c.tracer.Start(msgCtx, "ConsumeCatalogEvent")
	defer span.End()

	var ev domain.CatalogEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		c.log.Error("unmarshal failed", "err", err)
		return nil
	}
	if err := c.svc.Apply(msgCtx, ev); err != nil {
		span.RecordError(err)
		if apperr.Retryable(err) {
			return err
		}
		c.log.Error("catalog event rejected", "kind", ev.Kind, "variant_id", ev.VariantID, "err", err)
		return nil
	}
	c.log.Info("catalog event applied", "kind", ev.Kind, "variant_id", ev.VariantID)
	return nil
}
