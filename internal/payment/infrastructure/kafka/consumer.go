package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/cenkalti/backoff/v5"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/checkout-engine/internal/payment/domain"
	"github.com/dmehra2102/checkout-engine/internal/platform/apperr"
	"github.com/dmehra2102/checkout-engine/pkg/idempotency"
	"github.com/dmehra2102/checkout-engine/pkg/tracing"
)

// Reader is the part of *kafka.Reader the consumer drives.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type StatusRecorder interface {
	RecordStatus(ctx context.Context, orderID string, to domain.Status, txRef string) (domain.Payment, error)
}

// Consumer records gateway status reports published on the payment status
// topic.
type Consumer struct {
	log     *slog.Logger
	reader  Reader
	svc     StatusRecorder
	idem    idempotency.Guard
	keyer   func(topic string, partition int, offset int64) string
	backoff func() backoff.BackOff
	tracer  trace.Tracer
}

func NewConsumer(log *slog.Logger, brokers []string, topic, group string, svc StatusRecorder, idem *idempotency.Store) *Consumer {
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
		tracer:  otel.Tracer("payment-consumer"),
	}
}

// Run processes messages in partition order. A message whose store write
// fails is retried in place; its offset is committed only once it has been
// applied or skipped, so nothing behind it is committed first.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return err
		}
		key := c.keyer(msg.Topic, msg.Partition, msg.Offset)
		if err := idempotency.Process(ctx, c.log, c.idem, key, c.backoff(), func(ctx context.Context) error {
			return c.Handle(ctx, msg)
		}); err != nil {
			return err
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.log.Error("commit failed", "key", key, "err", err)
		}
	}
}

// Handle decodes one gateway report and records it. Business rejections are
// logged and swallowed so the offset can advance; only store failures are
// returned as retryable.
func (c *Consumer) Handle(ctx context.Context, msg kafka.Message) error {
	msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
	msgCtx, span := c.tracer.Start(msgCtx, "ConsumeGatewayReport")
	defer span.End()

	var report domain.GatewayReport
	if err := json.Unmarshal(msg.Value, &report); err != nil {
		c.log.Error("unmarshal failed", "err", err)
		return nil
	}
	status, err := domain.ParseStatus(report.Status)
	if err != nil {
		c.log.Error("gateway report rejected", "order_id", report.OrderID, "err", err)
		return nil
	}

	if _, err := c.svc.RecordStatus(msgCtx, report.OrderID, status, report.TransactionRef); err != nil {
		span.RecordError(err)
		if errors.Is(err, apperr.ErrStoreUnavailable) {
			return err
		}
		c.log.Warn("gateway report ignored", "order_id", report.OrderID, "status", status, "err", err)
		return nil
	}
	c.log.Info("payment status recorded", "order_id", report.OrderID, "status", status)
	return nil
}
