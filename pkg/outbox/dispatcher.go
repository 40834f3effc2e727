package outbox

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Dispatcher turns stored events into Kafka messages keyed by aggregate id,
// so every event of one order lands on the same partition in commit order.
type Dispatcher struct {
	log      *slog.Logger
	producer Producer
	topic    string
	tracer   trace.Tracer
}

func NewDispatcher(log *slog.Logger, producer Producer, topic string) *Dispatcher {
	return &Dispatcher{log: log, producer: producer, topic: topic, tracer: otel.Tracer("outbox-dispatcher")}
}

func (d *Dispatcher) Dispatch(ctx context.Context, event Event) error {
	if event.Traceparent != "" {
		ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier{"traceparent": event.Traceparent})
	}
	ctx, span := d.tracer.Start(ctx, "outbox.dispatch",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("event.type", event.Type),
			attribute.String("aggregate.id", event.AggregateID),
		))
	defer span.End()

	headers := make([]kafka.Header, 0, len(event.Headers)+3)
	for k, v := range event.Headers {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	headers = append(headers,
		kafka.Header{Key: "event_id", Value: []byte(strconv.FormatInt(event.ID, 10))},
		kafka.Header{Key: "event_type", Value: []byte(event.Type)},
		kafka.Header{Key: "aggregate_type", Value: []byte(event.AggregateType)},
	)

	msg := kafka.Message{
		Topic:   d.topic,
		Key:     []byte(event.AggregateID),
		Value:   event.Payload,
		Headers: headers,
		Time:    event.CreatedAt,
	}
	if err := d.producer.WriteMessages(ctx, msg); err != nil {
		span.RecordError(err)
		d.log.Error("outbox dispatch failed", "event_id", event.ID, "type", event.Type, "err", err)
		return err
	}
	d.log.Debug("outbox dispatched", "event_id", event.ID, "type", event.Type)
	return nil
}
