package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/dmehra2102/checkout-engine/pkg/tracing"
)

// Writer publishes outbox events. Messages carry their own topic.
type Writer struct {
	*kafka.Writer
}

func NewWriter(brokers []string) *Writer {
	return &Writer{
		Writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			BatchTimeout:           50 * time.Millisecond,
			AllowAutoTopicCreation: true,
		},
	}
}

// WriteMessages stamps the current trace context on messages that do not
// already carry one.
func (w *Writer) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	for i := range msgs {
		msgs[i].Headers = tracing.InjectKafkaHeaders(ctx, msgs[i].Headers)
	}
	return w.Writer.WriteMessages(ctx, msgs...)
}
