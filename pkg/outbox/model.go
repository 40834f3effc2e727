package outbox

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
)

// MaxRetries is how many dispatch failures an event survives before it is
// parked as failed.
const MaxRetries = 5

type Event struct {
	ID            int64
	AggregateType string
	AggregateID   string
	Type          string
	Payload       []byte
	Headers       map[string]string
	Traceparent   string
	CreatedAt     time.Time
	Status        Status
	RelayID       string
	LeaseUntil    time.Time
	RetryCount    int
	LastError     *string
}

// Appender stores an event in the caller's transaction.
type Appender interface {
	Append(ctx context.Context, ev Event) error
}

// NewEvent marshals v and stamps the trace context carried by ctx.
func NewEvent(ctx context.Context, aggregateType, aggregateID, eventType string, v any) (Event, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return Event{}, err
	}
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return Event{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Type:          eventType,
		Payload:       payload,
		Headers:       map[string]string{"source": "checkout-engine"},
		Traceparent:   carrier.Get("traceparent"),
		Status:        StatusPending,
	}, nil
}
