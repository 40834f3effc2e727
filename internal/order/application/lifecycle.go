package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	invdomain "github.com/dmehra2102/checkout-engine/internal/inventory/domain"
	"github.com/dmehra2102/checkout-engine/internal/order/domain"
	"github.com/dmehra2102/checkout-engine/internal/platform/apperr"
	"github.com/dmehra2102/checkout-engine/pkg/metrics"
	"github.com/dmehra2102/checkout-engine/pkg/outbox"
)

// Lifecycle drives order status changes after placement.
type Lifecycle struct {
	log      *slog.Logger
	orders   OrderRepository
	ledger   Ledger
	payments Payments
	outbox   outbox.Appender
	tx       TxRunner
	policy   domain.CancelPolicy
	metrics  *metrics.Engine
	tracer   trace.Tracer
	now      func() time.Time
}

type LifecycleDeps struct {
	Orders   OrderRepository
	Ledger   Ledger
	Payments Payments
	Outbox   outbox.Appender
	Tx       TxRunner
	Policy   domain.CancelPolicy
	Metrics  *metrics.Engine
}

func NewLifecycle(log *slog.Logger, d LifecycleDeps) *Lifecycle {
	policy := d.Policy
	if policy == "" {
		policy = domain.CancelPendingOnly
	}
	return &Lifecycle{
		log:      log,
		orders:   d.Orders,
		ledger:   d.Ledger,
		payments: d.Payments,
		outbox:   d.Outbox,
		tx:       d.Tx,
		policy:   policy,
		metrics:  d.Metrics,
		tracer:   otel.Tracer("order-lifecycle"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (l *Lifecycle) Policy() domain.CancelPolicy { return l.policy }

// Get returns an order owned by userID.
func (l *Lifecycle) Get(ctx context.Context, userID, orderID string) (domain.Order, error) {
	o, err := l.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if o.UserID != userID {
		return domain.Order{}, fmt.Errorf("order %s: %w", orderID, apperr.ErrNotFound)
	}
	return o, nil
}

// ListByUser returns the user's orders newest first with the total count
// matching the filter.
func (l *Lifecycle) ListByUser(ctx context.Context, userID string, f domain.ListFilter) ([]domain.Order, int, error) {
	if f.Status != "" {
		if _, err := domain.ParseStatus(string(f.Status)); err != nil {
			return nil, 0, err
		}
	}
	return l.orders.ListByUser(ctx, userID, f.Normalize())
}

// Cancel cancels the caller's order and returns its stock exactly once.
func (l *Lifecycle) Cancel(ctx context.Context, userID, orderID string) (domain.Order, error) {
	return l.cancel(ctx, orderID, ownedBy(userID))
}

// UpdateStatus applies an operator status change. Moving to cancelled takes
// the cancellation path and its policy. Shipping requires a tracking number.
func (l *Lifecycle) UpdateStatus(ctx context.Context, orderID string, to domain.Status, tracking string) (domain.Order, error) {
	return l.updateStatus(ctx, orderID, to, tracking, anyone)
}

// UpdateStatusFor is UpdateStatus restricted to orders owned by userID.
// Orders of other users are reported as not found.
func (l *Lifecycle) UpdateStatusFor(ctx context.Context, userID, orderID string, to domain.Status, tracking string) (domain.Order, error) {
	return l.updateStatus(ctx, orderID, to, tracking, ownedBy(userID))
}

func ownedBy(userID string) func(domain.Order) error {
	return func(o domain.Order) error {
		if o.UserID != userID {
			return fmt.Errorf("order %s: %w", o.ID, apperr.ErrNotFound)
		}
		return nil
	}
}

func anyone(domain.Order) error { return nil }

func (l *Lifecycle) updateStatus(ctx context.Context, orderID string, to domain.Status, tracking string, authorize func(domain.Order) error) (domain.Order, error) {
	if to == domain.StatusCancelled {
		return l.cancel(ctx, orderID, authorize)
	}
	tracking = strings.TrimSpace(tracking)
	if to == domain.StatusShipped && tracking == "" {
		return domain.Order{}, fmt.Errorf("%w: tracking number required to ship", apperr.ErrInvalidInput)
	}
	if to != domain.StatusShipped {
		tracking = ""
	}

	ctx, span := l.tracer.Start(ctx, "UpdateOrderStatus", trace.WithAttributes(
		attribute.String("order_id", orderID),
		attribute.String("status", string(to)),
	))
	defer span.End()

	var out domain.Order
	err := l.tx.InTx(ctx, func(ctx context.Context) error {
		o, err := l.orders.Get(ctx, orderID)
		if err != nil {
			return err
		}
		if err := authorize(o); err != nil {
			return err
		}
		if err := domain.CheckAdvance(o.Status, to); err != nil {
			return err
		}
		now := l.now()
		if err := l.transition(ctx, o, to, tracking, now); err != nil {
			return err
		}
		ev, err := outbox.NewEvent(ctx, "order", o.ID, domain.EventOrderStatusChanged, domain.OrderStatusChanged{
			OrderID:        o.ID,
			From:           o.Status,
			To:             to,
			TrackingNumber: tracking,
		})
		if err != nil {
			return err
		}
		if err := l.outbox.Append(ctx, ev); err != nil {
			return err
		}
		o.Status = to
		if tracking != "" {
			o.TrackingNumber = tracking
		}
		o.UpdatedAt = now
		out = o
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return domain.Order{}, err
	}
	l.log.Info("order status changed", "order_id", orderID, "status", to)
	return out, nil
}

func (l *Lifecycle) cancel(ctx context.Context, orderID string, authorize func(domain.Order) error) (domain.Order, error) {
	ctx, span := l.tracer.Start(ctx, "CancelOrder", trace.WithAttributes(attribute.String("order_id", orderID)))
	defer span.End()

	var out domain.Order
	err := l.tx.InTx(ctx, func(ctx context.Context) error {
		o, err := l.orders.Get(ctx, orderID)
		if err != nil {
			return err
		}
		if err := authorize(o); err != nil {
			return err
		}
		if err := l.policy.CheckCancel(o.Status); err != nil {
			return err
		}
		now := l.now()
		if err := l.transition(ctx, o, domain.StatusCancelled, "", now); err != nil {
			return err
		}

		moves := make([]invdomain.Movement, len(o.Lines))
		for i, line := range o.Lines {
			moves[i] = invdomain.Movement{VariantID: line.VariantID, Quantity: line.Quantity}
		}
		if err := l.ledger.ReleaseAll(ctx, moves); err != nil {
			return err
		}
		if err := l.payments.OnOrderCancelled(ctx, o.ID); err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return err
		}

		ev, err := outbox.NewEvent(ctx, "order", o.ID, domain.EventOrderCancelled, domain.OrderCancelled{
			OrderID:  o.ID,
			UserID:   o.UserID,
			Released: o.Lines,
		})
		if err != nil {
			return err
		}
		if err := l.outbox.Append(ctx, ev); err != nil {
			return err
		}
		o.Status = domain.StatusCancelled
		o.UpdatedAt = now
		out = o
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return domain.Order{}, err
	}
	l.metrics.OrdersCancelled.Add(ctx, 1)
	l.log.Info("order cancelled", "order_id", orderID, "user_id", out.UserID, "lines", len(out.Lines))
	return out, nil
}

// transition compare-and-sets the stored status so that two racing changes
// from the same state cannot both apply.
func (l *Lifecycle) transition(ctx context.Context, o domain.Order, to domain.Status, tracking string, at time.Time) error {
	ok, err := l.orders.Transition(ctx, o.ID, o.Status, to, tracking, at)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: order %s changed concurrently", apperr.ErrInvalidTransition, o.ID)
	}
	return nil
}
