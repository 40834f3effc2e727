package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/checkout-engine/internal/payment/domain"
	"github.com/dmehra2102/checkout-engine/internal/platform/apperr"
	"github.com/dmehra2102/checkout-engine/pkg/metrics"
	"github.com/dmehra2102/checkout-engine/pkg/outbox"
)

// Service records the payment lifecycle of orders. It never calls a gateway;
// gateway outcomes arrive through RecordStatus.
type Service struct {
	log     *slog.Logger
	repo    PaymentRepository
	outbox  outbox.Appender
	tx      TxRunner
	metrics *metrics.Engine
	tracer  trace.Tracer
	now     func() time.Time
}

func NewService(log *slog.Logger, repo PaymentRepository, ob outbox.Appender, tx TxRunner, m *metrics.Engine) *Service {
	return &Service{
		log:     log,
		repo:    repo,
		outbox:  ob,
		tx:      tx,
		metrics: m,
		tracer:  otel.Tracer("payment-service"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Create opens the single pending payment of an order.
func (s *Service) Create(ctx context.Context, orderID, method string, amountCents int64) (domain.Payment, error) {
	if !domain.ValidMethod(method) {
		return domain.Payment{}, fmt.Errorf("%w: unsupported payment method %q", apperr.ErrInvalidInput, method)
	}
	p := domain.NewPending(uuid.NewString(), orderID, method, amountCents, s.now())
	if err := s.repo.Insert(ctx, p); err != nil {
		return domain.Payment{}, err
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, orderID string) (domain.Payment, error) {
	return s.repo.GetByOrder(ctx, orderID)
}

// RecordStatus applies a status reported by the payment gateway.
func (s *Service) RecordStatus(ctx context.Context, orderID string, to domain.Status, txRef string) (domain.Payment, error) {
	ctx, span := s.tracer.Start(ctx, "RecordPaymentStatus", trace.WithAttributes(
		attribute.String("order_id", orderID),
		attribute.String("status", string(to)),
	))
	defer span.End()

	var out domain.Payment
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetByOrder(ctx, orderID)
		if err != nil {
			return err
		}
		out, err = s.transition(ctx, p, to, txRef)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return domain.Payment{}, err
	}
	s.log.Info("payment status recorded", "order_id", orderID, "status", to)
	return out, nil
}

// OnOrderCancelled moves the order's payment to failed or refunded. It is
// meant to run inside the cancellation transaction.
func (s *Service) OnOrderCancelled(ctx context.Context, orderID string) error {
	p, err := s.repo.GetByOrder(ctx, orderID)
	if err != nil {
		return err
	}
	next, ok := domain.OnOrderCancelled(p.Status)
	if !ok {
		return nil
	}
	_, err = s.transition(ctx, p, next, "")
	return err
}

func (s *Service) transition(ctx context.Context, p domain.Payment, to domain.Status, txRef string) (domain.Payment, error) {
	if err := domain.CheckTransition(p.Status, to); err != nil {
		return domain.Payment{}, err
	}
	now := s.now()
	ok, err := s.repo.Transition(ctx, p.OrderID, p.Status, to, txRef, now)
	if err != nil {
		return domain.Payment{}, err
	}
	if !ok {
		return domain.Payment{}, fmt.Errorf("%w: payment for order %s changed concurrently", apperr.ErrInvalidTransition, p.OrderID)
	}

	ev, err := outbox.NewEvent(ctx, "payment", p.OrderID, domain.EventPaymentStatusChanged, domain.PaymentStatusChanged{
		OrderID:        p.OrderID,
		From:           p.Status,
		To:             to,
		TransactionRef: txRef,
	})
	if err != nil {
		return domain.Payment{}, err
	}
	if err := s.outbox.Append(ctx, ev); err != nil {
		return domain.Payment{}, err
	}
	s.metrics.PaymentUpdates.Add(ctx, 1, metrics.Status(string(to)))

	p.Status = to
	if txRef != "" {
		p.TransactionRef = txRef
	}
	p.UpdatedAt = now
	return p, nil
}
