package application

import (
	"context"
	"time"

	"github.com/dmehra2102/checkout-engine/internal/payment/domain"
)

type PaymentRepository interface {
	// Insert fails with ErrDuplicatePayment when the order already has one.
	Insert(ctx context.Context, p domain.Payment) error
	GetByOrder(ctx context.Context, orderID string) (domain.Payment, error)
	// Transition moves the payment from -> to and reports false when the
	// stored status was no longer from.
	Transition(ctx context.Context, orderID string, from, to domain.Status, txRef string, at time.Time) (bool, error)
}

type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
