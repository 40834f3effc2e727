package application

import (
	"context"
	"time"

	"github.com/dmehra2102/checkout-engine/internal/inventory/domain"
)

// VariantRepository is the only path to quantity-on-hand. Reserve must be a
// single conditional decrement; Release and Restock a single increment.
type VariantRepository interface {
	Get(ctx context.Context, id string) (domain.Variant, error)
	Save(ctx context.Context, v domain.Variant) error
	Reserve(ctx context.Context, id string, qty int) (domain.Variant, error)
	Release(ctx context.Context, id string, qty int) (domain.Variant, error)
	Restock(ctx context.Context, id string, qty int, at time.Time) (domain.Variant, error)
	SetPrice(ctx context.Context, id string, priceCents int64) error
}

type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
