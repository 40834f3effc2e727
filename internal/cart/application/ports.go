package application

import (
	"context"
	"time"

	"github.com/dmehra2102/checkout-engine/internal/cart/domain"
	invdomain "github.com/dmehra2102/checkout-engine/internal/inventory/domain"
)

type LineRepository interface {
	Find(ctx context.Context, userID, variantID string) (domain.Line, error)
	Get(ctx context.Context, userID, lineID string) (domain.Line, error)
	// Merge inserts line or, when the user already holds the variant, adds
	// its quantity to the existing line and refreshes the price snapshot.
	Merge(ctx context.Context, line domain.Line) (domain.Line, error)
	SetQuantity(ctx context.Context, userID, lineID string, qty int, at time.Time) (domain.Line, error)
	Delete(ctx context.Context, userID, lineID string) error
	Clear(ctx context.Context, userID string) error
	List(ctx context.Context, userID string) ([]domain.Line, error)
}

// Catalog answers point-in-time reads of a variant's price and stock.
type Catalog interface {
	Variant(ctx context.Context, id string) (invdomain.Variant, error)
}

type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
