package application

import (
	"context"
	"time"

	addrdomain "github.com/dmehra2102/checkout-engine/internal/address/domain"
	cartdomain "github.com/dmehra2102/checkout-engine/internal/cart/domain"
	invdomain "github.com/dmehra2102/checkout-engine/internal/inventory/domain"
	"github.com/dmehra2102/checkout-engine/internal/order/domain"
	paydomain "github.com/dmehra2102/checkout-engine/internal/payment/domain"
)

type OrderRepository interface {
	// Insert stores the header and its lines. A taken order number is
	// reported as ErrConflict.
	Insert(ctx context.Context, o domain.Order) error
	Get(ctx context.Context, id string) (domain.Order, error)
	ListByUser(ctx context.Context, userID string, f domain.ListFilter) ([]domain.Order, int, error)
	// Transition moves the order from -> to and reports false when the
	// stored status was no longer from.
	Transition(ctx context.Context, id string, from, to domain.Status, tracking string, at time.Time) (bool, error)
}

// Ledger is the inventory side of order placement and cancellation.
type Ledger interface {
	ReserveAll(ctx context.Context, moves []invdomain.Movement) ([]invdomain.Variant, error)
	ReleaseAll(ctx context.Context, moves []invdomain.Movement) error
}

type Carts interface {
	List(ctx context.Context, userID string) (cartdomain.Cart, error)
	Clear(ctx context.Context, userID string) error
}

type Addresses interface {
	Get(ctx context.Context, userID, id string) (addrdomain.Address, error)
}

type Payments interface {
	Create(ctx context.Context, orderID, method string, amountCents int64) (paydomain.Payment, error)
	OnOrderCancelled(ctx context.Context, orderID string) error
}

type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
