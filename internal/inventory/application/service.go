package application

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/checkout-engine/internal/inventory/domain"
	"github.com/dmehra2102/checkout-engine/internal/platform/apperr"
	"github.com/dmehra2102/checkout-engine/pkg/metrics"
)

// Ledger guards per-variant stock. It also answers catalog reads (existence,
// current price, current on-hand) as point-in-time snapshots.
type Ledger struct {
	log     *slog.Logger
	repo    VariantRepository
	tx      TxRunner
	metrics *metrics.Engine
	tracer  trace.Tracer
	now     func() time.Time
}

func NewLedger(log *slog.Logger, repo VariantRepository, tx TxRunner, m *metrics.Engine) *Ledger {
	return &Ledger{
		log:     log,
		repo:    repo,
		tx:      tx,
		metrics: m,
		tracer:  otel.Tracer("inventory-ledger"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (l *Ledger) Variant(ctx context.Context, id string) (domain.Variant, error) {
	return l.repo.Get(ctx, id)
}

// Reserve atomically takes qty units of a variant or fails without mutation.
func (l *Ledger) Reserve(ctx context.Context, variantID string, qty int) (domain.Variant, error) {
	if qty < 1 {
		return domain.Variant{}, fmt.Errorf("%w: quantity must be at least 1", apperr.ErrInvalidInput)
	}
	v, err := l.repo.Reserve(ctx, variantID, qty)
	if err != nil {
		return domain.Variant{}, err
	}
	l.metrics.UnitsReserved.Add(ctx, int64(qty))
	if v.LowStock() {
		l.metrics.LowStock.Add(ctx, 1)
		l.log.Warn("variant at reorder level", "variant_id", v.ID, "on_hand", v.QuantityOnHand, "reorder_level", v.ReorderLevel)
	}
	return v, nil
}

// Release returns previously reserved units.
func (l *Ledger) Release(ctx context.Context, variantID string, qty int) (domain.Variant, error) {
	if qty < 1 {
		return domain.Variant{}, fmt.Errorf("%w: quantity must be at least 1", apperr.ErrInvalidInput)
	}
	v, err := l.repo.Release(ctx, variantID, qty)
	if err != nil {
		return domain.Variant{}, err
	}
	l.metrics.UnitsReleased.Add(ctx, int64(qty))
	return v, nil
}

// Restock records goods received for a variant.
func (l *Ledger) Restock(ctx context.Context, variantID string, qty int) (domain.Variant, error) {
	if qty < 1 {
		return domain.Variant{}, fmt.Errorf("%w: quantity must be at least 1", apperr.ErrInvalidInput)
	}
	return l.repo.Restock(ctx, variantID, qty, l.now())
}

// Upsert replaces catalog attributes of a variant. Existing stock is kept
// unless the variant is new.
func (l *Ledger) Upsert(ctx context.Context, v domain.Variant) error {
	return l.tx.InTx(ctx, func(ctx context.Context) error {
		current, err := l.repo.Get(ctx, v.ID)
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			if v.QuantityOnHand < 0 {
				return fmt.Errorf("%w: negative quantity", apperr.ErrInvalidInput)
			}
		case err != nil:
			return err
		default:
			v.QuantityOnHand = current.QuantityOnHand
			v.LastRestockedAt = current.LastRestockedAt
		}
		return l.repo.Save(ctx, v)
	})
}

func (l *Ledger) SetPrice(ctx context.Context, variantID string, priceCents int64) error {
	if priceCents < 0 {
		return fmt.Errorf("%w: negative price", apperr.ErrInvalidInput)
	}
	return l.repo.SetPrice(ctx, variantID, priceCents)
}

// ReserveAll reserves every movement or none. Movements are applied in
// ascending variant order so concurrent batches lock rows consistently. The
// first failing movement is reported as a RejectedError.
func (l *Ledger) ReserveAll(ctx context.Context, moves []domain.Movement) ([]domain.Variant, error) {
	ctx, span := l.tracer.Start(ctx, "ReserveAll", trace.WithAttributes(attribute.Int("lines", len(moves))))
	defer span.End()

	ordered := slices.SortedFunc(slices.Values(moves), func(a, b domain.Movement) int {
		return cmp.Compare(a.VariantID, b.VariantID)
	})

	var out []domain.Variant
	err := l.tx.InTx(ctx, func(ctx context.Context) error {
		out = out[:0]
		for _, m := range ordered {
			v, err := l.Reserve(ctx, m.VariantID, m.Quantity)
			switch {
			case err == nil:
				out = append(out, v)
			case errors.Is(err, apperr.ErrInsufficientStock):
				return apperr.Rejected("insufficient stock", m.VariantID, err)
			case errors.Is(err, apperr.ErrNotFound):
				return apperr.Rejected("variant not found", m.VariantID, err)
			case errors.Is(err, apperr.ErrInvalidInput):
				return apperr.Rejected("invalid quantity", m.VariantID, err)
			default:
				return err
			}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return out, nil
}

// ReleaseAll returns every movement to stock inside one transaction, in the
// same ascending variant order as ReserveAll.
func (l *Ledger) ReleaseAll(ctx context.Context, moves []domain.Movement) error {
	ordered := slices.SortedFunc(slices.Values(moves), func(a, b domain.Movement) int {
		return cmp.Compare(a.VariantID, b.VariantID)
	})
	return l.tx.InTx(ctx, func(ctx context.Context) error {
		for _, m := range ordered {
			if _, err := l.Release(ctx, m.VariantID, m.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
}
