package application_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/checkout-engine/internal/inventory/application"
	"github.com/dmehra2102/checkout-engine/internal/inventory/domain"
	"github.com/dmehra2102/checkout-engine/internal/platform/apperr"
	"github.com/dmehra2102/checkout-engine/internal/platform/memdb"
	"github.com/dmehra2102/checkout-engine/pkg/metrics"
)

func newLedger(t *testing.T, stock map[string]int) (*application.Ledger, *memdb.DB) {
	t.Helper()
	db := memdb.New()
	for id, qty := range stock {
		require.NoError(t, db.Variants().Save(context.Background(), domain.Variant{ID: id, ProductID: "p-" + id, QuantityOnHand: qty, PriceCents: 1000}))
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return application.NewLedger(log, db.Variants(), db, metrics.Default()), db
}

func onHand(t *testing.T, l *application.Ledger, id string) int {
	t.Helper()
	v, err := l.Variant(context.Background(), id)
	require.NoError(t, err)
	return v.QuantityOnHand
}

func TestConcurrentReserveOnlyOneWins(t *testing.T) {
	l, _ := newLedger(t, map[string]int{"V": 5})

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = l.Reserve(context.Background(), "V", 3)
		}(i)
	}
	wg.Wait()

	var ok, short int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, apperr.ErrInsufficientStock):
			short++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, short)
	assert.Equal(t, 2, onHand(t, l, "V"))
}

func TestReserveReleaseConservesStock(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t, map[string]int{"V": 20})

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		reserved int
	)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			qty := i%3 + 1
			if _, err := l.Reserve(ctx, "V", qty); err != nil {
				assert.ErrorIs(t, err, apperr.ErrInsufficientStock)
				return
			}
			if i%2 == 0 {
				_, err := l.Release(ctx, "V", qty)
				assert.NoError(t, err)
				return
			}
			mu.Lock()
			reserved += qty
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	got := onHand(t, l, "V")
	assert.GreaterOrEqual(t, got, 0)
	assert.Equal(t, 20-reserved, got)
}

func TestReserveValidatesQuantity(t *testing.T) {
	l, _ := newLedger(t, map[string]int{"V": 5})

	_, err := l.Reserve(context.Background(), "V", 0)
	require.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = l.Reserve(context.Background(), "missing", 1)
	require.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, 5, onHand(t, l, "V"))
}

func TestReserveAllIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t, map[string]int{"A": 5, "B": 1, "C": 4})

	_, err := l.ReserveAll(ctx, []domain.Movement{
		{VariantID: "A", Quantity: 2},
		{VariantID: "C", Quantity: 1},
		{VariantID: "B", Quantity: 2},
	})
	require.ErrorIs(t, err, apperr.ErrOrderRejected)
	require.ErrorIs(t, err, apperr.ErrInsufficientStock)

	var rej *apperr.RejectedError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, "B", rej.VariantID)

	assert.Equal(t, 5, onHand(t, l, "A"))
	assert.Equal(t, 1, onHand(t, l, "B"))
	assert.Equal(t, 4, onHand(t, l, "C"))
}

func TestReserveAllReportsMissingVariant(t *testing.T) {
	l, _ := newLedger(t, map[string]int{"A": 5})

	_, err := l.ReserveAll(context.Background(), []domain.Movement{
		{VariantID: "A", Quantity: 1},
		{VariantID: "Z", Quantity: 1},
	})
	var rej *apperr.RejectedError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, "Z", rej.VariantID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, 5, onHand(t, l, "A"))
}

func TestStoreFailureIsNotARejection(t *testing.T) {
	l, db := newLedger(t, map[string]int{"A": 5})
	db.SetFault(func(op string) error {
		if op == "variants.reserve" {
			return errors.New("connection reset")
		}
		return nil
	})

	_, err := l.ReserveAll(context.Background(), []domain.Movement{{VariantID: "A", Quantity: 1}})
	require.ErrorIs(t, err, apperr.ErrStoreUnavailable)
	assert.NotErrorIs(t, err, apperr.ErrOrderRejected)
}

func TestRestockStampsTimeAndUpsertKeepsStock(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t, map[string]int{"A": 1})

	v, err := l.Restock(ctx, "A", 9)
	require.NoError(t, err)
	assert.Equal(t, 10, v.QuantityOnHand)
	require.NotNil(t, v.LastRestockedAt)

	require.NoError(t, l.Upsert(ctx, domain.Variant{ID: "A", ProductID: "p", Size: "M", QuantityOnHand: 999, PriceCents: 1500}))
	got, err := l.Variant(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, 10, got.QuantityOnHand)
	assert.Equal(t, "M", got.Size)
	assert.EqualValues(t, 1500, got.PriceCents)
}

// releaseOrder records the variant order in which stock is released.
type releaseOrder struct {
	application.VariantRepository
	mu  sync.Mutex
	ids []string
}

func (r *releaseOrder) Release(ctx context.Context, variantID string, qty int) (domain.Variant, error) {
	r.mu.Lock()
	r.ids = append(r.ids, variantID)
	r.mu.Unlock()
	return r.VariantRepository.Release(ctx, variantID, qty)
}

func TestReleaseAllLocksInVariantOrder(t *testing.T) {
	db := memdb.New()
	for _, id := range []string{"A", "B", "C"} {
		require.NoError(t, db.Variants().Save(context.Background(), domain.Variant{ID: id, ProductID: "p", QuantityOnHand: 1}))
	}
	rec := &releaseOrder{VariantRepository: db.Variants()}
	l := application.NewLedger(slog.New(slog.NewTextHandler(io.Discard, nil)), rec, db, metrics.Default())

	err := l.ReleaseAll(context.Background(), []domain.Movement{
		{VariantID: "C", Quantity: 1}, {VariantID: "A", Quantity: 2}, {VariantID: "B", Quantity: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, rec.ids)
	assert.Equal(t, 3, onHand(t, l, "A"))
	assert.Equal(t, 4, onHand(t, l, "B"))
	assert.Equal(t, 2, onHand(t, l, "C"))
}
