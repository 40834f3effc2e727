package application_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/checkout-engine/internal/cart/application"
	invapp "github.com/dmehra2102/checkout-engine/internal/inventory/application"
	invdomain "github.com/dmehra2102/checkout-engine/internal/inventory/domain"
	"github.com/dmehra2102/checkout-engine/internal/platform/apperr"
	"github.com/dmehra2102/checkout-engine/internal/platform/memdb"
	"github.com/dmehra2102/checkout-engine/pkg/metrics"
)

type fixture struct {
	db     *memdb.DB
	ledger *invapp.Ledger
	cart   *application.Service
}

func setup(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	db := memdb.New()
	require.NoError(t, db.Variants().Save(ctx, invdomain.Variant{ID: "A", ProductID: "p", QuantityOnHand: 5, PriceCents: 1000}))
	require.NoError(t, db.Variants().Save(ctx, invdomain.Variant{ID: "B", ProductID: "p", QuantityOnHand: 1, PriceCents: 2500}))

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	ledger := invapp.NewLedger(log, db.Variants(), db, metrics.Default())
	return fixture{db: db, ledger: ledger, cart: application.NewService(log, db.CartLines(), ledger, db)}
}

func TestAddItemMergesRepeatAdds(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	first, err := f.cart.AddItem(ctx, "U", "A", 2)
	require.NoError(t, err)
	second, err := f.cart.AddItem(ctx, "U", "A", 1)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	c, err := f.cart.List(ctx, "U")
	require.NoError(t, err)
	require.Len(t, c.Lines, 1)
	assert.Equal(t, 3, c.Lines[0].Quantity)
	assert.EqualValues(t, 3000, c.SubtotalCents)
}

func TestAddItemRefreshesPriceSnapshot(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	_, err := f.cart.AddItem(ctx, "U", "A", 1)
	require.NoError(t, err)
	require.NoError(t, f.ledger.SetPrice(ctx, "A", 1200))

	c, _ := f.cart.List(ctx, "U")
	assert.EqualValues(t, 1000, c.Lines[0].UnitPriceCents, "existing line keeps its snapshot")

	line, err := f.cart.AddItem(ctx, "U", "A", 1)
	require.NoError(t, err)
	assert.EqualValues(t, 1200, line.UnitPriceCents)
}

func TestAddItemChecksResultingQuantity(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	_, err := f.cart.AddItem(ctx, "U", "A", 4)
	require.NoError(t, err)
	_, err = f.cart.AddItem(ctx, "U", "A", 2)
	require.ErrorIs(t, err, apperr.ErrInsufficientStock)

	c, _ := f.cart.List(ctx, "U")
	assert.Equal(t, 4, c.Lines[0].Quantity)

	v, _ := f.ledger.Variant(ctx, "A")
	assert.Equal(t, 5, v.QuantityOnHand, "cart adds never reserve stock")
}

func TestAddItemValidation(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	_, err := f.cart.AddItem(ctx, "U", "A", 0)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	_, err = f.cart.AddItem(ctx, "U", "missing", 1)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = f.cart.AddItem(ctx, "U", "B", 2)
	assert.ErrorIs(t, err, apperr.ErrInsufficientStock)
}

func TestUpdateItem(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	line, err := f.cart.AddItem(ctx, "U", "A", 1)
	require.NoError(t, err)

	updated, err := f.cart.UpdateItem(ctx, "U", line.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, updated.Quantity)

	_, err = f.cart.UpdateItem(ctx, "U", line.ID, 6)
	assert.ErrorIs(t, err, apperr.ErrInsufficientStock)
	_, err = f.cart.UpdateItem(ctx, "other", line.ID, 1)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = f.cart.UpdateItem(ctx, "U", line.ID, 0)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestRemoveAndClearAreIdempotent(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	line, err := f.cart.AddItem(ctx, "U", "A", 1)
	require.NoError(t, err)
	_, err = f.cart.AddItem(ctx, "U", "B", 1)
	require.NoError(t, err)

	require.NoError(t, f.cart.RemoveItem(ctx, "U", line.ID))
	require.NoError(t, f.cart.RemoveItem(ctx, "U", line.ID))

	c, _ := f.cart.List(ctx, "U")
	assert.Len(t, c.Lines, 1)

	require.NoError(t, f.cart.Clear(ctx, "U"))
	require.NoError(t, f.cart.Clear(ctx, "U"))
	c, _ = f.cart.List(ctx, "U")
	assert.Empty(t, c.Lines)
}
