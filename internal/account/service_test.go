package account_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/checkout-engine/internal/account"
	addrdomain "github.com/dmehra2102/checkout-engine/internal/address/domain"
	cartdomain "github.com/dmehra2102/checkout-engine/internal/cart/domain"
	invdomain "github.com/dmehra2102/checkout-engine/internal/inventory/domain"
	orderdomain "github.com/dmehra2102/checkout-engine/internal/order/domain"
	"github.com/dmehra2102/checkout-engine/internal/platform/apperr"
	"github.com/dmehra2102/checkout-engine/internal/platform/memdb"
)

func TestPurgeUserKeepsOrderHistory(t *testing.T) {
	ctx := context.Background()
	db := memdb.New()
	now := time.Now()
	require.NoError(t, db.Variants().Save(ctx, invdomain.Variant{ID: "A", QuantityOnHand: 5, PriceCents: 100}))
	_, err := db.CartLines().Merge(ctx, cartdomain.Line{ID: "l1", UserID: "U", VariantID: "A", Quantity: 1, AddedAt: now})
	require.NoError(t, err)
	require.NoError(t, db.Addresses().Insert(ctx, addrdomain.Address{ID: "a1", UserID: "U", IsDefault: true, CreatedAt: now}))
	require.NoError(t, db.Addresses().Insert(ctx, addrdomain.Address{ID: "a2", UserID: "V", CreatedAt: now}))
	o := orderdomain.NewOrder("o1", "ORD-20260101-000001", "U", []orderdomain.Line{orderdomain.NewLine("A", 1, 100)}, 0, 0, now)
	o.ShippingAddressID = "a1"
	require.NoError(t, db.Orders().Insert(ctx, o))

	svc := account.NewService(slog.New(slog.NewTextHandler(io.Discard, nil)), db.CartLines(), db.Addresses(), db)
	require.NoError(t, svc.PurgeUser(ctx, "U"))

	lines, err := db.CartLines().List(ctx, "U")
	require.NoError(t, err)
	assert.Empty(t, lines)
	addrs, err := db.Addresses().List(ctx, "U")
	require.NoError(t, err)
	assert.Empty(t, addrs)

	_, err = db.Addresses().Get(ctx, "V", "a2")
	assert.NoError(t, err, "other users are untouched")

	kept, err := db.Orders().Get(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, "a1", kept.ShippingAddressID)
}

func TestPurgeUserIsAtomic(t *testing.T) {
	ctx := context.Background()
	db := memdb.New()
	require.NoError(t, db.Variants().Save(ctx, invdomain.Variant{ID: "A", QuantityOnHand: 5}))
	_, err := db.CartLines().Merge(ctx, cartdomain.Line{ID: "l1", UserID: "U", VariantID: "A", Quantity: 1})
	require.NoError(t, err)

	db.SetFault(func(op string) error {
		if op == "addresses.delete_all" {
			return errors.New("lock timeout")
		}
		return nil
	})
	svc := account.NewService(slog.New(slog.NewTextHandler(io.Discard, nil)), db.CartLines(), db.Addresses(), db)
	err = svc.PurgeUser(ctx, "U")
	require.ErrorIs(t, err, apperr.ErrStoreUnavailable)

	db.SetFault(nil)
	lines, err := db.CartLines().List(ctx, "U")
	require.NoError(t, err)
	assert.Len(t, lines, 1)
}
