package application_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	addrapp "github.com/dmehra2102/checkout-engine/internal/address/application"
	addrdomain "github.com/dmehra2102/checkout-engine/internal/address/domain"
	cartapp "github.com/dmehra2102/checkout-engine/internal/cart/application"
	invapp "github.com/dmehra2102/checkout-engine/internal/inventory/application"
	invdomain "github.com/dmehra2102/checkout-engine/internal/inventory/domain"
	"github.com/dmehra2102/checkout-engine/internal/order/application"
	"github.com/dmehra2102/checkout-engine/internal/order/domain"
	payapp "github.com/dmehra2102/checkout-engine/internal/payment/application"
	paydomain "github.com/dmehra2102/checkout-engine/internal/payment/domain"
	"github.com/dmehra2102/checkout-engine/internal/platform/apperr"
	"github.com/dmehra2102/checkout-engine/internal/platform/memdb"
	"github.com/dmehra2102/checkout-engine/internal/pricing"
	"github.com/dmehra2102/checkout-engine/pkg/metrics"
	"github.com/dmehra2102/checkout-engine/pkg/outbox"
)

type engine struct {
	db        *memdb.DB
	ledger    *invapp.Ledger
	cart      *cartapp.Service
	addresses *addrapp.Service
	payments  *payapp.Service
	assembler *application.Assembler
	lifecycle *application.Lifecycle
	shipTo    string
}

func newEngine(t *testing.T, policy domain.CancelPolicy) *engine {
	t.Helper()
	ctx := context.Background()
	db := memdb.New()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.Default()

	for _, v := range []invdomain.Variant{
		{ID: "A", ProductID: "tee", Size: "M", Color: "black", QuantityOnHand: 10, ReorderLevel: 2, PriceCents: 1000},
		{ID: "B", ProductID: "hoodie", Size: "L", Color: "grey", QuantityOnHand: 5, ReorderLevel: 1, PriceCents: 2500},
		{ID: "C", ProductID: "cap", QuantityOnHand: 1, PriceCents: 800},
	} {
		require.NoError(t, db.Variants().Save(ctx, v))
	}

	e := &engine{db: db}
	e.ledger = invapp.NewLedger(log, db.Variants(), db, m)
	e.cart = cartapp.NewService(log, db.CartLines(), e.ledger, db)
	e.addresses = addrapp.NewService(log, db.Addresses(), db)
	e.payments = payapp.NewService(log, db.Payments(), db.Outbox(), db, m)
	e.assembler = application.NewAssembler(log, application.AssemblerDeps{
		Orders:    db.Orders(),
		Ledger:    e.ledger,
		Carts:     e.cart,
		Addresses: e.addresses,
		Payments:  e.payments,
		Pricing:   pricing.Fixed{TaxCents: 300, ShippingCents: 500},
		Outbox:    db.Outbox(),
		Tx:        db,
		Metrics:   m,
	})
	e.lifecycle = application.NewLifecycle(log, application.LifecycleDeps{
		Orders:   db.Orders(),
		Ledger:   e.ledger,
		Payments: e.payments,
		Outbox:   db.Outbox(),
		Tx:       db,
		Policy:   policy,
		Metrics:  m,
	})

	addr, err := e.addresses.Create(ctx, "U", addrdomain.Address{Label: "home", Street: "1 Main St", City: "Springfield", Country: "US", IsDefault: true})
	require.NoError(t, err)
	e.shipTo = addr.ID
	return e
}

func (e *engine) onHand(t *testing.T, id string) int {
	t.Helper()
	v, err := e.ledger.Variant(context.Background(), id)
	require.NoError(t, err)
	return v.QuantityOnHand
}

func (e *engine) place(lines ...application.LineRequest) (domain.Order, error) {
	return e.assembler.CreateOrder(context.Background(), application.PlaceOrder{
		UserID:            "U",
		ShippingAddressID: e.shipTo,
		PaymentMethod:     "card",
		Lines:             lines,
	})
}

func eventTypes(evs []outbox.Event) []string {
	var out []string
	for _, ev := range evs {
		out = append(out, ev.Type)
	}
	return out
}

func TestCreateOrderScenario(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, domain.CancelPendingOnly)

	o, err := e.place(
		application.LineRequest{VariantID: "A", Quantity: 2},
		application.LineRequest{VariantID: "B", Quantity: 1},
	)
	require.NoError(t, err)

	assert.EqualValues(t, 4500, o.SubtotalCents)
	assert.EqualValues(t, 300, o.TaxCents)
	assert.EqualValues(t, 500, o.ShippingCents)
	assert.EqualValues(t, 5300, o.TotalCents)
	assert.True(t, o.Consistent())
	assert.Equal(t, domain.StatusPending, o.Status)
	assert.Regexp(t, `^ORD-\d{8}-\d{6}$`, o.Number)
	assert.Equal(t, e.shipTo, o.BillingAddressID, "billing defaults to shipping")

	assert.Equal(t, 8, e.onHand(t, "A"))
	assert.Equal(t, 4, e.onHand(t, "B"))

	p, err := e.payments.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, paydomain.StatusPending, p.Status)
	assert.Equal(t, o.TotalCents, p.AmountCents)

	stored, err := e.lifecycle.Get(ctx, "U", o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.Lines, stored.Lines)
	assert.Contains(t, eventTypes(e.db.Outbox().Events(ctx)), domain.EventOrderPlaced)

	cancelled, err := e.lifecycle.Cancel(ctx, "U", o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	assert.Equal(t, 10, e.onHand(t, "A"))
	assert.Equal(t, 5, e.onHand(t, "B"))
}

func TestCreateOrderIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, domain.CancelPendingOnly)
	_, err := e.cart.AddItem(ctx, "U", "A", 1)
	require.NoError(t, err)

	_, err = e.place(
		application.LineRequest{VariantID: "A", Quantity: 3},
		application.LineRequest{VariantID: "B", Quantity: 2},
		application.LineRequest{VariantID: "C", Quantity: 2},
	)
	require.ErrorIs(t, err, apperr.ErrOrderRejected)
	require.ErrorIs(t, err, apperr.ErrInsufficientStock)
	var rej *apperr.RejectedError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, "C", rej.VariantID)

	assert.Equal(t, 10, e.onHand(t, "A"))
	assert.Equal(t, 5, e.onHand(t, "B"))
	assert.Equal(t, 1, e.onHand(t, "C"))

	orders, total, err := e.lifecycle.ListByUser(ctx, "U", domain.ListFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, orders)
	assert.Empty(t, e.db.Outbox().Events(ctx))

	c, err := e.cart.List(ctx, "U")
	require.NoError(t, err)
	assert.Len(t, c.Lines, 1, "a rejected order leaves the cart alone")
}

func TestCreateOrderRejections(t *testing.T) {
	e := newEngine(t, domain.CancelPendingOnly)

	_, err := e.place()
	assert.ErrorIs(t, err, apperr.ErrOrderRejected)

	_, err = e.place(application.LineRequest{VariantID: "A", Quantity: 0})
	assert.ErrorIs(t, err, apperr.ErrOrderRejected)

	_, err = e.place(application.LineRequest{VariantID: "A", Quantity: 1}, application.LineRequest{VariantID: "nope", Quantity: 1})
	var rej *apperr.RejectedError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, "nope", rej.VariantID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, 10, e.onHand(t, "A"))
}

func TestCreateOrderMergesDuplicateVariants(t *testing.T) {
	e := newEngine(t, domain.CancelPendingOnly)

	o, err := e.place(
		application.LineRequest{VariantID: "A", Quantity: 1},
		application.LineRequest{VariantID: "A", Quantity: 2},
	)
	require.NoError(t, err)
	require.Len(t, o.Lines, 1)
	assert.Equal(t, 3, o.Lines[0].Quantity)
	assert.Equal(t, 7, e.onHand(t, "A"))
}

func TestCreateOrderChecksAddressOwnership(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, domain.CancelPendingOnly)
	theirs, err := e.addresses.Create(ctx, "V", addrdomain.Address{Street: "2 Elm", City: "Shelbyville", Country: "US"})
	require.NoError(t, err)

	_, err = e.assembler.CreateOrder(ctx, application.PlaceOrder{
		UserID: "U", ShippingAddressID: theirs.ID, PaymentMethod: "card",
		Lines: []application.LineRequest{{VariantID: "A", Quantity: 1}},
	})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = e.assembler.CreateOrder(ctx, application.PlaceOrder{
		UserID: "U", ShippingAddressID: e.shipTo, BillingAddressID: theirs.ID, PaymentMethod: "card",
		Lines: []application.LineRequest{{VariantID: "A", Quantity: 1}},
	})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = e.assembler.CreateOrder(ctx, application.PlaceOrder{
		UserID: "U", ShippingAddressID: e.shipTo, PaymentMethod: "iou",
		Lines: []application.LineRequest{{VariantID: "A", Quantity: 1}},
	})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	assert.Equal(t, 10, e.onHand(t, "A"))
}

// watchedTx marks when a placement transaction is open.
type watchedTx struct {
	*memdb.DB
	open bool
}

func (w *watchedTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return w.DB.InTx(ctx, func(ctx context.Context) error {
		w.open = true
		defer func() { w.open = false }()
		return fn(ctx)
	})
}

// addressLookups records whether each lookup ran inside the transaction.
type addressLookups struct {
	application.Addresses
	tx   *watchedTx
	inTx []bool
}

func (a *addressLookups) Get(ctx context.Context, userID, id string) (addrdomain.Address, error) {
	a.inTx = append(a.inTx, a.tx.open)
	return a.Addresses.Get(ctx, userID, id)
}

func TestAddressesAreReadInsideThePlacementTransaction(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, domain.CancelPendingOnly)
	billTo, err := e.addresses.Create(ctx, "U", addrdomain.Address{Street: "9 Bay Rd", City: "Ogdenville", Country: "US"})
	require.NoError(t, err)

	tx := &watchedTx{DB: e.db}
	lookups := &addressLookups{Addresses: e.addresses, tx: tx}
	assembler := application.NewAssembler(slog.New(slog.NewTextHandler(io.Discard, nil)), application.AssemblerDeps{
		Orders:    e.db.Orders(),
		Ledger:    e.ledger,
		Carts:     e.cart,
		Addresses: lookups,
		Payments:  e.payments,
		Outbox:    e.db.Outbox(),
		Tx:        tx,
		Metrics:   metrics.Default(),
	})

	req := application.PlaceOrder{
		UserID: "U", ShippingAddressID: e.shipTo, BillingAddressID: billTo.ID, PaymentMethod: "card",
		Lines: []application.LineRequest{{VariantID: "A", Quantity: 1}},
	}
	_, err = assembler.CreateOrder(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, true}, lookups.inTx)

	require.NoError(t, e.addresses.Delete(ctx, "U", billTo.ID))
	_, err = assembler.CreateOrder(ctx, req)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, 9, e.onHand(t, "A"))
}

func TestPriceImmutability(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, domain.CancelPendingOnly)

	o, err := e.place(application.LineRequest{VariantID: "A", Quantity: 2})
	require.NoError(t, err)
	require.NoError(t, e.ledger.SetPrice(ctx, "A", 9999))

	stored, err := e.lifecycle.Get(ctx, "U", o.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1000, stored.Lines[0].UnitPriceCents)
	assert.EqualValues(t, 2800, stored.TotalCents)
}

func TestCheckoutUsesCartSnapshotAndClearsCart(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, domain.CancelPendingOnly)

	_, err := e.cart.AddItem(ctx, "U", "A", 2)
	require.NoError(t, err)
	_, err = e.cart.AddItem(ctx, "U", "B", 1)
	require.NoError(t, err)
	require.NoError(t, e.ledger.SetPrice(ctx, "A", 1500))

	o, err := e.assembler.Checkout(ctx, application.Checkout{UserID: "U", ShippingAddressID: e.shipTo, PaymentMethod: "paypal"})
	require.NoError(t, err)
	assert.EqualValues(t, 4500, o.SubtotalCents, "cart prices win over the live catalog")
	assert.EqualValues(t, 5300, o.TotalCents)
	assert.Equal(t, "paypal", o.PaymentMethod)

	c, err := e.cart.List(ctx, "U")
	require.NoError(t, err)
	assert.Empty(t, c.Lines)

	_, err = e.assembler.Checkout(ctx, application.Checkout{UserID: "U", ShippingAddressID: e.shipTo, PaymentMethod: "paypal"})
	assert.ErrorIs(t, err, apperr.ErrOrderRejected)
}

func TestCheckoutRejectionKeepsCart(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, domain.CancelPendingOnly)

	_, err := e.cart.AddItem(ctx, "U", "A", 1)
	require.NoError(t, err)
	_, err = e.cart.AddItem(ctx, "U", "C", 1)
	require.NoError(t, err)
	_, err = e.ledger.Reserve(ctx, "C", 1)
	require.NoError(t, err)

	_, err = e.assembler.Checkout(ctx, application.Checkout{UserID: "U", ShippingAddressID: e.shipTo, PaymentMethod: "card"})
	require.ErrorIs(t, err, apperr.ErrOrderRejected)
	require.ErrorIs(t, err, apperr.ErrInsufficientStock)

	c, err := e.cart.List(ctx, "U")
	require.NoError(t, err)
	assert.Len(t, c.Lines, 2)
	assert.Equal(t, 10, e.onHand(t, "A"))
}

func TestLowStockEventIsEmitted(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, domain.CancelPendingOnly)

	_, err := e.place(application.LineRequest{VariantID: "B", Quantity: 4})
	require.NoError(t, err)
	assert.Contains(t, eventTypes(e.db.Outbox().Events(ctx)), domain.EventVariantLowStock)
}

func TestStoreFailureRollsBackEverything(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, domain.CancelPendingOnly)
	_, err := e.cart.AddItem(ctx, "U", "A", 1)
	require.NoError(t, err)

	e.db.SetFault(func(op string) error {
		if op == "payments.insert" {
			return errors.New("disk full")
		}
		return nil
	})
	_, err = e.place(application.LineRequest{VariantID: "A", Quantity: 2})
	require.ErrorIs(t, err, apperr.ErrStoreUnavailable)
	assert.NotErrorIs(t, err, apperr.ErrOrderRejected)

	e.db.SetFault(nil)
	assert.Equal(t, 10, e.onHand(t, "A"))
	orders, _, err := e.lifecycle.ListByUser(ctx, "U", domain.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestOrderNumberCollisionRetries(t *testing.T) {
	e := newEngine(t, domain.CancelPendingOnly)
	numbers := []string{"ORD-20260101-000001", "ORD-20260101-000001", "ORD-20260101-000002"}
	application.SetNumberer(e.assembler, func(time.Time) string {
		n := numbers[0]
		numbers = numbers[1:]
		return n
	})

	first, err := e.place(application.LineRequest{VariantID: "A", Quantity: 1})
	require.NoError(t, err)
	second, err := e.place(application.LineRequest{VariantID: "A", Quantity: 1})
	require.NoError(t, err)

	assert.Equal(t, "ORD-20260101-000001", first.Number)
	assert.Equal(t, "ORD-20260101-000002", second.Number)
	assert.Equal(t, 8, e.onHand(t, "A"), "the collided attempt reserved nothing")
}

func TestOrderNumberCollisionGivesUp(t *testing.T) {
	e := newEngine(t, domain.CancelPendingOnly)
	application.SetNumberer(e.assembler, func(time.Time) string { return "ORD-20260101-000001" })

	_, err := e.place(application.LineRequest{VariantID: "A", Quantity: 1})
	require.NoError(t, err)
	_, err = e.place(application.LineRequest{VariantID: "A", Quantity: 1})
	require.ErrorIs(t, err, apperr.ErrConflict)
	assert.Equal(t, 9, e.onHand(t, "A"))
}
