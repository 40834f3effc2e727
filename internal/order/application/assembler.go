package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	invdomain "github.com/dmehra2102/checkout-engine/internal/inventory/domain"
	"github.com/dmehra2102/checkout-engine/internal/order/domain"
	paydomain "github.com/dmehra2102/checkout-engine/internal/payment/domain"
	"github.com/dmehra2102/checkout-engine/internal/platform/apperr"
	"github.com/dmehra2102/checkout-engine/internal/pricing"
	"github.com/dmehra2102/checkout-engine/pkg/metrics"
	"github.com/dmehra2102/checkout-engine/pkg/outbox"
)

const numberAttempts = 5

type LineRequest struct {
	VariantID string
	Quantity  int
}

// PlaceOrder is an order built from explicit lines. Unit prices are read
// from the catalog at placement time.
type PlaceOrder struct {
	UserID            string
	ShippingAddressID string
	BillingAddressID  string
	PaymentMethod     string
	Lines             []LineRequest
}

// Checkout places an order from the user's cart at the cart's prices.
type Checkout struct {
	UserID            string
	ShippingAddressID string
	BillingAddressID  string
	PaymentMethod     string
}

// wanted is one merged line; priced lines carry their snapshot.
type wanted struct {
	variantID string
	qty       int
	unitCents int64
	priced    bool
}

type Assembler struct {
	log       *slog.Logger
	orders    OrderRepository
	ledger    Ledger
	carts     Carts
	addresses Addresses
	payments  Payments
	pricing   pricing.Calculator
	outbox    outbox.Appender
	tx        TxRunner
	metrics   *metrics.Engine
	tracer    trace.Tracer
	now       func() time.Time
	number    func(time.Time) string
}

type AssemblerDeps struct {
	Orders    OrderRepository
	Ledger    Ledger
	Carts     Carts
	Addresses Addresses
	Payments  Payments
	Pricing   pricing.Calculator
	Outbox    outbox.Appender
	Tx        TxRunner
	Metrics   *metrics.Engine
}

func NewAssembler(log *slog.Logger, d AssemblerDeps) *Assembler {
	calc := d.Pricing
	if calc == nil {
		calc = pricing.Fixed{}
	}
	return &Assembler{
		log:       log,
		orders:    d.Orders,
		ledger:    d.Ledger,
		carts:     d.Carts,
		addresses: d.Addresses,
		payments:  d.Payments,
		pricing:   calc,
		outbox:    d.Outbox,
		tx:        d.Tx,
		metrics:   d.Metrics,
		tracer:    otel.Tracer("order-assembler"),
		now:       func() time.Time { return time.Now().UTC() },
		number:    OrderNumber,
	}
}

// OrderNumber renders ORD-YYYYMMDD-NNNNNN with a random suffix.
func OrderNumber(now time.Time) string {
	return fmt.Sprintf("ORD-%s-%06d", now.Format("20060102"), rand.IntN(1_000_000))
}

// CreateOrder reserves every line and persists the order, its lines, a
// pending payment and the outbox event in one transaction, clearing the
// user's cart. Any failing line rejects the whole batch.
func (a *Assembler) CreateOrder(ctx context.Context, req PlaceOrder) (domain.Order, error) {
	if len(req.Lines) == 0 {
		return domain.Order{}, a.rejected(ctx, apperr.Rejected("order has no lines", "", nil))
	}
	merged := make([]wanted, 0, len(req.Lines))
	index := map[string]int{}
	for _, l := range req.Lines {
		if l.Quantity < 1 {
			return domain.Order{}, a.rejected(ctx, apperr.Rejected("invalid quantity", l.VariantID, apperr.ErrInvalidInput))
		}
		if i, ok := index[l.VariantID]; ok {
			merged[i].qty += l.Quantity
			continue
		}
		index[l.VariantID] = len(merged)
		merged = append(merged, wanted{variantID: l.VariantID, qty: l.Quantity})
	}
	return a.place(ctx, req.UserID, req.ShippingAddressID, req.BillingAddressID, req.PaymentMethod,
		func(context.Context) ([]wanted, error) { return merged, nil })
}

// Checkout turns the user's cart into an order. An empty cart is rejected.
func (a *Assembler) Checkout(ctx context.Context, req Checkout) (domain.Order, error) {
	return a.place(ctx, req.UserID, req.ShippingAddressID, req.BillingAddressID, req.PaymentMethod,
		func(ctx context.Context) ([]wanted, error) {
			c, err := a.carts.List(ctx, req.UserID)
			if err != nil {
				return nil, err
			}
			if len(c.Lines) == 0 {
				return nil, apperr.Rejected("cart is empty", "", nil)
			}
			out := make([]wanted, len(c.Lines))
			for i, l := range c.Lines {
				out[i] = wanted{variantID: l.VariantID, qty: l.Quantity, unitCents: l.UnitPriceCents, priced: true}
			}
			return out, nil
		})
}

func (a *Assembler) place(ctx context.Context, userID, shipID, billID, method string, lines func(context.Context) ([]wanted, error)) (domain.Order, error) {
	ctx, span := a.tracer.Start(ctx, "PlaceOrder", trace.WithAttributes(attribute.String("user_id", userID)))
	defer span.End()

	if userID == "" {
		return domain.Order{}, fmt.Errorf("%w: missing user", apperr.ErrInvalidInput)
	}
	if !paydomain.ValidMethod(method) {
		return domain.Order{}, fmt.Errorf("%w: unsupported payment method %q", apperr.ErrInvalidInput, method)
	}
	if billID == "" {
		billID = shipID
	}

	// Once stock starts moving the caller can no longer abandon the request
	// halfway; the transaction either commits or rolls back as a whole.
	ctx = context.WithoutCancel(ctx)

	var (
		o   domain.Order
		err error
	)
	for attempt := 1; ; attempt++ {
		o, err = a.attempt(ctx, userID, shipID, billID, method, lines)
		if err == nil {
			break
		}
		if !errors.Is(err, apperr.ErrConflict) || attempt == numberAttempts {
			span.RecordError(err)
			if errors.Is(err, apperr.ErrOrderRejected) {
				return domain.Order{}, a.rejected(ctx, err)
			}
			return domain.Order{}, err
		}
		a.log.Warn("order number collision, retrying", "attempt", attempt, "err", err)
	}

	a.metrics.OrdersPlaced.Add(ctx, 1)
	a.log.Info("order placed", "order_id", o.ID, "number", o.Number, "user_id", userID, "total_cents", o.TotalCents)
	return o, nil
}

// attempt reads both addresses in the same transaction that writes the
// order, so an address deleted concurrently is either seen as missing or
// still present at commit.
func (a *Assembler) attempt(ctx context.Context, userID, shipID, billID, method string, lines func(context.Context) ([]wanted, error)) (domain.Order, error) {
	var o domain.Order
	err := a.tx.InTx(ctx, func(ctx context.Context) error {
		ship, err := a.addresses.Get(ctx, userID, shipID)
		if err != nil {
			return err
		}
		if billID != shipID {
			if _, err := a.addresses.Get(ctx, userID, billID); err != nil {
				return err
			}
		}
		want, err := lines(ctx)
		if err != nil {
			return err
		}
		moves := make([]invdomain.Movement, len(want))
		for i, w := range want {
			moves[i] = invdomain.Movement{VariantID: w.variantID, Quantity: w.qty}
		}
		reserved, err := a.ledger.ReserveAll(ctx, moves)
		if err != nil {
			return err
		}
		byID := make(map[string]invdomain.Variant, len(reserved))
		for _, v := range reserved {
			byID[v.ID] = v
		}

		orderLines := make([]domain.Line, len(want))
		var subtotal int64
		for i, w := range want {
			unit := w.unitCents
			if !w.priced {
				unit = byID[w.variantID].PriceCents
			}
			orderLines[i] = domain.NewLine(w.variantID, w.qty, unit)
			subtotal += orderLines[i].SubtotalCents
		}
		charges, err := a.pricing.Quote(ctx, pricing.Quote{SubtotalCents: subtotal, ShippingAddress: ship})
		if err != nil {
			return err
		}

		now := a.now()
		o = domain.NewOrder(uuid.NewString(), a.number(now), userID, orderLines, charges.TaxCents, charges.ShippingCents, now)
		o.ShippingAddressID = ship.ID
		o.BillingAddressID = billID
		o.PaymentMethod = method

		if err := a.orders.Insert(ctx, o); err != nil {
			return err
		}
		if _, err := a.payments.Create(ctx, o.ID, method, o.TotalCents); err != nil {
			return err
		}
		if err := a.carts.Clear(ctx, userID); err != nil {
			return err
		}
		return a.emitPlaced(ctx, o, reserved)
	})
	return o, err
}

func (a *Assembler) emitPlaced(ctx context.Context, o domain.Order, reserved []invdomain.Variant) error {
	ev, err := outbox.NewEvent(ctx, "order", o.ID, domain.EventOrderPlaced, domain.OrderPlaced{
		OrderID:    o.ID,
		Number:     o.Number,
		UserID:     o.UserID,
		TotalCents: o.TotalCents,
		Lines:      o.Lines,
	})
	if err != nil {
		return err
	}
	if err := a.outbox.Append(ctx, ev); err != nil {
		return err
	}
	for _, v := range reserved {
		if !v.LowStock() {
			continue
		}
		ev, err := outbox.NewEvent(ctx, "variant", v.ID, domain.EventVariantLowStock, invdomain.VariantLowStock{
			VariantID:      v.ID,
			QuantityOnHand: v.QuantityOnHand,
			ReorderLevel:   v.ReorderLevel,
		})
		if err != nil {
			return err
		}
		if err := a.outbox.Append(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

func (a *Assembler) rejected(ctx context.Context, err error) error {
	var rej *apperr.RejectedError
	if errors.As(err, &rej) {
		a.metrics.OrdersRejected.Add(ctx, 1, metrics.Reason(rej.Reason))
		a.log.Info("order rejected", "reason", rej.Reason, "variant_id", rej.VariantID)
	}
	return err
}
