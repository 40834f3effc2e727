// Package pricing computes the charges added on top of an order subtotal and
// converts between cents and decimal amounts.
package pricing

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	addrdomain "github.com/dmehra2102/checkout-engine/internal/address/domain"
	"github.com/dmehra2102/checkout-engine/internal/platform/apperr"
)

type Quote struct {
	SubtotalCents   int64
	ShippingAddress addrdomain.Address
}

type Charges struct {
	TaxCents      int64
	ShippingCents int64
}

// Calculator supplies tax and shipping for an order subtotal and address.
type Calculator interface {
	Quote(ctx context.Context, q Quote) (Charges, error)
}

// Fixed charges the same amounts for every order. The zero value charges
// nothing.
type Fixed struct {
	TaxCents      int64
	ShippingCents int64
}

func (f Fixed) Quote(_ context.Context, _ Quote) (Charges, error) {
	return Charges{TaxCents: f.TaxCents, ShippingCents: f.ShippingCents}, nil
}

// Rate charges a proportional tax rounded half-up to the cent and a flat
// shipping fee waived at or above FreeShippingOverCents (when positive).
type Rate struct {
	TaxRate               decimal.Decimal
	ShippingCents         int64
	FreeShippingOverCents int64
}

func NewRate(taxRate string, shippingCents, freeOverCents int64) (Rate, error) {
	r, err := decimal.NewFromString(taxRate)
	if err != nil {
		return Rate{}, fmt.Errorf("%w: tax rate %q: %v", apperr.ErrInvalidInput, taxRate, err)
	}
	if r.IsNegative() || shippingCents < 0 {
		return Rate{}, fmt.Errorf("%w: negative pricing input", apperr.ErrInvalidInput)
	}
	return Rate{TaxRate: r, ShippingCents: shippingCents, FreeShippingOverCents: freeOverCents}, nil
}

func (r Rate) Quote(_ context.Context, q Quote) (Charges, error) {
	if q.SubtotalCents < 0 {
		return Charges{}, fmt.Errorf("%w: negative subtotal", apperr.ErrInvalidInput)
	}
	tax := decimal.NewFromInt(q.SubtotalCents).Mul(r.TaxRate).Round(0)
	shipping := r.ShippingCents
	if r.FreeShippingOverCents > 0 && q.SubtotalCents >= r.FreeShippingOverCents {
		shipping = 0
	}
	return Charges{TaxCents: tax.IntPart(), ShippingCents: shipping}, nil
}

func LineSubtotal(unitCents int64, qty int) int64 {
	return unitCents * int64(qty)
}

// Amount renders cents as a two-decimal amount, e.g. 4500 -> "45.00".
func Amount(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// ParseCents converts a decimal amount such as "5" or "5.25" to cents.
func ParseCents(amount string) (int64, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return 0, fmt.Errorf("%w: amount %q: %v", apperr.ErrInvalidInput, amount, err)
	}
	return d.Shift(2).Round(0).IntPart(), nil
}
