package domain

import (
	"time"

	"github.com/dmehra2102/checkout-engine/internal/pricing"
)

// Order is immutable once placed apart from its status and tracking number.
type Order struct {
	ID                string
	Number            string
	UserID            string
	Lines             []Line
	SubtotalCents     int64
	TaxCents          int64
	ShippingCents     int64
	TotalCents        int64
	ShippingAddressID string
	BillingAddressID  string
	PaymentMethod     string
	Status            Status
	TrackingNumber    string
	OrderedAt         time.Time
	UpdatedAt         time.Time
}

// Line captures the unit price at the time of order; it is never edited.
type Line struct {
	OrderID        string
	VariantID      string
	Quantity       int
	UnitPriceCents int64
	SubtotalCents  int64
}

func NewLine(variantID string, qty int, unitPriceCents int64) Line {
	return Line{
		VariantID:      variantID,
		Quantity:       qty,
		UnitPriceCents: unitPriceCents,
		SubtotalCents:  pricing.LineSubtotal(unitPriceCents, qty),
	}
}

// NewOrder computes the totals once from the captured line prices.
func NewOrder(id, number, userID string, lines []Line, taxCents, shippingCents int64, now time.Time) Order {
	var subtotal int64
	out := make([]Line, len(lines))
	for i, l := range lines {
		l.OrderID = id
		subtotal += l.SubtotalCents
		out[i] = l
	}
	return Order{
		ID:            id,
		Number:        number,
		UserID:        userID,
		Lines:         out,
		SubtotalCents: subtotal,
		TaxCents:      taxCents,
		ShippingCents: shippingCents,
		TotalCents:    subtotal + taxCents + shippingCents,
		Status:        StatusPending,
		OrderedAt:     now,
		UpdatedAt:     now,
	}
}

// Consistent reports whether total = subtotal + tax + shipping and
// subtotal = sum of line subtotals.
func (o Order) Consistent() bool {
	var sum int64
	for _, l := range o.Lines {
		if l.SubtotalCents != pricing.LineSubtotal(l.UnitPriceCents, l.Quantity) {
			return false
		}
		sum += l.SubtotalCents
	}
	return sum == o.SubtotalCents && o.TotalCents == o.SubtotalCents+o.TaxCents+o.ShippingCents
}

// ListFilter narrows listOrdersByUser.
type ListFilter struct {
	Status Status
	Limit  int
	Offset int
}

func (f ListFilter) Normalize() ListFilter {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}
