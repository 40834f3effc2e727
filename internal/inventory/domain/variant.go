package domain

import "time"

// Variant is a concrete purchasable unit: product x size x color.
type Variant struct {
	ID              string
	ProductID       string
	Size            string
	Color           string
	QuantityOnHand  int
	ReorderLevel    int
	PriceCents      int64
	LastRestockedAt *time.Time
	UpdatedAt       time.Time
}

// LowStock reports whether on-hand quantity has reached the reorder threshold.
func (v Variant) LowStock() bool {
	return v.QuantityOnHand <= v.ReorderLevel
}

// Movement is a single ledger mutation applied to a variant.
type Movement struct {
	VariantID string
	Quantity  int
}

type StockReserved struct {
	VariantID      string
	Quantity       int
	QuantityOnHand int
}

type VariantLowStock struct {
	VariantID      string
	QuantityOnHand int
	ReorderLevel   int
}
