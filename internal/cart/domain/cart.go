package domain

import "time"

// Line is one (user, variant) selection. UnitPriceCents is the price snapshot
// taken when the line was last added to.
type Line struct {
	ID             string
	UserID         string
	VariantID      string
	Quantity       int
	UnitPriceCents int64
	AddedAt        time.Time
	UpdatedAt      time.Time
}

func (l Line) SubtotalCents() int64 {
	return l.UnitPriceCents * int64(l.Quantity)
}

type Cart struct {
	UserID        string
	Lines         []Line
	SubtotalCents int64
}

func NewCart(userID string, lines []Line) Cart {
	c := Cart{UserID: userID, Lines: lines}
	for _, l := range lines {
		c.SubtotalCents += l.SubtotalCents()
	}
	return c
}
