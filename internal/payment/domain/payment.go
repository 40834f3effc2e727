package domain

import (
	"fmt"
	"time"

	"github.com/dmehra2102/checkout-engine/internal/platform/apperr"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
)

// Payment is one-to-one with an order. AmountCents equals the order total.
type Payment struct {
	ID             string
	OrderID        string
	Method         string
	Status         Status
	TransactionRef string
	AmountCents    int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func NewPending(id, orderID, method string, amount int64, now time.Time) Payment {
	return Payment{
		ID:          id,
		OrderID:     orderID,
		Method:      method,
		Status:      StatusPending,
		AmountCents: amount,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusCompleted, StatusFailed, StatusRefunded:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown payment status %q", apperr.ErrInvalidInput, s)
}

// CanTransition: pending -> completed|failed, completed -> refunded.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusCompleted || next == StatusFailed
	case StatusCompleted:
		return next == StatusRefunded
	}
	return false
}

func CheckTransition(from, to Status) error {
	if !from.CanTransition(to) {
		return fmt.Errorf("%w: payment %s -> %s", apperr.ErrInvalidTransition, from, to)
	}
	return nil
}

// OnOrderCancelled returns the payment status implied by cancelling its order,
// and false when the payment is left untouched.
func OnOrderCancelled(s Status) (Status, bool) {
	switch s {
	case StatusPending:
		return StatusFailed, true
	case StatusCompleted:
		return StatusRefunded, true
	}
	return s, false
}

var methods = map[string]bool{
	"card":             true,
	"credit_card":      true,
	"debit_card":       true,
	"paypal":           true,
	"stripe":           true,
	"cash_on_delivery": true,
}

func ValidMethod(m string) bool { return methods[m] }
