package domain

import (
	"fmt"

	"github.com/dmehra2102/checkout-engine/internal/platform/apperr"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered},
}

func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown order status %q", apperr.ErrInvalidInput, s)
}

func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanTransition reports whether the lifecycle graph has an edge from s to next.
// Cancellation edges are further gated by a CancelPolicy.
func (s Status) CanTransition(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// CancelPolicy names the window in which an order may still be cancelled.
type CancelPolicy string

const (
	// CancelPendingOnly rejects cancellation once processing has begun.
	CancelPendingOnly CancelPolicy = "pending"
	// CancelUntilShipped also accepts cancellation while processing.
	CancelUntilShipped CancelPolicy = "processing"
)

func ParseCancelPolicy(s string) (CancelPolicy, error) {
	switch p := CancelPolicy(s); p {
	case CancelPendingOnly, CancelUntilShipped:
		return p, nil
	case "":
		return CancelPendingOnly, nil
	}
	return "", fmt.Errorf("%w: unknown cancel policy %q", apperr.ErrInvalidInput, s)
}

// Cancellable returns the statuses from which cancellation is accepted.
func (p CancelPolicy) Cancellable() []Status {
	if p == CancelUntilShipped {
		return []Status{StatusPending, StatusProcessing}
	}
	return []Status{StatusPending}
}

// CheckCancel validates a cancellation from the given status.
func (p CancelPolicy) CheckCancel(from Status) error {
	if from.Terminal() {
		return fmt.Errorf("%w: order is %s", apperr.ErrInvalidTransition, from)
	}
	for _, s := range p.Cancellable() {
		if s == from {
			return nil
		}
	}
	return fmt.Errorf("%w: order is %s", apperr.ErrCannotCancel, from)
}

// CheckAdvance validates a forward (non-cancel) transition.
func CheckAdvance(from, to Status) error {
	if to == StatusCancelled {
		return fmt.Errorf("%w: use cancel", apperr.ErrInvalidInput)
	}
	if !from.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", apperr.ErrInvalidTransition, from, to)
	}
	return nil
}
