// Package apperr holds the error taxonomy shared by every engine context.
//
// Business violations are plain returned errors and are matched with errors.Is
// or errors.As. ErrStoreUnavailable is the only retryable condition.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrOrderRejected     = errors.New("order rejected")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrDuplicatePayment  = errors.New("payment already exists for order")
	ErrStoreUnavailable  = errors.New("store unavailable")
	ErrInvalidInput      = errors.New("invalid input")
	ErrConflict          = errors.New("conflict")

	// ErrCannotCancel is the cancellation-window refinement of ErrInvalidTransition.
	ErrCannotCancel = fmt.Errorf("%w: order can no longer be cancelled", ErrInvalidTransition)
)

// RejectedError reports the line that made a multi-line order batch fail.
type RejectedError struct {
	Reason    string
	VariantID string
	Err       error
}

func Rejected(reason, variantID string, cause error) *RejectedError {
	return &RejectedError{Reason: reason, VariantID: variantID, Err: cause}
}

func (e *RejectedError) Error() string {
	if e.VariantID == "" {
		return fmt.Sprintf("order rejected: %s", e.Reason)
	}
	return fmt.Sprintf("order rejected: %s (variant %s)", e.Reason, e.VariantID)
}

func (e *RejectedError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrOrderRejected}
	}
	return []error{ErrOrderRejected, e.Err}
}

// StoreError wraps a persistence failure. It always matches ErrStoreUnavailable.
type StoreError struct {
	Op  string
	Err error
}

func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store unavailable: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() []error { return []error{ErrStoreUnavailable, e.Err} }

// Retryable reports whether the caller may retry the operation with backoff.
func Retryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// IsBusiness reports whether err is one of the typed business outcomes.
func IsBusiness(err error) bool {
	for _, target := range []error{
		ErrNotFound, ErrInsufficientStock, ErrOrderRejected,
		ErrInvalidTransition, ErrDuplicatePayment, ErrInvalidInput, ErrConflict,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
