// Package httpx holds the JSON and error plumbing shared by the HTTP
// handlers of every context.
package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dmehra2102/checkout-engine/internal/platform/apperr"
)

// UserHeader carries the caller identity established by the upstream
// identity provider.
const UserHeader = "X-User-ID"

type userKey struct{}

type ErrorBody struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Reason    string `json:"reason,omitempty"`
	VariantID string `json:"variant_id,omitempty"`
}

// RequireUser rejects requests without an identity with 401 and stores the
// user id in the request context.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(UserHeader))
		if id == "" {
			WriteJSON(w, http.StatusUnauthorized, ErrorBody{Error: "unauthenticated", Message: "missing " + UserHeader})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, id)))
	})
}

func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userKey{}).(string)
	return id
}

// UserScope keys per-caller state such as idempotency claims.
func UserScope(r *http.Request) string {
	return r.Header.Get(UserHeader)
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// Decode reads a JSON body, rejecting unknown fields.
func Decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid body: %v", apperr.ErrInvalidInput, err)
	}
	return nil
}

// Status maps an engine error onto an HTTP status and body code.
func Status(err error) (int, string) {
	switch {
	case errors.Is(err, apperr.ErrOrderRejected):
		return http.StatusUnprocessableEntity, "order_rejected"
	case errors.Is(err, apperr.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "store_unavailable"
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperr.ErrInsufficientStock):
		return http.StatusConflict, "insufficient_stock"
	case errors.Is(err, apperr.ErrCannotCancel):
		return http.StatusConflict, "cannot_cancel"
	case errors.Is(err, apperr.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, apperr.ErrDuplicatePayment):
		return http.StatusConflict, "duplicate_payment"
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, apperr.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	}
	return http.StatusInternalServerError, "internal"
}

// WriteError renders err. Store failures ask the client to retry; unknown
// errors are logged and hidden.
func WriteError(log *slog.Logger, w http.ResponseWriter, r *http.Request, err error) {
	status, code := Status(err)
	body := ErrorBody{Error: code, Message: err.Error()}

	var rej *apperr.RejectedError
	if errors.As(err, &rej) {
		body.Reason = rej.Reason
		body.VariantID = rej.VariantID
	}
	switch status {
	case http.StatusServiceUnavailable:
		w.Header().Set("Retry-After", "1")
		log.Warn("store unavailable", "path", r.URL.Path, "err", err)
	case http.StatusInternalServerError:
		log.Error("request failed", "path", r.URL.Path, "err", err)
		body.Message = "internal error"
	}
	WriteJSON(w, status, body)
}
