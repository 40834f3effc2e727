package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/checkout-engine/internal/platform/apperr"
)

func TestStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("order x: %w", apperr.ErrNotFound), http.StatusNotFound, "not_found"},
		{apperr.ErrInsufficientStock, http.StatusConflict, "insufficient_stock"},
		{apperr.Rejected("insufficient stock", "A", apperr.ErrInsufficientStock), http.StatusUnprocessableEntity, "order_rejected"},
		{apperr.Rejected("variant not found", "Z", apperr.ErrNotFound), http.StatusUnprocessableEntity, "order_rejected"},
		{apperr.ErrCannotCancel, http.StatusConflict, "cannot_cancel"},
		{apperr.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
		{apperr.ErrDuplicatePayment, http.StatusConflict, "duplicate_payment"},
		{apperr.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
		{apperr.Unavailable("commit", errors.New("eof")), http.StatusServiceUnavailable, "store_unavailable"},
		{errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		status, code := Status(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.code, code, tc.err.Error())
	}
}

func TestWriteErrorCarriesRejectedLine(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	rec := httptest.NewRecorder()
	WriteError(log, rec, httptest.NewRequest(http.MethodPost, "/orders", nil), apperr.Rejected("insufficient stock", "B", apperr.ErrInsufficientStock))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body ErrorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "B", body.VariantID)
	assert.Equal(t, "insufficient stock", body.Reason)
}

func TestWriteErrorStoreUnavailableIsRetryable(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	rec := httptest.NewRecorder()
	WriteError(log, rec, httptest.NewRequest(http.MethodGet, "/cart", nil), apperr.Unavailable("begin", errors.New("timeout")))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestRequireUser(t *testing.T) {
	var seen string
	h := RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(UserHeader, "U")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "U", seen)
}
