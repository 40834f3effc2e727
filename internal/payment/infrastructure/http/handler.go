package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmehra2102/checkout-engine/internal/payment/application"
	"github.com/dmehra2102/checkout-engine/internal/payment/domain"
	"github.com/dmehra2102/checkout-engine/internal/platform/httpx"
)

// Handler is the gateway callback for payment status reports.
type Handler struct {
	log     *slog.Logger
	service *application.Service
}

func NewHandler(log *slog.Logger, service *application.Service) *Handler {
	return &Handler{log: log, service: service}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/payments/{orderID}/status", h.recordStatus)
}

type statusReq struct {
	Status         string `json:"status"`
	TransactionRef string `json:"transaction_ref"`
}

type paymentResp struct {
	OrderID        string `json:"order_id"`
	Method         string `json:"method"`
	Status         string `json:"status"`
	TransactionRef string `json:"transaction_ref,omitempty"`
	AmountCents    int64  `json:"amount_cents"`
}

func toResponse(p domain.Payment) paymentResp {
	return paymentResp{
		OrderID:        p.OrderID,
		Method:         p.Method,
		Status:         string(p.Status),
		TransactionRef: p.TransactionRef,
		AmountCents:    p.AmountCents,
	}
}

func (h *Handler) recordStatus(w http.ResponseWriter, r *http.Request) {
	var req statusReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(h.log, w, r, err)
		return
	}
	status, err := domain.ParseStatus(req.Status)
	if err != nil {
		httpx.WriteError(h.log, w, r, err)
		return
	}
	p, err := h.service.RecordStatus(r.Context(), chi.URLParam(r, "orderID"), status, req.TransactionRef)
	if err != nil {
		httpx.WriteError(h.log, w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toResponse(p))
}
