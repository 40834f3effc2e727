package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/checkout-engine/internal/order/application"
	"github.com/dmehra2102/checkout-engine/internal/order/domain"
	paydomain "github.com/dmehra2102/checkout-engine/internal/payment/domain"
	"github.com/dmehra2102/checkout-engine/internal/platform/apperr"
	"github.com/dmehra2102/checkout-engine/internal/platform/httpx"
	"github.com/dmehra2102/checkout-engine/internal/pricing"
	"github.com/dmehra2102/checkout-engine/pkg/idempotency"
)

// PaymentReader exposes the payment attached to an order.
type PaymentReader interface {
	Get(ctx context.Context, orderID string) (paydomain.Payment, error)
}

type Handler struct {
	log       *slog.Logger
	assembler *application.Assembler
	lifecycle *application.Lifecycle
	payments  PaymentReader
	idem      idempotency.Guard
	tracer    trace.Tracer
}

// NewHandler wires the order endpoints. A nil guard disables Idempotency-Key
// handling on the placement routes.
func NewHandler(log *slog.Logger, assembler *application.Assembler, lifecycle *application.Lifecycle, payments PaymentReader, idem idempotency.Guard) *Handler {
	return &Handler{
		log:       log,
		assembler: assembler,
		lifecycle: lifecycle,
		payments:  payments,
		idem:      idem,
		tracer:    otel.Tracer("order-http"),
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.idem != nil {
			r.Use(idempotency.Middleware(h.log, h.idem, httpx.UserScope))
		}
		r.Post("/orders", h.createOrder)
		r.Post("/orders/checkout", h.checkout)
	})
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.getOrder)
	r.Patch("/orders/{id}/status", h.updateStatus)
	r.Post("/orders/{id}/cancel", h.cancelOrder)
}

type lineReq struct {
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
}

type createOrderReq struct {
	ShippingAddressID string    `json:"shipping_address_id"`
	BillingAddressID  string    `json:"billing_address_id"`
	PaymentMethod     string    `json:"payment_method"`
	Lines             []lineReq `json:"lines"`
}

type checkoutReq struct {
	ShippingAddressID string `json:"shipping_address_id"`
	BillingAddressID  string `json:"billing_address_id"`
	PaymentMethod     string `json:"payment_method"`
}

type statusReq struct {
	Status         string `json:"status"`
	TrackingNumber string `json:"tracking_number"`
}

type lineResp struct {
	VariantID      string `json:"variant_id"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	SubtotalCents  int64  `json:"subtotal_cents"`
}

type paymentResp struct {
	Method         string `json:"method"`
	Status         string `json:"status"`
	TransactionRef string `json:"transaction_ref,omitempty"`
}

type orderResp struct {
	ID                string       `json:"id"`
	Number            string       `json:"number"`
	Status            string       `json:"status"`
	Lines             []lineResp   `json:"lines"`
	SubtotalCents     int64        `json:"subtotal_cents"`
	TaxCents          int64        `json:"tax_cents"`
	ShippingCents     int64        `json:"shipping_cents"`
	TotalCents        int64        `json:"total_cents"`
	Total             string       `json:"total"`
	ShippingAddressID string       `json:"shipping_address_id"`
	BillingAddressID  string       `json:"billing_address_id"`
	PaymentMethod     string       `json:"payment_method"`
	TrackingNumber    string       `json:"tracking_number,omitempty"`
	Payment           *paymentResp `json:"payment,omitempty"`
	OrderedAt         time.Time    `json:"ordered_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

type listResp struct {
	Orders []orderResp `json:"orders"`
	Total  int         `json:"total"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

func toResponse(o domain.Order) orderResp {
	resp := orderResp{
		ID:                o.ID,
		Number:            o.Number,
		Status:            string(o.Status),
		Lines:             make([]lineResp, 0, len(o.Lines)),
		SubtotalCents:     o.SubtotalCents,
		TaxCents:          o.TaxCents,
		ShippingCents:     o.ShippingCents,
		TotalCents:        o.TotalCents,
		Total:             pricing.Amount(o.TotalCents),
		ShippingAddressID: o.ShippingAddressID,
		BillingAddressID:  o.BillingAddressID,
		PaymentMethod:     o.PaymentMethod,
		TrackingNumber:    o.TrackingNumber,
		OrderedAt:         o.OrderedAt,
		UpdatedAt:         o.UpdatedAt,
	}
	for _, l := range o.Lines {
		resp.Lines = append(resp.Lines, lineResp{
			VariantID:      l.VariantID,
			Quantity:       l.Quantity,
			UnitPriceCents: l.UnitPriceCents,
			SubtotalCents:  l.SubtotalCents,
		})
	}
	return resp
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateOrder")
	defer span.End()

	var req createOrderReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(h.log, w, r, err)
		return
	}
	lines := make([]application.LineRequest, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, application.LineRequest{VariantID: l.VariantID, Quantity: l.Quantity})
	}

	o, err := h.assembler.CreateOrder(ctx, application.PlaceOrder{
		UserID:            httpx.UserID(ctx),
		ShippingAddressID: req.ShippingAddressID,
		BillingAddressID:  req.BillingAddressID,
		PaymentMethod:     req.PaymentMethod,
		Lines:             lines,
	})
	if err != nil {
		httpx.WriteError(h.log, w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toResponse(o))
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "Checkout")
	defer span.End()

	var req checkoutReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(h.log, w, r, err)
		return
	}
	o, err := h.assembler.Checkout(ctx, application.Checkout{
		UserID:            httpx.UserID(ctx),
		ShippingAddressID: req.ShippingAddressID,
		BillingAddressID:  req.BillingAddressID,
		PaymentMethod:     req.PaymentMethod,
	})
	if err != nil {
		httpx.WriteError(h.log, w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toResponse(o))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	o, err := h.lifecycle.Get(ctx, httpx.UserID(ctx), chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(h.log, w, r, err)
		return
	}
	resp := toResponse(o)
	p, err := h.payments.Get(ctx, o.ID)
	switch {
	case err == nil:
		resp.Payment = &paymentResp{Method: p.Method, Status: string(p.Status), TransactionRef: p.TransactionRef}
	case !errors.Is(err, apperr.ErrNotFound):
		httpx.WriteError(h.log, w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := domain.ListFilter{Status: domain.Status(q.Get("status"))}
	var err error
	if f.Limit, err = intParam(q.Get("limit")); err != nil {
		httpx.WriteError(h.log, w, r, err)
		return
	}
	if f.Offset, err = intParam(q.Get("offset")); err != nil {
		httpx.WriteError(h.log, w, r, err)
		return
	}
	f = f.Normalize()

	orders, total, err := h.lifecycle.ListByUser(r.Context(), httpx.UserID(r.Context()), f)
	if err != nil {
		httpx.WriteError(h.log, w, r, err)
		return
	}
	resp := listResp{Orders: make([]orderResp, 0, len(orders)), Total: total, Limit: f.Limit, Offset: f.Offset}
	for _, o := range orders {
		resp.Orders = append(resp.Orders, toResponse(o))
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(h.log, w, r, err)
		return
	}
	to, err := domain.ParseStatus(req.Status)
	if err != nil {
		httpx.WriteError(h.log, w, r, err)
		return
	}
	o, err := h.lifecycle.UpdateStatusFor(r.Context(), httpx.UserID(r.Context()), chi.URLParam(r, "id"), to, req.TrackingNumber)
	if err != nil {
		httpx.WriteError(h.log, w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toResponse(o))
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CancelOrder")
	defer span.End()

	o, err := h.lifecycle.Cancel(ctx, httpx.UserID(ctx), chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(h.log, w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toResponse(o))
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.Join(apperr.ErrInvalidInput, err)
	}
	return n, nil
}
