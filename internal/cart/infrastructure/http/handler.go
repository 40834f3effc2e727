package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmehra2102/checkout-engine/internal/cart/application"
	"github.com/dmehra2102/checkout-engine/internal/cart/domain"
	"github.com/dmehra2102/checkout-engine/internal/platform/httpx"
	"github.com/dmehra2102/checkout-engine/internal/pricing"
)

type Handler struct {
	log     *slog.Logger
	service *application.Service
}

func NewHandler(log *slog.Logger, service *application.Service) *Handler {
	return &Handler{log: log, service: service}
}

// Routes registers the cart endpoints. Callers must be authenticated.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/cart", h.list)
	r.Post("/cart", h.add)
	r.Delete("/cart", h.clear)
	r.Patch("/cart/items/{id}", h.update)
	r.Delete("/cart/items/{id}", h.remove)
}

type lineResp struct {
	ID             string    `json:"id"`
	VariantID      string    `json:"variant_id"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	SubtotalCents  int64     `json:"subtotal_cents"`
	Subtotal       string    `json:"subtotal"`
	AddedAt        time.Time `json:"added_at"`
}

type cartResp struct {
	Lines         []lineResp `json:"lines"`
	SubtotalCents int64      `json:"subtotal_cents"`
	Subtotal      string     `json:"subtotal"`
}

func toLine(l domain.Line) lineResp {
	return lineResp{
		ID:             l.ID,
		VariantID:      l.VariantID,
		Quantity:       l.Quantity,
		UnitPriceCents: l.UnitPriceCents,
		SubtotalCents:  l.SubtotalCents(),
		Subtotal:       pricing.Amount(l.SubtotalCents()),
		AddedAt:        l.AddedAt,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.List(r.Context(), httpx.UserID(r.Context()))
	if err != nil {
		httpx.WriteError(h.log, w, r, err)
		return
	}
	resp := cartResp{Lines: make([]lineResp, 0, len(c.Lines)), SubtotalCents: c.SubtotalCents, Subtotal: pricing.Amount(c.SubtotalCents)}
	for _, l := range c.Lines {
		resp.Lines = append(resp.Lines, toLine(l))
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

type addReq struct {
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) add(w http.ResponseWriter, r *http.Request) {
	var req addReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(h.log, w, r, err)
		return
	}
	line, err := h.service.AddItem(r.Context(), httpx.UserID(r.Context()), req.VariantID, req.Quantity)
	if err != nil {
		httpx.WriteError(h.log, w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toLine(line))
}

type updateReq struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var req updateReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(h.log, w, r, err)
		return
	}
	line, err := h.service.UpdateItem(r.Context(), httpx.UserID(r.Context()), chi.URLParam(r, "id"), req.Quantity)
	if err != nil {
		httpx.WriteError(h.log, w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toLine(line))
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RemoveItem(r.Context(), httpx.UserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		httpx.WriteError(h.log, w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) clear(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Clear(r.Context(), httpx.UserID(r.Context())); err != nil {
		httpx.WriteError(h.log, w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
