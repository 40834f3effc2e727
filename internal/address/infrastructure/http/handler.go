package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmehra2102/checkout-engine/internal/address/application"
	"github.com/dmehra2102/checkout-engine/internal/address/domain"
	"github.com/dmehra2102/checkout-engine/internal/platform/httpx"
)

type Handler struct {
	log     *slog.Logger
	service *application.Service
}

func NewHandler(log *slog.Logger, service *application.Service) *Handler {
	return &Handler{log: log, service: service}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/addresses", h.list)
	r.Post("/addresses", h.create)
	r.Put("/addresses/{id}/default", h.setDefault)
	r.Delete("/addresses/{id}", h.remove)
}

type addressBody struct {
	ID        string    `json:"id,omitempty"`
	Label     string    `json:"label"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Street    string    `json:"street"`
	City      string    `json:"city"`
	Country   string    `json:"country"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}

func toBody(a domain.Address) addressBody {
	return addressBody{
		ID:        a.ID,
		Label:     a.Label,
		Name:      a.Name,
		Phone:     a.Phone,
		Street:    a.Street,
		City:      a.City,
		Country:   a.Country,
		IsDefault: a.IsDefault,
		CreatedAt: a.CreatedAt,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context(), httpx.UserID(r.Context()))
	if err != nil {
		httpx.WriteError(h.log, w, r, err)
		return
	}
	out := make([]addressBody, 0, len(list))
	for _, a := range list {
		out = append(out, toBody(a))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req addressBody
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(h.log, w, r, err)
		return
	}
	a, err := h.service.Create(r.Context(), httpx.UserID(r.Context()), domain.Address{
		Label:     req.Label,
		Name:      req.Name,
		Phone:     req.Phone,
		Street:    req.Street,
		City:      req.City,
		Country:   req.Country,
		IsDefault: req.IsDefault,
	})
	if err != nil {
		httpx.WriteError(h.log, w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toBody(a))
}

func (h *Handler) setDefault(w http.ResponseWriter, r *http.Request) {
	if err := h.service.SetDefault(r.Context(), httpx.UserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		httpx.WriteError(h.log, w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), httpx.UserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		httpx.WriteError(h.log, w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
