package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/erikfacundo/mechiv2-sub000/internal/docstore"
	"github.com/erikfacundo/mechiv2-sub000/internal/orderservice"
	"github.com/erikfacundo/mechiv2-sub000/internal/photos"
)

const (
	maxJSONBytes  = 10 << 20
	maxImageBytes = 32 << 20
)

// Handler holds API route handlers.
type Handler struct {
	orders *orderservice.Service
	photos *photos.Pipeline
	docs   docstore.Store
	logger *slog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(orders *orderservice.Service, pipeline *photos.Pipeline, docs docstore.Store, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{orders: orders, photos: pipeline, docs: docs, logger: logger}
}

// ListOrders handles GET /api/orders.
//
//	@Summary		List work orders, newest first
//	@Tags			orders
//	@Produce		json
//	@Param			status		query		string	false	"Filter by status"
//	@Param			clientId	query		string	false	"Filter by client"
//	@Param			vehicleId	query		string	false	"Filter by vehicle"
//	@Param			limit		query		int		false	"Page size"
//	@Param			offset		query		int		false	"Page offset"
//	@Security		BearerAuth
//	@Router			/orders [get]
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items := h.orders.ListOrders(r.Context(), orderservice.ListFilter{
		Status:    q.Get("status"),
		ClientID:  q.Get("clientId"),
		VehicleID: q.Get("vehicleId"),
		Limit:     limit,
		Offset:    offset,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"orders": items,
		"total":  len(items),
	})
}

// CreateOrder handles POST /api/orders.
//
//	@Summary		Create a work order with the next order number
//	@Tags			orders
//	@Accept			json
//	@Produce		json
//	@Failure		400	{object}	errResponse
//	@Failure		413	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/orders [post]
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var in orderservice.CreateOrderInput
	if !decodeBody(w, r, maxJSONBytes, &in) {
		return
	}
	order, err := h.orders.CreateOrder(r.Context(), in)
	if err != nil {
		writeError(w, "create order", err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

// GetOrder handles GET /api/orders/{id}.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get order", err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// UpdateOrder handles PATCH /api/orders/{id}. Only the fields present in
// the body change; completionPercentage is recomputed from the checklist.
func (h *Handler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	var in orderservice.UpdateOrderInput
	if !decodeBody(w, r, maxJSONBytes, &in) {
		return
	}
	order, err := h.orders.UpdateOrder(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, "update order", err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// DeleteOrder handles DELETE /api/orders/{id}.
func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.orders.DeleteOrder(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, "delete order", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// NextNumber handles GET /api/orders/next-number.
func (h *Handler) NextNumber(w http.ResponseWriter, r *http.Request) {
	number, degraded := h.orders.NextNumber(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"orderNumber": number,
		"degraded":    degraded,
	})
}

// AllOrphans handles GET /api/orders/orphans.
func (h *Handler) AllOrphans(w http.ResponseWriter, r *http.Request) {
	reports, err := h.orders.AllOrphans(r.Context())
	if err != nil {
		writeError(w, "list orphans", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": reports})
}
