package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/erikfacundo/mechiv2-sub000/internal/models"
	"github.com/erikfacundo/mechiv2-sub000/internal/orderservice"
)

// SetChecklistItem handles PUT /api/orders/{id}/checklist/{itemID}.
// Completing a top-level item completes every sub-task under it.
func (h *Handler) SetChecklistItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Completed *bool `json:"completed"`
	}
	if !decodeBody(w, r, maxJSONBytes, &req) {
		return
	}
	if req.Completed == nil {
		writeJSON(w, http.StatusBadRequest, errorBody("completed is required"))
		return
	}
	order, err := h.orders.SetChecklistItem(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "itemID"), *req.Completed)
	if err != nil {
		writeError(w, "set checklist item", err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// AddChecklistItem handles POST /api/orders/{id}/checklist.
func (h *Handler) AddChecklistItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Task string `json:"task"`
	}
	if !decodeBody(w, r, maxJSONBytes, &req) {
		return
	}
	order, err := h.orders.AddChecklistItem(r.Context(), chi.URLParam(r, "id"), req.Task)
	if err != nil {
		writeError(w, "add checklist item", err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

// RemoveChecklistItem handles DELETE /api/orders/{id}/checklist/{itemID}.
func (h *Handler) RemoveChecklistItem(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.RemoveChecklistItem(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "itemID"))
	if err != nil {
		writeError(w, "remove checklist item", err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// AddCategory handles POST /api/orders/{id}/categories.
func (h *Handler) AddCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CategoryID string   `json:"categoryId"`
		SubItems   []string `json:"subItems"`
	}
	if !decodeBody(w, r, maxJSONBytes, &req) {
		return
	}
	if req.CategoryID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("categoryId is required"))
		return
	}
	order, err := h.orders.AddCategory(r.Context(), chi.URLParam(r, "id"), req.CategoryID, req.SubItems)
	if err != nil {
		writeError(w, "add category", err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

// ChecklistOrphans handles GET /api/orders/{id}/checklist/orphans.
func (h *Handler) ChecklistOrphans(w http.ResponseWriter, r *http.Request) {
	orphans, err := h.orders.ChecklistOrphans(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "checklist orphans", err)
		return
	}
	if orphans == nil {
		orphans = []models.ChecklistItem{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"orphans": orphans})
}

// AddExpense handles POST /api/orders/{id}/expenses.
func (h *Handler) AddExpense(w http.ResponseWriter, r *http.Request) {
	var in orderservice.ExpenseInput
	if !decodeBody(w, r, maxJSONBytes, &in) {
		return
	}
	order, err := h.orders.AddExpense(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, "add expense", err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

// RemoveExpense handles DELETE /api/orders/{id}/expenses/{expenseID}.
func (h *Handler) RemoveExpense(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.RemoveExpense(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "expenseID"))
	if err != nil {
		writeError(w, "remove expense", err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}
