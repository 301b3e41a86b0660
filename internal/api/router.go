package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(h *Handler, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Direct uploads.
	r.Post("/upload", h.Upload)
	r.Delete("/upload", h.DeleteUpload)
	r.Get("/upload/signed", h.SignedURL)

	// Work orders.
	r.Route("/orders", func(r chi.Router) {
		r.Get("/", h.ListOrders)
		r.Post("/", h.CreateOrder)
		r.Get("/next-number", h.NextNumber)
		r.Get("/orphans", h.AllOrphans)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetOrder)
			r.Patch("/", h.UpdateOrder)
			r.Delete("/", h.DeleteOrder)

			r.Post("/checklist", h.AddChecklistItem)
			r.Get("/checklist/orphans", h.ChecklistOrphans)
			r.Put("/checklist/{itemID}", h.SetChecklistItem)
			r.Delete("/checklist/{itemID}", h.RemoveChecklistItem)
			r.Post("/categories", h.AddCategory)

			r.Post("/expenses", h.AddExpense)
			r.Delete("/expenses/{expenseID}", h.RemoveExpense)

			r.Post("/photos", h.AddPhoto)
			r.Delete("/photos/{photoID}", h.RemovePhoto)
		})
	})

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	// Remaining collections as plain documents.
	r.Route("/{collection}", func(r chi.Router) {
		r.Use(knownCollection)
		r.Get("/", h.ListDocuments)
		r.Post("/", h.CreateDocument)
		r.Get("/{id}", h.GetDocument)
		r.Patch("/{id}", h.UpdateDocument)
		r.Delete("/{id}", h.DeleteDocument)
	})

	return r
}
