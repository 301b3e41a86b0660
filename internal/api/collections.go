package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/erikfacundo/mechiv2-sub000/internal/apperr"
	"github.com/erikfacundo/mechiv2-sub000/internal/docstore"
)

// knownCollection rejects collection names the store does not expose.
func knownCollection(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !docstore.IsKnown(chi.URLParam(r, "collection")) {
			writeJSON(w, http.StatusNotFound, errorBody("unknown collection"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func documentList(docs []docstore.Document) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Data)
	}
	return out
}

// ListDocuments handles GET /api/{collection}. A single field=value pair in
// the query filters by a top-level field. Store failures yield an empty
// list; malformed field names are rejected.
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	q := r.URL.Query()
	f := docstore.Filter{OrderBy: q.Get("orderBy"), Desc: q.Get("desc") == "true"}
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	f.Offset, _ = strconv.Atoi(q.Get("offset"))
	if field := q.Get("field"); field != "" {
		f.Field, f.Value = field, q.Get("value")
	}

	docs, err := h.docs.List(r.Context(), collection, f)
	if errors.Is(err, apperr.ErrInvalid) {
		writeError(w, "list "+collection, err)
		return
	}
	if err != nil {
		h.logger.Error("list documents failed",
			slog.String("collection", collection),
			slog.String("error", err.Error()))
		docs = nil
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": documentList(docs),
		"total": len(docs),
	})
}

// CreateDocument handles POST /api/{collection}.
func (h *Handler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	var body json.RawMessage
	if !decodeBody(w, r, maxJSONBytes, &body) {
		return
	}
	if err := h.photos.CheckDocument(body); err != nil {
		writeError(w, "create "+collection, err)
		return
	}
	id, err := h.docs.Create(r.Context(), collection, body)
	if err != nil {
		writeError(w, "create "+collection, err)
		return
	}
	h.writeDocument(w, r, collection, id, http.StatusCreated)
}

// GetDocument handles GET /api/{collection}/{id}.
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	h.writeDocument(w, r, chi.URLParam(r, "collection"), chi.URLParam(r, "id"), http.StatusOK)
}

// UpdateDocument handles PATCH /api/{collection}/{id}. Top-level fields in
// the body replace the stored ones.
func (h *Handler) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	collection, id := chi.URLParam(r, "collection"), chi.URLParam(r, "id")
	var body json.RawMessage
	if !decodeBody(w, r, maxJSONBytes, &body) {
		return
	}
	if err := h.photos.CheckDocument(body); err != nil {
		writeError(w, "update "+collection, err)
		return
	}
	if err := h.docs.Update(r.Context(), collection, id, body); err != nil {
		writeError(w, "update "+collection, err)
		return
	}
	h.writeDocument(w, r, collection, id, http.StatusOK)
}

// DeleteDocument handles DELETE /api/{collection}/{id}.
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	if err := h.docs.Delete(r.Context(), collection, chi.URLParam(r, "id")); err != nil {
		writeError(w, "delete "+collection, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeDocument(w http.ResponseWriter, r *http.Request, collection, id string, status int) {
	doc, err := h.docs.Get(r.Context(), collection, id)
	if err != nil {
		writeError(w, "get "+collection, err)
		return
	}
	writeJSON(w, status, doc.Data)
}
