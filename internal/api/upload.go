package api

import (
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"

	"github.com/erikfacundo/mechiv2-sub000/internal/imaging"
	"github.com/erikfacundo/mechiv2-sub000/internal/objstore"
	"github.com/erikfacundo/mechiv2-sub000/internal/orderservice"
)

type imageRequest struct {
	Image       string `json:"image"`
	FileName    string `json:"fileName"`
	Prefix      string `json:"prefix"`
	Kind        string `json:"kind"`
	Description string `json:"description"`
}

// decodeImage reads an image request and decodes its data URL payload.
func decodeImage(w http.ResponseWriter, r *http.Request) (imageRequest, []byte, bool) {
	var req imageRequest
	if !decodeBody(w, r, maxImageBytes, &req) {
		return req, nil, false
	}
	data, err := imaging.DecodeDataURL(req.Image)
	if err != nil {
		writeError(w, "decode image", err)
		return req, nil, false
	}
	return req, data, true
}

// Upload handles POST /api/upload with a JSON body
// {image: data URL or base64, fileName?, prefix?}. The image is resized and
// stored remotely; there is no inline fallback here.
//
//	@Summary		Upload an image to object storage
//	@Tags			upload
//	@Accept			json
//	@Produce		json
//	@Failure		422	{object}	errResponse
//	@Failure		500	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/upload [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	req, data, ok := decodeImage(w, r)
	if !ok {
		return
	}
	prefix := objstore.DefaultPrefix
	if req.Prefix != "" {
		prefix = objstore.NormalizePrefix(req.Prefix)
	}
	publicURL, key, err := h.photos.Upload(r.Context(), data, req.FileName, prefix)
	if err != nil {
		writeError(w, "upload", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"url":      publicURL,
		"key":      key,
		"fileName": path.Base(key),
	})
}

// DeleteUpload handles DELETE /api/upload?url=... Only URLs in object
// storage are accepted.
func (h *Handler) DeleteUpload(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'url' is required"))
		return
	}
	if err := h.photos.DeleteURL(r.Context(), rawURL); err != nil {
		writeError(w, "delete upload", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SignedURL handles GET /api/upload/signed?key=... and returns a temporary
// URL for a private object.
func (h *Handler) SignedURL(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'key' is required"))
		return
	}
	signed, err := h.photos.SignedURL(r.Context(), key)
	if err != nil {
		writeError(w, "signed url", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": signed})
}

// AddPhoto handles POST /api/orders/{id}/photos. When the upload fails the
// photo is stored inline and the response carries a warning.
func (h *Handler) AddPhoto(w http.ResponseWriter, r *http.Request) {
	req, data, ok := decodeImage(w, r)
	if !ok {
		return
	}
	res, err := h.orders.AddPhoto(r.Context(), chi.URLParam(r, "id"), orderservice.PhotoInput{
		Data:        data,
		FileName:    req.FileName,
		Kind:        req.Kind,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, "add photo", err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// RemovePhoto handles DELETE /api/orders/{id}/photos/{photoID}.
func (h *Handler) RemovePhoto(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.RemovePhoto(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "photoID"))
	if err != nil {
		writeError(w, "remove photo", err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}
