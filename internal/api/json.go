package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/erikfacundo/mechiv2-sub000/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error      string `json:"error" validate:"required"`
	PhotoBytes int    `json:"photoBytes,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// writeError maps domain errors onto HTTP statuses. Anything unrecognised
// is logged and reported as an internal error.
func writeError(w http.ResponseWriter, op string, err error) {
	var tooLarge *apperr.DocumentTooLargeError
	switch {
	case errors.As(err, &tooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, errResponse{
			Error:      "record too large: remove some photos or use remote storage",
			PhotoBytes: tooLarge.PhotoBytes,
			Limit:      tooLarge.Limit,
		})
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrAlreadyExists), errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrInvalid):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrDecode):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody("the file is not a supported image (JPEG, PNG, GIF or WebP)"))
	case errors.Is(err, apperr.ErrUnsupportedDimensions):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody("the image dimensions are too large to process"))
	case errors.Is(err, apperr.ErrTimeout):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody("processing the image took too long, try a smaller file"))
	case errors.Is(err, apperr.ErrImageTooLargeForInline):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody(err.Error()+": upload failed and the image cannot be stored in the record"))
	case errors.Is(err, apperr.ErrNotConfigured):
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("storage not configured"))
	case errors.Is(err, apperr.ErrUploadFailed):
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, errorBody("upload to storage failed"))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// decodeBody reads a JSON request body capped at limit bytes.
func decodeBody(w http.ResponseWriter, r *http.Request, limit int64, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("request body too large"))
			return false
		}
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	return true
}
