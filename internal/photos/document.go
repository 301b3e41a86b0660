package photos

import (
	"encoding/json"
	"fmt"

	"github.com/erikfacundo/mechiv2-sub000/internal/apperr"
	"github.com/erikfacundo/mechiv2-sub000/internal/models"
)

// CheckDocumentSize serializes doc and fails with *apperr.DocumentTooLargeError
// when it exceeds DefaultDocumentMaxBytes.
func CheckDocumentSize(doc any) error {
	return checkDocumentSize(doc, DefaultDocumentMaxBytes)
}

func checkDocumentSize(doc any, limit int) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("measuring document: %w", err)
	}
	if len(data) <= limit {
		return nil
	}
	photoBytes := 0
	if h, ok := doc.(models.PhotoHolder); ok {
		photoBytes = models.InlineBytes(h.PhotoList())
	}
	return &apperr.DocumentTooLargeError{Size: len(data), PhotoBytes: photoBytes, Limit: limit}
}
