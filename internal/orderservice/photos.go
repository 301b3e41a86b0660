package orderservice

import (
	"context"
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/erikfacundo/mechiv2-sub000/internal/apperr"
	"github.com/erikfacundo/mechiv2-sub000/internal/models"
	"github.com/erikfacundo/mechiv2-sub000/internal/objstore"
	"github.com/erikfacundo/mechiv2-sub000/internal/photos"
)

// PhotoInput is the payload for AddPhoto.
type PhotoInput struct {
	Data        []byte
	FileName    string
	Kind        string
	Description string
}

// Validate checks the photo payload.
func (in *PhotoInput) Validate() error {
	return validation.ValidateStruct(in,
		validation.Field(&in.Data, validation.Required),
		validation.Field(&in.Kind, validation.In(models.PhotoKindInitial, models.PhotoKindFinal)),
	)
}

// PhotoResult is the outcome of AddPhoto.
type PhotoResult struct {
	Order   *models.WorkOrder `json:"order"`
	Photo   models.Photo      `json:"photo"`
	Warning string            `json:"warning,omitempty"`
}

// AddPhoto ingests an image and attaches it to the order. Photos are stored
// under the vehicle's plate.
func (s *Service) AddPhoto(ctx context.Context, orderID string, in PhotoInput) (*PhotoResult, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalid, err)
	}
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	out, err := s.photos.Ingest(ctx, photos.IngestRequest{
		Data:        in.Data,
		FileName:    in.FileName,
		Prefix:      s.photoPrefix(ctx, order.VehicleID),
		Kind:        in.Kind,
		Description: in.Description,
		Existing:    order.Photos,
	})
	if err != nil {
		return nil, err
	}

	order.Photos = append(order.Photos, out.Photo)
	updated, err := s.write(ctx, order, map[string]any{"photos": order.Photos})
	if err != nil {
		// The record was not written; release the upload.
		s.photos.Delete(ctx, out.Photo)
		return nil, err
	}
	photo := out.Photo
	photo.SkipOptimize = s.photos.IsRemote(photo.RemoteURL)
	return &PhotoResult{Order: updated, Photo: photo, Warning: out.Warning}, nil
}

// RemovePhoto detaches a photo and deletes its remote object. A failed
// remote delete does not block the removal.
func (s *Service) RemovePhoto(ctx context.Context, orderID, photoID string) (*models.WorkOrder, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	kept := make([]models.Photo, 0, len(order.Photos))
	var removed *models.Photo
	for i, p := range order.Photos {
		if p.ID == photoID {
			removed = &order.Photos[i]
			continue
		}
		kept = append(kept, p)
	}
	if removed == nil {
		return nil, fmt.Errorf("photo %s: %w", photoID, apperr.ErrNotFound)
	}
	s.photos.Delete(ctx, *removed)
	order.Photos = kept
	return s.write(ctx, order, map[string]any{"photos": order.Photos})
}

// photoPrefix returns the storage folder for a vehicle's photos.
func (s *Service) photoPrefix(ctx context.Context, vehicleID string) string {
	if vehicleID == "" {
		return objstore.DefaultPrefix
	}
	v, err := s.vehicles.Get(ctx, vehicleID)
	if err != nil {
		if !isNotFound(err) {
			s.logger.Warn("vehicle lookup failed", slog.String("vehicle_id", vehicleID), slog.String("error", err.Error()))
		}
		return objstore.DefaultPrefix
	}
	return objstore.NormalizePrefix(v.Plate)
}
