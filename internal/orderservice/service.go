// Package orderservice is the domain layer for work orders. It ties the
// checklist engine, the photo pipeline and order numbering to the document
// store.
package orderservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/erikfacundo/mechiv2-sub000/internal/apperr"
	"github.com/erikfacundo/mechiv2-sub000/internal/checklist"
	"github.com/erikfacundo/mechiv2-sub000/internal/docstore"
	"github.com/erikfacundo/mechiv2-sub000/internal/models"
	"github.com/erikfacundo/mechiv2-sub000/internal/numbering"
	"github.com/erikfacundo/mechiv2-sub000/internal/photos"
	"github.com/erikfacundo/mechiv2-sub000/internal/sse"
)

// Publisher receives order change notifications.
type Publisher interface {
	PublishOrderEvent(kind, id, number string, progress int)
}

type noopPublisher struct{}

func (noopPublisher) PublishOrderEvent(string, string, string, int) {}

// Service coordinates order reads and writes.
type Service struct {
	orders     *docstore.Collection[models.WorkOrder]
	clients    *docstore.Collection[models.Client]
	vehicles   *docstore.Collection[models.Vehicle]
	categories *docstore.Collection[models.Category]

	engine  *checklist.Engine
	photos  *photos.Pipeline
	numbers *numbering.Generator
	events  Publisher
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher sends order events to p.
func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.events = p
		}
	}
}

// WithClock sets the time source for expense dates and completion stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDFunc sets the id generator for expenses and checklist items
// supplied without one.
func WithIDFunc(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

// New creates a Service.
func New(store docstore.Store, engine *checklist.Engine, pipeline *photos.Pipeline, numbers *numbering.Generator, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		orders:     docstore.NewCollection[models.WorkOrder](store, docstore.Orders),
		clients:    docstore.NewCollection[models.Client](store, docstore.Clients),
		vehicles:   docstore.NewCollection[models.Vehicle](store, docstore.Vehicles),
		categories: docstore.NewCollection[models.Category](store, docstore.Categories),
		engine:     engine,
		photos:     pipeline,
		numbers:    numbers,
		events:     noopPublisher{},
		logger:     logger,
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateOrderInput is the payload for CreateOrder.
type CreateOrderInput struct {
	ClientID    string                 `json:"clientId"`
	VehicleID   string                 `json:"vehicleId"`
	Description string                 `json:"description"`
	Status      string                 `json:"status"`
	Checklist   []models.ChecklistItem `json:"checklist"`
	// CompletionPercentage is a client-side hint. It is never stored.
	CompletionPercentage *int `json:"completionPercentage,omitempty"`
}

var statuses = []any{
	models.OrderStatusPending,
	models.OrderStatusInProgress,
	models.OrderStatusCompleted,
	models.OrderStatusDelivered,
}

// Validate checks the create payload.
func (in *CreateOrderInput) Validate() error {
	return validation.ValidateStruct(in,
		validation.Field(&in.ClientID, validation.Required),
		validation.Field(&in.VehicleID, validation.Required),
		validation.Field(&in.Status, validation.In(statuses...)),
	)
}

// CreateOrder assigns the next order number and stores a new order.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (*models.WorkOrder, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalid, err)
	}

	number, degraded := s.numbers.Next(ctx)
	items := s.withIDs(in.Checklist)
	pct := s.reconcile("", items, in.CompletionPercentage)

	status := in.Status
	if status == "" {
		status = models.OrderStatusPending
	}
	order := &models.WorkOrder{
		OrderNumber:          number,
		ClientID:             in.ClientID,
		VehicleID:            in.VehicleID,
		Description:          strings.TrimSpace(in.Description),
		Status:               status,
		Checklist:            nonNil(items),
		CompletionPercentage: pct,
		Expenses:             []models.Expense{},
		Photos:               []models.Photo{},
	}
	if err := s.photos.CheckDocument(order); err != nil {
		return nil, err
	}
	created, err := s.orders.Create(ctx, order)
	if err != nil {
		return nil, err
	}
	if degraded {
		s.logger.Warn("order created with fallback number",
			slog.String("order_id", created.ID),
			slog.String("order_number", number))
	}
	s.publish(sse.OrderCreated, created)
	s.markRemote(created)
	return created, nil
}

// GetOrder loads one order.
func (s *Service) GetOrder(ctx context.Context, id string) (*models.WorkOrder, error) {
	order, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.markRemote(order)
	return order, nil
}

// ListFilter narrows ListOrders.
type ListFilter struct {
	Status    string
	ClientID  string
	VehicleID string
	Limit     int
	Offset    int
}

// OrderSummary is a list entry enriched with display names.
type OrderSummary struct {
	models.WorkOrder
	ClientName   string `json:"clientName,omitempty"`
	VehiclePlate string `json:"vehiclePlate,omitempty"`
}

// ListOrders returns orders newest first. Store failures yield an empty
// list and are logged.
func (s *Service) ListOrders(ctx context.Context, f ListFilter) []OrderSummary {
	df := docstore.Filter{Limit: f.Limit, Offset: f.Offset}
	switch {
	case f.Status != "":
		df.Field, df.Value = "status", f.Status
	case f.ClientID != "":
		df.Field, df.Value = "clientId", f.ClientID
	case f.VehicleID != "":
		df.Field, df.Value = "vehicleId", f.VehicleID
	}

	orders, err := s.orders.List(ctx, df)
	if err != nil {
		s.logger.Error("list orders failed", slog.String("error", err.Error()))
		return []OrderSummary{}
	}

	lookups := newLookupCache(s.clients, s.vehicles, s.logger)
	out := make([]OrderSummary, 0, len(orders))
	for _, o := range orders {
		s.markRemote(&o)
		out = append(out, OrderSummary{
			WorkOrder:    o,
			ClientName:   lookups.clientName(ctx, o.ClientID),
			VehiclePlate: lookups.vehiclePlate(ctx, o.VehicleID),
		})
	}
	return out
}

// UpdateOrderInput is a partial update. Nil fields are left untouched.
type UpdateOrderInput struct {
	ClientID    *string                 `json:"clientId,omitempty"`
	VehicleID   *string                 `json:"vehicleId,omitempty"`
	Description *string                 `json:"description,omitempty"`
	Status      *string                 `json:"status,omitempty"`
	Checklist   *[]models.ChecklistItem `json:"checklist,omitempty"`
	// CompletionPercentage is a client-side hint. It is never stored.
	CompletionPercentage *int `json:"completionPercentage,omitempty"`
}

// Validate checks the update payload.
func (in *UpdateOrderInput) Validate() error {
	return validation.ValidateStruct(in,
		validation.Field(&in.Status, validation.NilOrNotEmpty, validation.In(statuses...)),
	)
}

// UpdateOrder applies a partial update. When the checklist is replaced the
// completion percentage is recomputed and stored with it.
func (s *Service) UpdateOrder(ctx context.Context, id string, in UpdateOrderInput) (*models.WorkOrder, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalid, err)
	}
	order, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	patch := map[string]any{}
	if in.ClientID != nil {
		patch["clientId"] = *in.ClientID
		order.ClientID = *in.ClientID
	}
	if in.VehicleID != nil {
		patch["vehicleId"] = *in.VehicleID
		order.VehicleID = *in.VehicleID
	}
	if in.Description != nil {
		patch["description"] = strings.TrimSpace(*in.Description)
		order.Description = strings.TrimSpace(*in.Description)
	}
	if in.Status != nil {
		patch["status"] = *in.Status
		order.Status = *in.Status
	}
	if in.Checklist != nil {
		order.Checklist = nonNil(s.withIDs(*in.Checklist))
		order.CompletionPercentage = s.reconcile(id, order.Checklist, in.CompletionPercentage)
		patch["checklist"] = order.Checklist
		patch["completionPercentage"] = order.CompletionPercentage
	} else if in.CompletionPercentage != nil {
		s.reconcile(id, order.Checklist, in.CompletionPercentage)
	}
	if len(patch) == 0 {
		s.markRemote(order)
		return order, nil
	}
	return s.write(ctx, order, patch)
}

// DeleteOrder removes the order and releases its remote photos.
func (s *Service) DeleteOrder(ctx context.Context, id string) error {
	order, err := s.orders.Get(ctx, id)
	if err != nil {
		return err
	}
	for _, p := range order.Photos {
		s.photos.Delete(ctx, p)
	}
	if err := s.orders.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(sse.OrderDeleted, order)
	return nil
}

// NextNumber previews the number the next order would get.
func (s *Service) NextNumber(ctx context.Context) (string, bool) {
	return s.numbers.Next(ctx)
}

// ListCategories returns the predefined categories. Failures yield an
// empty list.
func (s *Service) ListCategories(ctx context.Context) []models.Category {
	cats, err := s.categories.List(ctx, docstore.Filter{OrderBy: "name"})
	if err != nil {
		s.logger.Error("list categories failed", slog.String("error", err.Error()))
		return []models.Category{}
	}
	return cats
}

// write guards the document size of order, applies patch and publishes the
// change.
func (s *Service) write(ctx context.Context, order *models.WorkOrder, patch map[string]any) (*models.WorkOrder, error) {
	if err := s.photos.CheckDocument(order); err != nil {
		return nil, err
	}
	updated, err := s.orders.Update(ctx, order.ID, patch)
	if err != nil {
		return nil, err
	}
	s.publish(sse.OrderUpdated, updated)
	s.markRemote(updated)
	return updated, nil
}

// reconcile recomputes the percentage and logs a disagreeing hint.
func (s *Service) reconcile(orderID string, items []models.ChecklistItem, hint *int) int {
	pct, disagreed := checklist.Reconcile(items, hint)
	if disagreed {
		s.logger.Warn("ignoring client completion percentage",
			slog.String("order_id", orderID),
			slog.Int("client_value", *hint),
			slog.Int("computed", pct))
	}
	return pct
}

// markRemote flags the photos of o that are served from object storage.
func (s *Service) markRemote(o *models.WorkOrder) {
	for i := range o.Photos {
		o.Photos[i].SkipOptimize = s.photos.IsRemote(o.Photos[i].RemoteURL)
	}
}

func (s *Service) publish(kind string, o *models.WorkOrder) {
	s.events.PublishOrderEvent(kind, o.ID, o.OrderNumber, o.CompletionPercentage)
}

// withIDs fills in missing item ids and keeps CompletedAt set exactly on
// completed items.
func (s *Service) withIDs(items []models.ChecklistItem) []models.ChecklistItem {
	out := checklist.Clone(items)
	for i := range out {
		if out[i].ID == "" {
			out[i].ID = s.newID()
		}
		out[i].Task = strings.TrimSpace(out[i].Task)
		switch {
		case !out[i].Completed:
			out[i].CompletedAt = nil
		case out[i].CompletedAt == nil:
			now := s.now()
			out[i].CompletedAt = &now
		}
	}
	return out
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// isNotFound reports whether err is a missing-record error.
func isNotFound(err error) bool {
	return errors.Is(err, apperr.ErrNotFound)
}
