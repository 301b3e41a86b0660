package orderservice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/erikfacundo/mechiv2-sub000/internal/apperr"
	"github.com/erikfacundo/mechiv2-sub000/internal/checklist"
	"github.com/erikfacundo/mechiv2-sub000/internal/docstore"
	"github.com/erikfacundo/mechiv2-sub000/internal/models"
)

// SetChecklistItem marks an item completed or pending. Completing a
// top-level item completes its sub-items too.
func (s *Service) SetChecklistItem(ctx context.Context, orderID, itemID string, completed bool) (*models.WorkOrder, error) {
	return s.mutateChecklist(ctx, orderID, func(items []models.ChecklistItem) ([]models.ChecklistItem, error) {
		return s.engine.SetCompletion(items, itemID, completed)
	})
}

// AddChecklistItem appends a standalone task.
func (s *Service) AddChecklistItem(ctx context.Context, orderID, task string) (*models.WorkOrder, error) {
	if strings.TrimSpace(task) == "" {
		return nil, fmt.Errorf("%w: task is required", apperr.ErrInvalid)
	}
	return s.mutateChecklist(ctx, orderID, func(items []models.ChecklistItem) ([]models.ChecklistItem, error) {
		return s.engine.AddItem(items, task), nil
	})
}

// RemoveChecklistItem drops one item. Sub-items of a removed parent stay.
func (s *Service) RemoveChecklistItem(ctx context.Context, orderID, itemID string) (*models.WorkOrder, error) {
	return s.mutateChecklist(ctx, orderID, func(items []models.ChecklistItem) ([]models.ChecklistItem, error) {
		out := checklist.RemoveItem(items, itemID)
		if len(out) == len(items) {
			return nil, fmt.Errorf("checklist item %s: %w", itemID, apperr.ErrNotFound)
		}
		if orphans := s.engine.Orphans(out); len(orphans) > len(s.engine.Orphans(items)) {
			s.logger.Info("checklist item removed, sub-items left without parent",
				slog.String("order_id", orderID),
				slog.String("item_id", itemID),
				slog.Int("orphans", len(orphans)))
		}
		return out, nil
	})
}

// AddCategory appends a category as a parent item with its sub-items. If
// subItems is non-empty only those are added.
func (s *Service) AddCategory(ctx context.Context, orderID, categoryID string, subItems []string) (*models.WorkOrder, error) {
	cat, err := s.categories.Get(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	return s.mutateChecklist(ctx, orderID, func(items []models.ChecklistItem) ([]models.ChecklistItem, error) {
		return append(checklist.Clone(items), s.engine.ExpandCategory(*cat, subItems...)...), nil
	})
}

// ChecklistOrphans lists sub-items whose parent no longer exists.
func (s *Service) ChecklistOrphans(ctx context.Context, orderID string) ([]models.ChecklistItem, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return nonNil(s.engine.Orphans(order.Checklist)), nil
}

// OrphanReport lists the orphaned sub-items of one order.
type OrphanReport struct {
	OrderID     string                 `json:"orderId"`
	OrderNumber string                 `json:"orderNumber"`
	Orphans     []models.ChecklistItem `json:"orphans"`
}

// AllOrphans scans every order for orphaned sub-items.
func (s *Service) AllOrphans(ctx context.Context) ([]OrphanReport, error) {
	orders, err := s.orders.List(ctx, docstore.Filter{OrderBy: "orderNumber"})
	if err != nil {
		return nil, err
	}
	out := []OrphanReport{}
	for _, o := range orders {
		if orphans := s.engine.Orphans(o.Checklist); len(orphans) > 0 {
			out = append(out, OrphanReport{OrderID: o.ID, OrderNumber: o.OrderNumber, Orphans: orphans})
		}
	}
	return out, nil
}

// mutateChecklist loads the order, applies fn and persists the new list
// together with its recomputed percentage in a single update.
func (s *Service) mutateChecklist(ctx context.Context, orderID string, fn func([]models.ChecklistItem) ([]models.ChecklistItem, error)) (*models.WorkOrder, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	items, err := fn(order.Checklist)
	if err != nil {
		return nil, err
	}
	order.Checklist = nonNil(items)
	order.CompletionPercentage = checklist.CompletionPercentage(order.Checklist)
	return s.write(ctx, order, map[string]any{
		"checklist":            order.Checklist,
		"completionPercentage": order.CompletionPercentage,
	})
}
