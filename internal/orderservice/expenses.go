package orderservice

import (
	"context"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/erikfacundo/mechiv2-sub000/internal/apperr"
	"github.com/erikfacundo/mechiv2-sub000/internal/models"
)

// ExpenseInput is the payload for AddExpense.
type ExpenseInput struct {
	Description string     `json:"description"`
	Amount      float64    `json:"amount"`
	InvoiceURL  string     `json:"invoiceUrl"`
	Date        *time.Time `json:"date,omitempty"`
}

// Validate checks the expense payload.
func (in *ExpenseInput) Validate() error {
	in.Description = strings.TrimSpace(in.Description)
	return validation.ValidateStruct(in,
		validation.Field(&in.Description, validation.Required),
		validation.Field(&in.Amount, validation.Required, validation.Min(0.0).Exclusive()),
		validation.Field(&in.InvoiceURL, is.URL),
	)
}

// AddExpense records a cost against the order.
func (s *Service) AddExpense(ctx context.Context, orderID string, in ExpenseInput) (*models.WorkOrder, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalid, err)
	}
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	date := s.now().UTC()
	if in.Date != nil {
		date = in.Date.UTC()
	}
	order.Expenses = append(order.Expenses, models.Expense{
		ID:          s.newID(),
		Description: in.Description,
		Amount:      in.Amount,
		InvoiceURL:  in.InvoiceURL,
		Date:        date,
	})
	return s.write(ctx, order, map[string]any{"expenses": order.Expenses})
}

// RemoveExpense deletes one expense.
func (s *Service) RemoveExpense(ctx context.Context, orderID, expenseID string) (*models.WorkOrder, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	kept := make([]models.Expense, 0, len(order.Expenses))
	for _, e := range order.Expenses {
		if e.ID != expenseID {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(order.Expenses) {
		return nil, fmt.Errorf("expense %s: %w", expenseID, apperr.ErrNotFound)
	}
	order.Expenses = kept
	return s.write(ctx, order, map[string]any{"expenses": order.Expenses})
}
