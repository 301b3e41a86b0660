// Package models defines the domain types for the workshop.
package models

import "time"

// Order statuses.
const (
	OrderStatusPending    = "pending"
	OrderStatusInProgress = "in_progress"
	OrderStatusCompleted  = "completed"
	OrderStatusDelivered  = "delivered"
)

// ChecklistItem is one line of an order checklist. A non-nil ParentTask holds
// the Task text of the top-level item it belongs to.
type ChecklistItem struct {
	ID          string     `json:"id"`
	Task        string     `json:"task"`
	ParentTask  *string    `json:"parentTask,omitempty"`
	Completed   bool       `json:"completed"`
	Notes       string     `json:"notes,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// IsTopLevel reports whether the item has no parent.
func (c ChecklistItem) IsTopLevel() bool {
	return c.ParentTask == nil
}

// Expense is a cost recorded against a single order.
type Expense struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Amount      float64   `json:"amount"`
	InvoiceURL  string    `json:"invoiceUrl,omitempty"`
	Date        time.Time `json:"date"`
}

// WorkOrder is a repair job for one vehicle. CompletionPercentage is always
// derived from Checklist.
type WorkOrder struct {
	ID                   string          `json:"id"`
	OrderNumber          string          `json:"orderNumber"`
	ClientID             string          `json:"clientId,omitempty"`
	VehicleID            string          `json:"vehicleId,omitempty"`
	Description          string          `json:"description,omitempty"`
	Status               string          `json:"status"`
	Checklist            []ChecklistItem `json:"checklist"`
	CompletionPercentage int             `json:"completionPercentage"`
	Expenses             []Expense       `json:"expenses"`
	Photos               []Photo         `json:"photos"`
	CreatedAt            time.Time       `json:"createdAt"`
	UpdatedAt            time.Time       `json:"updatedAt"`
}

// TotalExpenses sums the order's expenses.
func (o *WorkOrder) TotalExpenses() float64 {
	var total float64
	for _, e := range o.Expenses {
		total += e.Amount
	}
	return total
}
