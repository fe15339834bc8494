// Package workorders tracks field jobs from intake through completion.
package workorders

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status enumerates work order states.
type Status string

const (
	StatusNew        Status = "New"
	StatusScheduled  Status = "Scheduled"
	StatusInProgress Status = "In Progress"
	StatusOnHold     Status = "On Hold"
	StatusComplete   Status = "Complete"
	StatusCancelled  Status = "Cancelled"
	StatusDeleted    Status = "Deleted"
)

var Statuses = []Status{
	StatusNew, StatusScheduled, StatusInProgress, StatusOnHold,
	StatusComplete, StatusCancelled, StatusDeleted,
}

// ParseStatus matches raw case-insensitively; "in_progress" and
// "on-hold" style spellings are accepted.
func ParseStatus(raw string) (Status, bool) {
	norm := strings.NewReplacer("_", " ", "-", " ").Replace(strings.TrimSpace(raw))
	for _, s := range Statuses {
		if strings.EqualFold(norm, string(s)) {
			return s, true
		}
	}
	return "", false
}

// Priority ranks work orders for scheduling.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityNormal Priority = "Normal"
	PriorityHigh   Priority = "High"
	PriorityUrgent Priority = "Urgent"
)

// WorkOrder is a unit of field work, optionally linked to a quote.
type WorkOrder struct {
	ID                 uuid.UUID  `json:"id"`
	WorkOrderNumber    string     `json:"work_order_number"`
	CustomerID         *uuid.UUID `json:"customer_id,omitempty"`
	CustomerName       string     `json:"customer_name"`
	CustomerEmail      string     `json:"customer_email"`
	QuoteID            *uuid.UUID `json:"quote_id,omitempty"`
	Description        string     `json:"description"`
	Status             Status     `json:"status"`
	Priority           Priority   `json:"priority"`
	ScheduledDate      *time.Time `json:"scheduled_date,omitempty"`
	AssignedTo         *string    `json:"assigned_to,omitempty"`
	Notes              *string    `json:"notes,omitempty"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancellationReason *string    `json:"cancellation_reason,omitempty"`
	CreatedBy          string     `json:"created_by"`
	UpdatedBy          string     `json:"updated_by"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	DeletedAt          *time.Time `json:"deleted_at,omitempty"`
}

type CreateRequest struct {
	CustomerName  string     `json:"customer_name" validate:"required,max=200"`
	CustomerEmail string     `json:"customer_email" validate:"required,email,max=254"`
	CustomerID    *uuid.UUID `json:"customer_id,omitempty"`
	QuoteID       *uuid.UUID `json:"quote_id,omitempty"`
	Description   string     `json:"description" validate:"required,min=10,max=4000"`
	Priority      string     `json:"priority,omitempty" validate:"omitempty,oneof=Low Normal High Urgent"`
	ScheduledDate *time.Time `json:"scheduled_date,omitempty"`
	AssignedTo    *string    `json:"assigned_to,omitempty" validate:"omitempty,max=200"`
	Notes         *string    `json:"notes,omitempty" validate:"omitempty,max=4000"`
}

type UpdateRequest struct {
	CustomerName  *string    `json:"customer_name,omitempty" validate:"omitempty,min=1,max=200"`
	CustomerEmail *string    `json:"customer_email,omitempty" validate:"omitempty,email,max=254"`
	CustomerID    *uuid.UUID `json:"customer_id,omitempty"`
	QuoteID       *uuid.UUID `json:"quote_id,omitempty"`
	Description   *string    `json:"description,omitempty" validate:"omitempty,min=10,max=4000"`
	Priority      *string    `json:"priority,omitempty" validate:"omitempty,oneof=Low Normal High Urgent"`
	ScheduledDate *time.Time `json:"scheduled_date,omitempty"`
	AssignedTo    *string    `json:"assigned_to,omitempty" validate:"omitempty,max=200"`
	Notes         *string    `json:"notes,omitempty" validate:"omitempty,max=4000"`
}

type SetStatusRequest struct {
	Status string  `json:"status" validate:"required"`
	Notes  *string `json:"notes,omitempty" validate:"omitempty,max=4000"`
}

type ListFilter struct {
	Status     *Status
	Priority   *Priority
	CustomerID *uuid.UUID
	QuoteID    *uuid.UUID
	FromDate   *time.Time
	ToDate     *time.Time
	Limit      int
	Offset     int
}
