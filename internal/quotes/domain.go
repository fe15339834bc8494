// Package quotes manages priced proposals and their status lifecycle.
package quotes

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stonecrest/backoffice/internal/pricing"
)

// Status enumerates quote states.
type Status string

const (
	StatusOpen     Status = "Open"
	StatusSent     Status = "Sent"
	StatusApproved Status = "Approved"
	StatusRejected Status = "Rejected"
	StatusInvoiced Status = "Invoiced"
	StatusExpired  Status = "Expired"
	StatusDeleted  Status = "Deleted"
)

// Statuses lists every recognised status.
var Statuses = []Status{
	StatusOpen, StatusSent, StatusApproved, StatusRejected,
	StatusInvoiced, StatusExpired, StatusDeleted,
}

// ParseStatus matches raw case-insensitively against the known statuses.
func ParseStatus(raw string) (Status, bool) {
	raw = strings.TrimSpace(raw)
	for _, s := range Statuses {
		if strings.EqualFold(raw, string(s)) {
			return s, true
		}
	}
	return "", false
}

// Locked reports whether line items and fields are frozen.
func (s Status) Locked() bool {
	return s == StatusApproved || s == StatusInvoiced
}

// DefaultValidity is how long a new or duplicated quote stays valid.
const DefaultValidity = 30 * 24 * time.Hour

// Quote is a priced proposal. Totals and margin are derived from LineItems.
type Quote struct {
	ID              uuid.UUID          `json:"id"`
	QuoteNumber     string             `json:"quote_number"`
	CustomerID      *uuid.UUID         `json:"customer_id,omitempty"`
	CustomerName    string             `json:"customer_name"`
	CustomerEmail   string             `json:"customer_email"`
	LineItems       []pricing.LineItem `json:"line_items"`
	TotalCost       float64            `json:"total_cost"`
	Subtotal        float64            `json:"subtotal"`
	Total           float64            `json:"total"`
	Margin          float64            `json:"margin"`
	Status          Status             `json:"status"`
	ValidUntil      time.Time          `json:"valid_until"`
	AllowOverride   bool               `json:"allow_override"`
	Notes           *string            `json:"notes,omitempty"`
	SentAt          *time.Time         `json:"sent_at,omitempty"`
	ApprovedAt      *time.Time         `json:"approved_at,omitempty"`
	RejectedAt      *time.Time         `json:"rejected_at,omitempty"`
	RejectionReason *string            `json:"rejection_reason,omitempty"`
	InvoiceID       *uuid.UUID         `json:"invoice_id,omitempty"`
	InvoicedAt      *time.Time         `json:"invoiced_at,omitempty"`
	DuplicatedFrom  *uuid.UUID         `json:"duplicated_from,omitempty"`
	CreatedBy       string             `json:"created_by"`
	UpdatedBy       string             `json:"updated_by"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
	DeletedAt       *time.Time         `json:"deleted_at,omitempty"`
}

// Recalculate derives totals and margin from the line items. Quotes carry
// no tax, so subtotal and total are equal.
func (q *Quote) Recalculate() pricing.Summary {
	s := pricing.Summarize(q.LineItems)
	q.TotalCost = pricing.Round2(s.TotalCost)
	q.Subtotal = pricing.Round2(s.TotalPrice)
	q.Total = q.Subtotal
	q.Margin = pricing.Round2(s.Margin)
	return s
}

// CreateRequest is the payload for creating a quote.
type CreateRequest struct {
	CustomerName  string             `json:"customer_name" validate:"required,max=200"`
	CustomerEmail string             `json:"customer_email" validate:"required,email,max=254"`
	CustomerID    *uuid.UUID         `json:"customer_id,omitempty"`
	LineItems     []pricing.LineItem `json:"line_items" validate:"required,min=1,dive"`
	Notes         *string            `json:"notes,omitempty" validate:"omitempty,max=4000"`
	ValidUntil    *time.Time         `json:"valid_until,omitempty"`
	AllowOverride bool               `json:"allow_override"`
}

// UpdateRequest carries the fields to change; nil fields are left untouched.
type UpdateRequest struct {
	CustomerName  *string             `json:"customer_name,omitempty" validate:"omitempty,min=1,max=200"`
	CustomerEmail *string             `json:"customer_email,omitempty" validate:"omitempty,email,max=254"`
	CustomerID    *uuid.UUID          `json:"customer_id,omitempty"`
	LineItems     *[]pricing.LineItem `json:"line_items,omitempty" validate:"omitempty,min=1,dive"`
	Notes         *string             `json:"notes,omitempty" validate:"omitempty,max=4000"`
	ValidUntil    *time.Time          `json:"valid_until,omitempty"`
	AllowOverride *bool               `json:"allow_override,omitempty"`
}

// SetStatusRequest moves a quote to another status.
type SetStatusRequest struct {
	Status string  `json:"status" validate:"required"`
	Notes  *string `json:"notes,omitempty" validate:"omitempty,max=4000"`
}

// ListFilter narrows List results. Deleted quotes are never returned.
type ListFilter struct {
	Status     *Status
	CustomerID *uuid.UUID
	FromDate   *time.Time
	ToDate     *time.Time
	Limit      int
	Offset     int
}
