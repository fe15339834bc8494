// Package customers keeps the customer directory referenced by quotes and work orders.
package customers

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the relationship stage of a customer.
type Status string

const (
	StatusLead     Status = "Lead"
	StatusProspect Status = "Prospect"
	StatusActive   Status = "Active"
	StatusVIP      Status = "VIP"
	StatusInactive Status = "Inactive"
	StatusDeleted  Status = "Deleted"
)

// Statuses lists every recognised status.
var Statuses = []Status{StatusLead, StatusProspect, StatusActive, StatusVIP, StatusInactive, StatusDeleted}

// ParseStatus matches raw case-insensitively.
func ParseStatus(raw string) (Status, bool) {
	raw = strings.TrimSpace(raw)
	for _, s := range Statuses {
		if strings.EqualFold(raw, string(s)) {
			return s, true
		}
	}
	return "", false
}

// Customer is a person or company the business quotes and bills.
type Customer struct {
	ID            uuid.UUID  `json:"id"`
	AccountNumber string     `json:"account_number"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	Phone         string     `json:"phone"`
	Address       string     `json:"address"`
	Status        Status     `json:"status"`
	Notes         *string    `json:"notes,omitempty"`
	CreatedBy     string     `json:"created_by"`
	UpdatedBy     string     `json:"updated_by"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty"`
}

// ListFilter narrows List results.
type ListFilter struct {
	Status *Status
	Search string
	Limit  int
	Offset int
}
