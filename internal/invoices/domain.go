// Package invoices bills approved quotes and keeps the payment ledger.
package invoices

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stonecrest/backoffice/internal/pricing"
)

// Status enumerates invoice states.
type Status string

const (
	StatusDraft     Status = "Draft"
	StatusSent      Status = "Sent"
	StatusViewed    Status = "Viewed"
	StatusPartial   Status = "Partial"
	StatusPaid      Status = "Paid"
	StatusOverdue   Status = "Overdue"
	StatusCancelled Status = "Cancelled"
	StatusDeleted   Status = "Deleted"
)

var Statuses = []Status{
	StatusDraft, StatusSent, StatusViewed, StatusPartial,
	StatusPaid, StatusOverdue, StatusCancelled, StatusDeleted,
}

func ParseStatus(raw string) (Status, bool) {
	raw = strings.TrimSpace(raw)
	for _, s := range Statuses {
		if strings.EqualFold(raw, string(s)) {
			return s, true
		}
	}
	return "", false
}

// preSettlement statuses describe delivery only and cannot be set once
// money has been received.
func (s Status) preSettlement() bool {
	return s == StatusDraft || s == StatusSent || s == StatusViewed
}

// Outstanding reports whether the invoice still expects payment.
func (s Status) Outstanding() bool {
	switch s {
	case StatusSent, StatusViewed, StatusPartial, StatusOverdue:
		return true
	}
	return false
}

// DefaultDueIn is the payment term applied when no due date is supplied.
const DefaultDueIn = 30 * 24 * time.Hour

// Invoice bills exactly one quote.
type Invoice struct {
	ID            uuid.UUID          `json:"id"`
	InvoiceNumber string             `json:"invoice_number"`
	QuoteID       uuid.UUID          `json:"quote_id"`
	CustomerID    *uuid.UUID         `json:"customer_id,omitempty"`
	CustomerName  string             `json:"customer_name"`
	CustomerEmail string             `json:"customer_email"`
	LineItems     []pricing.LineItem `json:"line_items"`
	Subtotal      float64            `json:"subtotal"`
	TaxRate       float64            `json:"tax_rate"`
	TaxAmount     float64            `json:"tax_amount"`
	Total         float64            `json:"total"`
	AmountPaid    float64            `json:"amount_paid"`
	BalanceDue    float64            `json:"balance_due"`
	Credit        float64            `json:"credit"`
	Status        Status             `json:"status"`
	DueDate       time.Time          `json:"due_date"`
	Notes         *string            `json:"notes,omitempty"`
	SentAt        *time.Time         `json:"sent_at,omitempty"`
	PaidAt        *time.Time         `json:"paid_at,omitempty"`
	Payments      []Payment          `json:"payments,omitempty"`
	CreatedBy     string             `json:"created_by"`
	UpdatedBy     string             `json:"updated_by"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
	DeletedAt     *time.Time         `json:"deleted_at,omitempty"`
}

// Payment is an append-only ledger entry.
type Payment struct {
	ID            uuid.UUID `json:"id"`
	InvoiceID     uuid.UUID `json:"invoice_id"`
	Amount        float64   `json:"amount"`
	PaymentMethod string    `json:"payment_method"`
	Reference     *string   `json:"reference,omitempty"`
	Notes         *string   `json:"notes,omitempty"`
	RecordedAt    time.Time `json:"recorded_at"`
	RecordedBy    string    `json:"recorded_by"`
}

// computeTotals prices the invoice from its subtotal and tax rate.
func (inv *Invoice) computeTotals() {
	subtotal := decimal.NewFromFloat(inv.Subtotal)
	tax := subtotal.Mul(decimal.NewFromFloat(inv.TaxRate)).Div(decimal.NewFromInt(100)).Round(2)
	inv.TaxAmount = tax.InexactFloat64()
	inv.Total = subtotal.Add(tax).Round(2).InexactFloat64()
	inv.settle()
}

// settle derives balance due and credit from total and amount paid.
// Balance due never goes negative; any excess is reported as credit.
func (inv *Invoice) settle() {
	diff := decimal.NewFromFloat(inv.Total).Sub(decimal.NewFromFloat(inv.AmountPaid)).Round(2)
	inv.BalanceDue, inv.Credit = 0, 0
	if diff.IsPositive() {
		inv.BalanceDue = diff.InexactFloat64()
	} else {
		inv.Credit = diff.Neg().InexactFloat64()
	}
}

// applyPayment books amount against the invoice and derives the new status.
func applyPayment(inv *Invoice, amount float64, at time.Time) {
	inv.AmountPaid = decimal.NewFromFloat(inv.AmountPaid).Add(decimal.NewFromFloat(amount)).Round(2).InexactFloat64()
	inv.settle()
	switch {
	case inv.BalanceDue <= 0:
		inv.Status = StatusPaid
		if inv.PaidAt == nil {
			paid := at
			inv.PaidAt = &paid
		}
	case inv.AmountPaid > 0:
		inv.Status = StatusPartial
	}
}

type CreateFromQuoteRequest struct {
	QuoteID uuid.UUID  `json:"quote_id" validate:"required"`
	TaxRate float64    `json:"tax_rate" validate:"gte=0,lte=100"`
	DueDate *time.Time `json:"due_date,omitempty"`
	Notes   *string    `json:"notes,omitempty" validate:"omitempty,max=4000"`
}

type SetStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type RecordPaymentRequest struct {
	Amount        float64 `json:"amount" validate:"gt=0,lte=999999999999.99"`
	PaymentMethod string  `json:"payment_method" validate:"required,max=50"`
	Reference     *string `json:"reference,omitempty" validate:"omitempty,max=200"`
	Notes         *string `json:"notes,omitempty" validate:"omitempty,max=4000"`
}

// PaymentResult is returned after a payment is booked.
type PaymentResult struct {
	NewBalance float64  `json:"new_balance"`
	Credit     float64  `json:"credit"`
	Status     Status   `json:"status"`
	Payment    Payment  `json:"payment"`
	Invoice    *Invoice `json:"invoice"`
}

type ListFilter struct {
	Status     *Status
	CustomerID *uuid.UUID
	QuoteID    *uuid.UUID
	FromDate   *time.Time
	ToDate     *time.Time
	Limit      int
	Offset     int
}
