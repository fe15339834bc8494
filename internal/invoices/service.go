package invoices

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stonecrest/backoffice/internal/notify"
	"github.com/stonecrest/backoffice/internal/pricing"
	"github.com/stonecrest/backoffice/internal/quotes"
	"github.com/stonecrest/backoffice/internal/sequence"
	"github.com/stonecrest/backoffice/internal/shared"
)

// Repository persists invoices and their payments.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id uuid.UUID) (*Invoice, error)
	List(ctx context.Context, filter ListFilter) ([]Invoice, int, error)
	ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]Payment, error)
	ListOverdue(ctx context.Context, asOf time.Time) ([]uuid.UUID, error)
}

// TxRepository is the transactional view. Quote access goes through the
// same transaction so invoicing and marking the quote commit together.
type TxRepository interface {
	GetQuoteForUpdate(ctx context.Context, quoteID uuid.UUID) (*quotes.Quote, error)
	SaveQuote(ctx context.Context, q quotes.Quote) error
	HasLiveInvoice(ctx context.Context, quoteID uuid.UUID) (bool, error)
	NextNumber(ctx context.Context) (sequence.Number, error)
	Insert(ctx context.Context, inv Invoice) error
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Invoice, error)
	Save(ctx context.Context, inv Invoice) error
	AppendPayment(ctx context.Context, p Payment) error
	ClaimIdempotencyKey(ctx context.Context, key string) error
}

type Service struct {
	repo   Repository
	events notify.Publisher
	dueIn  time.Duration
	now    func() time.Time
}

func NewService(repo Repository, events notify.Publisher) *Service {
	return &Service{
		repo:   repo,
		events: notify.OrNop(events),
		dueIn:  DefaultDueIn,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetDefaultDue overrides the payment term for invoices without a due date.
func (s *Service) SetDefaultDue(d time.Duration) {
	if d > 0 {
		s.dueIn = d
	}
}

// CreateFromQuote bills an Approved quote and marks it Invoiced in the same
// transaction. A quote yields at most one live invoice.
func (s *Service) CreateFromQuote(ctx context.Context, req CreateFromQuoteRequest) (*Invoice, error) {
	if verr := shared.ValidateStruct(req); verr != nil {
		return nil, verr
	}

	now := s.now()
	actor := shared.ActorFromContext(ctx)
	var inv Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		q, err := tx.GetQuoteForUpdate(ctx, req.QuoteID)
		if err != nil {
			return err
		}
		exists, err := tx.HasLiveInvoice(ctx, q.ID)
		if err != nil {
			return err
		}
		if exists || q.Status == quotes.StatusInvoiced {
			return shared.Conflictf("quote %s has already been invoiced", q.QuoteNumber)
		}
		if q.Status != quotes.StatusApproved {
			return shared.Conflictf("quote %s is %s; only Approved quotes can be invoiced", q.QuoteNumber, q.Status)
		}

		inv = Invoice{
			ID:            uuid.New(),
			QuoteID:       q.ID,
			CustomerID:    q.CustomerID,
			CustomerName:  q.CustomerName,
			CustomerEmail: q.CustomerEmail,
			LineItems:     pricing.CloneItems(q.LineItems),
			Subtotal:      q.Total,
			TaxRate:       req.TaxRate,
			Status:        StatusDraft,
			DueDate:       now.Add(s.dueIn),
			Notes:         req.Notes,
			CreatedBy:     actor,
			UpdatedBy:     actor,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if req.DueDate != nil {
			inv.DueDate = req.DueDate.UTC()
		}
		inv.computeTotals()
		if !pricing.WithinMaxAmount(inv.Total) {
			return shared.NewValidationError("tax_rate", fmt.Sprintf("invoice total must not exceed %.2f", pricing.MaxAmount))
		}

		number, err := tx.NextNumber(ctx)
		if err != nil {
			return err
		}
		inv.InvoiceNumber = number.Text
		if err := tx.Insert(ctx, inv); err != nil {
			return err
		}

		q.Status = quotes.StatusInvoiced
		q.InvoiceID = &inv.ID
		q.InvoicedAt = &now
		q.UpdatedBy = actor
		q.UpdatedAt = now
		return tx.SaveQuote(ctx, *q)
	})
	if err != nil {
		return nil, fmt.Errorf("create invoice from quote: %w", err)
	}

	s.publish(ctx, notify.InvoiceCreated, &inv, map[string]any{
		"quote_id":       inv.QuoteID.String(),
		"total":          inv.Total,
		"due_date":       inv.DueDate.Format("2006-01-02"),
		"customer_email": inv.CustomerEmail,
		"customer_name":  inv.CustomerName,
	})
	return &inv, nil
}

// Get returns a live invoice with its payments oldest first.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	payments, err := s.repo.ListPayments(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	inv.Payments = payments
	return inv, nil
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]Invoice, int, error) {
	filter.Limit = shared.ClampLimit(filter.Limit)
	if filter.Status != nil && *filter.Status == StatusDeleted {
		return []Invoice{}, 0, nil
	}
	return s.repo.List(ctx, filter)
}

// SetStatus applies a manual status change. Delivery statuses are refused
// once a payment exists so they cannot mask a Partial or Paid balance.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, req SetStatusRequest) (*Invoice, error) {
	status, ok := ParseStatus(req.Status)
	if !ok {
		return nil, shared.NewValidationError("status", "must be one of: "+joinStatuses())
	}
	if status == StatusDeleted {
		return s.softDelete(ctx, id)
	}

	var (
		updated  Invoice
		previous Status
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if status.preSettlement() && inv.AmountPaid > 0 {
			return shared.Conflictf("invoice %s has payments recorded and cannot return to %s", inv.InvoiceNumber, status)
		}
		previous = inv.Status
		now := s.now()
		inv.Status = status
		switch status {
		case StatusSent:
			inv.SentAt = &now
		case StatusPaid:
			if inv.PaidAt == nil {
				inv.PaidAt = &now
			}
		}
		inv.UpdatedBy = shared.ActorFromContext(ctx)
		inv.UpdatedAt = now
		if err := tx.Save(ctx, *inv); err != nil {
			return err
		}
		updated = *inv
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("set invoice status: %w", err)
	}

	s.publish(ctx, notify.InvoiceStatusChanged, &updated, map[string]any{
		"from": string(previous),
		"to":   string(updated.Status),
	})
	return &updated, nil
}

// RecordPayment appends a payment and recomputes the balance under a row
// lock. A non-empty idempotency key makes client retries safe.
func (s *Service) RecordPayment(ctx context.Context, id uuid.UUID, req RecordPaymentRequest, idempotencyKey string) (*PaymentResult, error) {
	verr := shared.ValidateStruct(req)
	if verr == nil {
		verr = &shared.ValidationError{}
	}
	if req.PaymentMethod != "" && strings.TrimSpace(req.PaymentMethod) == "" {
		verr.Add("payment_method", "must not be blank")
	}
	if !pricing.IsWholeCents(req.Amount) {
		verr.Add("amount", "must have at most 2 decimal places")
	}
	if err := verr.ErrOrNil(); err != nil {
		return nil, err
	}

	var (
		result   PaymentResult
		wasPaid  bool
		previous Status
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if idempotencyKey != "" {
			if err := tx.ClaimIdempotencyKey(ctx, id.String()+":"+idempotencyKey); err != nil {
				return err
			}
		}
		inv, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if inv.Status == StatusCancelled {
			return shared.Conflictf("invoice %s is cancelled", inv.InvoiceNumber)
		}

		now := s.now()
		payment := Payment{
			ID:            uuid.New(),
			InvoiceID:     inv.ID,
			Amount:        req.Amount,
			PaymentMethod: strings.TrimSpace(req.PaymentMethod),
			Reference:     req.Reference,
			Notes:         req.Notes,
			RecordedAt:    now,
			RecordedBy:    shared.ActorFromContext(ctx),
		}
		if err := tx.AppendPayment(ctx, payment); err != nil {
			return err
		}

		previous = inv.Status
		wasPaid = inv.Status == StatusPaid
		applyPayment(inv, payment.Amount, now)
		inv.UpdatedBy = payment.RecordedBy
		inv.UpdatedAt = now
		if err := tx.Save(ctx, *inv); err != nil {
			return err
		}
		result = PaymentResult{
			NewBalance: inv.BalanceDue,
			Credit:     inv.Credit,
			Status:     inv.Status,
			Payment:    payment,
			Invoice:    inv,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("record payment: %w", err)
	}

	inv := result.Invoice
	s.publish(ctx, notify.InvoicePaymentRecorded, inv, map[string]any{
		"amount":      result.Payment.Amount,
		"method":      result.Payment.PaymentMethod,
		"new_balance": result.NewBalance,
		"from":        string(previous),
		"to":          string(result.Status),
	})
	if result.Status == StatusPaid && !wasPaid {
		s.publish(ctx, notify.InvoicePaid, inv, map[string]any{
			"total":          inv.Total,
			"customer_email": inv.CustomerEmail,
			"customer_name":  inv.CustomerName,
		})
	}
	return &result, nil
}

// ListPayments returns the ledger of a live invoice oldest first.
func (s *Service) ListPayments(ctx context.Context, id uuid.UUID) ([]Payment, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListPayments(ctx, id)
}

// SoftDelete hides an invoice without payments and returns its quote to
// Approved so it can be billed again.
func (s *Service) SoftDelete(ctx context.Context, id uuid.UUID) error {
	_, err := s.softDelete(ctx, id)
	return err
}

func (s *Service) softDelete(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	var deleted Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if inv.AmountPaid > 0 {
			return shared.Conflictf("invoice %s has payments recorded and cannot be deleted", inv.InvoiceNumber)
		}
		now := s.now()
		actor := shared.ActorFromContext(ctx)
		inv.Status = StatusDeleted
		inv.DeletedAt = &now
		inv.UpdatedAt = now
		inv.UpdatedBy = actor
		if err := tx.Save(ctx, *inv); err != nil {
			return err
		}
		deleted = *inv

		q, err := tx.GetQuoteForUpdate(ctx, inv.QuoteID)
		if errors.Is(err, shared.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if q.InvoiceID == nil || *q.InvoiceID != inv.ID {
			return nil
		}
		q.Status = quotes.StatusApproved
		q.InvoiceID = nil
		q.InvoicedAt = nil
		q.UpdatedBy = actor
		q.UpdatedAt = now
		return tx.SaveQuote(ctx, *q)
	})
	if err != nil {
		return nil, fmt.Errorf("delete invoice: %w", err)
	}
	s.publish(ctx, notify.InvoiceDeleted, &deleted, map[string]any{"quote_id": deleted.QuoteID.String()})
	return &deleted, nil
}

// MarkOverdue moves outstanding invoices past their due date to Overdue.
// It returns how many invoices changed.
func (s *Service) MarkOverdue(ctx context.Context) (int, error) {
	now := s.now()
	ids, err := s.repo.ListOverdue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list overdue invoices: %w", err)
	}
	changed := 0
	for _, id := range ids {
		var updated *Invoice
		err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			inv, err := tx.GetForUpdate(ctx, id)
			if err != nil {
				return err
			}
			if !inv.Status.Outstanding() || inv.Status == StatusOverdue || !inv.DueDate.Before(now) {
				return nil
			}
			inv.Status = StatusOverdue
			inv.UpdatedAt = now
			inv.UpdatedBy = "system"
			updated = inv
			return tx.Save(ctx, *inv)
		})
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				continue
			}
			return changed, fmt.Errorf("mark invoice %s overdue: %w", id, err)
		}
		if updated != nil {
			changed++
			s.events.Publish(ctx, notify.Event{
				Type:     notify.InvoiceStatusChanged,
				Entity:   "invoice",
				EntityID: updated.ID.String(),
				Number:   updated.InvoiceNumber,
				Actor:    "system",
				Data:     map[string]any{"to": string(StatusOverdue)},
			})
		}
	}
	return changed, nil
}

func (s *Service) publish(ctx context.Context, typ string, inv *Invoice, data map[string]any) {
	s.events.Publish(ctx, notify.Event{
		Type:     typ,
		Entity:   "invoice",
		EntityID: inv.ID.String(),
		Number:   inv.InvoiceNumber,
		Actor:    shared.ActorFromContext(ctx),
		Data:     data,
	})
}

func joinStatuses() string {
	names := make([]string, len(Statuses))
	for i, st := range Statuses {
		names[i] = string(st)
	}
	return strings.Join(names, ", ")
}
