package quotes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stonecrest/backoffice/internal/notify"
	"github.com/stonecrest/backoffice/internal/pricing"
	"github.com/stonecrest/backoffice/internal/sequence"
	"github.com/stonecrest/backoffice/internal/shared"
)

// Repository persists quotes. Reads never return soft-deleted quotes.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id uuid.UUID) (*Quote, error)
	List(ctx context.Context, filter ListFilter) ([]Quote, int, error)
}

// TxRepository is the transactional view used for mutations.
type TxRepository interface {
	NextNumber(ctx context.Context) (sequence.Number, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Quote, error)
	Insert(ctx context.Context, q Quote) error
	Save(ctx context.Context, q Quote) error
}

// CustomerLookup verifies referenced customers.
type CustomerLookup interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// Service implements the quote lifecycle.
type Service struct {
	repo      Repository
	customers CustomerLookup
	events    notify.Publisher
	validity  time.Duration
	now       func() time.Time
}

// NewService builds a Service. customers and events may be nil.
func NewService(repo Repository, customers CustomerLookup, events notify.Publisher) *Service {
	return &Service{
		repo:      repo,
		customers: customers,
		events:    notify.OrNop(events),
		validity:  DefaultValidity,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetValidity overrides how long new and duplicated quotes stay valid.
func (s *Service) SetValidity(d time.Duration) {
	if d > 0 {
		s.validity = d
	}
}

// Create validates the payload, applies the margin gate and stores a new Open quote.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Quote, error) {
	verr := shared.ValidateStruct(req)
	if verr == nil {
		verr = &shared.ValidationError{}
	}
	verr.Merge(validateItems(req.LineItems))

	now := s.now()
	q := Quote{
		ID:            uuid.New(),
		CustomerID:    req.CustomerID,
		CustomerName:  strings.TrimSpace(req.CustomerName),
		CustomerEmail: strings.TrimSpace(req.CustomerEmail),
		LineItems:     pricing.CloneItems(req.LineItems),
		Status:        StatusOpen,
		ValidUntil:    now.Add(s.validity),
		AllowOverride: req.AllowOverride,
		Notes:         req.Notes,
		CreatedBy:     shared.ActorFromContext(ctx),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	q.UpdatedBy = q.CreatedBy
	if req.ValidUntil != nil {
		q.ValidUntil = req.ValidUntil.UTC()
	}
	summary := q.Recalculate()
	if len(verr.Fields) == 0 {
		verr.Merge(marginGate(summary, q.AllowOverride))
	}
	if err := verr.ErrOrNil(); err != nil {
		return nil, err
	}
	if err := s.ensureCustomer(ctx, q.CustomerID); err != nil {
		return nil, err
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number, err := tx.NextNumber(ctx)
		if err != nil {
			return err
		}
		q.QuoteNumber = number.Text
		return tx.Insert(ctx, q)
	})
	if err != nil {
		return nil, fmt.Errorf("create quote: %w", err)
	}

	s.publish(ctx, notify.QuoteCreated, &q, map[string]any{"total": q.Total, "margin": q.Margin})
	return &q, nil
}

// Get returns a live quote.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Quote, error) {
	return s.repo.Get(ctx, id)
}

// Exists reports whether a live quote with id exists.
func (s *Service) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, err := s.repo.Get(ctx, id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, shared.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// List returns live quotes matching filter and the total match count.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Quote, int, error) {
	filter.Limit = shared.ClampLimit(filter.Limit)
	if filter.Status != nil && *filter.Status == StatusDeleted {
		return []Quote{}, 0, nil
	}
	return s.repo.List(ctx, filter)
}

// Update edits an unlocked quote. Approved and Invoiced quotes are immutable.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (*Quote, error) {
	var updated Quote
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		q, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if q.Status.Locked() {
			return shared.Conflictf("quote %s is %s and can no longer be edited", q.QuoteNumber, q.Status)
		}

		verr := shared.ValidateStruct(req)
		if verr == nil {
			verr = &shared.ValidationError{}
		}
		if req.LineItems != nil {
			verr.Merge(validateItems(*req.LineItems))
		}
		if req.CustomerName != nil && strings.TrimSpace(*req.CustomerName) == "" {
			verr.Add("customer_name", "is required")
		}
		if err := verr.ErrOrNil(); err != nil {
			return err
		}

		applyUpdate(q, req)
		summary := q.Recalculate()
		if err := marginGate(summary, q.AllowOverride).ErrOrNil(); err != nil {
			return err
		}
		if req.CustomerID != nil {
			if err := s.ensureCustomer(ctx, req.CustomerID); err != nil {
				return err
			}
		}
		q.UpdatedBy = shared.ActorFromContext(ctx)
		q.UpdatedAt = s.now()
		if err := tx.Save(ctx, *q); err != nil {
			return err
		}
		updated = *q
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update quote: %w", err)
	}

	s.publish(ctx, notify.QuoteUpdated, &updated, nil)
	return &updated, nil
}

// SetStatus moves the quote to any recognised status and stamps the
// matching timestamp. Setting Deleted is a soft delete.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, req SetStatusRequest) (*Quote, error) {
	status, ok := ParseStatus(req.Status)
	if !ok {
		return nil, shared.NewValidationError("status", "must be one of: "+joinStatuses())
	}
	if verr := shared.ValidateStruct(req); verr != nil {
		return nil, verr
	}
	if status == StatusDeleted {
		return s.softDelete(ctx, id)
	}

	var (
		updated  Quote
		previous Status
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		q, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		previous = q.Status
		now := s.now()
		q.Status = status
		switch status {
		case StatusSent:
			q.SentAt = &now
		case StatusApproved:
			q.ApprovedAt = &now
		case StatusRejected:
			q.RejectedAt = &now
			q.RejectionReason = req.Notes
		}
		q.UpdatedBy = shared.ActorFromContext(ctx)
		q.UpdatedAt = now
		if err := tx.Save(ctx, *q); err != nil {
			return err
		}
		updated = *q
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("set quote status: %w", err)
	}

	s.publish(ctx, notify.QuoteStatusChanged, &updated, map[string]any{
		"from":           string(previous),
		"to":             string(updated.Status),
		"total":          updated.Total,
		"customer_email": updated.CustomerEmail,
		"customer_name":  updated.CustomerName,
	})
	return &updated, nil
}

// Duplicate copies a quote under a new number as a fresh Open quote.
func (s *Service) Duplicate(ctx context.Context, id uuid.UUID) (*Quote, error) {
	src, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("duplicate quote: %w", err)
	}

	now := s.now()
	actor := shared.ActorFromContext(ctx)
	srcID := src.ID
	q := Quote{
		ID:             uuid.New(),
		CustomerID:     src.CustomerID,
		CustomerName:   src.CustomerName,
		CustomerEmail:  src.CustomerEmail,
		LineItems:      pricing.CloneItems(src.LineItems),
		Status:         StatusOpen,
		ValidUntil:     now.Add(s.validity),
		AllowOverride:  src.AllowOverride,
		Notes:          src.Notes,
		DuplicatedFrom: &srcID,
		CreatedBy:      actor,
		UpdatedBy:      actor,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	q.Recalculate()

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number, err := tx.NextNumber(ctx)
		if err != nil {
			return err
		}
		q.QuoteNumber = number.Text
		return tx.Insert(ctx, q)
	})
	if err != nil {
		return nil, fmt.Errorf("duplicate quote: %w", err)
	}

	s.publish(ctx, notify.QuoteDuplicated, &q, map[string]any{"duplicated_from": srcID.String()})
	return &q, nil
}

// SoftDelete marks the quote Deleted; it disappears from Get and List.
func (s *Service) SoftDelete(ctx context.Context, id uuid.UUID) error {
	_, err := s.softDelete(ctx, id)
	return err
}

func (s *Service) softDelete(ctx context.Context, id uuid.UUID) (*Quote, error) {
	var deleted Quote
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		q, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		now := s.now()
		q.Status = StatusDeleted
		q.DeletedAt = &now
		q.UpdatedAt = now
		q.UpdatedBy = shared.ActorFromContext(ctx)
		deleted = *q
		return tx.Save(ctx, *q)
	})
	if err != nil {
		return nil, fmt.Errorf("delete quote: %w", err)
	}
	s.publish(ctx, notify.QuoteDeleted, &deleted, nil)
	return &deleted, nil
}

func (s *Service) ensureCustomer(ctx context.Context, id *uuid.UUID) error {
	if id == nil || s.customers == nil {
		return nil
	}
	ok, err := s.customers.Exists(ctx, *id)
	if err != nil {
		return err
	}
	if !ok {
		return shared.NotFoundf("customer %s", id)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, typ string, q *Quote, data map[string]any) {
	s.events.Publish(ctx, notify.Event{
		Type:     typ,
		Entity:   "quote",
		EntityID: q.ID.String(),
		Number:   q.QuoteNumber,
		Actor:    shared.ActorFromContext(ctx),
		Data:     data,
	})
}

func applyUpdate(q *Quote, req UpdateRequest) {
	if req.CustomerName != nil {
		q.CustomerName = strings.TrimSpace(*req.CustomerName)
	}
	if req.CustomerEmail != nil {
		q.CustomerEmail = strings.TrimSpace(*req.CustomerEmail)
	}
	if req.CustomerID != nil {
		id := *req.CustomerID
		q.CustomerID = &id
	}
	if req.LineItems != nil {
		q.LineItems = pricing.CloneItems(*req.LineItems)
	}
	if req.Notes != nil {
		q.Notes = req.Notes
	}
	if req.ValidUntil != nil {
		q.ValidUntil = req.ValidUntil.UTC()
	}
	if req.AllowOverride != nil {
		q.AllowOverride = *req.AllowOverride
	}
}

// validateItems catches rules struct tags cannot express.
func validateItems(items []pricing.LineItem) *shared.ValidationError {
	verr := &shared.ValidationError{}
	var summary pricing.Summary
	for i, item := range items {
		if item.Description != "" && strings.TrimSpace(item.Description) == "" {
			verr.Add(fmt.Sprintf("line_items[%d].description", i), "must not be blank")
		}
		if !pricing.WithinMaxAmount(item.Total()) || !pricing.WithinMaxAmount(item.TotalCost()) {
			verr.Add(fmt.Sprintf("line_items[%d]", i), "line total exceeds the maximum amount")
		}
	}
	if len(verr.Fields) == 0 {
		summary = pricing.Summarize(items)
		if !pricing.WithinMaxAmount(pricing.Round2(summary.TotalPrice)) || !pricing.WithinMaxAmount(pricing.Round2(summary.TotalCost)) {
			verr.Add("line_items", fmt.Sprintf("quote total must not exceed %.2f", pricing.MaxAmount))
		}
	}
	return verr
}

func marginGate(summary pricing.Summary, allowOverride bool) *shared.ValidationError {
	if allowOverride || !pricing.IsBelowMinimumMargin(summary.Margin) {
		return nil
	}
	return shared.NewValidationError("margin", fmt.Sprintf(
		"margin %.2f%% is below the %.0f%% minimum; set allow_override to save anyway",
		summary.Margin, pricing.MinimumMargin))
}

func joinStatuses() string {
	parts := make([]string, len(Statuses))
	for i, st := range Statuses {
		parts[i] = string(st)
	}
	return strings.Join(parts, ", ")
}
