package workorders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stonecrest/backoffice/internal/notify"
	"github.com/stonecrest/backoffice/internal/sequence"
	"github.com/stonecrest/backoffice/internal/shared"
)

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id uuid.UUID) (*WorkOrder, error)
	List(ctx context.Context, filter ListFilter) ([]WorkOrder, int, error)
}

type TxRepository interface {
	NextNumber(ctx context.Context) (sequence.Number, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*WorkOrder, error)
	Insert(ctx context.Context, wo WorkOrder) error
	Save(ctx context.Context, wo WorkOrder) error
}

// Lookup checks that a referenced document exists and is not deleted.
type Lookup interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

type Service struct {
	repo      Repository
	quotes    Lookup
	customers Lookup
	events    notify.Publisher
	now       func() time.Time
}

// NewService wires the work order service. customers may be nil.
func NewService(repo Repository, quotes, customers Lookup, events notify.Publisher) *Service {
	return &Service{
		repo:      repo,
		quotes:    quotes,
		customers: customers,
		events:    notify.OrNop(events),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*WorkOrder, error) {
	verr := shared.ValidateStruct(req)
	if verr == nil {
		verr = &shared.ValidationError{}
	}
	if len(req.Description) >= 10 && len(strings.TrimSpace(req.Description)) < 10 {
		verr.Add("description", "must be at least 10 characters")
	}
	if err := verr.ErrOrNil(); err != nil {
		return nil, err
	}
	if err := s.ensure(ctx, s.quotes, "quote", req.QuoteID); err != nil {
		return nil, err
	}
	if err := s.ensure(ctx, s.customers, "customer", req.CustomerID); err != nil {
		return nil, err
	}

	priority := PriorityNormal
	if req.Priority != "" {
		priority = Priority(req.Priority)
	}
	now := s.now()
	actor := shared.ActorFromContext(ctx)
	wo := WorkOrder{
		ID:            uuid.New(),
		CustomerID:    req.CustomerID,
		CustomerName:  strings.TrimSpace(req.CustomerName),
		CustomerEmail: strings.TrimSpace(req.CustomerEmail),
		QuoteID:       req.QuoteID,
		Description:   strings.TrimSpace(req.Description),
		Status:        StatusNew,
		Priority:      priority,
		ScheduledDate: req.ScheduledDate,
		AssignedTo:    req.AssignedTo,
		Notes:         req.Notes,
		CreatedBy:     actor,
		UpdatedBy:     actor,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number, err := tx.NextNumber(ctx)
		if err != nil {
			return err
		}
		wo.WorkOrderNumber = number.Text
		return tx.Insert(ctx, wo)
	})
	if err != nil {
		return nil, fmt.Errorf("create work order: %w", err)
	}
	s.publish(ctx, notify.WorkOrderCreated, &wo, map[string]any{"priority": string(wo.Priority)})
	return &wo, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*WorkOrder, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]WorkOrder, int, error) {
	filter.Limit = shared.ClampLimit(filter.Limit)
	if filter.Status != nil && *filter.Status == StatusDeleted {
		return []WorkOrder{}, 0, nil
	}
	return s.repo.List(ctx, filter)
}

// Update edits a work order in any live status.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (*WorkOrder, error) {
	verr := shared.ValidateStruct(req)
	if verr == nil {
		verr = &shared.ValidationError{}
	}
	if req.Description != nil && len(*req.Description) >= 10 && len(strings.TrimSpace(*req.Description)) < 10 {
		verr.Add("description", "must be at least 10 characters")
	}
	if err := verr.ErrOrNil(); err != nil {
		return nil, err
	}
	if err := s.ensure(ctx, s.quotes, "quote", req.QuoteID); err != nil {
		return nil, err
	}
	if err := s.ensure(ctx, s.customers, "customer", req.CustomerID); err != nil {
		return nil, err
	}

	var updated WorkOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		wo, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		applyUpdate(wo, req)
		wo.UpdatedBy = shared.ActorFromContext(ctx)
		wo.UpdatedAt = s.now()
		if err := tx.Save(ctx, *wo); err != nil {
			return err
		}
		updated = *wo
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update work order: %w", err)
	}

	s.publish(ctx, notify.WorkOrderUpdated, &updated, nil)
	return &updated, nil
}

// SetStatus moves the work order to any recognised status and stamps the
// matching timestamp. Deleted is a soft delete.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, req SetStatusRequest) (*WorkOrder, error) {
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
		updated  WorkOrder
		previous Status
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		wo, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		previous = wo.Status
		now := s.now()
		wo.Status = status
		switch status {
		case StatusInProgress:
			wo.StartedAt = &now
		case StatusComplete:
			wo.CompletedAt = &now
		case StatusCancelled:
			wo.CancelledAt = &now
			wo.CancellationReason = req.Notes
		}
		wo.UpdatedBy = shared.ActorFromContext(ctx)
		wo.UpdatedAt = now
		if err := tx.Save(ctx, *wo); err != nil {
			return err
		}
		updated = *wo
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("set work order status: %w", err)
	}
	s.publish(ctx, notify.WorkOrderStatusChanged, &updated, map[string]any{
		"from": string(previous),
		"to":   string(updated.Status),
	})
	return &updated, nil
}

func (s *Service) SoftDelete(ctx context.Context, id uuid.UUID) error {
	_, err := s.softDelete(ctx, id)
	return err
}

func (s *Service) softDelete(ctx context.Context, id uuid.UUID) (*WorkOrder, error) {
	var deleted WorkOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		wo, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		now := s.now()
		wo.Status = StatusDeleted
		wo.DeletedAt = &now
		wo.UpdatedAt = now
		wo.UpdatedBy = shared.ActorFromContext(ctx)
		deleted = *wo
		return tx.Save(ctx, *wo)
	})
	if err != nil {
		return nil, fmt.Errorf("delete work order: %w", err)
	}
	s.publish(ctx, notify.WorkOrderDeleted, &deleted, nil)
	return &deleted, nil
}

func (s *Service) ensure(ctx context.Context, lookup Lookup, entity string, id *uuid.UUID) error {
	if id == nil || lookup == nil {
		return nil
	}
	ok, err := lookup.Exists(ctx, *id)
	if err != nil {
		return err
	}
	if !ok {
		return shared.NotFoundf("%s %s", entity, id)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, typ string, wo *WorkOrder, data map[string]any) {
	s.events.Publish(ctx, notify.Event{
		Type:     typ,
		Entity:   "work_order",
		EntityID: wo.ID.String(),
		Number:   wo.WorkOrderNumber,
		Actor:    shared.ActorFromContext(ctx),
		Data:     data,
	})
}

func applyUpdate(wo *WorkOrder, req UpdateRequest) {
	if req.CustomerName != nil {
		wo.CustomerName = strings.TrimSpace(*req.CustomerName)
	}
	if req.CustomerEmail != nil {
		wo.CustomerEmail = strings.TrimSpace(*req.CustomerEmail)
	}
	if req.CustomerID != nil {
		id := *req.CustomerID
		wo.CustomerID = &id
	}
	if req.QuoteID != nil {
		id := *req.QuoteID
		wo.QuoteID = &id
	}
	if req.Description != nil {
		wo.Description = strings.TrimSpace(*req.Description)
	}
	if req.Priority != nil {
		wo.Priority = Priority(*req.Priority)
	}
	if req.ScheduledDate != nil {
		wo.ScheduledDate = req.ScheduledDate
	}
	if req.AssignedTo != nil {
		wo.AssignedTo = req.AssignedTo
	}
	if req.Notes != nil {
		wo.Notes = req.Notes
	}
}

func joinStatuses() string {
	names := make([]string, len(Statuses))
	for i, st := range Statuses {
		names[i] = string(st)
	}
	return strings.Join(names, ", ")
}
