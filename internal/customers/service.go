package customers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stonecrest/backoffice/internal/notify"
	"github.com/stonecrest/backoffice/internal/sequence"
	"github.com/stonecrest/backoffice/internal/shared"
)

// Repository persists customers. Reads never return soft-deleted rows.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id uuid.UUID) (*Customer, error)
	List(ctx context.Context, filter ListFilter) ([]Customer, int, error)
}

// TxRepository is the transactional view used for mutations.
type TxRepository interface {
	NextNumber(ctx context.Context) (sequence.Number, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Customer, error)
	Insert(ctx context.Context, c Customer) error
	Save(ctx context.Context, c Customer) error
}

type Service struct {
	repo   Repository
	events notify.Publisher
	now    func() time.Time
}

func NewService(repo Repository, events notify.Publisher) *Service {
	return &Service{repo: repo, events: notify.OrNop(events), now: func() time.Time { return time.Now().UTC() }}
}

func (s *Service) Create(ctx context.Context, req CreateCustomerRequest) (*Customer, error) {
	if err := s.validate(req, req.Name != "" && strings.TrimSpace(req.Name) == ""); err != nil {
		return nil, err
	}
	status := StatusLead
	if req.Status != "" {
		status = Status(req.Status)
	}
	now := s.now()
	actor := shared.ActorFromContext(ctx)
	c := Customer{
		ID:        uuid.New(),
		Name:      strings.TrimSpace(req.Name),
		Email:     strings.TrimSpace(req.Email),
		Phone:     strings.TrimSpace(req.Phone),
		Address:   strings.TrimSpace(req.Address),
		Status:    status,
		Notes:     req.Notes,
		CreatedBy: actor,
		UpdatedBy: actor,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number, err := tx.NextNumber(ctx)
		if err != nil {
			return err
		}
		c.AccountNumber = number.Text
		return tx.Insert(ctx, c)
	})
	if err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	s.publish(ctx, notify.CustomerCreated, &c)
	return &c, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Customer, error) {
	return s.repo.Get(ctx, id)
}

// Exists reports whether a live customer with id exists.
func (s *Service) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, err := s.repo.Get(ctx, id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, shared.ErrNotFound) {
		return false, nil
	}
	return false, err
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]Customer, int, error) {
	filter.Limit = shared.ClampLimit(filter.Limit)
	filter.Search = strings.TrimSpace(filter.Search)
	if filter.Status != nil && *filter.Status == StatusDeleted {
		return []Customer{}, 0, nil
	}
	return s.repo.List(ctx, filter)
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateCustomerRequest) (*Customer, error) {
	if err := s.validate(req, req.Name != nil && *req.Name != "" && strings.TrimSpace(*req.Name) == ""); err != nil {
		return nil, err
	}
	var updated Customer
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		c, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if req.Name != nil {
			c.Name = strings.TrimSpace(*req.Name)
		}
		if req.Email != nil {
			c.Email = strings.TrimSpace(*req.Email)
		}
		if req.Phone != nil {
			c.Phone = strings.TrimSpace(*req.Phone)
		}
		if req.Address != nil {
			c.Address = strings.TrimSpace(*req.Address)
		}
		if req.Status != nil {
			c.Status = Status(*req.Status)
		}
		if req.Notes != nil {
			c.Notes = req.Notes
		}
		c.UpdatedBy = shared.ActorFromContext(ctx)
		c.UpdatedAt = s.now()
		if err := tx.Save(ctx, *c); err != nil {
			return err
		}
		updated = *c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update customer: %w", err)
	}

	s.publish(ctx, notify.CustomerUpdated, &updated)
	return &updated, nil
}

// SoftDelete hides the customer. Documents that reference it keep their
// copied name and email.
func (s *Service) SoftDelete(ctx context.Context, id uuid.UUID) error {
	var deleted Customer
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		c, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		now := s.now()
		c.Status = StatusDeleted
		c.DeletedAt = &now
		c.UpdatedAt = now
		c.UpdatedBy = shared.ActorFromContext(ctx)
		deleted = *c
		return tx.Save(ctx, *c)
	})
	if err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}
	s.publish(ctx, notify.CustomerDeleted, &deleted)
	return nil
}

func (s *Service) validate(req any, blankName bool) error {
	verr := shared.ValidateStruct(req)
	if verr == nil {
		verr = &shared.ValidationError{}
	}
	if blankName {
		verr.Add("name", "must not be blank")
	}
	return verr.ErrOrNil()
}

func (s *Service) publish(ctx context.Context, typ string, c *Customer) {
	s.events.Publish(ctx, notify.Event{
		Type:     typ,
		Entity:   "customer",
		EntityID: c.ID.String(),
		Number:   c.AccountNumber,
		Actor:    shared.ActorFromContext(ctx),
	})
}
