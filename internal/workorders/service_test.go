package workorders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stonecrest/backoffice/internal/notify"
	"github.com/stonecrest/backoffice/internal/sequence"
	"github.com/stonecrest/backoffice/internal/shared"
)

type memoryRepo struct {
	orders  map[uuid.UUID]WorkOrder
	counter int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{orders: make(map[uuid.UUID]WorkOrder)}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, r)
}

func (r *memoryRepo) Get(ctx context.Context, id uuid.UUID) (*WorkOrder, error) {
	wo, ok := r.orders[id]
	if !ok || wo.DeletedAt != nil {
		return nil, shared.NotFoundf("work order %s", id)
	}
	return &wo, nil
}

func (r *memoryRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*WorkOrder, error) {
	return r.Get(ctx, id)
}

func (r *memoryRepo) List(ctx context.Context, filter ListFilter) ([]WorkOrder, int, error) {
	out := []WorkOrder{}
	for _, wo := range r.orders {
		if wo.DeletedAt != nil {
			continue
		}
		if filter.Status != nil && wo.Status != *filter.Status {
			continue
		}
		if filter.Priority != nil && wo.Priority != *filter.Priority {
			continue
		}
		out = append(out, wo)
	}
	return out, len(out), nil
}

func (r *memoryRepo) NextNumber(ctx context.Context) (sequence.Number, error) {
	r.counter++
	return sequence.Number{Value: r.counter, Text: sequence.Format(sequence.WorkOrders.Prefix, r.counter)}, nil
}

func (r *memoryRepo) Insert(ctx context.Context, wo WorkOrder) error {
	r.orders[wo.ID] = wo
	return nil
}

func (r *memoryRepo) Save(ctx context.Context, wo WorkOrder) error {
	r.orders[wo.ID] = wo
	return nil
}

type knownIDs map[uuid.UUID]bool

func (k knownIDs) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	return k[id], nil
}

type capture struct{ events []notify.Event }

func (c *capture) Publish(ctx context.Context, evt notify.Event) { c.events = append(c.events, evt) }

var now = time.Date(2025, 6, 2, 7, 0, 0, 0, time.UTC)

func newService(quotes knownIDs) (*Service, *memoryRepo, *capture) {
	repo := newMemoryRepo()
	events := &capture{}
	svc := NewService(repo, quotes, nil, events)
	svc.now = func() time.Time { return now }
	return svc, repo, events
}

func crewContext() context.Context {
	return shared.ContextWithIdentity(context.Background(), shared.Identity{Email: "dispatch@stonecrest.test", Role: shared.RoleEmployee})
}

func validRequest() CreateRequest {
	return CreateRequest{
		CustomerName:  "Harbor Realty",
		CustomerEmail: "ap@harbor.test",
		Description:   "Install 40ft cedar fence along the north property line",
	}
}

func TestCreateDefaults(t *testing.T) {
	svc, _, events := newService(nil)

	wo, err := svc.Create(crewContext(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, "WO-00001", wo.WorkOrderNumber)
	assert.Equal(t, StatusNew, wo.Status)
	assert.Equal(t, PriorityNormal, wo.Priority)
	assert.Equal(t, "dispatch@stonecrest.test", wo.CreatedBy)
	require.Len(t, events.events, 1)
	assert.Equal(t, notify.WorkOrderCreated, events.events[0].Type)
}

func TestCreateValidation(t *testing.T) {
	svc, repo, _ := newService(nil)

	req := validRequest()
	req.Description = "too short"
	req.Priority = "Whenever"
	req.CustomerEmail = "nope"
	_, err := svc.Create(crewContext(), req)
	verr, ok := shared.AsValidation(err)
	require.True(t, ok)
	fields := map[string]bool{}
	for _, f := range verr.Fields {
		fields[f.Field] = true
	}
	assert.True(t, fields["description"])
	assert.True(t, fields["priority"])
	assert.True(t, fields["customer_email"])
	assert.Len(t, verr.Fields, 3)

	req = validRequest()
	req.Description = "   padded    "
	_, err = svc.Create(crewContext(), req)
	verr, ok = shared.AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, "description", verr.Fields[0].Field)
	assert.Empty(t, repo.orders)
}

func TestCreateRequiresExistingQuote(t *testing.T) {
	known := uuid.New()
	svc, repo, _ := newService(knownIDs{known: true})

	req := validRequest()
	missing := uuid.New()
	req.QuoteID = &missing
	_, err := svc.Create(crewContext(), req)
	require.ErrorIs(t, err, shared.ErrNotFound)
	assert.Zero(t, repo.counter)

	req.QuoteID = &known
	wo, err := svc.Create(crewContext(), req)
	require.NoError(t, err)
	assert.Equal(t, known, *wo.QuoteID)
}

func TestSetStatusStamps(t *testing.T) {
	svc, _, events := newService(nil)
	wo, err := svc.Create(crewContext(), validRequest())
	require.NoError(t, err)

	started, err := svc.SetStatus(crewContext(), wo.ID, SetStatusRequest{Status: "in_progress"})
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, started.Status)
	require.NotNil(t, started.StartedAt)

	held, err := svc.SetStatus(crewContext(), wo.ID, SetStatusRequest{Status: "On Hold"})
	require.NoError(t, err)
	assert.Equal(t, StatusOnHold, held.Status)

	done, err := svc.SetStatus(crewContext(), wo.ID, SetStatusRequest{Status: "complete"})
	require.NoError(t, err)
	require.NotNil(t, done.CompletedAt)
	assert.Equal(t, now, *done.CompletedAt)
	assert.NotNil(t, done.StartedAt)

	last := events.events[len(events.events)-1]
	assert.Equal(t, notify.WorkOrderStatusChanged, last.Type)
	assert.Equal(t, "On Hold", last.Data["from"])
	assert.Equal(t, "Complete", last.Data["to"])
}

func TestSetStatusCancelledRecordsReason(t *testing.T) {
	svc, _, _ := newService(nil)
	wo, err := svc.Create(crewContext(), validRequest())
	require.NoError(t, err)

	reason := "Customer postponed until spring"
	cancelled, err := svc.SetStatus(crewContext(), wo.ID, SetStatusRequest{Status: "Cancelled", Notes: &reason})
	require.NoError(t, err)
	require.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, reason, *cancelled.CancellationReason)

	_, err = svc.SetStatus(crewContext(), wo.ID, SetStatusRequest{Status: "Paused"})
	_, ok := shared.AsValidation(err)
	assert.True(t, ok)
}

func TestDeleteHidesWorkOrder(t *testing.T) {
	svc, _, _ := newService(nil)
	wo, err := svc.Create(crewContext(), validRequest())
	require.NoError(t, err)

	deleted, err := svc.SetStatus(crewContext(), wo.ID, SetStatusRequest{Status: "deleted"})
	require.NoError(t, err)
	assert.Equal(t, StatusDeleted, deleted.Status)

	_, err = svc.Get(context.Background(), wo.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.ErrorIs(t, svc.SoftDelete(crewContext(), wo.ID), shared.ErrNotFound)

	items, total, err := svc.List(context.Background(), ListFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, items)
}

func TestUpdate(t *testing.T) {
	svc, _, events := newService(nil)
	wo, err := svc.Create(crewContext(), validRequest())
	require.NoError(t, err)

	priority := "Urgent"
	crew := "Crew B"
	when := now.Add(48 * time.Hour)
	updated, err := svc.Update(crewContext(), wo.ID, UpdateRequest{Priority: &priority, AssignedTo: &crew, ScheduledDate: &when})
	require.NoError(t, err)
	assert.Equal(t, PriorityUrgent, updated.Priority)
	assert.Equal(t, "Crew B", *updated.AssignedTo)
	assert.Equal(t, when, *updated.ScheduledDate)
	assert.Equal(t, wo.WorkOrderNumber, updated.WorkOrderNumber)

	require.Len(t, events.events, 2)
	last := events.events[1]
	assert.Equal(t, notify.WorkOrderUpdated, last.Type)
	assert.Equal(t, wo.WorkOrderNumber, last.Number)
	assert.Equal(t, "dispatch@stonecrest.test", last.Actor)

	short := "short"
	_, err = svc.Update(crewContext(), wo.ID, UpdateRequest{Description: &short})
	_, ok := shared.AsValidation(err)
	assert.True(t, ok)
	assert.Len(t, events.events, 2)
}

func TestParseStatusSpellings(t *testing.T) {
	for raw, want := range map[string]Status{
		"in progress": StatusInProgress,
		"IN_PROGRESS": StatusInProgress,
		"on-hold":     StatusOnHold,
		"Scheduled":   StatusScheduled,
	} {
		got, ok := ParseStatus(raw)
		require.True(t, ok, raw)
		assert.Equal(t, want, got)
	}
}
