package quotes

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stonecrest/backoffice/internal/notify"
	"github.com/stonecrest/backoffice/internal/pricing"
	"github.com/stonecrest/backoffice/internal/sequence"
	"github.com/stonecrest/backoffice/internal/shared"
)

type memoryQuoteRepo struct {
	mu      sync.Mutex
	quotes  map[uuid.UUID]Quote
	counter int64
	failTx  error
}

type memoryQuoteTx struct {
	repo *memoryQuoteRepo
}

func newMemoryQuoteRepo() *memoryQuoteRepo {
	return &memoryQuoteRepo{quotes: make(map[uuid.UUID]Quote)}
}

func (r *memoryQuoteRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failTx != nil {
		return r.failTx
	}
	snapshot := make(map[uuid.UUID]Quote, len(r.quotes))
	for k, v := range r.quotes {
		snapshot[k] = v
	}
	counter := r.counter
	if err := fn(ctx, &memoryQuoteTx{repo: r}); err != nil {
		r.quotes = snapshot
		r.counter = counter
		return err
	}
	return nil
}

func (r *memoryQuoteRepo) Get(ctx context.Context, id uuid.UUID) (*Quote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live(id)
}

func (r *memoryQuoteRepo) live(id uuid.UUID) (*Quote, error) {
	q, ok := r.quotes[id]
	if !ok || q.DeletedAt != nil {
		return nil, shared.NotFoundf("quote %s", id)
	}
	q.LineItems = pricing.CloneItems(q.LineItems)
	return &q, nil
}

func (r *memoryQuoteRepo) List(ctx context.Context, filter ListFilter) ([]Quote, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Quote
	for _, q := range r.quotes {
		if q.DeletedAt != nil {
			continue
		}
		if filter.Status != nil && q.Status != *filter.Status {
			continue
		}
		if filter.CustomerID != nil && (q.CustomerID == nil || *q.CustomerID != *filter.CustomerID) {
			continue
		}
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuoteNumber > out[j].QuoteNumber })
	total := len(out)
	if filter.Offset >= len(out) {
		return []Quote{}, total, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, total, nil
}

func (t *memoryQuoteTx) NextNumber(ctx context.Context) (sequence.Number, error) {
	t.repo.counter++
	return sequence.Number{Value: t.repo.counter, Text: sequence.Format(sequence.Quotes.Prefix, t.repo.counter)}, nil
}

func (t *memoryQuoteTx) GetForUpdate(ctx context.Context, id uuid.UUID) (*Quote, error) {
	return t.repo.live(id)
}

func (t *memoryQuoteTx) Insert(ctx context.Context, q Quote) error {
	for _, existing := range t.repo.quotes {
		if existing.QuoteNumber == q.QuoteNumber {
			return shared.Conflictf("quote number %s taken", q.QuoteNumber)
		}
	}
	q.LineItems = pricing.CloneItems(q.LineItems)
	t.repo.quotes[q.ID] = q
	return nil
}

func (t *memoryQuoteTx) Save(ctx context.Context, q Quote) error {
	if _, ok := t.repo.quotes[q.ID]; !ok {
		return shared.NotFoundf("quote %s", q.ID)
	}
	q.LineItems = pricing.CloneItems(q.LineItems)
	t.repo.quotes[q.ID] = q
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, evt notify.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, evt := range p.events {
		out[i] = evt.Type
	}
	return out
}

type staticCustomers map[uuid.UUID]bool

func (c staticCustomers) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	return c[id], nil
}

var fixedNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *memoryQuoteRepo, *recordingPublisher) {
	t.Helper()
	repo := newMemoryQuoteRepo()
	events := &recordingPublisher{}
	svc := NewService(repo, nil, events)
	svc.now = func() time.Time { return fixedNow }
	return svc, repo, events
}

func staffContext() context.Context {
	return shared.ContextWithIdentity(context.Background(), shared.Identity{Email: "estimator@stonecrest.test", Role: shared.RoleEmployee})
}

func fenceRequest() CreateRequest {
	return CreateRequest{
		CustomerName:  "Harbor Realty",
		CustomerEmail: "ap@harbor.test",
		LineItems: []pricing.LineItem{
			{Description: "Cedar fence, 40ft", Quantity: 1, Cost: 200, Price: 350},
		},
	}
}

func TestCreateAssignsNumberAndTotals(t *testing.T) {
	svc, repo, events := newTestService(t)

	q, err := svc.Create(staffContext(), fenceRequest())
	require.NoError(t, err)
	assert.Equal(t, "QT-00001", q.QuoteNumber)
	assert.Equal(t, StatusOpen, q.Status)
	assert.Equal(t, 200.0, q.TotalCost)
	assert.Equal(t, 350.0, q.Subtotal)
	assert.Equal(t, 350.0, q.Total)
	assert.Equal(t, 42.86, q.Margin)
	assert.Equal(t, fixedNow.Add(DefaultValidity), q.ValidUntil)
	assert.Equal(t, "estimator@stonecrest.test", q.CreatedBy)
	assert.Len(t, repo.quotes, 1)
	assert.Equal(t, []string{notify.QuoteCreated}, events.types())

	second, err := svc.Create(staffContext(), fenceRequest())
	require.NoError(t, err)
	assert.Equal(t, "QT-00002", second.QuoteNumber)
}

func TestCreateCollectsAllFieldErrors(t *testing.T) {
	svc, repo, _ := newTestService(t)

	_, err := svc.Create(staffContext(), CreateRequest{
		CustomerEmail: "not-an-email",
		LineItems:     []pricing.LineItem{{Description: "", Quantity: 0, Cost: -1, Price: 10}},
	})
	verr, ok := shared.AsValidation(err)
	require.True(t, ok, "expected validation error, got %v", err)

	fields := map[string]bool{}
	for _, f := range verr.Fields {
		fields[f.Field] = true
	}
	assert.True(t, fields["customer_name"])
	assert.True(t, fields["customer_email"])
	assert.True(t, fields["line_items[0].description"])
	assert.True(t, fields["line_items[0].quantity"])
	assert.True(t, fields["line_items[0].cost"])
	assert.Empty(t, repo.quotes)
	assert.Zero(t, repo.counter, "validation failures must not consume numbers")
}

func TestCreateRequiresLineItems(t *testing.T) {
	svc, _, _ := newTestService(t)
	req := fenceRequest()
	req.LineItems = nil

	_, err := svc.Create(staffContext(), req)
	verr, ok := shared.AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, "line_items", verr.Fields[0].Field)
}

func TestCreateRejectsAmountsBeyondMaxAmount(t *testing.T) {
	svc, repo, _ := newTestService(t)

	req := fenceRequest()
	req.LineItems = []pricing.LineItem{{Description: "Quarry", Quantity: 1e6, Cost: 1e6, Price: 2e6}}
	_, err := svc.Create(staffContext(), req)
	verr, ok := shared.AsValidation(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, "line_items[0]", verr.Fields[0].Field)

	req.LineItems = []pricing.LineItem{
		{Description: "Phase one", Quantity: 1, Cost: 1, Price: 600000000000},
		{Description: "Phase two", Quantity: 1, Cost: 1, Price: 600000000000},
	}
	_, err = svc.Create(staffContext(), req)
	verr, ok = shared.AsValidation(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, "line_items", verr.Fields[0].Field)
	assert.Empty(t, repo.quotes)
}

func TestCreateMarginGate(t *testing.T) {
	svc, repo, _ := newTestService(t)
	req := fenceRequest()
	req.LineItems = []pricing.LineItem{{Description: "Drywall patch", Quantity: 1, Cost: 80, Price: 100}}

	_, err := svc.Create(staffContext(), req)
	verr, ok := shared.AsValidation(err)
	require.True(t, ok)
	require.Len(t, verr.Fields, 1)
	assert.Equal(t, "margin", verr.Fields[0].Field)
	assert.Empty(t, repo.quotes)

	req.AllowOverride = true
	q, err := svc.Create(staffContext(), req)
	require.NoError(t, err)
	assert.Equal(t, 20.0, q.Margin)
	assert.True(t, q.AllowOverride)
}

func TestCreateMarginAtThresholdPasses(t *testing.T) {
	svc, _, _ := newTestService(t)
	req := fenceRequest()
	req.LineItems = []pricing.LineItem{{Description: "Paint", Quantity: 2, Cost: 35, Price: 50}}

	q, err := svc.Create(staffContext(), req)
	require.NoError(t, err)
	assert.Equal(t, 30.0, q.Margin)
}

func TestCreateUnknownCustomer(t *testing.T) {
	repo := newMemoryQuoteRepo()
	known := uuid.New()
	svc := NewService(repo, staticCustomers{known: true}, nil)

	req := fenceRequest()
	missing := uuid.New()
	req.CustomerID = &missing
	_, err := svc.Create(staffContext(), req)
	require.ErrorIs(t, err, shared.ErrNotFound)

	req.CustomerID = &known
	q, err := svc.Create(staffContext(), req)
	require.NoError(t, err)
	assert.Equal(t, known, *q.CustomerID)
}

func TestCreateStoreUnavailable(t *testing.T) {
	svc, repo, events := newTestService(t)
	repo.failTx = shared.ErrUnavailable

	_, err := svc.Create(staffContext(), fenceRequest())
	require.ErrorIs(t, err, shared.ErrUnavailable)
	assert.Empty(t, events.types())
}

func TestUpdateRecalculates(t *testing.T) {
	svc, _, events := newTestService(t)
	q, err := svc.Create(staffContext(), fenceRequest())
	require.NoError(t, err)

	items := []pricing.LineItem{
		{Description: "Cedar fence, 60ft", Quantity: 1, Cost: 300, Price: 520},
		{Description: "Gate", Quantity: 2, Cost: 40, Price: 90},
	}
	name := "Harbor Realty LLC"
	updated, err := svc.Update(staffContext(), q.ID, UpdateRequest{LineItems: &items, CustomerName: &name})
	require.NoError(t, err)
	assert.Equal(t, 380.0, updated.TotalCost)
	assert.Equal(t, 700.0, updated.Total)
	assert.Equal(t, 45.71, updated.Margin)
	assert.Equal(t, "Harbor Realty LLC", updated.CustomerName)
	assert.Equal(t, q.QuoteNumber, updated.QuoteNumber)
	assert.Contains(t, events.types(), notify.QuoteUpdated)
}

func TestUpdateMarginGateUsesResultingOverride(t *testing.T) {
	svc, _, _ := newTestService(t)
	q, err := svc.Create(staffContext(), fenceRequest())
	require.NoError(t, err)

	thin := []pricing.LineItem{{Description: "Fence", Quantity: 1, Cost: 300, Price: 350}}
	_, err = svc.Update(staffContext(), q.ID, UpdateRequest{LineItems: &thin})
	verr, ok := shared.AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, "margin", verr.Fields[0].Field)

	stored, err := svc.Get(context.Background(), q.ID)
	require.NoError(t, err)
	assert.Equal(t, 350.0, stored.Total, "failed update must not persist")

	override := true
	updated, err := svc.Update(staffContext(), q.ID, UpdateRequest{LineItems: &thin, AllowOverride: &override})
	require.NoError(t, err)
	assert.Equal(t, 14.29, updated.Margin)
}

func TestLockedQuotesAreImmutable(t *testing.T) {
	for _, status := range []Status{StatusApproved, StatusInvoiced} {
		t.Run(string(status), func(t *testing.T) {
			svc, _, _ := newTestService(t)
			q, err := svc.Create(staffContext(), fenceRequest())
			require.NoError(t, err)
			_, err = svc.SetStatus(staffContext(), q.ID, SetStatusRequest{Status: string(status)})
			require.NoError(t, err)

			items := []pricing.LineItem{{Description: "More fence", Quantity: 1, Cost: 10, Price: 100}}
			_, err = svc.Update(staffContext(), q.ID, UpdateRequest{LineItems: &items})
			require.ErrorIs(t, err, shared.ErrConflict)

			// an invalid payload still reports the lock first
			empty := []pricing.LineItem{}
			_, err = svc.Update(staffContext(), q.ID, UpdateRequest{LineItems: &empty})
			require.ErrorIs(t, err, shared.ErrConflict)

			stored, err := svc.Get(context.Background(), q.ID)
			require.NoError(t, err)
			assert.Equal(t, 350.0, stored.Total)
		})
	}
}

func TestSetStatusStampsTimestamps(t *testing.T) {
	svc, _, events := newTestService(t)
	q, err := svc.Create(staffContext(), fenceRequest())
	require.NoError(t, err)

	sent, err := svc.SetStatus(staffContext(), q.ID, SetStatusRequest{Status: "sent"})
	require.NoError(t, err)
	assert.Equal(t, StatusSent, sent.Status)
	require.NotNil(t, sent.SentAt)
	assert.Equal(t, fixedNow, *sent.SentAt)

	reason := "Went with another contractor"
	rejected, err := svc.SetStatus(staffContext(), q.ID, SetStatusRequest{Status: "Rejected", Notes: &reason})
	require.NoError(t, err)
	require.NotNil(t, rejected.RejectedAt)
	require.NotNil(t, rejected.RejectionReason)
	assert.Equal(t, reason, *rejected.RejectionReason)
	assert.NotNil(t, rejected.SentAt, "earlier stamps are kept")

	approved, err := svc.SetStatus(staffContext(), q.ID, SetStatusRequest{Status: "Approved"})
	require.NoError(t, err)
	require.NotNil(t, approved.ApprovedAt)

	var changes []notify.Event
	for _, evt := range events.events {
		if evt.Type == notify.QuoteStatusChanged {
			changes = append(changes, evt)
		}
	}
	require.Len(t, changes, 3)
	assert.Equal(t, "Open", changes[0].Data["from"])
	assert.Equal(t, "Sent", changes[0].Data["to"])
}

func TestSetStatusRejectsUnknown(t *testing.T) {
	svc, _, _ := newTestService(t)
	q, err := svc.Create(staffContext(), fenceRequest())
	require.NoError(t, err)

	_, err = svc.SetStatus(staffContext(), q.ID, SetStatusRequest{Status: "Archived"})
	verr, ok := shared.AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, "status", verr.Fields[0].Field)
	assert.Contains(t, verr.Fields[0].Message, "Open")

	_, err = svc.SetStatus(staffContext(), uuid.New(), SetStatusRequest{Status: "Sent"})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestSetStatusDeletedSoftDeletes(t *testing.T) {
	svc, repo, events := newTestService(t)
	q, err := svc.Create(staffContext(), fenceRequest())
	require.NoError(t, err)

	deleted, err := svc.SetStatus(staffContext(), q.ID, SetStatusRequest{Status: "Deleted"})
	require.NoError(t, err)
	require.NotNil(t, deleted)
	assert.Equal(t, StatusDeleted, deleted.Status)
	require.NotNil(t, deleted.DeletedAt)

	_, err = svc.Get(context.Background(), q.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
	assert.Len(t, repo.quotes, 1, "soft delete keeps the row")
	assert.Contains(t, events.types(), notify.QuoteDeleted)
}

func TestDuplicateCreatesFreshOpenQuote(t *testing.T) {
	svc, _, _ := newTestService(t)
	notes := "Includes haul-away"
	req := fenceRequest()
	req.Notes = &notes
	src, err := svc.Create(staffContext(), req)
	require.NoError(t, err)
	_, err = svc.SetStatus(staffContext(), src.ID, SetStatusRequest{Status: "Approved"})
	require.NoError(t, err)

	dup, err := svc.Duplicate(staffContext(), src.ID)
	require.NoError(t, err)
	assert.NotEqual(t, src.ID, dup.ID)
	assert.Equal(t, "QT-00002", dup.QuoteNumber)
	assert.Equal(t, StatusOpen, dup.Status)
	assert.Nil(t, dup.ApprovedAt)
	assert.Nil(t, dup.SentAt)
	require.NotNil(t, dup.DuplicatedFrom)
	assert.Equal(t, src.ID, *dup.DuplicatedFrom)
	assert.Equal(t, src.LineItems, dup.LineItems)
	assert.Equal(t, src.Total, dup.Total)
	assert.Equal(t, src.Margin, dup.Margin)
	assert.Equal(t, notes, *dup.Notes)

	// editing the copy leaves the source untouched
	items := []pricing.LineItem{{Description: "Different", Quantity: 1, Cost: 1, Price: 10}}
	_, err = svc.Update(staffContext(), dup.ID, UpdateRequest{LineItems: &items})
	require.NoError(t, err)
	stored, err := svc.Get(context.Background(), src.ID)
	require.NoError(t, err)
	assert.Equal(t, "Cedar fence, 40ft", stored.LineItems[0].Description)
}

func TestDuplicateMissing(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Duplicate(staffContext(), uuid.New())
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestListExcludesDeletedAndFilters(t *testing.T) {
	svc, _, _ := newTestService(t)
	a, err := svc.Create(staffContext(), fenceRequest())
	require.NoError(t, err)
	b, err := svc.Create(staffContext(), fenceRequest())
	require.NoError(t, err)
	_, err = svc.Create(staffContext(), fenceRequest())
	require.NoError(t, err)

	_, err = svc.SetStatus(staffContext(), a.ID, SetStatusRequest{Status: "Sent"})
	require.NoError(t, err)
	require.NoError(t, svc.SoftDelete(staffContext(), b.ID))

	all, total, err := svc.List(context.Background(), ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, all, 2)

	sent := StatusSent
	filtered, total, err := svc.List(context.Background(), ListFilter{Status: &sent})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, a.ID, filtered[0].ID)

	deleted := StatusDeleted
	none, total, err := svc.List(context.Background(), ListFilter{Status: &deleted})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, none)

	require.ErrorIs(t, svc.SoftDelete(staffContext(), b.ID), shared.ErrNotFound)
}

func TestParseStatus(t *testing.T) {
	st, ok := ParseStatus(" approved ")
	require.True(t, ok)
	assert.Equal(t, StatusApproved, st)
	_, ok = ParseStatus("pending")
	assert.False(t, ok)
	assert.True(t, StatusInvoiced.Locked())
	assert.False(t, StatusSent.Locked())
}

func TestServiceWrapsErrors(t *testing.T) {
	svc, repo, _ := newTestService(t)
	boom := errors.New("boom")
	repo.failTx = boom
	_, err := svc.Create(staffContext(), fenceRequest())
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "create quote")
}
