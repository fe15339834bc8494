// Package notify is an in-process observer used to fan domain events out to
// side channels (audit trail, cache invalidation, email jobs). A Bus is
// created per process and injected; there is no package level instance.
// Financial state never depends on a subscriber succeeding.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Event types published by the domain services.
const (
	CustomerCreated        = "customer.created"
	CustomerUpdated        = "customer.updated"
	CustomerDeleted        = "customer.deleted"
	QuoteCreated           = "quote.created"
	QuoteUpdated           = "quote.updated"
	QuoteStatusChanged     = "quote.status_changed"
	QuoteDuplicated        = "quote.duplicated"
	QuoteDeleted           = "quote.deleted"
	WorkOrderCreated       = "workorder.created"
	WorkOrderUpdated       = "workorder.updated"
	WorkOrderStatusChanged = "workorder.status_changed"
	WorkOrderDeleted       = "workorder.deleted"
	InvoiceCreated         = "invoice.created"
	InvoiceStatusChanged   = "invoice.status_changed"
	InvoicePaymentRecorded = "invoice.payment_recorded"
	InvoicePaid            = "invoice.paid"
	InvoiceDeleted         = "invoice.deleted"
)

// Event describes something that already happened and was committed.
type Event struct {
	Type     string         `json:"type"`
	Entity   string         `json:"entity"`
	EntityID string         `json:"entity_id"`
	Number   string         `json:"number,omitempty"`
	Actor    string         `json:"actor,omitempty"`
	At       time.Time      `json:"at"`
	Data     map[string]any `json:"data,omitempty"`
}

// Publisher is what domain services depend on.
type Publisher interface {
	Publish(ctx context.Context, evt Event)
}

// Handler reacts to an event. Returned errors are logged, never propagated.
type Handler func(ctx context.Context, evt Event) error

// Nop discards events.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) {}

type subscription struct {
	id      uint64
	name    string
	types   map[string]struct{}
	handler Handler
}

// Bus dispatches events synchronously to its subscribers in registration order.
type Bus struct {
	mu     sync.RWMutex
	subs   []subscription
	nextID uint64
	logger *slog.Logger
}

// NewBus constructs an empty bus.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{logger: logger}
}

// Subscribe registers h for the given event types, or for every event when
// none are given. The returned func removes the subscription.
func (b *Bus) Subscribe(name string, h Handler, types ...string) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	sub := subscription{id: b.nextID, name: name, handler: h}
	if len(types) > 0 {
		sub.types = make(map[string]struct{}, len(types))
		for _, t := range types {
			sub.types[t] = struct{}{}
		}
	}
	b.subs = append(b.subs, sub)
	id := sub.id
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Publish implements Publisher.
func (b *Bus) Publish(ctx context.Context, evt Event) {
	if b == nil {
		return
	}
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}
	b.mu.RLock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		if s.types != nil {
			if _, ok := s.types[evt.Type]; !ok {
				continue
			}
		}
		b.dispatch(ctx, s, evt)
	}
}

func (b *Bus) dispatch(ctx context.Context, s subscription, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("notify subscriber panic",
				slog.String("subscriber", s.name),
				slog.String("event", evt.Type),
				slog.Any("panic", r))
		}
	}()
	if err := s.handler(ctx, evt); err != nil {
		b.logger.Warn("notify subscriber failed",
			slog.String("subscriber", s.name),
			slog.String("event", evt.Type),
			slog.String("entity_id", evt.EntityID),
			slog.Any("error", err))
	}
}

// OrNop returns p, or Nop when p is nil.
func OrNop(p Publisher) Publisher {
	if p == nil {
		return Nop{}
	}
	return p
}
