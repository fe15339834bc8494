package analytics

import (
	"context"

	"github.com/stonecrest/backoffice/internal/notify"
)

// InvalidateOn bumps the cache version whenever a financial document changes.
func (c *Cache) InvalidateOn(bus *notify.Bus) func() {
	return bus.Subscribe("analytics-cache", func(ctx context.Context, evt notify.Event) error {
		return c.Bump(ctx)
	},
		notify.QuoteCreated, notify.QuoteUpdated, notify.QuoteStatusChanged,
		notify.QuoteDuplicated, notify.QuoteDeleted,
		notify.InvoiceCreated, notify.InvoiceStatusChanged, notify.InvoicePaymentRecorded,
		notify.InvoiceDeleted,
	)
}
