package analytics

import (
	"time"

	"github.com/stonecrest/backoffice/internal/pricing"
)

// OpenInvoice is the slice of an outstanding invoice aging needs.
type OpenInvoice struct {
	DueDate    time.Time
	BalanceDue float64
}

// AgingBuckets splits outstanding receivables by days past due.
type AgingBuckets struct {
	Current    float64 `json:"current"`
	Days1To30  float64 `json:"days_1_30"`
	Days31To60 float64 `json:"days_31_60"`
	Days61To90 float64 `json:"days_61_90"`
	Over90     float64 `json:"over_90"`
}

// Total sums every bucket.
func (b AgingBuckets) Total() float64 {
	return pricing.Round2(b.Current + b.Days1To30 + b.Days31To60 + b.Days61To90 + b.Over90)
}

// Age buckets invoices by whole days between due date and asOf.
func Age(invoices []OpenInvoice, asOf time.Time) AgingBuckets {
	var b AgingBuckets
	day := truncateDay(asOf)
	for _, inv := range invoices {
		if inv.BalanceDue <= 0 {
			continue
		}
		overdue := int(day.Sub(truncateDay(inv.DueDate)).Hours() / 24)
		switch {
		case overdue <= 0:
			b.Current += inv.BalanceDue
		case overdue <= 30:
			b.Days1To30 += inv.BalanceDue
		case overdue <= 60:
			b.Days31To60 += inv.BalanceDue
		case overdue <= 90:
			b.Days61To90 += inv.BalanceDue
		default:
			b.Over90 += inv.BalanceDue
		}
	}
	b.Current = pricing.Round2(b.Current)
	b.Days1To30 = pricing.Round2(b.Days1To30)
	b.Days31To60 = pricing.Round2(b.Days31To60)
	b.Days61To90 = pricing.Round2(b.Days61To90)
	b.Over90 = pricing.Round2(b.Over90)
	return b
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
