// Package analytics builds the back-office dashboard summary.
package analytics

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stonecrest/backoffice/internal/pricing"
)

// Repository exposes the aggregate queries the dashboard needs.
type Repository interface {
	QuoteTotals(ctx context.Context) ([]StatusTotal, error)
	OutstandingInvoices(ctx context.Context) ([]OpenInvoice, error)
	PaymentsBetween(ctx context.Context, from, to time.Time) (PaymentTotal, error)
}

// StatusTotal counts live quotes in one status.
type StatusTotal struct {
	Status string  `json:"status"`
	Count  int     `json:"count"`
	Value  float64 `json:"value"`
}

// PaymentTotal sums ledger entries in a window.
type PaymentTotal struct {
	Count  int     `json:"count"`
	Amount float64 `json:"amount"`
}

// Summary is the dashboard payload.
type Summary struct {
	AsOf              time.Time     `json:"as_of"`
	Quotes            []StatusTotal `json:"quotes"`
	PipelineValue     float64       `json:"pipeline_value"`
	OutstandingCount  int           `json:"outstanding_count"`
	OutstandingTotal  float64       `json:"outstanding_total"`
	Aging             AgingBuckets  `json:"aging"`
	PaymentsThisMonth PaymentTotal  `json:"payments_this_month"`
}

// Service coordinates analytics query execution with the cache layer.
type Service struct {
	repo  Repository
	cache *Cache
	now   func() time.Time
}

// NewService wires a Repository with a Cache helper. cache may be nil.
func NewService(repo Repository, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache, now: func() time.Time { return time.Now().UTC() }}
}

// Summary returns the dashboard figures for today.
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	asOf := truncateDay(s.now())
	key, err := s.cache.BuildKey(ctx, "analytics", "summary", asOf.Format("2006-01-02"))
	if err != nil {
		return Summary{}, fmt.Errorf("analytics cache key: %w", err)
	}
	var out Summary
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		return s.compute(ctx, asOf)
	})
	return out, err
}

func (s *Service) compute(ctx context.Context, asOf time.Time) (Summary, error) {
	summary := Summary{AsOf: asOf}
	var open []OpenInvoice

	monthStart := time.Date(asOf.Year(), asOf.Month(), 1, 0, 0, 0, 0, time.UTC)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		totals, err := s.repo.QuoteTotals(gctx)
		if err != nil {
			return fmt.Errorf("quote totals: %w", err)
		}
		summary.Quotes = totals
		return nil
	})
	g.Go(func() error {
		invoices, err := s.repo.OutstandingInvoices(gctx)
		if err != nil {
			return fmt.Errorf("outstanding invoices: %w", err)
		}
		open = invoices
		return nil
	})
	g.Go(func() error {
		paid, err := s.repo.PaymentsBetween(gctx, monthStart, monthStart.AddDate(0, 1, 0))
		if err != nil {
			return fmt.Errorf("payments this month: %w", err)
		}
		summary.PaymentsThisMonth = paid
		return nil
	})
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	for _, st := range summary.Quotes {
		if st.Status == "Open" || st.Status == "Sent" || st.Status == "Approved" {
			summary.PipelineValue += st.Value
		}
	}
	summary.PipelineValue = pricing.Round2(summary.PipelineValue)
	summary.Aging = Age(open, asOf)
	summary.OutstandingTotal = summary.Aging.Total()
	for _, inv := range open {
		if inv.BalanceDue > 0 {
			summary.OutstandingCount++
		}
	}
	return summary, nil
}
