package analytics

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/stonecrest/backoffice/internal/platform/db"
)

type pgRepository struct {
	db db.DBTX
}

// NewRepository returns the PostgreSQL backed Repository.
func NewRepository(conn db.DBTX) Repository {
	return &pgRepository{db: conn}
}

func (r *pgRepository) QuoteTotals(ctx context.Context) ([]StatusTotal, error) {
	rows, err := r.db.Query(ctx, `
		SELECT status, COUNT(*), COALESCE(SUM(total), 0)
		FROM quotes
		WHERE deleted_at IS NULL
		GROUP BY status
		ORDER BY status`)
	if err != nil {
		return nil, db.Classify(err)
	}
	totals, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (StatusTotal, error) {
		var (
			st    StatusTotal
			value pgtype.Numeric
		)
		err := row.Scan(&st.Status, &st.Count, &value)
		st.Value = db.Float(value)
		return st, err
	})
	return totals, db.Classify(err)
}

func (r *pgRepository) OutstandingInvoices(ctx context.Context) ([]OpenInvoice, error) {
	rows, err := r.db.Query(ctx, `
		SELECT due_date, balance_due
		FROM invoices
		WHERE deleted_at IS NULL
		  AND status IN ('Sent', 'Viewed', 'Partial', 'Overdue')
		  AND balance_due > 0`)
	if err != nil {
		return nil, db.Classify(err)
	}
	open, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (OpenInvoice, error) {
		var (
			inv     OpenInvoice
			balance pgtype.Numeric
		)
		err := row.Scan(&inv.DueDate, &balance)
		inv.BalanceDue = db.Float(balance)
		return inv, err
	})
	return open, db.Classify(err)
}

func (r *pgRepository) PaymentsBetween(ctx context.Context, from, to time.Time) (PaymentTotal, error) {
	var (
		out    PaymentTotal
		amount pgtype.Numeric
	)
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(p.amount), 0)
		FROM invoice_payments p
		JOIN invoices i ON i.id = p.invoice_id AND i.deleted_at IS NULL
		WHERE p.recorded_at >= $1 AND p.recorded_at < $2`, from, to).Scan(&out.Count, &amount)
	out.Amount = db.Float(amount)
	return out, db.Classify(err)
}
