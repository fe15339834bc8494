package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stonecrest/backoffice/internal/platform/db"
	"github.com/stonecrest/backoffice/internal/sequence"
	"github.com/stonecrest/backoffice/internal/shared"
)

const quoteColumns = `
	id, quote_number, customer_id, customer_name, customer_email, line_items,
	total_cost, subtotal, total, margin, status, valid_until, allow_override, notes,
	sent_at, approved_at, rejected_at, rejection_reason, invoice_id, invoiced_at,
	duplicated_from, created_by, updated_by, created_at, updated_at, deleted_at`

type pgRepository struct {
	db   db.DBTX
	pool *pgxpool.Pool
}

// NewRepository returns the PostgreSQL backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{db: pool, pool: pool}
}

func (r *pgRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgRepository{db: tx, pool: r.pool})
	})
}

func (r *pgRepository) Get(ctx context.Context, id uuid.UUID) (*Quote, error) {
	return r.get(ctx, id, false)
}

func (r *pgRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*Quote, error) {
	return r.get(ctx, id, true)
}

func (r *pgRepository) get(ctx context.Context, id uuid.UUID, lock bool) (*Quote, error) {
	query := `SELECT ` + quoteColumns + ` FROM quotes WHERE id = $1 AND deleted_at IS NULL`
	if lock {
		query += ` FOR UPDATE`
	}
	q, err := scanQuote(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.NotFoundf("quote %s", id)
		}
		return nil, db.Classify(err)
	}
	return q, nil
}

// Fetch returns a live quote, locking it when called inside a transaction
// with lock set. It lets other packages read quotes on their own transaction.
func Fetch(ctx context.Context, conn db.DBTX, id uuid.UUID, lock bool) (*Quote, error) {
	return (&pgRepository{db: conn}).get(ctx, id, lock)
}

// Store replaces the stored quote document on conn.
func Store(ctx context.Context, conn db.DBTX, q Quote) error {
	return (&pgRepository{db: conn}).Save(ctx, q)
}

func (r *pgRepository) List(ctx context.Context, filter ListFilter) ([]Quote, int, error) {
	conditions := []string{"deleted_at IS NULL"}
	var args []any
	argPos := 1

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, string(*filter.Status))
		argPos++
	}
	if filter.CustomerID != nil {
		conditions = append(conditions, fmt.Sprintf("customer_id = $%d", argPos))
		args = append(args, *filter.CustomerID)
		argPos++
	}
	if filter.FromDate != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argPos))
		args = append(args, *filter.FromDate)
		argPos++
	}
	if filter.ToDate != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", argPos))
		args = append(args, *filter.ToDate)
		argPos++
	}
	where := "WHERE " + strings.Join(conditions, " AND ")

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM quotes "+where, args...).Scan(&total); err != nil {
		return nil, 0, db.Classify(err)
	}

	query := fmt.Sprintf(`SELECT %s FROM quotes %s ORDER BY created_at DESC, quote_number DESC LIMIT $%d OFFSET $%d`,
		quoteColumns, where, argPos, argPos+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, db.Classify(err)
	}
	defer rows.Close()

	out := []Quote{}
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *q)
	}
	return out, total, db.Classify(rows.Err())
}

func (r *pgRepository) NextNumber(ctx context.Context) (sequence.Number, error) {
	return sequence.Next(ctx, sequence.NewPGCounter(r.db), sequence.Quotes)
}

func (r *pgRepository) Insert(ctx context.Context, q Quote) error {
	items, err := json.Marshal(q.LineItems)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO quotes (`+quoteColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
		        $19, $20, $21, $22, $23, $24, $25, $26)`,
		q.ID, q.QuoteNumber, db.UUIDParam(q.CustomerID), q.CustomerName, q.CustomerEmail, items,
		q.TotalCost, q.Subtotal, q.Total, q.Margin, string(q.Status), q.ValidUntil, q.AllowOverride, q.Notes,
		q.SentAt, q.ApprovedAt, q.RejectedAt, q.RejectionReason, db.UUIDParam(q.InvoiceID), q.InvoicedAt,
		db.UUIDParam(q.DuplicatedFrom), q.CreatedBy, q.UpdatedBy, q.CreatedAt, q.UpdatedAt, q.DeletedAt,
	)
	return db.Classify(err)
}

func (r *pgRepository) Save(ctx context.Context, q Quote) error {
	items, err := json.Marshal(q.LineItems)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE quotes SET
			customer_id = $2, customer_name = $3, customer_email = $4, line_items = $5,
			total_cost = $6, subtotal = $7, total = $8, margin = $9, status = $10,
			valid_until = $11, allow_override = $12, notes = $13, sent_at = $14,
			approved_at = $15, rejected_at = $16, rejection_reason = $17, invoice_id = $18,
			invoiced_at = $19, updated_by = $20, updated_at = $21, deleted_at = $22
		WHERE id = $1`,
		q.ID, db.UUIDParam(q.CustomerID), q.CustomerName, q.CustomerEmail, items,
		q.TotalCost, q.Subtotal, q.Total, q.Margin, string(q.Status),
		q.ValidUntil, q.AllowOverride, q.Notes, q.SentAt,
		q.ApprovedAt, q.RejectedAt, q.RejectionReason, db.UUIDParam(q.InvoiceID),
		q.InvoicedAt, q.UpdatedBy, q.UpdatedAt, q.DeletedAt,
	)
	if err != nil {
		return db.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("quote %s", q.ID)
	}
	return nil
}

func scanQuote(row pgx.Row) (*Quote, error) {
	var (
		q                                          Quote
		customerID, invoiceID, duplicatedFrom      pgtype.UUID
		items                                      []byte
		totalCost, subtotal, total                 pgtype.Numeric
		status                                     string
		notes, rejectionReason                     pgtype.Text
		sentAt, approvedAt, rejectedAt, invoicedAt pgtype.Timestamptz
		deletedAt                                  pgtype.Timestamptz
	)
	err := row.Scan(
		&q.ID, &q.QuoteNumber, &customerID, &q.CustomerName, &q.CustomerEmail, &items,
		&totalCost, &subtotal, &total, &q.Margin, &status, &q.ValidUntil, &q.AllowOverride, &notes,
		&sentAt, &approvedAt, &rejectedAt, &rejectionReason, &invoiceID, &invoicedAt,
		&duplicatedFrom, &q.CreatedBy, &q.UpdatedBy, &q.CreatedAt, &q.UpdatedAt, &deletedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &q.LineItems); err != nil {
		return nil, fmt.Errorf("decode quote line items: %w", err)
	}
	q.CustomerID = db.UUIDPtr(customerID)
	q.InvoiceID = db.UUIDPtr(invoiceID)
	q.DuplicatedFrom = db.UUIDPtr(duplicatedFrom)
	q.TotalCost = db.Float(totalCost)
	q.Subtotal = db.Float(subtotal)
	q.Total = db.Float(total)
	q.Status = Status(status)
	q.Notes = db.TextPtr(notes)
	q.RejectionReason = db.TextPtr(rejectionReason)
	q.SentAt = db.TimePtr(sentAt)
	q.ApprovedAt = db.TimePtr(approvedAt)
	q.RejectedAt = db.TimePtr(rejectedAt)
	q.InvoicedAt = db.TimePtr(invoicedAt)
	q.DeletedAt = db.TimePtr(deletedAt)
	q.ValidUntil = q.ValidUntil.UTC()
	q.CreatedAt = q.CreatedAt.UTC()
	q.UpdatedAt = q.UpdatedAt.UTC()
	return &q, nil
}
