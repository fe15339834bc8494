package invoices

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stonecrest/backoffice/internal/platform/db"
	"github.com/stonecrest/backoffice/internal/pricing"
	"github.com/stonecrest/backoffice/internal/quotes"
	"github.com/stonecrest/backoffice/internal/sequence"
	"github.com/stonecrest/backoffice/internal/shared"
)

const invoiceColumns = `
	id, invoice_number, quote_id, customer_id, customer_name, customer_email, line_items,
	subtotal, tax_rate, tax_amount, total, amount_paid, balance_due, status, due_date,
	notes, sent_at, paid_at, created_by, updated_by, created_at, updated_at, deleted_at`

const paymentColumns = `id, invoice_id, amount, payment_method, reference, notes, recorded_at, recorded_by`

// idempotencyModule scopes payment keys in idempotency_keys.
const idempotencyModule = "invoice_payment"

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

func (r *pgRepository) GetQuoteForUpdate(ctx context.Context, quoteID uuid.UUID) (*quotes.Quote, error) {
	return quotes.Fetch(ctx, r.db, quoteID, true)
}

func (r *pgRepository) SaveQuote(ctx context.Context, q quotes.Quote) error {
	return quotes.Store(ctx, r.db, q)
}

func (r *pgRepository) HasLiveInvoice(ctx context.Context, quoteID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM invoices WHERE quote_id = $1 AND deleted_at IS NULL)`, quoteID).Scan(&exists)
	return exists, db.Classify(err)
}

func (r *pgRepository) NextNumber(ctx context.Context) (sequence.Number, error) {
	return sequence.Next(ctx, sequence.NewPGCounter(r.db), sequence.Invoices)
}

func (r *pgRepository) ClaimIdempotencyKey(ctx context.Context, key string) error {
	return shared.NewIdempotencyStore(r.db).CheckAndInsert(ctx, key, idempotencyModule)
}

func (r *pgRepository) Get(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return r.get(ctx, id, false)
}

func (r *pgRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return r.get(ctx, id, true)
}

func (r *pgRepository) get(ctx context.Context, id uuid.UUID, lock bool) (*Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1 AND deleted_at IS NULL`
	if lock {
		query += ` FOR UPDATE`
	}
	inv, err := scanInvoice(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.NotFoundf("invoice %s", id)
		}
		return nil, db.Classify(err)
	}
	return inv, nil
}

func (r *pgRepository) List(ctx context.Context, filter ListFilter) ([]Invoice, int, error) {
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
	if filter.QuoteID != nil {
		conditions = append(conditions, fmt.Sprintf("quote_id = $%d", argPos))
		args = append(args, *filter.QuoteID)
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
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM invoices "+where, args...).Scan(&total); err != nil {
		return nil, 0, db.Classify(err)
	}

	query := fmt.Sprintf(`SELECT %s FROM invoices %s ORDER BY created_at DESC, invoice_number DESC LIMIT $%d OFFSET $%d`,
		invoiceColumns, where, argPos, argPos+1)
	args = append(args, filter.Limit, filter.Offset)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, db.Classify(err)
	}
	defer rows.Close()

	out := []Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *inv)
	}
	return out, total, db.Classify(rows.Err())
}

func (r *pgRepository) ListOverdue(ctx context.Context, asOf time.Time) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id FROM invoices
		WHERE deleted_at IS NULL AND status IN ('Sent', 'Viewed', 'Partial') AND due_date < $1
		ORDER BY due_date`, asOf)
	if err != nil {
		return nil, db.Classify(err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	return ids, db.Classify(err)
}

func (r *pgRepository) Insert(ctx context.Context, inv Invoice) error {
	items, err := json.Marshal(inv.LineItems)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO invoices (`+invoiceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
		        $19, $20, $21, $22, $23)`,
		inv.ID, inv.InvoiceNumber, inv.QuoteID, db.UUIDParam(inv.CustomerID), inv.CustomerName, inv.CustomerEmail, items,
		inv.Subtotal, inv.TaxRate, inv.TaxAmount, inv.Total, inv.AmountPaid, inv.BalanceDue, string(inv.Status), inv.DueDate,
		inv.Notes, inv.SentAt, inv.PaidAt, inv.CreatedBy, inv.UpdatedBy, inv.CreatedAt, inv.UpdatedAt, inv.DeletedAt,
	)
	if shared.IsUniqueViolation(err) {
		// the partial index on quote_id guards concurrent invoicing
		return shared.Conflictf("quote %s has already been invoiced", inv.QuoteID)
	}
	return db.Classify(err)
}

func (r *pgRepository) Save(ctx context.Context, inv Invoice) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE invoices SET
			amount_paid = $2, balance_due = $3, status = $4, due_date = $5, notes = $6,
			sent_at = $7, paid_at = $8, updated_by = $9, updated_at = $10, deleted_at = $11
		WHERE id = $1`,
		inv.ID, inv.AmountPaid, inv.BalanceDue, string(inv.Status), inv.DueDate, inv.Notes,
		inv.SentAt, inv.PaidAt, inv.UpdatedBy, inv.UpdatedAt, inv.DeletedAt,
	)
	if err != nil {
		return db.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("invoice %s", inv.ID)
	}
	return nil
}

// AppendPayment inserts a ledger row. Payments are never updated or deleted.
func (r *pgRepository) AppendPayment(ctx context.Context, p Payment) error {
	_, err := r.db.Exec(ctx, `INSERT INTO invoice_payments (`+paymentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.InvoiceID, p.Amount, p.PaymentMethod, p.Reference, p.Notes, p.RecordedAt, p.RecordedBy)
	return db.Classify(err)
}

func (r *pgRepository) ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]Payment, error) {
	rows, err := r.db.Query(ctx, `SELECT `+paymentColumns+` FROM invoice_payments
		WHERE invoice_id = $1 ORDER BY recorded_at, id`, invoiceID)
	if err != nil {
		return nil, db.Classify(err)
	}
	defer rows.Close()

	out := []Payment{}
	for rows.Next() {
		var (
			p                Payment
			amount           pgtype.Numeric
			reference, notes pgtype.Text
		)
		if err := rows.Scan(&p.ID, &p.InvoiceID, &amount, &p.PaymentMethod, &reference, &notes, &p.RecordedAt, &p.RecordedBy); err != nil {
			return nil, err
		}
		p.Amount = db.Float(amount)
		p.Reference = db.TextPtr(reference)
		p.Notes = db.TextPtr(notes)
		p.RecordedAt = p.RecordedAt.UTC()
		out = append(out, p)
	}
	return out, db.Classify(rows.Err())
}

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var (
		inv                                             Invoice
		customerID                                      pgtype.UUID
		items                                           []byte
		subtotal, taxAmount, total, amountPaid, balance pgtype.Numeric
		status                                          string
		notes                                           pgtype.Text
		sentAt, paidAt, deletedAt                       pgtype.Timestamptz
	)
	err := row.Scan(
		&inv.ID, &inv.InvoiceNumber, &inv.QuoteID, &customerID, &inv.CustomerName, &inv.CustomerEmail, &items,
		&subtotal, &inv.TaxRate, &taxAmount, &total, &amountPaid, &balance, &status, &inv.DueDate,
		&notes, &sentAt, &paidAt, &inv.CreatedBy, &inv.UpdatedBy, &inv.CreatedAt, &inv.UpdatedAt, &deletedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &inv.LineItems); err != nil {
		return nil, fmt.Errorf("decode invoice line items: %w", err)
	}
	inv.CustomerID = db.UUIDPtr(customerID)
	inv.Subtotal = db.Float(subtotal)
	inv.TaxAmount = db.Float(taxAmount)
	inv.Total = db.Float(total)
	inv.AmountPaid = db.Float(amountPaid)
	inv.BalanceDue = db.Float(balance)
	if inv.AmountPaid > inv.Total {
		inv.Credit = pricing.Round2(inv.AmountPaid - inv.Total)
	}
	inv.Status = Status(status)
	inv.Notes = db.TextPtr(notes)
	inv.SentAt = db.TimePtr(sentAt)
	inv.PaidAt = db.TimePtr(paidAt)
	inv.DeletedAt = db.TimePtr(deletedAt)
	inv.DueDate = inv.DueDate.UTC()
	inv.CreatedAt = inv.CreatedAt.UTC()
	inv.UpdatedAt = inv.UpdatedAt.UTC()
	return &inv, nil
}
