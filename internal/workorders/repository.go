package workorders

import (
	"context"
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

const workOrderColumns = `
	id, work_order_number, customer_id, customer_name, customer_email, quote_id,
	description, status, priority, scheduled_date, assigned_to, notes,
	started_at, completed_at, cancelled_at, cancellation_reason,
	created_by, updated_by, created_at, updated_at, deleted_at`

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

func (r *pgRepository) Get(ctx context.Context, id uuid.UUID) (*WorkOrder, error) {
	return r.get(ctx, id, false)
}

func (r *pgRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*WorkOrder, error) {
	return r.get(ctx, id, true)
}

func (r *pgRepository) get(ctx context.Context, id uuid.UUID, lock bool) (*WorkOrder, error) {
	query := `SELECT ` + workOrderColumns + ` FROM work_orders WHERE id = $1 AND deleted_at IS NULL`
	if lock {
		query += ` FOR UPDATE`
	}
	wo, err := scanWorkOrder(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.NotFoundf("work order %s", id)
		}
		return nil, db.Classify(err)
	}
	return wo, nil
}

func (r *pgRepository) List(ctx context.Context, filter ListFilter) ([]WorkOrder, int, error) {
	conditions := []string{"deleted_at IS NULL"}
	var args []any
	add := func(clause string, v any) {
		args = append(args, v)
		conditions = append(conditions, fmt.Sprintf(clause, len(args)))
	}
	if filter.Status != nil {
		add("status = $%d", string(*filter.Status))
	}
	if filter.Priority != nil {
		add("priority = $%d", string(*filter.Priority))
	}
	if filter.CustomerID != nil {
		add("customer_id = $%d", *filter.CustomerID)
	}
	if filter.QuoteID != nil {
		add("quote_id = $%d", *filter.QuoteID)
	}
	if filter.FromDate != nil {
		add("created_at >= $%d", *filter.FromDate)
	}
	if filter.ToDate != nil {
		add("created_at <= $%d", *filter.ToDate)
	}
	where := "WHERE " + strings.Join(conditions, " AND ")

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM work_orders "+where, args...).Scan(&total); err != nil {
		return nil, 0, db.Classify(err)
	}

	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM work_orders %s
		ORDER BY CASE priority WHEN 'Urgent' THEN 0 WHEN 'High' THEN 1 WHEN 'Normal' THEN 2 ELSE 3 END,
		         created_at DESC
		LIMIT $%d OFFSET $%d`, workOrderColumns, where, len(args)-1, len(args))
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, db.Classify(err)
	}
	defer rows.Close()

	out := []WorkOrder{}
	for rows.Next() {
		wo, err := scanWorkOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *wo)
	}
	return out, total, db.Classify(rows.Err())
}

func (r *pgRepository) NextNumber(ctx context.Context) (sequence.Number, error) {
	return sequence.Next(ctx, sequence.NewPGCounter(r.db), sequence.WorkOrders)
}

func (r *pgRepository) Insert(ctx context.Context, wo WorkOrder) error {
	_, err := r.db.Exec(ctx, `INSERT INTO work_orders (`+workOrderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
		wo.ID, wo.WorkOrderNumber, db.UUIDParam(wo.CustomerID), wo.CustomerName, wo.CustomerEmail, db.UUIDParam(wo.QuoteID),
		wo.Description, string(wo.Status), string(wo.Priority), wo.ScheduledDate, wo.AssignedTo, wo.Notes,
		wo.StartedAt, wo.CompletedAt, wo.CancelledAt, wo.CancellationReason,
		wo.CreatedBy, wo.UpdatedBy, wo.CreatedAt, wo.UpdatedAt, wo.DeletedAt)
	return db.Classify(err)
}

func (r *pgRepository) Save(ctx context.Context, wo WorkOrder) error {
	tag, err := r.db.Exec(ctx, `UPDATE work_orders SET
			customer_id = $2, customer_name = $3, customer_email = $4, quote_id = $5,
			description = $6, status = $7, priority = $8, scheduled_date = $9, assigned_to = $10,
			notes = $11, started_at = $12, completed_at = $13, cancelled_at = $14,
			cancellation_reason = $15, updated_by = $16, updated_at = $17, deleted_at = $18
		WHERE id = $1`,
		wo.ID, db.UUIDParam(wo.CustomerID), wo.CustomerName, wo.CustomerEmail, db.UUIDParam(wo.QuoteID),
		wo.Description, string(wo.Status), string(wo.Priority), wo.ScheduledDate, wo.AssignedTo,
		wo.Notes, wo.StartedAt, wo.CompletedAt, wo.CancelledAt,
		wo.CancellationReason, wo.UpdatedBy, wo.UpdatedAt, wo.DeletedAt)
	if err != nil {
		return db.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("work order %s", wo.ID)
	}
	return nil
}

func scanWorkOrder(row pgx.Row) (*WorkOrder, error) {
	var (
		wo                            WorkOrder
		customerID, quoteID           pgtype.UUID
		status, priority              string
		assignedTo, notes, reason     pgtype.Text
		scheduled, started, completed pgtype.Timestamptz
		cancelled, deletedAt          pgtype.Timestamptz
	)
	if err := row.Scan(
		&wo.ID, &wo.WorkOrderNumber, &customerID, &wo.CustomerName, &wo.CustomerEmail, &quoteID,
		&wo.Description, &status, &priority, &scheduled, &assignedTo, &notes,
		&started, &completed, &cancelled, &reason,
		&wo.CreatedBy, &wo.UpdatedBy, &wo.CreatedAt, &wo.UpdatedAt, &deletedAt,
	); err != nil {
		return nil, err
	}
	wo.CustomerID = db.UUIDPtr(customerID)
	wo.QuoteID = db.UUIDPtr(quoteID)
	wo.Status = Status(status)
	wo.Priority = Priority(priority)
	wo.ScheduledDate = db.TimePtr(scheduled)
	wo.AssignedTo = db.TextPtr(assignedTo)
	wo.Notes = db.TextPtr(notes)
	wo.StartedAt = db.TimePtr(started)
	wo.CompletedAt = db.TimePtr(completed)
	wo.CancelledAt = db.TimePtr(cancelled)
	wo.CancellationReason = db.TextPtr(reason)
	wo.DeletedAt = db.TimePtr(deletedAt)
	wo.CreatedAt = wo.CreatedAt.UTC()
	wo.UpdatedAt = wo.UpdatedAt.UTC()
	return &wo, nil
}
