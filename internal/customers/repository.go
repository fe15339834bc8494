package customers

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

const customerColumns = `id, account_number, name, email, phone, address, status, notes,
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

func (r *pgRepository) Get(ctx context.Context, id uuid.UUID) (*Customer, error) {
	return r.get(ctx, id, "")
}

func (r *pgRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*Customer, error) {
	return r.get(ctx, id, " FOR UPDATE")
}

func (r *pgRepository) get(ctx context.Context, id uuid.UUID, suffix string) (*Customer, error) {
	row := r.db.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1 AND deleted_at IS NULL`+suffix, id)
	c, err := scanCustomer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.NotFoundf("customer %s", id)
		}
		return nil, db.Classify(err)
	}
	return c, nil
}

func (r *pgRepository) List(ctx context.Context, filter ListFilter) ([]Customer, int, error) {
	conditions := []string{"deleted_at IS NULL"}
	var args []any
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR email ILIKE $%d)", len(args), len(args)))
	}
	where := "WHERE " + strings.Join(conditions, " AND ")

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM customers "+where, args...).Scan(&total); err != nil {
		return nil, 0, db.Classify(err)
	}

	args = append(args, filter.Limit, filter.Offset)
	rows, err := r.db.Query(ctx, fmt.Sprintf(`SELECT %s FROM customers %s ORDER BY name, account_number LIMIT $%d OFFSET $%d`,
		customerColumns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, db.Classify(err)
	}
	defer rows.Close()

	out := []Customer{}
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *c)
	}
	return out, total, db.Classify(rows.Err())
}

func (r *pgRepository) NextNumber(ctx context.Context) (sequence.Number, error) {
	return sequence.Next(ctx, sequence.NewPGCounter(r.db), sequence.Customers)
}

func (r *pgRepository) Insert(ctx context.Context, c Customer) error {
	_, err := r.db.Exec(ctx, `INSERT INTO customers (`+customerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		c.ID, c.AccountNumber, c.Name, c.Email, c.Phone, c.Address, string(c.Status), c.Notes,
		c.CreatedBy, c.UpdatedBy, c.CreatedAt, c.UpdatedAt, c.DeletedAt)
	return db.Classify(err)
}

func (r *pgRepository) Save(ctx context.Context, c Customer) error {
	tag, err := r.db.Exec(ctx, `UPDATE customers SET
			name = $2, email = $3, phone = $4, address = $5, status = $6, notes = $7,
			updated_by = $8, updated_at = $9, deleted_at = $10
		WHERE id = $1`,
		c.ID, c.Name, c.Email, c.Phone, c.Address, string(c.Status), c.Notes,
		c.UpdatedBy, c.UpdatedAt, c.DeletedAt)
	if err != nil {
		return db.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("customer %s", c.ID)
	}
	return nil
}

func scanCustomer(row pgx.Row) (*Customer, error) {
	var (
		c         Customer
		status    string
		notes     pgtype.Text
		deletedAt pgtype.Timestamptz
	)
	if err := row.Scan(&c.ID, &c.AccountNumber, &c.Name, &c.Email, &c.Phone, &c.Address, &status, &notes,
		&c.CreatedBy, &c.UpdatedBy, &c.CreatedAt, &c.UpdatedAt, &deletedAt); err != nil {
		return nil, err
	}
	c.Status = Status(status)
	c.Notes = db.TextPtr(notes)
	c.DeletedAt = db.TimePtr(deletedAt)
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, nil
}
