// Package sequence issues human readable document numbers such as
// QT-00001 from named counters.
package sequence

import (
	"context"
	"errors"
	"fmt"

	"github.com/stonecrest/backoffice/internal/platform/db"
)

// Kind identifies a numbered document family.
type Kind struct {
	Counter string
	Prefix  string
}

// Document families.
var (
	Quotes     = Kind{Counter: "quotes", Prefix: "QT"}
	WorkOrders = Kind{Counter: "work_orders", Prefix: "WO"}
	Invoices   = Kind{Counter: "invoices", Prefix: "INV"}
	Customers  = Kind{Counter: "customers", Prefix: "CUST"}
)

// Width is the zero padding applied to formatted numbers.
const Width = 5

// ErrInvalidCounter is returned for an empty counter name.
var ErrInvalidCounter = errors.New("sequence: counter name required")

// Counter atomically increments a named counter and returns the new value.
// Implementations must never hand the same value to two callers.
type Counter interface {
	Increment(ctx context.Context, name string) (int64, error)
}

// Number is an issued document number.
type Number struct {
	Value int64
	Text  string
}

// Format renders value as PREFIX-00001. Values wider than Width are kept intact.
func Format(prefix string, value int64) string {
	return fmt.Sprintf("%s-%0*d", prefix, Width, value)
}

// Next draws the next number of kind from counter.
func Next(ctx context.Context, counter Counter, kind Kind) (Number, error) {
	if kind.Counter == "" {
		return Number{}, ErrInvalidCounter
	}
	value, err := counter.Increment(ctx, kind.Counter)
	if err != nil {
		return Number{}, fmt.Errorf("sequence: next %s: %w", kind.Counter, err)
	}
	return Number{Value: value, Text: Format(kind.Prefix, value)}, nil
}

// PGCounter increments counters stored in the sequences table. Run it on the
// transaction that inserts the numbered document so a rollback also returns
// the number.
type PGCounter struct {
	db db.DBTX
}

// NewPGCounter binds a counter to a pool or transaction.
func NewPGCounter(conn db.DBTX) PGCounter {
	return PGCounter{db: conn}
}

// Increment performs the read-modify-write as one statement.
func (c PGCounter) Increment(ctx context.Context, name string) (int64, error) {
	if name == "" {
		return 0, ErrInvalidCounter
	}
	const query = `
		INSERT INTO sequences (name, value) VALUES ($1, 1)
		ON CONFLICT (name) DO UPDATE SET value = sequences.value + 1
		RETURNING value`
	var value int64
	if err := c.db.QueryRow(ctx, query, name).Scan(&value); err != nil {
		return 0, db.Classify(err)
	}
	return value, nil
}
