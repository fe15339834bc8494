package sequence

import (
	"context"
	"errors"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/stonecrest/backoffice/internal/platform/db"
)

type memoryCounter struct {
	mu     sync.Mutex
	values map[string]int64
	fail   error
}

func (c *memoryCounter) Increment(ctx context.Context, name string) (int64, error) {
	if c.fail != nil {
		return 0, c.fail
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.values == nil {
		c.values = make(map[string]int64)
	}
	c.values[name]++
	return c.values[name], nil
}

func TestFormatPadsToFiveDigits(t *testing.T) {
	assert.Equal(t, "QT-00001", Format("QT", 1))
	assert.Equal(t, "INV-00042", Format("INV", 42))
	assert.Equal(t, "WO-99999", Format("WO", 99999))
	assert.Equal(t, "WO-123456", Format("WO", 123456))
}

func TestNextUsesKindCounterAndPrefix(t *testing.T) {
	counter := &memoryCounter{}
	ctx := context.Background()

	first, err := Next(ctx, counter, Quotes)
	require.NoError(t, err)
	second, err := Next(ctx, counter, Quotes)
	require.NoError(t, err)
	inv, err := Next(ctx, counter, Invoices)
	require.NoError(t, err)

	assert.Equal(t, Number{Value: 1, Text: "QT-00001"}, first)
	assert.Equal(t, Number{Value: 2, Text: "QT-00002"}, second)
	assert.Equal(t, Number{Value: 1, Text: "INV-00001"}, inv)
}

func TestNextPropagatesCounterFailure(t *testing.T) {
	boom := errors.New("store down")
	_, err := Next(context.Background(), &memoryCounter{fail: boom}, WorkOrders)
	require.ErrorIs(t, err, boom)
}

func TestNextRejectsEmptyKind(t *testing.T) {
	_, err := Next(context.Background(), &memoryCounter{}, Kind{})
	require.ErrorIs(t, err, ErrInvalidCounter)
}

func TestConcurrentNextIssuesDistinctContiguousNumbers(t *testing.T) {
	const callers = 200
	counter := &memoryCounter{}
	assertDistinctContiguous(t, counter, callers)
}

// TestPGCounterConcurrent runs against a real database when
// SEQUENCE_TEST_PG_DSN is set.
func TestPGCounterConcurrent(t *testing.T) {
	dsn := os.Getenv("SEQUENCE_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("SEQUENCE_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, db.Migrate(ctx, pool))
	_, err = pool.Exec(ctx, `DELETE FROM sequences WHERE name = $1`, Quotes.Counter)
	require.NoError(t, err)

	assertDistinctContiguous(t, NewPGCounter(pool), 50)
}

// TestPGCounterInsideDocumentTransactions draws numbers the way the
// repositories do: inside db.WithTx, holding the counter row lock until
// commit while other callers wait on it.
func TestPGCounterInsideDocumentTransactions(t *testing.T) {
	dsn := os.Getenv("SEQUENCE_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("SEQUENCE_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, db.Migrate(ctx, pool))
	_, err = pool.Exec(ctx, `DELETE FROM sequences WHERE name = $1`, WorkOrders.Counter)
	require.NoError(t, err)

	const callers = 20
	var (
		mu     sync.Mutex
		issued []int64
	)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < callers; i++ {
		g.Go(func() error {
			return db.WithTx(gctx, pool, func(tx pgx.Tx) error {
				n, err := Next(gctx, NewPGCounter(tx), WorkOrders)
				if err != nil {
					return err
				}
				time.Sleep(5 * time.Millisecond)
				mu.Lock()
				issued = append(issued, n.Value)
				mu.Unlock()
				return nil
			})
		})
	}
	require.NoError(t, g.Wait())

	sort.Slice(issued, func(i, j int) bool { return issued[i] < issued[j] })
	require.Len(t, issued, callers)
	for i, v := range issued {
		assert.Equal(t, int64(i+1), v)
	}
}

func assertDistinctContiguous(t *testing.T, counter Counter, callers int) {
	t.Helper()
	var (
		mu     sync.Mutex
		issued []int64
		texts  = make(map[string]struct{})
	)
	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < callers; i++ {
		g.Go(func() error {
			n, err := Next(ctx, counter, Quotes)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			issued = append(issued, n.Value)
			texts[n.Text] = struct{}{}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	require.Len(t, texts, callers, "duplicate number issued")
	sort.Slice(issued, func(i, j int) bool { return issued[i] < issued[j] })
	for i, v := range issued {
		require.Equal(t, int64(i+1), v)
	}
}
