package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stonecrest/backoffice/internal/shared"
)

type recordingTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
	commitErr  error
}

func (t *recordingTx) Commit(context.Context) error {
	t.committed = true
	return t.commitErr
}

func (t *recordingTx) Rollback(context.Context) error {
	t.rolledBack = true
	return nil
}

type recordingStarter struct {
	opts pgx.TxOptions
	tx   *recordingTx
	err  error
}

func (s *recordingStarter) BeginTx(_ context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	s.opts = opts
	if s.err != nil {
		return nil, s.err
	}
	return s.tx, nil
}

func TestWithTxUsesReadCommitted(t *testing.T) {
	starter := &recordingStarter{tx: &recordingTx{}}
	require.NoError(t, WithTx(context.Background(), starter, func(pgx.Tx) error { return nil }))

	assert.Equal(t, pgx.ReadCommitted, starter.opts.IsoLevel)
	assert.True(t, starter.tx.committed)
}

func TestWithTxOptionsPassesOptions(t *testing.T) {
	starter := &recordingStarter{tx: &recordingTx{}}
	opts := pgx.TxOptions{IsoLevel: pgx.Serializable, AccessMode: pgx.ReadOnly}
	require.NoError(t, WithTxOptions(context.Background(), starter, opts, func(pgx.Tx) error { return nil }))
	assert.Equal(t, opts, starter.opts)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	starter := &recordingStarter{tx: &recordingTx{}}
	err := WithTx(context.Background(), starter, func(pgx.Tx) error {
		return shared.Conflictf("quote is locked")
	})

	assert.ErrorIs(t, err, shared.ErrConflict)
	assert.False(t, starter.tx.committed)
	assert.True(t, starter.tx.rolledBack)
}

func TestWithTxClassifiesStoreFailures(t *testing.T) {
	starter := &recordingStarter{err: errors.New("dial tcp: connection refused")}
	err := WithTx(context.Background(), starter, func(pgx.Tx) error { return nil })
	assert.ErrorIs(t, err, shared.ErrUnavailable)

	starter = &recordingStarter{tx: &recordingTx{commitErr: &pgconn.PgError{Code: "40001"}}}
	err = WithTx(context.Background(), starter, func(pgx.Tx) error { return nil })
	assert.ErrorIs(t, err, shared.ErrUnavailable)
}

func TestClassify(t *testing.T) {
	assert.NoError(t, Classify(nil))
	assert.ErrorIs(t, Classify(&pgconn.PgError{Code: "40P01"}), shared.ErrUnavailable)

	unique := &pgconn.PgError{Code: "23505"}
	assert.NotErrorIs(t, Classify(unique), shared.ErrUnavailable)

	wrapped := fmt.Errorf("repo: %w", shared.ErrUnavailable)
	assert.Same(t, wrapped, Classify(wrapped))
}
