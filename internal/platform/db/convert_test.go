package db

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFloat(t *testing.T) {
	var n pgtype.Numeric
	require.NoError(t, n.Scan("350.25"))
	assert.Equal(t, 350.25, Float(n))
	assert.Zero(t, Float(pgtype.Numeric{}))
}

func TestNullableConversions(t *testing.T) {
	assert.Nil(t, TimePtr(pgtype.Timestamptz{}))
	now := time.Now()
	got := TimePtr(pgtype.Timestamptz{Time: now, Valid: true})
	require.NotNil(t, got)
	assert.True(t, got.Equal(now))

	assert.Nil(t, UUIDPtr(pgtype.UUID{}))
	id := uuid.New()
	assert.Equal(t, id, *UUIDPtr(UUIDParam(&id)))
	assert.False(t, UUIDParam(nil).Valid)

	assert.Nil(t, TextPtr(pgtype.Text{}))
	assert.Equal(t, "x", *TextPtr(pgtype.Text{String: "x", Valid: true}))
}
