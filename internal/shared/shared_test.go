package shared

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lineRequest struct {
	Description string  `json:"description" validate:"required,max=10"`
	Quantity    float64 `json:"quantity" validate:"gt=0"`
}

type documentRequest struct {
	Email  string        `json:"customer_email" validate:"required,email"`
	Status string        `json:"status" validate:"omitempty,oneof=Open Sent"`
	Lines  []lineRequest `json:"line_items" validate:"required,min=1,dive"`
}

func TestValidateStructCollectsEveryField(t *testing.T) {
	verr := ValidateStruct(documentRequest{
		Email:  "nope",
		Status: "Lost",
		Lines:  []lineRequest{{Description: "", Quantity: 0}},
	})
	require.NotNil(t, verr)
	assert.ElementsMatch(t, []FieldError{
		{Field: "customer_email", Message: "must be a valid email address"},
		{Field: "status", Message: "must be one of: Open, Sent"},
		{Field: "line_items[0].description", Message: "is required"},
		{Field: "line_items[0].quantity", Message: "must be greater than 0"},
	}, verr.Fields)

	assert.Nil(t, ValidateStruct(documentRequest{Email: "a@b.co", Lines: []lineRequest{{Description: "ok", Quantity: 1}}}))
}

func TestValidationErrorHelpers(t *testing.T) {
	var verr ValidationError
	assert.NoError(t, verr.ErrOrNil())
	verr.Add("name", "is required")
	verr.Addf("amount", "must be at most %d", 10)
	verr.Merge(NewValidationError("status", "unknown"))
	verr.Merge(nil)
	require.Len(t, verr.Fields, 3)
	assert.Equal(t, "validation failed: name: is required; amount: must be at most 10; status: unknown", verr.Error())

	wrapped := fmt.Errorf("create quote: %w", verr.ErrOrNil())
	got, ok := AsValidation(wrapped)
	require.True(t, ok)
	assert.Len(t, got.Fields, 3)
	_, ok = AsValidation(errors.New("plain"))
	assert.False(t, ok)
}

func TestSentinelWrapping(t *testing.T) {
	err := Conflictf("quote %s is locked", "QT-00001")
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, "conflict: quote QT-00001 is locked", err.Error())
	assert.ErrorIs(t, NotFoundf("invoice %d", 7), ErrNotFound)
}

func TestParseListParams(t *testing.T) {
	params, verr := ParseListParams(url.Values{
		"status":    {"Open"},
		"from_date": {"2025-01-31"},
		"to_date":   {"2025-02-01T10:00:00Z"},
		"limit":     {"5000"},
		"offset":    {"20"},
	})
	require.Nil(t, verr)
	assert.Equal(t, "Open", params.Status)
	assert.Equal(t, time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC), *params.FromDate)
	assert.Equal(t, MaxListLimit, params.Limit)
	assert.Equal(t, 20, params.Offset)

	params, verr = ParseListParams(url.Values{})
	require.Nil(t, verr)
	assert.Equal(t, DefaultListLimit, params.Limit)

	_, verr = ParseListParams(url.Values{"from_date": {"yesterday"}, "limit": {"-1"}, "offset": {"x"}})
	require.NotNil(t, verr)
	assert.Len(t, verr.Fields, 3)
}

func TestNewPagination(t *testing.T) {
	assert.Equal(t, Pagination{Limit: 2, Offset: 0, Total: 5, TotalPages: 3}, NewPagination(2, 0, 5))
	assert.Equal(t, Pagination{Limit: DefaultListLimit, Offset: 0, Total: 0, TotalPages: 0}, NewPagination(0, -3, 0))
}

func TestIdentityContext(t *testing.T) {
	ctx := context.Background()
	_, ok := IdentityFromContext(ctx)
	assert.False(t, ok)
	assert.Empty(t, ActorFromContext(ctx))

	ctx = ContextWithIdentity(ctx, Identity{Email: "crew@stonecrest.test", Role: RoleEmployee})
	id, ok := IdentityFromContext(ctx)
	require.True(t, ok)
	assert.True(t, id.IsStaff())
	assert.Equal(t, "crew@stonecrest.test", ActorFromContext(ctx))
	assert.False(t, Identity{Email: "x@y.z", Role: "customer"}.IsStaff())
}
