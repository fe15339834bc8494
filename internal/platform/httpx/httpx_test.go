package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stonecrest/backoffice/internal/shared"
)

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestDecodeJSON(t *testing.T) {
	var target struct {
		Name string `json:"name"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Slate patio"}`))
	require.NoError(t, DecodeJSON(req, &target))
	assert.Equal(t, "Slate patio", target.Name)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	verr, ok := shared.AsValidation(DecodeJSON(req, &target))
	require.True(t, ok)
	assert.Equal(t, "request body is required", verr.Fields[0].Message)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"nmae":"typo"}`))
	verr, ok = shared.AsValidation(DecodeJSON(req, &target))
	require.True(t, ok)
	assert.Equal(t, "body", verr.Fields[0].Field)
	assert.Contains(t, verr.Fields[0].Message, "malformed JSON")
}

func TestOKWithMeta(t *testing.T) {
	rec := httptest.NewRecorder()
	OKWithMeta(rec, []string{"a"}, shared.NewPagination(10, 0, 1))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"success":true,"data":["a"],"meta":{"limit":10,"offset":0,"total":1,"total_pages":1}}`, rec.Body.String())
}

func TestErrorResponderStatusMapping(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"validation", shared.NewValidationError("email", "is required"), http.StatusBadRequest, "Validation failed"},
		{"not found", shared.NotFoundf("quote %s", "q-1"), http.StatusNotFound, "not found: quote q-1"},
		{"conflict", shared.Conflictf("quote is locked"), http.StatusBadRequest, "conflict: quote is locked"},
		{"unauthorized", fmt.Errorf("token: %w", shared.ErrUnauthorized), http.StatusUnauthorized, "Authentication required"},
		{"forbidden", shared.ErrForbidden, http.StatusForbidden, "Insufficient permissions"},
		{"unavailable", fmt.Errorf("begin tx: %w", shared.ErrUnavailable), http.StatusInternalServerError, "Service temporarily unavailable, please retry"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "Internal server error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/quotes", nil)
			ErrorResponder{}.Respond(rec, req, tc.err)

			assert.Equal(t, tc.status, rec.Code)
			env := decodeEnvelope(t, rec)
			assert.False(t, env.Success)
			assert.Equal(t, tc.message, env.Message)
			assert.Empty(t, env.Detail)
		})
	}
}

func TestErrorResponderValidationListsFields(t *testing.T) {
	verr := &shared.ValidationError{}
	verr.Add("customer_id", "is required")
	verr.Add("line_items", "must contain at least 1 item(s)")

	rec := httptest.NewRecorder()
	ErrorResponder{}.Respond(rec, httptest.NewRequest(http.MethodPost, "/api/quotes", nil), fmt.Errorf("create: %w", verr))

	env := decodeEnvelope(t, rec)
	assert.Equal(t, verr.Fields, env.Errors)
}

func TestErrorResponderVerboseDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	ErrorResponder{Verbose: true}.Respond(rec, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("pool closed"))

	env := decodeEnvelope(t, rec)
	assert.Equal(t, "pool closed", env.Detail)
}
