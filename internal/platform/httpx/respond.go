// Package httpx provides HTTP response utilities shared by the API handlers.
package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/stonecrest/backoffice/internal/shared"
)

// maxBodyBytes bounds decoded request bodies.
const maxBodyBytes = 1 << 20

// Envelope is the body of every API response. Failures carry Message and,
// for validation failures, the complete list of field violations.
type Envelope struct {
	Success bool                `json:"success"`
	Message string              `json:"message,omitempty"`
	Data    any                 `json:"data,omitempty"`
	Meta    any                 `json:"meta,omitempty"`
	Errors  []shared.FieldError `json:"errors,omitempty"`
	Detail  string              `json:"detail,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// OK sends a successful envelope.
func OK(w http.ResponseWriter, status int, data any) {
	JSON(w, status, Envelope{Success: true, Data: data})
}

// OKWithMeta sends a successful envelope with listing metadata.
func OKWithMeta(w http.ResponseWriter, data, meta any) {
	JSON(w, http.StatusOK, Envelope{Success: true, Data: data, Meta: meta})
}

// Fail sends a failure envelope.
func Fail(w http.ResponseWriter, status int, message string, fields []shared.FieldError) {
	JSON(w, status, Envelope{Success: false, Message: message, Errors: fields})
}

// DecodeJSON decodes JSON request body into the target struct. Unknown
// fields are rejected so typos surface as validation errors.
func DecodeJSON(r *http.Request, target any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return shared.NewValidationError("body", "request body is required")
		}
		return shared.NewValidationError("body", "malformed JSON: "+err.Error())
	}
	return nil
}
